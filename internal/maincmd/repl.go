package maincmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mna/mainer"
	"github.com/mna/von/lang/machine"
)

const (
	replPrompt  = ">> "
	replHelp    = `.help          show this message
.exit          leave the REPL
<expr>;        evaluate a statement
`
)

// runREPL reads source one line at a time and interprets each against a
// single persistent VM, so variables and functions declared on one line
// stay visible on the next (spec.md §5's single-goroutine, single-VM
// session). Compile and runtime errors are printed to stderr and do not
// end the session, matching file-mode's error reporting except that
// execution resumes at the next prompt instead of exiting.
func runREPL(ctx context.Context, stdio mainer.Stdio) {
	cfg, err := machine.NewConfig()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid configuration: %s\n", err)
		return
	}

	vm := machine.NewVM(cfg)
	vm.Stdout = stdio.Stdout
	vm.Stderr = stdio.Stderr

	scanner := bufio.NewScanner(stdio.Stdin)
	fmt.Fprint(stdio.Stdout, replPrompt)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(stdio.Stdout, replPrompt)
			continue
		case ".exit":
			return
		case ".help":
			fmt.Fprint(stdio.Stdout, replHelp)
			fmt.Fprint(stdio.Stdout, replPrompt)
			continue
		}

		src, err := stripImports(line)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			fmt.Fprint(stdio.Stdout, replPrompt)
			continue
		}

		if err := vm.Interpret(src); err != nil && errors.Is(err, machine.ErrCompile) {
			// Runtime errors are already printed by the VM with a frame trace;
			// compile diagnostics are already printed by the compiler, and only
			// the compile error's summary line is printed here.
			fmt.Fprintln(stdio.Stderr, err)
		}
		fmt.Fprint(stdio.Stdout, replPrompt)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		fmt.Fprintf(stdio.Stderr, "read error: %s\n", err)
	}
}
