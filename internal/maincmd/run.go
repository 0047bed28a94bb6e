package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/von/lang/machine"
)

// runFile loads path (expanding any `import` directives), compiles it and
// runs it to completion, mapping the outcome to spec.md §6's exit codes.
func runFile(_ context.Context, stdio mainer.Stdio, path string) mainer.ExitCode {
	src, err := loadSource(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(stdio.Stderr, "could not open file %q\n", path)
		} else {
			fmt.Fprintf(stdio.Stderr, "could not read file %q: %s\n", path, err)
		}
		return exitFileError
	}

	cfg, err := machine.NewConfig()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid configuration: %s\n", err)
		return exitUsage
	}

	vm := machine.NewVM(cfg)
	vm.Stdout = stdio.Stdout
	vm.Stderr = stdio.Stderr

	if err := vm.Interpret(src); err != nil {
		switch {
		case errors.Is(err, machine.ErrCompile):
			// The compiler has already written each diagnostic to the VM's
			// Stderr; this adds the summary error line.
			fmt.Fprintln(stdio.Stderr, err)
			return exitCompileError
		case errors.Is(err, machine.ErrRuntime):
			// Runtime errors are already printed by the VM, with a frame trace.
			return exitRuntimeError
		default:
			fmt.Fprintln(stdio.Stderr, err)
			return exitRuntimeError
		}
	}
	return mainer.Success
}
