package maincmd

import (
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/von/internal/disasm"
	"github.com/mna/von/lang/compiler"
	"github.com/mna/von/lang/value"
)

// disassembleFile compiles path and prints its bytecode without running
// it, the introspection subcommand spec.md §1 calls out as a collaborator
// built alongside (but outside) the core pipeline.
func disassembleFile(stdio mainer.Stdio, path string) mainer.ExitCode {
	src, err := loadSource(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(stdio.Stderr, "could not open file %q\n", path)
		} else {
			fmt.Fprintf(stdio.Stderr, "could not read file %q: %s\n", path, err)
		}
		return exitFileError
	}

	alloc := value.NewAllocator()
	fn, err := compiler.Compile(src, alloc, stdio.Stderr)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return exitCompileError
	}

	disasm.Chunk(stdio.Stdout, "script", fn)
	return mainer.Success
}
