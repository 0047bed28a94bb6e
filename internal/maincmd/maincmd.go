// Package maincmd implements Von's CLI entry point: argument parsing, the
// REPL, file execution and the disassemble subcommand, following
// nenuphar's maincmd.Cmd shape (a Cmd struct parsed by mna/mainer, a Main
// method returning a mainer.ExitCode).
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"
)

const binName = "von"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<path>]
       %[1]s disassemble <path>
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s disassemble <path>
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and virtual machine for the %[1]s scripting language.

With no <path>, starts a line-oriented REPL. With a <path>, compiles and
runs the named source file.

The <disassemble> command compiles <path> and prints its bytecode instead
of running it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.

Exit codes: 0 success, 64 usage error, 65 compile error, 70 runtime error,
74 file read error.
`, binName)
)

// Exit codes Von's Non-goal-free CLI layer reports, per spec.md §6 --
// distinct from mainer's own generic Success/Failure/InvalidArgs, which the
// flag-parsing/help/version paths below still use since they precede any
// Von-specific failure.
const (
	exitUsage        mainer.ExitCode = 64
	exitFileError    mainer.ExitCode = 74
	exitCompileError mainer.ExitCode = 65
	exitRuntimeError mainer.ExitCode = 70
)

// mode identifies which of the three CLI behaviors Validate resolved args
// into.
type mode int

const (
	modeREPL mode = iota
	modeRun
	modeDisassemble
)

// Cmd is Von's mainer.Cmd implementation.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	args []string
	mode mode
	path string
}

func (c *Cmd) SetArgs(args []string)        { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

// Validate resolves c.args into a mode and (for run/disassemble) a source
// path, the way spec.md §6's CLI surface requires: bare invocation enters
// the REPL, one positional argument runs that file, `disassemble <path>`
// prints its compiled bytecode instead of running it.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	switch len(c.args) {
	case 0:
		c.mode = modeREPL
	case 1:
		if c.args[0] == "disassemble" {
			return errors.New("disassemble: path required")
		}
		c.mode = modeRun
		c.path = c.args[0]
	case 2:
		if c.args[0] != "disassemble" {
			return fmt.Errorf("unknown command: %s", c.args[0])
		}
		c.mode = modeDisassemble
		c.path = c.args[1]
	default:
		return errors.New("too many arguments")
	}
	return nil
}

// Main is the process entry point: parse flags, dispatch by mode, and map
// the result to a Von-specific exit code.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	if err := c.Validate(); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n%s", err, shortUsage)
		return exitUsage
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)

	switch c.mode {
	case modeREPL:
		runREPL(ctx, stdio)
		return mainer.Success
	case modeRun:
		return runFile(ctx, stdio, c.path)
	case modeDisassemble:
		return disassembleFile(stdio, c.path)
	default:
		return exitUsage
	}
}
