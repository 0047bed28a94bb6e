// Package compiler implements Von's single-pass Pratt parser/compiler: it
// consumes tokens from the scanner and emits bytecode directly into a Chunk,
// with no intermediate AST (spec.md §4.2, §9).
package compiler

import (
	"errors"
	"fmt"
	"io"

	"github.com/dolthub/swiss"
	"github.com/mna/von/lang/scanner"
	"github.com/mna/von/lang/token"
	"github.com/mna/von/lang/value"
)

// FunctionType distinguishes the kind of function body currently being
// compiled, which changes how `return`, `this` and the reserved slot-0
// local behave.
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

const (
	maxLocals   = 256
	maxUpvalues = 256
	maxParams   = 255
)

// Local is a compile-time record of a local variable's name and scope
// depth; depth == -1 means "declared but not yet initialized" (spec.md §3).
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// Upvalue is a compile-time record of a captured outer local or upvalue.
type Upvalue struct {
	Index   uint8
	IsLocal bool
}

// classCompiler tracks lexical nesting of class bodies, for resolving
// `this` and `super`.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Compiler holds the state for compiling one function body (the top-level
// script is itself a function). Each nested function/method pushes a new
// Compiler linked to its enclosing one via enclosing (spec.md §3,
// "Compiler state").
type Compiler struct {
	enclosing *Compiler

	function *value.ObjFunction
	funcType FunctionType

	locals     [maxLocals]Local
	localCount int
	scopeDepth int

	upvalues     [maxUpvalues]Upvalue
	upvalueCount int

	class *classCompiler

	p *parser

	// stringConsts deduplicates string/identifier constants added to this
	// function's constant pool during compilation -- a compile-time-only
	// concern, distinct from the VM's runtime string-interning invariant.
	stringConsts *swiss.Map[string, uint8]
}

// parser is the token-stream side of the pipeline, shared by every nested
// Compiler for a single Compile call.
type parser struct {
	src       []byte
	scan      scanner.Scanner
	current   scanner.Token
	previous  scanner.Token
	hadError  bool
	panicMode bool
	alloc     *value.Allocator
	errOut    io.Writer
}

// Compile compiles source into a top-level script Function, or returns an
// error if any compile error was reported. alloc is the heap the resulting
// Function's constant-pool strings (and the Function itself) are allocated
// from; it is normally the same Allocator the VM that will run the result
// uses for everything else, so that string identity holds across the
// compile/run boundary. Compile errors are written to errOut, the same way
// the VM writes runtime errors to its own caller-supplied Stderr.
func Compile(source string, alloc *value.Allocator, errOut io.Writer) (*value.ObjFunction, error) {
	p := &parser{src: []byte(source), alloc: alloc, errOut: errOut}
	p.scan.Init(p.src)

	c := newCompiler(p, nil, TypeScript, nil)
	p.advance()
	for !p.check(token.EOF) {
		c.declaration()
	}
	p.consume(token.EOF, "Expect end of expression.")
	fn := c.finish()

	if p.hadError {
		return nil, errors.New("compile error")
	}
	return fn, nil
}

func newCompiler(p *parser, enclosing *Compiler, typ FunctionType, class *classCompiler) *Compiler {
	c := &Compiler{
		enclosing:    enclosing,
		function:     p.alloc.NewFunction(),
		funcType:     typ,
		p:            p,
		class:        class,
		stringConsts: swiss.NewMap[string, uint8](8),
	}
	// Slot 0 is reserved: for methods/initializers it holds the receiver
	// (named "this"), for plain functions and the top-level script it holds
	// the implicit callee and is never referenced by name (spec.md §4.2).
	local := &c.locals[0]
	c.localCount = 1
	local.Depth = 0
	if typ == TypeMethod || typ == TypeInitializer {
		local.Name = "this"
	}
	return c
}

// ---- error reporting ----

func (p *parser) errorAt(tok scanner.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	if tok.Type == token.EOF {
		fmt.Fprintf(p.errOut, "[line %d] Error at end: %s\n", tok.Line, msg)
		return
	}
	if tok.Type == token.ILLEGAL {
		fmt.Fprintf(p.errOut, "[line %d] Error: %s\n", tok.Line, tok.Msg)
		return
	}
	fmt.Fprintf(p.errOut, "[line %d] Error at '%s': %s\n", tok.Line, tok.Lexeme(p.src), msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.previous, msg) }

// ---- token stream ----

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scan.Scan()
		if p.current.Type != token.ILLEGAL {
			break
		}
		p.errorAtCurrent(p.current.Msg)
	}
}

func (p *parser) check(t token.Token) bool { return p.current.Type == t }

func (p *parser) match(t token.Token) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(t token.Token, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

// synchronize discards tokens until it reaches a likely statement boundary,
// suppressing cascaded errors (spec.md §4.2).
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Type != token.EOF {
		if p.previous.Type == token.SEMI {
			return
		}
		switch p.current.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN, token.SWITCH:
			return
		}
		p.advance()
	}
}

// ---- function compile teardown ----

func (c *Compiler) finish() *value.ObjFunction {
	c.emitReturn()
	return c.function
}

func (c *Compiler) currentChunk() *value.Chunk { return &c.function.Chunk }
