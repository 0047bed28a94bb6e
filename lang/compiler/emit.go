package compiler

import (
	"github.com/mna/von/lang/scanner"
	"github.com/mna/von/lang/value"
)

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().Write(b, c.p.previous.Line)
}

func (c *Compiler) emitOp(op value.OpCode) {
	c.currentChunk().WriteOp(op, c.p.previous.Line)
}

func (c *Compiler) emitOps(op1, op2 value.OpCode) {
	c.emitOp(op1)
	c.emitOp(op2)
}

func (c *Compiler) emitOpByte(op value.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

// emitJump emits a jump opcode and a 16-bit placeholder operand, returning
// the offset of the first placeholder byte so patchJump can fix it up once
// the jump target is known (spec.md §4.2).
func (c *Compiler) emitJump(op value.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.currentChunk().Code) - 2
}

// patchJump backfills the 16-bit operand at offset with the distance from
// just after the operand to the current end of the chunk.
func (c *Compiler) patchJump(offset int) {
	jump := len(c.currentChunk().Code) - offset - 2
	if jump > 0xffff {
		c.p.error("Too much code to jump over.")
		return
	}
	code := c.currentChunk().Code
	code[offset] = byte(jump >> 8)
	code[offset+1] = byte(jump & 0xff)
}

// emitLoop emits OP_LOOP with a 16-bit backward delta to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(value.OpLoop)
	offset := len(c.currentChunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.p.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xff))
}

func (c *Compiler) emitReturn() {
	if c.funcType == TypeInitializer {
		// `return;` inside an initializer returns the receiver, slot 0.
		c.emitOpByte(value.OpGetLocal, 0)
	} else {
		c.emitOp(value.OpNil)
	}
	c.emitOp(value.OpReturn)
}

// makeConstant appends v to the current function's constant pool, erroring
// if the pool overflows the single-byte operand used to index it.
func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.currentChunk().AddConstant(v)
	if idx > 0xff {
		c.p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpByte(value.OpConstant, c.makeConstant(v))
}

// stringConstant interns s in the shared heap and returns its constant-pool
// index, reusing an existing slot in this function's constant pool if s was
// already added (the compile-time dedup cache mentioned in SPEC_FULL.md;
// not to be confused with the VM's runtime string-interning table, which
// alloc.InternString below also maintains).
func (c *Compiler) stringConstant(s string) byte {
	if idx, ok := c.stringConsts.Get(s); ok {
		return idx
	}
	str := c.p.alloc.InternString(s)
	idx := c.makeConstant(value.Obj(str))
	c.stringConsts.Put(s, idx)
	return idx
}

func (c *Compiler) identifierConstant(tok scanner.Token) byte {
	return c.stringConstant(tok.Lexeme(c.p.src))
}
