// Package disasm prints a Chunk's instructions in human-readable form, one
// line per instruction: byte offset, source line (or `|` if unchanged from
// the previous instruction), mnemonic and decoded operand. It is a
// collaborator outside the core pipeline (spec.md §1), grounded on
// nenuphar's compiler/asm.go disassembly half -- Von has no use for that
// file's textual-assembler half, since Chunks are never hand-authored.
package disasm

import (
	"fmt"
	"io"

	"github.com/mna/von/lang/value"
)

// Chunk prints fn's chunk to w under the given name, followed by each
// nested function constant's chunk (recursively), matching clox's
// disassembleChunk behavior of descending into OP_CLOSURE constants.
func Chunk(w io.Writer, name string, fn *value.ObjFunction) {
	fmt.Fprintf(w, "== %s ==\n", name)
	c := &fn.Chunk
	for offset := 0; offset < len(c.Code); {
		offset = Instruction(w, c, offset)
	}
	for _, v := range c.Constants {
		if nested, ok := v.AsObj().(*value.ObjFunction); v.IsObj() && ok {
			childName := "<fn>"
			if nested.Name != nil {
				childName = nested.Name.Chars
			}
			Chunk(w, childName, nested)
		}
	}
}

// Instruction prints the instruction at offset and returns the offset of
// the next one.
func Instruction(w io.Writer, c *value.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.LineAt(offset) == c.LineAt(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.LineAt(offset))
	}

	op := value.OpCode(c.Code[offset])
	switch op {
	case value.OpConstant:
		return constantInstr(w, op, c, offset)
	case value.OpGetLocal, value.OpSetLocal, value.OpGetUpvalue, value.OpSetUpvalue,
		value.OpCall:
		return byteInstr(w, op, c, offset)
	case value.OpGetGlobal, value.OpDefineGlobal, value.OpSetGlobal,
		value.OpGetProperty, value.OpSetProperty, value.OpGetSuper,
		value.OpClass, value.OpMethod:
		return constantInstr(w, op, c, offset)
	case value.OpJump, value.OpJumpIfFalse:
		return jumpInstr(w, op, c, offset, 1)
	case value.OpLoop:
		return jumpInstr(w, op, c, offset, -1)
	case value.OpClosure:
		return closureInstr(w, c, offset)
	default:
		return simpleInstr(w, op, offset)
	}
}

func simpleInstr(w io.Writer, op value.OpCode, offset int) int {
	fmt.Fprintln(w, op)
	return offset + 1
}

func byteInstr(w io.Writer, op value.OpCode, c *value.Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", op, slot)
	return offset + 2
}

func constantInstr(w io.Writer, op value.OpCode, c *value.Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, c.Constants[idx].String())
	return offset + 2
}

func jumpInstr(w io.Writer, op value.OpCode, c *value.Chunk, offset, sign int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func closureInstr(w io.Writer, c *value.Chunk, offset int) int {
	offset++
	idx := c.Code[offset]
	offset++
	fn := c.Constants[idx].AsObj().(*value.ObjFunction)
	fmt.Fprintf(w, "%-16s %4d '%s'\n", value.OpClosure, idx, fn.String())

	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := c.Code[offset]
		offset++
		index := c.Code[offset]
		offset++
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}
