package compiler

import (
	"strconv"

	"github.com/mna/von/lang/token"
	"github.com/mna/von/lang/value"
)

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence is the heart of the Pratt parser (spec.md §4.2): it
// consumes one token, dispatches its prefix rule, then keeps consuming and
// dispatching infix rules as long as they bind at least as tightly as prec.
func (c *Compiler) parsePrecedence(prec Precedence) {
	c.p.advance()
	prefixRule := ruleFor(c.p.previous.Type).prefix
	if prefixRule == nil {
		c.p.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefixRule(c, canAssign)

	for prec <= ruleFor(c.p.current.Type).precedence {
		c.p.advance()
		infixRule := ruleFor(c.p.previous.Type).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.p.match(token.EQ) {
		c.p.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(_ bool) {
	lexeme := c.p.previous.Lexeme(c.p.src)
	n, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		c.p.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

func (c *Compiler) string(_ bool) {
	lexeme := c.p.previous.Lexeme(c.p.src)
	// strip the surrounding quotes
	s := lexeme[1 : len(lexeme)-1]
	c.emitOpByte(value.OpConstant, c.stringConstant(s))
}

func (c *Compiler) literal(_ bool) {
	switch c.p.previous.Type {
	case token.FALSE:
		c.emitOp(value.OpFalse)
	case token.TRUE:
		c.emitOp(value.OpTrue)
	case token.NIL:
		c.emitOp(value.OpNil)
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.p.consume(token.RPAREN, "Expect ')' after expression.")
}

func (c *Compiler) unary(_ bool) {
	opType := c.p.previous.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case token.BANG:
		c.emitOp(value.OpNot)
	case token.MINUS:
		c.emitOp(value.OpNegate)
	}
}

func (c *Compiler) binary(_ bool) {
	opType := c.p.previous.Type
	r := ruleFor(opType)
	c.parsePrecedence(r.precedence + 1)
	switch opType {
	case token.BANGEQ:
		c.emitOps(value.OpEqual, value.OpNot)
	case token.EQEQ:
		c.emitOp(value.OpEqual)
	case token.GT:
		c.emitOp(value.OpGreater)
	case token.GE:
		c.emitOps(value.OpLess, value.OpNot)
	case token.LT:
		c.emitOp(value.OpLess)
	case token.LE:
		c.emitOps(value.OpGreater, value.OpNot)
	case token.PLUS:
		c.emitOp(value.OpAdd)
	case token.MINUS:
		c.emitOp(value.OpSubtract)
	case token.STAR:
		c.emitOp(value.OpMultiply)
	case token.SLASH:
		c.emitOp(value.OpDivide)
	}
}

func (c *Compiler) and(_ bool) {
	endJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(_ bool) {
	elseJump := c.emitJump(value.OpJumpIfFalse)
	endJump := c.emitJump(value.OpJump)
	c.patchJump(elseJump)
	c.emitOp(value.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(_ bool) {
	argCount := c.argumentList()
	c.emitOpByte(value.OpCall, argCount)
}

func (c *Compiler) argumentList() byte {
	var count int
	if !c.p.check(token.RPAREN) {
		for {
			c.expression()
			if count == 255 {
				c.p.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.p.match(token.COMMA) {
				break
			}
		}
	}
	c.p.consume(token.RPAREN, "Expect ')' after arguments.")
	return byte(count)
}

func (c *Compiler) dot(canAssign bool) {
	c.p.consume(token.IDENT, "Expect property name after '.'.")
	name := c.identifierConstant(c.p.previous)

	if canAssign && c.p.match(token.EQ) {
		c.expression()
		c.emitOpByte(value.OpSetProperty, name)
		return
	}
	c.emitOpByte(value.OpGetProperty, name)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.p.previous.Lexeme(c.p.src), canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp value.OpCode
	arg := c.resolveLocal(name)
	if arg != -1 {
		getOp, setOp = value.OpGetLocal, value.OpSetLocal
	} else if arg = c.resolveUpvalue(name); arg != -1 {
		getOp, setOp = value.OpGetUpvalue, value.OpSetUpvalue
	} else {
		arg = int(c.stringConstant(name))
		getOp, setOp = value.OpGetGlobal, value.OpSetGlobal
	}

	if canAssign && c.p.match(token.EQ) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *Compiler) this(_ bool) {
	if c.class == nil {
		c.p.error("Can't use 'this' outside of a class.")
		return
	}
	// `this` resolves to the reserved slot-0 local every method/initializer
	// Compiler declares (see newCompiler); it behaves as a read-only local.
	c.namedVariable("this", false)
}

func (c *Compiler) super(_ bool) {
	if c.class == nil {
		c.p.error("Can't use 'super' outside of a class.")
	} else if !c.class.hasSuperclass {
		c.p.error("Can't use 'super' in a class with no superclass.")
	}
	c.p.consume(token.DOT, "Expect '.' after 'super'.")
	c.p.consume(token.IDENT, "Expect superclass method name.")
	name := c.identifierConstant(c.p.previous)

	// OP_GET_SUPER binds the method to the value just below the superclass,
	// so the receiver must be on top before any call arguments are pushed.
	c.namedVariable("this", false)
	c.namedVariable("super", false)
	c.emitOpByte(value.OpGetSuper, name)
	if c.p.match(token.LPAREN) {
		argCount := c.argumentList()
		c.emitOpByte(value.OpCall, argCount)
	}
}
