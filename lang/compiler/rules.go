package compiler

import "github.com/mna/von/lang/token"

// Precedence is the Pratt-parser precedence ladder (spec.md §4.2), low to
// high.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

// parseFn is either a prefix or infix parse function. canAssign tells it
// whether `=` may legally follow (only true at PrecAssignment or below).
type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is indexed by token.Token. It is built once, as data, specifically
// to avoid the mutually-recursive-function-pointer-cycle problem spec.md §9
// calls out: every entry here just names a Compiler method, and dispatch
// happens inside parsePrecedence via ordinary Go method calls.
var rules [int(token.EOF) + 64]rule

func init() {
	set := func(tok token.Token, prefix, infix parseFn, prec Precedence) {
		rules[tok] = rule{prefix: prefix, infix: infix, precedence: prec}
	}

	set(token.LPAREN, (*Compiler).grouping, (*Compiler).call, PrecCall)
	set(token.DOT, nil, (*Compiler).dot, PrecCall)
	set(token.MINUS, (*Compiler).unary, (*Compiler).binary, PrecTerm)
	set(token.PLUS, nil, (*Compiler).binary, PrecTerm)
	set(token.SLASH, nil, (*Compiler).binary, PrecFactor)
	set(token.STAR, nil, (*Compiler).binary, PrecFactor)
	set(token.BANG, (*Compiler).unary, nil, PrecNone)
	set(token.BANGEQ, nil, (*Compiler).binary, PrecEquality)
	set(token.EQEQ, nil, (*Compiler).binary, PrecEquality)
	set(token.GT, nil, (*Compiler).binary, PrecComparison)
	set(token.GE, nil, (*Compiler).binary, PrecComparison)
	set(token.LT, nil, (*Compiler).binary, PrecComparison)
	set(token.LE, nil, (*Compiler).binary, PrecComparison)
	set(token.IDENT, (*Compiler).variable, nil, PrecNone)
	set(token.STRING, (*Compiler).string, nil, PrecNone)
	set(token.NUMBER, (*Compiler).number, nil, PrecNone)
	set(token.AND, nil, (*Compiler).and, PrecAnd)
	set(token.OR, nil, (*Compiler).or, PrecOr)
	set(token.FALSE, (*Compiler).literal, nil, PrecNone)
	set(token.TRUE, (*Compiler).literal, nil, PrecNone)
	set(token.NIL, (*Compiler).literal, nil, PrecNone)
	set(token.THIS, (*Compiler).this, nil, PrecNone)
	set(token.SUPER, (*Compiler).super, nil, PrecNone)
}

func ruleFor(tok token.Token) *rule { return &rules[tok] }
