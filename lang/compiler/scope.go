package compiler

import (
	"github.com/mna/von/lang/token"
	"github.com/mna/von/lang/value"
)

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope pops every local declared in the scope just left, emitting
// OP_CLOSE_UPVALUE for any that were captured by a nested closure and
// OP_POP otherwise (spec.md §4.2).
func (c *Compiler) endScope() {
	c.scopeDepth--
	for c.localCount > 0 && c.locals[c.localCount-1].Depth > c.scopeDepth {
		if c.locals[c.localCount-1].IsCaptured {
			c.emitOp(value.OpCloseUpvalue)
		} else {
			c.emitOp(value.OpPop)
		}
		c.localCount--
	}
}

// parseVariable consumes an identifier and either declares it as a local
// (scopeDepth > 0) or returns its constant-pool index for a later
// DEFINE_GLOBAL (scopeDepth == 0).
func (c *Compiler) parseVariable(errMsg string) byte {
	c.p.consume(token.IDENT, errMsg)
	c.declareVariable(c.p.previous.Lexeme(c.p.src))
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.p.previous)
}

// declareVariable registers name as a local in the current scope,
// rejecting a redeclaration within the same scope.
func (c *Compiler) declareVariable(name string) {
	if c.scopeDepth == 0 {
		return
	}
	for i := c.localCount - 1; i >= 0; i-- {
		local := &c.locals[i]
		if local.Depth != -1 && local.Depth < c.scopeDepth {
			break
		}
		if name == local.Name {
			c.p.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) {
	if c.localCount == maxLocals {
		c.p.error("Too many local variables in function.")
		return
	}
	local := &c.locals[c.localCount]
	c.localCount++
	local.Name = name
	local.Depth = -1
	local.IsCaptured = false
}

// defineVariable marks a local as initialized (making it visible to reads)
// or emits OP_DEFINE_GLOBAL for a global.
func (c *Compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(value.OpDefineGlobal, global)
}

func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[c.localCount-1].Depth = c.scopeDepth
}

// resolveLocal searches locals back-to-front for name, erroring if found
// but not yet initialized ("Can't read local variable in its own
// initializer.").
func (c *Compiler) resolveLocal(name string) int {
	for i := c.localCount - 1; i >= 0; i-- {
		local := &c.locals[i]
		if name == local.Name {
			if local.Depth == -1 {
				c.p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue recursively searches enclosing compilers for name, adding
// an upvalue entry at each level on the way back out and marking the
// captured local as such (spec.md §4.2, §3).
func (c *Compiler) resolveUpvalue(name string) int {
	if c.enclosing == nil {
		return -1
	}
	if local := c.enclosing.resolveLocal(name); local != -1 {
		c.enclosing.locals[local].IsCaptured = true
		return c.addUpvalue(byte(local), true)
	}
	if up := c.enclosing.resolveUpvalue(name); up != -1 {
		return c.addUpvalue(byte(up), false)
	}
	return -1
}

func (c *Compiler) addUpvalue(index byte, isLocal bool) int {
	for i := 0; i < c.upvalueCount; i++ {
		up := &c.upvalues[i]
		if up.Index == index && up.IsLocal == isLocal {
			return i
		}
	}
	if c.upvalueCount == maxUpvalues {
		c.p.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues[c.upvalueCount] = Upvalue{Index: index, IsLocal: isLocal}
	c.function.UpvalueCount = c.upvalueCount + 1
	c.upvalueCount++
	return c.upvalueCount - 1
}
