package compiler_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/mna/von/lang/compiler"
	"github.com/mna/von/lang/value"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) *value.ObjFunction {
	t.Helper()
	alloc := value.NewAllocator()
	fn, err := compiler.Compile(src, alloc, io.Discard)
	require.NoError(t, err)
	return fn
}

func ops(fn *value.ObjFunction) []value.OpCode {
	var out []value.OpCode
	code := fn.Chunk.Code
	for i := 0; i < len(code); {
		op := value.OpCode(code[i])
		out = append(out, op)
		switch op {
		case value.OpConstant, value.OpGetLocal, value.OpSetLocal, value.OpGetGlobal,
			value.OpDefineGlobal, value.OpSetGlobal, value.OpGetUpvalue, value.OpSetUpvalue,
			value.OpGetProperty, value.OpSetProperty, value.OpGetSuper, value.OpCall,
			value.OpClass, value.OpMethod:
			i += 2
		case value.OpJump, value.OpJumpIfFalse, value.OpLoop:
			i += 3
		case value.OpClosure:
			idx := code[i+1]
			nested := fn.Chunk.Constants[idx].AsObj().(*value.ObjFunction)
			i += 2 + 2*nested.UpvalueCount
		default:
			i++
		}
	}
	return out
}

func TestNumberLiteralCompilesToConstantAndPop(t *testing.T) {
	fn := compile(t, "1.5;")
	require.Equal(t, []value.OpCode{value.OpConstant, value.OpPop, value.OpNil, value.OpReturn}, ops(fn))
}

func TestGlobalVarRoundTrip(t *testing.T) {
	fn := compile(t, "var x = 1; x;")
	got := ops(fn)
	require.Contains(t, got, value.OpDefineGlobal)
	require.Contains(t, got, value.OpGetGlobal)
}

func TestLocalVarUsesLocalOpsNotGlobalOps(t *testing.T) {
	fn := compile(t, "{ var x = 1; print x; }")
	got := ops(fn)
	require.Contains(t, got, value.OpGetLocal)
	require.NotContains(t, got, value.OpGetGlobal)
	require.NotContains(t, got, value.OpDefineGlobal)
}

func TestIfElseEmitsTwoJumps(t *testing.T) {
	fn := compile(t, `if (true) { print 1; } else { print 2; }`)
	got := ops(fn)
	var jumpIfFalse, jump int
	for _, op := range got {
		if op == value.OpJumpIfFalse {
			jumpIfFalse++
		}
		if op == value.OpJump {
			jump++
		}
	}
	require.Equal(t, 1, jumpIfFalse)
	require.Equal(t, 1, jump)
}

func TestWhileLoopEmitsLoop(t *testing.T) {
	fn := compile(t, `var i = 0; while (i < 3) { i = i + 1; }`)
	require.Contains(t, ops(fn), value.OpLoop)
}

func TestClosureCapturesEnclosingLocalAsUpvalue(t *testing.T) {
	fn := compile(t, `
fun outer() {
  var x = 1;
  fun inner() { return x; }
  return inner;
}`)
	// outer's body is itself compiled as a nested function constant.
	var outerFn *value.ObjFunction
	for _, c := range fn.Chunk.Constants {
		if c.IsObj() {
			if f, ok := c.AsObj().(*value.ObjFunction); ok && f.Name != nil && f.Name.Chars == "outer" {
				outerFn = f
			}
		}
	}
	require.NotNil(t, outerFn)
	require.Contains(t, ops(outerFn), value.OpClosure)

	var innerFn *value.ObjFunction
	for _, c := range outerFn.Chunk.Constants {
		if c.IsObj() {
			if f, ok := c.AsObj().(*value.ObjFunction); ok && f.Name != nil && f.Name.Chars == "inner" {
				innerFn = f
			}
		}
	}
	require.NotNil(t, innerFn)
	require.Equal(t, 1, innerFn.UpvalueCount)
	require.Contains(t, ops(innerFn), value.OpGetUpvalue)
}

func TestClassDeclEmitsClassAndMethod(t *testing.T) {
	fn := compile(t, `class Greeter { greet() { print "hi"; } }`)
	got := ops(fn)
	require.Contains(t, got, value.OpClass)
	require.Contains(t, got, value.OpMethod)
}

func TestSubclassEmitsInherit(t *testing.T) {
	fn := compile(t, `
class Animal { speak() { print "..."; } }
class Dog : Animal { speak() { super.speak(); } }`)
	require.Contains(t, ops(fn), value.OpInherit)
}

func TestSwitchStatementCompilesWithoutError(t *testing.T) {
	fn := compile(t, `
var x = 2;
switch (x) {
case 1: print "one";
case 2: print "two";
default: print "other";
}`)
	got := ops(fn)
	require.Contains(t, got, value.OpEqual)
	require.Contains(t, got, value.OpJumpIfFalse)
}

func TestCompileErrorOnReadLocalInOwnInitializer(t *testing.T) {
	alloc := value.NewAllocator()
	var errOut bytes.Buffer
	_, err := compiler.Compile(`{ var a = a; }`, alloc, &errOut)
	require.Error(t, err)
	require.Contains(t, errOut.String(), "Can't read local variable in its own initializer.")
}

func TestCompileErrorOnUnterminatedBlock(t *testing.T) {
	alloc := value.NewAllocator()
	var errOut bytes.Buffer
	_, err := compiler.Compile(`{ var a = 1;`, alloc, &errOut)
	require.Error(t, err)
	require.NotEmpty(t, errOut.String())
}

func TestStringConstantsAreDeduplicated(t *testing.T) {
	fn := compile(t, `print "same"; print "same"; print "same";`)
	count := 0
	for _, c := range fn.Chunk.Constants {
		if c.IsObj() {
			if s, ok := c.AsObj().(*value.ObjString); ok && s.Chars == "same" {
				count++
			}
		}
	}
	require.Equal(t, 1, count)
}
