package machine_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/von/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) (stdout, stderr string, err error) {
	t.Helper()
	cfg, cerr := machine.NewConfig()
	require.NoError(t, cerr)
	vm := machine.NewVM(cfg)
	var outBuf, errBuf bytes.Buffer
	vm.Stdout = &outBuf
	vm.Stderr = &errBuf
	err = vm.Interpret(src)
	return outBuf.String(), errBuf.String(), err
}

func TestEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic precedence", `print 1 + 2 * 3;`, "7\n"},
		{"block shadowing", `var a = 1; { var a = 2; print a; } print a;`, "2\n1\n"},
		{"closure over argument", `fun mk(x){ fun f(){ return x; } return f; } var c = mk(42); print c();`, "42\n"},
		{"closure mutates captured local", `fun cnt(){ var n = 0; fun inc(){ n = n + 1; return n; } return inc; } var c = cnt(); print c(); print c(); print c();`, "1\n2\n3\n"},
		{"if true branch", `if (1 < 2) print "y"; else print "n";`, "y\n"},
		{"if false branch", `if (1 > 2) print "y"; else print "n";`, "n\n"},
		{"while loop", `var i = 0; while (i < 3) { print i; i = i + 1; }`, "0\n1\n2\n"},
		{"instance field set/get", `class P { } var p = P(); p.x = 7; print p.x;`, "7\n"},
		{"string concatenation", `print "a" + "bc";`, "abc\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, errOut, err := run(t, tc.src)
			require.NoError(t, err, "stderr: %s", errOut)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestRuntimeErrorAddTypeMismatch(t *testing.T) {
	_, errOut, err := run(t, `1 + "x";`)
	require.Error(t, err)
	assert.ErrorIs(t, err, machine.ErrRuntime)
	assert.Contains(t, errOut, "Operands must be two numbers or two strings.")
}

func TestCompileErrorReadLocalInOwnInitializer(t *testing.T) {
	_, errOut, err := run(t, `{ var a = a; }`)
	require.Error(t, err)
	assert.ErrorIs(t, err, machine.ErrCompile)
	assert.Contains(t, errOut, "Can't read local variable in its own initializer.")
}

func TestClassesInheritanceAndSuper(t *testing.T) {
	src := `
class Animal {
  init(name) { this.name = name; }
  speak() { return this.name + " makes a sound"; }
}
class Dog : Animal {
  speak() { return super.speak() + " (bark)"; }
}
var d = Dog("Rex");
print d.speak();
`
	out, errOut, err := run(t, src)
	require.NoError(t, err, "stderr: %s", errOut)
	assert.Equal(t, "Rex makes a sound (bark)\n", out)
}

func TestSwitchStatement(t *testing.T) {
	src := `
fun classify(n) {
  switch (n) {
    case 1: return "one";
    case 2: return "two";
    default: return "many";
  }
}
print classify(1);
print classify(2);
print classify(9);
`
	out, errOut, err := run(t, src)
	require.NoError(t, err, "stderr: %s", errOut)
	assert.Equal(t, "one\ntwo\nmany\n", out)
}

// A case that doesn't return must leave the stack exactly as it found it, so
// a local declared after the switch lands in the right slot instead of
// reading a leftover OP_EQUAL boolean.
func TestSwitchNonReturningCaseLeavesStackBalanced(t *testing.T) {
	src := `
fun f() {
  var x = 1;
  switch (x) {
    case 1: print "m";
  }
  var y = 2;
  print y;
}
f();
`
	out, errOut, err := run(t, src)
	require.NoError(t, err, "stderr: %s", errOut)
	assert.Equal(t, "m\n2\n", out)
}

// Same hazard on the no-case-matched path: falling through to default (or
// past the switch with no default) must also leave the stack balanced.
func TestSwitchNoCaseMatchedLeavesStackBalanced(t *testing.T) {
	src := `
fun f() {
  var x = 9;
  switch (x) {
    case 1: print "m";
    default: print "d";
  }
  var y = 2;
  print y;
}
f();
`
	out, errOut, err := run(t, src)
	require.NoError(t, err, "stderr: %s", errOut)
	assert.Equal(t, "d\n2\n", out)
}

func TestUndefinedGlobalReadIsRuntimeError(t *testing.T) {
	_, errOut, err := run(t, `print undefinedThing;`)
	require.Error(t, err)
	assert.ErrorIs(t, err, machine.ErrRuntime)
	assert.True(t, strings.Contains(errOut, "Undefined variable"))
}

func TestDivisionByZeroProducesInfNotError(t *testing.T) {
	out, errOut, err := run(t, `print 1 / 0;`)
	require.NoError(t, err, "stderr: %s", errOut)
	assert.Equal(t, "inf\n", out)
}

func TestReplPersistsGlobalsAcrossInterpretCalls(t *testing.T) {
	cfg, err := machine.NewConfig()
	require.NoError(t, err)
	vm := machine.NewVM(cfg)
	var out bytes.Buffer
	vm.Stdout = &out

	require.NoError(t, vm.Interpret(`var counter = 0;`))
	require.NoError(t, vm.Interpret(`counter = counter + 1; print counter;`))
	require.NoError(t, vm.Interpret(`counter = counter + 1; print counter;`))
	assert.Equal(t, "1\n2\n", out.String())
}
