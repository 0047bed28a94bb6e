// Package machine implements Von's bytecode virtual machine: a stack-based
// dispatch loop over the opcodes lang/compiler emits, a call-frame stack,
// upvalue capture/closing, and a mark-sweep garbage collector over the heap
// lang/value's Allocator owns (spec.md §4.3, §4.5).
package machine

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mna/von/lang/compiler"
	"github.com/mna/von/lang/value"
	"golang.org/x/exp/slices"
)

// ErrCompile and ErrRuntime are sentinels maincmd matches against with
// errors.Is to pick the right process exit code (spec.md §6).
var (
	ErrCompile = errors.New("compile error")
	ErrRuntime = errors.New("runtime error")
)

// VM is Von's single execution context: exactly one per interpreted program
// or REPL session, since Von is explicitly single-threaded (spec.md §5).
// Its heap, globals and interned strings persist across repeated Interpret
// calls so a REPL session accumulates state the way spec §5 requires.
type VM struct {
	stack      []value.Value
	frames     []CallFrame
	frameCount int

	openUpvalues []*value.ObjUpvalue // sorted by descending Slot

	globals    *value.Table
	alloc      *value.Allocator
	cfg        Config
	initString *value.ObjString

	nextGC int
	gray   []value.Object

	lastCallErr string

	Stdout io.Writer
	Stderr io.Writer
}

// NewVM creates a VM with its own heap and globals table, ready for repeated
// Interpret calls.
func NewVM(cfg Config) *VM {
	alloc := value.NewAllocator()
	vm := &VM{
		stack:      make([]value.Value, 0, cfg.StackMaxValues),
		frames:     make([]CallFrame, cfg.StackMaxFrames),
		globals:    value.NewTable(),
		alloc:      alloc,
		cfg:        cfg,
		initString: alloc.InternString("init"),
		nextGC:     cfg.GCInitialThresh,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
	return vm
}

// Interpret compiles source and runs it to completion. It wraps the
// top-level script Function in a Closure and calls it with zero arguments,
// exactly as spec.md §4.3 describes.
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source, vm.alloc, vm.Stderr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompile, err)
	}

	closure := vm.alloc.NewClosure(fn)
	vm.push(value.Obj(closure))
	if !vm.call(closure, 0) {
		err := fmt.Errorf("%w: %s", ErrRuntime, vm.lastCallErr)
		vm.stack = vm.stack[:0]
		vm.frameCount = 0
		return err
	}
	return vm.run()
}

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) currentFrame() *CallFrame { return &vm.frames[vm.frameCount-1] }

// run is the fetch-decode-execute loop. Every arithmetic/comparison op
// pops its operands, type-checks, and pushes a result; a type mismatch
// raises a runtime error (spec.md §4.3, §7).
func (vm *VM) run() error {
	frame := vm.currentFrame()

	readByte := func() byte {
		b := frame.chunk().Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := frame.chunk().Code[frame.ip]
		lo := frame.chunk().Code[frame.ip+1]
		frame.ip += 2
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value {
		return frame.chunk().Constants[readByte()]
	}
	readString := func() *value.ObjString {
		return readConstant().AsObj().(*value.ObjString)
	}

	for {
		if vm.cfg.TraceExec {
			fmt.Fprintf(vm.Stderr, "          [ip=%d op=%s]\n", frame.ip, value.OpCode(frame.chunk().Code[frame.ip]))
		}

		op := value.OpCode(readByte())
		switch op {
		case value.OpConstant:
			vm.push(readConstant())
		case value.OpNil:
			vm.push(value.Nil)
		case value.OpTrue:
			vm.push(value.Bool(true))
		case value.OpFalse:
			vm.push(value.Bool(false))
		case value.OpPop:
			vm.pop()

		case value.OpGetLocal:
			slot := int(readByte())
			vm.push(vm.stack[frame.base+slot])
		case value.OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.base+slot] = vm.peek(0)

		case value.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case value.OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case value.OpSetGlobal:
			name := readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case value.OpGetUpvalue:
			slot := int(readByte())
			vm.push(vm.readUpvalue(frame.closure.Upvalues[slot]))
		case value.OpSetUpvalue:
			slot := int(readByte())
			vm.writeUpvalue(frame.closure.Upvalues[slot], vm.peek(0))

		case value.OpGetProperty:
			inst, ok := asInstance(vm.peek(0))
			if !ok {
				return vm.runtimeError("Only instances have properties.")
			}
			name := readString()
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop() // instance
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return vm.runtimeError("Undefined property '%s'.", name.Chars)
			}
		case value.OpSetProperty:
			inst, ok := asInstance(vm.peek(1))
			if !ok {
				return vm.runtimeError("Only instances have fields.")
			}
			name := readString()
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop() // instance
			vm.push(v)

		case value.OpGetSuper:
			name := readString()
			superclass := vm.pop().AsObj().(*value.ObjClass)
			if !vm.bindMethod(superclass, name) {
				return vm.runtimeError("Undefined property '%s'.", name.Chars)
			}

		case value.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case value.OpGreater:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.Bool(a > b) }); err != nil {
				return err
			}
		case value.OpLess:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.Bool(a < b) }); err != nil {
				return err
			}

		case value.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case value.OpSubtract:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.Number(a - b) }); err != nil {
				return err
			}
		case value.OpMultiply:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.Number(a * b) }); err != nil {
				return err
			}
		case value.OpDivide:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.Number(a / b) }); err != nil {
				return err
			}

		case value.OpNot:
			vm.push(value.Bool(vm.pop().Falsy()))
		case value.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case value.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop().String())

		case value.OpJump:
			offset := readShort()
			frame.ip += offset
		case value.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).Falsy() {
				frame.ip += offset
			}
		case value.OpLoop:
			offset := readShort()
			frame.ip -= offset

		case value.OpCall:
			argCount := int(readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return vm.runtimeError("%s", vm.lastCallErr)
			}
			frame = vm.currentFrame()

		case value.OpClosure:
			fn := readConstant().AsObj().(*value.ObjFunction)
			closure := vm.alloc.NewClosure(fn)
			vm.push(value.Obj(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := int(readByte())
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.base + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			vm.maybeCollect()

		case value.OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case value.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop() // the top-level script closure
				return nil
			}
			vm.stack = vm.stack[:frame.base]
			vm.push(result)
			frame = vm.currentFrame()

		case value.OpClass:
			name := readString()
			vm.push(value.Obj(vm.alloc.NewClass(name)))
			vm.maybeCollect()

		case value.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := asClass(superVal)
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).AsObj().(*value.ObjClass)
			subclass.Superclass = superclass
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop() // subclass

		case value.OpMethod:
			name := readString()
			vm.defineMethod(name)

		default:
			return vm.runtimeError("unknown opcode %s", op)
		}
	}
}

func asInstance(v value.Value) (*value.ObjInstance, bool) {
	if !v.IsObj() {
		return nil, false
	}
	inst, ok := v.AsObj().(*value.ObjInstance)
	return inst, ok
}

func asClass(v value.Value) (*value.ObjClass, bool) {
	if !v.IsObj() {
		return nil, false
	}
	cls, ok := v.AsObj().(*value.ObjClass)
	return cls, ok
}

func isString(v value.Value) bool {
	if !v.IsObj() {
		return false
	}
	_, ok := v.AsObj().(*value.ObjString)
	return ok
}

// readUpvalue dereferences an (open or closed) upvalue: open ones live at
// their captured absolute stack slot, closed ones own their value directly
// (spec.md §3, §9's "stack-index references" reformulation of clox's raw
// pointer).
func (vm *VM) readUpvalue(uv *value.ObjUpvalue) value.Value {
	if uv.IsClosed {
		return uv.Closed
	}
	return vm.stack[uv.Slot]
}

func (vm *VM) writeUpvalue(uv *value.ObjUpvalue, v value.Value) {
	if uv.IsClosed {
		uv.Closed = v
	} else {
		vm.stack[uv.Slot] = v
	}
}

// binaryNumberOp pops two numbers, applies op and pushes the result;
// non-number operands raise a runtime error.
func (vm *VM) binaryNumberOp(op func(a, b float64) value.Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(op(a, b))
	return nil
}

// add implements OP_ADD's dual numeric/string behavior (spec.md §4.3): both
// numbers add, both strings concatenate into a freshly interned string,
// anything else is a runtime error.
func (vm *VM) add() error {
	bv, av := vm.peek(0), vm.peek(1)
	switch {
	case av.IsNumber() && bv.IsNumber():
		b := vm.pop().AsNumber()
		a := vm.pop().AsNumber()
		vm.push(value.Number(a + b))
	case isString(av) && isString(bv):
		b := vm.pop().AsObj().(*value.ObjString)
		a := vm.pop().AsObj().(*value.ObjString)
		result := vm.alloc.InternString(a.Chars + b.Chars)
		vm.push(value.Obj(result))
		vm.maybeCollect()
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	return nil
}

// callValue dispatches OP_CALL on the callee's object tag (spec.md §4.3).
func (vm *VM) callValue(callee value.Value, argCount int) bool {
	if !callee.IsObj() {
		vm.lastCallErr = "Can only call functions and classes."
		return false
	}
	switch obj := callee.AsObj().(type) {
	case *value.ObjClosure:
		return vm.call(obj, argCount)
	case *value.ObjClass:
		inst := vm.alloc.NewInstance(obj)
		vm.stack[len(vm.stack)-argCount-1] = value.Obj(inst)
		if initializer, ok := obj.Methods.Get(vm.initString); ok {
			return vm.call(initializer.AsObj().(*value.ObjClosure), argCount)
		} else if argCount != 0 {
			vm.lastCallErr = fmt.Sprintf("Expected 0 arguments but got %d.", argCount)
			return false
		}
		return true
	case *value.ObjBoundMethod:
		vm.stack[len(vm.stack)-argCount-1] = obj.Receiver
		return vm.call(obj.Method, argCount)
	default:
		vm.lastCallErr = "Can only call functions and classes."
		return false
	}
}

func (vm *VM) call(closure *value.ObjClosure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.lastCallErr = fmt.Sprintf("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
		return false
	}
	if vm.frameCount == len(vm.frames) {
		vm.lastCallErr = "Stack overflow."
		return false
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.base = len(vm.stack) - argCount - 1
	return true
}

func (vm *VM) bindMethod(class *value.ObjClass, name *value.ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return false
	}
	bound := vm.alloc.NewBoundMethod(vm.peek(0), method.AsObj().(*value.ObjClosure))
	vm.pop()
	vm.push(value.Obj(bound))
	return true
}

func (vm *VM) defineMethod(name *value.ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).AsObj().(*value.ObjClass)
	class.Methods.Set(name, method)
	vm.pop()
}

// captureUpvalue returns the open upvalue for the given absolute stack slot,
// reusing an existing one if present, otherwise allocating and inserting it
// into openUpvalues which is kept sorted by descending Slot so both the
// existence check and the insert are a single binary search (spec.md §3,
// §4.3, SPEC_FULL.md's x/exp/slices wiring).
func (vm *VM) captureUpvalue(slot int) *value.ObjUpvalue {
	i, found := slices.BinarySearchFunc(vm.openUpvalues, slot, func(u *value.ObjUpvalue, slot int) int {
		return slot - u.Slot // openUpvalues is sorted descending by Slot
	})
	if found {
		return vm.openUpvalues[i]
	}
	uv := vm.alloc.NewUpvalue(slot)
	vm.openUpvalues = slices.Insert(vm.openUpvalues, i, uv)
	return uv
}

// closeUpvalues closes every open upvalue at or above the given absolute
// stack slot, copying the live stack value into the Upvalue and removing it
// from openUpvalues (spec.md §4.3).
func (vm *VM) closeUpvalues(last int) {
	i := 0
	for i < len(vm.openUpvalues) && vm.openUpvalues[i].Slot >= last {
		uv := vm.openUpvalues[i]
		uv.Closed = vm.stack[uv.Slot]
		uv.IsClosed = true
		i++
	}
	vm.openUpvalues = vm.openUpvalues[i:]
}

// runtimeError formats msg, prints the frame trace from innermost to
// outermost (spec.md §4.3 "Error reporting"), and resets the stack.
func (vm *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(vm.Stderr, msg)

	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		fmt.Fprintf(vm.Stderr, "[line %d] in %s\n", fr.line(), name)
	}

	vm.stack = vm.stack[:0]
	vm.frameCount = 0
	vm.openUpvalues = nil
	return fmt.Errorf("%w: %s", ErrRuntime, msg)
}
