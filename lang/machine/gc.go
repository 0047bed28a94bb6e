package machine

import (
	"fmt"

	"github.com/mna/von/lang/value"
)

// maybeCollect runs a collection cycle if the heap has grown past nextGC,
// the "bytes after allocation exceed next_gc" trigger spec.md §4.5
// describes (next_gc = bytes*2 after each collection, tunable via Config).
func (vm *VM) maybeCollect() {
	if vm.alloc.BytesUsed <= vm.nextGC {
		return
	}
	vm.collectGarbage()
}

// collectGarbage runs one full mark-sweep cycle: mark every root-reachable
// object, drain the gray worklist blackening each, remove unmarked strings
// from the intern table ("remove white"), then sweep the object list
// (spec.md §4.5).
func (vm *VM) collectGarbage() {
	var before int
	if vm.cfg.TraceGC {
		before = vm.alloc.BytesUsed
		fmt.Fprintln(vm.Stderr, "-- gc begin")
	}

	vm.markRoots()
	vm.traceReferences()
	vm.alloc.Strings.DeleteUnmarked()
	freed := vm.alloc.Sweep()

	vm.nextGC = int(float64(vm.alloc.BytesUsed) * vm.cfg.GCGrowFactor)
	if vm.nextGC < vm.cfg.GCInitialThresh {
		vm.nextGC = vm.cfg.GCInitialThresh
	}

	if vm.cfg.TraceGC {
		fmt.Fprintf(vm.Stderr, "-- gc end: collected %d bytes (%d -> %d), next at %d\n",
			freed, before, vm.alloc.BytesUsed, vm.nextGC)
	}
}

// markRoots marks every Value directly reachable from outside the heap: the
// operand stack, every active frame's closure, every open upvalue, the
// globals table and the intern table (spec.md §4.5's root set). The
// compiler chain is not a root here: Compile fully finishes -- and with it,
// every constant the resulting Function references is already reachable
// through that Function -- before any VM run (and so any collection) can
// begin.
func (vm *VM) markRoots() {
	for _, v := range vm.stack {
		vm.markValue(v)
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for _, uv := range vm.openUpvalues {
		vm.markObject(uv)
	}
	vm.globals.Each(func(key *value.ObjString, val value.Value) {
		vm.markObject(key)
		vm.markValue(val)
	})
	for _, key := range vm.alloc.Strings.Keys() {
		vm.markObject(key)
	}
	vm.markObject(vm.initString)
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObj() {
		vm.markObject(v.AsObj())
	}
}

func (vm *VM) markObject(o value.Object) {
	if o == nil || value.Marked(o) {
		return
	}
	value.SetMarked(o, true)
	vm.gray = append(vm.gray, o)
}

// traceReferences drains the gray worklist, blackening each object by
// marking whatever it references.
func (vm *VM) traceReferences() {
	for len(vm.gray) > 0 {
		o := vm.gray[len(vm.gray)-1]
		vm.gray = vm.gray[:len(vm.gray)-1]
		vm.blacken(o)
	}
}

func (vm *VM) blacken(o value.Object) {
	switch obj := o.(type) {
	case *value.ObjString:
		// no children
	case *value.ObjFunction:
		if obj.Name != nil {
			// Name is nil for the top-level script function (spec.md §3).
			vm.markObject(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			vm.markValue(c)
		}
	case *value.ObjClosure:
		vm.markObject(obj.Function)
		for _, uv := range obj.Upvalues {
			vm.markObject(uv)
		}
	case *value.ObjUpvalue:
		if obj.IsClosed {
			vm.markValue(obj.Closed)
		}
	case *value.ObjClass:
		vm.markObject(obj.Name)
		obj.Methods.Each(func(_ *value.ObjString, val value.Value) { vm.markValue(val) })
	case *value.ObjInstance:
		vm.markObject(obj.Class)
		obj.Fields.Each(func(_ *value.ObjString, val value.Value) { vm.markValue(val) })
	case *value.ObjBoundMethod:
		vm.markValue(obj.Receiver)
		vm.markObject(obj.Method)
	}
}
