package value

// Allocator owns the VM's single intrusive heap-object list and the
// interned-string table (spec.md §3, §4.5). Both the compiler (which needs
// to intern identifier/literal constants) and the VM (which allocates
// closures, classes, instances and concatenated strings at run time) share
// one Allocator so that every object, compile-time or run-time, ends up on
// the same sweepable list and the same string identity holds everywhere.
type Allocator struct {
	Strings   *Table
	Objects   Object // head of the intrusive object list
	BytesUsed int
}

// NewAllocator returns an empty Allocator with a fresh intern table.
func NewAllocator() *Allocator {
	return &Allocator{Strings: NewTable()}
}

func (a *Allocator) track(o Object) {
	h := o.header()
	h.Next = a.Objects
	a.Objects = o
}

// InternString returns the canonical ObjString for s, allocating and
// interning a new one only if an equal string has not been seen before.
func (a *Allocator) InternString(s string) *ObjString {
	hash := HashString(s)
	if existing := a.Strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := NewObjString(s, hash)
	a.track(str)
	a.BytesUsed += len(s) + 32
	a.Strings.Set(str, Nil)
	return str
}

// NewFunction allocates an (uninterned, unshared) function object.
func (a *Allocator) NewFunction() *ObjFunction {
	fn := NewObjFunction()
	a.track(fn)
	a.BytesUsed += 64
	return fn
}

// NewClosure allocates a closure over fn.
func (a *Allocator) NewClosure(fn *ObjFunction) *ObjClosure {
	cl := NewObjClosure(fn)
	a.track(cl)
	a.BytesUsed += 32 + 8*len(cl.Upvalues)
	return cl
}

// NewUpvalue allocates an open upvalue pointing at the given stack slot.
func (a *Allocator) NewUpvalue(slot int) *ObjUpvalue {
	uv := NewObjUpvalue(slot)
	a.track(uv)
	a.BytesUsed += 24
	return uv
}

// NewClass allocates a class with the given interned name.
func (a *Allocator) NewClass(name *ObjString) *ObjClass {
	cl := NewObjClass(name)
	a.track(cl)
	a.BytesUsed += 48
	return cl
}

// NewInstance allocates an instance of class.
func (a *Allocator) NewInstance(class *ObjClass) *ObjInstance {
	inst := NewObjInstance(class)
	a.track(inst)
	a.BytesUsed += 48
	return inst
}

// NewBoundMethod allocates a bound method.
func (a *Allocator) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	bm := NewObjBoundMethod(receiver, method)
	a.track(bm)
	a.BytesUsed += 32
	return bm
}

// Sweep walks the object list and frees (unlinks) every unmarked object,
// clearing marks on survivors. It returns the number of bytes reclaimed per
// the same rough per-object accounting NewX used when allocating.
func (a *Allocator) Sweep() int {
	var prev Object
	freed := 0
	obj := a.Objects
	for obj != nil {
		h := obj.header()
		next := h.Next
		if h.Marked {
			h.Marked = false
			prev = obj
		} else {
			if prev == nil {
				a.Objects = next
			} else {
				prev.header().Next = next
			}
			freed += objectSize(obj)
		}
		obj = next
	}
	a.BytesUsed -= freed
	if a.BytesUsed < 0 {
		a.BytesUsed = 0
	}
	return freed
}

func objectSize(o Object) int {
	switch v := o.(type) {
	case *ObjString:
		return len(v.Chars) + 32
	case *ObjFunction:
		return 64
	case *ObjClosure:
		return 32 + 8*len(v.Upvalues)
	case *ObjUpvalue:
		return 24
	case *ObjClass:
		return 48
	case *ObjInstance:
		return 48
	case *ObjBoundMethod:
		return 32
	default:
		return 16
	}
}
