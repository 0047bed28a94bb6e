package value

import "fmt"

// ObjType tags the variant of a heap Object.
type ObjType uint8

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeString:
		return "string"
	case ObjTypeFunction:
		return "function"
	case ObjTypeClosure:
		return "function"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeClass:
		return "class"
	case ObjTypeInstance:
		return "instance"
	case ObjTypeBoundMethod:
		return "function"
	default:
		return "object"
	}
}

// Object is implemented by every heap-allocated variant. Header gives the GC
// a uniform way to walk the single intrusive object list and track mark
// bits regardless of the concrete variant (spec.md §3: "Every object
// carries: its variant tag, a next-pointer into the global object list, and
// a GC mark bit.").
type Object interface {
	String() string
	objType() ObjType
	header() *Header
}

// Header is embedded in every object variant.
type Header struct {
	typ    ObjType
	Next   Object // next-pointer into the VM's single intrusive object list
	Marked bool
}

func (h *Header) header() *Header  { return h }
func (h *Header) objType() ObjType { return h.typ }

// NewHeader builds the Header embedded by a newly allocated object of the
// given type; callers splice the result onto the VM's object list.
func NewHeader(t ObjType) Header { return Header{typ: t} }

// Type returns the object's variant tag. Exported for GC and runtime-error
// formatting code outside this package.
func Type(o Object) ObjType { return o.header().typ }

// Marked reports whether o carries this GC cycle's mark bit.
func Marked(o Object) bool { return o.header().Marked }

// SetMarked sets or clears o's GC mark bit.
func SetMarked(o Object, marked bool) { o.header().Marked = marked }

// ---- String ----

// ObjString is an immutable, interned UTF-8 string. Two ObjStrings with
// equal bytes are always the same object (spec.md §3, §8 "String
// interning").
type ObjString struct {
	Header
	Chars string
	Hash  uint32
}

func NewObjString(s string, hash uint32) *ObjString {
	return &ObjString{Header: NewHeader(ObjTypeString), Chars: s, Hash: hash}
}

func (s *ObjString) String() string { return s.Chars }

// HashString computes the 32-bit FNV-1a hash spec.md calls for.
func HashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// ---- Function ----

// ObjFunction is a compiled function: its arity, how many upvalues its
// closures capture, the Chunk of bytecode compiled for its body, and an
// optional name (absent for the top-level script).
type ObjFunction struct {
	Header
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString
}

func NewObjFunction() *ObjFunction {
	return &ObjFunction{Header: NewHeader(ObjTypeFunction)}
}

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// ---- Closure ----

// ObjClosure pairs a Function with the fixed-length vector of Upvalue
// references it captured at creation time.
type ObjClosure struct {
	Header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func NewObjClosure(fn *ObjFunction) *ObjClosure {
	return &ObjClosure{
		Header:   NewHeader(ObjTypeClosure),
		Function: fn,
		Upvalues: make([]*ObjUpvalue, fn.UpvalueCount),
	}
}

func (c *ObjClosure) String() string { return c.Function.String() }

// ---- Upvalue ----

// ObjUpvalue is either "open" (pointing at a live stack slot, identified by
// Slot) or "closed" (owning Closed, its captured copy of the value). The
// VM's open-upvalue list, not this struct, tracks the set of currently-open
// upvalues and their ordering (spec.md §9 reformulates the raw pointer as a
// stack index plus VM back-pointer; Von keeps the index here and lets the
// VM own the list).
type ObjUpvalue struct {
	Header
	Slot     int
	Closed   Value
	IsClosed bool
}

func NewObjUpvalue(slot int) *ObjUpvalue {
	return &ObjUpvalue{Header: NewHeader(ObjTypeUpvalue), Slot: slot}
}

func (u *ObjUpvalue) String() string { return "upvalue" }

// ---- Class ----

// ObjClass is a class: its name, its own method table, and an optional
// superclass for single inheritance (SPEC_FULL.md's resolution of the
// `super`/`this` open question).
type ObjClass struct {
	Header
	Name       *ObjString
	Methods    *Table
	Superclass *ObjClass
}

func NewObjClass(name *ObjString) *ObjClass {
	return &ObjClass{Header: NewHeader(ObjTypeClass), Name: name, Methods: NewTable()}
}

func (c *ObjClass) String() string { return c.Name.Chars }

// ---- Instance ----

// ObjInstance is an instance of a Class with its own field table.
type ObjInstance struct {
	Header
	Class  *ObjClass
	Fields *Table
}

func NewObjInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{Header: NewHeader(ObjTypeInstance), Class: class, Fields: NewTable()}
}

func (i *ObjInstance) String() string { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// ---- BoundMethod ----

// ObjBoundMethod pairs a receiver Value with a Closure, produced when a
// GET_PROPERTY resolves to a method rather than a field.
type ObjBoundMethod struct {
	Header
	Receiver Value
	Method   *ObjClosure
}

func NewObjBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	return &ObjBoundMethod{Header: NewHeader(ObjTypeBoundMethod), Receiver: receiver, Method: method}
}

func (b *ObjBoundMethod) String() string { return b.Method.String() }
