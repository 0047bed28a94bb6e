// Package value implements Von's runtime data model: the tagged Value
// union, the heap object variants it can reference, the bytecode Chunk
// those objects carry, and the open-addressing Table used for interning,
// globals, class methods and instance fields (spec.md §3, §4.4).
package value

import "math"

// Kind discriminates the tag of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Value is a discriminated union over {Nil, Bool, Number, Obj}, exactly as
// spec.md §3 describes. Equality is by-tag then by content; Number equality
// is plain IEEE-754 equality (so NaN != NaN, as spec.md's "numbers use
// IEEE-754 equality" implies), and Nil == Nil.
type Value struct {
	kind Kind
	b    bool
	n    float64
	obj  Object
}

// Nil is the singular nil value.
var Nil = Value{kind: KindNil}

// Bool returns the tagged boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns the tagged numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Obj returns a Value wrapping a heap object.
func Obj(o Object) Value { return Value{kind: KindObj, obj: o} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNil() bool { return v.kind == KindNil }
func (v Value) IsBool() bool { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObj() bool { return v.kind == KindObj }

// AsBool returns the boolean payload. Only valid when IsBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the numeric payload. Only valid when IsNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsObj returns the object payload. Only valid when IsObj.
func (v Value) AsObj() Object { return v.obj }

// Falsy reports whether v is falsy: only Nil and false are falsy,
// everything else is truthy (spec.md §4.3).
func (v Value) Falsy() bool {
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return !v.b
	default:
		return false
	}
}

// Equal implements Value equality: by-tag then by content.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindObj:
		as, aok := a.obj.(*ObjString)
		bs, bok := b.obj.(*ObjString)
		if aok && bok {
			// strings are interned: pointer identity suffices, but comparing by
			// identity directly also makes the invariant explicit at the one
			// call site that matters for equality.
			return as == bs
		}
		return a.obj == b.obj
	default:
		return false
	}
}

// TypeName returns a short human-readable type name. The print statement
// does not use it (print uses String()).
func (v Value) TypeName() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindObj:
		return v.obj.objType().String()
	default:
		return "unknown"
	}
}

// String formats v the way the `print` statement does. String
// concatenation does not use it: `+` with a non-string operand is a runtime
// error.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.n)
	case KindObj:
		return v.obj.String()
	default:
		return "<invalid value>"
	}
}

func formatNumber(n float64) string {
	if math.IsNaN(n) {
		return "nan"
	}
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return trimInt(n)
	}
	return ftoa(n)
}
