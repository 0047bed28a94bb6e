package machine

import "github.com/mna/von/lang/value"

// CallFrame is a runtime record for one active call: the closure being run,
// the instruction pointer into that closure's function's chunk, and the
// stack slot this call's locals start at (spec.md §3).
type CallFrame struct {
	closure *value.ObjClosure
	ip      int
	base    int
}

func (f *CallFrame) chunk() *value.Chunk { return &f.closure.Function.Chunk }

// line returns the source line of the instruction this frame is currently
// executing (or most recently executed, for a trace printed after a runtime
// error -- spec.md §4.3 "Error reporting" reads IP-1).
func (f *CallFrame) line() int {
	ip := f.ip - 1
	if ip < 0 {
		ip = 0
	}
	return f.chunk().LineAt(ip)
}
