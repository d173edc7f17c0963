// Package wasmbin implements a minimal WASM 1.0 binary-format encoder: just
// enough of the module/section/instruction grammar for this compiler to
// emit a Stylus-compatible module. It mirrors the shape of wazero's
// internal/wasm + internal/wasm/binary packages (ValueType/SectionID
// constants, Module as a set of parallel section slices, a LEB128-based
// vector encoding) without their decode-side or execution-engine code,
// since this package only ever produces bytes, never runs them.
package wasmbin

// ValueType describes a WASM value type as used in function signatures,
// locals, and globals.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// FunctionType is a WASM function signature: (params) -> (results).
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// Equal reports whether two function types have identical params/results,
// used to dedupe the type section.
func (f *FunctionType) Equal(o *FunctionType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// ExternType classifies an import or export.
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// Import describes a single entry in the import section: a named function
// imported from the "vm_hooks" module (§6), typed by a type-section index.
type Import struct {
	Module   string
	Name     string
	Kind     ExternType
	DescFunc uint32 // index into the type section, valid when Kind == ExternTypeFunc
}

// Export describes a single entry in the export section.
type Export struct {
	Name  string
	Kind  ExternType
	Index uint32
}

// Global is a single mutable or immutable global, with a constant
// initializer expression (we only ever need i32.const/i64.const inits).
type Global struct {
	Type    ValueType
	Mutable bool
	Init    []byte // a constant init expression, already terminated with OpcodeEnd
}

// Memory describes linear memory limits, in 64KiB pages.
type Memory struct {
	Min uint32
	Max uint32
	HasMax bool
}

// Data is an active data segment: bytes placed at a constant i32 offset in
// linear memory 0, used to lay out the reserved prefix (§3.6) and interned
// runtime-error blobs (§4.10).
type Data struct {
	Offset uint32
	Bytes  []byte
}

// Local is a run of consecutive locals sharing one type, as WASM's local
// declaration list is run-length encoded.
type Local struct {
	Count uint32
	Type  ValueType
}

// Func is a function body: its declared locals (beyond its parameters,
// which come from its FunctionType) plus the already-emitted instruction
// bytes (including the trailing OpcodeEnd).
type Func struct {
	TypeIndex uint32
	Locals    []Local
	Body      []byte
}

// GroupLocals run-length-encodes a flat sequence of local value types
// into the Local list a Func declares, collapsing consecutive runs of
// the same type into one entry the way every WASM encoder does.
func GroupLocals(types []ValueType) []Local {
	var out []Local
	for _, t := range types {
		if n := len(out); n > 0 && out[n-1].Type == t {
			out[n-1].Count++
			continue
		}
		out = append(out, Local{Count: 1, Type: t})
	}
	return out
}
