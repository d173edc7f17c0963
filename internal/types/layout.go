package types

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// WasmStackType returns the WASM value type this Type occupies on the
// compile-time operand stack (§4.1): i32 for every pointer and small
// scalar, i64 only for u64 itself (the only scalar that is both a stack
// type and wider than 32 bits).
func (t Type) WasmStackType() wasmbin.ValueType {
	if t.Kind == KindU64 {
		return wasmbin.ValueTypeI64
	}
	return wasmbin.ValueTypeI32
}

// StackDataSize returns the size in bytes of the value WasmStackType
// occupies: 4 for i32, 8 for i64.
func (t Type) StackDataSize() int {
	if t.WasmStackType() == wasmbin.ValueTypeI64 {
		return 8
	}
	return 4
}

// IsHeapType reports whether values of this type are heap-allocated and
// referenced by a 32-bit pointer on the WASM stack, per the §3.1
// invariant that U128/U256/Address/Signer are always heap-allocated, and
// per §9's pointer-heavy value model under which every composite
// (Vector, Struct, Enum) is likewise a pointer.
func (t Type) IsHeapType() bool {
	switch t.Kind {
	case KindU128, KindU256, KindAddress, KindSigner,
		KindVector, KindStruct, KindGenericStructInstance,
		KindEnum, KindGenericEnumInstance:
		return true
	default:
		return false
	}
}

// IsStackType is the complement of IsHeapType for concrete (non-reference,
// non-generic-placeholder) types: Bool and the narrow integers live
// directly on the stack.
func (t Type) IsStackType() bool {
	switch t.Kind {
	case KindBool, KindU8, KindU16, KindU32, KindU64:
		return true
	default:
		return false
	}
}

// HeapMemoryDataSize returns the fixed number of bytes stored behind a
// heap type's pointer, when that size is statically known. Vector is the
// one heap type whose data size is variable (length-dependent), so it
// reports ok=false; callers must use the runtime vector header instead.
func (t Type) HeapMemoryDataSize(ctx *Context) (size int, ok bool) {
	switch t.Kind {
	case KindU128:
		return 16, true
	case KindU256, KindAddress, KindSigner:
		return 32, true
	case KindVector:
		return 0, false
	case KindStruct:
		s, err := ctx.ResolveStruct(t.ModuleID, t.DefIndex)
		if err != nil {
			return 0, false
		}
		return s.HeapSize, true
	case KindGenericStructInstance:
		s, err := ctx.InternGenericStruct(t.ModuleID, t.DefIndex, t.TypeArgs)
		if err != nil {
			return 0, false
		}
		return s.HeapSize, true
	case KindEnum:
		e, err := ctx.ResolveEnum(t.ModuleID, t.DefIndex)
		if err != nil {
			return 0, false
		}
		return e.HeapSize(), true
	case KindGenericEnumInstance:
		e, err := ctx.InternGenericEnum(t.ModuleID, t.DefIndex, t.TypeArgs)
		if err != nil {
			return 0, false
		}
		return e.HeapSize(), true
	default:
		return 0, false
	}
}

// IsDynamicABI reports whether t's Solidity ABI encoding is
// variable-length (head/tail encoded), per §4.4: vectors, strings, byte
// strings, and any struct/enum transitively containing one.
func (t Type) IsDynamicABI(ctx *Context) bool {
	switch t.Kind {
	case KindVector:
		return true
	case KindStruct, KindGenericStructInstance:
		if t.VMTag == bytecode.VMTagString || t.VMTag == bytecode.VMTagBytes {
			return true
		}
		s := mustStruct(ctx, t)
		if s == nil {
			return false
		}
		for _, f := range s.Fields {
			if f.Type.IsDynamicABI(ctx) {
				return true
			}
		}
		return false
	case KindEnum, KindGenericEnumInstance:
		e := mustEnum(ctx, t)
		if e == nil {
			return false
		}
		for _, v := range e.Variants {
			for _, f := range v.Fields {
				if f.IsDynamicABI(ctx) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func mustStruct(ctx *Context, t Type) *Struct {
	if t.Kind == KindGenericStructInstance {
		s, _ := ctx.InternGenericStruct(t.ModuleID, t.DefIndex, t.TypeArgs)
		return s
	}
	s, _ := ctx.ResolveStruct(t.ModuleID, t.DefIndex)
	return s
}

func mustEnum(ctx *Context, t Type) *Enum {
	if t.Kind == KindGenericEnumInstance {
		e, _ := ctx.InternGenericEnum(t.ModuleID, t.DefIndex, t.TypeArgs)
		return e
	}
	e, _ := ctx.ResolveEnum(t.ModuleID, t.DefIndex)
	return e
}

// AbiEncodedSize returns the fixed ABI-encoded byte size of t, or ok=false
// if t is dynamic (§4.4).
func (t Type) AbiEncodedSize(ctx *Context) (size int, ok bool) {
	if t.IsDynamicABI(ctx) {
		return 0, false
	}
	switch t.Kind {
	case KindBool, KindU8, KindU16, KindU32, KindU64, KindU128, KindU256, KindAddress:
		return 32, true
	case KindStruct, KindGenericStructInstance:
		s := mustStruct(ctx, t)
		if s == nil {
			return 0, false
		}
		total := 0
		for _, f := range s.Fields {
			fs, ok := f.Type.AbiEncodedSize(ctx)
			if !ok {
				return 0, false
			}
			total += fs
		}
		return total, true
	case KindEnum, KindGenericEnumInstance:
		e := mustEnum(ctx, t)
		if e == nil {
			return 0, false
		}
		if e.IsSimple() {
			return 32, true
		}
		total := 32 // discriminator word
		for _, v := range e.Variants {
			for _, f := range v.Fields {
				fs, ok := f.AbiEncodedSize(ctx)
				if !ok {
					return 0, false
				}
				total += fs
			}
		}
		return total, true
	default:
		return 0, false
	}
}

// StorageFieldSize returns the number of bytes a field of this type
// occupies when packed left-to-right into 32-byte storage slots (§4.5):
// the scalar's natural width for fixed scalars, 32 for anything else
// (dynamic fields, vectors, nested structs/enums, whose data lives in a
// derived sub-slot reached through this 32-byte pointer/length handle).
func (t Type) StorageFieldSize() int {
	switch t.Kind {
	case KindBool, KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindU64:
		return 8
	case KindU128:
		return 16
	case KindU256, KindAddress, KindSigner:
		return 32
	default:
		return 32
	}
}

// StoreKind and LoadKind return the WASM opcode used to store/load a
// value of this type to/from linear memory. Heap types and references are
// always stored/loaded as a 32-bit pointer.
func (t Type) StoreKind() wasmbin.Opcode {
	switch t.Kind {
	case KindBool, KindU8:
		return wasmbin.OpcodeI32Store8
	case KindU16:
		return wasmbin.OpcodeI32Store16
	case KindU32:
		return wasmbin.OpcodeI32Store
	case KindU64:
		return wasmbin.OpcodeI64Store
	default:
		return wasmbin.OpcodeI32Store // heap pointer, or reference
	}
}

func (t Type) LoadKind() wasmbin.Opcode {
	switch t.Kind {
	case KindBool, KindU8:
		return wasmbin.OpcodeI32Load8U
	case KindU16:
		return wasmbin.OpcodeI32Load16U
	case KindU32:
		return wasmbin.OpcodeI32Load
	case KindU64:
		return wasmbin.OpcodeI64Load
	default:
		return wasmbin.OpcodeI32Load
	}
}

// SolName returns t's Solidity ABI type signature string (§4.4), and
// false for types that never appear in the ABI (TxContext, Signer, bare
// type parameters).
func (t Type) SolName(ctx *Context) (string, bool) {
	switch t.Kind {
	case KindBool:
		return "bool", true
	case KindU8:
		return "uint8", true
	case KindU16:
		return "uint16", true
	case KindU32:
		return "uint32", true
	case KindU64:
		return "uint64", true
	case KindU128:
		return "uint128", true
	case KindU256:
		return "uint256", true
	case KindAddress:
		return "address", true
	case KindSigner:
		return "", false
	case KindVector:
		inner, ok := t.Elem.SolName(ctx)
		if !ok {
			return "", false
		}
		return inner + "[]", true
	case KindRef, KindMutRef:
		return t.Elem.SolName(ctx)
	case KindStruct, KindGenericStructInstance:
		if t.VMTag == bytecode.VMTagTxContext {
			return "", false
		}
		if t.VMTag == bytecode.VMTagString {
			return "string", true
		}
		if t.VMTag == bytecode.VMTagBytes {
			return "bytes", true
		}
		s := mustStruct(ctx, t)
		if s == nil {
			return "", false
		}
		return tupleSolName(ctx, fieldsOf(s.Fields))
	case KindEnum, KindGenericEnumInstance:
		e := mustEnum(ctx, t)
		if e == nil {
			return "", false
		}
		if e.IsSimple() {
			return "uint8", true
		}
		parts := []string{"uint8"}
		for _, v := range e.Variants {
			vs, ok := tupleSolName(ctx, v.Fields)
			if !ok {
				return "", false
			}
			parts = append(parts, vs)
		}
		return "(" + joinComma(parts) + ")", true
	default:
		return "", false
	}
}

func fieldsOf(fields []Field) []Type {
	out := make([]Type, len(fields))
	for i, f := range fields {
		out[i] = f.Type
	}
	return out
}

func tupleSolName(ctx *Context, fields []Type) (string, bool) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		s, ok := f.SolName(ctx)
		if !ok {
			return "", false
		}
		parts = append(parts, s)
	}
	return "(" + joinComma(parts) + ")", true
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
