package runtime

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// Scratch hands out fresh local indices to CopyInstructions and
// EqualityInstructions, which need working space beyond the operands
// already on the stack. The translator (§4.7) implements this over its
// per-function local allocator so the indices these helpers use never
// collide with the function's Move-local mapping.
type Scratch interface {
	NextI32() uint32
	NextI64() uint32
}

// CopyInstructions emits code that duplicates a value of type t already
// addressed by the i32 pointer on top of the stack (for heap types) or
// already on the stack directly (for stack types), leaving the copy's
// representation on the stack in the same shape. Defined as a free
// function here rather than a method on types.Type to keep internal/types
// free of any WASM-emission or allocation dependency (§4.1: "pure, no
// allocation").
func CopyInstructions(ctx *types.Context, t types.Type, lib *Library, sc Scratch, e *wasmbin.Emitter) error {
	if t.IsStackType() {
		// Stack values are copied for free: Move's CopyLoc for a scalar
		// just reads the local again, nothing to emit here beyond what
		// the translator already does at the call site.
		return nil
	}

	size, ok := t.HeapMemoryDataSize(ctx)
	if !ok {
		return copyStruct(ctx, t, lib, sc, e)
	}

	// Fixed-size heap scalar (u128/u256/address/signer): allocate a new
	// block and copy size bytes verbatim.
	srcLocal, dstLocal := sc.NextI32(), sc.NextI32()
	e.LocalSet(srcLocal)
	e.I32Const(int32(size)).Call(lib.allocFuncID).LocalSet(dstLocal)
	for off := 0; off+8 <= size; off += 8 {
		e.LocalGet(dstLocal)
		e.LocalGet(srcLocal).Load(wasmbin.OpcodeI64Load, uint32(off))
		e.Store(wasmbin.OpcodeI64Store, uint32(off))
	}
	e.LocalGet(dstLocal)
	return nil
}

// copyStruct deep-copies a struct by copying each field recursively
// rather than memcpy'ing the record (a struct field that is itself a
// heap pointer must get its own fresh allocation, or two Move values
// with Copy ability would alias through the compiled pointer).
func copyStruct(ctx *types.Context, t types.Type, lib *Library, sc Scratch, e *wasmbin.Emitter) error {
	switch t.Kind {
	case types.KindStruct:
		st, err := ctx.ResolveStruct(t.ModuleID, t.DefIndex)
		if err != nil {
			return err
		}
		if len(t.TypeArgs) > 0 {
			st = st.Instantiate(t.TypeArgs)
		}
		srcLocal, dstLocal := sc.NextI32(), sc.NextI32()
		e.LocalSet(srcLocal)
		e.I32Const(int32(st.HeapSize)).Call(lib.allocFuncID).LocalSet(dstLocal)
		for i, f := range st.Fields {
			// Every field slot is a 4-byte pointer/scalar cell (§9); copy
			// each field's value recursively to avoid aliasing heap fields.
			e.LocalGet(dstLocal).I32Const(int32(4 * i)).I32Add()
			e.LocalGet(srcLocal).Load(wasmbin.OpcodeI32Load, uint32(4*i))
			if err := CopyInstructions(ctx, f.Type, lib, sc, e); err != nil {
				return err
			}
			e.Store(wasmbin.OpcodeI32Store, 0)
		}
		e.LocalGet(dstLocal)
		return nil
	case types.KindEnum:
		return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
			Detailf("enum deep-copy is lowered inline by the translator, not via CopyInstructions").
			Build()
	default:
		return nil
	}
}

// EqualityInstructions emits code comparing two values of type t,
// leaving an i32 boolean on the stack. Both operands must already be on
// the stack (value-then-value for stack types, ptr-then-ptr for heap
// types) when this is called.
func EqualityInstructions(ctx *types.Context, t types.Type, sc Scratch, e *wasmbin.Emitter) error {
	switch {
	case t.Kind == types.KindBool || t.Kind == types.KindU8 || t.Kind == types.KindU16 || t.Kind == types.KindU32:
		e.I32Eq()
		return nil
	case t.Kind == types.KindU64:
		e.I64Eq()
		return nil
	default:
		size, ok := t.HeapMemoryDataSize(ctx)
		if !ok {
			return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
				Detailf("equality on composite type %s is lowered field-by-field by the translator", t.Kind).
				Build()
		}
		emitByteRangeEqual(sc, e, size)
		return nil
	}
}

// emitByteRangeEqual compares `size` bytes at the two i32 pointers on
// the stack (second-from-top, top), accumulating a running AND of
// per-limb equality since WASM has no memcmp primitive.
func emitByteRangeEqual(sc Scratch, e *wasmbin.Emitter, size int) {
	bLocal, aLocal, accLocal := sc.NextI32(), sc.NextI32(), sc.NextI32()
	e.LocalSet(bLocal)
	e.LocalSet(aLocal)
	e.I32Const(1).LocalSet(accLocal)
	for off := 0; off+8 <= size; off += 8 {
		e.LocalGet(aLocal).Load(wasmbin.OpcodeI64Load, uint32(off))
		e.LocalGet(bLocal).Load(wasmbin.OpcodeI64Load, uint32(off))
		e.I64Eq()
		e.LocalGet(accLocal).I32And()
		e.LocalSet(accLocal)
	}
	e.LocalGet(accLocal)
}
