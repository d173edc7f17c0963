package runtime

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// ObjectSlot links object_slot(i32 uidPtr, i32 ownerPtr) -> i32: the
// two-round mapping from §3.7 that derives an object's root storage slot
// from its UID and current owner: slot = keccak256(keccak256(UID ||
// owner) || storage_slot_zero). uidPtr and ownerPtr each point to a
// 32-byte value; the 64-byte concatenation is built in a scratch buffer
// before each keccak256 call since Keccak256Of64 expects one contiguous
// input.
func (lib *Library) ObjectSlot() uint32 {
	return lib.request("object_slot", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const uidPtr, ownerPtr, scratch, inner = 0, 1, 2, 3
		e := wasmbin.NewEmitter()
		keccak := lib.Keccak256Of64()

		e.I32Const(64).Call(lib.allocFuncID).LocalSet(scratch)
		for i := 0; i < 4; i++ {
			off := uint32(i * 8)
			e.LocalGet(scratch).LocalGet(uidPtr).Load(wasmbin.OpcodeI64Load, off).Store(wasmbin.OpcodeI64Store, off)
		}
		for i := 0; i < 4; i++ {
			off := uint32(i * 8)
			e.LocalGet(scratch).I32Const(32).I32Add()
			e.LocalGet(ownerPtr).Load(wasmbin.OpcodeI64Load, off)
			e.Store(wasmbin.OpcodeI64Store, off)
		}
		e.LocalGet(scratch).Call(keccak).LocalSet(inner)

		// Reuse scratch for the second round: inner || storage_slot_zero.
		// storage_slot_zero is the all-zero 32-byte word (slot index 0 in
		// the object's own storage namespace); the second half is written
		// explicitly rather than relying on the fresh allocation being zero.
		e.I32Const(64).Call(lib.allocFuncID).LocalSet(scratch)
		for i := 0; i < 4; i++ {
			off := uint32(i * 8)
			e.LocalGet(scratch).LocalGet(inner).Load(wasmbin.OpcodeI64Load, off).Store(wasmbin.OpcodeI64Store, off)
		}
		for i := 0; i < 4; i++ {
			off := uint32(32 + i*8)
			e.LocalGet(scratch).I64Const(0).Store(wasmbin.OpcodeI64Store, off)
		}
		e.LocalGet(scratch).Call(keccak).Return().End()

		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 2, Type: wasmbin.ValueTypeI32}},
			Body:   e.Bytes(),
		}, &wasmbin.FunctionType{
			Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
			Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
	})
}

// IsZero32 links is_zero_32(i32 ptr) -> i32: whether all 32 bytes at ptr
// are zero, used both to detect an absent storage slot (host returns
// zeroed memory for unset keys) and to test the shared/frozen reserved
// owner sentinels' complement (a non-zero real address).
func (lib *Library) IsZero32() uint32 {
	return lib.request("is_zero_32", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const ptr, acc = 0, 1
		e := wasmbin.NewEmitter()
		e.I64Const(0).LocalSet(acc)
		for i := 0; i < 4; i++ {
			e.LocalGet(acc).LocalGet(ptr).Load(wasmbin.OpcodeI64Load, uint32(8*i)).I64Or().LocalSet(acc)
		}
		e.LocalGet(acc).I64Eqz().Return().End()
		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI64}},
			Body:   e.Bytes(),
		}, &wasmbin.FunctionType{
			Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32},
			Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
	})
}
