package storage

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/memory"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// rootObjectSlot derives an object's data-root storage slot (§3.7):
// keccak256(keccak256(uid||owner)||slot(0)), delegating to
// internal/runtime.Library.ObjectSlot. uidPtr and ownerPtr each point to
// a 32-byte value already resident in linear memory; the result is a
// fresh local holding a pointer to the derived 32-byte key.
func (c *Codec) rootObjectSlot(uidPtr, ownerPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) uint32 {
	out := sc.NextI32()
	e.LocalGet(uidPtr).LocalGet(ownerPtr).Call(c.Lib.ObjectSlot()).LocalSet(out)
	return out
}

// ownerOfSlot derives the storage key that holds a UID's *current owner*
// address (§3.6 offsets 96/128): a single-round keccak256(uid ||
// objectsMappingRoot), mirroring how a Solidity mapping's slot is
// keccak256(key || mapping base slot). Reading this slot is how
// LoadObject and PeekOwner discover which owner's namespace an object's
// data currently lives under before deriving the two-round data-root slot.
//
// The 64-byte concatenation buffer is bump-allocated fresh on every call
// rather than reusing memory.OffsetMappingScratch: recursive field
// packing (a struct field that is itself an object reference) could
// otherwise corrupt an in-flight outer computation sharing that fixed
// region, the same reentrancy hazard internal/runtime.Library.ObjectSlot
// itself avoids by bump-allocating its own 64-byte scratch instead of
// reusing OffsetSlotScratch/OffsetMappingScratch.
func (c *Codec) ownerOfSlot(uidPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) uint32 {
	buf := sc.NextI32()
	out := sc.NextI32()
	e.I32Const(64).Call(c.Lib.AllocFuncID()).LocalSet(buf)
	for i := 0; i < 4; i++ {
		off := uint32(i * 8)
		e.LocalGet(buf).LocalGet(uidPtr).Load(wasmbin.OpcodeI64Load, off).Store(wasmbin.OpcodeI64Store, off)
	}
	for i := 0; i < 4; i++ {
		off := uint32(i * 8)
		e.LocalGet(buf).I32Const(32).I32Add()
		e.I32Const(int32(memory.OffsetObjectsMappingRoot)).Load(wasmbin.OpcodeI64Load, off)
		e.Store(wasmbin.OpcodeI64Store, off)
	}
	e.LocalGet(buf).Call(c.Lib.Keccak256Of64()).LocalSet(out)
	return out
}

// deriveChildSlot computes a derived child slot from a parent key and an
// integer index (a vector element or byte-chunk index): it hashes
// parentKey followed by a 32-byte word whose first 24 bytes are zero and
// whose last 8 hold index as a little-endian i64, through the same
// Keccak256Of64 primitive
// everything else in this codec uses, so every derived address in the
// module comes from one hashing convention.
func (c *Codec) deriveChildSlot(parentKey uint32, index uint32, sc runtime.Scratch, e *wasmbin.Emitter) uint32 {
	buf := sc.NextI32()
	out := sc.NextI32()
	e.I32Const(64).Call(c.Lib.AllocFuncID()).LocalSet(buf)
	for i := 0; i < 4; i++ {
		off := uint32(i * 8)
		e.LocalGet(buf).LocalGet(parentKey).Load(wasmbin.OpcodeI64Load, off).Store(wasmbin.OpcodeI64Store, off)
	}
	for i := 0; i < 3; i++ {
		e.LocalGet(buf).I32Const(32+int32(i*8)).I32Add().I64Const(0).Store(wasmbin.OpcodeI64Store, 0)
	}
	e.LocalGet(buf).I32Const(56).I32Add().LocalGet(index).I64ExtendI32U().Store(wasmbin.OpcodeI64Store, 0)
	e.LocalGet(buf).Call(c.Lib.Keccak256Of64()).LocalSet(out)
	return out
}

// advanceSlotKey advances a slot-key local by n slots (each +1), used
// when sequential struct-field packing crosses a slot boundary and when
// an enum's slot-aligned region spans more than one slot. n is always a
// compile-time constant (the number of slots a statically-sized field
// stream occupies), so this unrolls into n calls rather than a runtime
// loop — reusing the little-endian u256 add helper the rest of the
// runtime library already uses for wide-integer arithmetic, seeded from
// the reserved prefix's pre-placed u256(1) constant (§3.6 offset 32)
// rather than constructing a fresh operand buffer each time.
func (c *Codec) advanceSlotKey(key uint32, n int, e *wasmbin.Emitter) error {
	if n <= 0 {
		return nil
	}
	addFn, err := c.Lib.HeapAdd(types.U256())
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		e.LocalGet(key).I32Const(int32(memory.OffsetSlotIncrement)).Call(addFn).LocalSet(key)
	}
	return nil
}
