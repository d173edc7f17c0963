package entrypoint

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/memory"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// oneAtByte31 is the big-endian u256 value 1, stored by writing only the
// word's low 8 bytes (byte offset 24 within a 32-byte word): an i64.store
// there with this constant leaves the 32-byte buffer reading as
// 0x00...01, matching the big-endian constants internal/memory.layout.go
// already writes for its own reserved owner keys.
const oneAtByte31 = int64(1) << 56

// BuildConstructor builds the synthetic `constructor()` function §4.8
// adds when a module declares `init`: a storage-backed guard around a
// single call to init. initEntry's params must be entirely VM-handled
// (TxContext) — constructor() takes no calldata, so there is nowhere for
// an ABI-decoded argument to come from.
func (r *Router) BuildConstructor(initEntry *types.FunctionEntry) (uint32, error) {
	// constructor() is dispatched exactly like any other wrapper — same
	// (calldataPtr, calldataLen) -> () signature, even though both
	// parameters go unused here — so the dispatcher's call site needs no
	// special case for it.
	fb := newFuncBuilder([]wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32})
	host := r.Host

	argLocals := make([]uint32, len(initEntry.Params))
	for i, p := range initEntry.Params {
		if !isVMHandled(p) {
			return 0, cerr.New(cerr.PhaseConstructor, cerr.KindUnsupportedType).
				Detailf("init declares parameter %d of type %s, which is not VM-handled; constructor() has no calldata to decode it from", i, p.Kind).
				Build()
		}
		local, err := r.emitSyntheticTxContext(p, fb)
		if err != nil {
			return 0, err
		}
		argLocals[i] = local
	}

	guard := fb.NextI32()
	fb.e.I32Const(wordSize).Call(r.Lib.AllocFuncID()).LocalSet(guard)
	fb.e.I32Const(memory.OffsetInitKey).LocalGet(guard).Call(host.StorageLoadBytes32())

	fb.e.LocalGet(guard).Load(wasmbin.OpcodeI64Load, 24).I64Eqz()
	fb.e.If(wasmbin.BlockType{Empty: true})
	{
		for _, local := range argLocals {
			fb.e.LocalGet(local)
		}
		fb.e.Call(initEntry.WasmFuncID + r.ImportCount)

		fb.e.LocalGet(guard).I64Const(oneAtByte31).Store(wasmbin.OpcodeI64Store, 24)
		fb.e.I32Const(memory.OffsetInitKey).LocalGet(guard).Call(host.StorageCacheBytes32())
		fb.e.I32Const(0).Call(host.StorageFlushCache())
	}
	fb.e.End()

	fb.e.I32Const(0).I32Const(0).Call(host.WriteResult())

	sig := &wasmbin.FunctionType{Params: []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32}}
	id := r.define(sig, fb.finish())
	r.HasConstructor = true
	r.ConstructorFuncID = id
	return id, nil
}
