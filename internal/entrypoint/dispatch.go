package entrypoint

import (
	"sort"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/abi"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/errenc"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/memory"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// branch is one entry in the dispatcher's linear if-else tree: a
// selector and the wrapper function it calls into.
type branch struct {
	selector uint32
	funcID   uint32
}

// BuildEntrypoint builds `user_entrypoint(calldata_len: i32) -> i32`
// (§4.8): read calldata into a fresh buffer, dispatch on its first four
// bytes by selector value, in ascending order, to the matching public
// function's wrapper (or the constructor's), and fall through to the
// no-function-match revert if nothing matches. Every entry in entries
// must already have a wrapper registered in r.WrapperFuncID (built by
// BuildWrapper); entries without VisibilityPublic/VisibilityEntry are
// skipped.
func (r *Router) BuildEntrypoint(entries []*types.FunctionEntry) (uint32, error) {
	var branches []branch
	for _, entry := range entries {
		if entry.Visibility == types.VisibilityPrivate {
			continue
		}
		wrapperID, ok := r.WrapperFuncID[entry.WasmFuncID]
		if !ok {
			return 0, cerr.New(cerr.PhaseConstructor, cerr.KindUnsupportedType).
				Detailf("public function %q has no registered wrapper", entry.Name).
				Build()
		}
		sel, err := abi.Selector(r.Ctx, entry.Name, entry.Params)
		if err != nil {
			return 0, err
		}
		branches = append(branches, branch{selector: sel, funcID: wrapperID})
	}

	if r.HasConstructor {
		sel, err := abi.Selector(r.Ctx, "constructor", nil)
		if err != nil {
			return 0, err
		}
		branches = append(branches, branch{selector: sel, funcID: r.ConstructorFuncID})
	}

	sort.Slice(branches, func(i, j int) bool { return branches[i].selector < branches[j].selector })

	fb := newFuncBuilder([]wasmbin.ValueType{wasmbin.ValueTypeI32})
	calldataLen := uint32(0)
	host := r.Host

	bufPtr := fb.NextI32()
	fb.e.LocalGet(calldataLen).Call(r.Lib.AllocFuncID()).LocalSet(bufPtr)
	fb.e.LocalGet(bufPtr).Call(host.ReadArgs())

	fb.e.I32Const(int32(memory.OffsetCalldataPtr)).LocalGet(bufPtr).Store(wasmbin.OpcodeI32Store, 0)
	fb.e.I32Const(int32(memory.OffsetCalldataLen)).LocalGet(calldataLen).Store(wasmbin.OpcodeI32Store, 0)

	selector := fb.NextI32()
	fb.e.LocalGet(bufPtr).Load(wasmbin.OpcodeI32Load, 0).LocalSet(selector)

	for _, br := range branches {
		fb.e.LocalGet(selector).I32Const(int32(byteSwap32(br.selector))).I32Eq()
		fb.e.If(wasmbin.BlockType{Empty: true})
		{
			fb.e.LocalGet(bufPtr).LocalGet(calldataLen).Call(br.funcID)
			fb.e.I32Const(0).Call(host.StorageFlushCache())
			fb.e.I32Const(0).Return()
		}
		fb.e.End()
	}

	noMatchOff := r.Table.Offset(errenc.KindNoSelectorMatch)
	noMatchLen := uint32(len(errenc.EncodeErrorBlob(errenc.KindNoSelectorMatch.Message()))) - 4
	fb.e.I32Const(int32(noMatchOff + 4)).I32Const(int32(noMatchLen)).Call(host.WriteResult())
	fb.e.I32Const(1).Return()

	sig := &wasmbin.FunctionType{Params: []wasmbin.ValueType{wasmbin.ValueTypeI32}, Results: []wasmbin.ValueType{wasmbin.ValueTypeI32}}
	id := r.define(sig, fb.finish())
	r.EntrypointFuncID = id
	return id, nil
}

// byteSwap32 reverses the byte order of a 4-byte big-endian selector so
// it can be compared directly against an i32.load, which reads memory in
// WASM's native little-endian order — the same "store the reversed
// constant instead of byte-swapping at runtime" trick
// internal/errenc/runtime.go uses for its own fixed selector word.
func byteSwap32(v uint32) uint32 {
	return v>>24 | (v>>8)&0xff00 | (v<<8)&0xff0000 | v<<24
}
