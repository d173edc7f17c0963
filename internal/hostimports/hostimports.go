// Package hostimports assigns stable function indices to the fixed
// vm_hooks host-import surface (§6) that every emitted module links
// against: calldata I/O, storage access, message context, logging, and
// cross-contract calls. Grounded on wazero's host-module linking
// (internal/wasm's import resolution assigns each host function a stable
// index in the module's function index space before any defined function
// is appended) generalized from "link a host module the runtime provides"
// to "link the fixed vm_hooks module this compiler's output always
// imports".
package hostimports

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

const moduleName = "vm_hooks"

// Registry is the lazy-linking cache for vm_hooks imports, mirroring
// internal/runtime.Library's request-by-name pattern: the first request
// for a given hook records an Import/FunctionType pair and assigns it the
// next function index; later requests return the same index. Imported
// functions must occupy the low end of the function index space (WASM
// requires all imports before any defined function), so the module
// assembler must finish linking every hostimports.Registry method it will
// ever call before handing nextFuncID to internal/runtime.Library.
type Registry struct {
	nextFuncID func() uint32

	cache map[string]uint32
	Imports []*wasmbin.Import
	Types   []*wasmbin.FunctionType
}

// NewRegistry builds a Registry. nextFuncID hands out the next free
// function index each time a new hook is linked.
func NewRegistry(nextFuncID func() uint32) *Registry {
	return &Registry{nextFuncID: nextFuncID, cache: make(map[string]uint32)}
}

func (r *Registry) request(name string, sig *wasmbin.FunctionType) uint32 {
	if id, ok := r.cache[name]; ok {
		return id
	}
	id := r.nextFuncID()
	r.cache[name] = id
	r.Imports = append(r.Imports, &wasmbin.Import{Module: moduleName, Name: name, Kind: wasmbin.ExternTypeFunc})
	r.Types = append(r.Types, sig)
	return id
}

var (
	i32 = wasmbin.ValueTypeI32
	i64 = wasmbin.ValueTypeI64
)

func sig(params []byte, results []byte) *wasmbin.FunctionType {
	return &wasmbin.FunctionType{Params: params, Results: results}
}

// ReadArgs links read_args(ptr) -> (): copy calldata into memory at ptr.
func (r *Registry) ReadArgs() uint32 {
	return r.request("read_args", sig([]byte{i32}, nil))
}

// WriteResult links write_result(ptr, len) -> (): record return data.
func (r *Registry) WriteResult() uint32 {
	return r.request("write_result", sig([]byte{i32, i32}, nil))
}

// StorageLoadBytes32 links storage_load_bytes32(key_ptr, out_ptr) -> ():
// read a 32-byte storage slot.
func (r *Registry) StorageLoadBytes32() uint32 {
	return r.request("storage_load_bytes32", sig([]byte{i32, i32}, nil))
}

// StorageCacheBytes32 links storage_cache_bytes32(key_ptr, val_ptr) -> ():
// stage a 32-byte slot write, committed by StorageFlushCache.
func (r *Registry) StorageCacheBytes32() uint32 {
	return r.request("storage_cache_bytes32", sig([]byte{i32, i32}, nil))
}

// StorageFlushCache links storage_flush_cache(clear) -> (): commit staged
// writes. Must be called exactly once per invocation, after every storage
// mutation, per §5's ordering requirement.
func (r *Registry) StorageFlushCache() uint32 {
	return r.request("storage_flush_cache", sig([]byte{i32}, nil))
}

// TxOrigin links tx_origin(out_ptr) -> (): the top-level transaction sender.
func (r *Registry) TxOrigin() uint32 {
	return r.request("tx_origin", sig([]byte{i32}, nil))
}

// MsgSender links msg_sender(out_ptr) -> (): the immediate caller.
func (r *Registry) MsgSender() uint32 {
	return r.request("msg_sender", sig([]byte{i32}, nil))
}

// MsgValue links msg_value(out_ptr) -> (): wei attached to the call.
func (r *Registry) MsgValue() uint32 {
	return r.request("msg_value", sig([]byte{i32}, nil))
}

// BlockNumber links block_number() -> i64: the L2 block number.
func (r *Registry) BlockNumber() uint32 {
	return r.request("block_number", sig(nil, []byte{i64}))
}

// EmitLog links emit_log(ptr, len, topic_count) -> (): EVM LOG0..LOG4.
func (r *Registry) EmitLog() uint32 {
	return r.request("emit_log", sig([]byte{i32, i32, i32}, nil))
}

// CallContract links call_contract(addr, cd_ptr, cd_len, val_ptr, gas,
// ret_len_ptr) -> i32: a synchronous cross-contract call returning a
// status code.
func (r *Registry) CallContract() uint32 {
	return r.request("call_contract", sig([]byte{i32, i32, i32, i32, i64, i32}, []byte{i32}))
}

// ReadReturnData links read_return_data(out_ptr, offset, len) -> i32:
// fetch bytes from a prior CallContract's return data.
func (r *Registry) ReadReturnData() uint32 {
	return r.request("read_return_data", sig([]byte{i32, i32, i32}, []byte{i32}))
}

// PayForMemoryGrow links pay_for_memory_grow(pages) -> (): meters memory
// growth against the call's gas budget.
func (r *Registry) PayForMemoryGrow() uint32 {
	return r.request("pay_for_memory_grow", sig([]byte{i32}, nil))
}
