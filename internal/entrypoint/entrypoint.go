// Package entrypoint builds the WASM functions that sit between the host
// and the translated Move functions (§4.8): the `user_entrypoint` router
// itself, one ABI-decode/invoke/ABI-encode wrapper per public function,
// and the synthetic `init`-guarded constructor. None of these bodies come
// from Move bytecode — they are hand-assembled the same way
// internal/memory.Allocator and internal/runtime.Library hand-assemble
// their own fixed bodies, reusing internal/abi for calldata codec work
// and internal/errenc for the revert path.
package entrypoint

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/abi"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/errenc"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/hostimports"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// Router owns every WASM function this package builds. It shares the
// type context, runtime library, ABI codec and error table the rest of
// the compiler already linked, and hands out its own function ids from
// the same nextFuncID counter every other lazily-linked package uses, so
// a wrapper, the dispatcher and the constructor all land in one
// contiguous run right after the translated Move functions.
type Router struct {
	Ctx   *types.Context
	Lib   *runtime.Library
	ABI   *abi.Codec
	Host  *hostimports.Registry
	Table *errenc.Table
	Err   *errenc.Codec

	// ImportCount mirrors internal/translate.Translator's field of the
	// same name: the module assembler sets it once the import section is
	// final, and every Call this package emits against another
	// compiler-defined function adds it to that function's WasmFuncID.
	ImportCount uint32

	nextFuncID func() uint32
	bodies     map[uint32]*wasmbin.Func
	types_     map[uint32]*wasmbin.FunctionType

	// WrapperFuncID maps a public FunctionEntry's WasmFuncID to the
	// wrapper function id the dispatcher calls into.
	WrapperFuncID map[uint32]uint32

	EntrypointFuncID  uint32
	HasConstructor    bool
	ConstructorFuncID uint32
}

// NewRouter builds a Router over already-linked shared state. nextFuncID
// is the same counter the module assembler threads through
// internal/runtime.NewLibrary and internal/hostimports.NewRegistry.
func NewRouter(ctx *types.Context, lib *runtime.Library, host *hostimports.Registry, table *errenc.Table, nextFuncID func() uint32) *Router {
	return &Router{
		Ctx:           ctx,
		Lib:           lib,
		ABI:           &abi.Codec{Ctx: ctx, Lib: lib},
		Host:          host,
		Table:         table,
		Err:           errenc.NewCodec(lib),
		nextFuncID:    nextFuncID,
		bodies:        map[uint32]*wasmbin.Func{},
		types_:        map[uint32]*wasmbin.FunctionType{},
		WrapperFuncID: map[uint32]uint32{},
	}
}

// Bodies returns every function this package has built, indexed by
// WasmFuncID, for the module assembler to append alongside
// internal/translate.Translator's own Bodies().
func (r *Router) Bodies() map[uint32]*wasmbin.Func { return r.bodies }

// Types returns the WASM function signature for every id Bodies()
// reports, keyed the same way.
func (r *Router) Types() map[uint32]*wasmbin.FunctionType { return r.types_ }

func (r *Router) define(sig *wasmbin.FunctionType, body *wasmbin.Func) uint32 {
	id := r.nextFuncID()
	r.types_[id] = sig
	r.bodies[id] = body
	return id
}

// funcBuilder accumulates one hand-assembled function's scratch locals
// and instruction stream. Unlike internal/translate's funcState, these
// functions have no Move locals of their own and no compile-time operand
// stack to mirror — every local past the declared parameters is scratch,
// and the caller is responsible for tracking what it pushed.
type funcBuilder struct {
	e          *wasmbin.Emitter
	paramCount uint32
	scratch    []wasmbin.ValueType
}

func newFuncBuilder(params []wasmbin.ValueType) *funcBuilder {
	return &funcBuilder{e: wasmbin.NewEmitter(), paramCount: uint32(len(params))}
}

func (b *funcBuilder) NextI32() uint32 { return b.next(wasmbin.ValueTypeI32) }
func (b *funcBuilder) NextI64() uint32 { return b.next(wasmbin.ValueTypeI64) }

func (b *funcBuilder) next(t wasmbin.ValueType) uint32 {
	idx := b.paramCount + uint32(len(b.scratch))
	b.scratch = append(b.scratch, t)
	return idx
}

func (b *funcBuilder) finish() *wasmbin.Func {
	b.e.End()
	return &wasmbin.Func{Locals: wasmbin.GroupLocals(b.scratch), Body: b.e.Bytes()}
}
