package memory

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// Allocator builds the module-wide bump allocator (§4.2): two mutable
// globals (next_free, available) plus the alloc(size) -> ptr function
// every other emitted function calls to get linear-memory space. There is
// no free: memory is monotonically allocated per invocation and
// discarded when the host tears the instance down (spec.md §1 Non-goals).
type Allocator struct {
	// GlobalNextFree and GlobalAvailable are the global indices assigned
	// once this Allocator's globals are appended to a Module's global
	// section; the module assembler sets these after layout.
	GlobalNextFree  uint32
	GlobalAvailable uint32
	// FuncID is the WASM function id (relative to defined functions,
	// before the import-count offset) of the alloc() function.
	FuncID uint32

	// StaticEnd is the first free byte after every static region the
	// module assembler has laid out ahead of the heap: the reserved
	// prefix (§3.6), the interned runtime-error blobs (§4.10), and the
	// translator's constant pool. next_free starts here rather than
	// directly after the fixed prefix, since those tables also occupy
	// fixed compile-time addresses below the heap. Left zero, it behaves
	// as "just the reserved prefix" only coincidentally for modules with
	// no interned blobs; the assembler always sets it explicitly.
	StaticEnd uint32
}

// Pages returns the number of 64KiB pages the module's initial memory
// section must declare to hold StaticEnd bytes, at least one.
func (a *Allocator) Pages() uint32 {
	pages := a.StaticEnd / InitialPageSize
	if a.StaticEnd%InitialPageSize != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// Globals returns the two globals this allocator needs, in
// (next_free, available) order. next_free starts at StaticEnd; available
// starts at whatever room is left in the initial memory pages.
func (a *Allocator) Globals() []*wasmbin.Global {
	avail := a.Pages()*InitialPageSize - a.StaticEnd
	return []*wasmbin.Global{
		{
			Type: wasmbin.ValueTypeI32, Mutable: true,
			Init: wasmbin.NewEmitter().I32Const(int32(a.StaticEnd)).End().Bytes(),
		},
		{
			Type: wasmbin.ValueTypeI32, Mutable: true,
			Init: wasmbin.NewEmitter().I32Const(int32(avail)).End().Bytes(),
		},
	}
}

// FunctionType is alloc's WASM signature: (i32 size) -> i32 ptr.
func (a *Allocator) FunctionType() *wasmbin.FunctionType {
	return &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32},
		Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
	}
}

// Body emits alloc's instructions (§4.2):
//
//	if available < size:
//	    pages = ceil((size - available) / 65536)
//	    if memory.grow(pages) == -1: unreachable
//	    available += pages * 65536
//	ptr = next_free
//	next_free += size
//	available -= size
//	return ptr
//
// Local 0 is the size parameter; locals 1 and 2 are scratch (pages, ptr).
func (a *Allocator) Body() *wasmbin.Func {
	const localSize = 0
	const localPages = 1
	const localPtr = 2

	e := wasmbin.NewEmitter()

	// if (available < size) { grow }
	e.GlobalGet(a.GlobalAvailable).LocalGet(localSize).I32LtU()
	e.If(wasmbin.BlockType{Empty: true})
	{
		// pages = (size - available + 65535) / 65536
		e.LocalGet(localSize).GlobalGet(a.GlobalAvailable).I32Sub()
		e.I32Const(InitialPageSize - 1).I32Add()
		e.I32Const(16) // 65536 == 1<<16, use shift to divide
		e.I32ShrU()
		e.LocalTee(localPages)

		e.MemoryGrow()
		e.I32Const(-1).I32Eq()
		e.If(wasmbin.BlockType{Empty: true})
		{
			e.Unreachable()
		}
		e.End()

		e.GlobalGet(a.GlobalAvailable)
		e.LocalGet(localPages).I32Const(16).I32Shl()
		e.I32Add()
		e.GlobalSet(a.GlobalAvailable)
	}
	e.End()

	e.GlobalGet(a.GlobalNextFree).LocalSet(localPtr)

	e.GlobalGet(a.GlobalNextFree).LocalGet(localSize).I32Add().GlobalSet(a.GlobalNextFree)
	e.GlobalGet(a.GlobalAvailable).LocalGet(localSize).I32Sub().GlobalSet(a.GlobalAvailable)

	e.LocalGet(localPtr).Return().End()

	return &wasmbin.Func{
		Locals: []wasmbin.Local{{Count: 2, Type: wasmbin.ValueTypeI32}},
		Body:   e.Bytes(),
	}
}
