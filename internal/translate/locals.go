package translate

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// localType returns the Move type of local index i (parameters, then
// declared locals, in WASM local-index order).
func (fs *funcState) localType(i int) types.Type {
	return fs.localTypes[i]
}

// hoistBorrowedLocals scans this function's instructions for BorrowLoc
// targets and promotes each one to live in a dedicated linear-memory
// cell for the whole function body (§4.7): WASM locals have no address,
// so a local that's ever borrowed can't be represented as a plain local
// the way an unborrowed one is. The cell holds the local's stack value
// itself: the raw value for a scalar (8 bytes for u64, which is not
// boxed behind a pointer the way a u64 struct field is; 4 bytes
// otherwise) and a pointer for anything heap-allocated, keeping
// MoveLoc/CopyLoc/StLoc's byte-level behavior identical to the unboxed
// case once routed through emitLocalGet/emitLocalSet below.
func (fs *funcState) hoistBorrowedLocals() error {
	borrowed := map[int]bool{}
	for _, instr := range fs.def.Code {
		if instr.Op == bytecode.OpBorrowLoc {
			borrowed[instr.LocalIndex] = true
		}
	}
	if len(borrowed) == 0 {
		return nil
	}

	for i := range fs.localTypes {
		if !borrowed[i] {
			continue
		}
		t := fs.localType(i)
		addr := fs.NextI32()
		fs.boxed[i] = addr

		cellSize := int32(4)
		if t.Kind == types.KindU64 {
			cellSize = 8
		}
		fs.e.I32Const(cellSize).Call(fs.tr.Lib.AllocFuncID()).LocalSet(addr)

		// Parameters start with a real incoming value; seed the cell
		// from it so a read before any StLoc sees the argument, not
		// zeroed memory. Declared (non-parameter) locals are always
		// written by StLoc before they're read (Move's verifier
		// guarantees definite assignment), so no seed is needed there.
		if i < len(fs.entry.Params) {
			fs.e.LocalGet(addr)
			fs.e.LocalGet(uint32(i))
			storeCell(fs.e, t, 0)
		}
	}
	return nil
}

// storeCell stores a value already on top of the WASM stack into the
// cell at address+offset, using the type's natural width (8 bytes for
// u64, 4 for everything else — every other stack scalar and every heap
// pointer).
func storeCell(e *wasmbin.Emitter, t types.Type, offset uint32) {
	if t.Kind == types.KindU64 {
		e.Store(wasmbin.OpcodeI64Store, offset)
		return
	}
	e.Store(wasmbin.OpcodeI32Store, offset)
}

// loadCell loads the value at address+offset using the type's natural
// width, leaving it on top of the WASM stack. address must already be on
// the stack.
func loadCell(e *wasmbin.Emitter, t types.Type, offset uint32) {
	if t.Kind == types.KindU64 {
		e.Load(wasmbin.OpcodeI64Load, offset)
		return
	}
	e.Load(wasmbin.OpcodeI32Load, offset)
}

// emitLocalGet pushes Move local i's current value, reading through its
// boxed cell if i was ever borrowed, or the plain WASM local otherwise.
func (fs *funcState) emitLocalGet(i int) {
	if addr, ok := fs.boxed[i]; ok {
		fs.e.LocalGet(addr)
		loadCell(fs.e, fs.localType(i), 0)
		return
	}
	fs.e.LocalGet(uint32(i))
}

// emitLocalSet pops the top of the WASM stack into Move local i, writing
// through its boxed cell if i was ever borrowed.
func (fs *funcState) emitLocalSet(i int) {
	if addr, ok := fs.boxed[i]; ok {
		t := fs.localType(i)
		tmp := fs.scratchFor(t)
		fs.e.LocalSet(tmp)
		fs.e.LocalGet(addr)
		fs.e.LocalGet(tmp)
		storeCell(fs.e, t, 0)
		return
	}
	fs.e.LocalSet(uint32(i))
}

// scratchFor requests a scratch local wide enough to hold t's stack
// representation.
func (fs *funcState) scratchFor(t types.Type) uint32 {
	if t.WasmStackType() == wasmbin.ValueTypeI64 {
		return fs.NextI64()
	}
	return fs.NextI32()
}
