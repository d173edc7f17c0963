package translate

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/errenc"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/hostimports"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/storage"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// newTestFuncState builds a funcState wired to a fresh Translator, for
// tests that exercise one emit* helper at a time against a hand-built
// compile-time stack. mod may be nil for tests that never resolve a
// struct/enum/function reference.
func newTestFuncState(t *testing.T, mod *bytecode.Module) *funcState {
	t.Helper()

	var modules []*bytecode.Module
	if mod != nil {
		modules = []*bytecode.Module{mod}
	}
	ctx := types.NewContext(modules)

	next := uint32(1) // 0 reserved for the allocator
	nextFuncID := func() uint32 {
		id := next
		next++
		return id
	}
	lib := runtime.NewLibrary(0, nextFuncID)
	host := hostimports.NewRegistry(nextFuncID)
	store := storage.NewCodec(ctx, lib, host)
	table := errenc.NewTable(0)

	tr := NewTranslator(ctx, lib, store, host, table, 0)

	if mod == nil {
		mod = &bytecode.Module{ID: bytecode.ModuleID{0x01}}
	}

	return &funcState{
		tr:    tr,
		mod:   mod,
		stack: types.NewStack(),
		e:     wasmbin.NewEmitter(),
		boxed: map[int]uint32{},
	}
}

func lastByte(e *wasmbin.Emitter) byte {
	b := e.Bytes()
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1]
}
