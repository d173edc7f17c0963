package runtime

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

type fakeScratch struct{ next uint32 }

func (f *fakeScratch) NextI32() uint32 { f.next++; return f.next }
func (f *fakeScratch) NextI64() uint32 { f.next++; return f.next }

func TestCopyInstructionsStackTypeEmitsNothing(t *testing.T) {
	ctx := types.NewContext(nil)
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, CopyInstructions(ctx, types.U32(), nil, sc, e))
	require.Empty(t, e.Bytes())
}

func TestCopyInstructionsHeapScalarAllocatesAndCopies(t *testing.T) {
	ctx := types.NewContext(nil)
	lib := newTestLibrary()
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, CopyInstructions(ctx, types.U256(), lib, sc, e))
	require.NotEmpty(t, e.Bytes())
}

func TestEqualityInstructionsScalar(t *testing.T) {
	ctx := types.NewContext(nil)
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, EqualityInstructions(ctx, types.U64(), sc, e))
	require.Equal(t, []byte{wasmbin.OpcodeI64Eq}, e.Bytes())
}

func TestEqualityInstructionsHeapScalarEmitsByteCompare(t *testing.T) {
	ctx := types.NewContext(nil)
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, EqualityInstructions(ctx, types.U128(), sc, e))
	require.NotEmpty(t, e.Bytes())
}
