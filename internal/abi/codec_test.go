package abi

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

type fakeScratch struct{ next uint32 }

func (f *fakeScratch) NextI32() uint32 { f.next++; return f.next }
func (f *fakeScratch) NextI64() uint32 { f.next++; return f.next }

func newTestLibrary() *runtime.Library {
	next := uint32(1)
	return runtime.NewLibrary(0, func() uint32 {
		id := next
		next++
		return id
	})
}

func TestDecodeScalarWordU32EmitsByteSwap(t *testing.T) {
	ctx := types.NewContext(nil)
	c := &Codec{Ctx: ctx, Lib: newTestLibrary()}
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.Decode(types.U32(), 0, 0, sc, e))
	require.NotEmpty(t, e.Bytes())
}

func TestDecodeScalarWordU8NeedsNoShift(t *testing.T) {
	ctx := types.NewContext(nil)
	c := &Codec{Ctx: ctx, Lib: newTestLibrary()}
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.Decode(types.U8(), 0, 0, sc, e))
	require.NotContains(t, e.Bytes(), byte(wasmbin.OpcodeI32ShrU))
}

func TestDecodeU64ReadsI64Word(t *testing.T) {
	ctx := types.NewContext(nil)
	c := &Codec{Ctx: ctx, Lib: newTestLibrary()}
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.Decode(types.U64(), 0, 0, sc, e))
	require.Contains(t, e.Bytes(), byte(wasmbin.OpcodeI64Load))
}

func TestDecodeHeapWordU128AllocatesAndSwaps(t *testing.T) {
	ctx := types.NewContext(nil)
	c := &Codec{Ctx: ctx, Lib: newTestLibrary()}
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.Decode(types.U128(), 0, 0, sc, e))
	require.NotEmpty(t, e.Bytes())
}

func TestDecodeHeapWordU256AllocatesAndSwaps(t *testing.T) {
	ctx := types.NewContext(nil)
	c := &Codec{Ctx: ctx, Lib: newTestLibrary()}
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.Decode(types.U256(), 0, 0, sc, e))
	require.NotEmpty(t, e.Bytes())
}

func staticPairModule() (*bytecode.Module, types.Type) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x02},
		Structs: []bytecode.StructDef{
			{
				Index: 0,
				Name:  "Pair",
				Fields: []bytecode.FieldDef{
					{Name: "a", Type: bytecode.SignatureToken{Kind: bytecode.SigU32}},
					{Name: "b", Type: bytecode.SignatureToken{Kind: bytecode.SigBool}},
				},
			},
		},
	}
	return mod, types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0}
}

func TestDecodeStaticStructSequencesFields(t *testing.T) {
	mod, ty := staticPairModule()
	ctx := types.NewContext([]*bytecode.Module{mod})
	c := &Codec{Ctx: ctx, Lib: newTestLibrary()}
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.Decode(ty, 0, 0, sc, e))
	require.NotEmpty(t, e.Bytes())
}

func TestDecodeVectorOfU32(t *testing.T) {
	ctx := types.NewContext(nil)
	c := &Codec{Ctx: ctx, Lib: newTestLibrary()}
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.Decode(types.Vector(types.U32()), 0, 0, sc, e))
	require.NotEmpty(t, e.Bytes())
}

func TestDecodeVectorOfVectorRejected(t *testing.T) {
	ctx := types.NewContext(nil)
	c := &Codec{Ctx: ctx, Lib: newTestLibrary()}
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	err := c.Decode(types.Vector(types.Vector(types.U32())), 0, 0, sc, e)
	require.Error(t, err)
}

func TestVectorSlotSizeWidensU64(t *testing.T) {
	require.Equal(t, 8, vectorSlotSize(types.U64()))
	require.Equal(t, 4, vectorSlotSize(types.U32()))
	require.Equal(t, 4, vectorSlotSize(types.Address()))
}
