package types

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

func TestScalarStackShape(t *testing.T) {
	require.Equal(t, wasmbin.ValueTypeI32, Bool().WasmStackType())
	require.Equal(t, wasmbin.ValueTypeI32, U32().WasmStackType())
	require.Equal(t, wasmbin.ValueTypeI64, U64().WasmStackType())
	require.Equal(t, 4, U32().StackDataSize())
	require.Equal(t, 8, U64().StackDataSize())
}

func TestHeapTypeClassification(t *testing.T) {
	for _, ty := range []Type{U128(), U256(), Address(), Signer(), Vector(U8())} {
		require.True(t, ty.IsHeapType(), "%s should be heap", ty.Kind)
	}
	for _, ty := range []Type{Bool(), U8(), U16(), U32(), U64()} {
		require.True(t, ty.IsStackType(), "%s should be stack", ty.Kind)
		require.False(t, ty.IsHeapType())
	}
}

func TestHeapMemoryDataSize(t *testing.T) {
	ctx := NewContext(nil)
	sz, ok := U128().HeapMemoryDataSize(ctx)
	require.True(t, ok)
	require.Equal(t, 16, sz)
	sz, ok = U256().HeapMemoryDataSize(ctx)
	require.True(t, ok)
	require.Equal(t, 32, sz)
	_, ok = Vector(U8()).HeapMemoryDataSize(ctx)
	require.False(t, ok)
}

func TestStorageFieldSize(t *testing.T) {
	require.Equal(t, 1, U8().StorageFieldSize())
	require.Equal(t, 2, U16().StorageFieldSize())
	require.Equal(t, 4, U32().StorageFieldSize())
	require.Equal(t, 8, U64().StorageFieldSize())
	require.Equal(t, 16, U128().StorageFieldSize())
	require.Equal(t, 32, U256().StorageFieldSize())
	require.Equal(t, 32, Address().StorageFieldSize())
	require.Equal(t, 32, Vector(U8()).StorageFieldSize())
}

func TestSolNameScalarsAndVectors(t *testing.T) {
	ctx := NewContext(nil)
	name, ok := U64().SolName(ctx)
	require.True(t, ok)
	require.Equal(t, "uint64", name)

	name, ok = Vector(U32()).SolName(ctx)
	require.True(t, ok)
	require.Equal(t, "uint32[]", name)

	_, ok = Signer().SolName(ctx)
	require.False(t, ok, "signer never appears in the ABI")
}

func TestSolNameStruct(t *testing.T) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x01},
		Structs: []bytecode.StructDef{
			{
				Index: 0,
				Name:  "Pair",
				Fields: []bytecode.FieldDef{
					{Name: "a", Type: bytecode.SignatureToken{Kind: bytecode.SigAddress}},
					{Name: "b", Type: bytecode.SignatureToken{Kind: bytecode.SigBool}},
				},
			},
		},
	}
	ctx := NewContext([]*bytecode.Module{mod})
	ty := Type{Kind: KindStruct, ModuleID: mod.ID, DefIndex: 0}
	name, ok := ty.SolName(ctx)
	require.True(t, ok)
	require.Equal(t, "(address,bool)", name)
}

func TestEqualTreatsUnknownAsWildcard(t *testing.T) {
	require.True(t, Unknown().Equal(U64()))
	require.True(t, U64().Equal(Unknown()))
	require.False(t, U64().Equal(U32()))
}

func TestSubstituteReplacesTypeParameters(t *testing.T) {
	generic := Vector(TypeParameter(0))
	concrete := generic.Substitute([]Type{Address()})
	require.Equal(t, KindAddress, concrete.Elem.Kind)
	require.False(t, concrete.IsGeneric())
}
