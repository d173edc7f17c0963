package storage

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/hostimports"
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

func newTestCodec(mods []*bytecode.Module) *Codec {
	ctx := types.NewContext(mods)
	lib := newTestLibrary()
	host := hostimports.NewRegistry(func() uint32 {
		id := uint32(1000)
		return id
	})
	return NewCodec(ctx, lib, host)
}

func pairStructModule() (*bytecode.Module, types.Type) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x03},
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

func TestEncodeStructPacksFieldsIntoOneSlot(t *testing.T) {
	mod, ty := pairStructModule()
	c := newTestCodec([]*bytecode.Module{mod})
	st, err := resolveStruct(c.Ctx, ty)
	require.NoError(t, err)

	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.EncodeStruct(st, 0, 0, sc, e))
	require.NotEmpty(t, e.Bytes())
	require.Contains(t, e.Bytes(), byte(wasmbin.OpcodeI32Store8))
}

func TestDecodeStructReadsFieldsBack(t *testing.T) {
	mod, ty := pairStructModule()
	c := newTestCodec([]*bytecode.Module{mod})
	st, err := resolveStruct(c.Ctx, ty)
	require.NoError(t, err)

	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	out, err := c.DecodeStruct(st, 0, sc, e)
	require.NoError(t, err)
	require.NotZero(t, out)
	require.NotEmpty(t, e.Bytes())
}

func TestEncodeStructFlushesAfterSlotOverflow(t *testing.T) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x04},
		Structs: []bytecode.StructDef{
			{
				Index: 0,
				Name:  "Wide",
				Fields: []bytecode.FieldDef{
					{Name: "a", Type: bytecode.SignatureToken{Kind: bytecode.SigU256}},
					{Name: "b", Type: bytecode.SignatureToken{Kind: bytecode.SigU256}},
				},
			},
		},
	}
	ty := types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0}
	c := newTestCodec([]*bytecode.Module{mod})
	st, err := resolveStruct(c.Ctx, ty)
	require.NoError(t, err)

	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.EncodeStruct(st, 0, 0, sc, e))
	// two u256 fields can't share a slot, so the codec must advance the
	// slot key at least once via HeapAdd's generated function.
	require.Contains(t, e.Bytes(), byte(wasmbin.OpcodeCall))
}

func TestVectorOfVectorRejectedInStorage(t *testing.T) {
	c := newTestCodec(nil)
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	cur := &cursor{key: 0}
	err := c.encodeOneField(types.Vector(types.Vector(types.U32())), 0, cur, sc, e)
	require.Error(t, err)
}

func TestVectorOfStructRejectedInStorage(t *testing.T) {
	mod, structTy := pairStructModule()
	c := newTestCodec([]*bytecode.Module{mod})
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	cur := &cursor{key: 0}
	err := c.encodeOneField(types.Vector(structTy), 0, cur, sc, e)
	require.Error(t, err)
}

func TestIsStorageHandleClassifiesVectorAndBytes(t *testing.T) {
	require.True(t, isStorageHandle(types.Vector(types.U32())))
	require.True(t, isStorageHandle(types.Type{VMTag: bytecode.VMTagString}))
	require.True(t, isStorageHandle(types.Type{VMTag: bytecode.VMTagBytes}))
	require.True(t, isStorageHandle(types.Type{VMTag: bytecode.VMTagTable}))
	require.True(t, isStorageHandle(types.Type{VMTag: bytecode.VMTagDynamicField}))
	require.False(t, isStorageHandle(types.U32()))
}

func TestVectorSlotWidthWidensU64(t *testing.T) {
	require.Equal(t, 8, vectorSlotWidth(types.U64()))
	require.Equal(t, 4, vectorSlotWidth(types.U32()))
	require.Equal(t, 4, vectorSlotWidth(types.Address()))
}

func simpleEnumModule() (*bytecode.Module, types.Type) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x05},
		Enums: []bytecode.EnumDef{
			{
				Index: 0,
				Name:  "Flag",
				Variants: []bytecode.VariantDef{
					{Name: "Off"},
					{Name: "On"},
				},
			},
		},
	}
	return mod, types.Type{Kind: types.KindEnum, ModuleID: mod.ID, DefIndex: 0}
}

func TestEncodeSimpleEnumWritesOneByte(t *testing.T) {
	mod, ty := simpleEnumModule()
	c := newTestCodec([]*bytecode.Module{mod})
	en, err := resolveEnum(c.Ctx, ty)
	require.NoError(t, err)
	require.True(t, en.IsSimple())

	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.encodeEnumRegion(en, 0, 0, sc, e))
	require.Contains(t, e.Bytes(), byte(wasmbin.OpcodeI32Store8))
}

func payloadEnumModule() (*bytecode.Module, types.Type) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x06},
		Enums: []bytecode.EnumDef{
			{
				Index: 0,
				Name:  "Shape",
				Variants: []bytecode.VariantDef{
					{Name: "Circle", Fields: []bytecode.SignatureToken{
						{Kind: bytecode.SigU64},
					}},
					{Name: "Square", Fields: []bytecode.SignatureToken{
						{Kind: bytecode.SigU32},
					}},
				},
			},
		},
	}
	return mod, types.Type{Kind: types.KindEnum, ModuleID: mod.ID, DefIndex: 0}
}

func TestEnumTableIndexInternsByIdentity(t *testing.T) {
	mod, ty := payloadEnumModule()
	c := newTestCodec([]*bytecode.Module{mod})
	en, err := resolveEnum(c.Ctx, ty)
	require.NoError(t, err)

	idx1, err := c.enumTableIndex(en)
	require.NoError(t, err)
	idx2, err := c.enumTableIndex(en)
	require.NoError(t, err)
	require.Equal(t, idx1, idx2)
}

func TestEnumTableIndexOverflowsAfterLimit(t *testing.T) {
	c := newTestCodec(nil)
	for i := 0; i < maxEnumsInTable; i++ {
		en := &types.Enum{DefIndex: i, Name: "E"}
		_, err := c.enumTableIndex(en)
		require.NoError(t, err)
	}
	extra := &types.Enum{DefIndex: maxEnumsInTable, Name: "Overflow"}
	_, err := c.enumTableIndex(extra)
	require.Error(t, err)
}

func TestTableBytesRendersOneRowPerEnum(t *testing.T) {
	mod, ty := payloadEnumModule()
	c := newTestCodec([]*bytecode.Module{mod})
	en, err := resolveEnum(c.Ctx, ty)
	require.NoError(t, err)
	idx, err := c.enumTableIndex(en)
	require.NoError(t, err)

	out := c.TableBytes()
	require.Len(t, out, maxEnumsInTable*16)
	wantSize := byte(en.StorageEncodedLen())
	row := out[idx*16 : (idx+1)*16]
	for _, b := range row {
		require.Equal(t, wantSize, b)
	}
}

func TestDecodeEnumRegionAllocatesHeapSize(t *testing.T) {
	mod, ty := payloadEnumModule()
	c := newTestCodec([]*bytecode.Module{mod})
	en, err := resolveEnum(c.Ctx, ty)
	require.NoError(t, err)

	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	out, err := c.decodeEnumRegion(en, 0, sc, e)
	require.NoError(t, err)
	require.NotZero(t, out)
	require.Contains(t, e.Bytes(), byte(wasmbin.OpcodeI32Load8U))
}

func TestLoadObjectTrapsWhenOwnerUnset(t *testing.T) {
	mod, ty := pairStructModule()
	c := newTestCodec([]*bytecode.Module{mod})
	st, err := resolveStruct(c.Ctx, ty)
	require.NoError(t, err)

	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	_, err = c.LoadObject(st, 0, sc, e)
	require.NoError(t, err)
	require.Contains(t, e.Bytes(), byte(wasmbin.OpcodeUnreachable))
}

func TestStoreObjectRecordsOwnerThenEncodesFields(t *testing.T) {
	mod, ty := pairStructModule()
	c := newTestCodec([]*bytecode.Module{mod})
	st, err := resolveStruct(c.Ctx, ty)
	require.NoError(t, err)

	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	require.NoError(t, c.StoreObject(st, 0, 0, 0, sc, e))
	require.NotEmpty(t, e.Bytes())
}

func TestDynamicFieldSlotReusesObjectSlot(t *testing.T) {
	c := newTestCodec(nil)
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	key := c.DynamicFieldSlot(0, 0, sc, e)
	require.NotZero(t, key)
	require.Contains(t, e.Bytes(), byte(wasmbin.OpcodeCall))
}

func TestPeekOwnerLoadsThirtyTwoBytes(t *testing.T) {
	c := newTestCodec(nil)
	e := wasmbin.NewEmitter()
	sc := &fakeScratch{}
	out := c.PeekOwner(0, sc, e)
	require.NotZero(t, out)
	require.Contains(t, e.Bytes(), byte(wasmbin.OpcodeI32Const))
}
