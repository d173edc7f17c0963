package translate

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

func pairModule() *bytecode.Module {
	return &bytecode.Module{
		ID: bytecode.ModuleID{0x03},
		Structs: []bytecode.StructDef{
			{
				Index: 0,
				Name:  "Pair",
				Fields: []bytecode.FieldDef{
					{Name: "a", Type: bytecode.SignatureToken{Kind: bytecode.SigU64}},
					{Name: "b", Type: bytecode.SignatureToken{Kind: bytecode.SigBool}},
				},
			},
		},
		Enums: []bytecode.EnumDef{
			{
				Index: 0,
				Name:  "Choice",
				Variants: []bytecode.VariantDef{
					{Name: "None"},
					{Name: "Some", Fields: []bytecode.SignatureToken{{Kind: bytecode.SigU64}}},
				},
			},
		},
	}
}

func TestEmitPackUnpackRoundTrip(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)
	fs.stack.Push(types.U64())
	fs.stack.Push(types.Bool())

	instr := bytecode.Instruction{Op: bytecode.OpPack, StructIndex: 0}
	require.NoError(t, fs.emitPack(instr, nil))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindStruct, got.Kind)
	require.Equal(t, 1, fs.stack.Len())

	// ptr is still on the stack; Unpack discards it, re-pushing fields.
	fs.stack.Push(got)
	require.NoError(t, fs.emitUnpack(instr, nil))

	b, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindBool, b.Kind)
	a, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU64, a.Kind)
}

func TestEmitPackBoxesU64Field(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)
	fs.stack.Push(types.U64())
	fs.stack.Push(types.Bool())

	instr := bytecode.Instruction{Op: bytecode.OpPack, StructIndex: 0}
	require.NoError(t, fs.emitPack(instr, nil))

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64Store))
}

func TestEmitBorrowFieldOnStructValue(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)
	fs.stack.Push(types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0})

	instr := bytecode.Instruction{Op: bytecode.OpBorrowField, FieldIndex: 1}
	require.NoError(t, fs.emitBorrowField(instr))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindMutRef, got.Kind)
	require.Equal(t, types.KindBool, got.Elem.Kind)
}

func TestEmitBorrowFieldThroughReference(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)
	base := types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0}
	fs.stack.Push(types.MutRef(base))

	instr := bytecode.Instruction{Op: bytecode.OpBorrowField, FieldIndex: 0}
	require.NoError(t, fs.emitBorrowField(instr))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindMutRef, got.Kind)
	require.Equal(t, types.KindU64, got.Elem.Kind)
}

func TestEmitBorrowFieldOutOfRange(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)
	fs.stack.Push(types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0})

	instr := bytecode.Instruction{Op: bytecode.OpBorrowField, FieldIndex: 5}
	err := fs.emitBorrowField(instr)
	require.Error(t, err)
}

func TestEmitBorrowFieldNonStructOperand(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U64())

	err := fs.emitBorrowField(bytecode.Instruction{Op: bytecode.OpBorrowField, FieldIndex: 0})
	require.Error(t, err)
}

func TestEmitPackVariantUnpackVariantRoundTrip(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)
	fs.stack.Push(types.U64())

	instr := bytecode.Instruction{Op: bytecode.OpPackVariant, EnumIndex: 0, VariantIndex: 1}
	require.NoError(t, fs.emitPackVariant(instr))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindEnum, got.Kind)

	fs.stack.Push(got)
	require.NoError(t, fs.emitUnpackVariant(instr))

	field, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU64, field.Kind)
}

func TestEmitPackVariantDiscriminatorStored(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)
	fs.stack.Push(types.U64())

	instr := bytecode.Instruction{Op: bytecode.OpPackVariant, EnumIndex: 0, VariantIndex: 1}
	require.NoError(t, fs.emitPackVariant(instr))

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI32Store))
}

func TestEmitPackVariantOutOfRange(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)

	instr := bytecode.Instruction{Op: bytecode.OpPackVariant, EnumIndex: 0, VariantIndex: 9}
	err := fs.emitPackVariant(instr)
	require.Error(t, err)
}

func TestEmitBorrowGlobalPushesMutRefToStruct(t *testing.T) {
	mod := pairModule()
	fs := newTestFuncState(t, mod)
	fs.stack.Push(types.Address())

	instr := bytecode.Instruction{Op: bytecode.OpBorrowGlobal, StructIndex: 0}
	require.NoError(t, fs.emitBorrowGlobal(instr))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindMutRef, got.Kind)
	require.Equal(t, types.KindStruct, got.Elem.Kind)
}

func TestResolveStructGenericInstantiation(t *testing.T) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x04},
		Structs: []bytecode.StructDef{
			{
				Index:          0,
				Name:           "Box",
				TypeParameters: 1,
				Fields: []bytecode.FieldDef{
					{Name: "v", Type: bytecode.SignatureToken{Kind: bytecode.SigTypeParameter, ParamIndex: 0}},
				},
			},
		},
	}
	fs := newTestFuncState(t, mod)
	raw := []bytecode.SignatureToken{{Kind: bytecode.SigU64}}

	st, ty, err := fs.resolveStruct(0, raw)
	require.NoError(t, err)
	require.Equal(t, types.KindGenericStructInstance, ty.Kind)
	require.Len(t, st.Fields, 1)
	require.Equal(t, types.KindU64, st.Fields[0].Type.Kind)
}
