package translate

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

func TestEmitArithAddPushesSameWidth(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U32())
	fs.stack.Push(types.U32())

	require.NoError(t, fs.emitArith(bytecode.OpAdd))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU32, got.Kind)
	require.Equal(t, 0, fs.stack.Len())
}

func TestEmitArithU128AddUsesHeapHelper(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U128())
	fs.stack.Push(types.U128())

	require.NoError(t, fs.emitArith(bytecode.OpAdd))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU128, got.Kind)
}

func TestEmitArithU128MulUnsupported(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U128())
	fs.stack.Push(types.U128())

	err := fs.emitArith(bytecode.OpMul)
	require.Error(t, err)
}

func TestEmitDivModTrapsOnZeroDivisorFirst(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U32())
	fs.stack.Push(types.U32())

	require.NoError(t, fs.emitArith(bytecode.OpDiv))

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI32Eqz))
	require.Contains(t, body, byte(wasmbin.OpcodeUnreachable))
	require.Contains(t, body, byte(wasmbin.OpcodeI32DivU))
}

func TestEmitDivModU64UsesI64Rem(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U64())
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitArith(bytecode.OpMod))

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64RemU))
}

func TestEmitShiftWidensCountForU64(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U64())
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitArith(bytecode.OpShl))

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64ExtendI32U))
	require.Contains(t, body, byte(wasmbin.OpcodeI64Shl))
}

func TestEmitCompareLtPushesBool(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U16())
	fs.stack.Push(types.U16())

	require.NoError(t, fs.emitCompare(bytecode.OpLt))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindBool, got.Kind)
}

func TestEmitCompareHeapWidthUnsupported(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U256())
	fs.stack.Push(types.U256())

	err := fs.emitCompare(bytecode.OpLt)
	require.Error(t, err)
}

func TestEmitEqualityScalarPushesBool(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U64())
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitEquality(bytecode.OpEq))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindBool, got.Kind)
}

func TestEmitEqualityNeqNegatesResult(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.Bool())
	fs.stack.Push(types.Bool())

	require.NoError(t, fs.emitEquality(bytecode.OpNeq))

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI32Eqz))
}

func TestEmitEqualityStructFallsBackToFieldWalk(t *testing.T) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x02},
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
	}
	fs := newTestFuncState(t, mod)
	st := types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0}
	fs.stack.Push(st)
	fs.stack.Push(st)

	require.NoError(t, fs.emitEquality(bytecode.OpEq))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindBool, got.Kind)
}

func TestEmitLogicalAndOr(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.Bool())
	fs.stack.Push(types.Bool())
	require.NoError(t, fs.emitLogical(false))
	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI32And))

	fs = newTestFuncState(t, nil)
	fs.stack.Push(types.Bool())
	fs.stack.Push(types.Bool())
	require.NoError(t, fs.emitLogical(true))
	body = fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI32Or))
}

func TestEmitCastNarrowCallsDowncast(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitCast(bytecode.OpCastU8))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU8, got.Kind)
}

func TestEmitCastWidenToU64ExtendsI32(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U32())

	require.NoError(t, fs.emitCast(bytecode.OpCastU64))

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64ExtendI32U))
}

func TestEmitCastSameWidthIsNoop(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U32())

	require.NoError(t, fs.emitCast(bytecode.OpCastU32))
	require.Empty(t, fs.e.Bytes())
}

func TestEmitCastToHeapZeroExtends(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitCast(bytecode.OpCastU128))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU128, got.Kind)

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64Store))
}

func TestEmitCastFromHeapToStackUnsupported(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U128())

	err := fs.emitCast(bytecode.OpCastU32)
	require.Error(t, err)
}

func TestEmitCastHeapToHeapUnsupported(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U128())

	err := fs.emitCast(bytecode.OpCastU256)
	require.Error(t, err)
}
