package translate

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

func TestVectorElemSize(t *testing.T) {
	require.Equal(t, 8, vectorElemSize(types.U64()))
	require.Equal(t, 4, vectorElemSize(types.U8()))
	require.Equal(t, 4, vectorElemSize(types.Bool()))
	require.Equal(t, 4, vectorElemSize(types.Address()))
}

func TestVectorElemUnwrapsReference(t *testing.T) {
	elem, err := vectorElem(types.MutRef(types.Vector(types.U32())))
	require.NoError(t, err)
	require.Equal(t, types.KindU32, elem.Kind)
}

func TestVectorElemRejectsNonVector(t *testing.T) {
	_, err := vectorElem(types.U64())
	require.Error(t, err)
}

func TestEmitVecLenPushesU64(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.Vector(types.U8()))

	require.NoError(t, fs.emitVecLen())

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU64, got.Kind)

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64ExtendI32U))
}

func TestEmitVecBorrowPushesMutRefToElem(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.Vector(types.U64()))
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitVecBorrow())

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindMutRef, got.Kind)
	require.Equal(t, types.KindU64, got.Elem.Kind)
}

func TestEmitVecPushBackKeepsVectorType(t *testing.T) {
	fs := newTestFuncState(t, nil)
	vecTy := types.Vector(types.U32())
	fs.stack.Push(vecTy)
	fs.stack.Push(types.U32())

	require.NoError(t, fs.emitVecPushBack())

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindVector, got.Kind)
	require.Equal(t, types.KindU32, got.Elem.Kind)

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI32Store))
}

func TestEmitVecPushBackU64ElementUsesI64Store(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.Vector(types.U64()))
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitVecPushBack())

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64Store))
}

func TestEmitVecPopBackPushesElemType(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.Vector(types.Bool()))

	require.NoError(t, fs.emitVecPopBack())

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindBool, got.Kind)
}

func TestEmitVecSwapLeavesNothingOnStack(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.Vector(types.U64()))
	fs.stack.Push(types.U64())
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitVecSwap())
	require.Equal(t, 0, fs.stack.Len())

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64Load))
	require.Contains(t, body, byte(wasmbin.OpcodeI64Store))
}

func TestEmitVecSwapNarrowElementUsesI32(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.Vector(types.U8()))
	fs.stack.Push(types.U64())
	fs.stack.Push(types.U64())

	require.NoError(t, fs.emitVecSwap())

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI32Load))
	require.Contains(t, body, byte(wasmbin.OpcodeI32Store))
}
