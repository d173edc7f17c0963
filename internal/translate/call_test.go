package translate

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

func TestEmitCallEntryNoReturnPopsParamsOnly(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.stack.Push(types.U64())
	fs.stack.Push(types.Bool())

	entry := &types.FunctionEntry{
		Params:     []types.Type{types.U64(), types.Bool()},
		Returns:    nil,
		WasmFuncID: 3,
	}
	require.NoError(t, fs.emitCallEntry(entry))
	require.Equal(t, 0, fs.stack.Len())

	body := fs.e.Bytes()
	require.NotEmpty(t, body)
}

func TestEmitCallEntrySingleReturnPushesIt(t *testing.T) {
	fs := newTestFuncState(t, nil)
	entry := &types.FunctionEntry{
		Params:     nil,
		Returns:    []types.Type{types.U32()},
		WasmFuncID: 5,
	}
	require.NoError(t, fs.emitCallEntry(entry))

	got, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU32, got.Kind)
}

func TestEmitCallEntryOffsetsByImportCount(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.tr.ImportCount = 7
	entry := &types.FunctionEntry{WasmFuncID: 2}

	require.NoError(t, fs.emitCallEntry(entry))

	body := fs.e.Bytes()
	// Call opcode followed by LEB128(9): 0x09.
	require.Contains(t, body, byte(wasmbin.OpcodeCall))
	require.Contains(t, body, byte(9))
}

func TestEmitUnboxReturnTupleUnboxesU64Field(t *testing.T) {
	fs := newTestFuncState(t, nil)
	returns := []types.Type{types.Bool(), types.U64()}

	require.NoError(t, fs.emitUnboxReturnTuple(returns))

	b, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindU64, b.Kind)
	a, err := fs.stack.Pop()
	require.NoError(t, err)
	require.Equal(t, types.KindBool, a.Kind)

	body := fs.e.Bytes()
	require.Contains(t, body, byte(wasmbin.OpcodeI64Load))
}

func TestEmitCallEntryMultiReturnRoundTripsWithRet(t *testing.T) {
	fs := newTestFuncState(t, nil)
	fs.entry = &types.FunctionEntry{Returns: []types.Type{types.U64(), types.Bool(), types.U32()}}
	fs.stack.Push(types.U64())
	fs.stack.Push(types.Bool())
	fs.stack.Push(types.U32())

	require.NoError(t, fs.emitRet())

	fs2 := newTestFuncState(t, nil)
	entry := &types.FunctionEntry{Returns: fs.entry.Returns, WasmFuncID: 1}
	require.NoError(t, fs2.emitCallEntry(entry))
	require.Equal(t, 3, fs2.stack.Len())
}
