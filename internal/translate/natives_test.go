package translate

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

func TestCompileTypeNameNativeWritesLengthPrefixedBytes(t *testing.T) {
	fs := newTestFuncState(t, nil)
	entry := &types.FunctionEntry{WasmFuncID: 9}

	require.NoError(t, fs.tr.compileTypeNameNative(entry, []types.Type{types.U32()}))

	require.True(t, entry.Compiled)
	body, ok := fs.tr.bodies[9]
	require.True(t, ok)
	require.Contains(t, body.Body, byte('u'))
	require.Contains(t, body.Body, byte('3'))
	require.Contains(t, body.Body, byte(wasmbin.OpcodeI32Store8))
}

func TestCompileTypeNameNativeRejectsWrongArity(t *testing.T) {
	fs := newTestFuncState(t, nil)
	entry := &types.FunctionEntry{WasmFuncID: 1}

	err := fs.tr.compileTypeNameNative(entry, nil)
	require.Error(t, err)
}

func TestCompileTypeNameNativeFallsBackForUnnamedType(t *testing.T) {
	fs := newTestFuncState(t, nil)
	entry := &types.FunctionEntry{WasmFuncID: 2}

	require.NoError(t, fs.tr.compileTypeNameNative(entry, []types.Type{types.Signer()}))
	body, ok := fs.tr.bodies[2]
	require.True(t, ok)
	require.NotEmpty(t, body.Body)
}

func TestCompileExternalCallNativeEncodesSelectorAndArgs(t *testing.T) {
	fs := newTestFuncState(t, nil)
	handle := &bytecode.FunctionHandle{Name: "transferTo", Native: bytecode.NativeKindExternalCall}
	entry := &types.FunctionEntry{
		WasmFuncID: 4,
		Params:     []types.Type{{Kind: types.KindStruct}, types.U32()},
	}

	require.NoError(t, fs.tr.compileExternalCallNative(handle, entry))

	require.True(t, entry.Compiled)
	body, ok := fs.tr.bodies[4]
	require.True(t, ok)
	require.Contains(t, body.Body, byte(wasmbin.OpcodeCall))
}

func TestCompileExternalCallNativeRejectsDynamicArgument(t *testing.T) {
	fs := newTestFuncState(t, nil)
	handle := &bytecode.FunctionHandle{Name: "sendBytes", Native: bytecode.NativeKindExternalCall}
	entry := &types.FunctionEntry{
		WasmFuncID: 6,
		Params: []types.Type{
			{Kind: types.KindStruct},
			types.Vector(types.U8()),
		},
	}

	err := fs.tr.compileExternalCallNative(handle, entry)
	require.Error(t, err)
}

func TestCompileExternalCallNativeHonorsPayableAndGasFlags(t *testing.T) {
	fs := newTestFuncState(t, nil)
	handle := &bytecode.FunctionHandle{
		Name:            "pay",
		Native:          bytecode.NativeKindExternalCall,
		NativePayable:   true,
		NativeHasGasArg: true,
	}
	entry := &types.FunctionEntry{
		WasmFuncID: 7,
		Params: []types.Type{
			{Kind: types.KindStruct},
			types.U256(),
			types.U64(),
		},
	}

	require.NoError(t, fs.tr.compileExternalCallNative(handle, entry))
	body, ok := fs.tr.bodies[7]
	require.True(t, ok)
	require.Contains(t, body.Body, byte(wasmbin.OpcodeCall))
}

func eventTestModule() (*bytecode.Module, types.Type) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x02},
		Structs: []bytecode.StructDef{
			{
				Index: 0,
				Name:  "Transfer",
				Fields: []bytecode.FieldDef{
					{Name: "from", Type: bytecode.SignatureToken{Kind: bytecode.SigAddress}},
					{Name: "to", Type: bytecode.SignatureToken{Kind: bytecode.SigAddress}},
					{Name: "amount", Type: bytecode.SignatureToken{Kind: bytecode.SigU256}},
				},
				Tag: bytecode.StructTagEvent,
			},
		},
		EventAttrs: map[int]bytecode.EventAttributes{
			0: {IndexedFieldCount: 2},
		},
	}
	return mod, types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0}
}

func TestCompileEventEmitNativeEncodesTopicsAndData(t *testing.T) {
	mod, eventTy := eventTestModule()
	fs := newTestFuncState(t, mod)
	handle := &bytecode.FunctionHandle{Name: "emit", Native: bytecode.NativeKindEventEmit}
	entry := &types.FunctionEntry{WasmFuncID: 10, Params: []types.Type{eventTy}}

	require.NoError(t, fs.tr.compileEventEmitNative(handle, entry))

	require.True(t, entry.Compiled)
	body, ok := fs.tr.bodies[10]
	require.True(t, ok)
	require.Contains(t, body.Body, byte(wasmbin.OpcodeCall))
}

func TestCompileEventEmitNativeAnonymousOmitsTopic0(t *testing.T) {
	mod, eventTy := eventTestModule()
	mod.EventAttrs[0] = bytecode.EventAttributes{IndexedFieldCount: 1, Anonymous: true}
	fs := newTestFuncState(t, mod)
	handle := &bytecode.FunctionHandle{Name: "emit", Native: bytecode.NativeKindEventEmit}
	entry := &types.FunctionEntry{WasmFuncID: 11, Params: []types.Type{eventTy}}

	require.NoError(t, fs.tr.compileEventEmitNative(handle, entry))
	require.True(t, entry.Compiled)
}

func TestCompileEventEmitNativeRejectsNonEventStruct(t *testing.T) {
	mod, eventTy := eventTestModule()
	mod.Structs[0].Tag = bytecode.StructTagCommon
	fs := newTestFuncState(t, mod)
	handle := &bytecode.FunctionHandle{Name: "emit", Native: bytecode.NativeKindEventEmit}
	entry := &types.FunctionEntry{WasmFuncID: 12, Params: []types.Type{eventTy}}

	err := fs.tr.compileEventEmitNative(handle, entry)
	require.Error(t, err)
}

func TestCompileEventEmitNativeRejectsDynamicField(t *testing.T) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x03},
		Structs: []bytecode.StructDef{
			{
				Index: 0,
				Name:  "Logged",
				Fields: []bytecode.FieldDef{
					{Name: "data", Type: bytecode.SignatureToken{Kind: bytecode.SigVector, Inner: &bytecode.SignatureToken{Kind: bytecode.SigU8}}},
				},
				Tag: bytecode.StructTagEvent,
			},
		},
		EventAttrs: map[int]bytecode.EventAttributes{},
	}
	eventTy := types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0}
	fs := newTestFuncState(t, mod)
	handle := &bytecode.FunctionHandle{Name: "emit", Native: bytecode.NativeKindEventEmit}
	entry := &types.FunctionEntry{WasmFuncID: 13, Params: []types.Type{eventTy}}

	err := fs.tr.compileEventEmitNative(handle, entry)
	require.Error(t, err)
}

func errorTestModule() (*bytecode.Module, types.Type) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x04},
		Structs: []bytecode.StructDef{
			{
				Index: 0,
				Name:  "InsufficientBalance",
				Fields: []bytecode.FieldDef{
					{Name: "available", Type: bytecode.SignatureToken{Kind: bytecode.SigU256}},
					{Name: "required", Type: bytecode.SignatureToken{Kind: bytecode.SigU256}},
				},
				Tag: bytecode.StructTagError,
			},
		},
	}
	return mod, types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0}
}

func TestCompileErrorAbortNativeWritesSelectorAndFields(t *testing.T) {
	mod, errTy := errorTestModule()
	fs := newTestFuncState(t, mod)
	handle := &bytecode.FunctionHandle{Name: "abort", Native: bytecode.NativeKindErrorAbort}
	entry := &types.FunctionEntry{WasmFuncID: 14, Params: []types.Type{errTy}}

	require.NoError(t, fs.tr.compileErrorAbortNative(handle, entry))

	require.True(t, entry.Compiled)
	body, ok := fs.tr.bodies[14]
	require.True(t, ok)
	require.Contains(t, body.Body, byte(wasmbin.OpcodeUnreachable))
	require.Contains(t, body.Body, byte(wasmbin.OpcodeCall))
}

func TestCompileErrorAbortNativeRejectsNonErrorStruct(t *testing.T) {
	mod, errTy := errorTestModule()
	mod.Structs[0].Tag = bytecode.StructTagCommon
	fs := newTestFuncState(t, mod)
	handle := &bytecode.FunctionHandle{Name: "abort", Native: bytecode.NativeKindErrorAbort}
	entry := &types.FunctionEntry{WasmFuncID: 15, Params: []types.Type{errTy}}

	err := fs.tr.compileErrorAbortNative(handle, entry)
	require.Error(t, err)
}

func TestCompileErrorAbortNativeRejectsDynamicField(t *testing.T) {
	mod := &bytecode.Module{
		ID: bytecode.ModuleID{0x05},
		Structs: []bytecode.StructDef{
			{
				Index: 0,
				Name:  "BadInput",
				Fields: []bytecode.FieldDef{
					{Name: "reason", Type: bytecode.SignatureToken{Kind: bytecode.SigVector, Inner: &bytecode.SignatureToken{Kind: bytecode.SigU8}}},
				},
				Tag: bytecode.StructTagError,
			},
		},
	}
	errTy := types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0}
	fs := newTestFuncState(t, mod)
	handle := &bytecode.FunctionHandle{Name: "abort", Native: bytecode.NativeKindErrorAbort}
	entry := &types.FunctionEntry{WasmFuncID: 16, Params: []types.Type{errTy}}

	err := fs.tr.compileErrorAbortNative(handle, entry)
	require.Error(t, err)
}
