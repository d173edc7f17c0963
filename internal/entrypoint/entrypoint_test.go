package entrypoint

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/abi"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/errenc"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/hostimports"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

// txContextModule returns a module carrying just the VM-handled TxContext
// struct every init/entry function can reference by value or by
// reference, mirroring how a real Move package's standard library
// struct is threaded through this compiler's Context.
func txContextModule() *bytecode.Module {
	return &bytecode.Module{
		ID: bytecode.ModuleID{0x09},
		Structs: []bytecode.StructDef{
			{Index: 0, Name: "TxContext", VMTag: bytecode.VMTagTxContext},
		},
	}
}

func txContextType(mod *bytecode.Module) types.Type {
	return types.Type{Kind: types.KindStruct, ModuleID: mod.ID, DefIndex: 0, VMTag: bytecode.VMTagTxContext}
}

// newTestRouter builds a Router over a fresh Context containing mod,
// sharing one function-id counter across hostimports, runtime and
// entrypoint.
func newTestRouter(t *testing.T, mod *bytecode.Module) *Router {
	t.Helper()

	ctx := types.NewContext([]*bytecode.Module{mod})

	next := uint32(1) // 0 reserved for the allocator
	nextFuncID := func() uint32 {
		id := next
		next++
		return id
	}
	lib := runtime.NewLibrary(0, nextFuncID)
	host := hostimports.NewRegistry(nextFuncID)
	table := errenc.NewTable(0)

	return NewRouter(ctx, lib, host, table, nextFuncID)
}

func lastByte(body *wasmbin.Func) byte {
	if len(body.Body) == 0 {
		return 0
	}
	return body.Body[len(body.Body)-1]
}

func TestBuildWrapperDecodesNonVMHandledParamsAndSkipsTxContext(t *testing.T) {
	mod := txContextModule()
	r := newTestRouter(t, mod)

	entry := &types.FunctionEntry{
		Name:       "deposit",
		Params:     []types.Type{types.MutRef(txContextType(mod)), types.U64()},
		Returns:    []types.Type{types.U64()},
		Visibility: types.VisibilityEntry,
		WasmFuncID: 3,
	}

	id, err := r.BuildWrapper(entry)
	require.NoError(t, err)
	require.Equal(t, id, r.WrapperFuncID[entry.WasmFuncID])

	body := r.Bodies()[id]
	require.NotEmpty(t, body.Body)
	require.Equal(t, byte(wasmbin.OpcodeEnd), lastByte(body))

	sig := r.Types()[id]
	require.Equal(t, []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32}, sig.Params)

	// The body allocates the TxContext cell and calls the inner
	// function, so a call opcode must appear in it.
	require.Contains(t, body.Body, byte(wasmbin.OpcodeCall))
}

func TestIsVMHandledUnwrapsReferences(t *testing.T) {
	mod := txContextModule()
	plain := txContextType(mod)
	ref := types.Ref(plain)
	mutRef := types.MutRef(plain)

	require.True(t, isVMHandled(plain))
	require.True(t, isVMHandled(ref))
	require.True(t, isVMHandled(mutRef))
	require.False(t, isVMHandled(types.U64()))
}

func TestWrapperSelectorElidesTxContextRegardlessOfReferenceForm(t *testing.T) {
	mod := txContextModule()
	ctx := types.NewContext([]*bytecode.Module{mod})

	byValue, err := abi.Selector(ctx, "deposit", []types.Type{txContextType(mod), types.U64()})
	require.NoError(t, err)

	byMutRef, err := abi.Selector(ctx, "deposit", []types.Type{types.MutRef(txContextType(mod)), types.U64()})
	require.NoError(t, err)

	require.Equal(t, byValue, byMutRef, "TxContext elision must not depend on whether it is passed by reference")
}

func TestBuildConstructorGuardsOnStorageSlot(t *testing.T) {
	mod := txContextModule()
	r := newTestRouter(t, mod)

	initEntry := &types.FunctionEntry{
		Name:       "init",
		Params:     []types.Type{types.MutRef(txContextType(mod))},
		Visibility: types.VisibilityPrivate,
		WasmFuncID: 7,
	}

	id, err := r.BuildConstructor(initEntry)
	require.NoError(t, err)
	require.True(t, r.HasConstructor)
	require.Equal(t, id, r.ConstructorFuncID)

	body := r.Bodies()[id]
	require.NotEmpty(t, body.Body)
	require.Contains(t, body.Body, byte(wasmbin.OpcodeIf))
	require.Contains(t, body.Body, byte(wasmbin.OpcodeI64Eqz))
}

func TestBuildConstructorRejectsNonVMHandledParam(t *testing.T) {
	mod := txContextModule()
	r := newTestRouter(t, mod)

	initEntry := &types.FunctionEntry{
		Name:       "init",
		Params:     []types.Type{types.U64()},
		Visibility: types.VisibilityPrivate,
		WasmFuncID: 7,
	}

	_, err := r.BuildConstructor(initEntry)
	require.Error(t, err)
}

func TestBuildEntrypointDispatchesEveryPublicFunctionAndFallsThrough(t *testing.T) {
	mod := txContextModule()
	r := newTestRouter(t, mod)

	deposit := &types.FunctionEntry{
		Name:       "deposit",
		Params:     []types.Type{types.MutRef(txContextType(mod)), types.U64()},
		Returns:    []types.Type{types.U64()},
		Visibility: types.VisibilityEntry,
		WasmFuncID: 3,
	}
	withdraw := &types.FunctionEntry{
		Name:       "withdraw",
		Params:     []types.Type{types.U64()},
		Visibility: types.VisibilityPublic,
		WasmFuncID: 4,
	}
	private := &types.FunctionEntry{
		Name:       "helper",
		Params:     nil,
		Visibility: types.VisibilityPrivate,
		WasmFuncID: 5,
	}

	_, err := r.BuildWrapper(deposit)
	require.NoError(t, err)
	_, err = r.BuildWrapper(withdraw)
	require.NoError(t, err)

	initEntry := &types.FunctionEntry{
		Name:       "init",
		Params:     []types.Type{types.MutRef(txContextType(mod))},
		Visibility: types.VisibilityPrivate,
		WasmFuncID: 7,
	}
	_, err = r.BuildConstructor(initEntry)
	require.NoError(t, err)

	id, err := r.BuildEntrypoint([]*types.FunctionEntry{deposit, withdraw, private})
	require.NoError(t, err)
	require.Equal(t, id, r.EntrypointFuncID)

	body := r.Bodies()[id]
	sig := r.Types()[id]
	require.Equal(t, []wasmbin.ValueType{wasmbin.ValueTypeI32}, sig.Params)
	require.Equal(t, []wasmbin.ValueType{wasmbin.ValueTypeI32}, sig.Results)

	// Three branches (deposit, withdraw, constructor) plus the
	// fall-through revert each end their block with OpcodeEnd; the
	// dispatcher must call read_args, every wrapper, and write_result on
	// the no-match path, so all three opcodes appear in the body.
	require.Contains(t, body.Body, byte(wasmbin.OpcodeCall))
	require.Contains(t, body.Body, byte(wasmbin.OpcodeIf))
	require.Equal(t, byte(wasmbin.OpcodeEnd), lastByte(body))
}

func TestBuildEntrypointFailsWithoutRegisteredWrapper(t *testing.T) {
	mod := txContextModule()
	r := newTestRouter(t, mod)

	unwrapped := &types.FunctionEntry{
		Name:       "orphan",
		Visibility: types.VisibilityPublic,
		WasmFuncID: 9,
	}

	_, err := r.BuildEntrypoint([]*types.FunctionEntry{unwrapped})
	require.Error(t, err)
}

func TestByteSwap32RoundTrips(t *testing.T) {
	require.Equal(t, uint32(0x08c379a0), byteSwap32(byteSwap32(0x08c379a0)))
	require.Equal(t, uint32(0xa079c308), byteSwap32(0x08c379a0))
}
