package assemble

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

// answerModule is the smallest possible entry-exposed module: one entry
// function, no params, returning a constant u64, and no init function.
func answerModule() *bytecode.Module {
	return &bytecode.Module{
		ID: bytecode.ModuleID{0x7a},
		FunctionHandles: []bytecode.FunctionHandle{
			{Index: 0, Name: "answer", Returns: []bytecode.SignatureToken{{Kind: bytecode.SigU64}}},
		},
		Functions: []bytecode.FunctionDef{
			{
				HandleIndex: 0,
				Attributes:  bytecode.FunctionAttributes{IsEntry: true},
				Code: []bytecode.Instruction{
					{Op: bytecode.OpLdU64, ImmU64: 42},
					{Op: bytecode.OpRet},
				},
			},
		},
		InitFunctionIndex: -1,
	}
}

func TestAssembleProducesValidWasmHeader(t *testing.T) {
	mod := answerModule()
	out, err := Assemble([]*bytecode.Module{mod}, mod)
	require.NoError(t, err)
	require.True(t, len(out) > 8)
	require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, out[0:4], "must start with the WASM magic number")
	require.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, out[4:8], "must declare WASM version 1")
}

func TestAssembleExportsMemoryAndEntrypoint(t *testing.T) {
	mod := answerModule()
	out, err := Assemble([]*bytecode.Module{mod}, mod)
	require.NoError(t, err)
	require.Contains(t, string(out), "memory")
	require.Contains(t, string(out), "user_entrypoint")
}

func TestAssembleLinksFullHostImportSurface(t *testing.T) {
	mod := answerModule()
	out, err := Assemble([]*bytecode.Module{mod}, mod)
	require.NoError(t, err)
	for name := range allowedHostImports {
		require.Contains(t, string(out), name)
	}
}

func TestCounterAllocatesSequentialIDs(t *testing.T) {
	next := counter(5)
	require.Equal(t, uint32(5), next())
	require.Equal(t, uint32(6), next())
	require.Equal(t, uint32(7), next())
}

func TestSizePassCountsMatchRealPass(t *testing.T) {
	mod := answerModule()
	modules := []*bytecode.Module{mod}

	sizes, err := sizePass(modules, mod, 13)
	require.NoError(t, err)
	require.Equal(t, uint32(1), sizes.moveFnCount, "one entry function, no generics, no mutual recursion")

	pipe, err := realPass(modules, mod, 13, sizes)
	require.NoError(t, err)
	require.Equal(t, 1, pipe.tr.Funcs.Count())
}

func TestValidateRejectsUnknownImport(t *testing.T) {
	mod := &wasmbin.Module{
		ImportSection: []*wasmbin.Import{
			{Module: "vm_hooks", Name: "not_a_real_hook", Kind: wasmbin.ExternTypeFunc},
		},
		ExportSection: []*wasmbin.Export{
			{Name: "memory", Kind: wasmbin.ExternTypeMemory},
			{Name: "user_entrypoint", Kind: wasmbin.ExternTypeFunc},
		},
	}
	require.Error(t, validate(mod))
}

func TestValidateRejectsMissingExports(t *testing.T) {
	mod := &wasmbin.Module{}
	require.Error(t, validate(mod))
}

func TestValidateAcceptsWellFormedModule(t *testing.T) {
	mod := &wasmbin.Module{
		ImportSection: []*wasmbin.Import{
			{Module: "vm_hooks", Name: "read_args", Kind: wasmbin.ExternTypeFunc},
		},
		ExportSection: []*wasmbin.Export{
			{Name: "memory", Kind: wasmbin.ExternTypeMemory},
			{Name: "user_entrypoint", Kind: wasmbin.ExternTypeFunc},
		},
		CodeSection: []*wasmbin.Func{
			{Locals: []wasmbin.Local{{Count: 2, Type: wasmbin.ValueTypeI32}}},
		},
	}
	require.NoError(t, validate(mod))
}

func TestValidateRejectsUnsupportedLocalType(t *testing.T) {
	mod := &wasmbin.Module{
		ExportSection: []*wasmbin.Export{
			{Name: "memory", Kind: wasmbin.ExternTypeMemory},
			{Name: "user_entrypoint", Kind: wasmbin.ExternTypeFunc},
		},
		CodeSection: []*wasmbin.Func{
			{Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeF64}}},
		},
	}
	require.Error(t, validate(mod))
}
