// Package assemble implements the module assembler (§4.9): the final
// stage that takes a fully-parsed Move bytecode module and every
// already-built subsystem (memory layout, runtime library, host
// imports, storage/ABI codecs, the translator, the entrypoint router)
// and links them into one encodable *wasmbin.Module.
//
// Grounded on internal/engine/compiler's compile-then-link staging
// (teacher code): gather every function body and its dependencies
// first, assign final indices once every count is known, then emit.
package assemble

import (
	"sort"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/clog"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/entrypoint"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/errenc"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/hostimports"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/memory"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/storage"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/translate"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"go.uber.org/zap"
)

// Assemble compiles target (one module out of modules, which supplies
// every module target's types may reference) into an encoded WASM
// module implementing the Stylus-compatible ABI surface spec.md
// describes: memory layout, vm_hooks imports, the allocator, every
// reachable Move function, public-function wrappers, the constructor
// (if target declares an init function) and the user_entrypoint router.
func Assemble(modules []*bytecode.Module, target *bytecode.Module) ([]byte, error) {
	probeHost := hostimports.NewRegistry(counter(0))
	linkHostImports(probeHost)
	importCount := uint32(len(probeHost.Imports))

	sizes, err := sizePass(modules, target, importCount)
	if err != nil {
		return nil, err
	}

	clog.L().Debug("assemble: sizing pass complete",
		zap.Uint32("moveFnCount", sizes.moveFnCount),
		zap.Uint32("helperCount", sizes.helperCount),
		zap.Uint32("errTableBytes", sizes.errTableBytes))

	pipe, err := realPass(modules, target, importCount, sizes)
	if err != nil {
		return nil, err
	}

	mod := link(pipe)
	if err := validate(mod); err != nil {
		return nil, err
	}
	return mod.Encode(), nil
}

// counter returns a function-index allocator starting at start, the
// shape every lazily-linked package in this compiler (hostimports,
// runtime, entrypoint) expects.
func counter(start uint32) func() uint32 {
	next := start
	return func() uint32 {
		id := next
		next++
		return id
	}
}

// linkHostImports links every vm_hooks hook unconditionally and in
// spec.md §6's table order: every emitted module imports the full
// surface regardless of which hooks its own code ends up calling, since
// the host always provides all of them and a partial import set buys
// nothing.
func linkHostImports(host *hostimports.Registry) {
	host.ReadArgs()
	host.WriteResult()
	host.StorageLoadBytes32()
	host.StorageCacheBytes32()
	host.StorageFlushCache()
	host.TxOrigin()
	host.MsgSender()
	host.MsgValue()
	host.BlockNumber()
	host.EmitLog()
	host.CallContract()
	host.ReadReturnData()
	host.PayForMemoryGrow()
}

// sizeCounts holds everything a real pass's index layout needs that
// only a full compile of target can produce.
type sizeCounts struct {
	moveFnCount   uint32
	helperCount   uint32
	errTableBytes uint32
}

// sizePass runs the whole compile pipeline once over a disposable
// context purely to measure it: how many Move function instantiations
// get interned, how many runtime helpers get linked, and how many
// bytes the interned error-blob table grows to. The function ids and
// memory offsets it produces along the way are never used for
// anything else; compiling the same bytecode twice against a fresh
// types.Context is deterministic, so the real pass reproduces the same
// counts once seeded with offsets derived from these.
func sizePass(modules []*bytecode.Module, target *bytecode.Module, importCount uint32) (sizeCounts, error) {
	ctx := types.NewContext(modules)
	host := hostimports.NewRegistry(counter(0))
	linkHostImports(host)

	lib := runtime.NewLibrary(importCount, counter(importCount+1))
	store := storage.NewCodec(ctx, lib, host)
	errTable := errenc.NewTable(memory.ReservedPrefixSize)
	tr := translate.NewTranslator(ctx, lib, store, host, errTable, memory.ReservedPrefixSize)
	tr.ImportCount = importCount + 1

	if err := compileReachable(tr, target); err != nil {
		return sizeCounts{}, err
	}

	router := entrypoint.NewRouter(ctx, lib, host, errTable, counter(importCount+1))
	router.ImportCount = tr.ImportCount
	if err := buildEntrypoint(router, tr, target); err != nil {
		return sizeCounts{}, err
	}

	helperBodies, _, _ := lib.Emitted()
	return sizeCounts{
		moveFnCount:   uint32(tr.Funcs.Count()),
		helperCount:   uint32(len(helperBodies)),
		errTableBytes: errTable.End() - memory.ReservedPrefixSize,
	}, nil
}

// pipeline collects every linked subsystem a real pass produces, for
// link to walk when building the final *wasmbin.Module.
type pipeline struct {
	host     *hostimports.Registry
	lib      *runtime.Library
	store    *storage.Codec
	errTable *errenc.Table
	tr       *translate.Translator
	router   *entrypoint.Router
	alloc    *memory.Allocator
}

// realPass runs the compile pipeline a second time with final index and
// memory offsets computed from a sizePass's counts, laying functions out
// as: [imports] [alloc] [runtime helpers] [Move functions] [wrappers,
// constructor, dispatcher], and static memory as: [reserved prefix]
// [interned error blobs] [constant pool] [bump heap].
func realPass(modules []*bytecode.Module, target *bytecode.Module, importCount uint32, sizes sizeCounts) (*pipeline, error) {
	ctx := types.NewContext(modules)
	host := hostimports.NewRegistry(counter(0))
	linkHostImports(host)

	allocID := importCount
	helperBase := importCount + 1
	moveBase := helperBase + sizes.helperCount
	postBase := moveBase + sizes.moveFnCount

	lib := runtime.NewLibrary(allocID, counter(helperBase))
	store := storage.NewCodec(ctx, lib, host)
	errTable := errenc.NewTable(memory.ReservedPrefixSize)
	constPoolBase := memory.ReservedPrefixSize + sizes.errTableBytes
	tr := translate.NewTranslator(ctx, lib, store, host, errTable, constPoolBase)
	tr.ImportCount = moveBase

	if err := compileReachable(tr, target); err != nil {
		return nil, err
	}

	router := entrypoint.NewRouter(ctx, lib, host, errTable, counter(postBase))
	router.ImportCount = moveBase
	if err := buildEntrypoint(router, tr, target); err != nil {
		return nil, err
	}

	alloc := &memory.Allocator{
		FuncID:          allocID,
		GlobalNextFree:  0,
		GlobalAvailable: 1,
		StaticEnd:       tr.Consts.End(),
	}

	return &pipeline{host: host, lib: lib, store: store, errTable: errTable, tr: tr, router: router, alloc: alloc}, nil
}

// compileReachable translates every function in target that the
// entrypoint router will need directly: every public and entry
// function, plus the init function if one exists (BuildConstructor
// needs its FunctionEntry, built separately in buildEntrypoint since
// init is never itself public or entry). Functions these call are
// interned transitively by internal/translate.Translator.TranslateFunction
// itself.
func compileReachable(tr *translate.Translator, target *bytecode.Module) error {
	for i := range target.Functions {
		def := &target.Functions[i]
		if i == target.InitFunctionIndex {
			continue
		}
		if !def.Attributes.IsPublic && !def.Attributes.IsEntry {
			continue
		}
		if _, err := tr.TranslateFunction(target, def.HandleIndex, nil); err != nil {
			return err
		}
	}
	return nil
}

// buildEntrypoint builds one wrapper per public/entry function target
// declares, the constructor if target has an init function, and the
// dispatcher tying them together.
func buildEntrypoint(router *entrypoint.Router, tr *translate.Translator, target *bytecode.Module) error {
	var dispatchable []*types.FunctionEntry
	for _, entry := range tr.Funcs.Ordered() {
		if entry.ModuleID != target.ID || entry.Visibility == types.VisibilityPrivate {
			continue
		}
		if _, err := router.BuildWrapper(entry); err != nil {
			return err
		}
		dispatchable = append(dispatchable, entry)
	}

	if target.InitFunctionIndex >= 0 {
		initDef := target.Functions[target.InitFunctionIndex]
		initEntry, err := tr.TranslateFunction(target, initDef.HandleIndex, nil)
		if err != nil {
			return err
		}
		if _, err := router.BuildConstructor(initEntry); err != nil {
			return err
		}
	}

	_, err := router.BuildEntrypoint(dispatchable)
	return err
}

// link assembles every piece pipeline produced into one *wasmbin.Module,
// in absolute function-index order.
func link(p *pipeline) *wasmbin.Module {
	mod := &wasmbin.Module{}

	for i, im := range p.host.Imports {
		im.DescFunc = mod.AddType(p.host.Types[i])
		mod.ImportSection = append(mod.ImportSection, im)
	}

	appendFunc := func(sig *wasmbin.FunctionType, body *wasmbin.Func) {
		typeIdx := mod.AddType(sig)
		mod.FunctionSection = append(mod.FunctionSection, typeIdx)
		mod.CodeSection = append(mod.CodeSection, body)
	}

	appendFunc(p.alloc.FunctionType(), p.alloc.Body())

	helperBodies, helperTypes, _ := p.lib.Emitted()
	for i, body := range helperBodies {
		appendFunc(helperTypes[i], body)
	}

	for _, entry := range p.tr.Funcs.Ordered() {
		appendFunc(translate.FunctionType(entry), p.tr.Bodies()[entry.WasmFuncID])
	}

	routerIDs := make([]uint32, 0, len(p.router.Bodies()))
	for id := range p.router.Bodies() {
		routerIDs = append(routerIDs, id)
	}
	sort.Slice(routerIDs, func(i, j int) bool { return routerIDs[i] < routerIDs[j] })
	for _, id := range routerIDs {
		appendFunc(p.router.Types()[id], p.router.Bodies()[id])
	}

	mod.GlobalSection = p.alloc.Globals()

	mod.DataSection = append(mod.DataSection, memory.ReservedData()...)
	mod.DataSection = append(mod.DataSection, &wasmbin.Data{
		Offset: memory.OffsetEnumSizeTable,
		Bytes:  p.store.TableBytes(),
	})
	mod.DataSection = append(mod.DataSection, p.errTable.Data()...)
	mod.DataSection = append(mod.DataSection, p.tr.Consts.Data()...)

	mod.MemorySection = &wasmbin.Memory{Min: p.alloc.Pages(), HasMax: false}

	mod.ExportSection = []*wasmbin.Export{
		{Name: "memory", Kind: wasmbin.ExternTypeMemory, Index: 0},
		{Name: "user_entrypoint", Kind: wasmbin.ExternTypeFunc, Index: p.router.EntrypointFuncID},
	}

	return mod
}

// allowedHostImports is the full vm_hooks surface (§6); validate rejects
// any module whose import section names anything else.
var allowedHostImports = map[string]bool{
	"read_args": true, "write_result": true,
	"storage_load_bytes32": true, "storage_cache_bytes32": true, "storage_flush_cache": true,
	"tx_origin": true, "msg_sender": true, "msg_value": true, "block_number": true,
	"emit_log": true, "call_contract": true, "read_return_data": true, "pay_for_memory_grow": true,
}

// validate checks the handful of module-shape invariants §4.9 assigns
// to the assembler: every import is a known vm_hooks hook, the required
// exports are present, and no function declares a value type this
// compiler's own emitter never produces (it has no float/SIMD/table
// emission path at all, so this only ever catches an assembler bug,
// never user input).
func validate(mod *wasmbin.Module) error {
	for _, im := range mod.ImportSection {
		if im.Module != "vm_hooks" || !allowedHostImports[im.Name] {
			return cerr.New(cerr.PhaseAssemble, cerr.KindValidation).
				Detailf("import %s.%s is not part of the vm_hooks surface", im.Module, im.Name).Build()
		}
	}

	var hasMemory, hasEntrypoint bool
	for _, ex := range mod.ExportSection {
		switch {
		case ex.Name == "memory" && ex.Kind == wasmbin.ExternTypeMemory:
			hasMemory = true
		case ex.Name == "user_entrypoint" && ex.Kind == wasmbin.ExternTypeFunc:
			hasEntrypoint = true
		}
	}
	if !hasMemory || !hasEntrypoint {
		return cerr.New(cerr.PhaseAssemble, cerr.KindValidation).
			Detailf("module must export memory and user_entrypoint").Build()
	}

	for _, f := range mod.CodeSection {
		for _, l := range f.Locals {
			if l.Type != wasmbin.ValueTypeI32 && l.Type != wasmbin.ValueTypeI64 {
				return cerr.New(cerr.PhaseAssemble, cerr.KindValidation).
					Detailf("function declares unsupported local type %#x", l.Type).Build()
			}
		}
	}
	return nil
}
