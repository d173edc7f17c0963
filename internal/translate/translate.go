// Package translate lowers a Move function's bytecode body into a WASM
// function body (§4.7): it walks the structured control-flow tree
// internal/flow builds, translating every Move instruction against a
// compile-time mirror of the operand stack (internal/types.Stack),
// emitting WASM instructions through internal/wasmbin.Emitter and
// linking whatever internal/runtime, internal/storage and internal/abi
// helpers each opcode needs.
package translate

import (
	"fmt"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/abi"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/clog"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/errenc"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/flow"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/hostimports"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/storage"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"go.uber.org/zap"
)

// Translator owns every cross-function table the bytecode translation
// pass needs: the type model context, the linked runtime function
// library, the interned function table (§3.5), and the ABI/storage/error
// codecs individual opcodes call into.
type Translator struct {
	Ctx   *types.Context
	Lib   *runtime.Library
	Funcs *types.FunctionTable
	ABI    *abi.Codec
	Store  *storage.Codec
	Err    *errenc.Codec
	Table  *errenc.Table
	Consts *ConstPool

	// Host links the vm_hooks natives (§9 NEW, native_functions/
	// contract_calls.rs) call into directly — cross-contract natives are
	// the only translate-package consumer that ever needs a host import
	// outside the runtime/storage helper libraries already threaded
	// through Lib and Store.
	Host *hostimports.Registry

	// ImportCount is the number of functions the module assembler
	// (§4.9) places before the translated Move functions in the final
	// WASM function index space: the imports, the allocator and the
	// linked runtime helpers. It defaults to zero during translation and
	// is set once the assembler has laid those out, so Call sites emitted against a
	// FunctionEntry's WasmFuncID land on the right final index.
	ImportCount uint32

	bodies map[uint32]*wasmbin.Func
}

// NewTranslator wires together a Translator over an already-built type
// context, runtime library and storage codec; the ABI/error codecs share
// the same Ctx/Lib so a struct's layout or a linked helper is computed
// once regardless of which package asked for it first. constPoolBase is
// the first free byte after errTable's own interned region, handed back
// by errTable.End() once every Kind a module needs has been interned.
func NewTranslator(ctx *types.Context, lib *runtime.Library, store *storage.Codec, host *hostimports.Registry, errTable *errenc.Table, constPoolBase uint32) *Translator {
	return &Translator{
		Ctx:    ctx,
		Lib:    lib,
		Funcs:  types.NewFunctionTable(),
		ABI:    &abi.Codec{Ctx: ctx, Lib: lib},
		Store:  store,
		Host:   host,
		Err:    errenc.NewCodec(lib),
		Table:  errTable,
		Consts: NewConstPool(constPoolBase),
		bodies: map[uint32]*wasmbin.Func{},
	}
}

// Bodies returns every compiled function body indexed by WasmFuncID, for
// the module assembler (§4.9) to append in function-table order.
func (tr *Translator) Bodies() map[uint32]*wasmbin.Func { return tr.bodies }

// funcState is the per-function compilation context: the live WASM
// local layout, the compile-time operand-type stack, and the emitter
// accumulating this function's instruction stream.
type funcState struct {
	tr   *Translator
	mod  *bytecode.Module
	def  *bytecode.FunctionDef

	entry    *types.FunctionEntry
	typeArgs []types.Type

	// localTypes holds one entry per WASM local index 0..len(Params)+len(Locals)-1
	// (parameters first, then declared locals), in the same order
	// FunctionDef.Locals already excludes parameters.
	localTypes []types.Type

	// scratchTypes accumulates scratch locals appended after localTypes,
	// one entry per index returned by NextI32/NextI64.
	scratchTypes []wasmbin.ValueType

	// boxed maps a Move local index to the WASM i32 local holding the
	// address of a dedicated memory cell for that local, for every local
	// index ever targeted by BorrowLoc (§4.7: WASM locals have no
	// address, so a borrowed local is promoted to live in memory for the
	// whole function instead of its own local slot).
	boxed map[int]uint32

	stack *types.Stack
	e     *wasmbin.Emitter

	exitStack []exitFrame
}

// exitFrame records one currently-open WASM block/loop this function's
// Br instructions might target: label is the Move block label the
// construct corresponds to (a loop header's LoopID, or a Simple block's
// own Label for its break target), valid is false for frames (loop
// bodies' enclosing blocks with no matching branch target, switch
// scaffolding) pushed purely to keep relative-depth arithmetic correct.
type exitFrame struct {
	label int
	valid bool
}

func (fs *funcState) pushExit(label int, valid bool) {
	fs.exitStack = append(fs.exitStack, exitFrame{label: label, valid: valid})
}

func (fs *funcState) popExit() {
	fs.exitStack = fs.exitStack[:len(fs.exitStack)-1]
}

// NextI32 and NextI64 satisfy runtime.Scratch (and errenc's identical
// interface): every helper package hands out fresh locals through this
// single counter, so a scratch local requested by internal/runtime and
// one requested directly by this package never collide.
func (fs *funcState) NextI32() uint32 {
	idx := uint32(len(fs.localTypes)) + uint32(len(fs.scratchTypes))
	fs.scratchTypes = append(fs.scratchTypes, wasmbin.ValueTypeI32)
	return idx
}

func (fs *funcState) NextI64() uint32 {
	idx := uint32(len(fs.localTypes)) + uint32(len(fs.scratchTypes))
	fs.scratchTypes = append(fs.scratchTypes, wasmbin.ValueTypeI64)
	return idx
}

// TranslateFunction resolves (and, if this is the first request for this
// instantiation, compiles) the Move function identified by handleIndex
// in mod, monomorphized by typeArgs (empty for a non-generic function).
// Mutual recursion is handled by Intern itself: a FunctionEntry (with its
// WasmFuncID already assigned) exists before compile ever runs, so a
// function that calls itself (directly or through CallGeneric) finds its
// own entry already interned on the way back in and simply reuses the id
// instead of compiling a second time.
func (tr *Translator) TranslateFunction(mod *bytecode.Module, handleIndex int, typeArgs []types.Type) (*types.FunctionEntry, error) {
	handle := mod.FunctionByIndex(handleIndex)
	if handle == nil {
		return nil, cerr.New(cerr.PhaseTranslate, cerr.KindMalformedIndex).
			Detailf("function handle %d out of range in module %x", handleIndex, mod.ID).Build()
	}

	entry, isNew, err := tr.Funcs.Intern(mod.ID, handleIndex, typeArgs, func() (*types.FunctionEntry, error) {
		return tr.buildEntry(mod, handle, typeArgs)
	})
	if err != nil {
		return nil, err
	}
	if !isNew {
		return entry, nil
	}

	def := defForHandle(mod, handleIndex)
	if def == nil {
		if handle.Native == bytecode.NativeKindNone {
			return nil, cerr.New(cerr.PhaseNative, cerr.KindUnsupportedType).
				Detailf("function %s has no compiled body and is not marked native", handle.Name).Build()
		}
		clog.L().Debug("translate: compiling native function",
			zap.String("name", handle.Name), zap.String("native_kind", string(handle.Native)),
			zap.Uint32("wasm_func_id", entry.WasmFuncID))
		if err := tr.compileNative(handle, entry, typeArgs); err != nil {
			return nil, err
		}
		return entry, nil
	}

	clog.L().Debug("translate: compiling function",
		zap.String("name", handle.Name), zap.Uint32("wasm_func_id", entry.WasmFuncID))

	if err := tr.compile(mod, handle, def, entry, typeArgs); err != nil {
		return nil, err
	}
	return entry, nil
}

func defForHandle(mod *bytecode.Module, handleIndex int) *bytecode.FunctionDef {
	for i := range mod.Functions {
		if mod.Functions[i].HandleIndex == handleIndex {
			return &mod.Functions[i]
		}
	}
	return nil
}

func (tr *Translator) buildEntry(mod *bytecode.Module, handle *bytecode.FunctionHandle, typeArgs []types.Type) (*types.FunctionEntry, error) {
	params := make([]types.Type, len(handle.Parameters))
	for i, p := range handle.Parameters {
		t, err := tr.Ctx.Resolve(p)
		if err != nil {
			return nil, err
		}
		params[i] = t.Substitute(typeArgs)
	}
	returns := make([]types.Type, len(handle.Returns))
	for i, r := range handle.Returns {
		t, err := tr.Ctx.Resolve(r)
		if err != nil {
			return nil, err
		}
		returns[i] = t.Substitute(typeArgs)
	}

	var locals []types.Type
	if def := defForHandle(mod, handle.Index); def != nil {
		locals = make([]types.Type, len(def.Locals))
		for i, l := range def.Locals {
			t, err := tr.Ctx.Resolve(l)
			if err != nil {
				return nil, err
			}
			locals[i] = t.Substitute(typeArgs)
		}
	}

	vis := types.VisibilityPrivate
	if def := defForHandle(mod, handle.Index); def != nil {
		switch {
		case def.Attributes.IsEntry:
			vis = types.VisibilityEntry
		case def.Attributes.IsPublic:
			vis = types.VisibilityPublic
		}
	}

	name := handle.Name
	if len(typeArgs) > 0 {
		name = fmt.Sprintf("%s$%d", name, len(typeArgs))
	}

	return &types.FunctionEntry{
		Name:       name,
		Params:     params,
		Returns:    returns,
		Locals:     locals,
		Visibility: vis,
	}, nil
}

// compile emits entry's WASM body: it scans for locals ever addressed by
// BorrowLoc, reshapes the Move function's instructions into a structured
// Flow tree (internal/flow), walks that tree, and assembles the
// resulting instruction stream plus declared-and-scratch locals into the
// *wasmbin.Func this entry's WasmFuncID identifies.
func (tr *Translator) compile(mod *bytecode.Module, handle *bytecode.FunctionHandle, def *bytecode.FunctionDef, entry *types.FunctionEntry, typeArgs []types.Type) error {
	fs := &funcState{
		tr:       tr,
		mod:      mod,
		def:      def,
		entry:    entry,
		typeArgs: typeArgs,
		stack:    types.NewStack(),
		e:        wasmbin.NewEmitter(),
		boxed:    map[int]uint32{},
	}
	fs.localTypes = append(fs.localTypes, entry.Params...)
	fs.localTypes = append(fs.localTypes, entry.Locals...)

	if err := fs.hoistBorrowedLocals(); err != nil {
		return err
	}

	tree, err := flow.Build(def)
	if err != nil {
		return err
	}
	if err := fs.emitFlow(tree); err != nil {
		return err
	}
	fs.e.End()

	entry.Compiled = true
	tr.bodies[entry.WasmFuncID] = &wasmbin.Func{
		Locals: groupLocals(fs.scratchLocalTypes()),
		Body:   fs.e.Bytes(),
	}
	return nil
}

// scratchLocalTypes returns the declared (non-parameter) locals plus
// every scratch local requested during translation, in WASM local order
// (declared locals first, matching FunctionDef.Locals' own position
// right after the parameters, then scratch).
func (fs *funcState) scratchLocalTypes() []wasmbin.ValueType {
	out := make([]wasmbin.ValueType, 0, len(fs.def.Locals)+len(fs.scratchTypes))
	for _, l := range fs.entry.Locals {
		out = append(out, l.WasmStackType())
	}
	out = append(out, fs.scratchTypes...)
	return out
}

// groupLocals run-length-encodes a flat sequence of local value types
// into wasmbin.Func's Locals representation.
func groupLocals(types_ []wasmbin.ValueType) []wasmbin.Local {
	var out []wasmbin.Local
	for _, t := range types_ {
		if n := len(out); n > 0 && out[n-1].Type == t {
			out[n-1].Count++
			continue
		}
		out = append(out, wasmbin.Local{Count: 1, Type: t})
	}
	return out
}

// FunctionType returns entry's WASM function signature. A function
// declaring more than one Move return value lowers to a single i32
// result: the values are boxed into a heap tuple cell (§4.7's Ret
// lowering) since this compiler, like the rest of the corpus, never
// emits a WASM function with more than one result type.
func FunctionType(entry *types.FunctionEntry) *wasmbin.FunctionType {
	params := make([]wasmbin.ValueType, len(entry.Params))
	for i, p := range entry.Params {
		params[i] = p.WasmStackType()
	}
	var results []wasmbin.ValueType
	switch len(entry.Returns) {
	case 0:
	case 1:
		results = []wasmbin.ValueType{entry.Returns[0].WasmStackType()}
	default:
		results = []wasmbin.ValueType{wasmbin.ValueTypeI32}
	}
	return &wasmbin.FunctionType{Params: params, Results: results}
}
