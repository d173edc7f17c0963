package entrypoint

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

const wordSize = 32

// isVMHandled reports whether a public function parameter is supplied by
// the router itself rather than decoded from calldata, mirroring
// internal/abi.Signature's identical elision rule so a wrapper's decode
// loop and its own selector's parameter list never disagree about which
// Move parameters correspond to which calldata head words.
func isVMHandled(t types.Type) bool {
	for t.Kind == types.KindRef || t.Kind == types.KindMutRef {
		t = *t.Elem
	}
	return t.Kind == types.KindStruct && t.VMTag == bytecode.VMTagTxContext
}

// BuildWrapper builds the WASM function a dispatcher branch calls for
// one public Move function: decode every non-VM-handled parameter out of
// calldata (§4.4), inject a synthetic TxContext for every VM-handled one,
// call the inner function, and ABI-encode its return value(s) into a
// freshly allocated buffer ready for WriteResult. The wrapper's own
// signature is (calldataPtr i32, calldataLen i32) -> (): calldataLen is
// unused by every currently supported parameter shape (every dynamic
// parameter carries its own length prefix) but is accepted for
// signature uniformity with the dispatcher's call sites and any future
// decode rule that needs the buffer's outer bound.
func (r *Router) BuildWrapper(entry *types.FunctionEntry) (uint32, error) {
	fb := newFuncBuilder([]wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32})
	calldataPtr := uint32(0)

	argLocals := make([]uint32, len(entry.Params))
	headWordIdx := uint32(0)
	for i, p := range entry.Params {
		if isVMHandled(p) {
			local, err := r.emitSyntheticTxContext(p, fb)
			if err != nil {
				return 0, err
			}
			argLocals[i] = local
			continue
		}
		var local uint32
		if p.Kind == types.KindU64 {
			local = fb.NextI64()
		} else {
			local = fb.NextI32()
		}
		if err := r.ABI.Decode(p, calldataPtr, 4+headWordIdx*wordSize, fb, fb.e); err != nil {
			return 0, err
		}
		fb.e.LocalSet(local)
		argLocals[i] = local
		headWordIdx++
	}

	for _, local := range argLocals {
		fb.e.LocalGet(local)
	}
	fb.e.Call(entry.WasmFuncID + r.ImportCount)

	if err := r.emitEncodeReturnsAndWrite(entry.Returns, fb); err != nil {
		return 0, err
	}

	sig := &wasmbin.FunctionType{Params: []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32}}
	id := r.define(sig, fb.finish())
	r.WrapperFuncID[entry.WasmFuncID] = id
	return id, nil
}

// emitSyntheticTxContext allocates a zeroed heap cell sized for t's
// struct layout and leaves its pointer in a fresh local. TxContext is a
// VM-handled type (§3.1): its fields carry transaction context the host
// already has (sender, origin, value) rather than anything ABI-decoded,
// but no accessor native for reading those fields back out of a Move
// TxContext value is implemented by this compiler yet (§9 only wires
// type_name<T>() and cross-contract call/transfer), so the cell handed
// to init/entry functions is zero-initialized and carries no live
// context data. Recorded as an Open Question resolution in DESIGN.md.
func (r *Router) emitSyntheticTxContext(t types.Type, fb *funcBuilder) (uint32, error) {
	for t.Kind == types.KindRef || t.Kind == types.KindMutRef {
		t = *t.Elem
	}
	st, err := resolveStruct(r.Ctx, t)
	if err != nil {
		return 0, err
	}
	local := fb.NextI32()
	fb.e.I32Const(int32(st.HeapSize)).Call(r.Lib.AllocFuncID()).LocalSet(local)
	return local, nil
}

// emitEncodeReturnsAndWrite ABI-encodes entry's return values (left on
// the WASM stack by the preceding Call, in Move return order) into a
// freshly allocated buffer and records it via WriteResult.
func (r *Router) emitEncodeReturnsAndWrite(returns []types.Type, fb *funcBuilder) error {
	host := r.Host
	switch len(returns) {
	case 0:
		fb.e.I32Const(0).I32Const(0).Call(host.WriteResult())
		return nil
	case 1:
		var valueLocal uint32
		if returns[0].Kind == types.KindU64 {
			valueLocal = fb.NextI64()
		} else {
			valueLocal = fb.NextI32()
		}
		fb.e.LocalSet(valueLocal)
		return r.emitEncodeSingleReturn(returns[0], valueLocal, fb)
	default:
		return r.emitEncodeMultiReturn(returns, fb)
	}
}

func (r *Router) emitEncodeSingleReturn(t types.Type, valueLocal uint32, fb *funcBuilder) error {
	host := r.Host
	if t.IsDynamicABI(r.Ctx) {
		outPtr := fb.NextI32()
		outLen := fb.NextI32()
		if err := r.ABI.EncodeDynamicSingle(t, valueLocal, outPtr, outLen, fb, fb.e); err != nil {
			return err
		}
		fb.e.LocalGet(outPtr).LocalGet(outLen).Call(host.WriteResult())
		return nil
	}
	buf := fb.NextI32()
	fb.e.I32Const(wordSize).Call(r.Lib.AllocFuncID()).LocalSet(buf)
	if err := r.ABI.EncodeStatic(t, valueLocal, buf, 0, fb, fb.e); err != nil {
		return err
	}
	fb.e.LocalGet(buf).I32Const(wordSize).Call(host.WriteResult())
	return nil
}

// emitEncodeMultiReturn handles a function declaring more than one Move
// return value: the preceding Call left a single i32 pointer to a boxed
// tuple cell (one 4-byte slot per value, a boxed 8-byte cell for u64,
// mirroring internal/translate's Ret lowering), which this unboxes field
// by field and ABI-encodes into consecutive 32-byte words. Every
// supported entry-function surface returning more than one value returns
// only statically-sized values — a dynamically-sized value nested among
// several return values would need per-field tail-offset bookkeeping this
// pass does not implement, matching internal/abi.EncodeDynamicSingle's own
// documented single-dynamic-value scope.
func (r *Router) emitEncodeMultiReturn(returns []types.Type, fb *funcBuilder) error {
	for _, t := range returns {
		if t.IsDynamicABI(r.Ctx) {
			return cerr.New(cerr.PhaseABI, cerr.KindUnsupportedType).
				Detailf("function returns %d values including a dynamically-sized %s; multi-value dynamic returns are not supported", len(returns), t.Kind).
				Build()
		}
	}

	tuple := fb.NextI32()
	fb.e.LocalSet(tuple)

	fieldLocals := make([]uint32, len(returns))
	for i, t := range returns {
		fb.e.LocalGet(tuple).Load(wasmbin.OpcodeI32Load, uint32(4*i))
		if t.Kind == types.KindU64 {
			local := fb.NextI64()
			fb.e.Load(wasmbin.OpcodeI64Load, 0)
			fb.e.LocalSet(local)
			fieldLocals[i] = local
			continue
		}
		local := fb.NextI32()
		fb.e.LocalSet(local)
		fieldLocals[i] = local
	}

	total := uint32(len(returns)) * wordSize
	buf := fb.NextI32()
	fb.e.I32Const(int32(total)).Call(r.Lib.AllocFuncID()).LocalSet(buf)
	for i, t := range returns {
		if err := r.ABI.EncodeStatic(t, fieldLocals[i], buf, uint32(i)*wordSize, fb, fb.e); err != nil {
			return err
		}
	}
	fb.e.LocalGet(buf).I32Const(int32(total)).Call(r.Host.WriteResult())
	return nil
}

// resolveStruct dispatches a struct-kinded Type to the right Context
// lookup depending on whether it still carries unresolved generic type
// arguments, mirroring internal/abi's identical unexported helper (each
// package that needs this one-line dispatch keeps its own copy rather
// than depend on an unexported symbol across a package boundary).
func resolveStruct(ctx *types.Context, t types.Type) (*types.Struct, error) {
	if t.Kind == types.KindGenericStructInstance {
		return ctx.InternGenericStruct(t.ModuleID, t.DefIndex, t.TypeArgs)
	}
	return ctx.ResolveStruct(t.ModuleID, t.DefIndex)
}
