package translate

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/errenc"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// popArithPair pops (lhs, rhs) of identical type, as Move's type checker
// already guarantees for every binary integer op, and returns that
// shared type.
func (fs *funcState) popArithPair() (types.Type, error) {
	if _, err := fs.stack.Pop(); err != nil { // rhs, unused beyond the pop
		return types.Type{}, err
	}
	lhs, err := fs.stack.Pop()
	if err != nil {
		return types.Type{}, err
	}
	return lhs, nil
}

// emitArith lowers Add/Sub/Mul/Div/Mod/BitOr/BitAnd/Xor/Shl/Shr. Stack
// widths (u8..u64) share the overflow-checked helpers in
// internal/runtime; u128/u256 route through the limb-wise helpers for
// Add/Sub only (Mul/Div/Mod/bitwise/shift on heap integers have no
// runtime helper and are out of scope, recorded in DESIGN.md).
func (fs *funcState) emitArith(op bytecode.Op) error {
	t, err := fs.popArithPair()
	if err != nil {
		return err
	}

	if t.Kind == types.KindU128 || t.Kind == types.KindU256 {
		return fs.emitHeapArith(op, t)
	}

	w := runtime.WidthOf(t.Kind)
	switch op {
	case bytecode.OpAdd:
		fs.e.Call(fs.tr.Lib.AddOverflowTrap(w))
	case bytecode.OpSub:
		fs.e.Call(fs.tr.Lib.SubOverflowTrap(w))
	case bytecode.OpMul:
		fs.e.Call(fs.tr.Lib.MulOverflowTrap(w))
	case bytecode.OpDiv:
		fs.emitDivMod(w, false)
	case bytecode.OpMod:
		fs.emitDivMod(w, true)
	case bytecode.OpBitOr:
		fs.emitBitwise(w, wasmbin.OpcodeI32Or, wasmbin.OpcodeI64Or)
	case bytecode.OpBitAnd:
		fs.emitBitwise(w, wasmbin.OpcodeI32And, wasmbin.OpcodeI64And)
	case bytecode.OpXor:
		fs.emitBitwise(w, wasmbin.OpcodeI32Xor, wasmbin.OpcodeI64Xor)
	case bytecode.OpShl:
		fs.emitShift(w, wasmbin.OpcodeI32Shl, wasmbin.OpcodeI64Shl)
	case bytecode.OpShr:
		fs.emitShift(w, wasmbin.OpcodeI32ShrU, wasmbin.OpcodeI64ShrU)
	}
	fs.stack.Push(t)
	return nil
}

func (fs *funcState) emitHeapArith(op bytecode.Op, t types.Type) error {
	switch op {
	case bytecode.OpAdd:
		fn, err := fs.tr.Lib.HeapAdd(t)
		if err != nil {
			return err
		}
		fs.e.Call(fn)
	case bytecode.OpSub:
		fn, err := fs.tr.Lib.HeapSub(t)
		if err != nil {
			return err
		}
		fs.e.Call(fn)
	default:
		return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
			Detailf("%s on %s is out of scope: no heap-integer runtime helper", op, t.Kind).Build()
	}
	fs.stack.Push(t)
	return nil
}

// emitDivMod emits a divide-by-zero check (Move's Div/Mod abort rather
// than trap the generic overflow way, since dividing by zero isn't an
// overflow) followed by the unsigned division or remainder op.
func (fs *funcState) emitDivMod(w runtime.Width, mod bool) {
	isI64 := w == runtime.Width64
	b := fs.scratchForWasm(isI64)
	fs.e.LocalSet(b)

	fs.e.LocalGet(b)
	if isI64 {
		fs.e.Emit(wasmbin.OpcodeI64Eqz)
	} else {
		fs.e.I32Eqz()
	}
	fs.e.If(wasmbin.BlockType{Empty: true})
	errenc.EmitStaticAbort(fs.tr.Table, errenc.KindDivisionByZero, fs.e)
	fs.e.End()

	fs.e.LocalGet(b)
	switch {
	case isI64 && mod:
		fs.e.Emit(wasmbin.OpcodeI64RemU)
	case isI64 && !mod:
		fs.e.I64DivU()
	case !isI64 && mod:
		fs.e.Emit(wasmbin.OpcodeI32RemU)
	default:
		fs.e.Emit(wasmbin.OpcodeI32DivU)
	}
}

func (fs *funcState) emitBitwise(w runtime.Width, op32, op64 wasmbin.Opcode) {
	if w == runtime.Width64 {
		fs.e.Emit(op64)
		return
	}
	fs.e.Emit(op32)
}

// emitShift widens the shift-count operand (always stored as i32, even
// when shifting a u64) to the shifted value's own width before emitting
// the shift, since WASM requires both shift operands to share a type.
func (fs *funcState) emitShift(w runtime.Width, op32, op64 wasmbin.Opcode) {
	if w != runtime.Width64 {
		fs.e.Emit(op32)
		return
	}
	count := fs.NextI32()
	fs.e.LocalSet(count)
	fs.e.LocalGet(count).I64ExtendI32U()
	fs.e.Emit(op64)
}

func (fs *funcState) scratchForWasm(isI64 bool) uint32 {
	if isI64 {
		return fs.NextI64()
	}
	return fs.NextI32()
}

// emitCompare lowers Lt/Gt/Le/Ge. Only stack-width operands are
// supported (u128/u256 ordering would need limb-wise comparison, for
// which no runtime helper exists; out of scope, recorded in DESIGN.md).
func (fs *funcState) emitCompare(op bytecode.Op) error {
	t, err := fs.popArithPair()
	if err != nil {
		return err
	}
	if t.Kind == types.KindU128 || t.Kind == types.KindU256 {
		return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
			Detailf("%s on %s is out of scope: no heap-integer comparison helper", op, t.Kind).Build()
	}
	w := runtime.WidthOf(t.Kind)
	isI64 := w == runtime.Width64
	switch op {
	case bytecode.OpLt:
		if isI64 {
			fs.e.I64LtU()
		} else {
			fs.e.I32LtU()
		}
	case bytecode.OpGt:
		fs.e.Emit(pick(isI64, wasmbin.OpcodeI64GtU, wasmbin.OpcodeI32GtU))
	case bytecode.OpLe:
		fs.e.Emit(pick(isI64, wasmbin.OpcodeI64LeU, wasmbin.OpcodeI32LeU))
	case bytecode.OpGe:
		fs.e.Emit(pick(isI64, wasmbin.OpcodeI64GeU, wasmbin.OpcodeI32GeU))
	}
	fs.stack.Push(types.Bool())
	return nil
}

func pick(cond bool, a, b wasmbin.Opcode) wasmbin.Opcode {
	if cond {
		return a
	}
	return b
}

// emitEquality lowers Eq/Neq. internal/runtime's EqualityInstructions
// handles every stack scalar and fixed-size heap scalar directly;
// struct equality falls back to a field-by-field comparison here since
// a struct's fields may themselves be composite. Enum equality is out
// of scope (a variant-dependent comparison would need runtime branching
// on the discriminator), recorded in DESIGN.md.
func (fs *funcState) emitEquality(op bytecode.Op) error {
	t, err := fs.popArithPair()
	if err != nil {
		return err
	}

	err = runtime.EqualityInstructions(fs.tr.Ctx, t, fs, fs.e)
	if err != nil {
		if t.Kind != types.KindStruct && t.Kind != types.KindGenericStructInstance {
			return err
		}
		if err := fs.emitStructEquality(t); err != nil {
			return err
		}
	}

	if op == bytecode.OpNeq {
		fs.e.I32Eqz()
	}
	fs.stack.Push(types.Bool())
	return nil
}

// emitStructEquality compares two struct pointers (already on the
// stack) field by field, AND-accumulating each field's equality the
// same way internal/runtime's emitByteRangeEqual accumulates byte-range
// comparisons.
func (fs *funcState) emitStructEquality(t types.Type) error {
	st, err := fs.tr.Ctx.ResolveStruct(t.ModuleID, t.DefIndex)
	if err != nil {
		return err
	}
	if len(t.TypeArgs) > 0 {
		st = st.Instantiate(t.TypeArgs)
	}

	bPtr, aPtr, acc := fs.NextI32(), fs.NextI32(), fs.NextI32()
	fs.e.LocalSet(bPtr)
	fs.e.LocalSet(aPtr)
	fs.e.I32Const(1).LocalSet(acc)

	for i, f := range st.Fields {
		fs.e.LocalGet(aPtr).Load(wasmbin.OpcodeI32Load, uint32(4*i))
		fs.e.LocalGet(bPtr).Load(wasmbin.OpcodeI32Load, uint32(4*i))
		if f.Type.Kind == types.KindU64 {
			// Boxed u64 field: dereference both cells before comparing.
			fs.e.Load(wasmbin.OpcodeI64Load, 0)
			tmp := fs.NextI64()
			fs.e.LocalSet(tmp)
			fs.e.Load(wasmbin.OpcodeI64Load, 0)
			fs.e.LocalGet(tmp)
			fs.e.I64Eq()
		} else if err := runtime.EqualityInstructions(fs.tr.Ctx, f.Type, fs, fs.e); err != nil {
			if f.Type.Kind != types.KindStruct && f.Type.Kind != types.KindGenericStructInstance {
				return err
			}
			if err := fs.emitStructEquality(f.Type); err != nil {
				return err
			}
		}
		fs.e.LocalGet(acc).I32And().LocalSet(acc)
	}
	fs.e.LocalGet(acc)
	return nil
}

// emitLogical lowers Or/And. Move's boolean Or/And are not short-circuit
// (both operands are already pushed by the time the op executes), so
// they lower to the plain bitwise i32 op.
func (fs *funcState) emitLogical(or bool) error {
	if _, err := fs.stack.PopExpect(types.Bool()); err != nil {
		return err
	}
	if _, err := fs.stack.PopExpect(types.Bool()); err != nil {
		return err
	}
	if or {
		fs.e.I32Or()
	} else {
		fs.e.I32And()
	}
	fs.stack.Push(types.Bool())
	return nil
}

// emitCast lowers CastU8..CastU256: narrows/widens between stack widths
// via runtime.CastDowncast's checked truncation, or extends into a
// freshly allocated heap integer when the target is u128/u256.
func (fs *funcState) emitCast(op bytecode.Op) error {
	from, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	to := castTarget(op)

	if to.Kind == types.KindU128 || to.Kind == types.KindU256 {
		return fs.emitCastToHeap(from, to)
	}
	if from.Kind == types.KindU128 || from.Kind == types.KindU256 {
		return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
			Detailf("cast from %s is out of scope: no heap-integer narrowing helper", from.Kind).Build()
	}

	fromW, toW := runtime.WidthOf(from.Kind), runtime.WidthOf(to.Kind)
	if fromW == toW {
		fs.stack.Push(to)
		return nil
	}
	if toW > fromW {
		if fromW != runtime.Width64 && toW == runtime.Width64 {
			fs.e.I64ExtendI32U()
		}
		fs.stack.Push(to)
		return nil
	}
	fs.e.Call(fs.tr.Lib.CastDowncast(fromW, toW))
	fs.stack.Push(to)
	return nil
}

func castTarget(op bytecode.Op) types.Type {
	switch op {
	case bytecode.OpCastU8:
		return types.U8()
	case bytecode.OpCastU16:
		return types.U16()
	case bytecode.OpCastU32:
		return types.U32()
	case bytecode.OpCastU64:
		return types.U64()
	case bytecode.OpCastU128:
		return types.U128()
	default:
		return types.U256()
	}
}

// emitCastToHeap widens a stack-width value into a freshly allocated
// u128/u256 heap integer: zero-extend into the low limb, zero every
// higher limb.
func (fs *funcState) emitCastToHeap(from, to types.Type) error {
	if from.Kind == types.KindU128 || from.Kind == types.KindU256 {
		return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
			Detailf("cast from %s to %s is out of scope", from.Kind, to.Kind).Build()
	}
	v := fs.NextI64()
	if from.Kind == types.KindU64 {
		fs.e.LocalSet(v)
	} else {
		fs.e.I64ExtendI32U().LocalSet(v)
	}

	size := 16
	if to.Kind == types.KindU256 {
		size = 32
	}
	dst := fs.NextI32()
	fs.e.I32Const(int32(size)).Call(fs.tr.Lib.AllocFuncID()).LocalSet(dst)
	fs.e.LocalGet(dst).LocalGet(v).Store(wasmbin.OpcodeI64Store, 0)
	for off := 8; off < size; off += 8 {
		fs.e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, uint32(off))
	}
	fs.e.LocalGet(dst)
	fs.stack.Push(to)
	return nil
}
