package translate

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/memory"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// translateInstr lowers one Move instruction against fs's compile-time
// stack and emitter. Most opcodes pop their operand types, emit the
// equivalent WASM sequence, and push the result type, mirroring the
// stack-effect Move's own verifier already proved balanced.
func (fs *funcState) translateInstr(instr bytecode.Instruction) error {
	switch instr.Op {
	case bytecode.OpNop:
		return nil

	case bytecode.OpPop:
		if _, err := fs.stack.Pop(); err != nil {
			return err
		}
		fs.e.Drop()
		return nil

	case bytecode.OpRet:
		return fs.emitRet()

	case bytecode.OpAbort:
		return fs.emitAbort()

	case bytecode.OpLdTrue:
		fs.e.I32Const(1)
		fs.stack.Push(types.Bool())
		return nil
	case bytecode.OpLdFalse:
		fs.e.I32Const(0)
		fs.stack.Push(types.Bool())
		return nil
	case bytecode.OpLdU8, bytecode.OpLdU16, bytecode.OpLdU32:
		fs.e.I32Const(int32(instr.ImmU64))
		fs.stack.Push(ldNarrowType(instr.Op))
		return nil
	case bytecode.OpLdU64:
		fs.e.I64Const(int64(instr.ImmU64))
		fs.stack.Push(types.U64())
		return nil
	case bytecode.OpLdU128, bytecode.OpLdU256:
		return fs.emitLdHeapImmediate(instr)
	case bytecode.OpLdConst:
		return fs.emitLdConst(instr)

	case bytecode.OpMoveLoc, bytecode.OpCopyLoc:
		return fs.emitLoadLoc(instr)
	case bytecode.OpStLoc:
		return fs.emitStoreLoc(instr)

	case bytecode.OpBorrowLoc:
		return fs.emitBorrowLoc(instr)
	case bytecode.OpBorrowField:
		return fs.emitBorrowField(instr)
	case bytecode.OpBorrowGlobal:
		return fs.emitBorrowGlobal(instr)
	case bytecode.OpReadRef:
		return fs.emitReadRef()
	case bytecode.OpWriteRef:
		return fs.emitWriteRef()
	case bytecode.OpFreezeRef:
		return fs.emitFreezeRef()

	case bytecode.OpCall:
		return fs.emitCall(instr, nil)
	case bytecode.OpCallGeneric:
		return fs.emitCallGeneric(instr)

	case bytecode.OpPack:
		return fs.emitPack(instr, nil)
	case bytecode.OpUnpack:
		return fs.emitUnpack(instr, nil)
	case bytecode.OpPackGeneric:
		return fs.emitPack(instr, instr.TypeArgs)
	case bytecode.OpUnpackGeneric:
		return fs.emitUnpack(instr, instr.TypeArgs)
	case bytecode.OpPackVariant:
		return fs.emitPackVariant(instr)
	case bytecode.OpUnpackVariant:
		return fs.emitUnpackVariant(instr)

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpBitOr, bytecode.OpBitAnd, bytecode.OpXor, bytecode.OpShl, bytecode.OpShr:
		return fs.emitArith(instr.Op)
	case bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe:
		return fs.emitCompare(instr.Op)
	case bytecode.OpEq, bytecode.OpNeq:
		return fs.emitEquality(instr.Op)
	case bytecode.OpNot:
		if _, err := fs.stack.PopExpect(types.Bool()); err != nil {
			return err
		}
		fs.e.I32Eqz()
		fs.stack.Push(types.Bool())
		return nil
	case bytecode.OpOr:
		return fs.emitLogical(true)
	case bytecode.OpAnd:
		return fs.emitLogical(false)

	case bytecode.OpCastU8, bytecode.OpCastU16, bytecode.OpCastU32, bytecode.OpCastU64,
		bytecode.OpCastU128, bytecode.OpCastU256:
		return fs.emitCast(instr.Op)

	case bytecode.OpVecLen:
		return fs.emitVecLen()
	case bytecode.OpVecImmBorrow, bytecode.OpVecMutBorrow:
		return fs.emitVecBorrow()
	case bytecode.OpVecPushBack:
		return fs.emitVecPushBack()
	case bytecode.OpVecPopBack:
		return fs.emitVecPopBack()
	case bytecode.OpVecSwap:
		return fs.emitVecSwap()
	case bytecode.OpVecPack, bytecode.OpVecUnpack:
		return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
			Detailf("%s has no arity carried on Instruction; out of scope", instr.Op).Build()

	default:
		return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
			Detailf("unhandled opcode %s", instr.Op).Build()
	}
}

func ldNarrowType(op bytecode.Op) types.Type {
	if op == bytecode.OpLdU8 {
		return types.U8()
	}
	if op == bytecode.OpLdU16 {
		return types.U16()
	}
	return types.U32()
}

// emitRet lowers a Move return: 0 values drop nothing and Return; 1
// value returns it directly; N>1 box every popped value into a single
// heap tuple cell (mirroring Pack's field-cell layout) since this
// compiler never emits a WASM function with more than one result
// (§4.7's FunctionType helper already reflects this on the signature
// side).
func (fs *funcState) emitRet() error {
	n := len(fs.entry.Returns)
	switch n {
	case 0:
		fs.e.Return()
		return nil
	case 1:
		if _, err := fs.stack.Pop(); err != nil {
			return err
		}
		fs.e.Return()
		return nil
	default:
		vals := make([]uint32, n)
		for i := n - 1; i >= 0; i-- {
			t := fs.entry.Returns[i]
			vals[i] = fs.scratchFor(t)
			if _, err := fs.stack.Pop(); err != nil {
				return err
			}
			fs.e.LocalSet(vals[i])
		}
		tuple := fs.NextI32()
		fs.e.I32Const(int32(4 * n)).Call(fs.tr.Lib.AllocFuncID()).LocalSet(tuple)
		for i, t := range fs.entry.Returns {
			if t.Kind == types.KindU64 {
				// Box u64 into its own 8-byte cell, as struct fields do
				// (§9): a tuple slot is always 4 bytes, never wide
				// enough to hold an i64 in place.
				box := fs.NextI32()
				fs.e.I32Const(8).Call(fs.tr.Lib.AllocFuncID()).LocalSet(box)
				fs.e.LocalGet(box).LocalGet(vals[i]).Store(wasmbin.OpcodeI64Store, 0)
				fs.e.LocalGet(tuple).I32Const(int32(4 * i)).I32Add()
				fs.e.LocalGet(box)
				fs.e.Store(wasmbin.OpcodeI32Store, 0)
				continue
			}
			fs.e.LocalGet(tuple).I32Const(int32(4 * i)).I32Add()
			fs.e.LocalGet(vals[i])
			fs.e.Store(wasmbin.OpcodeI32Store, 0)
		}
		fs.e.LocalGet(tuple)
		fs.e.Return()
		return nil
	}
}

// emitAbort lowers Move's Abort(u64 code): renders the runtime code as
// decimal ASCII inside a revert blob (internal/errenc) and traps. A
// compile-time-known abort Kind would instead go through
// errenc.EmitStaticAbort directly, but Abort's operand is always a
// value computed by the Move function, never a constant this translator
// can special-case.
func (fs *funcState) emitAbort() error {
	if _, err := fs.stack.PopExpect(types.U64()); err != nil {
		return err
	}
	codeLocal := fs.NextI64()
	fs.e.LocalSet(codeLocal)
	dst := fs.tr.Err.EmitAbortFromCode(codeLocal, fs, fs.e)
	fs.e.I32Const(memory.OffsetAbortMessagePtr)
	fs.e.LocalGet(dst)
	fs.e.Store(wasmbin.OpcodeI32Store, 0)
	fs.e.Unreachable()
	fs.stack.PushUnknown()
	return nil
}

// emitLdHeapImmediate materializes a u128/u256 literal (instr.ImmBytes,
// little-endian) as a static data segment referenced directly: these
// values are never mutated in place (every heap-int arithmetic helper
// allocates a fresh result, internal/runtime/heapints.go), so pushing
// the segment's address needs no defensive copy.
func (fs *funcState) emitLdHeapImmediate(instr bytecode.Instruction) error {
	off := fs.tr.Consts.Offset(instr.ImmBytes)
	fs.e.I32Const(int32(off))
	if instr.Op == bytecode.OpLdU128 {
		fs.stack.Push(types.U128())
	} else {
		fs.stack.Push(types.U256())
	}
	return nil
}

// emitLdConst pushes the interned module constant at instr.ConstIndex.
// Scalar constants decode to an immediate value; everything else
// (u128/u256/address, and length-prefixed bytes-like values) is
// referenced directly from its static data segment, same reasoning as
// emitLdHeapImmediate.
func (fs *funcState) emitLdConst(instr bytecode.Instruction) error {
	if instr.ConstIndex < 0 || instr.ConstIndex >= len(fs.mod.ConstantPool) {
		return cerr.New(cerr.PhaseTranslate, cerr.KindMalformedIndex).
			Detailf("constant index %d out of range", instr.ConstIndex).Build()
	}
	c := fs.mod.ConstantPool[instr.ConstIndex]
	t, err := fs.tr.Ctx.Resolve(c.Type)
	if err != nil {
		return err
	}

	switch t.Kind {
	case types.KindBool:
		v := int32(0)
		if len(c.Data) > 0 && c.Data[0] != 0 {
			v = 1
		}
		fs.e.I32Const(v)
	case types.KindU8, types.KindU16, types.KindU32:
		fs.e.I32Const(int32(leUint(c.Data)))
	case types.KindU64:
		fs.e.I64Const(int64(leUint(c.Data)))
	case types.KindU128, types.KindU256, types.KindAddress:
		off := fs.tr.Consts.Offset(c.Data)
		fs.e.I32Const(int32(off))
	case types.KindVector:
		if t.Elem.Kind != types.KindU8 {
			return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
				Detailf("constant vector<%s> is out of scope; only vector<u8> is supported", t.Elem.Kind).Build()
		}
		off := fs.tr.Consts.Offset(lengthPrefixed(c.Data))
		fs.e.I32Const(int32(off))
	default:
		return cerr.New(cerr.PhaseTranslate, cerr.KindUnsupportedType).
			Detailf("constant of type %s is out of scope", t.Kind).Build()
	}

	fs.stack.Push(t)
	return nil
}

func leUint(b []byte) uint64 {
	var v uint64
	for i, c := range b {
		if i >= 8 {
			break
		}
		v |= uint64(c) << (8 * uint(i))
	}
	return v
}

func lengthPrefixed(data []byte) []byte {
	out := make([]byte, 4+len(data))
	n := uint32(len(data))
	out[0] = byte(n)
	out[1] = byte(n >> 8)
	out[2] = byte(n >> 16)
	out[3] = byte(n >> 24)
	copy(out[4:], data)
	return out
}

// emitLoadLoc lowers MoveLoc/CopyLoc: both read the local's current
// value, CopyLoc additionally deep-copying heap types so the original
// binding and the copy never alias through the same pointer.
func (fs *funcState) emitLoadLoc(instr bytecode.Instruction) error {
	t := fs.localType(instr.LocalIndex)
	fs.emitLocalGet(instr.LocalIndex)
	if instr.Op == bytecode.OpCopyLoc {
		if err := runtime.CopyInstructions(fs.tr.Ctx, t, fs.tr.Lib, fs, fs.e); err != nil {
			return err
		}
	}
	fs.stack.Push(t)
	return nil
}

func (fs *funcState) emitStoreLoc(instr bytecode.Instruction) error {
	if _, err := fs.stack.Pop(); err != nil {
		return err
	}
	fs.emitLocalSet(instr.LocalIndex)
	return nil
}

// emitBorrowLoc pushes the address of local index's dedicated cell
// (hoisted by hoistBorrowedLocals for every local BorrowLoc ever
// targets), typed as a mutable reference to the local's own type.
func (fs *funcState) emitBorrowLoc(instr bytecode.Instruction) error {
	addr, ok := fs.boxed[instr.LocalIndex]
	if !ok {
		return cerr.New(cerr.PhaseTranslate, cerr.KindInvalidControlFlow).
			Detailf("BorrowLoc on local %d not hoisted", instr.LocalIndex).Build()
	}
	fs.e.LocalGet(addr)
	fs.stack.Push(types.MutRef(fs.localType(instr.LocalIndex)))
	return nil
}

// emitReadRef dereferences a reference's cell: Ref/MutRef(t)'s address
// is on the stack, loadCell reads t's natural width out of it.
func (fs *funcState) emitReadRef() error {
	ref, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	if !ref.IsReference() {
		return cerr.New(cerr.PhaseTranslate, cerr.KindTypeMismatch).
			Detailf("ReadRef on non-reference %s", ref.Kind).Build()
	}
	loadCell(fs.e, *ref.Elem, 0)
	fs.stack.Push(*ref.Elem)
	return nil
}

// emitWriteRef pops (reference, value) and stores value's natural width
// into the reference's cell.
func (fs *funcState) emitWriteRef() error {
	val, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	ref, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	if !ref.IsReference() {
		return cerr.New(cerr.PhaseTranslate, cerr.KindTypeMismatch).
			Detailf("WriteRef on non-reference %s", ref.Kind).Build()
	}
	valLocal := fs.scratchFor(val)
	fs.e.LocalSet(valLocal)
	fs.e.LocalGet(valLocal)
	storeCell(fs.e, *ref.Elem, 0)
	return nil
}

// emitFreezeRef demotes a MutRef to a Ref; both share the same
// runtime representation (a cell address), so nothing is emitted.
func (fs *funcState) emitFreezeRef() error {
	ref, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	if ref.Kind != types.KindMutRef {
		return cerr.New(cerr.PhaseTranslate, cerr.KindTypeMismatch).
			Detailf("FreezeRef on non-mutable reference %s", ref.Kind).Build()
	}
	fs.stack.Push(types.Ref(*ref.Elem))
	return nil
}
