package translate

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// vectorElem unwraps a vector operand's element type, looking through one
// level of reference first since every vector op in this instruction set
// takes either the vector itself or a reference to one, both represented
// identically at runtime (the same plain i32 pointer, §4.7).
func vectorElem(t types.Type) (types.Type, error) {
	if t.IsReference() {
		t = *t.Elem
	}
	if t.Kind != types.KindVector {
		return types.Type{}, cerr.New(cerr.PhaseTranslate, cerr.KindTypeMismatch).
			Detailf("expected vector, found %s", t.Kind).Build()
	}
	return *t.Elem, nil
}

// vectorElemSize returns the width of one vector element slot: 8 bytes
// for u64 (stored as a native i64 rather than boxed, unlike a struct
// field), 4 bytes for every other stack scalar or heap pointer.
func vectorElemSize(elem types.Type) int {
	if elem.Kind == types.KindU64 {
		return 8
	}
	return 4
}

func (fs *funcState) emitVecLen() error {
	vecTy, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	if _, err := vectorElem(vecTy); err != nil {
		return err
	}
	fs.e.Call(fs.tr.Lib.VectorLength()).I64ExtendI32U()
	fs.stack.Push(types.U64())
	return nil
}

// emitVecBorrow lowers both VecImmBorrow and VecMutBorrow: there is no
// runtime distinction between an immutable and mutable element
// reference, so both collapse onto the same address computation and
// push a MutRef, matching emitBorrowField's simplification.
func (fs *funcState) emitVecBorrow() error {
	if _, err := fs.stack.PopExpect(types.U64()); err != nil {
		return err
	}
	idxLocal := fs.NextI32()
	fs.e.I32WrapI64().LocalSet(idxLocal)

	vecTy, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	elem, err := vectorElem(vecTy)
	if err != nil {
		return err
	}
	vec := fs.NextI32()
	fs.e.LocalSet(vec)

	fs.e.LocalGet(vec).LocalGet(idxLocal).I32Const(int32(vectorElemSize(elem))).Call(fs.tr.Lib.VectorElemPtr())
	fs.stack.Push(types.MutRef(elem))
	return nil
}

func (fs *funcState) emitVecPushBack() error {
	val, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	valLocal := fs.scratchFor(val)
	fs.e.LocalSet(valLocal)

	vecTy, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	elem, err := vectorElem(vecTy)
	if err != nil {
		return err
	}
	size := vectorElemSize(elem)
	vec := fs.NextI32()
	fs.e.LocalSet(vec)

	oldLen := fs.NextI32()
	fs.e.LocalGet(vec).Load(wasmbin.OpcodeI32Load, 0).LocalSet(oldLen)

	newVec := fs.NextI32()
	fs.e.LocalGet(vec).I32Const(int32(size)).Call(fs.tr.Lib.VectorPush()).LocalSet(newVec)

	elemAddr := fs.NextI32()
	fs.e.LocalGet(newVec).LocalGet(oldLen).I32Const(int32(size)).Call(fs.tr.Lib.VectorElemPtr()).LocalSet(elemAddr)

	fs.e.LocalGet(elemAddr).LocalGet(valLocal)
	if size == 8 {
		fs.e.Store(wasmbin.OpcodeI64Store, 0)
	} else {
		fs.e.Store(wasmbin.OpcodeI32Store, 0)
	}

	fs.e.LocalGet(newVec)
	fs.stack.Push(vecTy)
	return nil
}

func (fs *funcState) emitVecPopBack() error {
	vecTy, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	elem, err := vectorElem(vecTy)
	if err != nil {
		return err
	}
	size := vectorElemSize(elem)
	vec := fs.NextI32()
	fs.e.LocalSet(vec)

	fs.e.LocalGet(vec).I32Const(int32(size)).Call(fs.tr.Lib.VectorPop())
	if size == 8 {
		fs.e.Load(wasmbin.OpcodeI64Load, 0)
	} else {
		fs.e.Load(wasmbin.OpcodeI32Load, 0)
	}
	fs.stack.Push(elem)
	return nil
}

func (fs *funcState) emitVecSwap() error {
	if _, err := fs.stack.PopExpect(types.U64()); err != nil {
		return err
	}
	jLocal := fs.NextI32()
	fs.e.I32WrapI64().LocalSet(jLocal)

	if _, err := fs.stack.PopExpect(types.U64()); err != nil {
		return err
	}
	iLocal := fs.NextI32()
	fs.e.I32WrapI64().LocalSet(iLocal)

	vecTy, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	elem, err := vectorElem(vecTy)
	if err != nil {
		return err
	}
	size := vectorElemSize(elem)
	vec := fs.NextI32()
	fs.e.LocalSet(vec)

	addrI := fs.NextI32()
	fs.e.LocalGet(vec).LocalGet(iLocal).I32Const(int32(size)).Call(fs.tr.Lib.VectorElemPtr()).LocalSet(addrI)
	addrJ := fs.NextI32()
	fs.e.LocalGet(vec).LocalGet(jLocal).I32Const(int32(size)).Call(fs.tr.Lib.VectorElemPtr()).LocalSet(addrJ)

	loadOp, storeOp := wasmbin.OpcodeI32Load, wasmbin.OpcodeI32Store
	var tmp uint32
	if size == 8 {
		loadOp, storeOp = wasmbin.OpcodeI64Load, wasmbin.OpcodeI64Store
		tmp = fs.NextI64()
	} else {
		tmp = fs.NextI32()
	}

	fs.e.LocalGet(addrI).Load(loadOp, 0).LocalSet(tmp)
	fs.e.LocalGet(addrI).LocalGet(addrJ).Load(loadOp, 0).Store(storeOp, 0)
	fs.e.LocalGet(addrJ).LocalGet(tmp).Store(storeOp, 0)
	return nil
}
