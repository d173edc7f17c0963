package translate

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// resolveTypeArgs resolves a Call/Pack site's raw type-argument tokens
// against this function's own instantiation, so a generic function that
// itself packs a generic struct forwards its own type parameters rather
// than leaving them unsubstituted.
func (fs *funcState) resolveTypeArgs(raw []bytecode.SignatureToken) ([]types.Type, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	args := make([]types.Type, len(raw))
	for i, tok := range raw {
		t, err := fs.tr.Ctx.Resolve(tok)
		if err != nil {
			return nil, err
		}
		args[i] = t.Substitute(fs.typeArgs)
	}
	return args, nil
}

// resolveStruct resolves structIndex in this function's own module,
// monomorphizing against raw's type arguments when non-empty, and
// returns both its field layout and the intermediate Type a value of
// that struct carries on the compile-time stack.
func (fs *funcState) resolveStruct(structIndex int, raw []bytecode.SignatureToken) (*types.Struct, types.Type, error) {
	if len(raw) == 0 {
		st, err := fs.tr.Ctx.ResolveStruct(fs.mod.ID, structIndex)
		if err != nil {
			return nil, types.Type{}, err
		}
		return st, types.Type{Kind: types.KindStruct, ModuleID: fs.mod.ID, DefIndex: structIndex, VMTag: st.VMTag}, nil
	}
	args, err := fs.resolveTypeArgs(raw)
	if err != nil {
		return nil, types.Type{}, err
	}
	st, err := fs.tr.Ctx.InternGenericStruct(fs.mod.ID, structIndex, args)
	if err != nil {
		return nil, types.Type{}, err
	}
	return st, types.Type{Kind: types.KindGenericStructInstance, ModuleID: fs.mod.ID, DefIndex: structIndex, VMTag: st.VMTag, TypeArgs: args}, nil
}

// emitPack allocates st's heap block (one 4-byte cell per field) and
// writes each popped field value into its cell: a u64 field is boxed
// into its own freshly allocated 8-byte cell and only the box's pointer
// is stored, so every field cell is uniformly 4 bytes regardless of the
// field's own type (§9).
func (fs *funcState) emitPack(instr bytecode.Instruction, rawTypeArgs []bytecode.SignatureToken) error {
	st, structTy, err := fs.resolveStruct(instr.StructIndex, rawTypeArgs)
	if err != nil {
		return err
	}

	n := len(st.Fields)
	vals := make([]uint32, n)
	for i := n - 1; i >= 0; i-- {
		v, err := fs.stack.Pop()
		if err != nil {
			return err
		}
		vals[i] = fs.scratchFor(v)
		fs.e.LocalSet(vals[i])
	}

	ptr := fs.NextI32()
	fs.e.I32Const(int32(st.HeapSize)).Call(fs.tr.Lib.AllocFuncID()).LocalSet(ptr)

	for i, f := range st.Fields {
		if f.Type.Kind == types.KindU64 {
			box := fs.NextI32()
			fs.e.I32Const(8).Call(fs.tr.Lib.AllocFuncID()).LocalSet(box)
			fs.e.LocalGet(box).LocalGet(vals[i]).Store(wasmbin.OpcodeI64Store, 0)
			fs.e.LocalGet(ptr).I32Const(int32(4 * i)).I32Add()
			fs.e.LocalGet(box)
			fs.e.Store(wasmbin.OpcodeI32Store, 0)
			continue
		}
		fs.e.LocalGet(ptr).I32Const(int32(4 * i)).I32Add()
		fs.e.LocalGet(vals[i])
		fs.e.Store(wasmbin.OpcodeI32Store, 0)
	}

	fs.e.LocalGet(ptr)
	fs.stack.Push(structTy)
	return nil
}

// emitUnpack is emitPack's inverse: it reads each field cell back,
// dereferencing a boxed u64 cell's pointer, and pushes the fields in
// declaration order so the last field ends on top of the stack.
func (fs *funcState) emitUnpack(instr bytecode.Instruction, rawTypeArgs []bytecode.SignatureToken) error {
	st, _, err := fs.resolveStruct(instr.StructIndex, rawTypeArgs)
	if err != nil {
		return err
	}
	if _, err := fs.stack.Pop(); err != nil {
		return err
	}
	ptr := fs.NextI32()
	fs.e.LocalSet(ptr)

	for i, f := range st.Fields {
		fs.e.LocalGet(ptr).Load(wasmbin.OpcodeI32Load, uint32(4*i))
		if f.Type.Kind == types.KindU64 {
			fs.e.Load(wasmbin.OpcodeI64Load, 0)
		}
		fs.stack.Push(f.Type)
	}
	return nil
}

// emitBorrowField produces a reference to one field of the struct the
// popped operand addresses, directly if the operand is the struct value
// itself, or through one level of dereference if it's a reference to
// one — both cases leave the same plain i32 struct pointer on the stack,
// so no extra load is needed to find the struct's base address. There is
// no separate immutable/mutable BorrowField opcode in this instruction
// set (§4.7), so every borrowed field is represented as a MutRef, the
// same simplification FreezeRef already relies on.
func (fs *funcState) emitBorrowField(instr bytecode.Instruction) error {
	operand, err := fs.stack.Pop()
	if err != nil {
		return err
	}
	base := operand
	if base.IsReference() {
		base = *base.Elem
	}
	if base.Kind != types.KindStruct && base.Kind != types.KindGenericStructInstance {
		return cerr.New(cerr.PhaseTranslate, cerr.KindTypeMismatch).
			Detailf("BorrowField on non-struct %s", base.Kind).Build()
	}

	var st *types.Struct
	if base.Kind == types.KindStruct {
		st, err = fs.tr.Ctx.ResolveStruct(base.ModuleID, base.DefIndex)
	} else {
		st, err = fs.tr.Ctx.InternGenericStruct(base.ModuleID, base.DefIndex, base.TypeArgs)
	}
	if err != nil {
		return err
	}
	if instr.FieldIndex < 0 || instr.FieldIndex >= len(st.Fields) {
		return cerr.New(cerr.PhaseTranslate, cerr.KindMalformedIndex).
			Detailf("field index %d out of range in struct %s", instr.FieldIndex, st.Name).Build()
	}
	f := st.Fields[instr.FieldIndex]

	fs.e.I32Const(int32(4 * instr.FieldIndex)).I32Add()
	if f.Type.Kind == types.KindU64 {
		fs.e.Load(wasmbin.OpcodeI32Load, 0)
	}
	fs.stack.Push(types.MutRef(f.Type))
	return nil
}

// emitBorrowGlobal loads an object's fields from storage given its UID
// (§3.7) and pushes a reference to the resulting in-memory struct.
// Mutations through the reference only update the in-memory copy: there
// is no implicit write-back to storage on WriteRef, so a caller that
// wants a mutation persisted must still go through StoreObject
// explicitly (not yet wired to any opcode — out of scope, recorded in
// DESIGN.md).
func (fs *funcState) emitBorrowGlobal(instr bytecode.Instruction) error {
	if _, err := fs.stack.PopExpect(types.Address()); err != nil {
		return err
	}
	uidPtr := fs.NextI32()
	fs.e.LocalSet(uidPtr)

	st, err := fs.tr.Ctx.ResolveStruct(fs.mod.ID, instr.StructIndex)
	if err != nil {
		return err
	}
	ptrLocal, err := fs.tr.Store.LoadObject(st, uidPtr, fs, fs.e)
	if err != nil {
		return err
	}

	fs.e.LocalGet(ptrLocal)
	fs.stack.Push(types.MutRef(types.Type{Kind: types.KindStruct, ModuleID: fs.mod.ID, DefIndex: instr.StructIndex, VMTag: st.VMTag}))
	return nil
}

// emitPackVariant allocates an enum's heap block (a 4-byte discriminator
// cell followed by one 4-byte cell per field of the chosen variant,
// boxing u64 fields exactly as emitPack does) and writes the
// discriminator plus each popped field.
func (fs *funcState) emitPackVariant(instr bytecode.Instruction) error {
	en, err := fs.tr.Ctx.ResolveEnum(fs.mod.ID, instr.EnumIndex)
	if err != nil {
		return err
	}
	if instr.VariantIndex < 0 || instr.VariantIndex >= len(en.Variants) {
		return cerr.New(cerr.PhaseTranslate, cerr.KindMalformedIndex).
			Detailf("variant index %d out of range in enum %s", instr.VariantIndex, en.Name).Build()
	}
	v := en.Variants[instr.VariantIndex]

	n := len(v.Fields)
	vals := make([]uint32, n)
	for i := n - 1; i >= 0; i-- {
		val, err := fs.stack.Pop()
		if err != nil {
			return err
		}
		vals[i] = fs.scratchFor(val)
		fs.e.LocalSet(vals[i])
	}

	ptr := fs.NextI32()
	fs.e.I32Const(int32(4 + 4*n)).Call(fs.tr.Lib.AllocFuncID()).LocalSet(ptr)
	fs.e.LocalGet(ptr).I32Const(int32(instr.VariantIndex)).Store(wasmbin.OpcodeI32Store, 0)

	for i, ft := range v.Fields {
		if ft.Kind == types.KindU64 {
			box := fs.NextI32()
			fs.e.I32Const(8).Call(fs.tr.Lib.AllocFuncID()).LocalSet(box)
			fs.e.LocalGet(box).LocalGet(vals[i]).Store(wasmbin.OpcodeI64Store, 0)
			fs.e.LocalGet(ptr).I32Const(int32(4 + 4*i)).I32Add()
			fs.e.LocalGet(box)
			fs.e.Store(wasmbin.OpcodeI32Store, 0)
			continue
		}
		fs.e.LocalGet(ptr).I32Const(int32(4 + 4*i)).I32Add()
		fs.e.LocalGet(vals[i])
		fs.e.Store(wasmbin.OpcodeI32Store, 0)
	}

	fs.e.LocalGet(ptr)
	fs.stack.Push(types.Type{Kind: types.KindEnum, ModuleID: fs.mod.ID, DefIndex: instr.EnumIndex})
	return nil
}

// emitUnpackVariant reads a variant's fields back from an enum pointer.
// It trusts the precondition a preceding VariantSwitch case already
// established (that the pointer really holds this variant) rather than
// re-checking the discriminator, matching Move's own verifier guarantee
// that UnpackVariant only ever appears where that's already known.
func (fs *funcState) emitUnpackVariant(instr bytecode.Instruction) error {
	en, err := fs.tr.Ctx.ResolveEnum(fs.mod.ID, instr.EnumIndex)
	if err != nil {
		return err
	}
	if instr.VariantIndex < 0 || instr.VariantIndex >= len(en.Variants) {
		return cerr.New(cerr.PhaseTranslate, cerr.KindMalformedIndex).
			Detailf("variant index %d out of range in enum %s", instr.VariantIndex, en.Name).Build()
	}
	v := en.Variants[instr.VariantIndex]

	if _, err := fs.stack.Pop(); err != nil {
		return err
	}
	ptr := fs.NextI32()
	fs.e.LocalSet(ptr)

	for i, ft := range v.Fields {
		fs.e.LocalGet(ptr).Load(wasmbin.OpcodeI32Load, uint32(4+4*i))
		if ft.Kind == types.KindU64 {
			fs.e.Load(wasmbin.OpcodeI64Load, 0)
		}
		fs.stack.Push(ft)
	}
	return nil
}
