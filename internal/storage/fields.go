package storage

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// cursor tracks the in-flight packing state across a struct's sequential
// field stream (§4.5): which slot key is current, the scratch buffer
// backing it (zero-filled on encode, loaded from storage on demand on
// decode), and how many bytes starting from the high end are already
// spoken for. Nested value structs are inlined (flattened) by
// encodeOneField/decodeOneField recursing with the same cursor, so their
// fields continue the same byte stream their parent left off at.
type cursor struct {
	key  uint32
	buf  uint32
	used int
	open bool
}

// isStorageHandle reports whether t's value is indirected through its own
// keccak-derived child slot(s) rather than packed inline: vectors,
// Move's String/vector<u8> byte buffers, Table, and DynamicField-tagged
// structs all have a length or key space that isn't bounded at compile
// time, so each gets a fixed-size header slot (holding a length, or
// nothing for Table/DynamicField) with the payload reached separately.
func isStorageHandle(t types.Type) bool {
	if t.Kind == types.KindVector {
		return true
	}
	switch t.VMTag {
	case bytecode.VMTagString, bytecode.VMTagBytes, bytecode.VMTagTable, bytecode.VMTagDynamicField:
		return true
	}
	return false
}

func vectorSlotWidth(elem types.Type) int {
	if elem.Kind == types.KindU64 {
		return 8
	}
	return 4
}

// EncodeStruct packs st's fields (§4.5) starting at rootKey, leaving
// storage_cache_bytes32 calls for every slot the struct touches.
func (c *Codec) EncodeStruct(st *types.Struct, valueLocal, rootKey uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	cur := &cursor{key: c.copyKey(rootKey, sc, e)}
	if err := c.encodeFieldsInto(st.Fields, valueLocal, cur, sc, e); err != nil {
		return err
	}
	c.flushSlot(cur, e)
	return nil
}

// DecodeStruct reads st's fields back starting at rootKey, leaving an i32
// pointer to a freshly allocated, fully populated heap instance.
func (c *Codec) DecodeStruct(st *types.Struct, rootKey uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	cur := &cursor{key: c.copyKey(rootKey, sc, e)}
	out := sc.NextI32()
	e.I32Const(int32(st.HeapSize)).Call(c.Lib.AllocFuncID()).LocalSet(out)
	if err := c.decodeFieldsInto(st.Fields, out, cur, sc, e); err != nil {
		return 0, err
	}
	return out, nil
}

func (c *Codec) copyKey(key uint32, sc runtime.Scratch, e *wasmbin.Emitter) uint32 {
	cp := sc.NextI32()
	e.LocalGet(key).LocalSet(cp)
	return cp
}

func (c *Codec) ensureSlotFresh(cur *cursor, sc runtime.Scratch, e *wasmbin.Emitter) {
	if cur.open {
		return
	}
	cur.buf = sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(cur.buf)
	for w := uint32(0); w < 32; w += 8 {
		e.LocalGet(cur.buf).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	cur.open = true
}

func (c *Codec) ensureSlotLoaded(cur *cursor, sc runtime.Scratch, e *wasmbin.Emitter) {
	if cur.open {
		return
	}
	cur.buf = sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(cur.buf)
	e.LocalGet(cur.key).LocalGet(cur.buf).Call(c.Host.StorageLoadBytes32())
	cur.open = true
}

func (c *Codec) flushSlot(cur *cursor, e *wasmbin.Emitter) {
	if !cur.open {
		return
	}
	e.LocalGet(cur.key).LocalGet(cur.buf).Call(c.Host.StorageCacheBytes32())
	cur.open = false
}

// beginAlignedRegion forces cur onto a fresh slot boundary before a field
// that always starts its own region (an enum, or a handle field): if
// nothing has been placed in the current slot yet, cur.key is already
// that boundary; otherwise the partially filled slot is flushed (on
// encode only — decode never had anything to write) and cur.key advances
// past it.
func (c *Codec) beginAlignedRegion(cur *cursor, doFlush bool, e *wasmbin.Emitter) error {
	if cur.used == 0 {
		return nil
	}
	if doFlush {
		c.flushSlot(cur, e)
	}
	if err := c.advanceSlotKey(cur.key, 1, e); err != nil {
		return err
	}
	cur.used = 0
	cur.open = false
	return nil
}

func (c *Codec) encodeFieldsInto(fields []types.Field, valueLocal uint32, cur *cursor, sc runtime.Scratch, e *wasmbin.Emitter) error {
	for i, f := range fields {
		ptr := sc.NextI32()
		e.LocalGet(valueLocal).Load(wasmbin.OpcodeI32Load, uint32(4*i)).LocalSet(ptr)
		if err := c.encodeOneField(f.Type, ptr, cur, sc, e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) encodeOneField(t types.Type, ptr uint32, cur *cursor, sc runtime.Scratch, e *wasmbin.Emitter) error {
	if isStorageHandle(t) {
		if err := c.beginAlignedRegion(cur, true, e); err != nil {
			return err
		}
		if err := c.writeHandleField(t, cur.key, ptr, sc, e); err != nil {
			return err
		}
		return c.advanceSlotKey(cur.key, 1, e)
	}
	switch t.Kind {
	case types.KindStruct, types.KindGenericStructInstance:
		st, err := resolveStruct(c.Ctx, t)
		if err != nil {
			return err
		}
		return c.encodeFieldsInto(st.Fields, ptr, cur, sc, e)
	case types.KindEnum, types.KindGenericEnumInstance:
		en, err := resolveEnum(c.Ctx, t)
		if err != nil {
			return err
		}
		if err := c.beginAlignedRegion(cur, true, e); err != nil {
			return err
		}
		if err := c.encodeEnumRegion(en, ptr, cur.key, sc, e); err != nil {
			return err
		}
		span := (en.StorageEncodedLen() + 31) / 32
		return c.advanceSlotKey(cur.key, span, e)
	default:
		size := t.StorageFieldSize()
		if cur.used+size > 32 {
			c.flushSlot(cur, e)
			if err := c.advanceSlotKey(cur.key, 1, e); err != nil {
				return err
			}
			cur.used = 0
		}
		c.ensureSlotFresh(cur, sc, e)
		offset := uint32(32 - cur.used - size)
		if err := c.writeScalarField(t, ptr, cur.buf, offset, sc, e); err != nil {
			return err
		}
		cur.used += size
		return nil
	}
}

func (c *Codec) decodeFieldsInto(fields []types.Field, out uint32, cur *cursor, sc runtime.Scratch, e *wasmbin.Emitter) error {
	for i, f := range fields {
		e.LocalGet(out).I32Const(int32(4 * i)).I32Add()
		if err := c.decodeOneField(f.Type, cur, sc, e); err != nil {
			return err
		}
		e.Store(wasmbin.OpcodeI32Store, 0)
	}
	return nil
}

func (c *Codec) decodeOneField(t types.Type, cur *cursor, sc runtime.Scratch, e *wasmbin.Emitter) error {
	if isStorageHandle(t) {
		if err := c.beginAlignedRegion(cur, false, e); err != nil {
			return err
		}
		ptr, err := c.readHandleField(t, cur.key, sc, e)
		if err != nil {
			return err
		}
		if err := c.advanceSlotKey(cur.key, 1, e); err != nil {
			return err
		}
		e.LocalGet(ptr)
		return nil
	}
	switch t.Kind {
	case types.KindStruct, types.KindGenericStructInstance:
		st, err := resolveStruct(c.Ctx, t)
		if err != nil {
			return err
		}
		out := sc.NextI32()
		e.I32Const(int32(st.HeapSize)).Call(c.Lib.AllocFuncID()).LocalSet(out)
		if err := c.decodeFieldsInto(st.Fields, out, cur, sc, e); err != nil {
			return err
		}
		e.LocalGet(out)
		return nil
	case types.KindEnum, types.KindGenericEnumInstance:
		en, err := resolveEnum(c.Ctx, t)
		if err != nil {
			return err
		}
		if err := c.beginAlignedRegion(cur, false, e); err != nil {
			return err
		}
		ptr, err := c.decodeEnumRegion(en, cur.key, sc, e)
		if err != nil {
			return err
		}
		span := (en.StorageEncodedLen() + 31) / 32
		if err := c.advanceSlotKey(cur.key, span, e); err != nil {
			return err
		}
		e.LocalGet(ptr)
		return nil
	default:
		size := t.StorageFieldSize()
		if cur.used+size > 32 {
			if err := c.advanceSlotKey(cur.key, 1, e); err != nil {
				return err
			}
			cur.used = 0
			cur.open = false
		}
		c.ensureSlotLoaded(cur, sc, e)
		offset := uint32(32 - cur.used - size)
		ptr, err := c.readScalarField(t, cur.buf, offset, sc, e)
		if err != nil {
			return err
		}
		cur.used += size
		e.LocalGet(ptr)
		return nil
	}
}

// writeScalarField dereferences a struct field's pointer slot to its
// native value (§3.2, §9: every field is stored as a pointer, including
// scalars) and writes it big-endian into buf at [offset, offset+size).
func (c *Codec) writeScalarField(t types.Type, ptr, buf, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	switch t.Kind {
	case types.KindBool, types.KindU8, types.KindU16, types.KindU32:
		val := sc.NextI32()
		e.LocalGet(ptr).Load(t.LoadKind(), 0).LocalSet(val)
		c.writeScalar32(buf, offset, uint32(t.StorageFieldSize()), val, sc, e)
		return nil
	case types.KindU64:
		val := sc.NextI64()
		e.LocalGet(ptr).Load(wasmbin.OpcodeI64Load, 0).LocalSet(val)
		c.writeScalar64(buf, offset, val, e)
		return nil
	case types.KindU128, types.KindU256, types.KindAddress:
		c.writeHeapWord(ptr, buf, offset, uint32(t.StorageFieldSize()), sc, e)
		return nil
	default:
		return cerr.New(cerr.PhaseStorage, cerr.KindUnsupportedType).
			Detailf("no storage encoding rule for %s", t.Kind).Build()
	}
}

func (c *Codec) readScalarField(t types.Type, buf, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	switch t.Kind {
	case types.KindBool, types.KindU8, types.KindU16, types.KindU32:
		size := uint32(t.StorageFieldSize())
		val := sc.NextI32()
		c.readScalar32(buf, offset, size, val, sc, e)
		cell := sc.NextI32()
		e.I32Const(4).Call(c.Lib.AllocFuncID()).LocalSet(cell)
		e.LocalGet(cell).LocalGet(val).Store(t.StoreKind(), 0)
		return cell, nil
	case types.KindU64:
		val := sc.NextI64()
		c.readScalar64(buf, offset, val, e)
		cell := sc.NextI32()
		e.I32Const(8).Call(c.Lib.AllocFuncID()).LocalSet(cell)
		e.LocalGet(cell).LocalGet(val).Store(wasmbin.OpcodeI64Store, 0)
		return cell, nil
	case types.KindU128, types.KindU256, types.KindAddress:
		return c.readHeapWord(buf, offset, uint32(t.StorageFieldSize()), sc, e)
	default:
		return 0, cerr.New(cerr.PhaseStorage, cerr.KindUnsupportedType).
			Detailf("no storage decoding rule for %s", t.Kind).Build()
	}
}

// writeScalar32 writes a <=4-byte scalar big-endian into buf at
// [offset,offset+size). A single byte is endian-neutral; two bytes swap
// through a scratch local; four bytes reuse the runtime's ByteSwap32.
func (c *Codec) writeScalar32(buf, offset, size, val uint32, sc runtime.Scratch, e *wasmbin.Emitter) {
	switch size {
	case 1:
		e.LocalGet(buf).LocalGet(val).Store(wasmbin.OpcodeI32Store8, offset)
	case 2:
		swapped := sc.NextI32()
		e.LocalGet(val).I32Const(0xff).I32And().I32Const(8).I32Shl()
		e.LocalGet(val).I32Const(8).I32ShrU().I32Const(0xff).I32And()
		e.I32Or().LocalSet(swapped)
		e.LocalGet(buf).LocalGet(swapped).Store(wasmbin.OpcodeI32Store16, offset)
	default:
		e.LocalGet(buf).LocalGet(val).Call(c.Lib.ByteSwap32()).Store(wasmbin.OpcodeI32Store, offset)
	}
}

func (c *Codec) readScalar32(buf, offset, size, dst uint32, sc runtime.Scratch, e *wasmbin.Emitter) {
	switch size {
	case 1:
		e.LocalGet(buf).Load(wasmbin.OpcodeI32Load8U, offset).LocalSet(dst)
	case 2:
		raw := sc.NextI32()
		e.LocalGet(buf).Load(wasmbin.OpcodeI32Load16U, offset).LocalSet(raw)
		e.LocalGet(raw).I32Const(0xff).I32And().I32Const(8).I32Shl()
		e.LocalGet(raw).I32Const(8).I32ShrU().I32Const(0xff).I32And()
		e.I32Or().LocalSet(dst)
	default:
		e.LocalGet(buf).Load(wasmbin.OpcodeI32Load, offset).Call(c.Lib.ByteSwap32()).LocalSet(dst)
	}
}

func (c *Codec) writeScalar64(buf, offset, val uint32, e *wasmbin.Emitter) {
	e.LocalGet(buf).LocalGet(val).Call(c.Lib.ByteSwap64()).Store(wasmbin.OpcodeI64Store, offset)
}

func (c *Codec) readScalar64(buf, offset, dst uint32, e *wasmbin.Emitter) {
	e.LocalGet(buf).Load(wasmbin.OpcodeI64Load, offset).Call(c.Lib.ByteSwap64()).LocalSet(dst)
}

// writeHeapWord byte-swaps a u128/u256/address's little-endian internal
// bytes (ptr already points directly at them, §9) into big-endian storage
// bytes at buf[offset:offset+size], working over a scratch copy so the
// original heap value is left untouched for any later read.
func (c *Codec) writeHeapWord(ptr, buf, offset, size uint32, sc runtime.Scratch, e *wasmbin.Emitter) {
	tmp := sc.NextI32()
	e.LocalGet(ptr).LocalSet(tmp)
	swap := c.Lib.ByteSwap256()
	if size == 16 {
		swap = c.Lib.ByteSwap128()
	}
	e.LocalGet(tmp).Call(swap)
	for off := uint32(0); off+8 <= size; off += 8 {
		e.LocalGet(buf)
		e.LocalGet(tmp).Load(wasmbin.OpcodeI64Load, off)
		e.Store(wasmbin.OpcodeI64Store, offset+off)
	}
}

func (c *Codec) readHeapWord(buf, offset, size uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	cell := sc.NextI32()
	e.I32Const(int32(size)).Call(c.Lib.AllocFuncID()).LocalSet(cell)
	for off := uint32(0); off+8 <= size; off += 8 {
		e.LocalGet(cell)
		e.LocalGet(buf).Load(wasmbin.OpcodeI64Load, offset+off)
		e.Store(wasmbin.OpcodeI64Store, off)
	}
	swap := c.Lib.ByteSwap256()
	if size == 16 {
		swap = c.Lib.ByteSwap128()
	}
	e.LocalGet(cell).Call(swap)
	return cell, nil
}

// writeScalarSlot writes a single already-in-hand value (the bare scalar
// for narrow/u64 kinds, the heap pointer itself for u128/u256/address —
// the same convention internal/abi's vector codec uses) into its own
// fresh 32-byte slot at key, right-aligned like any other scalar field.
func (c *Codec) writeScalarSlot(elem types.Type, val, key uint32, sc runtime.Scratch, e *wasmbin.Emitter) {
	buf := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(buf)
	for w := uint32(0); w < 32; w += 8 {
		e.LocalGet(buf).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	size := uint32(elem.StorageFieldSize())
	switch elem.Kind {
	case types.KindU64:
		c.writeScalar64(buf, 32-size, val, e)
	case types.KindU128, types.KindU256, types.KindAddress:
		c.writeHeapWord(val, buf, 32-size, size, sc, e)
	default:
		c.writeScalar32(buf, 32-size, size, val, sc, e)
	}
	e.LocalGet(key).LocalGet(buf).Call(c.Host.StorageCacheBytes32())
}

func (c *Codec) readScalarSlot(elem types.Type, key uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	buf := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(buf)
	e.LocalGet(key).LocalGet(buf).Call(c.Host.StorageLoadBytes32())
	size := uint32(elem.StorageFieldSize())
	switch elem.Kind {
	case types.KindU64:
		val := sc.NextI64()
		c.readScalar64(buf, 32-size, val, e)
		return val, nil
	case types.KindU128, types.KindU256, types.KindAddress:
		return c.readHeapWord(buf, 32-size, size, sc, e)
	default:
		val := sc.NextI32()
		c.readScalar32(buf, 32-size, size, val, sc, e)
		return val, nil
	}
}

// writeHandleField writes a handle field's header slot (and, for vectors
// and byte buffers, its payload in derived child slots). Table and
// DynamicField-tagged structs carry no enumerable state of their own —
// their children are reached through object.go's DynamicFieldSlot,
// keyed by name, not by position — so their
// header slot is simply zeroed.
func (c *Codec) writeHandleField(t types.Type, key, ptr uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	switch {
	case t.Kind == types.KindVector:
		return c.writeVectorField(t, key, ptr, sc, e)
	case t.VMTag == bytecode.VMTagString || t.VMTag == bytecode.VMTagBytes:
		return c.writeBytesField(key, ptr, sc, e)
	default:
		zero := sc.NextI32()
		e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(zero)
		for w := uint32(0); w < 32; w += 8 {
			e.LocalGet(zero).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
		}
		e.LocalGet(key).LocalGet(zero).Call(c.Host.StorageCacheBytes32())
		return nil
	}
}

func (c *Codec) readHandleField(t types.Type, key uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	switch {
	case t.Kind == types.KindVector:
		return c.readVectorField(t, key, sc, e)
	case t.VMTag == bytecode.VMTagString || t.VMTag == bytecode.VMTagBytes:
		return c.readBytesField(key, sc, e)
	default:
		cell := sc.NextI32()
		e.I32Const(4).Call(c.Lib.AllocFuncID()).LocalSet(cell)
		e.LocalGet(cell).I32Const(0).Store(wasmbin.OpcodeI32Store, 0)
		return cell, nil
	}
}

// writeVectorField stores the vector's length in key's header slot
// (mirroring a Solidity dynamic array) and each element in its own
// keccak-derived child slot at deriveChildSlot(key, index). Supported
// element kinds are the same statically-sized set internal/abi's vector
// ABI codec accepts — no vector-of-vector, vector-of-string, or
// vector-of-struct — since no object field in the supported surface
// needs more.
func (c *Codec) writeVectorField(t types.Type, key, vec uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	elem := *t.Elem
	if isStorageHandle(elem) || elem.Kind == types.KindStruct || elem.Kind == types.KindGenericStructInstance ||
		elem.Kind == types.KindEnum || elem.Kind == types.KindGenericEnumInstance {
		return cerr.New(cerr.PhaseStorage, cerr.KindDynamicTypeInStorage).
			Detailf("vector of %s is not supported in storage position", elem.Kind).Build()
	}
	length := sc.NextI32()
	e.LocalGet(vec).Call(c.Lib.VectorLength()).LocalSet(length)

	header := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(header)
	for w := uint32(0); w < 32; w += 8 {
		e.LocalGet(header).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	e.LocalGet(header).LocalGet(length).Call(c.Lib.ByteSwap32()).Store(wasmbin.OpcodeI32Store, 28)
	e.LocalGet(key).LocalGet(header).Call(c.Host.StorageCacheBytes32())

	elemWidth := vectorSlotWidth(elem)
	idx := sc.NextI32()
	addr := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(length).I32GeU()
	e.BrIf(1)

	e.LocalGet(vec).LocalGet(idx).I32Const(int32(elemWidth)).Call(c.Lib.VectorElemPtr()).LocalSet(addr)
	var elemVal uint32
	if elemWidth == 8 {
		elemVal = sc.NextI64()
		e.LocalGet(addr).Load(wasmbin.OpcodeI64Load, 0).LocalSet(elemVal)
	} else {
		elemVal = sc.NextI32()
		e.LocalGet(addr).Load(wasmbin.OpcodeI32Load, 0).LocalSet(elemVal)
	}
	childKey := c.deriveChildSlot(key, idx, sc, e)
	c.writeScalarSlot(elem, elemVal, childKey, sc, e)

	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()
	return nil
}

func (c *Codec) readVectorField(t types.Type, key uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	elem := *t.Elem
	if isStorageHandle(elem) || elem.Kind == types.KindStruct || elem.Kind == types.KindGenericStructInstance ||
		elem.Kind == types.KindEnum || elem.Kind == types.KindGenericEnumInstance {
		return 0, cerr.New(cerr.PhaseStorage, cerr.KindDynamicTypeInStorage).
			Detailf("vector of %s is not supported in storage position", elem.Kind).Build()
	}
	header := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(header)
	e.LocalGet(key).LocalGet(header).Call(c.Host.StorageLoadBytes32())

	length := sc.NextI32()
	e.LocalGet(header).Load(wasmbin.OpcodeI32Load, 28).Call(c.Lib.ByteSwap32()).LocalSet(length)

	elemWidth := vectorSlotWidth(elem)
	vec := sc.NextI32()
	e.I32Const(int32(elemWidth)).Call(c.Lib.VectorAlloc()).LocalSet(vec)

	idx := sc.NextI32()
	slot := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(length).I32GeU()
	e.BrIf(1)

	e.LocalGet(vec).I32Const(int32(elemWidth)).Call(c.Lib.VectorPush()).LocalSet(vec)
	childKey := c.deriveChildSlot(key, idx, sc, e)
	val, err := c.readScalarSlot(elem, childKey, sc, e)
	if err != nil {
		return 0, err
	}
	e.LocalGet(vec).LocalGet(idx).I32Const(int32(elemWidth)).Call(c.Lib.VectorElemPtr()).LocalSet(slot)
	e.LocalGet(slot).LocalGet(val)
	if elemWidth == 8 {
		e.Store(wasmbin.OpcodeI64Store, 0)
	} else {
		e.Store(wasmbin.OpcodeI32Store, 0)
	}

	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()

	e.LocalGet(vec)
	return vec, nil
}

// writeBytesField stores a Move String/vector<u8>'s length in key's
// header slot and its raw bytes packed 32 to a child slot, each child
// slot reached through deriveChildSlot(key, chunkIndex) — the same
// keying scheme writeVectorField uses for elements, generalized from
// per-element to per-32-byte-chunk.
func (c *Codec) writeBytesField(key, strPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	length := sc.NextI32()
	e.LocalGet(strPtr).Load(wasmbin.OpcodeI32Load, 0).LocalSet(length)

	header := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(header)
	for w := uint32(0); w < 32; w += 8 {
		e.LocalGet(header).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	e.LocalGet(header).LocalGet(length).Call(c.Lib.ByteSwap32()).Store(wasmbin.OpcodeI32Store, 28)
	e.LocalGet(key).LocalGet(header).Call(c.Host.StorageCacheBytes32())

	chunkCount := sc.NextI32()
	e.LocalGet(length).I32Const(31).I32Add().I32Const(5).I32ShrU().LocalSet(chunkCount)

	idx := sc.NextI32()
	chunkBuf := sc.NextI32()
	remaining := sc.NextI32()
	b := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(chunkCount).I32GeU()
	e.BrIf(1)

	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(chunkBuf)
	for w := uint32(0); w < 32; w += 8 {
		e.LocalGet(chunkBuf).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	e.LocalGet(length).LocalGet(idx).I32Const(32).I32Mul().I32Sub().LocalSet(remaining)

	e.I32Const(0).LocalSet(b)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(b).I32Const(32).I32GeU()
	e.BrIf(1)
	e.LocalGet(b).LocalGet(remaining).I32GeU()
	e.BrIf(1)
	e.LocalGet(chunkBuf).LocalGet(b).I32Add()
	e.LocalGet(strPtr).I32Const(4).I32Add().LocalGet(idx).I32Const(32).I32Mul().I32Add().LocalGet(b).I32Add()
	e.Load(wasmbin.OpcodeI32Load8U, 0)
	e.Store(wasmbin.OpcodeI32Store8, 0)
	e.LocalGet(b).I32Const(1).I32Add().LocalSet(b)
	e.Br(0)
	e.End()
	e.End()

	childKey := c.deriveChildSlot(key, idx, sc, e)
	e.LocalGet(childKey).LocalGet(chunkBuf).Call(c.Host.StorageCacheBytes32())

	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()
	return nil
}

func (c *Codec) readBytesField(key uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	header := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(header)
	e.LocalGet(key).LocalGet(header).Call(c.Host.StorageLoadBytes32())

	length := sc.NextI32()
	e.LocalGet(header).Load(wasmbin.OpcodeI32Load, 28).Call(c.Lib.ByteSwap32()).LocalSet(length)

	dst := sc.NextI32()
	e.LocalGet(length).I32Const(4).I32Add().Call(c.Lib.AllocFuncID()).LocalSet(dst)
	e.LocalGet(dst).LocalGet(length).Store(wasmbin.OpcodeI32Store, 0)

	chunkCount := sc.NextI32()
	e.LocalGet(length).I32Const(31).I32Add().I32Const(5).I32ShrU().LocalSet(chunkCount)

	idx := sc.NextI32()
	chunkBuf := sc.NextI32()
	remaining := sc.NextI32()
	b := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(chunkCount).I32GeU()
	e.BrIf(1)

	childKey := c.deriveChildSlot(key, idx, sc, e)
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(chunkBuf)
	e.LocalGet(childKey).LocalGet(chunkBuf).Call(c.Host.StorageLoadBytes32())
	e.LocalGet(length).LocalGet(idx).I32Const(32).I32Mul().I32Sub().LocalSet(remaining)

	e.I32Const(0).LocalSet(b)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(b).I32Const(32).I32GeU()
	e.BrIf(1)
	e.LocalGet(b).LocalGet(remaining).I32GeU()
	e.BrIf(1)
	e.LocalGet(dst).I32Const(4).I32Add().LocalGet(idx).I32Const(32).I32Mul().I32Add().LocalGet(b).I32Add()
	e.LocalGet(chunkBuf).LocalGet(b).I32Add()
	e.Load(wasmbin.OpcodeI32Load8U, 0)
	e.Store(wasmbin.OpcodeI32Store8, 0)
	e.LocalGet(b).I32Const(1).I32Add().LocalSet(b)
	e.Br(0)
	e.End()
	e.End()

	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()

	e.LocalGet(dst)
	return dst, nil
}

func resolveStruct(ctx *types.Context, t types.Type) (*types.Struct, error) {
	if t.Kind == types.KindGenericStructInstance {
		return ctx.InternGenericStruct(t.ModuleID, t.DefIndex, t.TypeArgs)
	}
	return ctx.ResolveStruct(t.ModuleID, t.DefIndex)
}

func resolveEnum(ctx *types.Context, t types.Type) (*types.Enum, error) {
	if t.Kind == types.KindGenericEnumInstance {
		return ctx.InternGenericEnum(t.ModuleID, t.DefIndex, t.TypeArgs)
	}
	return ctx.ResolveEnum(t.ModuleID, t.DefIndex)
}
