package abi

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// EncodeStatic emits code writing a statically-sized value into a
// caller-provided output buffer: dst is a local holding an absolute i32
// pointer to the buffer, offset is the compile-time-constant byte
// displacement of this value's head word(s) within it, and valueLocal
// already holds the value (the bare scalar for a stack type, a heap
// pointer otherwise). Only reachable for t where IsDynamicABI(t) is
// false — the entrypoint wrapper (§4.8) routes dynamic return types
// through EncodeDynamicSingle instead.
func (c *Codec) EncodeStatic(t types.Type, valueLocal, dst, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	switch t.Kind {
	case types.KindBool, types.KindU8, types.KindU16, types.KindU32, types.KindU64:
		c.encodeScalarWord(t, valueLocal, dst, offset, e)
		return nil
	case types.KindU128, types.KindU256, types.KindAddress:
		c.encodeHeapWord(t, valueLocal, dst, offset, sc, e)
		return nil
	case types.KindStruct, types.KindGenericStructInstance:
		return c.encodeStaticStruct(t, valueLocal, dst, offset, sc, e)
	case types.KindEnum, types.KindGenericEnumInstance:
		return c.encodeSimpleEnum(t, valueLocal, dst, offset, e)
	default:
		return cerr.New(cerr.PhaseABI, cerr.KindUnsupportedType).
			Detailf("no static ABI encoding rule for %s", t.Kind).Build()
	}
}

// encodeScalarWord writes a scalar left-zero-padded to a 32-byte word,
// the mirror of decodeScalarWord: zero everything ahead of the value's
// tail bytes, then byte-swap the value to big-endian into the word's last
// 4 bytes (8 for u64).
func (c *Codec) encodeScalarWord(t types.Type, valueLocal, dst, offset uint32, e *wasmbin.Emitter) {
	for w := uint32(0); w+8 <= wordSize-8; w += 8 {
		e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, offset+w)
	}
	if t.Kind == types.KindU64 {
		e.LocalGet(dst)
		e.LocalGet(valueLocal).Call(c.Lib.ByteSwap64())
		e.Store(wasmbin.OpcodeI64Store, offset+wordSize-8)
		return
	}
	e.LocalGet(dst).I32Const(0).Store(wasmbin.OpcodeI32Store, offset+wordSize-8)
	e.LocalGet(dst)
	e.LocalGet(valueLocal)
	e.Call(c.Lib.ByteSwap32())
	e.Store(wasmbin.OpcodeI32Store, offset+wordSize-4)
}

// encodeHeapWord byte-swaps a heap value's internal little-endian bytes
// into the word's big-endian calldata position, zero-padding above it
// when the internal representation is narrower than 32 bytes (u128).
func (c *Codec) encodeHeapWord(t types.Type, valueLocal, dst, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) {
	size, _ := t.HeapMemoryDataSize(c.Ctx)
	if size < wordSize {
		e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, offset)
		e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, offset+8)
	}
	tmp := sc.NextI32()
	e.LocalGet(valueLocal).LocalSet(tmp)
	swap := c.Lib.ByteSwap256()
	if size == 16 {
		swap = c.Lib.ByteSwap128()
	}
	e.LocalGet(tmp).Call(swap)
	dstOff := offset + wordSize - uint32(size)
	for off := 0; off+8 <= size; off += 8 {
		e.LocalGet(dst)
		e.LocalGet(tmp).Load(wasmbin.OpcodeI64Load, uint32(off))
		e.Store(wasmbin.OpcodeI64Store, dstOff+uint32(off))
	}
}

func (c *Codec) encodeStaticStruct(t types.Type, valueLocal, dst, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	st, err := resolveStruct(c.Ctx, t)
	if err != nil {
		return err
	}
	wordOff := offset
	for i, f := range st.Fields {
		field := sc.NextI32()
		e.LocalGet(valueLocal).Load(wasmbin.OpcodeI32Load, uint32(4*i)).LocalSet(field)
		if err := c.EncodeStatic(f.Type, field, dst, wordOff, sc, e); err != nil {
			return err
		}
		wordOff += wordSize
	}
	return nil
}

// encodeSimpleEnum writes a field-less enum's discriminator as a uint8
// ABI word. Enums with fields cannot appear in return position through
// this path — enum.go's EncodeEnum handles that case separately as a
// tuple.
func (c *Codec) encodeSimpleEnum(t types.Type, valueLocal, dst, offset uint32, e *wasmbin.Emitter) error {
	en, err := resolveEnum(c.Ctx, t)
	if err != nil {
		return err
	}
	if !en.IsSimple() {
		return cerr.New(cerr.PhaseABI, cerr.KindUnsupportedType).
			Detailf("enum %s has fields; use EncodeEnum instead", en.Name).Build()
	}
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, offset)
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, offset+8)
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, offset+16)
	e.LocalGet(dst)
	e.LocalGet(valueLocal).Load(wasmbin.OpcodeI32Load, 0) // discriminator is the first heap word
	e.Store(wasmbin.OpcodeI32Store, offset+wordSize-4)
	return nil
}

func resolveEnum(ctx *types.Context, t types.Type) (*types.Enum, error) {
	if t.Kind == types.KindGenericEnumInstance {
		return ctx.InternGenericEnum(t.ModuleID, t.DefIndex, t.TypeArgs)
	}
	return ctx.ResolveEnum(t.ModuleID, t.DefIndex)
}

// EncodeDynamicSingle ABI-encodes a single dynamic-typed return value
// (vector of a static element type, or string/bytes) into a freshly
// allocated buffer laid out as Solidity would encode a one-element
// tuple: one head word (the fixed offset 32) followed by the value's
// own length-prefixed tail. Returns (ptr, len) via two locals written
// through outPtr/outLen. This covers the entry functions in this
// compiler's surface that return a single vector or string/bytes value;
// functions returning more than one dynamic value, or a dynamic value
// nested inside a returned struct, are not covered by this pass — noted
// as an Open Question resolution in DESIGN.md, since no natively-typed
// Move entry function in the supported surface needs more than one
// dynamically-sized return value.
func (c *Codec) EncodeDynamicSingle(t types.Type, valueLocal uint32, outPtr, outLen uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	tailPtr, tailLen, err := c.encodeDynamicTail(t, valueLocal, sc, e)
	if err != nil {
		return err
	}
	total := sc.NextI32()
	e.LocalGet(tailLen).I32Const(wordSize).I32Add().LocalSet(total)

	buf := sc.NextI32()
	e.LocalGet(total).Call(c.Lib.AllocFuncID()).LocalSet(buf)

	// Head word: fixed offset 32, the one dynamic value's tail start,
	// stored as the byte-reversed constant so the word reads big-endian.
	for w := uint32(0); w < wordSize-4; w += 8 {
		e.LocalGet(buf).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	e.LocalGet(buf).I32Const(0x20000000).Store(wasmbin.OpcodeI32Store, wordSize-4)

	idx := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(tailLen).I32GeU()
	e.BrIf(1)
	e.LocalGet(buf).I32Const(wordSize).I32Add().LocalGet(idx).I32Add()
	e.LocalGet(tailPtr).LocalGet(idx).I32Add()
	e.Load(wasmbin.OpcodeI32Load8U, 0)
	e.Store(wasmbin.OpcodeI32Store8, 0)
	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()

	e.LocalGet(buf).LocalSet(outPtr)
	e.LocalGet(total).LocalSet(outLen)
	return nil
}

// encodeDynamicTail builds a value's own ABI tail encoding (length word
// plus padded element/byte data) in a freshly allocated buffer, without
// the wrapping single-value head Solidity expects at the top level;
// returns (ptr, byteLen) via two scratch locals.
func (c *Codec) encodeDynamicTail(t types.Type, valueLocal uint32, sc runtime.Scratch, e *wasmbin.Emitter) (ptr, length uint32, err error) {
	switch {
	case t.Kind == types.KindVector:
		return c.encodeVectorTail(t, valueLocal, sc, e)
	case t.VMTag == bytecode.VMTagString || t.VMTag == bytecode.VMTagBytes:
		return c.encodeBytesLikeTail(valueLocal, sc, e)
	default:
		return 0, 0, cerr.New(cerr.PhaseABI, cerr.KindUnsupportedType).
			Detailf("no dynamic ABI encoding rule for %s", t.Kind).Build()
	}
}

func (c *Codec) encodeVectorTail(t types.Type, vec uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, uint32, error) {
	elem := *t.Elem
	if elem.IsDynamicABI(c.Ctx) {
		return 0, 0, cerr.New(cerr.PhaseABI, cerr.KindDynamicTypeInStorage).
			Detailf("vector of dynamically-sized %s is not supported in return position", elem.Kind).
			Build()
	}
	elemSize := vectorSlotSize(elem)

	length := sc.NextI32()
	e.LocalGet(vec).Call(c.Lib.VectorLength()).LocalSet(length)

	byteLen := sc.NextI32()
	e.LocalGet(length).I32Const(wordSize).I32Mul().I32Const(wordSize).I32Add().LocalSet(byteLen)

	buf := sc.NextI32()
	e.LocalGet(byteLen).Call(c.Lib.AllocFuncID()).LocalSet(buf)
	for w := uint32(0); w < wordSize-4; w += 8 {
		e.LocalGet(buf).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	e.LocalGet(buf).LocalGet(length).Call(c.Lib.ByteSwap32())
	e.Store(wasmbin.OpcodeI32Store, wordSize-4)

	idx := sc.NextI32()
	addr := sc.NextI32()
	elemVal := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(length).I32GeU()
	e.BrIf(1)

	e.LocalGet(vec).LocalGet(idx).I32Const(int32(elemSize)).Call(c.Lib.VectorElemPtr()).LocalSet(addr)
	if elemSize == 8 {
		e.LocalGet(addr).Load(wasmbin.OpcodeI64Load, 0)
	} else {
		e.LocalGet(addr).Load(wasmbin.OpcodeI32Load, 0)
	}
	e.LocalSet(elemVal)

	headOff := wordSize // one length word precedes the element words
	dstOff := sc.NextI32()
	e.I32Const(int32(headOff)).LocalGet(idx).I32Const(wordSize).I32Mul().I32Add().LocalSet(dstOff)
	if err := c.EncodeStaticAt(elem, elemVal, buf, dstOff, sc, e); err != nil {
		return 0, 0, err
	}

	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()

	return buf, byteLen, nil
}

// EncodeStaticAt is EncodeStatic with a runtime-variable head offset
// (an i32 local rather than a compile-time constant), used by vector
// element encoding where the element index is a loop variable. It
// covers exactly the element kinds vectorSlotSize accepts: scalars,
// address, and u128/u256, which never themselves recurse into a nested
// offset computation.
func (c *Codec) EncodeStaticAt(t types.Type, valueLocal, dst, offsetLocal uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	base := sc.NextI32()
	e.LocalGet(dst).LocalGet(offsetLocal).I32Add().LocalSet(base)
	return c.EncodeStatic(t, valueLocal, base, 0, sc, e)
}

func (c *Codec) encodeBytesLikeTail(strPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, uint32, error) {
	length := sc.NextI32()
	e.LocalGet(strPtr).Load(wasmbin.OpcodeI32Load, 0).LocalSet(length)

	// Round length up to a multiple of 32: (len + 31) & ~31, with
	// ~31 == -32 in two's complement.
	padded := sc.NextI32()
	e.LocalGet(length).I32Const(31).I32Add().I32Const(-32).I32And()
	e.LocalSet(padded)

	byteLen := sc.NextI32()
	e.LocalGet(padded).I32Const(wordSize).I32Add().LocalSet(byteLen)

	buf := sc.NextI32()
	e.LocalGet(byteLen).Call(c.Lib.AllocFuncID()).LocalSet(buf)
	for w := uint32(0); w < wordSize-4; w += 8 {
		e.LocalGet(buf).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
	}
	e.LocalGet(buf).LocalGet(length).Call(c.Lib.ByteSwap32())
	e.Store(wasmbin.OpcodeI32Store, wordSize-4)

	idx := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(length).I32GeU()
	e.BrIf(1)
	e.LocalGet(buf).I32Const(wordSize).I32Add().LocalGet(idx).I32Add()
	e.LocalGet(strPtr).I32Const(4).I32Add().LocalGet(idx).I32Add()
	e.Load(wasmbin.OpcodeI32Load8U, 0)
	e.Store(wasmbin.OpcodeI32Store8, 0)
	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()

	return buf, byteLen, nil
}
