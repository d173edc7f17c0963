package abi

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// wordSize is the Solidity ABI's fixed word width. Every static scalar —
// including u128, which only occupies 16 bytes of intermediate-type
// heap storage — still spends one full 32-byte word in calldata,
// zero-padded on the high side.
const wordSize = 32

// Codec lowers values between their in-memory intermediate-type
// representation and Solidity ABI calldata/return words. Ctx/Lib are
// threaded through each call since decoding a struct field may need to
// resolve further struct layouts or link further runtime helpers (byte
// swap, vector alloc).
type Codec struct {
	Ctx *types.Context
	Lib *runtime.Library
}

// Decode emits code reading the ABI value for type t whose head slot
// begins at `base + offset` (base is a local already holding an
// absolute i32 pointer into the decoded calldata region; offset is a
// compile-time-constant byte displacement within that region), leaving
// the intermediate-type representation on the operand stack — an i32
// pointer for heap types, the bare scalar for stack types. Dynamic types
// (vector, string/bytes, or a struct with any dynamic field) read their
// head slot as a relative offset into the same region's tail area. sc
// hands out scratch locals the decode may need beyond the value it
// leaves on the stack; the caller (the entrypoint wrapper generator,
// §4.8) supplies one scoped to the enclosing function.
func (c *Codec) Decode(t types.Type, base, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	if t.IsDynamicABI(c.Ctx) {
		return c.decodeDynamic(t, base, offset, sc, e)
	}
	switch t.Kind {
	case types.KindBool, types.KindU8, types.KindU16, types.KindU32, types.KindU64:
		c.decodeScalarWord(t, base, offset, e)
		return nil
	case types.KindU128, types.KindU256, types.KindAddress:
		c.decodeHeapWord(t, base, offset, sc, e)
		return nil
	case types.KindStruct, types.KindGenericStructInstance:
		return c.decodeStaticStruct(t, base, offset, sc, e)
	default:
		return cerr.New(cerr.PhaseABI, cerr.KindUnsupportedType).
			Detailf("no ABI decoding rule for %s", t.Kind).Build()
	}
}

// decodeScalarWord reads a right-aligned scalar out of a 32-byte word.
// Words are big-endian per the ABI; WASM loads/stores are little-endian,
// so the narrow load at the word's tail end followed by a byte-swap
// recovers the native-order value.
func (c *Codec) decodeScalarWord(t types.Type, base, offset uint32, e *wasmbin.Emitter) {
	if t.Kind == types.KindU64 {
		e.LocalGet(base).Load(wasmbin.OpcodeI64Load, offset+wordSize-8)
		e.Call(c.Lib.ByteSwap64())
		return
	}
	e.LocalGet(base)
	e.Load(wasmbin.OpcodeI32Load, offset+wordSize-4)
	e.Call(c.Lib.ByteSwap32())
}

// decodeHeapWord copies a whole 32-byte ABI word's value bytes into a
// freshly allocated heap cell sized for t's internal representation,
// then byte-swaps it in place (u128/u256/address are stored internally
// little-endian, per §3.1, while ABI words are big-endian).
func (c *Codec) decodeHeapWord(t types.Type, base, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) {
	size, _ := t.HeapMemoryDataSize(c.Ctx)
	srcOff := offset + wordSize - uint32(size)
	dst := sc.NextI32()

	e.I32Const(int32(size)).Call(c.Lib.AllocFuncID()).LocalSet(dst)
	for off := 0; off+8 <= size; off += 8 {
		e.LocalGet(dst)
		e.LocalGet(base).Load(wasmbin.OpcodeI64Load, srcOff+uint32(off))
		e.Store(wasmbin.OpcodeI64Store, uint32(off))
	}
	e.LocalGet(dst)
	if size == 16 {
		e.Call(c.Lib.ByteSwap128())
	} else {
		e.Call(c.Lib.ByteSwap256())
	}
	e.LocalGet(dst)
}

// readValidatedU32Word rejects a word whose upper 28 bytes are nonzero
// (§4.4's pointer-width validation) before reading its last 4 bytes as a
// big-endian u32, leaving the native-order value on the stack.
func (c *Codec) readValidatedU32Word(wordAddr uint32, sc runtime.Scratch, e *wasmbin.Emitter) {
	c.CheckPointerWidth(wordAddr, e)
	e.LocalGet(wordAddr).Load(wasmbin.OpcodeI32Load, wordSize-4)
	e.Call(c.Lib.ByteSwap32())
}

// decodeDynamic reads the head slot as a big-endian u32 offset (upper 28
// bytes zero) relative to `base`, landing on the region's tail area
// where the dynamic value's own length-prefixed encoding begins.
func (c *Codec) decodeDynamic(t types.Type, base, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	wordAddr := sc.NextI32()
	e.LocalGet(base).I32Const(int32(offset)).I32Add().LocalSet(wordAddr)

	tailPtr := sc.NextI32()
	c.readValidatedU32Word(wordAddr, sc, e)
	e.LocalGet(base).I32Add()
	e.LocalSet(tailPtr)

	switch {
	case t.Kind == types.KindVector:
		return c.decodeVector(t, tailPtr, sc, e)
	case t.VMTag == bytecode.VMTagString || t.VMTag == bytecode.VMTagBytes:
		c.decodeBytesLike(tailPtr, sc, e)
		return nil
	case t.Kind == types.KindStruct || t.Kind == types.KindGenericStructInstance:
		return c.decodeDynamicStruct(t, tailPtr, sc, e)
	default:
		return cerr.New(cerr.PhaseABI, cerr.KindUnsupportedType).
			Detailf("no dynamic ABI decoding rule for %s", t.Kind).Build()
	}
}

// decodeVector reads a length-prefixed array of statically-sized
// elements starting at the i32 local tailPtr: a length word followed by
// one word per element. This compiler's supported vector<T> ABI surface
// is scalars, addresses, and fixed-size structs — no vector-of-vector or
// vector-of-string appears in any entry-function signature this
// compiler accepts — so only the static-element path is implemented;
// recorded as an Open Question resolution in DESIGN.md.
func (c *Codec) decodeVector(t types.Type, tailPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	elem := *t.Elem
	if elem.IsDynamicABI(c.Ctx) {
		return cerr.New(cerr.PhaseABI, cerr.KindDynamicTypeInStorage).
			Detailf("vector of dynamically-sized %s is not supported in calldata position", elem.Kind).
			Build()
	}

	length := sc.NextI32()
	c.readValidatedU32Word(tailPtr, sc, e)
	e.LocalSet(length)

	elemSize := vectorSlotSize(elem)
	vec := sc.NextI32()
	e.I32Const(int32(elemSize)).Call(c.Lib.VectorAlloc())
	e.LocalSet(vec)

	// Each element's head word lives at tailPtr + wordSize*(1+idx) (one
	// length word precedes the elements). idx is a runtime loop
	// variable, so its address can't be folded into Decode's
	// compile-time-constant offset parameter; instead compute the
	// absolute element address into its own local each iteration and
	// hand that to Decode as `base` with offset 0.
	elemHead := sc.NextI32()
	slot := sc.NextI32()
	idx := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(length).I32GeU()
	e.BrIf(1)

	e.LocalGet(tailPtr)
	e.I32Const(wordSize).LocalGet(idx).I32Const(wordSize).I32Mul().I32Add()
	e.I32Add().LocalSet(elemHead)

	e.LocalGet(vec).I32Const(int32(elemSize)).Call(c.Lib.VectorPush()).LocalSet(vec)
	e.LocalGet(vec).LocalGet(idx).I32Const(int32(elemSize)).Call(c.Lib.VectorElemPtr()).LocalSet(slot)
	e.LocalGet(slot)
	if err := c.Decode(elem, elemHead, 0, sc, e); err != nil {
		return err
	}
	if elemSize == 8 {
		e.Store(wasmbin.OpcodeI64Store, 0)
	} else {
		e.Store(wasmbin.OpcodeI32Store, 0)
	}

	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()

	e.LocalGet(vec)
	return nil
}

// vectorSlotSize returns the per-element byte width a vector's backing
// buffer reserves: 8 for u64 (stored as a native i64 stack slot), 4 for
// every other stack-width scalar or heap pointer, matching §4.3's vector
// layout assumption of a single WASM value per slot.
func vectorSlotSize(elem types.Type) int {
	if elem.Kind == types.KindU64 {
		return 8
	}
	return 4
}

// decodeBytesLike reads a Move-native String/vector<u8> (ABI "bytes"/
// "string") from tailPtr: a length word followed by the raw bytes,
// right-padded to a word boundary in calldata but stored internally as
// a plain [length][bytes...] buffer with no padding.
func (c *Codec) decodeBytesLike(tailPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) {
	length := sc.NextI32()
	c.readValidatedU32Word(tailPtr, sc, e)
	e.LocalSet(length)

	dst := sc.NextI32()
	e.LocalGet(length).I32Const(4).I32Add().Call(c.Lib.AllocFuncID()).LocalSet(dst)
	e.LocalGet(dst).LocalGet(length).Store(wasmbin.OpcodeI32Store, 0)

	idx := sc.NextI32()
	e.I32Const(0).LocalSet(idx)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	e.LocalGet(idx).LocalGet(length).I32GeU()
	e.BrIf(1)
	e.LocalGet(dst).LocalGet(idx).I32Add().I32Const(4).I32Add()
	e.LocalGet(tailPtr).I32Const(wordSize).I32Add().LocalGet(idx).I32Add()
	e.Load(wasmbin.OpcodeI32Load8U, 0)
	e.Store(wasmbin.OpcodeI32Store8, 0)
	e.LocalGet(idx).I32Const(1).I32Add().LocalSet(idx)
	e.Br(0)
	e.End()
	e.End()

	e.LocalGet(dst)
}

// resolveStruct dispatches a struct-kinded Type to the right Context
// lookup depending on whether it still carries unresolved generic type
// arguments (KindGenericStructInstance) or is already concrete
// (KindStruct) — mirroring internal/types' own mustStruct helper, which
// is unexported.
func resolveStruct(ctx *types.Context, t types.Type) (*types.Struct, error) {
	if t.Kind == types.KindGenericStructInstance {
		return ctx.InternGenericStruct(t.ModuleID, t.DefIndex, t.TypeArgs)
	}
	return ctx.ResolveStruct(t.ModuleID, t.DefIndex)
}

func (c *Codec) decodeDynamicStruct(t types.Type, tailPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	st, err := resolveStruct(c.Ctx, t)
	if err != nil {
		return err
	}
	out := sc.NextI32()
	e.I32Const(int32(st.HeapSize)).Call(c.Lib.AllocFuncID()).LocalSet(out)
	for i, f := range st.Fields {
		e.LocalGet(out).I32Const(int32(4 * i)).I32Add()
		if err := c.Decode(f.Type, tailPtr, uint32(i*wordSize), sc, e); err != nil {
			return err
		}
		e.Store(wasmbin.OpcodeI32Store, 0)
	}
	e.LocalGet(out)
	return nil
}

// decodeStaticStruct decodes every field sequentially from consecutive
// head words starting at offset. Only reachable when IsDynamicABI(t) is
// false, i.e. every field of the struct is itself statically sized.
func (c *Codec) decodeStaticStruct(t types.Type, base, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	st, err := resolveStruct(c.Ctx, t)
	if err != nil {
		return err
	}
	out := sc.NextI32()
	e.I32Const(int32(st.HeapSize)).Call(c.Lib.AllocFuncID()).LocalSet(out)
	wordOff := offset
	for i, f := range st.Fields {
		e.LocalGet(out).I32Const(int32(4 * i)).I32Add()
		if err := c.Decode(f.Type, base, wordOff, sc, e); err != nil {
			return err
		}
		e.Store(wasmbin.OpcodeI32Store, 0)
		wordOff += wordSize
	}
	e.LocalGet(out)
	return nil
}
