package errenc

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/memory"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

const wordSize = 32

// Codec emits the runtime half of error encoding: building a full revert
// blob in linear memory at the point of failure, for messages that carry
// a value only known at runtime (an abort code, a computed index).
// Compile-time-known messages go through Table instead.
type Codec struct {
	Lib *runtime.Library
}

// NewCodec wraps the runtime function library every emitted blob links
// against (its allocator, byte-swap and decimal-ASCII helpers).
func NewCodec(lib *runtime.Library) *Codec {
	return &Codec{Lib: lib}
}

// EmitDynamicBlob emits code building a revert blob around a
// length-prefixed ASCII buffer already in memory at msgPtr (the shape
// runtime.U64ToDecimalASCII produces: [0:4) little-endian u32 length,
// [4:4+len) bytes), returning a fresh local holding the finished blob's
// pointer. Mirrors EncodeErrorBlob's static layout, but with the length
// word's value and the message bytes copied at runtime instead of known
// up front.
func (c *Codec) EmitDynamicBlob(msgPtr uint32, sc runtime.Scratch, e *wasmbin.Emitter) uint32 {
	msgLen := sc.NextI32()
	e.LocalGet(msgPtr).Load(wasmbin.OpcodeI32Load, 0).LocalSet(msgLen)

	padded := sc.NextI32()
	e.LocalGet(msgLen).I32Const(31).I32Add().I32Const(-32).I32And().LocalSet(padded)

	total := sc.NextI32()
	e.LocalGet(padded).I32Const(4 + 4 + wordSize + wordSize).I32Add().LocalSet(total)

	dst := sc.NextI32()
	e.LocalGet(total).Call(c.Lib.AllocFuncID()).LocalSet(dst)

	// [0:4) internal accounting length = total - 4, native byte order.
	e.LocalGet(dst).LocalGet(total).I32Const(4).I32Sub().Store(wasmbin.OpcodeI32Store, 0)

	// [4:8) selector, precomputed as the little-endian constant whose
	// bytes equal the big-endian selector (0x08c379a0 byte-reversed).
	e.LocalGet(dst).I32Const(-0x5F863CF8).Store(wasmbin.OpcodeI32Store, 4)

	// [8:40) offset word, value 0x20, likewise a precomputed constant:
	// zero the high 24 bytes, then the low 8 as the byte-reversed 0x20.
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, 8)
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, 16)
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, 24)
	e.LocalGet(dst).I64Const(int64(0x2000000000000000)).Store(wasmbin.OpcodeI64Store, 32)

	// [40:72) length word: zero the high 24 bytes, then byte-swap msgLen
	// into the low 8.
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, 40)
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, 48)
	e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, 56)
	e.LocalGet(dst)
	e.LocalGet(msgLen).I64ExtendI32U().Call(c.Lib.ByteSwap64())
	e.Store(wasmbin.OpcodeI64Store, 64)

	// [72:) message bytes, copied from msgPtr+4 one byte at a time.
	i := sc.NextI32()
	e.I32Const(0).LocalSet(i)
	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	{
		e.LocalGet(i).LocalGet(msgLen).I32GeU()
		e.BrIf(1)

		e.LocalGet(dst).I32Const(72).I32Add().LocalGet(i).I32Add()
		e.LocalGet(msgPtr).I32Const(4).I32Add().LocalGet(i).I32Add()
		e.Load(wasmbin.OpcodeI32Load8U, 0)
		e.Store(wasmbin.OpcodeI32Store8, 0)

		e.LocalGet(i).I32Const(1).I32Add().LocalSet(i)
		e.Br(0)
	}
	e.End()
	e.End()

	return dst
}

// EmitAbortFromCode emits code rendering the u64 local at codeLocal as a
// revert blob whose message is the code's decimal digits alone (no
// surrounding text), used for Move's Abort opcode (§4.7)
// when the abort code isn't one of the compiler's own interned Kinds.
func (c *Codec) EmitAbortFromCode(codeLocal uint32, sc runtime.Scratch, e *wasmbin.Emitter) uint32 {
	digits := sc.NextI32()
	e.LocalGet(codeLocal).Call(c.Lib.U64ToDecimalASCII()).LocalSet(digits)
	return c.EmitDynamicBlob(digits, sc, e)
}

// EmitStaticAbort emits code that records table's interned offset for kind
// at the reserved abort-message slot (§3.6) and traps, the same shape
// InstallOverflowTrap wires into the shared overflow helper, for call
// sites (internal/translate) that need an immediate abort on a
// compile-time-known failure — division by zero, an out-of-bounds vector
// index, an invalid enum variant — rather than routing through a shared
// zero-argument helper.
func EmitStaticAbort(table *Table, kind Kind, e *wasmbin.Emitter) {
	e.I32Const(memory.OffsetAbortMessagePtr)
	e.I32Const(int32(table.Offset(kind)))
	e.Store(wasmbin.OpcodeI32Store, 0)
	e.Unreachable()
}

// InstallOverflowTrap supplies runtime.Library.OverflowTrapFunc's real
// body now that table has an interned KindOverflow blob to point at: it
// records the blob's offset at the reserved abort-message slot (§3.6)
// before trapping, so the entrypoint router's catch-all can surface it.
func (c *Codec) InstallOverflowTrap(table *Table) {
	c.Lib.SetOverflowTrapBody(func() *wasmbin.Func {
		e := wasmbin.NewEmitter()
		e.I32Const(memory.OffsetAbortMessagePtr)
		e.I32Const(int32(table.Offset(KindOverflow)))
		e.Store(wasmbin.OpcodeI32Store, 0)
		e.Unreachable().End()
		return &wasmbin.Func{Body: e.Bytes()}
	})
}
