package wasmbin

import (
	"bytes"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/leb128"
)

// Emitter accumulates instruction bytes for one function body. The
// bytecode translator (§4.7), runtime library (§4.3), and entrypoint
// router (§4.8) all share this type to build WASM code without
// hand-concatenating byte slices at every call site.
type Emitter struct {
	buf bytes.Buffer
}

// NewEmitter returns an empty Emitter.
func NewEmitter() *Emitter { return &Emitter{} }

// Bytes returns the accumulated instruction bytes.
func (e *Emitter) Bytes() []byte { return e.buf.Bytes() }

// Len returns the number of bytes emitted so far.
func (e *Emitter) Len() int { return e.buf.Len() }

func (e *Emitter) op(o Opcode) *Emitter {
	e.buf.WriteByte(o)
	return e
}

// Raw appends already-encoded bytes verbatim (used to splice in another
// Emitter's output, e.g. when inlining a reshaped flow node).
func (e *Emitter) Raw(b []byte) *Emitter {
	e.buf.Write(b)
	return e
}

func (e *Emitter) Unreachable() *Emitter { return e.op(OpcodeUnreachable) }
func (e *Emitter) Nop() *Emitter         { return e.op(OpcodeNop) }
func (e *Emitter) End() *Emitter         { return e.op(OpcodeEnd) }
func (e *Emitter) Else() *Emitter        { return e.op(OpcodeElse) }
func (e *Emitter) Return() *Emitter      { return e.op(OpcodeReturn) }
func (e *Emitter) Drop() *Emitter        { return e.op(OpcodeDrop) }
func (e *Emitter) Select() *Emitter      { return e.op(OpcodeSelect) }

func (e *Emitter) Block(bt BlockType) *Emitter {
	e.op(OpcodeBlock)
	e.buf.WriteByte(bt.Byte())
	return e
}

func (e *Emitter) Loop(bt BlockType) *Emitter {
	e.op(OpcodeLoop)
	e.buf.WriteByte(bt.Byte())
	return e
}

func (e *Emitter) If(bt BlockType) *Emitter {
	e.op(OpcodeIf)
	e.buf.WriteByte(bt.Byte())
	return e
}

func (e *Emitter) Br(depth uint32) *Emitter {
	e.op(OpcodeBr)
	e.buf.Write(leb128.EncodeUint32(depth))
	return e
}

func (e *Emitter) BrIf(depth uint32) *Emitter {
	e.op(OpcodeBrIf)
	e.buf.Write(leb128.EncodeUint32(depth))
	return e
}

// BrTable emits a branch table: targets plus a default, used by the
// control-flow reshaper's Switch node (§4.6) for multi-way dispatch.
func (e *Emitter) BrTable(targets []uint32, def uint32) *Emitter {
	e.op(OpcodeBrTable)
	e.buf.Write(leb128.EncodeUint32(uint32(len(targets))))
	for _, t := range targets {
		e.buf.Write(leb128.EncodeUint32(t))
	}
	e.buf.Write(leb128.EncodeUint32(def))
	return e
}

func (e *Emitter) Call(funcIdx uint32) *Emitter {
	e.op(OpcodeCall)
	e.buf.Write(leb128.EncodeUint32(funcIdx))
	return e
}

func (e *Emitter) LocalGet(idx uint32) *Emitter {
	e.op(OpcodeLocalGet)
	e.buf.Write(leb128.EncodeUint32(idx))
	return e
}

func (e *Emitter) LocalSet(idx uint32) *Emitter {
	e.op(OpcodeLocalSet)
	e.buf.Write(leb128.EncodeUint32(idx))
	return e
}

func (e *Emitter) LocalTee(idx uint32) *Emitter {
	e.op(OpcodeLocalTee)
	e.buf.Write(leb128.EncodeUint32(idx))
	return e
}

func (e *Emitter) GlobalGet(idx uint32) *Emitter {
	e.op(OpcodeGlobalGet)
	e.buf.Write(leb128.EncodeUint32(idx))
	return e
}

func (e *Emitter) GlobalSet(idx uint32) *Emitter {
	e.op(OpcodeGlobalSet)
	e.buf.Write(leb128.EncodeUint32(idx))
	return e
}

func (e *Emitter) I32Const(v int32) *Emitter {
	e.op(OpcodeI32Const)
	e.buf.Write(leb128.EncodeInt32(v))
	return e
}

func (e *Emitter) I64Const(v int64) *Emitter {
	e.op(OpcodeI64Const)
	e.buf.Write(leb128.EncodeInt64(v))
	return e
}

// memArg encodes the (align, offset) immediate pair shared by every
// load/store instruction. Alignment is always 0 (byte-aligned): §4.2's
// allocator never aligns, and every access in this compiler's generated
// code goes through it.
func (e *Emitter) memArg(offset uint32) *Emitter {
	e.buf.Write(leb128.EncodeUint32(0))
	e.buf.Write(leb128.EncodeUint32(offset))
	return e
}

func (e *Emitter) Load(op Opcode, offset uint32) *Emitter  { e.op(op); return e.memArg(offset) }
func (e *Emitter) Store(op Opcode, offset uint32) *Emitter { e.op(op); return e.memArg(offset) }

func (e *Emitter) I32Add() *Emitter  { return e.op(OpcodeI32Add) }
func (e *Emitter) I32Sub() *Emitter  { return e.op(OpcodeI32Sub) }
func (e *Emitter) I32Mul() *Emitter  { return e.op(OpcodeI32Mul) }
func (e *Emitter) I32Eq() *Emitter   { return e.op(OpcodeI32Eq) }
func (e *Emitter) I32Ne() *Emitter   { return e.op(OpcodeI32Ne) }
func (e *Emitter) I32Eqz() *Emitter  { return e.op(OpcodeI32Eqz) }
func (e *Emitter) I32LtU() *Emitter  { return e.op(OpcodeI32LtU) }
func (e *Emitter) I32GeU() *Emitter  { return e.op(OpcodeI32GeU) }
func (e *Emitter) I32And() *Emitter  { return e.op(OpcodeI32And) }
func (e *Emitter) I32Or() *Emitter   { return e.op(OpcodeI32Or) }
func (e *Emitter) I32ShrU() *Emitter { return e.op(OpcodeI32ShrU) }
func (e *Emitter) I32Shl() *Emitter  { return e.op(OpcodeI32Shl) }

func (e *Emitter) I64Add() *Emitter  { return e.op(OpcodeI64Add) }
func (e *Emitter) I64Sub() *Emitter  { return e.op(OpcodeI64Sub) }
func (e *Emitter) I64Mul() *Emitter  { return e.op(OpcodeI64Mul) }
func (e *Emitter) I64DivU() *Emitter { return e.op(OpcodeI64DivU) }
func (e *Emitter) I64LtU() *Emitter  { return e.op(OpcodeI64LtU) }
func (e *Emitter) I64Eq() *Emitter   { return e.op(OpcodeI64Eq) }

// MemoryGrow emits memory.grow against memory 0.
func (e *Emitter) MemoryGrow() *Emitter {
	e.op(OpcodeMemoryGrow)
	e.buf.WriteByte(0x00)
	return e
}

func (e *Emitter) I32WrapI64() *Emitter    { return e.op(OpcodeI32WrapI64) }
func (e *Emitter) I64ExtendI32U() *Emitter { return e.op(OpcodeI64ExtendI32U) }
func (e *Emitter) I64ExtendI32S() *Emitter { return e.op(OpcodeI64ExtendI32S) }

func (e *Emitter) I64Xor() *Emitter  { return e.op(OpcodeI64Xor) }
func (e *Emitter) I64And() *Emitter  { return e.op(OpcodeI64And) }
func (e *Emitter) I64Or() *Emitter   { return e.op(OpcodeI64Or) }
func (e *Emitter) I64Rotl() *Emitter { return e.op(OpcodeI64Rotl) }
func (e *Emitter) I64ShrU() *Emitter { return e.op(OpcodeI64ShrU) }
func (e *Emitter) I64Shl() *Emitter  { return e.op(OpcodeI64Shl) }
func (e *Emitter) I32Xor() *Emitter  { return e.op(OpcodeI32Xor) }

// Emit appends a bare opcode with no immediate, for the long tail of
// instructions that need no dedicated wrapper (comparisons, conversions
// used only once or twice in the runtime library).
func (e *Emitter) Emit(op Opcode) *Emitter { return e.op(op) }
