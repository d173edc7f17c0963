package abi

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// CheckPointerWidth emits §4.4's pointer-width validation: an
// offset/length word is only valid if its upper 28 bytes are all zero,
// checked as seven sequential 32-bit zero comparisons (one per leading
// 4-byte chunk) rather than a single wide compare, mirroring how the
// rest of this codec works word-by-word at 32-bit granularity. Traps
// via OverflowTrapFunc on the first nonzero chunk found; wordBase is a
// local holding the absolute address of the word's first byte.
func (c *Codec) CheckPointerWidth(wordBase uint32, e *wasmbin.Emitter) {
	trap := c.Lib.OverflowTrapFunc()
	for i := 0; i < 7; i++ {
		off := uint32(i * 4)
		e.LocalGet(wordBase).Load(wasmbin.OpcodeI32Load, off).I32Const(0).I32Ne()
		e.If(wasmbin.BlockType{Empty: true})
		e.Call(trap)
		e.Unreachable()
		e.End()
	}
}
