package abi

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// EncodeEnum ABI-encodes an enum value into a tuple matching
// Type.SolName's "(uint8,(variant0 fields...),(variant1 fields...),...)"
// signature (§4.4): a discriminator word followed by one fixed-width
// sub-region per variant, all variants present regardless of which is
// active so the overall tuple has a single static shape — the inactive
// variants' sub-regions are left zero. Simple (field-less) enums go
// through EncodeStatic's encodeSimpleEnum path instead; this handles
// only enums with at least one variant carrying fields.
func (c *Codec) EncodeEnum(t types.Type, valueLocal, dst, offset uint32, sc runtime.Scratch, e *wasmbin.Emitter) error {
	en, err := resolveEnum(c.Ctx, t)
	if err != nil {
		return err
	}
	if en.IsSimple() {
		return c.encodeSimpleEnum(t, valueLocal, dst, offset, e)
	}

	size, ok := t.AbiEncodedSize(c.Ctx)
	if !ok {
		return cerr.New(cerr.PhaseABI, cerr.KindUnsupportedType).
			Detailf("enum %s is not statically ABI-encodable", en.Name).Build()
	}

	for w := uint32(0); w+8 <= uint32(size); w += 8 {
		e.LocalGet(dst).I64Const(0).Store(wasmbin.OpcodeI64Store, offset+w)
	}

	disc := sc.NextI32()
	e.LocalGet(valueLocal).Load(wasmbin.OpcodeI32Load, 0).LocalSet(disc)
	e.LocalGet(dst).LocalGet(disc).Call(c.Lib.ByteSwap32())
	e.Store(wasmbin.OpcodeI32Store, offset+wordSize-4)

	variantOff := offset + wordSize
	for vi, v := range en.Variants {
		if len(v.Fields) == 0 {
			continue
		}
		e.LocalGet(disc).I32Const(int32(vi)).I32Eq()
		e.If(wasmbin.BlockType{Empty: true})
		fieldOff := variantOff
		for fi, f := range v.Fields {
			field := sc.NextI32()
			e.LocalGet(valueLocal).Load(wasmbin.OpcodeI32Load, uint32(4*(fi+1))).LocalSet(field)
			if err := c.EncodeStatic(f, field, dst, fieldOff, sc, e); err != nil {
				return err
			}
			fw, _ := f.AbiEncodedSize(c.Ctx)
			fieldOff += uint32(fw)
		}
		e.End()
		for _, f := range v.Fields {
			fw, _ := f.AbiEncodedSize(c.Ctx)
			variantOff += uint32(fw)
		}
	}
	return nil
}
