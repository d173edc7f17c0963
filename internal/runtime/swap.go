package runtime

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// buildByteSwap32 emits (i32 v) -> i32: byte-reversed v. Local 0 is the
// parameter; no scratch locals are needed since each byte is extracted
// independently from the parameter.
func buildByteSwap32() (*wasmbin.Func, *wasmbin.FunctionType) {
	const v = 0
	e := wasmbin.NewEmitter()

	// b0 = (v & 0xff) << 24
	e.LocalGet(v).I32Const(0xff).I32And().I32Const(24).I32Shl()
	// b1 = (v >> 8 & 0xff) << 16
	e.LocalGet(v).I32Const(8).I32ShrU().I32Const(0xff).I32And().I32Const(16).I32Shl()
	e.I32Or()
	// b2 = (v >> 16 & 0xff) << 8
	e.LocalGet(v).I32Const(16).I32ShrU().I32Const(0xff).I32And().I32Const(8).I32Shl()
	e.I32Or()
	// b3 = v >> 24 & 0xff
	e.LocalGet(v).I32Const(24).I32ShrU().I32Const(0xff).I32And()
	e.I32Or()
	e.Return().End()

	return &wasmbin.Func{Body: e.Bytes()}, &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32},
		Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
	}
}

// buildByteSwap64 emits (i64 v) -> i64: byte-reversed v, built the same
// way as buildByteSwap32 but over 8 bytes.
func buildByteSwap64() (*wasmbin.Func, *wasmbin.FunctionType) {
	const v = 0
	e := wasmbin.NewEmitter()

	for i := 0; i < 8; i++ {
		shiftDown := i * 8
		shiftUp := (7 - i) * 8
		e.LocalGet(v)
		if shiftDown > 0 {
			e.I64Const(int64(shiftDown)).I64ShrU()
		}
		e.I64Const(0xff).I64And()
		if shiftUp > 0 {
			e.I64Const(int64(shiftUp)).I64Shl()
		}
		if i > 0 {
			e.I64Or()
		}
	}
	e.Return().End()

	return &wasmbin.Func{Body: e.Bytes()}, &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{wasmbin.ValueTypeI64},
		Results: []wasmbin.ValueType{wasmbin.ValueTypeI64},
	}
}

// ByteSwap32 returns the function id of the byte_swap_32 helper.
func (lib *Library) ByteSwap32() uint32 {
	return lib.request("byte_swap_32", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return buildByteSwap32()
	})
}

// ByteSwap64 returns the function id of the byte_swap_64 helper.
func (lib *Library) ByteSwap64() uint32 {
	return lib.request("byte_swap_64", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return buildByteSwap64()
	})
}

// ByteSwap256 reverses a 32-byte big integer stored at ptr in place,
// swapping 8-byte limbs with ByteSwap64 and reversing limb order. Takes
// (i32 ptr) -> (nothing); used to flip u128/u256 heap values between
// their internal little-endian limb layout and the host's big-endian
// word encoding.
func (lib *Library) ByteSwap256() uint32 {
	return lib.request("byte_swap_256", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const ptr = 0
		const tmpLo = 1
		const tmpHi = 2
		const limbCount = 4
		e := wasmbin.NewEmitter()
		swap64 := lib.ByteSwap64()
		for i := 0; i < limbCount/2; i++ {
			lo := i * 8
			hi := (limbCount - 1 - i) * 8
			// Read both limbs before writing either, then swap positions.
			e.LocalGet(ptr).Load(wasmbin.OpcodeI64Load, uint32(lo)).Call(swap64).LocalSet(tmpLo)
			e.LocalGet(ptr).Load(wasmbin.OpcodeI64Load, uint32(hi)).Call(swap64).LocalSet(tmpHi)
			e.LocalGet(ptr)
			e.LocalGet(tmpHi)
			e.Store(wasmbin.OpcodeI64Store, uint32(lo))
			e.LocalGet(ptr)
			e.LocalGet(tmpLo)
			e.Store(wasmbin.OpcodeI64Store, uint32(hi))
		}
		e.End()
		return &wasmbin.Func{
				Locals: []wasmbin.Local{{Count: 2, Type: wasmbin.ValueTypeI64}},
				Body:   e.Bytes(),
			}, &wasmbin.FunctionType{
				Params: []wasmbin.ValueType{wasmbin.ValueTypeI32},
			}
	})
}
