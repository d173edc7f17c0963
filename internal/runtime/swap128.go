package runtime

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// ByteSwap128 reverses a 16-byte value at ptr in place: the u128
// counterpart of ByteSwap256, split out since u128's internal heap
// representation is two 8-byte limbs rather than four.
func (lib *Library) ByteSwap128() uint32 {
	return lib.request("byte_swap_128", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const ptr, tmpLo, tmpHi = 0, 1, 2
		e := wasmbin.NewEmitter()
		swap64 := lib.ByteSwap64()

		e.LocalGet(ptr).Load(wasmbin.OpcodeI64Load, 0).Call(swap64).LocalSet(tmpLo)
		e.LocalGet(ptr).Load(wasmbin.OpcodeI64Load, 8).Call(swap64).LocalSet(tmpHi)
		e.LocalGet(ptr).LocalGet(tmpHi).Store(wasmbin.OpcodeI64Store, 0)
		e.LocalGet(ptr).LocalGet(tmpLo).Store(wasmbin.OpcodeI64Store, 8)
		e.End()

		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 2, Type: wasmbin.ValueTypeI64}},
			Body:   e.Bytes(),
		}, &wasmbin.FunctionType{
			Params: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
	})
}
