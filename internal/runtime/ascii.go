package runtime

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// U64ToDecimalASCII links a helper converting a u64 value to a
// length-prefixed ASCII decimal string: (i64 v) -> i32 ptr, where
// ptr[0:4] holds the digit count (little-endian u32) and ptr[4:4+n]
// holds the digits, most significant first. Used by error encoding
// (§4.10) to interpolate dynamic values (an out-of-bounds index, an
// abort code) into otherwise-static runtime error messages.
func (lib *Library) U64ToDecimalASCII() uint32 {
	return lib.request("u64_to_decimal_ascii", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return lib.buildU64ToDecimalASCII()
	})
}

// buildU64ToDecimalASCII writes digits into a 20-byte scratch buffer from
// the end backwards (divide-by-ten loop), special-cases zero, then
// copies the produced digits into a fresh length-prefixed output buffer.
//
// Locals: 0=v(i64 param), 1=scratch(i32 ptr to 20 bytes),
// 2=cursor(i32, write position within scratch, counts down from 20),
// 3=digit(i64 scratch), 4=out(i32), 5=length(i32).
func (lib *Library) buildU64ToDecimalASCII() (*wasmbin.Func, *wasmbin.FunctionType) {
	const v, scratch, cursor, digit, out, length = 0, 1, 2, 3, 4, 5
	e := wasmbin.NewEmitter()

	e.I32Const(20).Call(lib.allocFuncID).LocalSet(scratch)
	e.I32Const(20).LocalSet(cursor)

	// Zero special case: write a single '0' digit directly.
	e.LocalGet(v).I64Eqz()
	e.If(wasmbin.BlockType{Empty: true})
	{
		e.LocalGet(cursor).I32Const(1).I32Sub().LocalTee(cursor)
		e.LocalGet(scratch).I32Add()
		e.I32Const('0').Store(wasmbin.OpcodeI32Store8, 0)
	}
	e.Else()
	{
		// while v != 0 { cursor--; scratch[cursor] = '0' + v%10; v /= 10 }
		e.Block(wasmbin.BlockType{Empty: true})
		e.Loop(wasmbin.BlockType{Empty: true})
		{
			e.LocalGet(v).I64Eqz()
			e.BrIf(1)

			e.LocalGet(v).I64Const(10).I64RemU().LocalSet(digit)
			e.LocalGet(v).I64Const(10).I64DivU().LocalSet(v)

			e.LocalGet(cursor).I32Const(1).I32Sub().LocalTee(cursor)
			e.LocalGet(scratch).I32Add()
			e.LocalGet(digit).I32WrapI64().I32Const('0').I32Add()
			e.Store(wasmbin.OpcodeI32Store8, 0)

			e.Br(0)
		}
		e.End()
		e.End()
	}
	e.End()

	// length = 20 - cursor
	e.I32Const(20).LocalGet(cursor).I32Sub().LocalSet(length)

	// out = alloc(4 + length); out[0:4] = length; copy digits byte by byte.
	e.I32Const(4).LocalGet(length).I32Add().Call(lib.allocFuncID).LocalSet(out)
	e.LocalGet(out).LocalGet(length).Store(wasmbin.OpcodeI32Store, 0)

	e.Block(wasmbin.BlockType{Empty: true})
	e.Loop(wasmbin.BlockType{Empty: true})
	{
		e.LocalGet(cursor).I32Const(20).I32Eq()
		e.BrIf(1)

		e.LocalGet(out).I32Const(4).I32Add()
		e.LocalGet(cursor).I32Const(20).I32Sub().LocalGet(length).I32Add().I32Add()
		e.LocalGet(scratch).LocalGet(cursor).I32Add().Load(wasmbin.OpcodeI32Load8U, 0)
		e.Store(wasmbin.OpcodeI32Store8, 0)

		e.LocalGet(cursor).I32Const(1).I32Add().LocalSet(cursor)
		e.Br(0)
	}
	e.End()
	e.End()

	e.LocalGet(out).Return().End()

	return &wasmbin.Func{
		Locals: []wasmbin.Local{
			{Count: 1, Type: wasmbin.ValueTypeI32}, // scratch
			{Count: 1, Type: wasmbin.ValueTypeI32}, // cursor
			{Count: 1, Type: wasmbin.ValueTypeI64}, // digit
			{Count: 1, Type: wasmbin.ValueTypeI32}, // out
			{Count: 1, Type: wasmbin.ValueTypeI32}, // length
		},
		Body: e.Bytes(),
	}, &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{wasmbin.ValueTypeI64},
		Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
	}
}
