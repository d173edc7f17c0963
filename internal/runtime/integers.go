package runtime

import (
	"fmt"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// Width is the set of Move integer widths whose values live directly
// on the WASM operand stack (u8/u16/u32 as i32, u64 as i64). u128/u256
// are heap integers handled in heapints.go.
type Width int

const (
	Width8 Width = iota
	Width16
	Width32
	Width64
)

func (w Width) name() string {
	return [...]string{"u8", "u16", "u32", "u64"}[w]
}

func (w Width) wasmType() wasmbin.ValueType {
	if w == Width64 {
		return wasmbin.ValueTypeI64
	}
	return wasmbin.ValueTypeI32
}

// maskBits returns the number of value bits the mask check should cover.
// u8/u16 are stored widened to i32 and must be range-checked after
// arithmetic; u32 checks against overflow of the 32-bit add/mul itself
// using a 64-bit intermediate is unnecessary in WASM (i32 ops already
// wrap at 32 bits, so overflow is detected by comparing against operands
// directly); u64 has no wider native type available so overflow is
// detected the same way add/sub/mul overflow is detected in software:
// compare the result against an operand.
func (w Width) maskBits() int {
	return [...]int{8, 16, 32, 64}[w]
}

// WidthOf maps a stack-resident integer Kind to its Width, for callers
// (internal/translate) that only have a types.Type in hand. Panics on a
// non-integer kind — callers must only invoke this after confirming t is
// one of U8/U16/U32/U64.
func WidthOf(k types.Kind) Width {
	switch k {
	case types.KindU8:
		return Width8
	case types.KindU16:
		return Width16
	case types.KindU32:
		return Width32
	case types.KindU64:
		return Width64
	default:
		panic("runtime: WidthOf called on non-stack-integer kind")
	}
}

// AddOverflowTrap links (and returns the function id for) width w's
// overflow-checked add: traps (via the shared overflow error helper)
// instead of wrapping when a+b exceeds the width's range.
func (lib *Library) AddOverflowTrap(w Width) uint32 {
	name := fmt.Sprintf("add_checked_%s", w.name())
	return lib.request(name, "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return lib.buildAddChecked(w)
	})
}

// SubOverflowTrap links width w's overflow-checked subtraction (traps on
// underflow, i.e. b > a for unsigned a-b).
func (lib *Library) SubOverflowTrap(w Width) uint32 {
	name := fmt.Sprintf("sub_checked_%s", w.name())
	return lib.request(name, "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return lib.buildSubChecked(w)
	})
}

// MulOverflowTrap links width w's overflow-checked multiplication.
func (lib *Library) MulOverflowTrap(w Width) uint32 {
	name := fmt.Sprintf("mul_checked_%s", w.name())
	return lib.request(name, "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return lib.buildMulChecked(w)
	})
}

// CastDowncast links a checked downcast from width `from` to the
// narrower width `to`, trapping if the value does not fit (Move's Cast
// instructions abort on truncation, never silently wrap).
func (lib *Library) CastDowncast(from, to Width) uint32 {
	name := fmt.Sprintf("cast_checked_%s_to_%s", from.name(), to.name())
	return lib.request(name, "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return lib.buildCastChecked(from, to)
	})
}

func abortOverflow(e *wasmbin.Emitter, call uint32) {
	e.Call(call)
	e.Unreachable()
}

// buildAddChecked emits (w a, w b) -> w. For Width8/16 it widens to i32,
// adds, and checks the result against the width's max. For Width32/64 it
// detects wraparound the classic way: unsigned a+b overflowed iff the
// result is less than either operand.
func (lib *Library) buildAddChecked(w Width) (*wasmbin.Func, *wasmbin.FunctionType) {
	const a, b = 0, 1
	t := w.wasmType()
	e := wasmbin.NewEmitter()
	overflowFn := lib.OverflowTrapFunc()

	switch w {
	case Width8, Width16:
		max := int32(1)<<uint(w.maskBits()) - 1
		e.LocalGet(a).LocalGet(b).I32Add()
		const result = 2
		e.LocalTee(result)
		e.I32Const(max).I32GtU()
		e.If(wasmbin.BlockType{Empty: true})
		abortOverflow(e, overflowFn)
		e.End()
		e.LocalGet(result).Return().End()
		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI32}},
			Body:   e.Bytes(),
		}, sig2(t, t)
	case Width32:
		const result = 2
		e.LocalGet(a).LocalGet(b).I32Add().LocalTee(result)
		e.LocalGet(a).I32LtU()
		e.If(wasmbin.BlockType{Empty: true})
		abortOverflow(e, overflowFn)
		e.End()
		e.LocalGet(result).Return().End()
		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI32}},
			Body:   e.Bytes(),
		}, sig2(t, t)
	default: // Width64
		const result = 2
		e.LocalGet(a).LocalGet(b).I64Add().LocalTee(result)
		e.LocalGet(a).I64LtU()
		e.If(wasmbin.BlockType{Empty: true})
		abortOverflow(e, overflowFn)
		e.End()
		e.LocalGet(result).Return().End()
		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI64}},
			Body:   e.Bytes(),
		}, sig2(t, t)
	}
}

// buildSubChecked emits (w a, w b) -> w, trapping when b > a.
func (lib *Library) buildSubChecked(w Width) (*wasmbin.Func, *wasmbin.FunctionType) {
	const a, b = 0, 1
	t := w.wasmType()
	e := wasmbin.NewEmitter()
	overflowFn := lib.OverflowTrapFunc()

	if t == wasmbin.ValueTypeI64 {
		e.LocalGet(a).LocalGet(b).I64LtU()
	} else {
		e.LocalGet(a).LocalGet(b).I32LtU()
	}
	e.If(wasmbin.BlockType{Empty: true})
	abortOverflow(e, overflowFn)
	e.End()

	e.LocalGet(a).LocalGet(b)
	if t == wasmbin.ValueTypeI64 {
		e.I64Sub()
	} else {
		e.I32Sub()
	}
	e.Return().End()
	return &wasmbin.Func{Body: e.Bytes()}, sig2(t, t)
}

// buildMulChecked emits (w a, w b) -> w. Width8/16/32 widen to i64,
// multiply, and range-check; Width64 checks via division (a*b
// overflowed iff a != 0 && (a*b)/a != b).
func (lib *Library) buildMulChecked(w Width) (*wasmbin.Func, *wasmbin.FunctionType) {
	const a, b = 0, 1
	t := w.wasmType()
	e := wasmbin.NewEmitter()
	overflowFn := lib.OverflowTrapFunc()

	if w != Width64 {
		const result = 2
		e.LocalGet(a).I64ExtendI32U()
		e.LocalGet(b).I64ExtendI32U()
		e.I64Mul().LocalSet(result)
		max := int64(1)<<uint(w.maskBits()) - 1
		e.LocalGet(result).I64Const(max).I64GtU()
		e.If(wasmbin.BlockType{Empty: true})
		abortOverflow(e, overflowFn)
		e.End()
		e.LocalGet(result).I32WrapI64().Return().End()
		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI64}},
			Body:   e.Bytes(),
		}, sig2(t, t)
	}

	const result = 2
	e.LocalGet(a).LocalGet(b).I64Mul().LocalSet(result)
	e.LocalGet(a).I64Eqz()
	e.If(wasmbin.BlockType{Result: wasmbin.ValueTypeI32})
	e.I32Const(0)
	e.Else()
	e.LocalGet(result).LocalGet(a).I64DivU().LocalGet(b).Emit(wasmbin.OpcodeI64Ne)
	e.End()
	e.If(wasmbin.BlockType{Empty: true})
	abortOverflow(e, overflowFn)
	e.End()
	e.LocalGet(result).Return().End()
	return &wasmbin.Func{
		Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI64}},
		Body:   e.Bytes(),
	}, sig2(t, t)
}

// buildCastChecked emits (from) -> to, trapping if the value exceeds
// `to`'s range. Always widens the comparison in i64 to cover the
// from=64/to=32 case uniformly.
func (lib *Library) buildCastChecked(from, to Width) (*wasmbin.Func, *wasmbin.FunctionType) {
	const v = 0
	e := wasmbin.NewEmitter()
	overflowFn := lib.OverflowTrapFunc()
	max := int64(1)<<uint(to.maskBits()) - 1

	e.LocalGet(v)
	if from != Width64 {
		e.I64ExtendI32U()
	}
	e.I64Const(max).I64GtU()
	e.If(wasmbin.BlockType{Empty: true})
	abortOverflow(e, overflowFn)
	e.End()

	e.LocalGet(v)
	if to != Width64 && from == Width64 {
		e.I32WrapI64()
	}
	e.Return().End()

	return &wasmbin.Func{Body: e.Bytes()}, sig1(from.wasmType(), to.wasmType())
}

func sig2(param, result wasmbin.ValueType) *wasmbin.FunctionType {
	return &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{param, param},
		Results: []wasmbin.ValueType{result},
	}
}

func sig1(param, result wasmbin.ValueType) *wasmbin.FunctionType {
	return &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{param},
		Results: []wasmbin.ValueType{result},
	}
}

// OverflowTrapFunc links the shared zero-argument helper every
// overflow-checked op calls before trapping. The body writes the
// interned overflow error blob's offset to the reserved
// abort-message slot (§4.10) so the entrypoint router's catch-all can
// surface it; internal/errenc installs the real body via
// SetOverflowTrapBody once its interned blobs exist; absent that it
// degrades to a bare trap, which is still a correct (if message-less)
// abort.
func (lib *Library) OverflowTrapFunc() uint32 {
	return lib.request("trap_overflow", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		if lib.overflowTrapBody != nil {
			return lib.overflowTrapBody(), &wasmbin.FunctionType{}
		}
		e := wasmbin.NewEmitter()
		e.Unreachable().End()
		return &wasmbin.Func{Body: e.Bytes()}, &wasmbin.FunctionType{}
	})
}

// SetOverflowTrapBody lets internal/errenc supply the real
// error-surfacing body once it has interned the overflow blob, without
// this package importing internal/errenc directly (errenc instead
// imports runtime, not the other way around).
func (lib *Library) SetOverflowTrapBody(build func() *wasmbin.Func) {
	lib.overflowTrapBody = build
}
