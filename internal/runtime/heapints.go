package runtime

import (
	"fmt"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// heapIntWidth distinguishes the two wide integer types, both stored as
// little-endian limb arrays in linear memory: u128 as two u64 limbs,
// u256 as four.
type heapIntWidth int

const (
	heapWidth128 heapIntWidth = iota
	heapWidth256
)

func (w heapIntWidth) limbs() int {
	if w == heapWidth128 {
		return 2
	}
	return 4
}

func (w heapIntWidth) byteSize() int { return w.limbs() * 8 }

func (w heapIntWidth) name() string {
	if w == heapWidth128 {
		return "u128"
	}
	return "u256"
}

func widthOf(t types.Type) (heapIntWidth, error) {
	switch t.Kind {
	case types.KindU128:
		return heapWidth128, nil
	case types.KindU256:
		return heapWidth256, nil
	default:
		return 0, unsupported(cerr.PhaseLinking, "heap integer op", t)
	}
}

// HeapAdd links width w's limb-wise add-with-carry: (i32 a, i32 b) -> i32
// freshly allocated sum, trapping on carry out of the top limb.
func (lib *Library) HeapAdd(t types.Type) (uint32, error) {
	w, err := widthOf(t)
	if err != nil {
		return 0, err
	}
	name := fmt.Sprintf("heap_add_%s", w.name())
	return lib.request(name, typeKeyOf(t), func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return lib.buildHeapAdd(w)
	}), nil
}

// buildHeapAdd emits limb-wise ripple-carry addition: each limb adds
// a[i] + carry, then + b[i], tracking overflow of each step separately
// since a[i]+carry can itself wrap when a[i] is the limb's max value.
// Locals: 0=a,1=b,2=out,3=carry,4=s1,5=s2,6=c1,7=c2 (all i64 except out).
func (lib *Library) buildHeapAdd(w heapIntWidth) (*wasmbin.Func, *wasmbin.FunctionType) {
	const a, b, out = 0, 1, 2
	const carry, s1, s2, c1, c2 = 3, 4, 5, 6, 7
	e := wasmbin.NewEmitter()
	overflowFn := lib.OverflowTrapFunc()

	e.I32Const(int32(w.byteSize())).Call(lib.allocFuncID).LocalSet(out)
	e.I64Const(0).LocalSet(carry)

	for i := 0; i < w.limbs(); i++ {
		off := uint32(i * 8)

		e.LocalGet(a).Load(wasmbin.OpcodeI64Load, off)
		e.LocalGet(carry).I64Add()
		e.LocalSet(s1)

		e.LocalGet(s1).LocalGet(a).Load(wasmbin.OpcodeI64Load, off).I64LtU()
		e.I64ExtendI32U()
		e.LocalSet(c1)

		e.LocalGet(s1).LocalGet(b).Load(wasmbin.OpcodeI64Load, off).I64Add()
		e.LocalSet(s2)

		e.LocalGet(s2).LocalGet(s1).I64LtU()
		e.I64ExtendI32U()
		e.LocalSet(c2)

		e.LocalGet(c1).LocalGet(c2).I64Or().LocalSet(carry)

		e.LocalGet(out).LocalGet(s2).Store(wasmbin.OpcodeI64Store, off)

		if i == w.limbs()-1 {
			e.LocalGet(carry).I64Const(0).I64Ne()
			e.If(wasmbin.BlockType{Empty: true})
			abortOverflow(e, overflowFn)
			e.End()
		}
	}
	e.LocalGet(out).Return().End()

	return &wasmbin.Func{
		Locals: []wasmbin.Local{
			{Count: 1, Type: wasmbin.ValueTypeI32}, // out
			{Count: 5, Type: wasmbin.ValueTypeI64}, // carry, s1, s2, c1, c2
		},
		Body: e.Bytes(),
	}, &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
		Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
	}
}

// HeapSub links width w's limb-wise subtract-with-borrow.
func (lib *Library) HeapSub(t types.Type) (uint32, error) {
	w, err := widthOf(t)
	if err != nil {
		return 0, err
	}
	name := fmt.Sprintf("heap_sub_%s", w.name())
	return lib.request(name, typeKeyOf(t), func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return lib.buildHeapSub(w)
	}), nil
}

// buildHeapSub emits limb-wise subtraction with borrow, trapping if the
// final borrow out of the top limb is set (a < b). Mirrors buildHeapAdd's
// two-step-per-limb structure: d1 = a[i] - borrow (can underflow on its
// own when a[i] is 0 and borrow is 1), then d2 = d1 - b[i].
// Locals: 0=a,1=b,2=out(i32),3=borrow,4=d1,5=d2,6=bw1,7=bw2 (i64).
func (lib *Library) buildHeapSub(w heapIntWidth) (*wasmbin.Func, *wasmbin.FunctionType) {
	const a, b, out = 0, 1, 2
	const borrow, d1, d2, bw1, bw2 = 3, 4, 5, 6, 7
	e := wasmbin.NewEmitter()
	overflowFn := lib.OverflowTrapFunc()

	e.I32Const(int32(w.byteSize())).Call(lib.allocFuncID).LocalSet(out)
	e.I64Const(0).LocalSet(borrow)

	for i := 0; i < w.limbs(); i++ {
		off := uint32(i * 8)

		e.LocalGet(a).Load(wasmbin.OpcodeI64Load, off)
		e.LocalGet(borrow).I64Sub()
		e.LocalSet(d1)

		e.LocalGet(a).Load(wasmbin.OpcodeI64Load, off).LocalGet(borrow).I64LtU()
		e.I64ExtendI32U()
		e.LocalSet(bw1)

		e.LocalGet(d1).LocalGet(b).Load(wasmbin.OpcodeI64Load, off).I64Sub()
		e.LocalSet(d2)

		e.LocalGet(d1).LocalGet(b).Load(wasmbin.OpcodeI64Load, off).I64LtU()
		e.I64ExtendI32U()
		e.LocalSet(bw2)

		e.LocalGet(bw1).LocalGet(bw2).I64Or().LocalSet(borrow)

		e.LocalGet(out).LocalGet(d2).Store(wasmbin.OpcodeI64Store, off)

		if i == w.limbs()-1 {
			e.LocalGet(borrow).I64Const(0).I64Ne()
			e.If(wasmbin.BlockType{Empty: true})
			abortOverflow(e, overflowFn)
			e.End()
		}
	}
	e.LocalGet(out).Return().End()

	return &wasmbin.Func{
		Locals: []wasmbin.Local{
			{Count: 1, Type: wasmbin.ValueTypeI32}, // out
			{Count: 5, Type: wasmbin.ValueTypeI64}, // borrow, d1, d2, bw1, bw2
		},
		Body: e.Bytes(),
	}, &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
		Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
	}
}

// HeapShr links width w's logical right shift by a constant 1-63 bit
// amount. The amount is not range-checked here, and internal/translate
// does not call this helper.
func (lib *Library) HeapShr(t types.Type, bits uint32) (uint32, error) {
	w, err := widthOf(t)
	if err != nil {
		return 0, err
	}
	name := fmt.Sprintf("heap_shr_%s_%d", w.name(), bits)
	return lib.request(name, typeKeyOf(t), func() (*wasmbin.Func, *wasmbin.FunctionType) {
		return lib.buildHeapShr(w, bits)
	}), nil
}

// buildHeapShr shifts the limb array right by `bits` (1-63), carrying
// bits down from the next-higher limb.
func (lib *Library) buildHeapShr(w heapIntWidth, bits uint32) (*wasmbin.Func, *wasmbin.FunctionType) {
	const in, out = 0, 1
	e := wasmbin.NewEmitter()
	e.I32Const(int32(w.byteSize())).Call(lib.allocFuncID).LocalSet(out)

	for i := 0; i < w.limbs(); i++ {
		off := uint32(i * 8)
		e.LocalGet(out)
		e.LocalGet(in).Load(wasmbin.OpcodeI64Load, off)
		e.I64Const(int64(bits)).I64ShrU()
		if i+1 < w.limbs() {
			e.LocalGet(in).Load(wasmbin.OpcodeI64Load, uint32((i+1)*8))
			e.I64Const(int64(64 - bits)).I64Shl()
			e.I64Or()
		}
		e.Store(wasmbin.OpcodeI64Store, off)
	}
	e.LocalGet(out).Return().End()

	return &wasmbin.Func{
		Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI32}},
		Body:   e.Bytes(),
	}, &wasmbin.FunctionType{
		Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32},
		Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
	}
}
