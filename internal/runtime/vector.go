package runtime

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// Vector heap layout: [i32 length][i32 capacity][elements...], each
// element stored as a 4-byte slot (stack scalars widened to i32/ zero
// extended; heap types already i32 pointers; u64 stack scalars spill
// their low/high halves across two slots, handled by the translator's
// element-size parameter rather than by this package).

const vecHeaderSize = 8 // length + capacity

// VectorAlloc links vector_alloc(i32 elemSize) -> i32 ptr: allocates an
// empty vector with room for 4 elements.
func (lib *Library) VectorAlloc() uint32 {
	return lib.request("vector_alloc", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const elemSize, out = 0, 1
		const initialCap = 4
		e := wasmbin.NewEmitter()
		e.I32Const(vecHeaderSize).LocalGet(elemSize).I32Const(initialCap).I32Mul().I32Add()
		e.Call(lib.allocFuncID).LocalSet(out)
		e.LocalGet(out).I32Const(0).Store(wasmbin.OpcodeI32Store, 0) // length = 0
		e.LocalGet(out).I32Const(initialCap).Store(wasmbin.OpcodeI32Store, 4)
		e.LocalGet(out).Return().End()
		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI32}},
			Body:   e.Bytes(),
		}, &wasmbin.FunctionType{
			Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32},
			Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
	})
}

// VectorLength links vector_length(i32 vec) -> i32: the live element
// count (not capacity).
func (lib *Library) VectorLength() uint32 {
	return lib.request("vector_length", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		e := wasmbin.NewEmitter()
		e.LocalGet(0).Load(wasmbin.OpcodeI32Load, 0).Return().End()
		return &wasmbin.Func{Body: e.Bytes()}, sig1(wasmbin.ValueTypeI32, wasmbin.ValueTypeI32)
	})
}

// VectorElemPtr links vector_elem_ptr(i32 vec, i32 index, i32 elemSize)
// -> i32: the address of element `index`, trapping if index >= length
// (Move's vector ops abort on out-of-bounds, they never wrap).
func (lib *Library) VectorElemPtr() uint32 {
	return lib.request("vector_elem_ptr", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const vec, index, elemSize = 0, 1, 2
		e := wasmbin.NewEmitter()
		overflowFn := lib.OverflowTrapFunc()

		e.LocalGet(index).LocalGet(vec).Load(wasmbin.OpcodeI32Load, 0).I32GeU()
		e.If(wasmbin.BlockType{Empty: true})
		abortOverflow(e, overflowFn)
		e.End()

		e.LocalGet(vec).I32Const(vecHeaderSize).I32Add()
		e.LocalGet(index).LocalGet(elemSize).I32Mul()
		e.I32Add().Return().End()

		return &wasmbin.Func{Body: e.Bytes()}, &wasmbin.FunctionType{
			Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
			Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
	})
}

// VectorPush links vector_push(i32 vec, i32 elemSize) -> i32: returns the
// (possibly reallocated) vector pointer and the address to write the new
// element's bytes into is `vector_elem_ptr(result, old_length, elemSize)`
// from the caller's perspective; grows into a fresh allocation (doubling
// capacity) when length == capacity, copying existing elements forward,
// since this allocator has no realloc-in-place.
func (lib *Library) VectorPush() uint32 {
	return lib.request("vector_push", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const vec, elemSize, newVec, length, capacity, i = 0, 1, 2, 3, 4, 5
		e := wasmbin.NewEmitter()

		e.LocalGet(vec).Load(wasmbin.OpcodeI32Load, 0).LocalSet(length)
		e.LocalGet(vec).Load(wasmbin.OpcodeI32Load, 4).LocalSet(capacity)

		e.LocalGet(length).LocalGet(capacity).I32Ne()
		e.If(wasmbin.BlockType{Empty: true})
		{
			// Room remains: just bump length in place.
			e.LocalGet(vec).LocalGet(length).I32Const(1).I32Add().Store(wasmbin.OpcodeI32Store, 0)
			e.LocalGet(vec).LocalSet(newVec)
		}
		e.Else()
		{
			e.I32Const(vecHeaderSize).LocalGet(elemSize)
			e.LocalGet(capacity).I32Const(2).I32Mul().I32Mul().I32Add()
			e.Call(lib.allocFuncID).LocalSet(newVec)

			e.LocalGet(newVec).LocalGet(length).I32Const(1).I32Add().Store(wasmbin.OpcodeI32Store, 0)
			e.LocalGet(newVec).LocalGet(capacity).I32Const(2).I32Mul().Store(wasmbin.OpcodeI32Store, 4)

			// Copy existing length*elemSize bytes forward.
			e.I32Const(0).LocalSet(i)
			e.Block(wasmbin.BlockType{Empty: true})
			e.Loop(wasmbin.BlockType{Empty: true})
			{
				e.LocalGet(i).LocalGet(length).LocalGet(elemSize).I32Mul().I32GeU()
				e.BrIf(1)

				e.LocalGet(newVec).I32Const(vecHeaderSize).I32Add().LocalGet(i).I32Add()
				e.LocalGet(vec).I32Const(vecHeaderSize).I32Add().LocalGet(i).I32Add()
				e.Load(wasmbin.OpcodeI32Load8U, 0)
				e.Store(wasmbin.OpcodeI32Store8, 0)

				e.LocalGet(i).I32Const(1).I32Add().LocalSet(i)
				e.Br(0)
			}
			e.End()
			e.End()
		}
		e.End()

		e.LocalGet(newVec).Return().End()

		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 4, Type: wasmbin.ValueTypeI32}},
			Body:   e.Bytes(),
		}, &wasmbin.FunctionType{
			Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
			Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
	})
}

// VectorPop links vector_pop(i32 vec, i32 elemSize) -> i32: decrements length and
// returns the popped element's address (still valid memory, simply past
// the new logical end), trapping on an empty vector.
func (lib *Library) VectorPop() uint32 {
	return lib.request("vector_pop", "", func() (*wasmbin.Func, *wasmbin.FunctionType) {
		const vec, elemSize, newLength = 0, 1, 2
		e := wasmbin.NewEmitter()
		overflowFn := lib.OverflowTrapFunc()

		e.LocalGet(vec).Load(wasmbin.OpcodeI32Load, 0).I32Eqz()
		e.If(wasmbin.BlockType{Empty: true})
		abortOverflow(e, overflowFn)
		e.End()

		e.LocalGet(vec).Load(wasmbin.OpcodeI32Load, 0).I32Const(1).I32Sub().LocalSet(newLength)
		e.LocalGet(vec).LocalGet(newLength).Store(wasmbin.OpcodeI32Store, 0)

		e.LocalGet(vec).I32Const(vecHeaderSize).I32Add()
		e.LocalGet(newLength).LocalGet(elemSize).I32Mul()
		e.I32Add().Return().End()

		return &wasmbin.Func{
			Locals: []wasmbin.Local{{Count: 1, Type: wasmbin.ValueTypeI32}},
			Body:   e.Bytes(),
		}, &wasmbin.FunctionType{
			Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
			Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
	})
}
