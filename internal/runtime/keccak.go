package runtime

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// keccakRC holds the 24 round constants of the Keccak-f[1600] permutation.
var keccakRC = [24]uint64{
	0x0000000000000001, 0x0000000000008082, 0x800000000000808a, 0x8000000080008000,
	0x000000000000808b, 0x0000000080000001, 0x8000000080008081, 0x8000000000008009,
	0x000000000000008a, 0x0000000000000088, 0x0000000080008009, 0x000000008000000a,
	0x000000008000808b, 0x800000000000008b, 0x8000000000008089, 0x8000000000008003,
	0x8000000000008002, 0x8000000000000080, 0x000000000000800a, 0x800000008000000a,
	0x8000000080008081, 0x8000000000008080, 0x0000000080000001, 0x8000000080008008,
}

// keccakRotc and keccakPiln are the compact rho/pi tables from the
// reference tiny_sha3 implementation, applied to a linear 25-lane state
// (lane i lives at state offset 8*i).
var keccakRotc = [24]uint32{
	1, 3, 6, 10, 15, 21, 28, 36, 45, 55, 2, 14,
	27, 41, 56, 8, 25, 43, 62, 18, 39, 61, 20, 44,
}

var keccakPiln = [24]int{
	10, 7, 11, 17, 18, 3, 5, 16, 8, 21, 24, 4,
	15, 23, 19, 13, 12, 2, 20, 14, 22, 9, 6, 1,
}

// keccakLocals names the locals emitKeccakF1600 expects, all relative to
// the enclosing function's local index space. state holds the i32 pointer
// to the 200-byte (25-lane) state buffer in linear memory.
type keccakLocals struct {
	state  uint32
	bc     [5]uint32
	t      uint32
	swap   uint32
}

func lane(e *wasmbin.Emitter, l keccakLocals, i int) {
	e.LocalGet(l.state).Load(wasmbin.OpcodeI64Load, uint32(8*i))
}

func storeLane(e *wasmbin.Emitter, l keccakLocals, i int, pushValue func()) {
	e.LocalGet(l.state)
	pushValue()
	e.Store(wasmbin.OpcodeI64Store, uint32(8*i))
}

// emitKeccakF1600 emits the in-place Keccak-f[1600] permutation over the
// 200-byte state buffer pointed to by locals.state. The round/rotation
// tables are resolved at Go compile time (they never depend on contract
// input), so the emitted code is fully unrolled straight-line WASM: no
// runtime loop over the 24 rounds is needed.
func emitKeccakF1600(e *wasmbin.Emitter, l keccakLocals) {
	for r := 0; r < 24; r++ {
		// Theta: bc[i] = xor of column i.
		for i := 0; i < 5; i++ {
			storeBc := func() {
				lane(e, l, i)
				lane(e, l, i+5)
				e.I64Xor()
				lane(e, l, i+10)
				e.I64Xor()
				lane(e, l, i+15)
				e.I64Xor()
				lane(e, l, i+20)
				e.I64Xor()
			}
			storeBc()
			e.LocalSet(l.bc[i])
		}
		for i := 0; i < 5; i++ {
			// t = bc[(i+4)%5] ^ rotl(bc[(i+1)%5], 1)
			e.LocalGet(l.bc[(i+4)%5])
			e.LocalGet(l.bc[(i+1)%5])
			e.I64Const(1)
			e.I64Rotl()
			e.I64Xor()
			e.LocalSet(l.t)
			for j := 0; j < 25; j += 5 {
				idx := j + i
				storeLane(e, l, idx, func() {
					lane(e, l, idx)
					e.LocalGet(l.t)
					e.I64Xor()
				})
			}
		}

		// Rho + Pi.
		lane(e, l, 1)
		e.LocalSet(l.t)
		for i := 0; i < 24; i++ {
			j := keccakPiln[i]
			lane(e, l, j)
			e.LocalSet(l.swap)
			storeLane(e, l, j, func() {
				e.LocalGet(l.t)
				e.I64Const(int64(keccakRotc[i]))
				e.I64Rotl()
			})
			e.LocalGet(l.swap)
			e.LocalSet(l.t)
		}

		// Chi.
		for j := 0; j < 25; j += 5 {
			for i := 0; i < 5; i++ {
				lane(e, l, j+i)
				e.LocalSet(l.bc[i])
			}
			for i := 0; i < 5; i++ {
				idx := j + i
				a, b := (i+1)%5, (i+2)%5
				storeLane(e, l, idx, func() {
					lane(e, l, idx)
					e.LocalGet(l.bc[a])
					e.I64Const(-1)
					e.I64Xor()
					e.LocalGet(l.bc[b])
					e.I64And()
					e.I64Xor()
				})
			}
		}

		// Iota.
		storeLane(e, l, 0, func() {
			lane(e, l, 0)
			e.I64Const(int64(keccakRC[r]))
			e.I64Xor()
		})
	}
}

// Keccak256Of64Name is the lazily-linked name for the fixed-width
// keccak256 helper (see library.go). Every runtime use of keccak in this
// compiler hashes exactly 64 bytes: either (object UID || owner) or
// (inner hash || storage slot 0), per §3.7's two-round object-slot
// mapping. Specializing to a single 136-byte-rate block avoids emitting a
// general streaming absorb loop that nothing ever exercises.
const Keccak256Of64Name = "keccak256_of_64"

// buildKeccak256Of64 emits (i32 inputPtr) -> i32 outputPtr: hashes the 64
// bytes at inputPtr and returns a freshly allocated 32-byte digest.
// Local 0: inputPtr (param). Local 1: state pointer. Locals 2-6: bc[0..4].
// Local 7: t. Local 8: swap. Local 9: output pointer.
func buildKeccak256Of64(lib *Library) (*wasmbin.Func, *wasmbin.FunctionType) {
	const (
		localInput = 0
		localState = 1
		localT     = 7
		localSwap  = 8
		localOut   = 9
	)
	l := keccakLocals{
		state: localState,
		bc:    [5]uint32{2, 3, 4, 5, 6},
		t:     localT,
		swap:  localSwap,
	}

	e := wasmbin.NewEmitter()

	// state = alloc(200), zeroed by the allocator's fresh linear memory.
	e.I32Const(200).Call(lib.allocFuncID)
	e.LocalSet(localState)

	// Copy the 64 input bytes into the state buffer 8 bytes at a time.
	for i := 0; i < 8; i++ {
		e.LocalGet(localState)
		e.LocalGet(localInput).Load(wasmbin.OpcodeI64Load, uint32(8*i))
		e.Store(wasmbin.OpcodeI64Store, uint32(8*i))
	}

	// Padding: pad10*1 over a 136-byte rate, message length fixed at 64.
	// Byte 64 gets the start bit, byte 135 gets the end bit.
	e.LocalGet(localState)
	e.LocalGet(localState).Load(wasmbin.OpcodeI32Load8U, 64)
	e.I32Const(0x01).I32Xor()
	e.Store(wasmbin.OpcodeI32Store8, 64)

	e.LocalGet(localState)
	e.LocalGet(localState).Load(wasmbin.OpcodeI32Load8U, 135)
	e.I32Const(0x80).I32Xor()
	e.Store(wasmbin.OpcodeI32Store8, 135)

	emitKeccakF1600(e, l)

	// Squeeze the first 32 bytes of state into a fresh output buffer.
	e.I32Const(32).Call(lib.allocFuncID)
	e.LocalSet(localOut)
	for i := 0; i < 4; i++ {
		e.LocalGet(localOut)
		e.LocalGet(localState).Load(wasmbin.OpcodeI64Load, uint32(8*i))
		e.Store(wasmbin.OpcodeI64Store, uint32(8*i))
	}
	e.LocalGet(localOut).Return().End()

	return &wasmbin.Func{
			Locals: []wasmbin.Local{
				{Count: 1, Type: wasmbin.ValueTypeI32}, // state
				{Count: 5, Type: wasmbin.ValueTypeI64}, // bc
				{Count: 1, Type: wasmbin.ValueTypeI64}, // t
				{Count: 1, Type: wasmbin.ValueTypeI64}, // swap
				{Count: 1, Type: wasmbin.ValueTypeI32}, // out
			},
			Body: e.Bytes(),
		}, &wasmbin.FunctionType{
			Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32},
			Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
		}
}
