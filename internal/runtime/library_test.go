package runtime

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

func newTestLibrary() *Library {
	next := uint32(1) // 0 reserved for the allocator in these tests
	return NewLibrary(0, func() uint32 {
		id := next
		next++
		return id
	})
}

func TestLibraryLinksHelperOnce(t *testing.T) {
	lib := newTestLibrary()
	id1 := lib.Keccak256Of64()
	id2 := lib.Keccak256Of64()
	require.Equal(t, id1, id2, "second request must return the cached id")

	funcs, types, names := lib.Emitted()
	require.Len(t, funcs, 1)
	require.Len(t, types, 1)
	require.Equal(t, []string{Keccak256Of64Name}, names)
}

func TestLibraryAssignsDistinctIDsPerHelper(t *testing.T) {
	lib := newTestLibrary()
	a := lib.ByteSwap32()
	b := lib.ByteSwap64()
	require.NotEqual(t, a, b)
}

func TestKeccakF1600BodyIsWellFormed(t *testing.T) {
	lib := newTestLibrary()
	lib.Keccak256Of64()
	funcs, _, _ := lib.Emitted()
	require.Len(t, funcs, 1)
	require.NotEmpty(t, funcs[0].Body)
	require.Equal(t, byte(0x0b), funcs[0].Body[len(funcs[0].Body)-1])
}

func TestOverflowCheckedAddEndsWithEnd(t *testing.T) {
	lib := newTestLibrary()
	body, sig := lib.buildAddChecked(Width32)
	require.Equal(t, []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32}, sig.Params)
	require.Equal(t, byte(0x0b), body.Body[len(body.Body)-1])
}

func TestVectorAllocLinksAtFirstFreeID(t *testing.T) {
	lib := newTestLibrary()
	id := lib.VectorAlloc()
	require.Equal(t, uint32(1), id)
}

func TestU64ToDecimalASCIILinked(t *testing.T) {
	lib := newTestLibrary()
	id := lib.U64ToDecimalASCII()
	funcs, sigs, _ := lib.Emitted()
	require.Len(t, funcs, 1)
	require.Equal(t, wasmbin.ValueTypeI64, sigs[0].Params[0])
	require.Equal(t, uint32(1), id)
}
