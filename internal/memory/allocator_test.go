package memory

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/leb128"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

func TestAllocatorGlobalsStartAtStaticEnd(t *testing.T) {
	a := &Allocator{StaticEnd: ReservedPrefixSize}
	globals := a.Globals()
	require.Len(t, globals, 2)
	want := append([]byte{wasmbin.OpcodeI32Const}, leb128.EncodeInt32(ReservedPrefixSize)...)
	want = append(want, wasmbin.OpcodeEnd)
	require.Equal(t, want, globals[0].Init)
}

func TestAllocatorPagesRoundsUpAndFloorsAtOne(t *testing.T) {
	require.Equal(t, uint32(1), (&Allocator{StaticEnd: 0}).Pages())
	require.Equal(t, uint32(1), (&Allocator{StaticEnd: ReservedPrefixSize}).Pages())
	require.Equal(t, uint32(2), (&Allocator{StaticEnd: InitialPageSize + 1}).Pages())
}

func TestAllocatorAvailableAccountsForExtraStaticData(t *testing.T) {
	const tableSize = 1000
	a := &Allocator{StaticEnd: ReservedPrefixSize + tableSize}
	globals := a.Globals()
	want := append([]byte{wasmbin.OpcodeI32Const}, leb128.EncodeInt32(InitialPageSize-ReservedPrefixSize-tableSize)...)
	want = append(want, wasmbin.OpcodeEnd)
	require.Equal(t, want, globals[1].Init)
}

func TestAllocatorBodyWellFormed(t *testing.T) {
	a := &Allocator{GlobalNextFree: 0, GlobalAvailable: 1, FuncID: 0}
	body := a.Body()
	require.NotEmpty(t, body.Body)
	require.Equal(t, byte(0x0b), body.Body[len(body.Body)-1], "function body must end with OpcodeEnd")
}

func TestReservedDataCoversOwnerKeys(t *testing.T) {
	segs := ReservedData()
	found := map[uint32][]byte{}
	for _, s := range segs {
		found[s.Offset] = s.Bytes
	}
	require.Equal(t, byte(1), found[OffsetSharedOwnerKey][31])
	require.Equal(t, byte(2), found[OffsetFrozenOwnerKey][31])
	require.Equal(t, byte(1), found[OffsetSlotIncrement][0])
	require.Len(t, found[OffsetInitKey], 32)
	require.NotZero(t, found[OffsetInitKey])
}
