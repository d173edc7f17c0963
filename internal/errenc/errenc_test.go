package errenc

import (
	"encoding/binary"
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
	"github.com/stretchr/testify/require"
)

type fakeScratch struct{ next uint32 }

func (f *fakeScratch) NextI32() uint32 { f.next++; return f.next }
func (f *fakeScratch) NextI64() uint32 { f.next++; return f.next }

func newTestLibrary() *runtime.Library {
	next := uint32(1)
	return runtime.NewLibrary(0, func() uint32 {
		id := next
		next++
		return id
	})
}

func TestEncodeErrorBlobLayout(t *testing.T) {
	blob := EncodeErrorBlob("division by zero")

	require.Equal(t, uint32(len(blob)-4), binary.LittleEndian.Uint32(blob[0:4]))
	require.Equal(t, ErrorStringSelector, binary.BigEndian.Uint32(blob[4:8]))
	require.Equal(t, uint64(0x20), binary.BigEndian.Uint64(blob[32:40]))
	require.Equal(t, uint64(len("division by zero")), binary.BigEndian.Uint64(blob[64:72]))
	require.Equal(t, "division by zero", string(blob[72:72+len("division by zero")]))

	// Tail is zero-padded up to a 32-byte boundary.
	require.Equal(t, 0, (len(blob)-72)%32)
	for _, b := range blob[72+len("division by zero"):] {
		require.Zero(t, b)
	}
}

func TestEncodeErrorBlobEmptyMessage(t *testing.T) {
	blob := EncodeErrorBlob("")
	require.Equal(t, uint64(0), binary.BigEndian.Uint64(blob[64:72]))
	require.Len(t, blob, 72) // no message bytes, no padding needed
}

func TestKindMessagesAreAllDistinct(t *testing.T) {
	seen := map[string]bool{}
	for k := KindOverflow; k <= KindNoSelectorMatch; k++ {
		msg := k.Message()
		require.NotEmpty(t, msg)
		require.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true
	}
}

func TestTableInternsEachKindOnce(t *testing.T) {
	table := NewTable(1000)

	off1 := table.Offset(KindOverflow)
	off2 := table.Offset(KindOverflow)
	require.Equal(t, off1, off2, "second request for the same kind must return the same offset")
	require.Equal(t, uint32(1000), off1)

	offOther := table.Offset(KindDivisionByZero)
	require.NotEqual(t, off1, offOther)

	data := table.Data()
	require.Len(t, data, 2, "only the two distinct kinds actually requested are interned")
	require.Equal(t, uint32(1000), data[0].Offset)
	require.Equal(t, off1+uint32(len(EncodeErrorBlob(KindOverflow.Message()))), data[1].Offset)

	require.Equal(t, table.End(), data[1].Offset+uint32(len(data[1].Bytes)))
}

func TestTableDataBytesMatchEncodeErrorBlob(t *testing.T) {
	table := NewTable(0)
	off := table.Offset(KindOutOfBounds)
	data := table.Data()
	require.Equal(t, off, data[0].Offset)
	require.Equal(t, EncodeErrorBlob(KindOutOfBounds.Message()), data[0].Bytes)
}

func TestEmitDynamicBlobEmitsAllocAndStores(t *testing.T) {
	lib := newTestLibrary()
	c := NewCodec(lib)
	sc := &fakeScratch{}
	e := wasmbin.NewEmitter()

	msgPtr := uint32(0)
	dst := c.EmitDynamicBlob(msgPtr, sc, e)

	require.NotZero(t, dst)
	bytes := e.Bytes()
	require.Contains(t, bytes, byte(wasmbin.OpcodeCall))
	require.Contains(t, bytes, byte(wasmbin.OpcodeI32Store8))
	require.Contains(t, bytes, byte(wasmbin.OpcodeI64Store))
	require.Contains(t, bytes, byte(wasmbin.OpcodeLoop))
}

func TestEmitAbortFromCodeCallsDecimalASCIIThenBuildsBlob(t *testing.T) {
	lib := newTestLibrary()
	c := NewCodec(lib)
	sc := &fakeScratch{}
	e := wasmbin.NewEmitter()

	dst := c.EmitAbortFromCode(0, sc, e)
	require.NotZero(t, dst)

	funcs, _, names := lib.Emitted()
	require.Contains(t, names, "u64_to_decimal_ascii")
	require.Contains(t, names, "byte_swap_64")
	require.NotEmpty(t, funcs)
}

func TestInstallOverflowTrapWiresTableOffsetIntoTrapBody(t *testing.T) {
	lib := newTestLibrary()
	c := NewCodec(lib)
	table := NewTable(2000)

	c.InstallOverflowTrap(table)
	lib.OverflowTrapFunc()

	funcs, _, names := lib.Emitted()
	var trapBody []byte
	for i, n := range names {
		if n == "trap_overflow" {
			trapBody = funcs[i].Body
		}
	}
	require.NotNil(t, trapBody, "trap_overflow must be linked once requested")
	require.Contains(t, trapBody, byte(wasmbin.OpcodeUnreachable))
	require.Contains(t, trapBody, byte(wasmbin.OpcodeI32Store))

	// The interned KindOverflow offset must have been assigned by
	// installing the trap body, not left to a later, uncoordinated
	// caller.
	require.Equal(t, uint32(2000), table.Offset(KindOverflow))
}
