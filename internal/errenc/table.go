package errenc

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// Table interns one pre-encoded Error(string) blob per Kind actually
// used by a compiled module, laid out as data segments immediately
// after the fixed reserved prefix (§3.6) and the allocator's static
// globals. A kind is encoded at most once regardless of how many
// call sites reference it ("the runtime returns the fixed offset").
type Table struct {
	base    uint32
	offsets map[Kind]uint32
	blobs   [][]byte
}

// NewTable starts interning at base, the first free byte after every
// other static region the module assembler has already sized.
func NewTable(base uint32) *Table {
	return &Table{base: base, offsets: map[Kind]uint32{}}
}

// Offset returns k's blob's fixed memory offset, interning it on first
// request.
func (t *Table) Offset(k Kind) uint32 {
	if off, ok := t.offsets[k]; ok {
		return off
	}
	blob := EncodeErrorBlob(k.Message())
	off := t.End()
	t.offsets[k] = off
	t.blobs = append(t.blobs, blob)
	return off
}

// End returns base plus the size of every blob interned so far: the
// next free static byte, which the module assembler feeds back into the
// allocator as its real starting point once table construction is done
// for the whole module.
func (t *Table) End() uint32 {
	end := t.base
	for _, b := range t.blobs {
		end += uint32(len(b))
	}
	return end
}

// Data returns one data segment per interned blob, in intern order, for
// the assembler to append to the module's data section.
func (t *Table) Data() []*wasmbin.Data {
	segs := make([]*wasmbin.Data, 0, len(t.blobs))
	off := t.base
	for _, b := range t.blobs {
		segs = append(segs, &wasmbin.Data{Offset: off, Bytes: b})
		off += uint32(len(b))
	}
	return segs
}
