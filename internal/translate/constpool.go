package translate

import "github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"

// ConstPool interns one static data-segment blob per distinct byte
// sequence a compile-time-known Move value (LdConst, LdU128, LdU256)
// ever lowers to (§4.7), mirroring internal/errenc.Table's
// base/offsets/blobs shape: identical bytes collapse onto the same
// segment regardless of how many sites reference them, and the
// assembler appends Data() after every other static region.
type ConstPool struct {
	base    uint32
	offsets map[string]uint32
	blobs   [][]byte
}

// NewConstPool starts interning at base, the first free byte after
// internal/errenc.Table's own interned region.
func NewConstPool(base uint32) *ConstPool {
	return &ConstPool{base: base, offsets: map[string]uint32{}}
}

// Offset returns blob's fixed memory offset, interning it on first
// request.
func (p *ConstPool) Offset(blob []byte) uint32 {
	key := string(blob)
	if off, ok := p.offsets[key]; ok {
		return off
	}
	off := p.End()
	p.offsets[key] = off
	p.blobs = append(p.blobs, blob)
	return off
}

// End returns base plus the size of every blob interned so far.
func (p *ConstPool) End() uint32 {
	end := p.base
	for _, b := range p.blobs {
		end += uint32(len(b))
	}
	return end
}

// Data returns one data segment per interned blob, in intern order.
func (p *ConstPool) Data() []*wasmbin.Data {
	segs := make([]*wasmbin.Data, 0, len(p.blobs))
	off := p.base
	for _, b := range p.blobs {
		segs = append(segs, &wasmbin.Data{Offset: off, Bytes: b})
		off += uint32(len(b))
	}
	return segs
}
