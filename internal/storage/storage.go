// Package storage implements the object storage codec (§4.5): packing a
// struct's fields left-to-right into 32-byte slots derived from an
// object's UID and owner (§3.7), with dynamic-length fields (vectors,
// strings, bytes, tables) indirected through a keccak-derived child slot
// and enums aligned to their own slot-sized region. Grounded on
// §3.6/§3.7's reserved-prefix layout and the two-round object-slot
// mapping internal/runtime.Library.ObjectSlot already implements, which
// this package calls.
package storage

import (
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/hostimports"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/runtime"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
)

func tooManyEnumsErr(name string) error {
	return cerr.New(cerr.PhaseStorage, cerr.KindUnsupportedType).
		Detailf("enum %s exceeds the %d distinct enums storage positions support", name, maxEnumsInTable).
		Build()
}

// maxEnumsInTable bounds how many distinct enum types this module's
// objects may reference in storage position: the reserved 128-byte
// enum-size table (§3.6, OffsetEnumSizeTable) holds one 16-byte row per
// enum, so 128/16 = 8 rows.
const maxEnumsInTable = 8

// Codec is the storage pack/unpack entry point, parallel in shape to
// internal/abi.Codec: a Context for type resolution and a Library for the
// runtime helpers it calls (object-slot derivation, keccak, byte swap,
// the enum size table), plus the host-import registry for the
// storage_load_bytes32/storage_cache_bytes32 calls every object read or
// write ultimately makes.
type Codec struct {
	Ctx  *types.Context
	Lib  *runtime.Library
	Host *hostimports.Registry

	enumTable map[enumIdentity]enumTableEntry
}

type enumIdentity struct {
	module string
	index  int
}

type enumTableEntry struct {
	idx  int
	size byte
}

// NewCodec builds a storage Codec.
func NewCodec(ctx *types.Context, lib *runtime.Library, host *hostimports.Registry) *Codec {
	return &Codec{Ctx: ctx, Lib: lib, Host: host, enumTable: make(map[enumIdentity]enumTableEntry)}
}

func identityOf(e *types.Enum) enumIdentity {
	return enumIdentity{module: string(e.ModuleID[:]), index: e.DefIndex}
}

// enumTableIndex assigns (on first use) a stable row index for e in the
// reserved enum-size table, interning by definition identity the same way
// internal/runtime.Library interns helpers by name.
func (c *Codec) enumTableIndex(e *types.Enum) (int, error) {
	id := identityOf(e)
	if entry, ok := c.enumTable[id]; ok {
		return entry.idx, nil
	}
	idx := len(c.enumTable)
	if idx >= maxEnumsInTable {
		return 0, tooManyEnumsErr(e.Name)
	}
	c.enumTable[id] = enumTableEntry{idx: idx, size: byte(e.StorageEncodedLen())}
	return idx, nil
}

// TableBytes renders the 128-byte enum-size table the module assembler
// places at memory.OffsetEnumSizeTable: each interned enum's 16-byte row
// is filled with its StorageEncodedLen() repeated across every variant
// slot, matching types.Enum.StorageSizeByOffsetTable's observation that
// the encoded length does not depend on which variant is active, only on
// the enum's own shape.
func (c *Codec) TableBytes() []byte {
	const rowBytes = 16
	out := make([]byte, maxEnumsInTable*rowBytes)
	for _, entry := range c.enumTable {
		row := out[entry.idx*rowBytes : (entry.idx+1)*rowBytes]
		for i := range row {
			row[i] = entry.size
		}
	}
	return out
}
