// Package memory implements the reserved linear-memory prefix (§3.6) and
// the bump allocator (§4.2) every emitted module links.
package memory

import (
	"golang.org/x/crypto/sha3"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/wasmbin"
)

// Reserved-prefix offsets, bit-exact per §3.6. Every component that reads
// or writes one of these scratch regions imports its offset from here
// rather than hard-coding it, so the layout stays a single source of
// truth shared by the allocator, the runtime library, and the storage
// codec.
const (
	OffsetZeroConstant       = 0   // 32 bytes: zero constant
	OffsetSlotIncrement      = 32  // 32 bytes: u256(1) little-endian
	OffsetSlotScratch        = 64  // 32 bytes: current slot data scratch (owned by internal/storage)
	OffsetObjectsMappingRoot = 96  // 32 bytes: objects-mapping slot root
	OffsetMappingScratch     = 128 // 32 bytes: mapping-slot computation scratch (owned by internal/storage)
	OffsetSharedOwnerKey     = 160 // 32 bytes: u256(1) big-endian
	OffsetFrozenOwnerKey     = 192 // 32 bytes: u256(2) big-endian
	OffsetStorageOwnerScratch = 224 // 32 bytes (owned by internal/storage)
	OffsetAbortMessagePtr    = 256 // 4 bytes
	OffsetEnumSizeTable      = 260 // 128 bytes: per-enum storage-size-by-offset table
	OffsetCalldataLen        = 388 // 4 bytes
	OffsetCalldataPtr        = 396 // 4 bytes
	OffsetInitKey            = 404 // 32 bytes: keccak256("init_key"), owned by internal/entrypoint

	// ReservedPrefixSize is the total size of the fixed prefix. §3.6 fixes
	// the first 404 bytes; the constructor guard key tacked on after it
	// grows the prefix to 436. Allocator state — and, after it, interned
	// runtime-error blobs (§4.10) — begins immediately after.
	ReservedPrefixSize = 436
)

// InitialPageSize is one WASM page, the unit memory.grow operates in.
const InitialPageSize = 65536

// ReservedData returns the active data segments that initialize the
// fixed prefix: the slot increment, the two reserved owner keys, the
// objects-mapping root and the constructor's init key. Everything else
// in the prefix (the zero constant, scratch regions, the abort pointer,
// the enum-size table, the calldata fields) starts
// zeroed by the WASM spec's implicit zero-initialization of linear
// memory and is written by the code that uses it before every read.
func ReservedData() []*wasmbin.Data {
	sharedOwnerKey := make([]byte, 32)
	sharedOwnerKey[31] = 1 // u256(1), big-endian
	frozenOwnerKey := make([]byte, 32)
	frozenOwnerKey[31] = 2 // u256(2), big-endian
	slotIncrement := make([]byte, 32)
	slotIncrement[0] = 1 // u256(1), little-endian

	return []*wasmbin.Data{
		{Offset: OffsetSlotIncrement, Bytes: slotIncrement},
		{Offset: OffsetSharedOwnerKey, Bytes: sharedOwnerKey},
		{Offset: OffsetFrozenOwnerKey, Bytes: frozenOwnerKey},
		{Offset: OffsetObjectsMappingRoot, Bytes: objectsMappingRoot()},
		{Offset: OffsetInitKey, Bytes: keccakOf("init_key")},
	}
}

// objectsMappingRoot is keccak256("objects"), computed once at compiler
// build time rather than at WASM runtime: internal/storage's
// UID-to-current-owner mapping hashes a UID against this fixed root the
// same way a Solidity mapping's slot is keccak256(key || mapping slot),
// giving every module's owner-lookup namespace a stable, collision-free
// base distinct from the object-data root derived in §3.7.
func objectsMappingRoot() []byte {
	return keccakOf("objects")
}

// keccakOf hashes a fixed label at compiler build time. Used for the
// handful of storage keys that are the same across every emitted module
// and therefore never need the runtime keccak helper at all.
func keccakOf(label string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(label))
	return h.Sum(nil)
}
