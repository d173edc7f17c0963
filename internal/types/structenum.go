package types

import "github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"

// Field is one resolved struct field: its optional name and its
// intermediate type.
type Field struct {
	Name string
	Type Type
}

// Struct is the intermediate representation of a struct (§3.2): its
// identity, resolved fields, object-ness, and heap size. Every field is
// stored as a pointer regardless of the field's own stack/heap nature
// (§9), so HeapSize is always len(Fields)*4.
type Struct struct {
	ModuleID       bytecode.ModuleID
	DefIndex       int
	Name           string
	Fields         []Field
	IsObject       bool
	Tag            bytecode.StructTag
	VMTag          bytecode.VMTag
	TypeParameters int
	HeapSize       int
}

// Instantiate substitutes typeArgs for this struct's type parameters,
// returning a concrete Struct with no remaining TypeParameter fields.
// Only meaningful when TypeParameters > 0.
func (s *Struct) Instantiate(typeArgs []Type) *Struct {
	fields := make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = Field{Name: f.Name, Type: f.Type.Substitute(typeArgs)}
	}
	return &Struct{
		ModuleID: s.ModuleID,
		DefIndex: s.DefIndex,
		Name:     s.Name,
		Fields:   fields,
		IsObject: s.IsObject,
		Tag:      s.Tag,
		VMTag:    s.VMTag,
		HeapSize: len(fields) * 4,
	}
}

// Variant is one resolved enum case.
type Variant struct {
	Name   string
	Fields []Type
}

// Enum is the intermediate representation of an enum (§3.2).
type Enum struct {
	ModuleID       bytecode.ModuleID
	DefIndex       int
	Name           string
	Variants       []Variant
	TypeParameters int
}

// IsSimple reports whether no variant carries any field (§3.2): such an
// enum lowers to a bare u8 discriminator.
func (e *Enum) IsSimple() bool {
	for _, v := range e.Variants {
		if len(v.Fields) > 0 {
			return false
		}
	}
	return true
}

// HeapSize returns the enum's heap-allocated size: a 4-byte discriminator
// followed by space for the widest variant's fields, each stored as a
// pointer (§9, §4.7 Pack/Unpack).
func (e *Enum) HeapSize() int {
	if e.IsSimple() {
		return 4
	}
	max := 0
	for _, v := range e.Variants {
		if n := len(v.Fields) * 4; n > max {
			max = n
		}
	}
	return 4 + max
}

// Instantiate substitutes typeArgs for this enum's type parameters.
func (e *Enum) Instantiate(typeArgs []Type) *Enum {
	variants := make([]Variant, len(e.Variants))
	for i, v := range e.Variants {
		fields := make([]Type, len(v.Fields))
		for j, f := range v.Fields {
			fields[j] = f.Substitute(typeArgs)
		}
		variants[i] = Variant{Name: v.Name, Fields: fields}
	}
	return &Enum{ModuleID: e.ModuleID, DefIndex: e.DefIndex, Name: e.Name, Variants: variants}
}

// StorageSizeByOffsetTable precomputes, for each possible starting byte
// offset 0..31 within a storage slot, the total number of bytes this
// enum occupies when packed starting at that offset (§4.5, §3.6's
// 128-byte reserved table). Index i holds storageEncodedLen(), the
// enum's storage-encoded byte length, laid out starting at offset i; since the enum's storage
// shape does not depend on the starting offset (only where the flush
// boundary falls), every entry holds the same encoded length, but the
// table is precomputed as a flat lookup so the storage codec never
// branches on the variant at runtime.
func (e *Enum) StorageSizeByOffsetTable() [32]byte {
	var table [32]byte
	size := byte(e.storageEncodedLen())
	for i := range table {
		table[i] = size
	}
	return table
}

// StorageEncodedLen exports storageEncodedLen for the storage codec
// (§4.5), which aligns an enum to its own slot-aligned region sized by
// this value rather than splitting it mid-slot.
func (e *Enum) StorageEncodedLen() int { return e.storageEncodedLen() }

// storageEncodedLen is the number of storage bytes this enum occupies:
// 1 discriminator byte plus the widest variant's fields, each occupying
// StorageFieldSize() bytes (not compacted across slots here — cross-slot
// placement is the storage codec's job, §4.5).
func (e *Enum) storageEncodedLen() int {
	max := 0
	for _, v := range e.Variants {
		n := 0
		for _, f := range v.Fields {
			n += f.StorageFieldSize()
		}
		if n > max {
			max = n
		}
	}
	return 1 + max
}
