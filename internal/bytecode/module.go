// Package bytecode defines the parsed-Move-bytecode input contract this
// compiler consumes (§3.3). Move source parsing and package/dependency
// resolution are explicitly out of scope (spec.md §1 Non-goals); this
// package only has to model the tables a compiled Move package already
// carries, deserialized from a small JSON schema written by whatever
// upstream tool produced the bytecode (excluded per spec.md §1).
package bytecode

// ModuleID is a module's 32-byte identity: address || module-name-hash
// (§3.3).
type ModuleID [32]byte

// VMTag discriminates VM-handled structs (§3.1) that receive special
// compiler treatment instead of ordinary struct lowering.
type VMTag string

const (
	VMTagNone          VMTag = ""
	VMTagTxContext     VMTag = "TxContext"
	VMTagString        VMTag = "String"
	VMTagBytes         VMTag = "Bytes"
	VMTagUID           VMTag = "UID"
	VMTagID            VMTag = "ID"
	VMTagNamedID       VMTag = "NamedId"
	VMTagOwnedObject   VMTag = "OwnedObject"
	VMTagSharedObject  VMTag = "SharedObject"
	VMTagFrozenObject  VMTag = "FrozenObject"
	VMTagDynamicField  VMTag = "DynamicField"
	VMTagTable         VMTag = "Table"
)

// StructTag classifies a struct's role beyond plain data (§3.2).
type StructTag string

const (
	StructTagCommon   StructTag = "common"
	StructTagEvent    StructTag = "event"
	StructTagError    StructTag = "error"
	StructTagExternal StructTag = "external"
	StructTagGeneric  StructTag = "generic"
)

// Ability is one of Move's struct abilities; only Key (object-ness) and
// Copy/Drop matter to this compiler's lowering decisions.
type Ability string

const (
	AbilityCopy  Ability = "copy"
	AbilityDrop  Ability = "drop"
	AbilityStore Ability = "store"
	AbilityKey   Ability = "key"
)

// AbilitySet is a small set of Ability.
type AbilitySet map[Ability]bool

func (s AbilitySet) Has(a Ability) bool { return s[a] }

// FieldDef is one field of a struct or enum variant.
type FieldDef struct {
	Name string
	Type SignatureToken
}

// StructDef is a struct's definition in the module's struct table (§3.2).
type StructDef struct {
	Index          int
	Name           string
	Fields         []FieldDef
	Abilities      AbilitySet
	TypeParameters int // count of generic slots; 0 for non-generic structs
	Tag            StructTag
	VMTag          VMTag
}

// IsObject reports whether values of this struct carry a UID and are
// persisted under an ownership-qualified storage slot (§3.7).
func (s *StructDef) IsObject() bool { return s.Abilities.Has(AbilityKey) }

// VariantDef is one case of an enum.
type VariantDef struct {
	Name   string
	Fields []SignatureToken
}

// EnumDef is an enum's definition in the module's enum table (§3.2).
type EnumDef struct {
	Index    int
	Name     string
	Variants []VariantDef
}

// IsSimple reports whether no variant carries any field, in which case
// the enum lowers to a bare u8 discriminator (§3.2).
func (e *EnumDef) IsSimple() bool {
	for _, v := range e.Variants {
		if len(v.Fields) > 0 {
			return false
		}
	}
	return true
}

// NativeKind discriminates a function handle whose body the compiler
// itself supplies (§9's supplemented native_functions/* features) rather
// than one translated from a Move bytecode instruction sequence. A
// handle with Native == NativeKindNone must have a matching FunctionDef
// in the module's Functions table; one with any other NativeKind never
// does, and the translator's native-lowering path builds its body from
// Parameters/Returns/NativePayable/NativeHasGasArg alone.
type NativeKind string

const (
	NativeKindNone NativeKind = ""

	// NativeKindTypeName is std::type_name::get<T>(): a generic native
	// resolved entirely at monomorphization time, returning T's
	// ABI-visible type name as a Move String.
	NativeKindTypeName NativeKind = "type_name_get"

	// NativeKindExternalCall is a cross-contract call or transfer: its
	// first parameter is the callee handle (a struct whose first field
	// is the target address), an optional value parameter when
	// NativePayable, an optional gas parameter when NativeHasGasArg,
	// and the remaining parameters are the callee's own arguments,
	// ABI-encoded into calldata under a selector computed from this
	// handle's own Name and those remaining parameter types.
	NativeKindExternalCall NativeKind = "external_call"

	// NativeKindEventEmit is the event-emission native (§6 "Event
	// emission"): its single parameter, after monomorphization
	// substitutes the event struct for the native's own generic type
	// parameter, is the packed event struct to emit through emit_log.
	NativeKindEventEmit NativeKind = "event_emit"

	// NativeKindErrorAbort reverts with a custom error struct's ABI
	// blob (§6 "Return data": "a custom error blob (4-byte selector +
	// ABI-encoded fields of the error struct)"), the counterpart to
	// errenc's fixed Error(string) blobs for a struct tagged error. Its
	// single parameter, likewise substituted by monomorphization, is
	// the packed error struct.
	NativeKindErrorAbort NativeKind = "error_abort"
)

// FunctionHandle identifies a callable function: its owning module, name,
// and signature (by index into the module's signature table).
type FunctionHandle struct {
	Index          int
	Module         ModuleID
	Name           string
	Parameters     []SignatureToken
	Returns        []SignatureToken
	TypeParameters int

	// Native is NativeKindNone for an ordinary Move function (the
	// common case); any other value marks this handle as compiler-
	// supplied (§9 NEW).
	Native NativeKind
	// NativePayable and NativeHasGasArg only apply when Native ==
	// NativeKindExternalCall: they record whether Parameters carries an
	// explicit value/gas argument immediately after the callee handle,
	// mirroring the original compiler's gas_argument_present flag and
	// the Move-source #[ext(payable)] modifier.
	NativePayable   bool
	NativeHasGasArg bool
}

// FunctionAttributes carries the source-level annotations that select
// entrypoint-router and ABI treatment (§3.3): #[ext(entry)], #[ext(public)],
// #[ext(payable)], event topic-index counts, and so on.
type FunctionAttributes struct {
	IsEntry   bool
	IsPublic  bool
	IsPayable bool
}

// EventAttributes records how many leading fields of an event struct are
// indexed topics, and whether topic0 (the signature hash) is emitted
// (non-anonymous events emit it; §6).
type EventAttributes struct {
	IndexedFieldCount int
	Anonymous         bool
}

// FunctionDef is a function's compiled body: the code unit referenced by
// a FunctionHandle.
type FunctionDef struct {
	HandleIndex int
	Locals      []SignatureToken
	Code        []Instruction
	Attributes  FunctionAttributes
}

// Constant is an entry in the module's constant pool.
type Constant struct {
	Type SignatureToken
	Data []byte
}

// Module is one compiled Move module's tables (§3.3).
type Module struct {
	ID ModuleID

	ConstantPool    []Constant
	Identifiers     []string
	FunctionHandles []FunctionHandle
	Structs         []StructDef
	Enums           []EnumDef
	Functions       []FunctionDef

	// EventAttrs maps a struct index (in Structs) tagged event to its
	// topic configuration.
	EventAttrs map[int]EventAttributes

	// InitFunctionIndex, if >= 0, is the index into Functions of the
	// module's `init` function, triggering constructor synthesis (§4.8).
	InitFunctionIndex int
}

// StructByName returns the struct definition with the given identifier,
// or nil.
func (m *Module) StructByName(name string) *StructDef {
	for i := range m.Structs {
		if m.Structs[i].Name == name {
			return &m.Structs[i]
		}
	}
	return nil
}

// FunctionByIndex returns the function handle at idx, or nil if out of
// range — callers should surface a cerr.KindMalformedIndex error.
func (m *Module) FunctionByIndex(idx int) *FunctionHandle {
	if idx < 0 || idx >= len(m.FunctionHandles) {
		return nil
	}
	return &m.FunctionHandles[idx]
}
