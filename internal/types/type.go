// Package types implements the intermediate type model (§3.1, §4.1): the
// canonical representation every Move type is lowered to, plus the pure
// layout queries the rest of the compiler depends on (WASM stack shape,
// ABI signature, storage field size). It is deliberately side-effect
// free — nothing here allocates WASM linear memory or emits instructions;
// that is internal/runtime's job, operating on the Type values this
// package produces.
package types

import "github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"

// Kind discriminates a Type's case, one-to-one with spec.md §3.1's tagged
// variant.
type Kind int

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindRef
	KindMutRef
	KindStruct
	KindGenericStructInstance
	KindEnum
	KindGenericEnumInstance
	KindTypeParameter
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindU8:
		return "U8"
	case KindU16:
		return "U16"
	case KindU32:
		return "U32"
	case KindU64:
		return "U64"
	case KindU128:
		return "U128"
	case KindU256:
		return "U256"
	case KindAddress:
		return "Address"
	case KindSigner:
		return "Signer"
	case KindVector:
		return "Vector"
	case KindRef:
		return "Ref"
	case KindMutRef:
		return "MutRef"
	case KindStruct:
		return "Struct"
	case KindGenericStructInstance:
		return "GenericStructInstance"
	case KindEnum:
		return "Enum"
	case KindGenericEnumInstance:
		return "GenericEnumInstance"
	case KindTypeParameter:
		return "TypeParameter"
	default:
		return "Unknown"
	}
}

// Type is the intermediate type model's tagged union (§3.1). It is a
// plain value type: two Types with equal fields represent the same Move
// type, so Type can be used as a map key component (after typeKey()).
type Type struct {
	Kind Kind

	Elem *Type // Vector, Ref, MutRef

	ModuleID bytecode.ModuleID // Struct, GenericStructInstance, Enum, GenericEnumInstance
	DefIndex int               // Struct, GenericStructInstance, Enum, GenericEnumInstance
	VMTag    bytecode.VMTag
	TypeArgs []Type // GenericStructInstance, GenericEnumInstance

	ParamIndex int // TypeParameter
}

func Bool() Type    { return Type{Kind: KindBool} }
func U8() Type      { return Type{Kind: KindU8} }
func U16() Type     { return Type{Kind: KindU16} }
func U32() Type     { return Type{Kind: KindU32} }
func U64() Type     { return Type{Kind: KindU64} }
func U128() Type    { return Type{Kind: KindU128} }
func U256() Type    { return Type{Kind: KindU256} }
func Address() Type { return Type{Kind: KindAddress} }
func Signer() Type  { return Type{Kind: KindSigner} }
func Unknown() Type { return Type{Kind: KindUnknown} }

func Vector(elem Type) Type    { return Type{Kind: KindVector, Elem: &elem} }
func Ref(elem Type) Type       { return Type{Kind: KindRef, Elem: &elem} }
func MutRef(elem Type) Type    { return Type{Kind: KindMutRef, Elem: &elem} }
func TypeParameter(i int) Type { return Type{Kind: KindTypeParameter, ParamIndex: i} }

// IsReference reports whether t is a Ref or MutRef (§3.1 invariant:
// references never appear inside struct/enum fields).
func (t Type) IsReference() bool { return t.Kind == KindRef || t.Kind == KindMutRef }

// IsGeneric reports whether t still contains an unsubstituted
// TypeParameter anywhere in its structure — such a type must never reach
// translation (§3.1 invariant).
func (t Type) IsGeneric() bool {
	switch t.Kind {
	case KindTypeParameter:
		return true
	case KindVector, KindRef, KindMutRef:
		return t.Elem.IsGeneric()
	case KindGenericStructInstance, KindGenericEnumInstance:
		for _, a := range t.TypeArgs {
			if a.IsGeneric() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Equal reports structural equality between two intermediate types,
// treating Unknown as a wildcard compatible with any type (§3.4) — used by the compile-time type stack's expected-top-of-stack
// checks.
func (t Type) Equal(o Type) bool {
	if t.Kind == KindUnknown || o.Kind == KindUnknown {
		return true
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindVector, KindRef, KindMutRef:
		return t.Elem.Equal(*o.Elem)
	case KindStruct, KindEnum:
		return t.ModuleID == o.ModuleID && t.DefIndex == o.DefIndex
	case KindGenericStructInstance, KindGenericEnumInstance:
		if t.ModuleID != o.ModuleID || t.DefIndex != o.DefIndex || len(t.TypeArgs) != len(o.TypeArgs) {
			return false
		}
		for i := range t.TypeArgs {
			if !t.TypeArgs[i].Equal(o.TypeArgs[i]) {
				return false
			}
		}
		return true
	case KindTypeParameter:
		return t.ParamIndex == o.ParamIndex
	default:
		return true
	}
}

// Substitute replaces every TypeParameter(i) in t with args[i], used when
// monomorphizing a generic struct/enum/function instantiation (§4.7).
func (t Type) Substitute(args []Type) Type {
	switch t.Kind {
	case KindTypeParameter:
		if t.ParamIndex < len(args) {
			return args[t.ParamIndex]
		}
		return t
	case KindVector:
		e := t.Elem.Substitute(args)
		return Vector(e)
	case KindRef:
		e := t.Elem.Substitute(args)
		return Ref(e)
	case KindMutRef:
		e := t.Elem.Substitute(args)
		return MutRef(e)
	case KindGenericStructInstance, KindGenericEnumInstance:
		newArgs := make([]Type, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			newArgs[i] = a.Substitute(args)
		}
		return Type{Kind: t.Kind, ModuleID: t.ModuleID, DefIndex: t.DefIndex, VMTag: t.VMTag, TypeArgs: newArgs}
	default:
		return t
	}
}
