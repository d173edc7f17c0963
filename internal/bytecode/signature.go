package bytecode

import (
	"encoding/json"
	"fmt"
)

// SignatureKind discriminates a SignatureToken's case, mirroring spec.md
// §3.1's tagged variant one-to-one at the raw-bytecode level (before it is
// lifted into the richer intermediate type model in internal/types).
type SignatureKind string

const (
	SigBool                SignatureKind = "Bool"
	SigU8                  SignatureKind = "U8"
	SigU16                 SignatureKind = "U16"
	SigU32                 SignatureKind = "U32"
	SigU64                 SignatureKind = "U64"
	SigU128                SignatureKind = "U128"
	SigU256                SignatureKind = "U256"
	SigAddress             SignatureKind = "Address"
	SigSigner              SignatureKind = "Signer"
	SigVector              SignatureKind = "Vector"
	SigReference           SignatureKind = "Reference"
	SigMutableReference    SignatureKind = "MutableReference"
	SigStruct              SignatureKind = "Struct"
	SigStructInstantiation SignatureKind = "StructInstantiation"
	SigEnum                SignatureKind = "Enum"
	SigEnumInstantiation   SignatureKind = "EnumInstantiation"
	SigTypeParameter       SignatureKind = "TypeParameter"
)

// SignatureToken is a raw Move type token as it appears in a module's
// signature table: a struct/enum reference names its definition by index,
// not yet resolved to a *StructDef/*EnumDef (that resolution happens when
// building the intermediate type model, internal/types).
type SignatureToken struct {
	Kind SignatureKind

	Inner *SignatureToken // Vector, Reference, MutableReference

	DefIndex    int              // Struct, StructInstantiation, Enum, EnumInstantiation
	DefModule   ModuleID         // Struct, StructInstantiation, Enum, EnumInstantiation
	TypeArgs    []SignatureToken // StructInstantiation, EnumInstantiation

	ParamIndex int // TypeParameter
}

type sigJSON struct {
	Kind       SignatureKind     `json:"kind"`
	Inner      *SignatureToken   `json:"inner,omitempty"`
	DefIndex   int               `json:"defIndex,omitempty"`
	DefModule  string            `json:"defModule,omitempty"`
	TypeArgs   []SignatureToken  `json:"typeArgs,omitempty"`
	ParamIndex int               `json:"paramIndex,omitempty"`
}

// UnmarshalJSON decodes the tagged-union wire shape `{"kind": "...", ...}`.
func (t *SignatureToken) UnmarshalJSON(data []byte) error {
	var raw sigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Kind = raw.Kind
	t.Inner = raw.Inner
	t.DefIndex = raw.DefIndex
	t.TypeArgs = raw.TypeArgs
	t.ParamIndex = raw.ParamIndex
	if raw.DefModule != "" {
		var id ModuleID
		n, err := fmt.Sscanf(raw.DefModule, "%x", &id)
		if err == nil && n == 1 {
			t.DefModule = id
		}
	}
	return nil
}

// MarshalJSON encodes back to the same wire shape (used by tests and any
// tooling that round-trips a fixture module).
func (t SignatureToken) MarshalJSON() ([]byte, error) {
	raw := sigJSON{
		Kind:       t.Kind,
		Inner:      t.Inner,
		DefIndex:   t.DefIndex,
		TypeArgs:   t.TypeArgs,
		ParamIndex: t.ParamIndex,
	}
	if t.DefModule != (ModuleID{}) {
		raw.DefModule = fmt.Sprintf("%x", t.DefModule)
	}
	return json.Marshal(raw)
}
