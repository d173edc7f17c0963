// Package abi implements the Solidity-ABI-compatible calldata codec
// (§4.4): function selector computation, head/tail encoding for
// function arguments and return values, and enum tuple encoding.
package abi

import (
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
)

// Selector computes the 4-byte Solidity function selector for an entry
// function: the first four bytes of keccak256("name(type1,type2,...)"),
// where the name is camelCased from the Move identifier and
// VM-handled parameters (TxContext, by value or by reference) are elided
// from the signature per §4.8. This runs at compile time over identifiers already known to the
// compiler, so it calls golang.org/x/crypto/sha3 directly rather than
// going through the runtime's from-scratch WASM Keccak256Of64 (that one
// exists only because the *compiled module* needs to hash at runtime
// with no host import available for it).
func Selector(ctx *types.Context, name string, params []types.Type) (uint32, error) {
	sig, err := Signature(ctx, name, params)
	if err != nil {
		return 0, err
	}
	return keccakSelector(sig), nil
}

// ErrorSelector computes the 4-byte selector for a custom error struct's
// revert blob (spec.md §6 "Return data": "a custom error blob (4-byte
// selector + ABI-encoded fields of the error struct)"), grounded on the
// same keccak256(identifier(types...)) formula Selector uses for
// ordinary functions, except the struct's own Name is hashed verbatim —
// Solidity custom errors are not camelCased the way function names are.
func ErrorSelector(ctx *types.Context, name string, fields []types.Type) (uint32, error) {
	sig, err := identifierSignature(ctx, name, fields, false)
	if err != nil {
		return 0, err
	}
	return keccakSelector(sig), nil
}

// EventSignatureHash computes an event's topic0 (spec.md §6 "Event
// emission"), grounded on original_source's abi_types/event_encoding.rs
// move_signature_to_event_signature_hash: the full 32-byte
// keccak256(identifier(types...)) of every field (indexed or not —
// indexed-ness only changes which ABI slot a field's value lands in,
// never the signature string), with the struct's own Name hashed
// verbatim, same as ErrorSelector.
func EventSignatureHash(ctx *types.Context, name string, fields []types.Type) ([32]byte, error) {
	sig, err := identifierSignature(ctx, name, fields, false)
	if err != nil {
		return [32]byte{}, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sig))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func keccakSelector(sig string) uint32 {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sig))
	sum := h.Sum(nil)
	return uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
}

// Signature renders "camelName(type1,type2,...)" for function-selector
// hashing.
func Signature(ctx *types.Context, name string, params []types.Type) (string, error) {
	return identifierSignature(ctx, name, params, true)
}

// identifierSignature renders "name(type1,type2,...)" (camelCasing name
// first when camel is set) for keccak256-based selector/topic0 hashing,
// shared by Signature (function selectors), ErrorSelector and
// EventSignatureHash.
func identifierSignature(ctx *types.Context, name string, params []types.Type, camel bool) (string, error) {
	var b strings.Builder
	if camel {
		b.WriteString(camelCase(name))
	} else {
		b.WriteString(name)
	}
	b.WriteByte('(')
	first := true
	for _, p := range params {
		if isVMHandled(p) {
			continue
		}
		solName, ok := p.SolName(ctx)
		if !ok {
			return "", cerr.New(cerr.PhaseABI, cerr.KindUnsupportedType).
				Detailf("parameter type %s has no Solidity ABI representation", p.Kind).
				Build()
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(solName)
	}
	b.WriteByte(')')
	return b.String(), nil
}

// isVMHandled reports whether a parameter is supplied by the entrypoint
// router itself rather than decoded from calldata, mirroring §4.8's
// "VM-handled-type elision" rule for selector computation. TxContext
// (after unwrapping any reference) is the only such type.
func isVMHandled(t types.Type) bool {
	for t.Kind == types.KindRef || t.Kind == types.KindMutRef {
		t = *t.Elem
	}
	return t.Kind == types.KindStruct && t.VMTag == bytecode.VMTagTxContext
}

// camelCase converts a Move identifier to lowerCamelCase: underscores are
// dropped, the letter after each one is upper-cased, and a leading
// uppercase letter is lower-cased ("vec_swap" -> "vecSwap",
// "Withdraw" -> "withdraw").
func camelCase(name string) string {
	out := make([]rune, 0, len(name))
	upper := false
	for _, r := range name {
		if r == '_' {
			upper = len(out) > 0
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		out = append(out, r)
	}
	if len(out) > 0 && out[0] >= 'A' && out[0] <= 'Z' {
		out[0] += 'a' - 'A'
	}
	return string(out)
}
