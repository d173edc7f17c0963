// Package errenc renders compiler-known and runtime-computed failures as
// Solidity `Error(string)` revert blobs (§4.10): a 4-byte internal
// accounting length, the `Error(string)` selector, the ABI head/tail for
// a single string argument, and the message bytes. Compile-time-known
// messages are interned once into module data segments (Table);
// messages that depend on a runtime value (an abort code, a computed
// index) are assembled in linear memory at the point of failure
// (runtime.go).
package errenc

import "encoding/binary"

// ErrorStringSelector is keccak256("Error(string)")[0:4], the standard
// Solidity revert-reason selector.
const ErrorStringSelector uint32 = 0x08c379a0

// Kind enumerates the fixed runtime-error messages this compiler emits
// (§4.10) that need no runtime-computed value, so each is interned
// exactly once regardless of how many call sites trigger it.
type Kind int

const (
	KindOverflow Kind = iota
	KindDivisionByZero
	KindOutOfBounds
	KindObjectNotFound
	KindInvalidPointer
	KindInvalidEnumVariant
	KindInvalidUTF8
	KindInsufficientFunds
	KindNoSelectorMatch
)

var messages = map[Kind]string{
	KindOverflow:           "arithmetic overflow",
	KindDivisionByZero:     "division by zero",
	KindOutOfBounds:        "index out of bounds",
	KindObjectNotFound:     "object not found",
	KindInvalidPointer:     "invalid pointer dereference",
	KindInvalidEnumVariant: "invalid enum variant",
	KindInvalidUTF8:        "invalid utf-8 string",
	KindInsufficientFunds:  "insufficient funds",
	KindNoSelectorMatch:    "no matching function selector",
}

// Message returns k's canonical text.
func (k Kind) Message() string { return messages[k] }

// EncodeErrorBlob renders message as a full revert blob (§4.10):
//
//	[0:4)   internal accounting length, native byte order (not part of the ABI, read back by the entrypoint before calling write_result)
//	[4:8)   big-endian selector 0x08c379a0
//	[8:40)  big-endian offset word, value 0x20
//	[40:72) big-endian length word, value len(message)
//	[72:)   message bytes, zero-padded up to a 32-byte boundary
func EncodeErrorBlob(message string) []byte {
	msg := []byte(message)
	padded := (len(msg) + 31) / 32 * 32
	blob := make([]byte, 4+4+32+32+padded)

	binary.BigEndian.PutUint32(blob[4:8], ErrorStringSelector)
	putWord(blob[8:40], 0x20)
	putWord(blob[40:72], uint64(len(msg)))
	copy(blob[72:], msg)

	binary.LittleEndian.PutUint32(blob[0:4], uint32(len(blob)-4))
	return blob
}

// putWord writes v into the low 8 bytes of a 32-byte big-endian word,
// leaving the rest zeroed.
func putWord(word []byte, v uint64) {
	binary.BigEndian.PutUint64(word[24:32], v)
}
