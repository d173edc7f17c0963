package abi

import (
	"encoding/hex"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/types"
	"github.com/stretchr/testify/require"
)

func txContextType() types.Type {
	return types.Type{Kind: types.KindStruct, VMTag: bytecode.VMTagTxContext}
}

func TestSignatureElidesTxContextParam(t *testing.T) {
	ctx := types.NewContext(nil)

	sig, err := Signature(ctx, "deposit", []types.Type{txContextType(), types.U64()})
	require.NoError(t, err)
	require.Equal(t, "deposit(uint64)", sig)
}

func TestSignatureCamelCasesLeadingUppercase(t *testing.T) {
	ctx := types.NewContext(nil)

	sig, err := Signature(ctx, "Withdraw", []types.Type{types.U64()})
	require.NoError(t, err)
	require.Equal(t, "withdraw(uint64)", sig)
}

func TestSignatureNoParams(t *testing.T) {
	ctx := types.NewContext(nil)

	sig, err := Signature(ctx, "constructor", nil)
	require.NoError(t, err)
	require.Equal(t, "constructor()", sig)
}

func TestSignatureJoinsMultipleParamsWithComma(t *testing.T) {
	ctx := types.NewContext(nil)

	sig, err := Signature(ctx, "transfer", []types.Type{types.Address(), types.U256(), types.Bool()})
	require.NoError(t, err)
	require.Equal(t, "transfer(address,uint256,bool)", sig)
}

func TestSignatureRejectsSignerParam(t *testing.T) {
	ctx := types.NewContext(nil)

	_, err := Signature(ctx, "onlyOwner", []types.Type{types.Signer()})
	require.Error(t, err)
}

func TestSignatureVectorRendersBracketSuffix(t *testing.T) {
	ctx := types.NewContext(nil)

	sig, err := Signature(ctx, "batch", []types.Type{types.Vector(types.U32())})
	require.NoError(t, err)
	require.Equal(t, "batch(uint32[])", sig)
}

// Selector's known-answer test pins the well-known ERC-20-style
// transfer(address,uint256) selector (0xa9059cbb) as a sanity check that
// the keccak256-of-signature computation and 4-byte big-endian packing
// are wired correctly, independent of anything Move-specific.
func TestSelectorKnownAnswerTransfer(t *testing.T) {
	ctx := types.NewContext(nil)

	sel, err := Selector(ctx, "transfer", []types.Type{types.Address(), types.U256()})
	require.NoError(t, err)
	require.Equal(t, uint32(0xa9059cbb), sel)
}

func TestSelectorDiffersWhenTxContextPresenceDiffers(t *testing.T) {
	ctx := types.NewContext(nil)

	withTx, err := Selector(ctx, "deposit", []types.Type{txContextType(), types.U64()})
	require.NoError(t, err)

	withoutTx, err := Selector(ctx, "deposit", []types.Type{types.U64()})
	require.NoError(t, err)

	require.Equal(t, withTx, withoutTx, "TxContext is elided from the signature, so both forms must hash identically")
}

func TestSelectorPropagatesSignatureError(t *testing.T) {
	ctx := types.NewContext(nil)

	_, err := Selector(ctx, "bad", []types.Type{types.Signer()})
	require.Error(t, err)
}

// EventSignatureHash's known-answer tests pin the standard ERC-20 event
// topic0 values, matching original_source's abi_types/event_encoding.rs
// move_signature_to_event_signature_hash rstest fixtures.
func TestEventSignatureHashKnownAnswerTransfer(t *testing.T) {
	ctx := types.NewContext(nil)

	hash, err := EventSignatureHash(ctx, "Transfer", []types.Type{types.Address(), types.Address(), types.U256()})
	require.NoError(t, err)
	require.Equal(t, "ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", hex.EncodeToString(hash[:]))
}

func TestEventSignatureHashKnownAnswerApproval(t *testing.T) {
	ctx := types.NewContext(nil)

	hash, err := EventSignatureHash(ctx, "Approval", []types.Type{types.Address(), types.Address(), types.U256()})
	require.NoError(t, err)
	require.Equal(t, "8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925", hex.EncodeToString(hash[:]))
}

func TestEventSignatureHashDoesNotCamelCaseName(t *testing.T) {
	ctx := types.NewContext(nil)

	upper, err := EventSignatureHash(ctx, "Transfer", []types.Type{types.Address()})
	require.NoError(t, err)

	// Signature (used for ordinary function selectors) camelCases the
	// leading letter; an event's identifier must NOT go through that —
	// hashing the camelCased form would silently produce the wrong topic0.
	sigWithCamel, err := Signature(ctx, "Transfer", []types.Type{types.Address()})
	require.NoError(t, err)
	require.Equal(t, "transfer(address)", sigWithCamel)

	sigNoCamel, err := identifierSignature(ctx, "Transfer", []types.Type{types.Address()}, false)
	require.NoError(t, err)
	require.Equal(t, "Transfer(address)", sigNoCamel)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sigNoCamel))
	require.Equal(t, h.Sum(nil), upper[:])
}

func TestEventSignatureHashElidesTxContextParam(t *testing.T) {
	ctx := types.NewContext(nil)

	withTx, err := EventSignatureHash(ctx, "Logged", []types.Type{txContextType(), types.U64()})
	require.NoError(t, err)

	withoutTx, err := EventSignatureHash(ctx, "Logged", []types.Type{types.U64()})
	require.NoError(t, err)

	require.Equal(t, withTx, withoutTx)
}

func TestErrorSelectorDoesNotCamelCaseName(t *testing.T) {
	ctx := types.NewContext(nil)

	sig, err := identifierSignature(ctx, "InsufficientBalance", []types.Type{types.U256(), types.U256()}, false)
	require.NoError(t, err)
	require.Equal(t, "InsufficientBalance(uint256,uint256)", sig)

	sel, err := ErrorSelector(ctx, "InsufficientBalance", []types.Type{types.U256(), types.U256()})
	require.NoError(t, err)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sig))
	sum := h.Sum(nil)
	want := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
	require.Equal(t, want, sel)
}

func TestErrorSelectorPropagatesSignatureError(t *testing.T) {
	ctx := types.NewContext(nil)

	_, err := ErrorSelector(ctx, "BadError", []types.Type{types.Signer()})
	require.Error(t, err)
}
