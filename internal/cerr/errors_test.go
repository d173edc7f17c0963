package cerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(PhaseTranslate, KindTypeMismatch).
		At(Span{ModuleID: [32]byte{0x01}, Function: "transfer", Offset: 12, HasOffset: true}).
		Detailf("expected u64, found %s", "address").
		Build()

	require.Contains(t, err.Error(), "[translate]")
	require.Contains(t, err.Error(), "type_stack_mismatch")
	require.Contains(t, err.Error(), "transfer@12")
	require.Contains(t, err.Error(), "expected u64, found address")
}

func TestErrorIsMatchesPhaseAndKind(t *testing.T) {
	a := New(PhaseABI, KindUnsupportedType).Build()
	b := New(PhaseABI, KindUnsupportedType).Build()
	c := New(PhaseABI, KindMalformedIndex).Build()

	require.True(t, errors.Is(a, b))
	require.False(t, errors.Is(a, c))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseStorage, KindValidation).Cause(cause).Build()
	require.ErrorIs(t, err, cause)
}
