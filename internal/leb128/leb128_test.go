package leb128

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInt32(t *testing.T) {
	for _, c := range []struct {
		input    int32
		expected []byte
	}{
		{input: -165675008, expected: []byte{0x80, 0x80, 0x80, 0xb1, 0x7f}},
		{input: -624485, expected: []byte{0x9b, 0xf1, 0x59}},
		{input: -16256, expected: []byte{0x80, 0x81, 0x7f}},
		{input: -4, expected: []byte{0x7c}},
		{input: -1, expected: []byte{0x7f}},
		{input: 0, expected: []byte{0x00}},
		{input: 1, expected: []byte{0x01}},
		{input: 4, expected: []byte{0x04}},
		{input: 16256, expected: []byte{0x80, 0xff, 0x0}},
		{input: 624485, expected: []byte{0xe5, 0x8e, 0x26}},
		{input: math.MaxInt32, expected: []byte{0xff, 0xff, 0xff, 0xff, 0x7}},
	} {
		require.Equal(t, c.expected, EncodeInt32(c.input))
		decoded, n, err := LoadInt32(c.expected)
		require.NoError(t, err)
		require.Equal(t, c.input, decoded)
		require.Equal(t, uint64(len(c.expected)), n)
	}
}

func TestEncodeDecodeUint32(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 16384, math.MaxUint32} {
		enc := EncodeUint32(v)
		decoded, n, err := LoadUint32(enc)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, uint64(len(enc)), n)
	}
}

func TestEncodeDecodeUint64(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, math.MaxUint32, math.MaxUint64} {
		enc := EncodeUint64(v)
		decoded, _, err := LoadUint64(enc)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}

func TestDecodeUint32OverflowsTraps(t *testing.T) {
	// 5 continuation bytes encoding a value > 2^32-1.
	_, _, err := LoadUint32([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	require.Error(t, err)
}

func TestEncodeDecodeInt64RoundTrip(t *testing.T) {
	for _, v := range []int64{0, -1, 1, math.MinInt64, math.MaxInt64, -624485, 624485} {
		enc := EncodeInt64(v)
		decoded, _, err := LoadInt64(enc)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}
