// Package leb128 implements the LEB128 variable-length integer encoding
// used throughout the WASM binary format: section and vector lengths,
// local counts, and signed immediates for constants and memory
// offsets/alignments.
package leb128

import (
	"bytes"
	"fmt"
	"io"
)

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf = append(buf, b)
			return buf
		}
		buf = append(buf, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 value from buf, returning the value,
// the number of bytes consumed, and an error if buf is malformed or the
// value overflows 32 bits.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := DecodeUint32(bytes.NewReader(buf))
	return v, n, err
}

// LoadUint64 is LoadUint32 for 64-bit values.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return DecodeUint64(bytes.NewReader(buf))
}

// LoadInt32 decodes a signed LEB128 value from buf.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := DecodeInt32(bytes.NewReader(buf))
	return v, n, err
}

// LoadInt64 is LoadInt32 for 64-bit values.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return DecodeInt64(bytes.NewReader(buf))
}

// DecodeUint32 reads an unsigned LEB128 value from r, trapping on overflow
// past 32 bits (5 continuation bytes with bits set above bit 31).
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := DecodeUint64(r)
	if err != nil {
		return 0, n, err
	}
	if v > 0xffffffff {
		return 0, n, fmt.Errorf("leb128: value %d overflows uint32", v)
	}
	return uint32(v), n, nil
}

// DecodeUint64 reads an unsigned LEB128 value from r.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var read uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, read, fmt.Errorf("leb128: %w", err)
		}
		read++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, read, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, read, fmt.Errorf("leb128: too many continuation bytes")
		}
	}
}

// DecodeInt32 reads a signed LEB128 value from r, trapping on overflow.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := DecodeInt64(r)
	if err != nil {
		return 0, n, err
	}
	if v > 0x7fffffff || v < -0x80000000 {
		return 0, n, fmt.Errorf("leb128: value %d overflows int32", v)
	}
	return int32(v), n, nil
}

// DecodeInt64 reads a signed LEB128 value from r.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	var result int64
	var shift uint
	var read uint64
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, read, fmt.Errorf("leb128: %w", err)
		}
		read++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 70 {
			return 0, read, fmt.Errorf("leb128: too many continuation bytes")
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, read, nil
}
