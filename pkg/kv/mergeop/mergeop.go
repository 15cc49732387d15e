// Package mergeop holds ready-made merge operators.
package mergeop

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrMalformedValue = errors.New("mergeop: malformed value")

// Int64Array adds arrays of little-endian int64 values element-wise. Both
// operands must have the same length, a multiple of 8 bytes. Overflow wraps.
type Int64Array struct{}

func (Int64Array) Name() string { return "int64_array" }

func (Int64Array) MergeNonexistent(value []byte) ([]byte, error) {
	if len(value)%8 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 8", ErrMalformedValue, len(value))
	}
	return bytes.Clone(value), nil
}

func (Int64Array) Merge(existing, value []byte) ([]byte, error) {
	if len(existing) != len(value) {
		return nil, fmt.Errorf("%w: length mismatch %d != %d", ErrMalformedValue, len(existing), len(value))
	}
	if len(value)%8 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 8", ErrMalformedValue, len(value))
	}
	out := make([]byte, len(value))
	for i := 0; i < len(value); i += 8 {
		sum := int64(binary.LittleEndian.Uint64(existing[i:])) + int64(binary.LittleEndian.Uint64(value[i:]))
		binary.LittleEndian.PutUint64(out[i:], uint64(sum))
	}
	return out, nil
}

// Uint64Add treats values as a single little-endian uint64 counter.
type Uint64Add struct{}

func (Uint64Add) Name() string { return "uint64_add" }

func (Uint64Add) MergeNonexistent(value []byte) ([]byte, error) {
	if len(value) != 8 {
		return nil, fmt.Errorf("%w: counter must be 8 bytes, got %d", ErrMalformedValue, len(value))
	}
	return bytes.Clone(value), nil
}

func (Uint64Add) Merge(existing, value []byte) ([]byte, error) {
	if len(existing) != 8 || len(value) != 8 {
		return nil, fmt.Errorf("%w: counter must be 8 bytes, got %d and %d", ErrMalformedValue, len(existing), len(value))
	}
	return binary.LittleEndian.AppendUint64(nil,
		binary.LittleEndian.Uint64(existing)+binary.LittleEndian.Uint64(value)), nil
}

// EncodeInt64s packs values as little-endian int64s.
func EncodeInt64s(values ...int64) []byte {
	out := make([]byte, 0, 8*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint64(out, uint64(v))
	}
	return out
}

// DecodeInt64s unpacks a value produced by EncodeInt64s.
func DecodeInt64s(b []byte) ([]int64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 8", ErrMalformedValue, len(b))
	}
	out := make([]int64, 0, len(b)/8)
	for i := 0; i < len(b); i += 8 {
		out = append(out, int64(binary.LittleEndian.Uint64(b[i:])))
	}
	return out, nil
}
