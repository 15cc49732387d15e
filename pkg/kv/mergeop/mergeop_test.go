package mergeop

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt64Array(t *testing.T) {
	tests := []struct {
		name     string
		existing []byte
		value    []byte
		want     []int64
		wantErr  bool
	}{
		{name: "single", existing: EncodeInt64s(1), value: EncodeInt64s(1), want: []int64{2}},
		{name: "elementwise", existing: EncodeInt64s(1, 2, 3), value: EncodeInt64s(10, -2, 0), want: []int64{11, 0, 3}},
		{name: "wraps", existing: EncodeInt64s(math.MaxInt64), value: EncodeInt64s(1), want: []int64{math.MinInt64}},
		{name: "empty", existing: []byte{}, value: []byte{}, want: []int64{}},
		{name: "length_mismatch", existing: EncodeInt64s(1), value: EncodeInt64s(1, 2), wantErr: true},
		{name: "not_multiple_of_8", existing: []byte{1, 2, 3}, value: []byte{1, 2, 3}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Int64Array{}.Merge(tc.existing, tc.value)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrMalformedValue)
				return
			}
			require.NoError(t, err)
			values, err := DecodeInt64s(got)
			require.NoError(t, err)
			assert.Equal(t, tc.want, values)
		})
	}
}

func TestInt64ArrayNonexistent(t *testing.T) {
	value := EncodeInt64s(7, 8)
	got, err := Int64Array{}.MergeNonexistent(value)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	// The result must not alias the input.
	got[0] = 0xff
	assert.Equal(t, byte(7), value[0])

	_, err = Int64Array{}.MergeNonexistent([]byte{1})
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestUint64Add(t *testing.T) {
	counter := func(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

	got, err := Uint64Add{}.MergeNonexistent(counter(5))
	require.NoError(t, err)
	assert.Equal(t, counter(5), got)

	got, err = Uint64Add{}.Merge(got, counter(3))
	require.NoError(t, err)
	assert.Equal(t, counter(8), got)

	_, err = Uint64Add{}.Merge(counter(1), []byte{1})
	assert.ErrorIs(t, err, ErrMalformedValue)
	_, err = Uint64Add{}.MergeNonexistent(nil)
	assert.ErrorIs(t, err, ErrMalformedValue)
}
