package kv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		flat   []byte
	}{
		{name: "plain", prefix: "stats", key: "counters", flat: []byte("stats\x00counters")},
		{name: "empty_key", prefix: "p", key: "", flat: []byte("p\x00")},
		{name: "empty_prefix", prefix: "", key: "k", flat: []byte("\x00k")},
		{name: "delimiter_in_key", prefix: "p", key: "a\x00b", flat: []byte("p\x00a\x00b")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			flat := EncodeKey(tc.prefix, tc.key)
			assert.Equal(t, tc.flat, flat)

			prefix, key, err := DecodeKey(flat)
			require.NoError(t, err)
			assert.Equal(t, tc.prefix, prefix)
			assert.Equal(t, tc.key, key)
		})
	}
}

func TestDecodeKeyMissingDelimiter(t *testing.T) {
	_, _, err := DecodeKey([]byte("nodelimiter"))
	assert.ErrorIs(t, err, ErrMissingDelimiter)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix("stats"))
	assert.NoError(t, ValidatePrefix(""))
	assert.ErrorIs(t, ValidatePrefix("bad\x00prefix"), ErrInvalidArgument)
}

func TestPrefixRangesDoNotInterleave(t *testing.T) {
	aStart, aEnd := PrefixRange("a")
	abStart, abEnd := PrefixRange("ab")

	assert.Equal(t, []byte("a\x00"), aStart)
	assert.Equal(t, []byte("a\x01"), aEnd)

	// Every key of "a" sorts before every key of "ab".
	assert.Negative(t, bytes.Compare(aEnd, abStart))
	assert.Negative(t, bytes.Compare(EncodeKey("a", "\xff\xff"), EncodeKey("ab", "")))
	assert.Negative(t, bytes.Compare(abStart, abEnd))

	for _, key := range []string{"", "x", "\xff", "a\x00b"} {
		flat := EncodeKey("a", key)
		assert.True(t, bytes.Compare(flat, aStart) >= 0 && bytes.Compare(flat, aEnd) < 0, "key %q", key)
	}
}

func TestKeyOrderWithinPrefix(t *testing.T) {
	keys := []string{"", "a", "a\x00", "ab", "b"}
	for i := 1; i < len(keys); i++ {
		assert.Negative(t, bytes.Compare(EncodeKey("p", keys[i-1]), EncodeKey("p", keys[i])))
	}
}
