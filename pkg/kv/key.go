package kv

import (
	"bytes"
	"fmt"
	"strings"
)

// Delimiter separates the prefix from the key in a composite key. It is the
// smallest byte value, so as long as prefixes never contain it the flat key
// ranges of two prefixes cannot interleave, even when one prefix is a byte
// prefix of the other: "a\x00..." always sorts before "ab\x00...".
const Delimiter byte = 0x00

// ValidatePrefix reports whether prefix can be used as a namespace.
func ValidatePrefix(prefix string) error {
	if strings.IndexByte(prefix, Delimiter) >= 0 {
		return fmt.Errorf("%w: prefix %q contains the key delimiter", ErrInvalidArgument, prefix)
	}
	return nil
}

// EncodeKey builds the flat key prefix || Delimiter || key. No escaping is
// done; prefix must satisfy ValidatePrefix.
func EncodeKey(prefix, key string) []byte {
	out := make([]byte, 0, len(prefix)+1+len(key))
	out = append(out, prefix...)
	out = append(out, Delimiter)
	return append(out, key...)
}

// DecodeKey splits a flat key at its first delimiter. Any later delimiter
// bytes belong to the key.
func DecodeKey(flat []byte) (prefix, key string, err error) {
	i := bytes.IndexByte(flat, Delimiter)
	if i < 0 {
		return "", "", fmt.Errorf("%w: %q", ErrMissingDelimiter, flat)
	}
	return string(flat[:i]), string(flat[i+1:]), nil
}

// PrefixRange returns the flat key range [start, end) holding every key of
// prefix.
func PrefixRange(prefix string) (start, end []byte) {
	start = EncodeKey(prefix, "")
	end = bytes.Clone(start)
	end[len(end)-1] = Delimiter + 1
	return start, end
}
