package db

import (
	"bytes"
	"encoding/binary"
)

const (
	metaMarker       byte = 0x00
	collectionMarker byte = 0x01
)

// Keyspace maps the keys of one collection into the flat key space of an
// engine that has no native notion of collections. Collection data lives
// under a length-prefixed name so that no collection's range can overlap
// another's.
type Keyspace struct {
	prefix []byte
	limit  []byte
}

func NewKeyspace(name string) Keyspace {
	p := make([]byte, 3+len(name))
	p[0] = collectionMarker
	binary.BigEndian.PutUint16(p[1:3], uint16(len(name)))
	copy(p[3:], name)
	return Keyspace{prefix: p, limit: PrefixSuccessor(p)}
}

// MetaKey is the key holding the kind record of collection name.
func MetaKey(name string) []byte {
	key := make([]byte, 0, 1+len(name))
	key = append(key, metaMarker)
	return append(key, name...)
}

// Wrap returns the engine key for a collection key.
func (k Keyspace) Wrap(key []byte) []byte {
	out := make([]byte, len(k.prefix)+len(key))
	copy(out, k.prefix)
	copy(out[len(k.prefix):], key)
	return out
}

// Unwrap strips the collection prefix from an engine key. The result shares
// memory with key.
func (k Keyspace) Unwrap(key []byte) []byte {
	if !bytes.HasPrefix(key, k.prefix) {
		return nil
	}
	return key[len(k.prefix):]
}

// Bounds translates collection bounds into engine bounds. Nil bounds map to
// the edges of the collection.
func (k Keyspace) Bounds(start, end []byte) (lower, upper []byte) {
	lower = k.prefix
	if start != nil {
		lower = k.Wrap(start)
	}
	upper = k.limit
	if end != nil {
		upper = k.Wrap(end)
	}
	return lower, upper
}

// PrefixSuccessor returns the smallest key greater than every key having p
// as a prefix, or nil if no such key exists.
func PrefixSuccessor(p []byte) []byte {
	out := bytes.Clone(p)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

// InRange reports whether key lies in [start, end); nil bounds are open.
func InRange(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}
