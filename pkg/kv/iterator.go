package kv

import (
	"fmt"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/rs/zerolog"
)

// WholeSpaceIterator is a cursor over every composite key of the store.
// It does not stop at namespace boundaries: after LowerBound or UpperBound
// callers check RawKeyIsPrefixed and stop once the prefix changes.
//
// On hash collections the enumeration order is unspecified and positional
// seeks degrade to a rescan from the first or last entry; Ordered reports
// which behaviour applies.
type WholeSpaceIterator struct {
	iter   db.Iterator
	kind   db.Kind
	err    error
	warned bool
	closed bool
	log    *zerolog.Logger
}

// WholeSpaceIterator returns an unpositioned iterator over the whole
// collection. It must be closed.
func (s *Store) WholeSpaceIterator() (*WholeSpaceIterator, error) {
	return s.newIterator(nil, nil)
}

func (s *Store) newIterator(start, end []byte) (*WholeSpaceIterator, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	iter, err := s.coll.NewIterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", translate(err))
	}
	return &WholeSpaceIterator{iter: iter, kind: s.coll.Kind(), log: &s.log}, nil
}

// Ordered reports whether traversal follows key order and seeks are
// positional.
func (it *WholeSpaceIterator) Ordered() bool { return it.kind.Ordered() }

// Valid never fails; an exhausted or unpositioned iterator is simply invalid.
func (it *WholeSpaceIterator) Valid() bool {
	return !it.closed && it.iter.Valid()
}

func (it *WholeSpaceIterator) Next() bool {
	if it.closed {
		return false
	}
	return it.iter.Next()
}

func (it *WholeSpaceIterator) Prev() bool {
	if it.closed {
		return false
	}
	return it.iter.Prev()
}

// SeekToFirst positions at the first entry of the whole key space.
func (it *WholeSpaceIterator) SeekToFirst() bool {
	it.err = nil
	if it.closed {
		return false
	}
	return it.iter.First()
}

// SeekToLast positions at the last entry of the whole key space.
func (it *WholeSpaceIterator) SeekToLast() bool {
	it.err = nil
	if it.closed {
		return false
	}
	return it.iter.Last()
}

// SeekToFirstKey positions at the first entry whose flat key is >= key.
// On hash collections it rescans from the first entry instead.
func (it *WholeSpaceIterator) SeekToFirstKey(key []byte) bool {
	return it.seek(key, false)
}

// SeekToLastKey positions at the first entry whose flat key is >= key.
// On hash collections it rescans from the last entry instead.
func (it *WholeSpaceIterator) SeekToLastKey(key []byte) bool {
	return it.seek(key, true)
}

// LowerBound positions at the first entry >= (prefix, key).
func (it *WholeSpaceIterator) LowerBound(prefix, key string) bool {
	return it.seekComposite(prefix, key)
}

// UpperBound positions at the first entry >= (prefix, key), like LowerBound.
func (it *WholeSpaceIterator) UpperBound(prefix, key string) bool {
	return it.seekComposite(prefix, key)
}

func (it *WholeSpaceIterator) seekComposite(prefix, key string) bool {
	it.err = nil
	if err := ValidatePrefix(prefix); err != nil {
		it.err = err
		return false
	}
	return it.seek(EncodeKey(prefix, key), false)
}

func (it *WholeSpaceIterator) seek(key []byte, fromLast bool) bool {
	it.err = nil
	if it.closed {
		return false
	}
	if it.kind.Ordered() {
		return it.iter.SeekGE(key)
	}
	if !it.warned {
		it.warned = true
		it.log.Warn().Stringer("kind", it.kind).Msg("collection cannot seek, rescanning from the edge")
	}
	if fromLast {
		return it.iter.Last()
	}
	return it.iter.First()
}

// Key returns the logical key at the current position.
func (it *WholeSpaceIterator) Key() (string, error) {
	_, key, err := it.RawKey()
	return key, err
}

// RawKey returns the prefix and logical key at the current position.
func (it *WholeSpaceIterator) RawKey() (prefix, key string, err error) {
	if !it.Valid() {
		return "", "", ErrIteratorInvalid
	}
	return DecodeKey(it.iter.Key())
}

// RawKeyIsPrefixed reports whether the current entry belongs to prefix.
func (it *WholeSpaceIterator) RawKeyIsPrefixed(prefix string) bool {
	p, _, err := it.RawKey()
	return err == nil && p == prefix
}

// Value returns the value at the current position.
func (it *WholeSpaceIterator) Value() ([]byte, error) {
	if !it.Valid() {
		return nil, ErrIteratorInvalid
	}
	value, err := it.iter.Value()
	if err != nil {
		return nil, translate(err)
	}
	return value, nil
}

// Err returns the error of the last positioning call, if any. Every seek
// clears the previous one.
func (it *WholeSpaceIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	if it.closed {
		return nil
	}
	if err := it.iter.Error(); err != nil {
		return translate(err)
	}
	return nil
}

// Close releases the underlying cursor. It is safe to call more than once.
func (it *WholeSpaceIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return translate(it.iter.Close())
}

// PrefixIterator is a cursor over the keys of one namespace.
type PrefixIterator struct {
	*WholeSpaceIterator
	prefix string
}

// PrefixIterator returns an unpositioned iterator restricted to prefix. It
// must be closed.
func (s *Store) PrefixIterator(prefix string) (*PrefixIterator, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	start, end := PrefixRange(prefix)
	it, err := s.newIterator(start, end)
	if err != nil {
		return nil, err
	}
	return &PrefixIterator{WholeSpaceIterator: it, prefix: prefix}, nil
}

// Prefix returns the namespace the iterator is restricted to.
func (it *PrefixIterator) Prefix() string { return it.prefix }

// LowerBound positions at the first key of the namespace >= key. On hash
// collections it rescans from the first key of the namespace.
func (it *PrefixIterator) LowerBound(key string) bool {
	return it.WholeSpaceIterator.LowerBound(it.prefix, key)
}

// UpperBound behaves like LowerBound.
func (it *PrefixIterator) UpperBound(key string) bool {
	return it.WholeSpaceIterator.UpperBound(it.prefix, key)
}
