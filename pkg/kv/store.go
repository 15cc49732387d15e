// Package kv emulates independent namespaces ("prefixes") inside the single
// flat, ordered key space of one engine collection. It provides atomic
// submission of transactions mixing writes, deletes and merges, where a merge
// is a read-modify-write resolved with an operator registered per prefix.
package kv

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/eigerco/prefixdb/pkg/log"
	"github.com/rs/zerolog"
)

// Store owns one engine collection for its whole lifetime.
type Store struct {
	coll   db.KVStore
	engine io.Closer
	opts   Options
	merges mergeRegistry
	locks  stripedLock
	closed atomic.Bool
	log    zerolog.Logger
}

// Open opens the store at path. With create set, any previous contents at
// path are removed and the collection is created; otherwise the collection
// must already exist with the configured kind. An empty path opens an
// in-memory store on engines that support it.
func Open(path string, create bool, opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	kind, err := opts.Kind()
	if err != nil {
		return nil, err
	}

	if path != "" && opts.Engine != EngineMemory {
		_, statErr := os.Stat(path)
		switch {
		case create && statErr == nil:
			log.Store.Warn().Str("path", path).Msg("removing existing store contents")
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("%w: remove %q: %w", ErrEngineFailure, path, err)
			}
		case !create && errors.Is(statErr, os.ErrNotExist):
			return nil, fmt.Errorf("%w: no store at %q", ErrNotFound, path)
		}
	}

	engine, err := openEngine(path, create, opts)
	if err != nil {
		return nil, translate(err)
	}

	coll, err := openCollection(engine, create, opts.CollectionName, kind)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	log.Store.Info().Str("path", path).Str("engine", opts.Engine).
		Str("collection", opts.CollectionName).Stringer("kind", kind).Bool("create", create).
		Msg("store opened")
	return newStore(coll, engine, opts), nil
}

func openCollection(engine db.Engine, create bool, name string, kind db.Kind) (db.KVStore, error) {
	if create {
		if err := engine.CreateCollection(name, kind); err != nil {
			return nil, fmt.Errorf("create collection %q: %w", name, translate(err))
		}
	}
	coll, err := engine.Collection(name)
	if errors.Is(err, db.ErrCollectionNotFound) {
		return nil, fmt.Errorf("%w: collection %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", name, translate(err))
	}
	if coll.Kind() != kind {
		return nil, fmt.Errorf("%w: collection %q is %s, configured %s", ErrInvalidArgument, name, coll.Kind(), kind)
	}
	return coll, nil
}

func newStore(coll db.KVStore, engine io.Closer, opts Options) *Store {
	return &Store{
		coll:   coll,
		engine: engine,
		opts:   opts,
		log:    log.ForStore(opts.Engine, opts.CollectionName),
	}
}

// Kind reports the physical layout of the store's collection.
func (s *Store) Kind() db.Kind { return s.coll.Kind() }

// SetMergeOperator registers op for prefix. Register each prefix once: a
// second registration is kept but never consulted.
func (s *Store) SetMergeOperator(prefix string, op MergeOperator) error {
	if err := ValidatePrefix(prefix); err != nil {
		return err
	}
	if op == nil {
		return fmt.Errorf("%w: nil merge operator", ErrInvalidArgument)
	}
	s.merges.register(prefix, op)
	return nil
}

// BeginTransaction returns an empty transaction bound to s.
func (s *Store) BeginTransaction() *Transaction {
	return &Transaction{store: s}
}

// Get returns the value stored under (prefix, key), or ErrNotFound.
func (s *Store) Get(prefix, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	value, err := s.coll.Get(EncodeKey(prefix, key))
	if err != nil {
		return nil, translate(err)
	}
	return value, nil
}

// GetMany looks up every key of keys under prefix. Missing keys are absent
// from the result.
func (s *Store) GetMany(prefix string, keys []string) (map[string][]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, err := s.coll.Get(EncodeKey(prefix, key))
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", key, translate(err))
		}
		out[key] = value
	}
	return out, nil
}

// EstimatedSize reports the approximate size of the collection, or
// ErrUnsupported when the engine cannot tell.
func (s *Store) EstimatedSize() (uint64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	sizer, ok := s.coll.(db.Sizer)
	if !ok {
		return 0, fmt.Errorf("%w: size estimate", ErrUnsupported)
	}
	size, err := sizer.ApproximateSize()
	if err != nil {
		return 0, translate(err)
	}
	return size, nil
}

// Close releases the engine. Reads and submits racing Close fail with
// ErrClosed. Iterators should be closed first.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.log.Info().Msg("store closed")
	if s.engine == nil {
		return nil
	}
	return translate(s.engine.Close())
}
