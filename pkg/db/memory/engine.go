// Package memory implements an in-process db.Engine. Sorted collections are
// B-trees; hash collections are sharded maps whose enumeration order is
// unspecified and which cannot seek.
package memory

import (
	"sync"
	"sync/atomic"

	"github.com/eigerco/prefixdb/pkg/db"
)

type Options struct {
	// Degree of the B-tree backing sorted collections.
	Degree int
	// Shards is the number of independently locked maps of a hash
	// collection.
	Shards int
}

const (
	defaultDegree = 32
	defaultShards = 64
)

type Engine struct {
	opts        Options
	mu          sync.RWMutex
	collections map[string]collection
	closed      atomic.Bool
}

type collection interface {
	db.KVStore
	db.Sizer
}

func New(opts Options) *Engine {
	if opts.Degree < 2 {
		opts.Degree = defaultDegree
	}
	if opts.Shards <= 0 {
		opts.Shards = defaultShards
	}
	return &Engine{opts: opts, collections: make(map[string]collection)}
}

func (e *Engine) CreateCollection(name string, kind db.Kind) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.collections[name]; ok {
		return db.ErrCollectionExists
	}
	switch kind {
	case db.KindSorted:
		e.collections[name] = newSorted(e, e.opts.Degree)
	case db.KindHash:
		e.collections[name] = newHashed(e, e.opts.Shards)
	default:
		return db.ErrUnsupported
	}
	return nil
}

func (e *Engine) Collection(name string) (db.KVStore, error) {
	if e.closed.Load() {
		return nil, db.ErrClosed
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.collections[name]
	if !ok {
		return nil, db.ErrCollectionNotFound
	}
	return c, nil
}

func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	e.collections = nil
	e.mu.Unlock()
	return nil
}

type batchOp struct {
	key    string
	value  []byte
	delete bool
}

// batch buffers operations until Commit hands them to apply, which must
// make them visible atomically.
type batch struct {
	engine *Engine
	apply  func(ops []batchOp)
	ops    []batchOp
	done   atomic.Bool
}

func (b *batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, batchOp{key: string(key), value: clone(value)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, batchOp{key: string(key), delete: true})
	return nil
}

func (b *batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	if b.engine.closed.Load() {
		return db.ErrClosed
	}
	b.apply(b.ops)
	b.done.Store(true)
	b.ops = nil
	return nil
}

func (b *batch) Close() error {
	if b.done.CompareAndSwap(false, true) {
		b.ops = nil
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
