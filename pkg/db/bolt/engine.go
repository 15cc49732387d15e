// Package bolt implements a sorted db.Engine on top of bbolt. Every
// collection is a top-level bucket.
//
// Iterators hold a read-only bbolt transaction until they are closed. A
// write that needs to grow the memory map waits for open read transactions,
// so iterators must be closed before writing from the same goroutine once
// the database outgrows its initial mmap size.
package bolt

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eigerco/prefixdb/pkg/db"
	bolt "go.etcd.io/bbolt"
)

type Options struct {
	InitialMmapSize int
	PreLoadFreelist bool
	Timeout         time.Duration
	NoSync          bool
}

type Engine struct {
	db     *bolt.DB
	closed atomic.Bool
}

// Open opens (or creates) a bbolt database file at path.
func Open(path string, opts Options) (*Engine, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second
	}
	bdb, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout:         timeout,
		InitialMmapSize: opts.InitialMmapSize,
		PreLoadFreelist: opts.PreLoadFreelist,
		NoSync:          opts.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}
	return &Engine{db: bdb}, nil
}

func (e *Engine) CreateCollection(name string, kind db.Kind) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	if kind != db.KindSorted {
		return fmt.Errorf("bolt: %s collection: %w", kind, db.ErrUnsupported)
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucket([]byte(name))
		if errors.Is(err, bolt.ErrBucketExists) {
			return db.ErrCollectionExists
		}
		return err
	})
}

func (e *Engine) Collection(name string) (db.KVStore, error) {
	if e.closed.Load() {
		return nil, db.ErrClosed
	}
	exists := false
	err := e.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket([]byte(name)) != nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, db.ErrCollectionNotFound
	}
	return &Collection{engine: e, bucket: []byte(name)}, nil
}

func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.db.Close()
}

type Collection struct {
	engine *Engine
	bucket []byte
}

func (c *Collection) Kind() db.Kind { return db.KindSorted }

func (c *Collection) update(fn func(bkt *bolt.Bucket) error) error {
	if c.engine.closed.Load() {
		return db.ErrClosed
	}
	return c.engine.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(c.bucket)
		if bkt == nil {
			return fmt.Errorf("bucket %q: %w", c.bucket, db.ErrCollectionNotFound)
		}
		return fn(bkt)
	})
}

func (c *Collection) Get(key []byte) ([]byte, error) {
	if c.engine.closed.Load() {
		return nil, db.ErrClosed
	}
	var value []byte
	err := c.engine.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(c.bucket)
		if bkt == nil {
			return fmt.Errorf("bucket %q: %w", c.bucket, db.ErrCollectionNotFound)
		}
		v := bkt.Get(key)
		if v == nil {
			return db.ErrNotFound
		}
		// Copy the value since it's only valid during the transaction
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	return value, err
}

func (c *Collection) Put(key, value []byte) error {
	return c.update(func(bkt *bolt.Bucket) error {
		return bkt.Put(key, value)
	})
}

func (c *Collection) Delete(key []byte) error {
	return c.update(func(bkt *bolt.Bucket) error {
		return bkt.Delete(key)
	})
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// Batch buffers operations and applies them in one read-write transaction.
type Batch struct {
	coll *Collection
	ops  []batchOp
	done atomic.Bool
}

func (c *Collection) NewBatch() db.Batch {
	return &Batch{coll: c}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, batchOp{key: key, value: value})
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, batchOp{key: key, delete: true})
	return nil
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	err := b.coll.update(func(bkt *bolt.Bucket) error {
		for _, op := range b.ops {
			if op.delete {
				if err := bkt.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := bkt.Put(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.done.Store(true)
	b.ops = nil
	return nil
}

func (b *Batch) Close() error {
	if b.done.CompareAndSwap(false, true) {
		b.ops = nil
	}
	return nil
}
