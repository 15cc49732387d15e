package pebble

import (
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/eigerco/prefixdb/pkg/db"
)

type Batch struct {
	engine *Engine
	batch  *pebble.Batch
	ks     db.Keyspace
	done   atomic.Bool
}

func (c *Collection) NewBatch() db.Batch {
	return &Batch{
		engine: c.engine,
		batch:  c.engine.db.NewBatch(),
		ks:     c.ks,
	}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	return b.batch.Set(b.ks.Wrap(key), value, nil)
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	return b.batch.Delete(b.ks.Wrap(key), nil)
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	if err := b.engine.acquire(); err != nil {
		return err
	}
	defer b.engine.mu.RUnlock()

	if err := b.batch.Commit(b.engine.write); err != nil {
		return err
	}
	b.done.Store(true)
	return b.batch.Close()
}

func (b *Batch) Close() error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	return b.batch.Close()
}
