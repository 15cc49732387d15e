// Package leveldb implements a sorted db.Engine on top of goleveldb.
package leveldb

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Options tunes the leveldb engine. Zero values keep goleveldb's defaults.
type Options struct {
	WriteBuffer        int
	BlockCacheCapacity int
	BlockSize          int
	InMemory           bool
	ErrorIfMissing     bool
	NoSync             bool
}

type Engine struct {
	db     *leveldb.DB
	write  *opt.WriteOptions
	closed atomic.Bool
	mu     sync.Mutex
}

// Open opens (or creates) a LevelDB database at path.
func Open(path string, opts Options) (*Engine, error) {
	o := &opt.Options{
		WriteBuffer:        opts.WriteBuffer,
		BlockCacheCapacity: opts.BlockCacheCapacity,
		BlockSize:          opts.BlockSize,
		ErrorIfMissing:     opts.ErrorIfMissing,
	}

	var (
		ldb *leveldb.DB
		err error
	)
	if opts.InMemory {
		ldb, err = leveldb.Open(storage.NewMemStorage(), o)
	} else {
		ldb, err = leveldb.OpenFile(path, o)
	}
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &Engine{db: ldb, write: &opt.WriteOptions{Sync: !opts.NoSync}}, nil
}

func NewInMemory() (*Engine, error) {
	return Open("", Options{InMemory: true})
}

func (e *Engine) CreateCollection(name string, kind db.Kind) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	if kind != db.KindSorted {
		return fmt.Errorf("leveldb: %s collection: %w", kind, db.ErrUnsupported)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	meta := db.MetaKey(name)
	ok, err := e.db.Has(meta, nil)
	if err != nil {
		return err
	}
	if ok {
		return db.ErrCollectionExists
	}
	return e.db.Put(meta, []byte{byte(kind)}, e.write)
}

func (e *Engine) Collection(name string) (db.KVStore, error) {
	if e.closed.Load() {
		return nil, db.ErrClosed
	}
	val, err := e.db.Get(db.MetaKey(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(val) != 1 || db.Kind(val[0]) != db.KindSorted {
		return nil, fmt.Errorf("leveldb: corrupt collection record %q", name)
	}
	return &Collection{engine: e, ks: db.NewKeyspace(name)}, nil
}

func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.db.Close()
}

type Collection struct {
	engine *Engine
	ks     db.Keyspace
}

func (c *Collection) Kind() db.Kind { return db.KindSorted }

func (c *Collection) Get(key []byte) ([]byte, error) {
	if c.engine.closed.Load() {
		return nil, db.ErrClosed
	}
	val, err := c.engine.db.Get(c.ks.Wrap(key), nil)
	if err != nil {
		return nil, convert(err)
	}
	return val, nil
}

func (c *Collection) Put(key, value []byte) error {
	if c.engine.closed.Load() {
		return db.ErrClosed
	}
	return convert(c.engine.db.Put(c.ks.Wrap(key), value, c.engine.write))
}

func (c *Collection) Delete(key []byte) error {
	if c.engine.closed.Load() {
		return db.ErrClosed
	}
	return convert(c.engine.db.Delete(c.ks.Wrap(key), c.engine.write))
}

func (c *Collection) ApproximateSize() (uint64, error) {
	if c.engine.closed.Load() {
		return 0, db.ErrClosed
	}
	lower, upper := c.ks.Bounds(nil, nil)
	sizes, err := c.engine.db.SizeOf([]util.Range{{Start: lower, Limit: upper}})
	if err != nil {
		return 0, convert(err)
	}
	return uint64(sizes.Sum()), nil
}

type Batch struct {
	engine *Engine
	ks     db.Keyspace
	batch  leveldb.Batch
	done   atomic.Bool
}

func (c *Collection) NewBatch() db.Batch {
	return &Batch{engine: c.engine, ks: c.ks}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.batch.Put(b.ks.Wrap(key), value)
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.batch.Delete(b.ks.Wrap(key))
	return nil
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	if b.engine.closed.Load() {
		return db.ErrClosed
	}
	if err := b.engine.db.Write(&b.batch, b.engine.write); err != nil {
		return convert(err)
	}
	b.done.Store(true)
	return nil
}

func (b *Batch) Close() error {
	if b.done.CompareAndSwap(false, true) {
		b.batch.Reset()
	}
	return nil
}

// convert maps goleveldb sentinels onto db errors. A call that passed the
// closed check can still reach a database closed underneath it.
func convert(err error) error {
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return db.ErrNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return fmt.Errorf("%w: %w", db.ErrClosed, err)
	default:
		return err
	}
}
