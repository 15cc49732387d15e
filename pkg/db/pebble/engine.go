package pebble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/eigerco/prefixdb/pkg/log"
	"github.com/rs/zerolog"
)

// Options tunes the pebble engine. Zero values select the defaults.
type Options struct {
	CacheSize                int64
	MemTableSize             uint64
	MaxConcurrentCompactions int
	// InMemory keeps every file on an in-memory filesystem; the path is
	// only used as a directory name inside it.
	InMemory bool
	// ErrorIfNotExists refuses to create a database that is missing.
	ErrorIfNotExists bool
	NoSync           bool
}

const (
	defaultCacheSize    = 64 * 1024 * 1024 // 64MB
	defaultMemTableSize = 32 * 1024 * 1024 // 32MB
	// pebble requires memtables smaller than 4GB.
	maxMemTableSize = 4<<30 - 1
)

// Engine is a sorted db.Engine on top of a single pebble database. All
// collections share its key space through db.Keyspace. Every call into
// pebble holds mu for reading, so Close never races an in-flight operation.
type Engine struct {
	db     *pebble.DB
	write  *pebble.WriteOptions
	closed bool
	mu     sync.RWMutex

	itersMu sync.Mutex
	iters   map[*Iterator]struct{}
}

// Open opens (or creates) a pebble database at path.
func Open(path string, opts Options) (*Engine, error) {
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	memTable := opts.MemTableSize
	if memTable == 0 {
		memTable = defaultMemTableSize
	}
	if memTable > maxMemTableSize {
		memTable = maxMemTableSize
	}
	compactions := opts.MaxConcurrentCompactions
	if compactions <= 0 {
		compactions = 1
	}

	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	pOpts := &pebble.Options{
		Cache:                    cache,
		MemTableSize:             memTable,
		MaxConcurrentCompactions: func() int { return compactions },
		ErrorIfNotExists:         opts.ErrorIfNotExists,
		Logger:                   engineLogger{log: log.ForEngine("pebble")},
	}
	if opts.InMemory {
		pOpts.FS = vfs.NewMem()
	}

	pdb, err := pebble.Open(path, pOpts)
	if err != nil {
		return nil, fmt.Errorf(ErrOpenDatabase, path, err)
	}

	write := pebble.Sync
	if opts.NoSync {
		write = pebble.NoSync
	}
	return &Engine{db: pdb, write: write, iters: make(map[*Iterator]struct{})}, nil
}

// NewInMemory opens a pebble engine that never touches the disk.
func NewInMemory() (*Engine, error) {
	return Open("", Options{InMemory: true})
}

// acquire read-locks the engine. The caller releases it with e.mu.RUnlock
// unless ErrClosed is returned.
func (e *Engine) acquire() error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return db.ErrClosed
	}
	return nil
}

func (e *Engine) CreateCollection(name string, kind db.Kind) error {
	if kind != db.KindSorted {
		return fmt.Errorf("pebble: %s collection: %w", kind, db.ErrUnsupported)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return db.ErrClosed
	}

	meta := db.MetaKey(name)
	_, closer, err := e.db.Get(meta)
	if err == nil {
		closer.Close()
		return db.ErrCollectionExists
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}
	return e.db.Set(meta, []byte{byte(kind)}, e.write)
}

func (e *Engine) Collection(name string) (db.KVStore, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	value, closer, err := e.db.Get(db.MetaKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	if len(value) != 1 || db.Kind(value[0]) != db.KindSorted {
		return nil, fmt.Errorf("%w: %q", errCorruptCollection, name)
	}
	return &Collection{engine: e, ks: db.NewKeyspace(name)}, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	for it := range e.iters {
		it.closed = true
		err = errors.Join(err, it.iter.Close())
	}
	if len(e.iters) > 0 {
		logger := log.ForEngine("pebble")
		logger.Warn().Int("iterators", len(e.iters)).Msg("closing engine with open iterators")
	}
	e.iters = nil
	return errors.Join(err, e.db.Close())
}

func (e *Engine) track(it *Iterator) {
	e.itersMu.Lock()
	e.iters[it] = struct{}{}
	e.itersMu.Unlock()
}

func (e *Engine) untrack(it *Iterator) {
	e.itersMu.Lock()
	delete(e.iters, it)
	e.itersMu.Unlock()
}

// Collection is one named key space of an Engine.
type Collection struct {
	engine *Engine
	ks     db.Keyspace
}

func (c *Collection) Kind() db.Kind { return db.KindSorted }

func (c *Collection) Get(key []byte) ([]byte, error) {
	if err := c.engine.acquire(); err != nil {
		return nil, err
	}
	defer c.engine.mu.RUnlock()

	value, closer, err := c.engine.db.Get(c.ks.Wrap(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (c *Collection) Put(key, value []byte) error {
	if err := c.engine.acquire(); err != nil {
		return err
	}
	defer c.engine.mu.RUnlock()
	return c.engine.db.Set(c.ks.Wrap(key), value, c.engine.write)
}

func (c *Collection) Delete(key []byte) error {
	if err := c.engine.acquire(); err != nil {
		return err
	}
	defer c.engine.mu.RUnlock()
	return c.engine.db.Delete(c.ks.Wrap(key), c.engine.write)
}

// ApproximateSize reports the disk space used by the collection's range.
func (c *Collection) ApproximateSize() (uint64, error) {
	if err := c.engine.acquire(); err != nil {
		return 0, err
	}
	defer c.engine.mu.RUnlock()
	lower, upper := c.ks.Bounds(nil, nil)
	return c.engine.db.EstimateDiskUsage(lower, upper)
}

// engineLogger routes pebble's internal logging to the engine logger.
type engineLogger struct {
	log zerolog.Logger
}

func (l engineLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l engineLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l engineLogger) Fatalf(format string, args ...interface{}) {
	l.log.Fatal().Msgf(format, args...)
}
