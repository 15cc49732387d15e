package memory

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/eigerco/prefixdb/pkg/db"
)

type shard struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// hashed is a hash collection: keys are spread over shards by xxhash and
// no order is maintained.
type hashed struct {
	engine *Engine
	shards []*shard
}

func newHashed(e *Engine, n int) *hashed {
	h := &hashed{engine: e, shards: make([]*shard, n)}
	for i := range h.shards {
		h.shards[i] = &shard{data: make(map[string][]byte)}
	}
	return h
}

func (h *hashed) shardIndex(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(h.shards)))
}

func (h *hashed) Kind() db.Kind { return db.KindHash }

func (h *hashed) Get(key []byte) ([]byte, error) {
	if h.engine.closed.Load() {
		return nil, db.ErrClosed
	}
	k := string(key)
	s := h.shards[h.shardIndex(k)]
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[k]
	if !ok {
		return nil, db.ErrNotFound
	}
	return clone(v), nil
}

func (h *hashed) Put(key, value []byte) error {
	if h.engine.closed.Load() {
		return db.ErrClosed
	}
	k := string(key)
	s := h.shards[h.shardIndex(k)]
	s.mu.Lock()
	s.data[k] = clone(value)
	s.mu.Unlock()
	return nil
}

func (h *hashed) Delete(key []byte) error {
	if h.engine.closed.Load() {
		return db.ErrClosed
	}
	k := string(key)
	s := h.shards[h.shardIndex(k)]
	s.mu.Lock()
	delete(s.data, k)
	s.mu.Unlock()
	return nil
}

// lockAll takes every shard lock in index order.
func (h *hashed) lockAll(write bool) func() {
	for _, s := range h.shards {
		if write {
			s.mu.Lock()
		} else {
			s.mu.RLock()
		}
	}
	return func() {
		for i := len(h.shards) - 1; i >= 0; i-- {
			if write {
				h.shards[i].mu.Unlock()
			} else {
				h.shards[i].mu.RUnlock()
			}
		}
	}
}

func (h *hashed) NewBatch() db.Batch {
	return &batch{engine: h.engine, apply: func(ops []batchOp) {
		unlock := h.lockAll(true)
		defer unlock()
		for _, op := range ops {
			s := h.shards[h.shardIndex(op.key)]
			if op.delete {
				delete(s.data, op.key)
			} else {
				s.data[op.key] = op.value
			}
		}
	}}
}

// NewIterator snapshots the entries within [start, end). The bounds filter
// the enumeration; they do not order it.
func (h *hashed) NewIterator(start, end []byte) (db.Iterator, error) {
	if h.engine.closed.Load() {
		return nil, db.ErrClosed
	}
	unlock := h.lockAll(false)
	defer unlock()

	var entries []item
	for _, s := range h.shards {
		for k, v := range s.data {
			if db.InRange([]byte(k), start, end) {
				entries = append(entries, item{key: k, value: v})
			}
		}
	}
	return &hashIterator{entries: entries, pos: -1}, nil
}

func (h *hashed) ApproximateSize() (uint64, error) {
	unlock := h.lockAll(false)
	defer unlock()

	var total uint64
	for _, s := range h.shards {
		for k, v := range s.data {
			total += uint64(len(k) + len(v))
		}
	}
	return total, nil
}

type hashIterator struct {
	entries []item
	pos     int
	err     error
}

func (it *hashIterator) Valid() bool { return it.pos >= 0 && it.pos < len(it.entries) }

func (it *hashIterator) First() bool {
	it.err = nil
	it.pos = 0
	return it.Valid()
}

func (it *hashIterator) Last() bool {
	it.err = nil
	it.pos = len(it.entries) - 1
	return it.Valid()
}

func (it *hashIterator) SeekGE([]byte) bool {
	it.pos = -1
	it.err = db.ErrUnsupported
	return false
}

func (it *hashIterator) Next() bool {
	if !it.Valid() {
		return false
	}
	it.pos++
	if !it.Valid() {
		it.pos = len(it.entries)
	}
	return it.Valid()
}

func (it *hashIterator) Prev() bool {
	if !it.Valid() {
		return false
	}
	it.pos--
	return it.Valid()
}

func (it *hashIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return []byte(it.entries[it.pos].key)
}

func (it *hashIterator) Value() ([]byte, error) {
	if !it.Valid() {
		return nil, db.ErrIteratorInvalid
	}
	return clone(it.entries[it.pos].value), nil
}

func (it *hashIterator) Error() error { return it.err }

func (it *hashIterator) Close() error {
	it.entries = nil
	it.pos = -1
	return nil
}
