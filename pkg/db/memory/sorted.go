package memory

import (
	"sync"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/google/btree"
)

type item struct {
	key   string
	value []byte
}

func less(a, b item) bool { return a.key < b.key }

// sorted is a B-tree collection. Iterators work on a copy-on-write clone, so
// they observe the collection as it was when they were created.
type sorted struct {
	engine *Engine
	mu     sync.RWMutex
	tree   *btree.BTreeG[item]
	bytes  uint64
}

func newSorted(e *Engine, degree int) *sorted {
	return &sorted{engine: e, tree: btree.NewG[item](degree, less)}
}

func (s *sorted) Kind() db.Kind { return db.KindSorted }

func (s *sorted) Get(key []byte) ([]byte, error) {
	if s.engine.closed.Load() {
		return nil, db.ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.tree.Get(item{key: string(key)})
	if !ok {
		return nil, db.ErrNotFound
	}
	return clone(it.value), nil
}

func (s *sorted) Put(key, value []byte) error {
	if s.engine.closed.Load() {
		return db.ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(string(key), clone(value))
	return nil
}

func (s *sorted) Delete(key []byte) error {
	if s.engine.closed.Load() {
		return db.ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(string(key))
	return nil
}

func (s *sorted) set(key string, value []byte) {
	if old, ok := s.tree.ReplaceOrInsert(item{key: key, value: value}); ok {
		s.bytes -= uint64(len(old.key) + len(old.value))
	}
	s.bytes += uint64(len(key) + len(value))
}

func (s *sorted) remove(key string) {
	if old, ok := s.tree.Delete(item{key: key}); ok {
		s.bytes -= uint64(len(old.key) + len(old.value))
	}
}

func (s *sorted) NewBatch() db.Batch {
	return &batch{engine: s.engine, apply: func(ops []batchOp) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, op := range ops {
			if op.delete {
				s.remove(op.key)
			} else {
				s.set(op.key, op.value)
			}
		}
	}}
}

func (s *sorted) NewIterator(start, end []byte) (db.Iterator, error) {
	if s.engine.closed.Load() {
		return nil, db.ErrClosed
	}
	s.mu.Lock()
	snapshot := s.tree.Clone()
	s.mu.Unlock()

	it := &sortedIterator{tree: snapshot}
	if start != nil {
		it.start = string(start)
		it.hasStart = true
	}
	if end != nil {
		it.end = string(end)
		it.hasEnd = true
	}
	return it, nil
}

func (s *sorted) ApproximateSize() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes, nil
}

type sortedIterator struct {
	tree             *btree.BTreeG[item]
	start, end       string
	hasStart, hasEnd bool
	cur              item
	valid            bool
}

func (it *sortedIterator) inRange(key string) bool {
	if it.hasStart && key < it.start {
		return false
	}
	if it.hasEnd && key >= it.end {
		return false
	}
	return true
}

func (it *sortedIterator) land(found item, ok bool) bool {
	it.valid = ok && it.inRange(found.key)
	if it.valid {
		it.cur = found
	} else {
		it.cur = item{}
	}
	return it.valid
}

// ascendFrom positions at the first item >= pivot, or > pivot when strict.
func (it *sortedIterator) ascendFrom(pivot string, strict bool) bool {
	var (
		found item
		ok    bool
	)
	if it.tree == nil {
		return it.land(found, false)
	}
	it.tree.AscendGreaterOrEqual(item{key: pivot}, func(i item) bool {
		if strict && i.key == pivot {
			return true
		}
		found, ok = i, true
		return false
	})
	return it.land(found, ok)
}

// descendFrom positions at the last item <= pivot, or < pivot when strict.
func (it *sortedIterator) descendFrom(pivot string, strict bool) bool {
	var (
		found item
		ok    bool
	)
	if it.tree == nil {
		return it.land(found, false)
	}
	it.tree.DescendLessOrEqual(item{key: pivot}, func(i item) bool {
		if strict && i.key == pivot {
			return true
		}
		found, ok = i, true
		return false
	})
	return it.land(found, ok)
}

func (it *sortedIterator) First() bool {
	if it.hasStart {
		return it.ascendFrom(it.start, false)
	}
	if it.tree == nil {
		return it.land(item{}, false)
	}
	return it.land(it.tree.Min())
}

func (it *sortedIterator) Last() bool {
	if it.hasEnd {
		return it.descendFrom(it.end, true)
	}
	if it.tree == nil {
		return it.land(item{}, false)
	}
	return it.land(it.tree.Max())
}

func (it *sortedIterator) SeekGE(key []byte) bool {
	pivot := string(key)
	if it.hasStart && pivot < it.start {
		pivot = it.start
	}
	return it.ascendFrom(pivot, false)
}

func (it *sortedIterator) Next() bool {
	if !it.valid {
		return false
	}
	return it.ascendFrom(it.cur.key, true)
}

func (it *sortedIterator) Prev() bool {
	if !it.valid {
		return false
	}
	return it.descendFrom(it.cur.key, true)
}

func (it *sortedIterator) Valid() bool { return it.valid }

func (it *sortedIterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return []byte(it.cur.key)
}

func (it *sortedIterator) Value() ([]byte, error) {
	if !it.valid {
		return nil, db.ErrIteratorInvalid
	}
	return clone(it.cur.value), nil
}

func (it *sortedIterator) Error() error { return nil }

func (it *sortedIterator) Close() error {
	it.tree = nil
	it.valid = false
	return nil
}
