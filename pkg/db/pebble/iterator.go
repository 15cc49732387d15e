package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/eigerco/prefixdb/pkg/db"
)

// Iterator wraps a pebble iterator. Every positioning call holds the engine
// read lock; after the engine is closed the iterator is invalid.
type Iterator struct {
	engine *Engine
	iter   *pebble.Iterator
	ks     db.Keyspace
	closed bool
}

func (c *Collection) NewIterator(start, end []byte) (db.Iterator, error) {
	if err := c.engine.acquire(); err != nil {
		return nil, err
	}
	defer c.engine.mu.RUnlock()

	lower, upper := c.ks.Bounds(start, end)
	iter, err := c.engine.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf(ErrInIteratorCreation, err)
	}
	it := &Iterator{engine: c.engine, iter: iter, ks: c.ks}
	c.engine.track(it)
	return it, nil
}

// enter read-locks the engine for one call. It fails once the iterator or
// the engine is closed.
func (it *Iterator) enter() bool {
	if it.engine.acquire() != nil {
		return false
	}
	if it.closed {
		it.leave()
		return false
	}
	return true
}

func (it *Iterator) leave() { it.engine.mu.RUnlock() }

func (it *Iterator) First() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	return it.iter.First()
}

func (it *Iterator) Last() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	return it.iter.Last()
}

func (it *Iterator) SeekGE(key []byte) bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	return it.iter.SeekGE(it.ks.Wrap(key))
}

func (it *Iterator) Next() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	if !it.iter.Valid() {
		return false
	}
	return it.iter.Next()
}

func (it *Iterator) Prev() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	if !it.iter.Valid() {
		return false
	}
	return it.iter.Prev()
}

func (it *Iterator) Key() []byte {
	if !it.enter() {
		return nil
	}
	defer it.leave()
	if !it.iter.Valid() {
		return nil
	}
	key := it.ks.Unwrap(it.iter.Key())
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.enter() {
		return nil, db.ErrIteratorInvalid
	}
	defer it.leave()
	if !it.iter.Valid() {
		return nil, db.ErrIteratorInvalid
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf(ErrIteratorValue, err)
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Valid() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	return it.iter.Valid()
}

func (it *Iterator) Error() error {
	if err := it.engine.acquire(); err != nil {
		return err
	}
	defer it.leave()
	if it.closed {
		return nil
	}
	return it.iter.Error()
}

// Close releases the pebble iterator. Iterators still open when the engine
// closes are released by Engine.Close.
func (it *Iterator) Close() error {
	if it.engine.acquire() != nil {
		return nil
	}
	defer it.leave()
	if it.closed {
		return nil
	}
	it.closed = true
	it.engine.untrack(it)
	return it.iter.Close()
}
