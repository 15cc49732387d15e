package leveldb

import (
	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type Iterator struct {
	iter     iterator.Iterator
	ks       db.Keyspace
	released bool
}

func (c *Collection) NewIterator(start, end []byte) (db.Iterator, error) {
	if c.engine.closed.Load() {
		return nil, db.ErrClosed
	}
	lower, upper := c.ks.Bounds(start, end)
	iter := c.engine.db.NewIterator(&util.Range{Start: lower, Limit: upper}, nil)
	return &Iterator{iter: iter, ks: c.ks}, nil
}

func (it *Iterator) First() bool { return it.iter.First() }

func (it *Iterator) Last() bool { return it.iter.Last() }

func (it *Iterator) SeekGE(key []byte) bool { return it.iter.Seek(it.ks.Wrap(key)) }

func (it *Iterator) Next() bool {
	if !it.iter.Valid() {
		return false
	}
	return it.iter.Next()
}

func (it *Iterator) Prev() bool {
	if !it.iter.Valid() {
		return false
	}
	return it.iter.Prev()
}

func (it *Iterator) Valid() bool { return it.iter.Valid() }

func (it *Iterator) Key() []byte {
	if !it.iter.Valid() {
		return nil
	}
	key := it.ks.Unwrap(it.iter.Key())
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		return nil, db.ErrIteratorInvalid
	}
	val := it.iter.Value()
	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Error() error { return it.iter.Error() }

func (it *Iterator) Close() error {
	if it.released {
		return nil
	}
	it.released = true
	err := it.iter.Error()
	it.iter.Release()
	return err
}
