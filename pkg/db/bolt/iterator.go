package bolt

import (
	"bytes"
	"fmt"

	"github.com/eigerco/prefixdb/pkg/db"
	bolt "go.etcd.io/bbolt"
)

// Iterator walks a bucket with a cursor inside a read-only transaction.
type Iterator struct {
	tx         *bolt.Tx
	cursor     *bolt.Cursor
	start, end []byte
	key, value []byte
	valid      bool
}

func (c *Collection) NewIterator(start, end []byte) (db.Iterator, error) {
	if c.engine.closed.Load() {
		return nil, db.ErrClosed
	}
	tx, err := c.engine.db.Begin(false)
	if err != nil {
		return nil, err
	}
	bkt := tx.Bucket(c.bucket)
	if bkt == nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("bucket %q: %w", c.bucket, db.ErrCollectionNotFound)
	}
	return &Iterator{tx: tx, cursor: bkt.Cursor(), start: start, end: end}, nil
}

func (it *Iterator) set(k, v []byte) bool {
	it.valid = k != nil && db.InRange(k, it.start, it.end)
	if !it.valid {
		it.key, it.value = nil, nil
		return false
	}
	it.key, it.value = k, v
	return true
}

func (it *Iterator) First() bool {
	if it.tx == nil {
		return false
	}
	if it.start != nil {
		return it.set(it.cursor.Seek(it.start))
	}
	return it.set(it.cursor.First())
}

func (it *Iterator) Last() bool {
	if it.tx == nil {
		return false
	}
	if it.end == nil {
		return it.set(it.cursor.Last())
	}
	if k, _ := it.cursor.Seek(it.end); k == nil {
		return it.set(it.cursor.Last())
	}
	return it.set(it.cursor.Prev())
}

func (it *Iterator) SeekGE(key []byte) bool {
	if it.tx == nil {
		return false
	}
	if it.start != nil && bytes.Compare(key, it.start) < 0 {
		key = it.start
	}
	return it.set(it.cursor.Seek(key))
}

func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	return it.set(it.cursor.Next())
}

func (it *Iterator) Prev() bool {
	if !it.valid {
		return false
	}
	return it.set(it.cursor.Prev())
}

func (it *Iterator) Valid() bool { return it.valid }

func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return bytes.Clone(it.key)
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.valid {
		return nil, db.ErrIteratorInvalid
	}
	return bytes.Clone(it.value), nil
}

func (it *Iterator) Error() error { return nil }

func (it *Iterator) Close() error {
	if it.tx == nil {
		return nil
	}
	tx := it.tx
	it.tx, it.cursor, it.valid = nil, nil, false
	return tx.Rollback()
}
