// Package dbtest holds the behaviour every db.Engine must share. Engine
// packages run it from their own tests.
package dbtest

import (
	"testing"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EngineFactory returns a fresh, empty engine. The suite closes it.
type EngineFactory func(t *testing.T) db.Engine

const collectionName = "test_collection"

// RunSorted runs the conformance suite for sorted collections.
func RunSorted(t *testing.T, newEngine EngineFactory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store db.KVStore)
	}{
		{name: "basic_put_get", fn: testBasicPutGet},
		{name: "delete_operations", fn: testDelete},
		{name: "basic_batch_operations", fn: testBasicBatchOperations},
		{name: "batch_commit_closure", fn: testBatchCommitAndClose},
		{name: "ordered_iteration", fn: testOrderedIteration},
		{name: "bounded_range_iteration", fn: testBoundedRangeIteration},
		{name: "seek_and_reverse", fn: testSeekAndReverse},
		{name: "iterator_exhaustion", fn: testIteratorExhaustion},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := openCollection(t, newEngine, db.KindSorted)
			tc.fn(t, store)
		})
	}

	t.Run("collection_lifecycle", func(t *testing.T) {
		testCollectionLifecycle(t, newEngine)
	})
}

// RunHash runs the conformance suite for hash collections.
func RunHash(t *testing.T, newEngine EngineFactory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store db.KVStore)
	}{
		{name: "basic_put_get", fn: testBasicPutGet},
		{name: "delete_operations", fn: testDelete},
		{name: "basic_batch_operations", fn: testBasicBatchOperations},
		{name: "batch_commit_closure", fn: testBatchCommitAndClose},
		{name: "unordered_enumeration", fn: testUnorderedEnumeration},
		{name: "seek_unsupported", fn: testHashSeekUnsupported},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := openCollection(t, newEngine, db.KindHash)
			tc.fn(t, store)
		})
	}
}

func openCollection(t *testing.T, newEngine EngineFactory, kind db.Kind) db.KVStore {
	engine := newEngine(t)
	t.Cleanup(func() {
		require.NoError(t, engine.Close())
	})

	require.NoError(t, engine.CreateCollection(collectionName, kind))
	store, err := engine.Collection(collectionName)
	require.NoError(t, err)
	require.Equal(t, kind, store.Kind())
	return store
}

func put(t *testing.T, store db.KVStore, data map[string]string) {
	for k, v := range data {
		require.NoError(t, store.Put([]byte(k), []byte(v)))
	}
}

func testCollectionLifecycle(t *testing.T, newEngine EngineFactory) {
	engine := newEngine(t)
	defer engine.Close() //nolint:errcheck

	_, err := engine.Collection("missing")
	assert.ErrorIs(t, err, db.ErrCollectionNotFound)

	require.NoError(t, engine.CreateCollection("one", db.KindSorted))
	require.NoError(t, engine.CreateCollection("two", db.KindSorted))
	assert.ErrorIs(t, engine.CreateCollection("one", db.KindSorted), db.ErrCollectionExists)

	one, err := engine.Collection("one")
	require.NoError(t, err)
	two, err := engine.Collection("two")
	require.NoError(t, err)

	// Collections do not see each other's keys.
	require.NoError(t, one.Put([]byte("k"), []byte("from-one")))
	_, err = two.Get([]byte("k"))
	assert.ErrorIs(t, err, db.ErrNotFound)

	iter, err := two.NewIterator(nil, nil)
	require.NoError(t, err)
	assert.False(t, iter.First())
	require.NoError(t, iter.Close())

	require.NoError(t, engine.Close())
	_, err = one.Get([]byte("k"))
	assert.ErrorIs(t, err, db.ErrClosed)
	// Double close should not error
	assert.NoError(t, engine.Close())
}

func testBasicPutGet(t *testing.T, store db.KVStore) {
	key := []byte("test-key")
	value := []byte("test-value")

	require.NoError(t, store.Put(key, value))

	retrieved, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, retrieved)

	// Test non-existent key
	_, err = store.Get([]byte("non-existent"))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func testDelete(t *testing.T, store db.KVStore) {
	key := []byte("delete-test")

	require.NoError(t, store.Put(key, []byte("to-be-deleted")))
	require.NoError(t, store.Delete(key))

	_, err := store.Get(key)
	assert.ErrorIs(t, err, db.ErrNotFound)

	// Delete non-existent key should not error
	assert.NoError(t, store.Delete([]byte("non-existent")))
}

func testBasicBatchOperations(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()
	defer batch.Close() //nolint:errcheck

	keys := [][]byte{[]byte("key1"), []byte("key2"), []byte("key3")}
	values := [][]byte{[]byte("value1"), []byte("value2"), []byte("value3")}

	for i := range keys {
		require.NoError(t, batch.Put(keys[i], values[i]))
	}
	// Delete one key in the same batch
	require.NoError(t, batch.Delete(keys[1]))

	// Nothing is visible before commit
	_, err := store.Get(keys[0])
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, batch.Commit())

	val1, err := store.Get(keys[0])
	require.NoError(t, err)
	assert.Equal(t, values[0], val1)

	_, err = store.Get(keys[1])
	assert.ErrorIs(t, err, db.ErrNotFound)

	val3, err := store.Get(keys[2])
	require.NoError(t, err)
	assert.Equal(t, values[2], val3)
}

func testBatchCommitAndClose(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()

	require.NoError(t, batch.Put([]byte("key"), []byte("value")))
	require.NoError(t, batch.Commit())

	// Operations after commit should fail
	assert.ErrorIs(t, batch.Put([]byte("key2"), []byte("value2")), db.ErrBatchDone)
	assert.ErrorIs(t, batch.Delete([]byte("key2")), db.ErrBatchDone)
	assert.ErrorIs(t, batch.Commit(), db.ErrBatchDone)

	assert.NoError(t, batch.Close())
	assert.NoError(t, batch.Close())

	// A closed batch never commits
	abandoned := store.NewBatch()
	require.NoError(t, abandoned.Put([]byte("never"), []byte("seen")))
	require.NoError(t, abandoned.Close())
	_, err := store.Get([]byte("never"))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func collect(t *testing.T, iter db.Iterator, forward bool) []string {
	var keys []string
	for iter.Valid() {
		keys = append(keys, string(iter.Key()))
		if forward {
			iter.Next()
		} else {
			iter.Prev()
		}
	}
	require.NoError(t, iter.Error())
	return keys
}

func testOrderedIteration(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"d": "4", "a": "1", "c": "3", "b": "2"})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	// Initial state - iterator is not positioned
	assert.False(t, iter.Valid())
	_, err = iter.Value()
	assert.ErrorIs(t, err, db.ErrIteratorInvalid)

	require.True(t, iter.First())
	value, err := iter.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
	assert.Equal(t, []string{"a", "b", "c", "d"}, collect(t, iter, true))

	require.True(t, iter.Last())
	assert.Equal(t, []string{"d", "c", "b", "a"}, collect(t, iter, false))
}

func testBoundedRangeIteration(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"})

	iter, err := store.NewIterator([]byte("b"), []byte("e"))
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	iter.First()
	assert.Equal(t, []string{"b", "c", "d"}, collect(t, iter, true))

	iter.Last()
	assert.Equal(t, []string{"d", "c", "b"}, collect(t, iter, false))

	// Seeks below the lower bound clamp to it
	require.True(t, iter.SeekGE([]byte("a")))
	assert.Equal(t, []byte("b"), iter.Key())

	assert.False(t, iter.SeekGE([]byte("e")))
}

func testSeekAndReverse(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"apple": "1", "banana": "2", "cherry": "3"})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	require.True(t, iter.SeekGE([]byte("b")))
	assert.Equal(t, []byte("banana"), iter.Key())

	require.True(t, iter.SeekGE([]byte("banana")))
	assert.Equal(t, []byte("banana"), iter.Key())

	require.True(t, iter.Prev())
	assert.Equal(t, []byte("apple"), iter.Key())

	assert.False(t, iter.SeekGE([]byte("zebra")))
	assert.False(t, iter.Valid())
}

func testIteratorExhaustion(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"key1": "value1", "key2": "value2"})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	require.True(t, iter.Last())
	assert.False(t, iter.Next())
	assert.False(t, iter.Valid())
	for range 3 {
		assert.False(t, iter.Next())
		assert.False(t, iter.Valid())
	}
	assert.Nil(t, iter.Key())

	require.NoError(t, iter.Close())
	// Double close should not error
	assert.NoError(t, iter.Close())
}

func testUnorderedEnumeration(t *testing.T, store db.KVStore) {
	data := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}
	put(t, store, data)

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	iter.First()
	forward := collect(t, iter, true)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, forward)

	iter.Last()
	backward := collect(t, iter, false)
	require.Len(t, backward, len(forward))
	for i := range forward {
		assert.Equal(t, forward[i], backward[len(backward)-1-i])
	}

	bounded, err := store.NewIterator([]byte("b"), []byte("d"))
	require.NoError(t, err)
	defer bounded.Close() //nolint:errcheck
	bounded.First()
	assert.ElementsMatch(t, []string{"b", "c"}, collect(t, bounded, true))
}

func testHashSeekUnsupported(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"a": "1"})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	assert.False(t, iter.SeekGE([]byte("a")))
	assert.False(t, iter.Valid())
	assert.ErrorIs(t, iter.Error(), db.ErrUnsupported)

	// Rescanning from the first entry still works
	assert.True(t, iter.First())
	assert.NoError(t, iter.Error())
}
