package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/eigerco/prefixdb/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(*testing.T) db.Engine {
	return New(Options{Shards: 4})
}

func TestSortedCollection(t *testing.T) {
	dbtest.RunSorted(t, newEngine)
}

func TestHashCollection(t *testing.T) {
	dbtest.RunHash(t, newEngine)
}

func TestIteratorSnapshot(t *testing.T) {
	engine := New(Options{})
	defer engine.Close() //nolint:errcheck

	require.NoError(t, engine.CreateCollection("sorted", db.KindSorted))
	store, err := engine.Collection("sorted")
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("a"), []byte("1")))

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	require.NoError(t, store.Put([]byte("b"), []byte("2")))
	require.NoError(t, store.Put([]byte("a"), []byte("changed")))

	require.True(t, iter.First())
	value, err := iter.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
	assert.False(t, iter.Next())
}

func TestApproximateSize(t *testing.T) {
	for _, kind := range []db.Kind{db.KindSorted, db.KindHash} {
		t.Run(kind.String(), func(t *testing.T) {
			engine := New(Options{})
			defer engine.Close() //nolint:errcheck

			require.NoError(t, engine.CreateCollection("c", kind))
			store, err := engine.Collection("c")
			require.NoError(t, err)

			require.NoError(t, store.Put([]byte("ab"), []byte("cde")))
			require.NoError(t, store.Put([]byte("ab"), []byte("c")))
			size, err := store.(db.Sizer).ApproximateSize()
			require.NoError(t, err)
			assert.Equal(t, uint64(3), size)

			require.NoError(t, store.Delete([]byte("ab")))
			size, err = store.(db.Sizer).ApproximateSize()
			require.NoError(t, err)
			assert.Zero(t, size)
		})
	}
}

func TestConcurrentBatches(t *testing.T) {
	engine := New(Options{Shards: 8})
	defer engine.Close() //nolint:errcheck

	require.NoError(t, engine.CreateCollection("hash", db.KindHash))
	store, err := engine.Collection("hash")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := store.NewBatch()
			for i := range 50 {
				assert.NoError(t, batch.Put([]byte(fmt.Sprintf("w%d-%d", w, i)), []byte("x")))
			}
			assert.NoError(t, batch.Commit())
		}()
	}
	wg.Wait()

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	count := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		count++
	}
	assert.Equal(t, 400, count)
}
