package pebble

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/eigerco/prefixdb/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) db.Engine {
	engine, err := NewInMemory()
	require.NoError(t, err)
	return engine
}

func TestKVStore(t *testing.T) {
	dbtest.RunSorted(t, newEngine)
}

func TestHashCollectionUnsupported(t *testing.T) {
	engine := newEngine(t)
	defer engine.Close() //nolint:errcheck

	err := engine.CreateCollection("hash", db.KindHash)
	assert.ErrorIs(t, err, db.ErrUnsupported)
}

func TestReopenKeepsCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pebble")

	engine, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, engine.CreateCollection("default", db.KindSorted))
	store, err := engine.Collection("default")
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("key"), []byte("value")))
	require.NoError(t, engine.Close())

	engine, err = Open(path, Options{ErrorIfNotExists: true})
	require.NoError(t, err)
	defer engine.Close() //nolint:errcheck

	assert.ErrorIs(t, engine.CreateCollection("default", db.KindSorted), db.ErrCollectionExists)
	store, err = engine.Collection("default")
	require.NoError(t, err)
	value, err := store.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	size, err := store.(db.Sizer).ApproximateSize()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, size, uint64(0))
}

func TestOpenMissingFails(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{ErrorIfNotExists: true})
	assert.Error(t, err)
}

func TestCloseDuringOperations(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, engine.CreateCollection("default", db.KindSorted))
	store, err := engine.Collection("default")
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("key"), []byte("value")))

	ops := map[string]func() error{
		"get": func() error {
			_, err := store.Get([]byte("key"))
			return err
		},
		"put": func() error { return store.Put([]byte("key"), []byte("value")) },
		"batch": func() error {
			batch := store.NewBatch()
			defer batch.Close() //nolint:errcheck
			if err := batch.Put([]byte("other"), []byte("v")); err != nil {
				return err
			}
			return batch.Commit()
		},
		"size": func() error {
			_, err := store.(db.Sizer).ApproximateSize()
			return err
		},
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for name, op := range ops {
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				assert.NotPanics(t, func() {
					for {
						if err := op(); err != nil {
							assert.ErrorIs(t, err, db.ErrClosed, name)
							return
						}
					}
				}, name)
			}()
		}
	}

	close(start)
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, engine.Close())
	wg.Wait()
}

func TestIteratorAfterEngineClose(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, engine.CreateCollection("default", db.KindSorted))
	store, err := engine.Collection("default")
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("a"), []byte("1")))

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	require.True(t, iter.First())
	require.NoError(t, iter.Close())

	iter, err = store.NewIterator(nil, nil)
	require.NoError(t, err)
	require.True(t, iter.First())

	// Closing the engine releases the still-open iterator.
	require.NoError(t, engine.Close())
	assert.False(t, iter.Valid())
	assert.False(t, iter.Next())
	assert.Nil(t, iter.Key())
	_, err = iter.Value()
	assert.ErrorIs(t, err, db.ErrIteratorInvalid)
	assert.ErrorIs(t, iter.Error(), db.ErrClosed)
	assert.NoError(t, iter.Close())

	_, err = store.NewIterator(nil, nil)
	assert.ErrorIs(t, err, db.ErrClosed)
}
