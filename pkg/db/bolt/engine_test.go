package bolt

import (
	"path/filepath"
	"testing"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/eigerco/prefixdb/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) db.Engine {
	engine, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{})
	require.NoError(t, err)
	return engine
}

func TestKVStore(t *testing.T) {
	dbtest.RunSorted(t, newEngine)
}

func TestHashCollectionUnsupported(t *testing.T) {
	engine := newEngine(t)
	defer engine.Close() //nolint:errcheck

	assert.ErrorIs(t, engine.CreateCollection("hash", db.KindHash), db.ErrUnsupported)
}

func TestIteratorReleasesTransaction(t *testing.T) {
	engine := newEngine(t)
	defer engine.Close() //nolint:errcheck

	require.NoError(t, engine.CreateCollection("default", db.KindSorted))
	store, err := engine.Collection("default")
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("a"), []byte("1")))

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	require.True(t, iter.First())
	require.NoError(t, iter.Close())

	assert.False(t, iter.First())
	assert.False(t, iter.Valid())
	require.NoError(t, store.Put([]byte("b"), []byte("2")))
}
