package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	submit(t, s, func(txn *Transaction) {
		for prefix, keys := range map[string][]string{
			"a":  {"k1", "k2", "k3"},
			"ab": {"k1", "k2"},
			"b":  {"k0"},
		} {
			for _, k := range keys {
				require.NoError(t, txn.Set(prefix, k, []byte(prefix+"/"+k)))
			}
		}
	})
}

func collectKeys(t *testing.T, it *PrefixIterator) []string {
	t.Helper()
	var keys []string
	for ok := it.SeekToFirst(); ok; ok = it.Next() {
		k, err := it.Key()
		require.NoError(t, err)
		keys = append(keys, k)
	}
	require.NoError(t, it.Err())
	return keys
}

func TestPrefixIteratorScope(t *testing.T) {
	s := newMemoryStore(t, KindSorted)
	seed(t, s)

	it, err := s.PrefixIterator("a")
	require.NoError(t, err)
	defer it.Close()

	assert.True(t, it.Ordered())
	assert.Equal(t, "a", it.Prefix())
	assert.Equal(t, []string{"k1", "k2", "k3"}, collectKeys(t, it))

	require.True(t, it.SeekToLast())
	k, err := it.Key()
	require.NoError(t, err)
	assert.Equal(t, "k3", k)
	v, err := it.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("a/k3"), v)

	require.True(t, it.Prev())
	k, err = it.Key()
	require.NoError(t, err)
	assert.Equal(t, "k2", k)
}

func TestPrefixIteratorLowerBound(t *testing.T) {
	s := newMemoryStore(t, KindSorted)
	seed(t, s)

	it, err := s.PrefixIterator("a")
	require.NoError(t, err)
	defer it.Close()

	tests := []struct {
		seek  string
		want  string
		valid bool
	}{
		{seek: "", want: "k1", valid: true},
		{seek: "k2", want: "k2", valid: true},
		{seek: "k25", want: "k3", valid: true},
		{seek: "k4", valid: false},
	}
	for _, tc := range tests {
		t.Run(tc.seek, func(t *testing.T) {
			assert.Equal(t, tc.valid, it.LowerBound(tc.seek))
			if !tc.valid {
				assert.False(t, it.Valid())
				return
			}
			k, err := it.Key()
			require.NoError(t, err)
			assert.Equal(t, tc.want, k)
		})
	}

	require.True(t, it.UpperBound("k2"))
	k, err := it.Key()
	require.NoError(t, err)
	assert.Equal(t, "k2", k)
}

func TestIteratorExhaustion(t *testing.T) {
	s := newMemoryStore(t, KindSorted)
	seed(t, s)

	it, err := s.PrefixIterator("b")
	require.NoError(t, err)
	defer it.Close()

	assert.False(t, it.Valid())
	_, err = it.Key()
	assert.ErrorIs(t, err, ErrIteratorInvalid)

	require.True(t, it.SeekToFirst())
	assert.False(t, it.Next())
	assert.False(t, it.Valid())
	assert.False(t, it.Next())
	assert.False(t, it.Prev())
	_, err = it.Value()
	assert.ErrorIs(t, err, ErrIteratorInvalid)
	assert.NoError(t, it.Err())

	empty, err := s.PrefixIterator("missing")
	require.NoError(t, err)
	defer empty.Close()
	assert.False(t, empty.SeekToFirst())
	assert.False(t, empty.SeekToLast())
}

func TestWholeSpaceIterator(t *testing.T) {
	s := newMemoryStore(t, KindSorted)
	seed(t, s)

	it, err := s.WholeSpaceIterator()
	require.NoError(t, err)
	defer it.Close()

	type entry struct{ prefix, key string }
	var all []entry
	for ok := it.SeekToFirst(); ok; ok = it.Next() {
		p, k, err := it.RawKey()
		require.NoError(t, err)
		all = append(all, entry{p, k})
	}
	assert.Equal(t, []entry{
		{"a", "k1"}, {"a", "k2"}, {"a", "k3"},
		{"ab", "k1"}, {"ab", "k2"},
		{"b", "k0"},
	}, all)

	// A bounded scan stops once the prefix changes.
	var keys []string
	for ok := it.LowerBound("ab", ""); ok && it.RawKeyIsPrefixed("ab"); ok = it.Next() {
		k, err := it.Key()
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"k1", "k2"}, keys)

	require.True(t, it.SeekToLast())
	assert.True(t, it.RawKeyIsPrefixed("b"))

	require.True(t, it.SeekToFirstKey(EncodeKey("ab", "k2")))
	p, k, err := it.RawKey()
	require.NoError(t, err)
	assert.Equal(t, "ab", p)
	assert.Equal(t, "k2", k)

	assert.False(t, it.LowerBound("bad\x00", ""))
	assert.ErrorIs(t, it.Err(), ErrInvalidArgument)
}

func TestIteratorErrClearedBySeek(t *testing.T) {
	s := newMemoryStore(t, KindSorted)
	seed(t, s)

	it, err := s.WholeSpaceIterator()
	require.NoError(t, err)
	defer it.Close()

	seeks := map[string]func() bool{
		"first":     it.SeekToFirst,
		"last":      it.SeekToLast,
		"first key": func() bool { return it.SeekToFirstKey(EncodeKey("a", "k2")) },
		"last key":  func() bool { return it.SeekToLastKey(EncodeKey("a", "k2")) },
		"lower":     func() bool { return it.LowerBound("ab", "") },
		"upper":     func() bool { return it.UpperBound("b", "") },
	}
	for name, seek := range seeks {
		t.Run(name, func(t *testing.T) {
			assert.False(t, it.LowerBound("bad\x00", ""))
			require.ErrorIs(t, it.Err(), ErrInvalidArgument)

			assert.True(t, seek())
			assert.NoError(t, it.Err())
		})
	}
}

func TestIteratorClose(t *testing.T) {
	s := newMemoryStore(t, KindSorted)
	seed(t, s)

	it, err := s.PrefixIterator("a")
	require.NoError(t, err)
	require.True(t, it.SeekToFirst())
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())

	assert.False(t, it.Valid())
	assert.False(t, it.Next())
	assert.False(t, it.SeekToFirst())
	assert.NoError(t, it.Err())
}

func TestHashIterator(t *testing.T) {
	s := newMemoryStore(t, KindHash)
	seed(t, s)

	it, err := s.PrefixIterator("a")
	require.NoError(t, err)
	defer it.Close()

	assert.False(t, it.Ordered())
	assert.ElementsMatch(t, []string{"k1", "k2", "k3"}, collectKeys(t, it))

	// Seeks degrade to a rescan of the namespace.
	require.True(t, it.LowerBound("k3"))
	var keys []string
	for ok := it.Valid(); ok; ok = it.Next() {
		k, err := it.Key()
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"k1", "k2", "k3"}, keys)
	assert.NoError(t, it.Err())

	_, err = s.PrefixIterator("bad\x00")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIteratorOnDisk(t *testing.T) {
	path := t.TempDir() + "/store"
	s, err := Open(path, true, smallOptions(EnginePebble, KindSorted))
	require.NoError(t, err)
	defer s.Close()
	seed(t, s)

	it, err := s.PrefixIterator("ab")
	require.NoError(t, err)
	defer it.Close()
	assert.Equal(t, []string{"k1", "k2"}, collectKeys(t, it))
}
