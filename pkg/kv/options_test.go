package kv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsValid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr error
	}{
		{name: "capacity_below_working_set", mutate: func(o *Options) { o.Capacity = 1 }, wantErr: ErrInvalidArgument},
		{name: "capacity_equal_working_set", mutate: func(o *Options) {
			o.BlockSize, o.SegmentBlocks, o.MaxAccessThreads, o.Capacity = 64, 16, 4, 64*16*4
		}},
		{name: "working_set_overflows", mutate: func(o *Options) { o.BlockSize, o.SegmentBlocks = 1<<40, 1<<40 }, wantErr: ErrInvalidArgument},
		{name: "zero_threads", mutate: func(o *Options) { o.MaxAccessThreads = 0 }, wantErr: ErrInvalidArgument},
		{name: "empty_collection", mutate: func(o *Options) { o.CollectionName = "" }, wantErr: ErrInvalidArgument},
		{name: "unknown_kind", mutate: func(o *Options) { o.CollectionKind = "btree" }, wantErr: ErrInvalidArgument},
		{name: "unknown_engine", mutate: func(o *Options) { o.Engine = "rocks" }, wantErr: ErrInvalidArgument},
		{name: "hash_on_pebble", mutate: func(o *Options) { o.CollectionKind = KindHash }, wantErr: ErrUnsupported},
		{name: "hash_on_memory", mutate: func(o *Options) { o.Engine, o.CollectionKind = EngineMemory, KindHash }},
		{name: "column_families", mutate: func(o *Options) { o.ColumnFamilies = []string{"cf1"} }, wantErr: ErrUnsupported},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := DefaultOptions()
			tc.mutate(&o)
			err := o.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestParseOptions(t *testing.T) {
	o, err := ParseOptions(DefaultOptions(),
		"pmem_file_size=4096, pmem_block_size=8,pmem_segment_blocks=16,max_access_threads=2,"+
			"engine=memory,collection_kind=hash,populate_pmem_space=true,bogus=1,novalue,serialize_merges=false")
	require.NoError(t, err)

	assert.Equal(t, uint64(4096), o.Capacity)
	assert.Equal(t, uint64(8), o.BlockSize)
	assert.Equal(t, uint64(16), o.SegmentBlocks)
	assert.Equal(t, uint64(2), o.MaxAccessThreads)
	assert.Equal(t, EngineMemory, o.Engine)
	assert.Equal(t, KindHash, o.CollectionKind)
	assert.True(t, o.PopulateSpace)
	assert.False(t, o.SerializeMerges)
	assert.NoError(t, o.Validate())
}

func TestParseOptionsBadValue(t *testing.T) {
	base := DefaultOptions()
	o, err := ParseOptions(base, "block_size=big")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, base, o)

	_, err = ParseOptions(base, "populate_space=maybe")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseOptionsHexValue(t *testing.T) {
	o, err := ParseOptions(DefaultOptions(), "capacity=0x100000000")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<32), o.Capacity)
}

func TestSaveLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")

	o := DefaultOptions()
	o.Engine = EngineLevelDB
	o.Capacity = 1 << 40
	require.NoError(t, SaveOptions(o, path))

	loaded, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, o, loaded)
}

func TestLoadOptionsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine": "bolt"}`), 0644))

	o, err := LoadOptions(path)
	require.NoError(t, err)

	want := DefaultOptions()
	want.Engine = EngineBolt
	assert.Equal(t, want, o)
}

func TestLoadOptionsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine":`), 0644))

	_, err := LoadOptions(path)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
