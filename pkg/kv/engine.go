package kv

import (
	"fmt"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/eigerco/prefixdb/pkg/db/bolt"
	"github.com/eigerco/prefixdb/pkg/db/leveldb"
	"github.com/eigerco/prefixdb/pkg/db/memory"
	"github.com/eigerco/prefixdb/pkg/db/pebble"
)

const (
	maxCacheSize         = 1 << 30
	maxWriteBuffer       = 64 << 20
	maxInitialMmap       = 1 << 30
	maxHashShards        = 1024
	cacheFraction        = 512
	threadsPerCompaction = 16
)

// openEngine opens the engine named by opts. An empty path selects an
// in-memory variant where the engine has one.
func openEngine(path string, create bool, opts Options) (db.Engine, error) {
	segment := opts.BlockSize * opts.SegmentBlocks
	cache := min(opts.Capacity/cacheFraction, maxCacheSize)

	switch opts.Engine {
	case EnginePebble:
		return pebble.Open(path, pebble.Options{
			CacheSize:                int64(cache),
			MemTableSize:             segment,
			MaxConcurrentCompactions: int(max(1, opts.MaxAccessThreads/threadsPerCompaction)),
			InMemory:                 path == "",
			ErrorIfNotExists:         !create,
		})
	case EngineLevelDB:
		return leveldb.Open(path, leveldb.Options{
			WriteBuffer:        int(min(segment, maxWriteBuffer)),
			BlockCacheCapacity: int(cache),
			BlockSize:          int(opts.BlockSize * 64),
			InMemory:           path == "",
			ErrorIfMissing:     !create,
		})
	case EngineBolt:
		if path == "" {
			return nil, fmt.Errorf("%w: bolt engine needs a file path", ErrInvalidArgument)
		}
		return bolt.Open(path, bolt.Options{
			InitialMmapSize: int(min(opts.Capacity/32, maxInitialMmap)),
			PreLoadFreelist: opts.PopulateSpace,
		})
	case EngineMemory:
		shards := (opts.HashBucketNum >> 20) * opts.BucketsPerSlot
		return memory.New(memory.Options{
			Degree: int(max(2, opts.BlockSize/2)),
			Shards: int(min(max(shards, 1), maxHashShards)),
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrInvalidArgument, opts.Engine)
	}
}
