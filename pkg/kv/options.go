package kv

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/eigerco/prefixdb/pkg/log"
)

const (
	EnginePebble  = "pebble"
	EngineLevelDB = "leveldb"
	EngineBolt    = "bolt"
	EngineMemory  = "memory"

	KindSorted = "sorted"
	KindHash   = "hash"

	DefaultCollectionName = "default_sortedcollection"
)

// Options holds every recognised store setting. The sizing fields describe
// the engine's working set; each engine maps them onto its own knobs.
type Options struct {
	Engine         string `json:"engine"`
	CollectionName string `json:"collection_name"`
	CollectionKind string `json:"collection_kind"`

	MaxAccessThreads uint64 `json:"max_access_threads"`
	Capacity         uint64 `json:"capacity"`
	PopulateSpace    bool   `json:"populate_space"`
	BlockSize        uint64 `json:"block_size"`
	SegmentBlocks    uint64 `json:"segment_blocks"`
	HashBucketNum    uint64 `json:"hash_bucket_num"`
	BucketsPerSlot   uint64 `json:"buckets_per_slot"`

	// SerializeMerges holds a striped lock from the first merge read of a
	// submission until its batch is committed.
	SerializeMerges bool `json:"serialize_merges"`

	// ColumnFamilies must be empty: a store addresses exactly one
	// collection.
	ColumnFamilies []string `json:"column_families,omitempty"`
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Engine:           EnginePebble,
		CollectionName:   DefaultCollectionName,
		CollectionKind:   KindSorted,
		MaxAccessThreads: 64,
		Capacity:         32 << 30,
		BlockSize:        64,
		SegmentBlocks:    2 << 20,
		HashBucketNum:    1 << 27,
		BucketsPerSlot:   1,
		SerializeMerges:  true,
	}
}

// Kind returns the collection kind selected by CollectionKind.
func (o Options) Kind() (db.Kind, error) {
	switch o.CollectionKind {
	case KindSorted, "":
		return db.KindSorted, nil
	case KindHash:
		return db.KindHash, nil
	default:
		return 0, fmt.Errorf("%w: unknown collection kind %q", ErrInvalidArgument, o.CollectionKind)
	}
}

// WorkingSet is the minimum capacity the engine needs: one segment per
// access thread.
func (o Options) WorkingSet() (uint64, bool) {
	hi, seg := bits.Mul64(o.BlockSize, o.SegmentBlocks)
	if hi != 0 {
		return 0, false
	}
	hi, total := bits.Mul64(seg, o.MaxAccessThreads)
	return total, hi == 0
}

// Validate rejects settings the store cannot open with.
func (o Options) Validate() error {
	if len(o.ColumnFamilies) > 0 {
		return fmt.Errorf("%w: column families %v", ErrUnsupported, o.ColumnFamilies)
	}
	if o.CollectionName == "" {
		return fmt.Errorf("%w: empty collection name", ErrInvalidArgument)
	}
	kind, err := o.Kind()
	if err != nil {
		return err
	}
	switch o.Engine {
	case EnginePebble, EngineLevelDB, EngineBolt:
		if kind == db.KindHash {
			return fmt.Errorf("%w: %s engine has no hash collections", ErrUnsupported, o.Engine)
		}
	case EngineMemory:
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidArgument, o.Engine)
	}

	for name, v := range map[string]uint64{
		"max_access_threads": o.MaxAccessThreads,
		"block_size":         o.BlockSize,
		"segment_blocks":     o.SegmentBlocks,
		"hash_bucket_num":    o.HashBucketNum,
		"buckets_per_slot":   o.BucketsPerSlot,
	} {
		if v == 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidArgument, name)
		}
	}

	ws, ok := o.WorkingSet()
	if !ok {
		return fmt.Errorf("%w: working set overflows", ErrInvalidArgument)
	}
	if o.Capacity < ws {
		return fmt.Errorf("%w: capacity %d is below the working set %d (block_size*segment_blocks*max_access_threads)",
			ErrInvalidArgument, o.Capacity, ws)
	}
	return nil
}

// ParseOptions applies a comma separated list of key=value pairs on top of
// base. Malformed pairs and unknown keys are logged and skipped; values that
// do not parse are an error.
func ParseOptions(base Options, s string) (Options, error) {
	o := base
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			log.Store.Warn().Str("option", pair).Msg("invalid option")
			continue
		}
		name, value := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		var target *uint64
		switch name {
		case "engine":
			o.Engine = value
			continue
		case "collection_name":
			o.CollectionName = value
			continue
		case "collection_kind":
			o.CollectionKind = value
			continue
		case "populate_pmem_space", "populate_space":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return base, fmt.Errorf("%w: option %s: %w", ErrInvalidArgument, name, err)
			}
			o.PopulateSpace = b
			continue
		case "serialize_merges":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return base, fmt.Errorf("%w: option %s: %w", ErrInvalidArgument, name, err)
			}
			o.SerializeMerges = b
			continue
		case "max_access_threads":
			target = &o.MaxAccessThreads
		case "pmem_file_size", "capacity":
			target = &o.Capacity
		case "pmem_block_size", "block_size":
			target = &o.BlockSize
		case "pmem_segment_blocks", "segment_blocks":
			target = &o.SegmentBlocks
		case "hash_bucket_num":
			target = &o.HashBucketNum
		case "num_buckets_per_slot", "buckets_per_slot":
			target = &o.BucketsPerSlot
		default:
			log.Store.Warn().Str("option", name).Msg("unknown option")
			continue
		}

		n, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return base, fmt.Errorf("%w: option %s: %w", ErrInvalidArgument, name, err)
		}
		*target = n
	}
	return o, nil
}

// LoadOptions reads a JSON options file from path. Fields missing from the
// file keep their defaults.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	o := DefaultOptions()
	if err := json.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("%w: options file %q: %w", ErrInvalidArgument, path, err)
	}
	return o, nil
}

// SaveOptions writes o to path as formatted JSON.
func SaveOptions(o Options, path string) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
