package kv

import (
	"sync"

	"github.com/eigerco/prefixdb/pkg/log"
)

// MergeOperator combines a staged value with the value already stored under
// the same key. Implementations must be pure functions of their inputs.
type MergeOperator interface {
	Name() string
	// MergeNonexistent is used when the key has no stored value.
	MergeNonexistent(value []byte) ([]byte, error)
	Merge(existing, value []byte) ([]byte, error)
}

type mergeEntry struct {
	prefix string
	op     MergeOperator
}

// mergeRegistry resolves a prefix to the first operator registered for it.
// Later registrations for the same prefix are retained in shadowed and never
// consulted.
type mergeRegistry struct {
	mu       sync.RWMutex
	ops      map[string]MergeOperator
	shadowed []mergeEntry
}

func (r *mergeRegistry) register(prefix string, op MergeOperator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ops == nil {
		r.ops = make(map[string]MergeOperator)
	}
	if kept, ok := r.ops[prefix]; ok {
		log.Store.Warn().Str("prefix", prefix).Str("kept", kept.Name()).Str("ignored", op.Name()).
			Msg("merge operator already registered for prefix")
		r.shadowed = append(r.shadowed, mergeEntry{prefix: prefix, op: op})
		return
	}
	r.ops[prefix] = op
}

func (r *mergeRegistry) find(prefix string) MergeOperator {
	r.mu.RLock()
	op, ok := r.ops[prefix]
	r.mu.RUnlock()

	if !ok {
		log.Store.Debug().Str("prefix", prefix).Msg("no merge operator for prefix")
		return nil
	}
	return op
}
