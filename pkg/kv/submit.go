package kv

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/eigerco/prefixdb/pkg/db"
)

const mergeStripes = 256

// stripedLock serializes merges of the same flat key across submissions.
// Distinct keys may share a stripe.
type stripedLock struct {
	stripes [mergeStripes]sync.Mutex
}

// lock takes the stripes of keys in ascending order so that two submissions
// can never wait on each other in a cycle.
func (l *stripedLock) lock(keys [][]byte) (unlock func()) {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, int(xxhash.Sum64(k)%mergeStripes))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		l.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}

// Submit applies the transaction's log as one atomic batch. Operations are
// staged in log order; each merge reads the committed value at submission
// time and stages the operator's result as a write. If any step fails
// nothing is committed. The transaction cannot be reused afterwards.
func (s *Store) Submit(txn *Transaction) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if txn == nil || txn.store != s {
		return fmt.Errorf("%w: transaction does not belong to this store", ErrInvalidArgument)
	}
	if txn.state != txnOpen {
		return ErrTransactionDone
	}
	txn.state = txnSubmitted

	if s.opts.SerializeMerges {
		if keys := mergeKeys(txn.ops); len(keys) > 0 {
			unlock := s.locks.lock(keys)
			defer unlock()
		}
	}

	batch := s.coll.NewBatch()
	defer batch.Close()

	for i, op := range txn.ops {
		key := EncodeKey(op.Prefix, op.Key)
		var err error
		switch op.Type {
		case OpWrite:
			err = batch.Put(key, op.Value)
		case OpDelete:
			err = batch.Delete(key)
		case OpMerge:
			var merged []byte
			merged, err = s.resolveMerge(op, key)
			if err != nil {
				return fmt.Errorf("merge op %d (%q, %q): %w", i, op.Prefix, op.Key, err)
			}
			err = batch.Put(key, merged)
		default:
			return fmt.Errorf("%w: op %d has type %d", ErrInvalidArgument, i, op.Type)
		}
		if err != nil {
			return fmt.Errorf("stage op %d: %w", i, translate(err))
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", translate(err))
	}
	s.log.Debug().Int("ops", len(txn.ops)).Msg("transaction submitted")
	return nil
}

// SubmitSync is Submit. Every engine commits batches durably.
func (s *Store) SubmitSync(txn *Transaction) error {
	return s.Submit(txn)
}

// Rollback discards every staged operation. It performs no engine I/O.
func (s *Store) Rollback(txn *Transaction) {
	if txn == nil {
		return
	}
	txn.ops = nil
	if txn.state == txnOpen {
		txn.state = txnRolledBack
	}
}

func (s *Store) resolveMerge(op Op, key []byte) ([]byte, error) {
	mop := s.merges.find(op.Prefix)
	if mop == nil {
		return nil, fmt.Errorf("%w: prefix %q", ErrNoMergeOperator, op.Prefix)
	}

	existing, err := s.coll.Get(key)
	var merged []byte
	switch {
	case errors.Is(err, db.ErrNotFound):
		merged, err = mop.MergeNonexistent(op.Value)
	case err != nil:
		return nil, translate(err)
	default:
		merged, err = mop.Merge(existing, op.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("merge operator %s: %w", mop.Name(), err)
	}
	s.log.Debug().Str("operator", mop.Name()).Str("prefix", op.Prefix).Str("key", op.Key).
		Bool("existed", existing != nil).Msg("merge resolved")
	return merged, nil
}

func mergeKeys(ops []Op) [][]byte {
	var keys [][]byte
	for _, op := range ops {
		if op.Type == OpMerge {
			keys = append(keys, EncodeKey(op.Prefix, op.Key))
		}
	}
	return keys
}
