package kv

import (
	"bytes"
	"fmt"
)

// OpType is the kind of a staged transaction operation.
type OpType uint8

const (
	OpWrite OpType = iota + 1
	OpMerge
	OpDelete
)

func (t OpType) String() string {
	switch t {
	case OpWrite:
		return "write"
	case OpMerge:
		return "merge"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one staged operation.
type Op struct {
	Type   OpType
	Prefix string
	Key    string
	Value  []byte
}

type txnState uint8

const (
	txnOpen txnState = iota
	txnSubmitted
	txnRolledBack
)

// Transaction is an ordered log of operations applied atomically by
// Store.Submit. Staging performs no engine writes. A Transaction is not
// safe for concurrent use.
type Transaction struct {
	store *Store
	ops   []Op
	state txnState
}

func (t *Transaction) stage(op Op) error {
	if t.state != txnOpen {
		return ErrTransactionDone
	}
	if err := ValidatePrefix(op.Prefix); err != nil {
		return err
	}
	t.store.log.Debug().Stringer("op", op.Type).Str("prefix", op.Prefix).Str("key", op.Key).Msg("stage")
	t.ops = append(t.ops, op)
	return nil
}

// Set stages a write of value under (prefix, key).
func (t *Transaction) Set(prefix, key string, value []byte) error {
	return t.stage(Op{Type: OpWrite, Prefix: prefix, Key: key, Value: bytes.Clone(value)})
}

// Merge stages a merge of value into (prefix, key). The merge is resolved at
// submission against the committed value; writes staged earlier in the same
// transaction are not visible to it.
func (t *Transaction) Merge(prefix, key string, value []byte) error {
	return t.stage(Op{Type: OpMerge, Prefix: prefix, Key: key, Value: bytes.Clone(value)})
}

// Remove stages a delete of (prefix, key).
func (t *Transaction) Remove(prefix, key string) error {
	return t.stage(Op{Type: OpDelete, Prefix: prefix, Key: key})
}

// RemoveByPrefix stages a delete for every key of prefix present in the
// store right now. Keys written after the call are not removed.
func (t *Transaction) RemoveByPrefix(prefix string) error {
	if t.state != txnOpen {
		return ErrTransactionDone
	}
	it, err := t.store.PrefixIterator(prefix)
	if err != nil {
		return err
	}
	defer it.Close()

	var keys []string
	for ok := it.SeekToFirst(); ok; ok = it.Next() {
		key, err := it.Key()
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	if err := it.Err(); err != nil {
		return err
	}
	return t.removeKeys(prefix, keys)
}

// RemoveRange stages a delete for every key k of prefix with
// start <= k < end present in the store right now.
func (t *Transaction) RemoveRange(prefix, start, end string) error {
	if t.state != txnOpen {
		return ErrTransactionDone
	}
	it, err := t.store.PrefixIterator(prefix)
	if err != nil {
		return err
	}
	defer it.Close()

	var keys []string
	if it.Ordered() {
		for ok := it.LowerBound(start); ok; ok = it.Next() {
			key, err := it.Key()
			if err != nil {
				return err
			}
			if key >= end {
				break
			}
			keys = append(keys, key)
		}
	} else {
		// Hash collections cannot seek: filter the whole enumeration.
		for ok := it.SeekToFirst(); ok; ok = it.Next() {
			key, err := it.Key()
			if err != nil {
				return err
			}
			if key >= start && key < end {
				keys = append(keys, key)
			}
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return t.removeKeys(prefix, keys)
}

func (t *Transaction) removeKeys(prefix string, keys []string) error {
	for _, key := range keys {
		if err := t.Remove(prefix, key); err != nil {
			return fmt.Errorf("stage delete %q: %w", key, err)
		}
	}
	return nil
}

// Len returns the number of staged operations.
func (t *Transaction) Len() int { return len(t.ops) }

// Ops returns a copy of the staged log in submission order.
func (t *Transaction) Ops() []Op {
	out := make([]Op, len(t.ops))
	copy(out, t.ops)
	return out
}
