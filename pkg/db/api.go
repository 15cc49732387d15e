package db

// Kind is the physical layout of a collection.
type Kind uint8

const (
	// KindSorted collections keep keys in lexicographic byte order and
	// support positional seeks.
	KindSorted Kind = iota
	// KindHash collections enumerate keys in an unspecified order and
	// cannot seek to an arbitrary key.
	KindHash
)

func (k Kind) String() string {
	switch k {
	case KindSorted:
		return "sorted"
	case KindHash:
		return "hash"
	default:
		return "unknown"
	}
}

// Ordered reports whether iteration over a collection of this kind follows
// key order.
func (k Kind) Ordered() bool {
	return k == KindSorted
}

// Engine owns a physical database and the named collections inside it.
type Engine interface {
	// CreateCollection creates a collection. It returns ErrCollectionExists
	// if a collection with that name is already present.
	CreateCollection(name string, kind Kind) error
	// Collection returns a handle on an existing collection.
	Collection(name string) (KVStore, error)
	Close() error
}

// KVStore represents a key-value storage interface providing basic operations
// for data manipulation and iteration over one collection.
type KVStore interface {
	Writer
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	NewBatch() Batch
	// NewIterator returns an unpositioned iterator over [start, end).
	// Nil bounds are unbounded.
	NewIterator(start, end []byte) (Iterator, error)
	Kind() Kind
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Batch represents an atomic batch of operations.
// All operations in a batch are performed atomically.
type Batch interface {
	Writer
	Delete(key []byte) error
	Commit() error
	Close() error
}

// Iterator provides positioned access over a range of key-value pairs.
// Positioning methods return the resulting validity. Next and Prev on an
// invalid iterator return false and leave it invalid.
// Iterators must be closed after use.
type Iterator interface {
	First() bool
	Last() bool
	// SeekGE positions at the first key >= key. Hash collections do not
	// support it; the iterator becomes invalid and Error reports
	// ErrUnsupported.
	SeekGE(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() ([]byte, error)
	Error() error
	Close() error
}

// Sizer is implemented by collections that can report their approximate
// on-disk or in-memory footprint.
type Sizer interface {
	ApproximateSize() (uint64, error)
}
