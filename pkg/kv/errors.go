package kv

import (
	"errors"
	"fmt"

	"github.com/eigerco/prefixdb/pkg/db"
)

var (
	// ErrNotFound is the normal negative result of a lookup.
	ErrNotFound         = errors.New("kv: key not found")
	ErrAlreadyExists    = errors.New("kv: already exists")
	ErrInvalidArgument  = errors.New("kv: invalid argument")
	ErrUnsupported      = errors.New("kv: unsupported operation")
	ErrEngineFailure    = errors.New("kv: storage engine failure")
	ErrClosed           = errors.New("kv: store is closed")
	ErrTransactionDone  = errors.New("kv: transaction already submitted or rolled back")
	ErrIteratorInvalid  = errors.New("kv: iterator is not positioned")
	ErrMissingDelimiter = fmt.Errorf("%w: composite key has no delimiter", ErrInvalidArgument)
	ErrNoMergeOperator  = fmt.Errorf("%w: no merge operator registered", ErrInvalidArgument)
)

// translate maps an engine error onto the kv taxonomy. Errors the engine
// does not classify surface as ErrEngineFailure with the cause attached.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, db.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, db.ErrCollectionExists):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case errors.Is(err, db.ErrUnsupported):
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	default:
		return fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}
}
