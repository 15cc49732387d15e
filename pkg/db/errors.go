package db

import "errors"

var (
	ErrClosed             = errors.New("db: engine is closed")
	ErrNotFound           = errors.New("db: key not found")
	ErrBatchDone          = errors.New("db: batch already committed or closed")
	ErrIteratorInvalid    = errors.New("db: iterator is not positioned")
	ErrUnsupported        = errors.New("db: operation not supported by collection")
	ErrCollectionExists   = errors.New("db: collection already exists")
	ErrCollectionNotFound = errors.New("db: collection not found")
)
