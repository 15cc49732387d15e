package pebble

import "errors"

const (
	ErrInIteratorCreation = "failed to create iterator: %w"
	ErrIteratorValue      = "failed to get iterator value: %w"
	ErrOpenDatabase       = "failed to open pebble database %q: %w"
)

var errCorruptCollection = errors.New("pebble: corrupt collection record")
