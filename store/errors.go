package store

import "errors"

var (
	// ErrNotFound is returned when a key has never been set.
	ErrNotFound = errors.New("key not found")
	// ErrTypeMismatch is returned by Get when the stored type differs from
	// the requested one.
	ErrTypeMismatch = errors.New("type mismatch")
)
