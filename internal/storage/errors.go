package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested pool does not exist.
	ErrNotFound = errors.New("pool not found")

	// ErrDuplicateKey is returned when inserting a pool whose
	// (creator, symbol) key already exists.
	ErrDuplicateKey = errors.New("duplicate pool key")

	// ErrVersionConflict is returned when an update carries a stale
	// version. The caller must reload and retry under its pool lock.
	ErrVersionConflict = errors.New("pool version conflict")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
