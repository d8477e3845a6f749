package store

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint: channel name per enterprise, or a second membership row
	// for the same (channel, account) pair.
	ErrDuplicate = errors.New("already exists")
)
