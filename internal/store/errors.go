package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or its id is malformed.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique username or email is already taken.
	ErrConflict = errors.New("already exists")
)
