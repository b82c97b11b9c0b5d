package store

import "errors"

var (
	// ErrNotFound is returned when no row matches the lookup key.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateTag is returned by InsertUser when the tag is already
	// registered.
	ErrDuplicateTag = errors.New("store: tag already registered")

	// ErrUnavailable marks a backend that cannot serve requests at all.
	ErrUnavailable = errors.New("store: unavailable")
)
