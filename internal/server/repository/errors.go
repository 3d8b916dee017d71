package repository

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("repository: not found")

	// ErrDuplicate is returned on unique constraint violations
	ErrDuplicate = errors.New("repository: duplicate")
)
