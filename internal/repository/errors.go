// Package repository holds the storage errors shared by every backend.
package repository

import "errors"

var (
	// ErrNotFound is returned when a user, diagnosis or log does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a create collides with an existing key.
	ErrConflict = errors.New("conflict: already exists")
)
