package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrEntityNotFound indicates that entity does not exist or was deleted
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityExists indicates that entity with this ID already exists
	ErrEntityExists = errors.New("entity already exists")

	// ErrVersionMismatch indicates that base version of a mutation is not the current one
	ErrVersionMismatch = errors.New("version mismatch")
)
