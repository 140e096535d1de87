package storage

import "errors"

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrForeignData indicates that the queue still holds operations of another user
	ErrForeignData = errors.New("local queue holds operations of another user")

	// ErrEntryNotFound indicates that cache entry was not found
	ErrEntryNotFound = errors.New("cache entry not found")

	// ErrOperationNotFound indicates that operation was not found in the queue
	ErrOperationNotFound = errors.New("operation not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
