package storage

import "context"

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveLastDrainTime saves the unix time of the last completed drain
	SaveLastDrainTime(ctx context.Context, timestamp int64) error

	// GetLastDrainTime retrieves the unix time of the last completed drain
	// Returns 0 if no drain has been performed yet
	GetLastDrainTime(ctx context.Context) (int64, error)

	// ScopeSeqs returns, per scope, the last server change reflected in the cache.
	// Advanced by scope refreshes and applied push changes, never moves backwards.
	ScopeSeqs(ctx context.Context) (map[string]int64, error)
}
