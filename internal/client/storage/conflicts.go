package storage

import (
	"context"

	"github.com/iudanet/stocksync/internal/models"
)

// ConflictStorage defines storage of detected conflicts, keyed by entity
type ConflictStorage interface {
	// SaveConflicts replaces the conflicts of one entity
	SaveConflicts(ctx context.Context, entityID string, records []*models.ConflictRecord) error

	// ListConflicts returns the conflicts of one entity
	ListConflicts(ctx context.Context, entityID string) ([]*models.ConflictRecord, error)

	// ListAllConflicts returns conflicts of all entities
	ListAllConflicts(ctx context.Context) ([]*models.ConflictRecord, error)

	// ClearConflicts removes all conflicts of one entity
	ClearConflicts(ctx context.Context, entityID string) error
}
