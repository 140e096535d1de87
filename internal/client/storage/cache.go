package storage

import (
	"context"
	"time"

	"github.com/iudanet/stocksync/internal/models"
)

// CacheStorage defines the local durable store of entity snapshots
type CacheStorage interface {
	// GetEntry retrieves a cache entry by entity ID
	// Returns ErrEntryNotFound if entry doesn't exist
	GetEntry(ctx context.Context, entityID string) (*models.CacheEntry, error)

	// PutEntries writes a batch of entries atomically.
	// An entry with a lower version than the cached one is skipped,
	// an entry with the same version and data is a no-op.
	PutEntries(ctx context.Context, entries []*models.CacheEntry) error

	// DeleteEntry removes an entry, deleting a missing entry is not an error
	DeleteEntry(ctx context.Context, entityID string) error

	// QueryEntries returns entries matching the predicate (nil matches all)
	QueryEntries(ctx context.Context, match func(*models.CacheEntry) bool) ([]*models.CacheEntry, error)

	// ReplaceScope overwrites the scope with a server snapshot taken at asOfSeq.
	// Entries with active operations are left untouched.
	ReplaceScope(ctx context.Context, scopeID string, states []*models.EntityState, asOfSeq int64, syncedAt time.Time) (*ReplaceResult, error)

	// ApplyRemote merges one push change. Returns false if the change was skipped.
	ApplyRemote(ctx context.Context, change *models.ChangeEvent, syncedAt time.Time) (bool, error)
}

// ReplaceResult contains ReplaceScope results
type ReplaceResult struct {
	Written int // количество записанных записей
	Removed int // количество удаленных записей, отсутствующих в снимке
	Kept    int // количество записей, пропущенных из-за активных операций
	Buried  int // количество состояний снимка, старше подтвержденного удаления
}
