package storage

import (
	"context"
	"time"

	"github.com/iudanet/stocksync/internal/models"
)

// OperationStorage defines the durable operation log.
// Every method that changes the set of active operations of an entity
// also rebuilds its cache entry in the same transaction.
type OperationStorage interface {
	// CommitOperation appends op to the log and applies it to the cache entry
	// of its entity atomically. Assigns op.Seq.
	CommitOperation(ctx context.Context, op *models.Operation) error

	// GetOperation retrieves an operation by ID
	// Returns ErrOperationNotFound if it doesn't exist
	GetOperation(ctx context.Context, id string) (*models.Operation, error)

	// ListOperations returns all operations in creation order
	ListOperations(ctx context.Context) ([]*models.Operation, error)

	// ListByEntity returns operations of one entity in creation order
	ListByEntity(ctx context.Context, entityID string) ([]*models.Operation, error)

	// ClaimNext marks the next eligible operation in_flight and returns it.
	// Returns nil if nothing is eligible.
	ClaimNext(ctx context.Context, opts ClaimOptions) (*models.Operation, error)

	// UpdateOperation applies fn to the stored operation and saves the result
	UpdateOperation(ctx context.Context, id string, fn func(*models.Operation) error) (*models.Operation, error)

	// RemoveOperation removes an operation after check approves it and rebuilds the cache entry
	RemoveOperation(ctx context.Context, id string, check func(*models.Operation) error) (*models.Operation, error)

	// CompleteOperation removes an acknowledged operation, stores the server result
	// as the new base of the entity, rebases later operations and clears conflicts.
	CompleteOperation(ctx context.Context, op *models.Operation, result *models.MutationResult, syncedAt time.Time) error

	// SupersedeOperation removes an operation whose conflict resolved in favour of the server
	// and accepts the server state (nil if the server has no entity).
	SupersedeOperation(ctx context.Context, op *models.Operation, state *models.EntityState, syncedAt time.Time) error

	// RebaseOperation saves a rewritten operation on top of the server state and clears conflicts
	RebaseOperation(ctx context.Context, op *models.Operation, state *models.EntityState, syncedAt time.Time) error

	// AcceptServerState makes the server state the base of the entity without removing operations
	AcceptServerState(ctx context.Context, entityID string, state *models.EntityState, syncedAt time.Time) error

	// BlockOperation marks an operation blocked and stores the conflicts found for its entity
	BlockOperation(ctx context.Context, op *models.Operation, records []*models.ConflictRecord) error

	// ResetInFlight returns operations left in_flight by a crashed process to pending
	ResetInFlight(ctx context.Context) (int, error)

	// CountByStatus returns the number of operations per status
	CountByStatus(ctx context.Context) (map[models.OperationStatus]int, error)

	// NextAttemptAt returns the earliest retry time of an eligible pending operation
	NextAttemptAt(ctx context.Context) (time.Time, bool, error)
}

// ClaimOptions ограничения выбора следующей операции
type ClaimOptions struct {
	Now          time.Time
	SkipEntities map[string]bool // сущности, которые уже обрабатываются
	SkipOps      map[string]bool // операции, уже обработанные в текущем проходе
	OnlyEntities map[string]bool // если не пусто, выбираются только эти сущности
}
