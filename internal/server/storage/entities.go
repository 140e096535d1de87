package storage

import (
	"context"
	"time"

	"github.com/iudanet/stocksync/internal/models"
)

// Mutation общие параметры записи
type Mutation struct {
	At             time.Time // At серверное время изменения
	UserID         string    // UserID автор изменения
	IdempotencyKey string    // IdempotencyKey пусто - без защиты от повтора

	// Check вызывается в транзакции update с текущим состоянием и patch,
	// ошибка отменяет запись. Повтор по ключу идемпотентности Check не вызывает.
	Check func(current *models.EntityState, patch models.Fields) error
}

// Result результат записи
type Result struct {
	Entity   *models.EntityState // Entity новое состояние, nil для delete
	Seq      int64               // Seq номер изменения в журнале
	Deleted  bool
	Replayed bool // Replayed ключ уже использован, возвращен сохраненный результат
}

// EntityStorage defines interface for entity persistence with a change log.
// Every successful mutation appends exactly one change with a new global Seq.
type EntityStorage interface {
	// CreateEntity inserts entity. Returns ErrEntityExists if a live entity with this ID exists.
	CreateEntity(ctx context.Context, m Mutation, state *models.EntityState) (*Result, error)

	// UpdateEntity merges patch into entity if its version equals baseVersion.
	// Returns ErrEntityNotFound or ErrVersionMismatch.
	UpdateEntity(ctx context.Context, m Mutation, id string, patch models.Fields, baseVersion int64) (*Result, error)

	// DeleteEntity removes entity. baseVersion 0 deletes unconditionally.
	DeleteEntity(ctx context.Context, m Mutation, id string, baseVersion int64) (*Result, error)

	// GetEntities returns live entities among ids
	GetEntities(ctx context.Context, ids []string) ([]*models.EntityState, error)

	// ListScope returns live entities of scope and the last change Seq the snapshot includes
	ListScope(ctx context.Context, scopeID string) ([]*models.EntityState, int64, error)

	// ChangesSince returns changes of scope with Seq greater than after, oldest first
	ChangesSince(ctx context.Context, scopeID string, after int64, limit int) ([]*models.ChangeEvent, error)
}
