// Package queue implements the durable operation queue on top of OperationStorage.
//
// Operations of one entity are dequeued strictly in creation order. Retries
// change RetryCount and Status in place, the record is never duplicated.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/syncerr"
)

var (
	// ErrNotCancelable operation is no longer pending
	ErrNotCancelable = errors.New("only pending operations can be cancelled")
	// ErrNotRetryable operation is not failed
	ErrNotRetryable = errors.New("only failed operations can be retried")
	// ErrNotDiscardable operation is neither failed nor blocked
	ErrNotDiscardable = errors.New("only failed or blocked operations can be discarded")
)

// Config параметры политики повторов
type Config struct {
	BaseDelay   time.Duration // BaseDelay задержка перед первым повтором
	MaxRetries  int           // MaxRetries после стольких неудач операция становится failed
	CapExponent int           // CapExponent ограничение степени двойки в задержке
}

// DefaultConfig параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		BaseDelay:   time.Second,
		MaxRetries:  5,
		CapExponent: 6,
	}
}

// Queue очередь операций
type Queue struct {
	store  storage.OperationStorage
	logger *slog.Logger
	now    func() time.Time
	cfg    Config
}

// New создает очередь над хранилищем операций
func New(store storage.OperationStorage, cfg Config, logger *slog.Logger) *Queue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.CapExponent < 0 {
		cfg.CapExponent = 0
	}
	return &Queue{
		store:  store,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock подменяет источник времени
func (q *Queue) SetClock(now func() time.Time) {
	q.now = now
}

// Now возвращает текущее время очереди
func (q *Queue) Now() time.Time {
	return q.now()
}

// Config возвращает параметры повторов
func (q *Queue) Config() Config {
	return q.cfg
}

// Backoff возвращает задержку после retryCount неудачных попыток: base * 2^min(retryCount, cap)
func (q *Queue) Backoff(retryCount int) time.Duration {
	exp := retryCount
	if exp > q.cfg.CapExponent {
		exp = q.cfg.CapExponent
	}
	if exp < 0 {
		exp = 0
	}
	return q.cfg.BaseDelay * time.Duration(1<<uint(exp))
}

// Enqueue сохраняет операцию вместе с оптимистичной записью в кэш
func (q *Queue) Enqueue(ctx context.Context, op *models.Operation) error {
	if op.Status == "" {
		op.Status = models.StatusPending
	}
	if err := q.store.CommitOperation(ctx, op); err != nil {
		return syncerr.Storage("enqueue", err)
	}

	q.logger.Debug("Operation enqueued",
		"op_id", op.ID,
		"entity_id", op.EntityID,
		"kind", op.Kind,
		"seq", op.Seq)
	return nil
}

// DequeueNext захватывает следующую доступную операцию, nil если таких нет
func (q *Queue) DequeueNext(ctx context.Context, opts storage.ClaimOptions) (*models.Operation, error) {
	if opts.Now.IsZero() {
		opts.Now = q.now()
	}
	op, err := q.store.ClaimNext(ctx, opts)
	if err != nil {
		return nil, syncerr.Storage("dequeue", err)
	}
	return op, nil
}

// MarkStatus меняет статус операции, patch может дополнительно изменить поля
func (q *Queue) MarkStatus(ctx context.Context, id string, status models.OperationStatus, patch func(*models.Operation)) (*models.Operation, error) {
	op, err := q.store.UpdateOperation(ctx, id, func(op *models.Operation) error {
		op.Status = status
		op.UpdatedAt = q.now()
		if patch != nil {
			patch(op)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("mark_status", err)
	}
	return op, nil
}

// MarkSent отмечает, что операция уходит на сервер
func (q *Queue) MarkSent(ctx context.Context, id string) (*models.Operation, error) {
	now := q.now()
	return q.MarkStatus(ctx, id, models.StatusInFlight, func(op *models.Operation) {
		op.SentAt = now
	})
}

// RecordFailure применяет политику повторов к временной ошибке.
// После MaxRetries неудач операция становится failed и больше не повторяется автоматически.
func (q *Queue) RecordFailure(ctx context.Context, id string, cause error) (*models.Operation, error) {
	now := q.now()
	op, err := q.store.UpdateOperation(ctx, id, func(op *models.Operation) error {
		op.RetryCount++
		op.LastError = cause.Error()
		op.UpdatedAt = now
		if op.RetryCount >= q.cfg.MaxRetries {
			op.Status = models.StatusFailed
			return nil
		}
		op.Status = models.StatusPending
		op.NextAttemptAt = now.Add(q.Backoff(op.RetryCount))
		return nil
	})
	if err != nil {
		return nil, wrap("record_failure", err)
	}

	if op.Status == models.StatusFailed {
		q.logger.Warn("Operation failed after retries",
			"op_id", op.ID,
			"entity_id", op.EntityID,
			"retries", op.RetryCount,
			"error", cause)
	} else {
		q.logger.Debug("Operation scheduled for retry",
			"op_id", op.ID,
			"retry", op.RetryCount,
			"next_attempt_at", op.NextAttemptAt)
	}
	return op, nil
}

// Reject помечает операцию failed без повторов (сервер отверг мутацию)
func (q *Queue) Reject(ctx context.Context, id string, cause error) (*models.Operation, error) {
	return q.MarkStatus(ctx, id, models.StatusFailed, func(op *models.Operation) {
		op.LastError = cause.Error()
	})
}

// Release возвращает операцию в pending без расхода попыток
func (q *Queue) Release(ctx context.Context, id string, cause error) (*models.Operation, error) {
	return q.MarkStatus(ctx, id, models.StatusPending, func(op *models.Operation) {
		if cause != nil {
			op.LastError = cause.Error()
		}
	})
}

// Get возвращает операцию по ID
func (q *Queue) Get(ctx context.Context, id string) (*models.Operation, error) {
	op, err := q.store.GetOperation(ctx, id)
	if err != nil {
		return nil, wrap("get", err)
	}
	return op, nil
}

// List возвращает все операции в порядке создания
func (q *Queue) List(ctx context.Context) ([]*models.Operation, error) {
	ops, err := q.store.ListOperations(ctx)
	if err != nil {
		return nil, syncerr.Storage("list", err)
	}
	return ops, nil
}

// ListByEntity возвращает операции сущности в порядке создания
func (q *Queue) ListByEntity(ctx context.Context, entityID string) ([]*models.Operation, error) {
	ops, err := q.store.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, syncerr.Storage("list_by_entity", err)
	}
	return ops, nil
}

// Cancel удаляет еще не отправленную операцию и откатывает ее оптимистичную запись
func (q *Queue) Cancel(ctx context.Context, id string) (*models.Operation, error) {
	op, err := q.store.RemoveOperation(ctx, id, func(op *models.Operation) error {
		if op.Status != models.StatusPending {
			return fmt.Errorf("%w: status %s", ErrNotCancelable, op.Status)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("cancel", err)
	}

	q.logger.Info("Operation cancelled", "op_id", op.ID, "entity_id", op.EntityID)
	return op, nil
}

// Retry возвращает failed операцию в очередь с обнуленным счетчиком попыток
func (q *Queue) Retry(ctx context.Context, id string) (*models.Operation, error) {
	now := q.now()
	op, err := q.store.UpdateOperation(ctx, id, func(op *models.Operation) error {
		if op.Status != models.StatusFailed {
			return fmt.Errorf("%w: status %s", ErrNotRetryable, op.Status)
		}
		op.Status = models.StatusPending
		op.RetryCount = 0
		op.NextAttemptAt = time.Time{}
		op.LastError = ""
		op.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, wrap("retry", err)
	}

	q.logger.Info("Operation queued for manual retry", "op_id", op.ID, "entity_id", op.EntityID)
	return op, nil
}

// Discard удаляет failed или blocked операцию и откатывает ее оптимистичную запись
func (q *Queue) Discard(ctx context.Context, id string) (*models.Operation, error) {
	op, err := q.store.RemoveOperation(ctx, id, func(op *models.Operation) error {
		if op.Status != models.StatusFailed && op.Status != models.StatusBlocked {
			return fmt.Errorf("%w: status %s", ErrNotDiscardable, op.Status)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("discard", err)
	}

	q.logger.Info("Operation discarded", "op_id", op.ID, "entity_id", op.EntityID, "status", op.Status)
	return op, nil
}

// Counts возвращает число операций по статусам
func (q *Queue) Counts(ctx context.Context) (map[models.OperationStatus]int, error) {
	counts, err := q.store.CountByStatus(ctx)
	if err != nil {
		return nil, syncerr.Storage("counts", err)
	}
	return counts, nil
}

// RecoverInFlight возвращает в pending операции, оставшиеся in_flight после аварийного завершения
func (q *Queue) RecoverInFlight(ctx context.Context) (int, error) {
	n, err := q.store.ResetInFlight(ctx)
	if err != nil {
		return 0, syncerr.Storage("recover", err)
	}
	if n > 0 {
		q.logger.Info("Recovered in-flight operations", "count", n)
	}
	return n, nil
}

// NextAttemptAt возвращает ближайшее время повтора среди ожидающих операций
func (q *Queue) NextAttemptAt(ctx context.Context) (time.Time, bool, error) {
	next, ok, err := q.store.NextAttemptAt(ctx)
	if err != nil {
		return time.Time{}, false, syncerr.Storage("next_attempt", err)
	}
	return next, ok, nil
}

// wrap оставляет ошибки состояния как есть, остальные считает отказом хранилища
func wrap(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotCancelable),
		errors.Is(err, ErrNotRetryable),
		errors.Is(err, ErrNotDiscardable),
		errors.Is(err, storage.ErrOperationNotFound):
		return err
	default:
		return syncerr.Storage(op, err)
	}
}
