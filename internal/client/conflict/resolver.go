package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/stocksync/internal/models"
)

// Resolution решение по конфликту
type Resolution struct {
	Strategy Strategy `json:"strategy"`
	Reason   string   `json:"reason"`
	Auto     bool     `json:"auto"` // Auto решение принято политикой, а не пользователем
}

// Store операции хранилища, через которые применяется решение
type Store interface {
	GetEntry(ctx context.Context, entityID string) (*models.CacheEntry, error)
	CommitOperation(ctx context.Context, op *models.Operation) error
	SupersedeOperation(ctx context.Context, op *models.Operation, state *models.EntityState, syncedAt time.Time) error
	RebaseOperation(ctx context.Context, op *models.Operation, state *models.EntityState, syncedAt time.Time) error
	AcceptServerState(ctx context.Context, entityID string, state *models.EntityState, syncedAt time.Time) error
	BlockOperation(ctx context.Context, op *models.Operation, records []*models.ConflictRecord) error
}

// Outcome результат применения решения
type Outcome struct {
	Operation  *models.Operation // Operation операция после применения (nil если снята)
	Corrective *models.Operation // Corrective новая операция, отправляющая локальное состояние
	Strategy   Strategy
	Superseded bool // операция снята в пользу сервера
	Rebased    bool // операция перебазирована на версию сервера и будет отправлена
	Blocked    bool // операция ждет решения пользователя
}

// Resolver принимает решения по конфликтам и применяет их к хранилищу
type Resolver struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	policy Policy
}

// NewResolver создает резолвер
func NewResolver(store Store, policy Policy, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		policy: policy,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock подменяет источник времени
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Resolve выбирает стратегию для одного конфликта
func (r *Resolver) Resolve(record *models.ConflictRecord) Resolution {
	switch record.ConflictType {
	case models.ConflictVersion:
		if r.policy.ManualVersionConflicts {
			return Resolution{Strategy: StrategyManual, Reason: "version conflicts require a decision"}
		}
		return Resolution{Strategy: StrategyServer, Auto: true, Reason: "another writer committed first"}

	case models.ConflictTimestamp:
		if record.ServerSnapshot != nil && record.LocalSnapshot != nil &&
			record.ServerSnapshot.UpdatedAt.Sub(record.LocalSnapshot.UpdatedAt) > r.policy.ServerWinsAfter {
			return Resolution{Strategy: StrategyServer, Auto: true, Reason: "server copy is much newer"}
		}
		return Resolution{Strategy: StrategyManual, Reason: "server copy changed recently"}

	case models.ConflictContent:
		if r.policy.nonCritical(record.EntityType, record.Field) {
			return Resolution{Strategy: StrategyLocal, Auto: true, Reason: fmt.Sprintf("%s is non-critical", record.Field)}
		}
		return Resolution{Strategy: StrategyManual, Reason: fmt.Sprintf("%s differs", record.Field)}
	}

	return Resolution{Strategy: StrategyManual, Reason: "unknown conflict type"}
}

// ResolveAll сводит решения по всем конфликтам сущности в одно:
// manual, если хотя бы один требует решения, иначе server, если хотя бы один за сервер, иначе local
func (r *Resolver) ResolveAll(records []*models.ConflictRecord) Resolution {
	var server, local *Resolution
	for _, rec := range records {
		res := r.Resolve(rec)
		switch res.Strategy {
		case StrategyManual:
			return res
		case StrategyServer:
			if server == nil {
				server = &res
			}
		case StrategyLocal:
			if local == nil {
				local = &res
			}
		}
	}
	switch {
	case server != nil:
		return *server
	case local != nil:
		return *local
	default:
		return Resolution{Strategy: StrategyLocal, Auto: true, Reason: "no conflicts"}
	}
}

// Apply применяет решение к операции op, для которой найдены records.
// server - актуальное состояние сервера (nil, если сущности там нет).
func (r *Resolver) Apply(ctx context.Context, op *models.Operation, records []*models.ConflictRecord, server *models.EntityState, res Resolution) (*Outcome, error) {
	now := r.now()

	switch res.Strategy {
	case StrategyServer:
		if err := r.store.SupersedeOperation(ctx, op, server, now); err != nil {
			return nil, err
		}
		r.logger.Info("Conflict resolved in favour of server",
			"entity_id", op.EntityID,
			"op_id", op.ID,
			"reason", res.Reason)
		return &Outcome{Strategy: res.Strategy, Superseded: true}, nil

	case StrategyLocal:
		rebased, err := r.rebase(ctx, op, server)
		if err != nil {
			return nil, err
		}
		if err := r.store.RebaseOperation(ctx, rebased, server, now); err != nil {
			return nil, err
		}
		r.logger.Info("Conflict resolved in favour of local edit",
			"entity_id", op.EntityID,
			"op_id", op.ID,
			"kind", rebased.Kind,
			"reason", res.Reason)
		return &Outcome{Strategy: res.Strategy, Operation: rebased, Rebased: true}, nil

	case StrategyManual:
		blocked := op.Clone()
		blocked.UpdatedAt = now
		if err := r.store.BlockOperation(ctx, blocked, records); err != nil {
			return nil, err
		}
		r.logger.Warn("Conflict requires a decision",
			"entity_id", op.EntityID,
			"op_id", op.ID,
			"conflicts", len(records),
			"reason", res.Reason)
		return &Outcome{Strategy: res.Strategy, Operation: blocked, Blocked: true}, nil
	}

	return nil, fmt.Errorf("unknown resolution strategy %q", res.Strategy)
}

// ApplyOrphan применяет решение к конфликтам сущности, у которой больше нет заблокированной операции.
// server wins принимает состояние сервера, local wins ставит в очередь корректирующую операцию.
func (r *Resolver) ApplyOrphan(ctx context.Context, entityID string, records []*models.ConflictRecord, server *models.EntityState, strategy Strategy) (*Outcome, error) {
	now := r.now()

	switch strategy {
	case StrategyServer:
		if err := r.store.AcceptServerState(ctx, entityID, server, now); err != nil {
			return nil, err
		}
		return &Outcome{Strategy: strategy, Superseded: true}, nil

	case StrategyLocal:
		if len(records) == 0 || records[0].LocalSnapshot == nil {
			return nil, fmt.Errorf("no local snapshot to restore for %s", entityID)
		}
		rec := records[0]
		local := rec.LocalSnapshot.Data

		var op *models.Operation
		if server == nil {
			op = models.NewOperation(models.KindCreate, rec.EntityType, entityID, rec.ScopeID, local, now)
		} else {
			patch := local.Pick(server.Data.Diff(local))
			if len(patch) == 0 {
				if err := r.store.AcceptServerState(ctx, entityID, server, now); err != nil {
					return nil, err
				}
				return &Outcome{Strategy: strategy}, nil
			}
			op = models.NewOperation(models.KindUpdate, rec.EntityType, entityID, rec.ScopeID, patch, now)
			op.BaseVersion = server.Version
		}
		// Состояние сервера становится базой, поверх нее корректирующая операция
		if err := r.store.AcceptServerState(ctx, entityID, server, now); err != nil {
			return nil, err
		}
		if err := r.store.CommitOperation(ctx, op); err != nil {
			return nil, err
		}
		r.logger.Info("Corrective operation enqueued", "entity_id", entityID, "op_id", op.ID, "kind", op.Kind)
		return &Outcome{Strategy: strategy, Corrective: op}, nil
	}

	return nil, fmt.Errorf("strategy %q cannot be applied", strategy)
}

// rebase переписывает op поверх состояния сервера так, чтобы отправка привела сервер к локальному состоянию
func (r *Resolver) rebase(ctx context.Context, op *models.Operation, server *models.EntityState) (*models.Operation, error) {
	rebased := op.Clone()
	rebased.Status = models.StatusPending
	rebased.UpdatedAt = r.now()
	rebased.NextAttemptAt = time.Time{}
	rebased.SentAt = time.Time{}

	if server == nil {
		// На сервере сущности нет: локальное состояние восстанавливается созданием
		if op.Kind == models.KindDelete {
			return nil, fmt.Errorf("cannot rebase delete of %s: entity is gone on server", op.EntityID)
		}
		entry, err := r.store.GetEntry(ctx, op.EntityID)
		if err != nil {
			return nil, fmt.Errorf("failed to get cache entry: %w", err)
		}
		rebased.Kind = models.KindCreate
		rebased.Payload = entry.Data.Clone()
		rebased.BaseVersion = 0
		return rebased, nil
	}

	rebased.BaseVersion = server.Version
	if op.Kind != models.KindUpdate {
		return rebased, nil
	}

	// Расширяем patch полями, в которых локальное состояние расходится с сервером
	entry, err := r.store.GetEntry(ctx, op.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	payload := entry.Data.Pick(server.Data.Diff(entry.Data))
	for k, v := range op.Payload {
		payload[k] = v
	}
	rebased.Payload = payload
	return rebased, nil
}
