package engine

import (
	"context"
	"fmt"

	"github.com/iudanet/stocksync/internal/client/conflict"
	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/syncerr"
)

// ResolveConflict применяет решение пользователя к конфликтам сущности.
// local перебазирует заблокированную операцию на версию сервера и отправит ее,
// server снимает операцию и принимает состояние сервера. Если заблокированной
// операции уже нет, local ставит в очередь корректирующую операцию.
func (e *Engine) ResolveConflict(ctx context.Context, entityID string, choice conflict.Strategy) (*conflict.Outcome, error) {
	if choice != conflict.StrategyLocal && choice != conflict.StrategyServer {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}

	// Снимок сервера запрашивается до блокировки: сеть не держит блокировку сущности
	states, err := e.remote.FetchSnapshots(ctx, []string{entityID})
	if err != nil {
		return nil, err
	}
	server := states[entityID]

	unlock := e.locks.Lock(entityID)
	defer unlock()

	records, err := e.store.ListConflicts(ctx, entityID)
	if err != nil {
		return nil, syncerr.Storage("conflicts", err)
	}
	blocked, err := e.blockedOperation(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if blocked == nil && len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoConflict, entityID)
	}

	res := conflict.Resolution{Strategy: choice, Reason: "user choice"}
	var out *conflict.Outcome
	if blocked != nil {
		if server == nil && choice == conflict.StrategyLocal && blocked.Kind == models.KindDelete {
			// Удалять уже нечего, сервер и локальное намерение совпадают
			res.Strategy = conflict.StrategyServer
		}
		out, err = e.resolver.Apply(ctx, blocked, records, server, res)
	} else {
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoConflict, entityID)
		}
		out, err = e.resolver.ApplyOrphan(ctx, entityID, records, server, choice)
	}
	if err != nil {
		return nil, syncerr.Storage("resolve", err)
	}

	for _, rec := range records {
		e.metrics.RecordConflict(rec.ConflictType, string(choice))
	}
	if server != nil {
		e.provider.MarkFresh(server.ScopeID, entityID, server.Seq)
	}

	e.logger.Info("Conflict resolved by user",
		"entity_id", entityID,
		"choice", choice,
		"conflicts", len(records))
	e.executor.Trigger()
	return out, nil
}

// blockedOperation возвращает первую заблокированную операцию сущности
func (e *Engine) blockedOperation(ctx context.Context, entityID string) (*models.Operation, error) {
	ops, err := e.queue.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op.Status == models.StatusBlocked {
			return op, nil
		}
	}
	return nil, nil
}

// RetryOperation возвращает failed операцию в очередь
func (e *Engine) RetryOperation(ctx context.Context, id string) (*models.Operation, error) {
	op, err := e.queue.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.executor.Trigger()
	return op, nil
}

// CancelOperation отменяет еще не отправленную операцию и откатывает ее оптимистичную запись
func (e *Engine) CancelOperation(ctx context.Context, id string) (*models.Operation, error) {
	return e.removeOperation(ctx, id, e.queue.Cancel)
}

// DiscardOperation удаляет failed или blocked операцию. Вместе с последней
// заблокированной операцией сущности удаляются и ее конфликты.
func (e *Engine) DiscardOperation(ctx context.Context, id string) (*models.Operation, error) {
	op, err := e.removeOperation(ctx, id, e.queue.Discard)
	if err != nil {
		return nil, err
	}
	if op.Status != models.StatusBlocked {
		return op, nil
	}

	unlock := e.locks.Lock(op.EntityID)
	defer unlock()
	blocked, err := e.blockedOperation(ctx, op.EntityID)
	if err != nil {
		return nil, err
	}
	if blocked == nil {
		if err := e.store.ClearConflicts(ctx, op.EntityID); err != nil {
			return nil, syncerr.Storage("clear_conflicts", err)
		}
	}
	return op, nil
}

func (e *Engine) removeOperation(ctx context.Context, id string, remove func(context.Context, string) (*models.Operation, error)) (*models.Operation, error) {
	current, err := e.queue.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(current.EntityID)
	defer unlock()
	return remove(ctx, id)
}

// BulkDelete удаляет сущности области и возвращается только после того, как
// удаления подтверждены сервером и область перечитана. Иначе push изменение,
// посчитанное до удаления, могло бы вернуть удаленную сущность.
func (e *Engine) BulkDelete(ctx context.Context, scopeID string, entityIDs []string) (*WriteResult, error) {
	result := &WriteResult{}
	for _, id := range entityIDs {
		op, err := e.SubmitOperation(ctx, Mutation{Kind: models.KindDelete, EntityID: id})
		if err != nil {
			return result, fmt.Errorf("failed to delete %s: %w", id, err)
		}
		result.Operations = append(result.Operations, op)
	}
	return e.settle(ctx, scopeID, entityIDs, result)
}

// Duplicate создает копию сущности с новым идентификатором и дожидается
// подтверждения сервера и refresh области
func (e *Engine) Duplicate(ctx context.Context, entityID, newID string) (*WriteResult, error) {
	src, err := e.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	op, err := e.SubmitOperation(ctx, Mutation{
		Kind:       models.KindCreate,
		EntityType: src.EntityType,
		EntityID:   newID,
		ScopeID:    src.ScopeID,
		Payload:    src.Data,
	})
	if err != nil {
		return nil, err
	}

	result := &WriteResult{Operations: []*models.Operation{op}}
	return e.settle(ctx, src.ScopeID, []string{op.EntityID}, result)
}

// settle отправляет операции сущностей и синхронно перечитывает область
func (e *Engine) settle(ctx context.Context, scopeID string, entityIDs []string, result *WriteResult) (*WriteResult, error) {
	drain, err := e.executor.DrainEntities(ctx, entityIDs)
	result.Drain = drain
	if err != nil {
		return result, err
	}

	for _, op := range result.Operations {
		status, ok := drain.Outcomes[op.ID]
		if !ok {
			status = op.Status
		}
		if status != models.StatusDone {
			return result, fmt.Errorf("%w: %s of %s is %s", ErrUnsettled, op.Kind, op.EntityID, status)
		}
	}

	refresh, err := e.provider.Refresh(ctx, scopeID)
	if err != nil {
		return result, err
	}
	result.Refresh = refresh
	return result, nil
}
