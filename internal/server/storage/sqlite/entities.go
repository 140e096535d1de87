package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/server/storage"
)

// entityRow строка таблицы entities
type entityRow struct {
	state   *models.EntityState
	deleted bool
}

// querier общая часть *sql.DB и *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const entityColumns = `id, type, scope_id, data, version, seq, deleted, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*entityRow, error) {
	state := &models.EntityState{}
	var data string
	var deleted int
	var updatedAt int64

	if err := row.Scan(&state.ID, &state.Type, &state.ScopeID, &data, &state.Version, &state.Seq, &deleted, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &state.Data); err != nil {
		return nil, fmt.Errorf("failed to decode entity %s: %w", state.ID, err)
	}
	state.UpdatedAt = fromNanos(updatedAt)
	return &entityRow{state: state, deleted: deleted != 0}, nil
}

// getEntity возвращает строку сущности, включая удаленные
func getEntity(ctx context.Context, q querier, id string) (*entityRow, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

// CreateEntity inserts entity. A deleted entity with the same ID is revived with the next version.
func (s *Storage) CreateEntity(ctx context.Context, m storage.Mutation, state *models.EntityState) (*storage.Result, error) {
	var res *storage.Result
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		replayed, err := replay(ctx, tx, m)
		if err != nil || replayed != nil {
			res = replayed
			return err
		}

		version := int64(1)
		cur, err := getEntity(ctx, tx, state.ID)
		switch {
		case err == nil && !cur.deleted:
			return storage.ErrEntityExists
		case err == nil:
			version = cur.state.Version + 1
		case !errors.Is(err, storage.ErrEntityNotFound):
			return err
		}

		next := &models.EntityState{
			ID:        state.ID,
			Type:      state.Type,
			ScopeID:   state.ScopeID,
			Data:      state.Data.Clone(),
			Version:   version,
			UpdatedAt: m.At.UTC(),
		}
		if next.Data == nil {
			next.Data = models.Fields{}
		}
		res, err = commitChange(ctx, tx, m, models.ChangeInsert, next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateEntity merges patch into entity if its version equals baseVersion
func (s *Storage) UpdateEntity(ctx context.Context, m storage.Mutation, id string, patch models.Fields, baseVersion int64) (*storage.Result, error) {
	var res *storage.Result
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		replayed, err := replay(ctx, tx, m)
		if err != nil || replayed != nil {
			res = replayed
			return err
		}

		cur, err := getEntity(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.deleted {
			return storage.ErrEntityNotFound
		}
		if cur.state.Version != baseVersion {
			return fmt.Errorf("%w: entity %s is at version %d, patch based on %d",
				storage.ErrVersionMismatch, id, cur.state.Version, baseVersion)
		}

		if m.Check != nil {
			if err := m.Check(cur.state, patch); err != nil {
				return err
			}
		}

		next := cur.state
		next.Data = next.Data.Merge(patch)
		next.Version++
		next.UpdatedAt = m.At.UTC()
		res, err = commitChange(ctx, tx, m, models.ChangeUpdate, next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteEntity marks entity deleted. baseVersion 0 deletes unconditionally.
func (s *Storage) DeleteEntity(ctx context.Context, m storage.Mutation, id string, baseVersion int64) (*storage.Result, error) {
	var res *storage.Result
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		replayed, err := replay(ctx, tx, m)
		if err != nil || replayed != nil {
			res = replayed
			return err
		}

		cur, err := getEntity(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.deleted {
			return storage.ErrEntityNotFound
		}
		if baseVersion > 0 && cur.state.Version != baseVersion {
			return fmt.Errorf("%w: entity %s is at version %d, delete based on %d",
				storage.ErrVersionMismatch, id, cur.state.Version, baseVersion)
		}

		next := cur.state
		next.Version++
		next.UpdatedAt = m.At.UTC()
		res, err = commitChange(ctx, tx, m, models.ChangeDelete, next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// commitChange пишет изменение в журнал, обновляет сущность и запоминает ключ идемпотентности
func commitChange(ctx context.Context, tx *sql.Tx, m storage.Mutation, kind models.ChangeKind, state *models.EntityState) (*storage.Result, error) {
	at := m.At.UnixNano()

	var snapshot any
	if kind != models.ChangeDelete {
		data, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entity: %w", err)
		}
		snapshot = string(data)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO changes (scope_id, entity_id, kind, entity, created_at) VALUES (?, ?, ?, ?, ?)`,
		state.ScopeID, state.ID, string(kind), snapshot, at)
	if err != nil {
		return nil, fmt.Errorf("failed to append change: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read change seq: %w", err)
	}
	state.Seq = seq

	data, err := json.Marshal(state.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity data: %w", err)
	}
	deleted := 0
	if kind == models.ChangeDelete {
		deleted = 1
	}

	query := `
		INSERT INTO entities (id, type, scope_id, data, version, seq, deleted, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			scope_id = excluded.scope_id,
			data = excluded.data,
			version = excluded.version,
			seq = excluded.seq,
			deleted = excluded.deleted,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query,
		state.ID, state.Type, state.ScopeID, string(data), state.Version, seq, deleted, m.UserID, state.UpdatedAt.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("failed to write entity: %w", err)
	}

	if m.IdempotencyKey != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO idempotency_keys (user_id, key, seq, created_at) VALUES (?, ?, ?, ?)`,
			m.UserID, m.IdempotencyKey, seq, at,
		); err != nil {
			return nil, fmt.Errorf("failed to remember idempotency key: %w", err)
		}
	}

	result := &storage.Result{Seq: seq, Deleted: kind == models.ChangeDelete}
	if !result.Deleted {
		result.Entity = state
	}
	return result, nil
}

// replay возвращает сохраненный результат, если ключ уже использован
func replay(ctx context.Context, q querier, m storage.Mutation) (*storage.Result, error) {
	if m.IdempotencyKey == "" {
		return nil, nil
	}

	query := `
		SELECT c.seq, c.scope_id, c.entity_id, c.kind, c.entity
		FROM idempotency_keys k
		JOIN changes c ON c.seq = k.seq
		WHERE k.user_id = ? AND k.key = ?
	`
	ev, err := scanChange(q.QueryRowContext(ctx, query, m.UserID, m.IdempotencyKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}

	return &storage.Result{
		Entity:   ev.Entity,
		Seq:      ev.Seq,
		Deleted:  ev.Kind == models.ChangeDelete,
		Replayed: true,
	}, nil
}

func scanChange(row scanner) (*models.ChangeEvent, error) {
	ev := &models.ChangeEvent{}
	var kind string
	var entity sql.NullString

	if err := row.Scan(&ev.Seq, &ev.ScopeID, &ev.EntityID, &kind, &entity); err != nil {
		return nil, err
	}
	ev.Kind = models.ChangeKind(kind)
	if entity.Valid {
		var state models.EntityState
		if err := json.Unmarshal([]byte(entity.String), &state); err != nil {
			return nil, fmt.Errorf("failed to decode change %d: %w", ev.Seq, err)
		}
		state.Seq = ev.Seq
		ev.Entity = &state
	}
	return ev, nil
}

// GetEntities returns live entities among ids
func (s *Storage) GetEntities(ctx context.Context, ids []string) ([]*models.EntityState, error) {
	if len(ids) == 0 {
		return []*models.EntityState{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT ` + entityColumns + ` FROM entities WHERE deleted = 0 AND id IN (` + placeholders + `) ORDER BY id`
	return queryEntities(ctx, s.db, query, args...)
}

// ListScope returns live entities of scope and the last change Seq the snapshot includes
func (s *Storage) ListScope(ctx context.Context, scopeID string) ([]*models.EntityState, int64, error) {
	var (
		states []*models.EntityState
		asOf   int64
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&asOf); err != nil {
			return fmt.Errorf("failed to read last seq: %w", err)
		}
		var err error
		states, err = queryEntities(ctx, tx,
			`SELECT `+entityColumns+` FROM entities WHERE scope_id = ? AND deleted = 0 ORDER BY id`, scopeID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return states, asOf, nil
}

// ChangesSince returns changes of scope with Seq greater than after, oldest first
func (s *Storage) ChangesSince(ctx context.Context, scopeID string, after int64, limit int) ([]*models.ChangeEvent, error) {
	query := `
		SELECT seq, scope_id, entity_id, kind, entity
		FROM changes
		WHERE scope_id = ? AND seq > ?
		ORDER BY seq
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, scopeID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	changes := make([]*models.ChangeEvent, 0)
	for rows.Next() {
		ev, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate changes: %w", err)
	}
	return changes, nil
}

func queryEntities(ctx context.Context, q querier, query string, args ...any) ([]*models.EntityState, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	states := make([]*models.EntityState, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, e.state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}
	return states, nil
}
