package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/models"
)

// CommitOperation appends op and applies it to the cache in one transaction
func (s *Storage) CommitOperation(ctx context.Context, op *models.Operation) error {
	err := s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketOperations)
		if err != nil {
			return err
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate operation sequence: %w", err)
		}
		op.Seq = seq

		if err := putOperation(tx, op); err != nil {
			return err
		}

		base, err := getCache(tx, op.EntityID)
		if err != nil {
			return err
		}
		ops, err := entityOperations(tx, op.EntityID)
		if err != nil {
			return err
		}

		// Оптимистичная запись: base не меняется, Data пересчитывается с учетом новой операции
		var syncedAt time.Time
		if base != nil {
			syncedAt = base.LastSyncedAt
		}
		return writeRebuilt(tx, op.EntityID, base, ops, syncedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to commit operation: %w", err)
	}
	return nil
}

// GetOperation retrieves an operation by ID
func (s *Storage) GetOperation(ctx context.Context, id string) (*models.Operation, error) {
	var op *models.Operation

	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		op, err = getOperation(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// ListOperations returns all operations in creation order
func (s *Storage) ListOperations(ctx context.Context) ([]*models.Operation, error) {
	var ops []*models.Operation

	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		ops, err = allOperations(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	return ops, nil
}

// ListByEntity returns operations of one entity in creation order
func (s *Storage) ListByEntity(ctx context.Context, entityID string) ([]*models.Operation, error) {
	var ops []*models.Operation

	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		ops, err = entityOperations(tx, entityID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list operations of entity %s: %w", entityID, err)
	}

	return ops, nil
}

// ClaimNext finds the head operation of the first eligible entity and marks it in_flight.
// Only the earliest operation of an entity can be claimed, later ones wait for it.
func (s *Storage) ClaimNext(ctx context.Context, opts storage.ClaimOptions) (*models.Operation, error) {
	var claimed *models.Operation

	err := s.update(func(tx *bbolt.Tx) error {
		ops, err := allOperations(tx)
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		for _, op := range ops {
			if seen[op.EntityID] {
				continue
			}
			seen[op.EntityID] = true

			if op.Status != models.StatusPending {
				continue
			}
			if opts.SkipEntities[op.EntityID] || opts.SkipOps[op.ID] {
				continue
			}
			if len(opts.OnlyEntities) > 0 && !opts.OnlyEntities[op.EntityID] {
				continue
			}
			if op.NextAttemptAt.After(opts.Now) {
				continue
			}

			op.Status = models.StatusInFlight
			op.UpdatedAt = opts.Now
			if err := putOperation(tx, op); err != nil {
				return err
			}
			claimed = op
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim operation: %w", err)
	}

	return claimed, nil
}

// UpdateOperation applies fn to the stored operation
func (s *Storage) UpdateOperation(ctx context.Context, id string, fn func(*models.Operation) error) (*models.Operation, error) {
	var updated *models.Operation

	err := s.update(func(tx *bbolt.Tx) error {
		op, err := getOperation(tx, id)
		if err != nil {
			return err
		}
		if err := fn(op); err != nil {
			return err
		}
		if err := putOperation(tx, op); err != nil {
			return err
		}
		updated = op
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// RemoveOperation removes an operation and rebuilds the cache entry of its entity
func (s *Storage) RemoveOperation(ctx context.Context, id string, check func(*models.Operation) error) (*models.Operation, error) {
	var removed *models.Operation

	err := s.update(func(tx *bbolt.Tx) error {
		op, err := getOperation(tx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(op); err != nil {
				return err
			}
		}
		if err := deleteOperation(tx, op); err != nil {
			return err
		}

		base, err := getCache(tx, op.EntityID)
		if err != nil {
			return err
		}
		ops, err := entityOperations(tx, op.EntityID)
		if err != nil {
			return err
		}
		var syncedAt time.Time
		if base != nil {
			syncedAt = base.LastSyncedAt
		}
		if err := writeRebuilt(tx, op.EntityID, base, ops, syncedAt); err != nil {
			return err
		}
		removed = op
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

// CompleteOperation stores the server acknowledgement of op
func (s *Storage) CompleteOperation(ctx context.Context, op *models.Operation, result *models.MutationResult, syncedAt time.Time) error {
	err := s.update(func(tx *bbolt.Tx) error {
		if err := deleteOperation(tx, op); err != nil {
			return err
		}

		existing, err := getCache(tx, op.EntityID)
		if err != nil {
			return err
		}

		var base *models.CacheEntry
		switch {
		case result.Deleted:
			base = nil
			// Снимок области, сделанный до удаления, не должен вернуть сущность
			if result.Seq > 0 {
				if err := putTombstone(tx, op.EntityID, tombstone{ScopeID: op.ScopeID, Seq: result.Seq}); err != nil {
					return err
				}
			}
		case result.State != nil:
			if err := deleteTombstone(tx, op.EntityID); err != nil {
				return err
			}
			base = models.NewCacheEntry(result.State, syncedAt)
			// Push мог уже принести более новую версию
			if existing != nil && existing.OnServer() && existing.Version > base.Version {
				base = existing
			}
		default:
			base = existing
		}

		return acceptBase(tx, op.EntityID, base, syncedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to complete operation: %w", err)
	}
	return nil
}

// SupersedeOperation drops op in favour of the server state
func (s *Storage) SupersedeOperation(ctx context.Context, op *models.Operation, state *models.EntityState, syncedAt time.Time) error {
	err := s.update(func(tx *bbolt.Tx) error {
		if err := deleteOperation(tx, op); err != nil {
			return err
		}
		return acceptBase(tx, op.EntityID, baseFromState(state, syncedAt), syncedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to supersede operation: %w", err)
	}
	return nil
}

// RebaseOperation saves op rewritten on top of the server state
func (s *Storage) RebaseOperation(ctx context.Context, op *models.Operation, state *models.EntityState, syncedAt time.Time) error {
	err := s.update(func(tx *bbolt.Tx) error {
		if err := putOperation(tx, op); err != nil {
			return err
		}

		ops, err := entityOperations(tx, op.EntityID)
		if err != nil {
			return err
		}
		if err := writeRebuilt(tx, op.EntityID, baseFromState(state, syncedAt), ops, syncedAt); err != nil {
			return err
		}
		return clearConflicts(tx, op.EntityID)
	})
	if err != nil {
		return fmt.Errorf("failed to rebase operation: %w", err)
	}
	return nil
}

// AcceptServerState makes state the base of the entity
func (s *Storage) AcceptServerState(ctx context.Context, entityID string, state *models.EntityState, syncedAt time.Time) error {
	err := s.update(func(tx *bbolt.Tx) error {
		return acceptBase(tx, entityID, baseFromState(state, syncedAt), syncedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to accept server state: %w", err)
	}
	return nil
}

// BlockOperation marks op blocked and stores its conflicts in one transaction
func (s *Storage) BlockOperation(ctx context.Context, op *models.Operation, records []*models.ConflictRecord) error {
	err := s.update(func(tx *bbolt.Tx) error {
		op.Status = models.StatusBlocked
		if err := putOperation(tx, op); err != nil {
			return err
		}
		return putConflicts(tx, op.EntityID, records)
	})
	if err != nil {
		return fmt.Errorf("failed to block operation: %w", err)
	}
	return nil
}

// ResetInFlight returns in_flight operations to pending
func (s *Storage) ResetInFlight(ctx context.Context) (int, error) {
	reset := 0

	err := s.update(func(tx *bbolt.Tx) error {
		ops, err := allOperations(tx)
		if err != nil {
			return err
		}
		for _, op := range ops {
			if op.Status != models.StatusInFlight {
				continue
			}
			op.Status = models.StatusPending
			op.UpdatedAt = time.Now()
			if err := putOperation(tx, op); err != nil {
				return err
			}
			reset++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset in-flight operations: %w", err)
	}

	return reset, nil
}

// CountByStatus returns the number of operations per status
func (s *Storage) CountByStatus(ctx context.Context) (map[models.OperationStatus]int, error) {
	counts := make(map[models.OperationStatus]int)

	err := s.view(func(tx *bbolt.Tx) error {
		ops, err := allOperations(tx)
		if err != nil {
			return err
		}
		for _, op := range ops {
			counts[op.Status]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count operations: %w", err)
	}

	return counts, nil
}

// NextAttemptAt returns the earliest retry time among pending head operations
func (s *Storage) NextAttemptAt(ctx context.Context) (time.Time, bool, error) {
	var (
		next  time.Time
		found bool
	)

	err := s.view(func(tx *bbolt.Tx) error {
		ops, err := allOperations(tx)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, op := range ops {
			if seen[op.EntityID] {
				continue
			}
			seen[op.EntityID] = true
			if op.Status != models.StatusPending {
				continue
			}
			if !found || op.NextAttemptAt.Before(next) {
				next = op.NextAttemptAt
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get next attempt time: %w", err)
	}

	return next, found, nil
}

// acceptBase делает base новым подтвержденным состоянием сущности:
// активные операции перебазируются на его версию, кэш пересчитывается, конфликты снимаются
func acceptBase(tx *bbolt.Tx, entityID string, base *models.CacheEntry, syncedAt time.Time) error {
	ops, err := entityOperations(tx, entityID)
	if err != nil {
		return err
	}

	var version int64
	if base != nil {
		version = base.Version
	}
	for _, op := range ops {
		if op.BaseVersion == version {
			continue
		}
		op.BaseVersion = version
		if err := putOperation(tx, op); err != nil {
			return err
		}
	}

	if err := writeRebuilt(tx, entityID, base, ops, syncedAt); err != nil {
		return err
	}
	return clearConflicts(tx, entityID)
}

func putOperation(tx *bbolt.Tx, op *models.Operation) error {
	b, err := bucket(tx, bucketOperations)
	if err != nil {
		return err
	}
	ids, err := bucket(tx, bucketOperationIDs)
	if err != nil {
		return err
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	key := seqKey(op.Seq)
	if err := b.Put(key, data); err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}
	if err := ids.Put([]byte(op.ID), key); err != nil {
		return fmt.Errorf("failed to index operation: %w", err)
	}
	return indexEntity(tx, op.EntityID, key)
}

// entityKey ключ индекса операций сущности: entityID, 0x00, seq
func entityKey(entityID string, key []byte) []byte {
	k := make([]byte, 0, len(entityID)+1+len(key))
	k = append(k, entityID...)
	k = append(k, 0)
	return append(k, key...)
}

func indexEntity(tx *bbolt.Tx, entityID string, key []byte) error {
	idx, err := bucket(tx, bucketEntityOps)
	if err != nil {
		return err
	}
	if err := idx.Put(entityKey(entityID, key), key); err != nil {
		return fmt.Errorf("failed to index operation entity: %w", err)
	}
	return nil
}

// reindexOperations заполняет индекс сущностей для файла, созданного без него
func reindexOperations(tx *bbolt.Tx) error {
	idx, err := bucket(tx, bucketEntityOps)
	if err != nil {
		return err
	}
	if k, _ := idx.Cursor().First(); k != nil {
		return nil
	}
	ops, err := allOperations(tx)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := indexEntity(tx, op.EntityID, seqKey(op.Seq)); err != nil {
			return err
		}
	}
	return nil
}

func getOperation(tx *bbolt.Tx, id string) (*models.Operation, error) {
	b, err := bucket(tx, bucketOperations)
	if err != nil {
		return nil, err
	}
	ids, err := bucket(tx, bucketOperationIDs)
	if err != nil {
		return nil, err
	}

	key := ids.Get([]byte(id))
	if key == nil {
		return nil, storage.ErrOperationNotFound
	}
	data := b.Get(key)
	if data == nil {
		return nil, storage.ErrOperationNotFound
	}

	var op models.Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	return &op, nil
}

func deleteOperation(tx *bbolt.Tx, op *models.Operation) error {
	b, err := bucket(tx, bucketOperations)
	if err != nil {
		return err
	}
	ids, err := bucket(tx, bucketOperationIDs)
	if err != nil {
		return err
	}

	idx, err := bucket(tx, bucketEntityOps)
	if err != nil {
		return err
	}

	key := ids.Get([]byte(op.ID))
	if key == nil {
		return storage.ErrOperationNotFound
	}
	// Копия: key принадлежит странице bbolt и станет недействительным после Delete
	key = append([]byte(nil), key...)

	var stored models.Operation
	if data := b.Get(key); data != nil {
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}
	}
	if err := b.Delete(key); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	if err := ids.Delete([]byte(op.ID)); err != nil {
		return fmt.Errorf("failed to delete operation index: %w", err)
	}
	if err := idx.Delete(entityKey(stored.EntityID, key)); err != nil {
		return fmt.Errorf("failed to delete operation entity index: %w", err)
	}
	return nil
}

func allOperations(tx *bbolt.Tx) ([]*models.Operation, error) {
	b, err := bucket(tx, bucketOperations)
	if err != nil {
		return nil, err
	}

	var ops []*models.Operation
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var op models.Operation
		if err := json.Unmarshal(v, &op); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
		}
		ops = append(ops, &op)
	}
	return ops, nil
}

// entityOperations читает операции сущности через индекс, в порядке создания
func entityOperations(tx *bbolt.Tx, entityID string) ([]*models.Operation, error) {
	b, err := bucket(tx, bucketOperations)
	if err != nil {
		return nil, err
	}
	idx, err := bucket(tx, bucketEntityOps)
	if err != nil {
		return nil, err
	}

	prefix := entityKey(entityID, nil)
	var ops []*models.Operation
	c := idx.Cursor()
	for k, key := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, key = c.Next() {
		data := b.Get(key)
		if data == nil {
			return nil, fmt.Errorf("operation index points to missing operation %x", key)
		}
		var op models.Operation
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
		}
		ops = append(ops, &op)
	}
	return ops, nil
}

func activeEntities(tx *bbolt.Tx) (map[string]bool, error) {
	ops, err := allOperations(tx)
	if err != nil {
		return nil, err
	}

	active := make(map[string]bool)
	for _, op := range ops {
		if op.Active() {
			active[op.EntityID] = true
		}
	}
	return active, nil
}

func hasActiveOperations(tx *bbolt.Tx, entityID string) (bool, error) {
	ops, err := entityOperations(tx, entityID)
	if err != nil {
		return false, err
	}
	for _, op := range ops {
		if op.Active() {
			return true, nil
		}
	}
	return false, nil
}
