package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/stocksync/internal/models"
)

// SaveConflicts replaces the conflicts stored for an entity
func (s *Storage) SaveConflicts(ctx context.Context, entityID string, records []*models.ConflictRecord) error {
	err := s.update(func(tx *bbolt.Tx) error {
		return putConflicts(tx, entityID, records)
	})
	if err != nil {
		return fmt.Errorf("failed to save conflicts: %w", err)
	}
	return nil
}

// ListConflicts returns the conflicts of one entity
func (s *Storage) ListConflicts(ctx context.Context, entityID string) ([]*models.ConflictRecord, error) {
	var records []*models.ConflictRecord

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		data := b.Get([]byte(entityID))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("failed to unmarshal conflicts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	return records, nil
}

// ListAllConflicts returns the conflicts of all entities
func (s *Storage) ListAllConflicts(ctx context.Context) ([]*models.ConflictRecord, error) {
	var all []*models.ConflictRecord

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var records []*models.ConflictRecord
			if err := json.Unmarshal(v, &records); err != nil {
				return fmt.Errorf("failed to unmarshal conflicts: %w", err)
			}
			all = append(all, records...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	return all, nil
}

// ClearConflicts removes the conflicts of one entity
func (s *Storage) ClearConflicts(ctx context.Context, entityID string) error {
	err := s.update(func(tx *bbolt.Tx) error {
		return clearConflicts(tx, entityID)
	})
	if err != nil {
		return fmt.Errorf("failed to clear conflicts: %w", err)
	}
	return nil
}

func putConflicts(tx *bbolt.Tx, entityID string, records []*models.ConflictRecord) error {
	if len(records) == 0 {
		return clearConflicts(tx, entityID)
	}

	b, err := bucket(tx, bucketConflicts)
	if err != nil {
		return err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal conflicts: %w", err)
	}
	if err := b.Put([]byte(entityID), data); err != nil {
		return fmt.Errorf("failed to save conflicts: %w", err)
	}
	return nil
}

func clearConflicts(tx *bbolt.Tx, entityID string) error {
	b, err := bucket(tx, bucketConflicts)
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(entityID)); err != nil {
		return fmt.Errorf("failed to delete conflicts: %w", err)
	}
	return nil
}
