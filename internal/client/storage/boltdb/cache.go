package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/models"
)

// GetEntry retrieves a cache entry by entity ID
func (s *Storage) GetEntry(ctx context.Context, entityID string) (*models.CacheEntry, error) {
	var entry *models.CacheEntry

	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		entry, err = getCache(tx, entityID)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrEntryNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// PutEntries writes a batch of entries in one transaction
func (s *Storage) PutEntries(ctx context.Context, entries []*models.CacheEntry) error {
	err := s.update(func(tx *bbolt.Tx) error {
		for _, entry := range entries {
			if entry.EntityID == "" {
				return fmt.Errorf("cache entry without entity id")
			}

			existing, err := getCache(tx, entry.EntityID)
			if err != nil {
				return err
			}

			next := entry.Clone()
			if next.Base == nil && next.OnServer() {
				next.Base = next.Data.Clone()
			}

			if existing != nil {
				// Более старая версия не перезаписывает кэш
				if next.Version < existing.Version {
					continue
				}
				// Повторная запись той же версии с теми же данными - no-op
				if next.Version == existing.Version && next.Data.Equal(existing.Data) && next.Deleted == existing.Deleted {
					continue
				}
				next.LastSyncedAt = laterOf(next.LastSyncedAt, existing.LastSyncedAt)
			}

			if err := putCache(tx, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put entries: %w", err)
	}
	return nil
}

// DeleteEntry removes an entry from the cache
func (s *Storage) DeleteEntry(ctx context.Context, entityID string) error {
	err := s.update(func(tx *bbolt.Tx) error {
		return deleteCache(tx, entityID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// QueryEntries returns entries matching the predicate
func (s *Storage) QueryEntries(ctx context.Context, match func(*models.CacheEntry) bool) ([]*models.CacheEntry, error) {
	var entries []*models.CacheEntry

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketCache)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var entry models.CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal cache entry: %w", err)
			}
			if match == nil || match(&entry) {
				entries = append(entries, &entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	return entries, nil
}

// ReplaceScope overwrites the cached scope with a server snapshot
func (s *Storage) ReplaceScope(ctx context.Context, scopeID string, states []*models.EntityState, asOfSeq int64, syncedAt time.Time) (*storage.ReplaceResult, error) {
	result := &storage.ReplaceResult{}

	err := s.update(func(tx *bbolt.Tx) error {
		active, err := activeEntities(tx)
		if err != nil {
			return err
		}

		incoming := make(map[string]*models.EntityState, len(states))
		for _, state := range states {
			incoming[state.ID] = state
		}

		// Удаляем записи, которых нет в снимке
		var stale []string
		b, err := bucket(tx, bucketCache)
		if err != nil {
			return err
		}
		err = b.ForEach(func(k, v []byte) error {
			var entry models.CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal cache entry: %w", err)
			}
			if entry.ScopeID != scopeID {
				return nil
			}
			if _, ok := incoming[entry.EntityID]; ok {
				return nil
			}
			if active[entry.EntityID] {
				result.Kept++
				return nil
			}
			// Запись пришла после снимка - ее удалит или обновит push
			if entry.Seq > asOfSeq {
				return nil
			}
			stale = append(stale, entry.EntityID)
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range stale {
			if err := deleteCache(tx, id); err != nil {
				return err
			}
			result.Removed++
		}

		for _, state := range states {
			if active[state.ID] {
				result.Kept++
				continue
			}
			gone, err := buried(tx, state.ID, state.Seq)
			if err != nil {
				return err
			}
			if gone {
				result.Buried++
				continue
			}
			existing, err := getCache(tx, state.ID)
			if err != nil {
				return err
			}
			entry := models.NewCacheEntry(state, syncedAt)
			if existing != nil {
				if existing.Seq > state.Seq || existing.Version > state.Version {
					continue
				}
				entry.LastSyncedAt = laterOf(entry.LastSyncedAt, existing.LastSyncedAt)
			}
			if err := putCache(tx, entry); err != nil {
				return err
			}
			result.Written++
		}
		if err := pruneTombstones(tx, scopeID, asOfSeq); err != nil {
			return err
		}
		return advanceScopeSeq(tx, scopeID, asOfSeq)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace scope %s: %w", scopeID, err)
	}

	return result, nil
}

// ApplyRemote merges one push change into the cache
func (s *Storage) ApplyRemote(ctx context.Context, change *models.ChangeEvent, syncedAt time.Time) (bool, error) {
	applied := false

	err := s.update(func(tx *bbolt.Tx) error {
		entityID := change.EntityID
		if change.Entity != nil {
			entityID = change.Entity.ID
		}

		active, err := hasActiveOperations(tx, entityID)
		if err != nil {
			return err
		}
		// Локальные изменения сущности еще не отправлены - их не перезаписываем
		if active {
			return nil
		}

		existing, err := getCache(tx, entityID)
		if err != nil {
			return err
		}

		switch change.Kind {
		case models.ChangeInsert, models.ChangeUpdate:
			if change.Entity == nil {
				return fmt.Errorf("%s change without entity", change.Kind)
			}
			gone, err := buried(tx, entityID, change.Seq)
			if err != nil || gone {
				return err
			}
			entry := models.NewCacheEntry(change.Entity, syncedAt)
			if existing != nil {
				if existing.Seq >= change.Seq || existing.Version > entry.Version {
					return nil
				}
				entry.LastSyncedAt = laterOf(entry.LastSyncedAt, existing.LastSyncedAt)
			}
			if err := putCache(tx, entry); err != nil {
				return err
			}
		case models.ChangeDelete:
			if existing == nil || existing.Seq > change.Seq {
				return nil
			}
			if err := deleteCache(tx, entityID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported change kind: %q", change.Kind)
		}
		applied = true
		return advanceScopeSeq(tx, change.ScopeID, change.Seq)
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply remote change: %w", err)
	}

	return applied, nil
}
