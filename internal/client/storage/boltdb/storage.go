package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/models"
)

var (
	// BoltDB bucket names
	bucketAuth         = []byte("auth")
	bucketCache        = []byte("cache")
	bucketOperations   = []byte("operations")
	bucketOperationIDs = []byte("operation_ids")
	bucketEntityOps    = []byte("entity_operations")
	bucketTombstones   = []byte("tombstones")
	bucketConflicts    = []byte("conflicts")
	bucketMetadata     = []byte("metadata")
)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB, таймаут защищает от второго процесса с тем же файлом
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketAuth,
			bucketCache,
			bucketOperations,
			bucketOperationIDs,
			bucketEntityOps,
			bucketTombstones,
			bucketConflicts,
			bucketMetadata,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return reindexOperations(tx)
	})
}

func (s *Storage) update(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(fn)
}

func (s *Storage) view(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.View(fn)
}

// seqKey кодирует порядковый номер операции так, чтобы курсор обходил их по порядку
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s bucket not found", name)
	}
	return b, nil
}

// getCache читает запись кэша, возвращает nil если ее нет
func getCache(tx *bbolt.Tx, entityID string) (*models.CacheEntry, error) {
	b, err := bucket(tx, bucketCache)
	if err != nil {
		return nil, err
	}
	data := b.Get([]byte(entityID))
	if data == nil {
		return nil, nil
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

func putCache(tx *bbolt.Tx, entry *models.CacheEntry) error {
	b, err := bucket(tx, bucketCache)
	if err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := b.Put([]byte(entry.EntityID), data); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

func deleteCache(tx *bbolt.Tx, entityID string) error {
	b, err := bucket(tx, bucketCache)
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(entityID)); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// writeRebuilt пересчитывает запись кэша сущности из base и активных операций
func writeRebuilt(tx *bbolt.Tx, entityID string, base *models.CacheEntry, ops []*models.Operation, syncedAt time.Time) error {
	existing, err := getCache(tx, entityID)
	if err != nil {
		return err
	}

	entry := models.Rebuild(base, ops)
	if entry == nil {
		return deleteCache(tx, entityID)
	}

	entry.LastSyncedAt = laterOf(entry.LastSyncedAt, syncedAt)
	if existing != nil {
		entry.LastSyncedAt = laterOf(entry.LastSyncedAt, existing.LastSyncedAt)
	}
	return putCache(tx, entry)
}

// baseFromState строит base запись из состояния сервера, nil если сущности на сервере нет
func baseFromState(state *models.EntityState, syncedAt time.Time) *models.CacheEntry {
	if state == nil {
		return nil
	}
	return models.NewCacheEntry(state, syncedAt)
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
