package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/stocksync/internal/client/storage"
)

var (
	authKey  = []byte("current")
	ownerKey = []byte("owner") // владелец кэша и очереди, переживает logout
)

// SaveAuth stores authentication data
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return fmt.Errorf("auth bucket not found")
		}

		if owner := string(bucket.Get(ownerKey)); owner != auth.UserID {
			if owner != "" {
				if err := dropUserData(tx); err != nil {
					return err
				}
			}
			if err := bucket.Put(ownerKey, []byte(auth.UserID)); err != nil {
				return fmt.Errorf("failed to save data owner: %w", err)
			}
		}

		// Сериализуем данные в JSON
		data, err := json.Marshal(auth)
		if err != nil {
			return fmt.Errorf("failed to marshal auth data: %w", err)
		}

		if err := bucket.Put(authKey, data); err != nil {
			return fmt.Errorf("failed to save auth data: %w", err)
		}

		return nil
	})
}

// dropUserData очищает кэш прежнего пользователя.
// Его неотправленные операции ушли бы на сервер с чужим токеном, поэтому при них смена запрещена.
func dropUserData(tx *bbolt.Tx) error {
	ops, err := bucket(tx, bucketOperations)
	if err != nil {
		return err
	}
	if k, _ := ops.Cursor().First(); k != nil {
		return storage.ErrForeignData
	}

	for _, name := range [][]byte{bucketCache, bucketConflicts, bucketTombstones} {
		if err := tx.DeleteBucket(name); err != nil {
			return fmt.Errorf("failed to drop %s bucket: %w", name, err)
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return fmt.Errorf("failed to create %s bucket: %w", name, err)
		}
	}
	return clearScopeSeqs(tx)
}

// GetAuth retrieves stored authentication data
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	var auth *storage.AuthData

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return fmt.Errorf("auth bucket not found")
		}

		data := bucket.Get(authKey)
		if data == nil {
			return storage.ErrAuthNotFound
		}

		auth = &storage.AuthData{}
		if err := json.Unmarshal(data, auth); err != nil {
			return fmt.Errorf("failed to unmarshal auth data: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return auth, nil
}

// DeleteAuth removes stored authentication data (logout)
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return fmt.Errorf("auth bucket not found")
		}

		// Проверяем существование данных
		if bucket.Get(authKey) == nil {
			return storage.ErrAuthNotFound
		}

		if err := bucket.Delete(authKey); err != nil {
			return fmt.Errorf("failed to delete auth data: %w", err)
		}

		return nil
	})
}

// IsAuthenticated checks if a non-expired session exists
func (s *Storage) IsAuthenticated(ctx context.Context) (bool, error) {
	auth, err := s.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return false, nil
		}
		return false, err
	}

	// Проверяем, не истек ли токен
	if time.Now().Unix() >= auth.ExpiresAt {
		return false, nil
	}

	return true, nil
}
