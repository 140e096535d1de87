package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
)

const (
	keyLastDrainAt = "last_drain_at"
)

// scopeSeqPrefix ключи последнего изменения сервера, отраженного в кэше области
var scopeSeqPrefix = []byte("scope_seq:")

func encodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeInt64(buf []byte) (int64, error) {
	if len(buf) != 8 {
		return 0, fmt.Errorf("invalid metadata value length %d", len(buf))
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

// SaveLastDrainTime saves the unix time of the last completed drain
func (s *Storage) SaveLastDrainTime(ctx context.Context, timestamp int64) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if err := bucket.Put([]byte(keyLastDrainAt), encodeInt64(timestamp)); err != nil {
			return fmt.Errorf("failed to save last drain time: %w", err)
		}

		return nil
	})
}

// GetLastDrainTime retrieves the unix time of the last completed drain
// Returns 0 if no drain has been performed yet
func (s *Storage) GetLastDrainTime(ctx context.Context) (int64, error) {
	var timestamp int64

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		// Drain еще не выполнялся
		raw := bucket.Get([]byte(keyLastDrainAt))
		if raw == nil {
			return nil
		}

		var err error
		timestamp, err = decodeInt64(raw)
		return err
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get last drain time: %w", err)
	}

	return timestamp, nil
}

// ScopeSeqs returns, per scope, the last server change reflected in the cache
func (s *Storage) ScopeSeqs(ctx context.Context) (map[string]int64, error) {
	seqs := make(map[string]int64)

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.Seek(scopeSeqPrefix); k != nil && bytes.HasPrefix(k, scopeSeqPrefix); k, v = c.Next() {
			seq, err := decodeInt64(v)
			if err != nil {
				return err
			}
			seqs[string(k[len(scopeSeqPrefix):])] = seq
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scope seqs: %w", err)
	}

	return seqs, nil
}

// advanceScopeSeq сдвигает отметку области только вперед
func advanceScopeSeq(tx *bbolt.Tx, scopeID string, seq int64) error {
	if scopeID == "" || seq <= 0 {
		return nil
	}
	b, err := bucket(tx, bucketMetadata)
	if err != nil {
		return err
	}

	key := append(append([]byte(nil), scopeSeqPrefix...), scopeID...)
	if raw := b.Get(key); raw != nil {
		current, err := decodeInt64(raw)
		if err != nil {
			return err
		}
		if current >= seq {
			return nil
		}
	}
	if err := b.Put(key, encodeInt64(seq)); err != nil {
		return fmt.Errorf("failed to save scope seq: %w", err)
	}
	return nil
}

// clearScopeSeqs забывает отметки всех областей
func clearScopeSeqs(tx *bbolt.Tx) error {
	b, err := bucket(tx, bucketMetadata)
	if err != nil {
		return err
	}
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(scopeSeqPrefix); k != nil && bytes.HasPrefix(k, scopeSeqPrefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return fmt.Errorf("failed to delete scope seq: %w", err)
		}
	}
	return nil
}
