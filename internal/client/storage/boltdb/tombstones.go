package boltdb

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// tombstone номер изменения сервера, которым подтверждено собственное удаление сущности
type tombstone struct {
	ScopeID string `json:"scope_id"`
	Seq     int64  `json:"seq"`
}

func putTombstone(tx *bbolt.Tx, entityID string, t tombstone) error {
	b, err := bucket(tx, bucketTombstones)
	if err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tombstone: %w", err)
	}
	if err := b.Put([]byte(entityID), data); err != nil {
		return fmt.Errorf("failed to save tombstone: %w", err)
	}
	return nil
}

// getTombstone возвращает nil, если сущность не удалялась этим клиентом
func getTombstone(tx *bbolt.Tx, entityID string) (*tombstone, error) {
	b, err := bucket(tx, bucketTombstones)
	if err != nil {
		return nil, err
	}
	data := b.Get([]byte(entityID))
	if data == nil {
		return nil, nil
	}
	var t tombstone
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tombstone: %w", err)
	}
	return &t, nil
}

func deleteTombstone(tx *bbolt.Tx, entityID string) error {
	b, err := bucket(tx, bucketTombstones)
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(entityID)); err != nil {
		return fmt.Errorf("failed to delete tombstone: %w", err)
	}
	return nil
}

// buried проверяет, что состояние seq не новее подтвержденного удаления
func buried(tx *bbolt.Tx, entityID string, seq int64) (bool, error) {
	t, err := getTombstone(tx, entityID)
	if err != nil || t == nil {
		return false, err
	}
	return seq <= t.Seq, nil
}

// pruneTombstones удаляет отметки области, которые уже отражены снимком asOfSeq
func pruneTombstones(tx *bbolt.Tx, scopeID string, asOfSeq int64) error {
	b, err := bucket(tx, bucketTombstones)
	if err != nil {
		return err
	}

	var done [][]byte
	err = b.ForEach(func(k, v []byte) error {
		var t tombstone
		if err := json.Unmarshal(v, &t); err != nil {
			return fmt.Errorf("failed to unmarshal tombstone: %w", err)
		}
		if t.ScopeID == scopeID && t.Seq <= asOfSeq {
			done = append(done, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range done {
		if err := b.Delete(k); err != nil {
			return fmt.Errorf("failed to delete tombstone: %w", err)
		}
	}
	return nil
}
