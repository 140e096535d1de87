package models

import "time"

// ConflictType классификация расхождения
type ConflictType string

// Типы конфликтов в порядке приоритета
const (
	ConflictVersion   ConflictType = "version"
	ConflictTimestamp ConflictType = "timestamp"
	ConflictContent   ConflictType = "content"
)

// Snapshot снимок сущности для сравнения локального и серверного состояния
type Snapshot struct {
	UpdatedAt time.Time `json:"updated_at"`
	Data      Fields    `json:"data"`
	Version   int64     `json:"version"`
}

// SnapshotFromState строит снимок из состояния сервера
func SnapshotFromState(state *EntityState) *Snapshot {
	if state == nil {
		return nil
	}
	return &Snapshot{
		Data:      state.Data.Clone(),
		Version:   state.Version,
		UpdatedAt: state.UpdatedAt,
	}
}

// ConflictRecord свидетельство расхождения локального и серверного состояния одной сущности.
// ServerSnapshot равен nil, если на сервере сущности больше нет.
type ConflictRecord struct {
	DetectedAt     time.Time    `json:"detected_at"`               // DetectedAt время обнаружения
	LocalSnapshot  *Snapshot    `json:"local_snapshot"`            // LocalSnapshot локальное состояние
	ServerSnapshot *Snapshot    `json:"server_snapshot,omitempty"` // ServerSnapshot состояние сервера
	ID             string       `json:"id"`                        // ID идентификатор записи (UUID)
	EntityID       string       `json:"entity_id"`                 // EntityID сущность
	EntityType     string       `json:"entity_type"`               // EntityType тип сущности
	ScopeID        string       `json:"scope_id"`                  // ScopeID область
	OperationID    string       `json:"operation_id"`              // OperationID операция, перед отправкой которой найден конфликт
	ConflictType   ConflictType `json:"conflict_type"`             // ConflictType version, timestamp или content
	Field          string       `json:"field,omitempty"`           // Field имя поля для content конфликтов
}

// ServerVersion возвращает версию сервера или 0, если сущности на сервере нет
func (r *ConflictRecord) ServerVersion() int64 {
	if r.ServerSnapshot == nil {
		return 0
	}
	return r.ServerSnapshot.Version
}
