package api

import (
	"time"

	"github.com/iudanet/stocksync/internal/models"
)

// IdempotencyKeyHeader заголовок с ключом идемпотентности мутации
const IdempotencyKeyHeader = "Idempotency-Key"

// Entity представляет сущность в том виде, в котором ее хранит сервер
type Entity struct {
	UpdatedAt time.Time     `json:"updated_at"`
	Data      models.Fields `json:"data"`
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	ScopeID   string        `json:"scope_id"`
	Version   int64         `json:"version"`
	Seq       int64         `json:"seq"` // номер изменения, которым получено это состояние
}

// CreateRequest представляет запрос на создание сущности
type CreateRequest struct {
	Data    models.Fields `json:"data"`
	ID      string        `json:"id"` // ID генерирует клиент
	Type    string        `json:"type"`
	ScopeID string        `json:"scope_id"`
}

// UpdateRequest представляет запрос на частичное обновление сущности
type UpdateRequest struct {
	Patch       models.Fields `json:"patch"`
	BaseVersion int64         `json:"base_version"` // версия, на которой основан patch
}

// MutationResponse представляет ответ на create, update или delete
type MutationResponse struct {
	Entity  *Entity `json:"entity,omitempty"` // новое состояние, пусто для delete
	Seq     int64   `json:"seq"`
	Deleted bool    `json:"deleted,omitempty"`
}

// SnapshotRequest представляет запрос авторитетных снимков набора сущностей
type SnapshotRequest struct {
	IDs []string `json:"ids"`
}

// SnapshotResponse представляет ответ со снимками
type SnapshotResponse struct {
	Entities []Entity `json:"entities"`
	Missing  []string `json:"missing,omitempty"` // ID, которых на сервере нет
}

// ScopeResponse представляет полный снимок области
type ScopeResponse struct {
	ScopeID  string   `json:"scope_id"`
	Entities []Entity `json:"entities"`
	AsOfSeq  int64    `json:"as_of_seq"` // снимок включает все изменения до этого номера
}

// ChangeMessage представляет одно изменение в push потоке области
type ChangeMessage struct {
	Entity   *Entity `json:"entity,omitempty"`
	ScopeID  string  `json:"scope_id"`
	EntityID string  `json:"entity_id"`
	Kind     string  `json:"kind"` // insert, update, delete
	Seq      int64   `json:"seq"`
}

// ToState конвертирует сущность в модель состояния сервера
func (e *Entity) ToState() *models.EntityState {
	if e == nil {
		return nil
	}
	return &models.EntityState{
		ID:        e.ID,
		Type:      e.Type,
		ScopeID:   e.ScopeID,
		Data:      e.Data.Clone(),
		Version:   e.Version,
		Seq:       e.Seq,
		UpdatedAt: e.UpdatedAt,
	}
}

// ToChangeEvent конвертирует push сообщение в модель изменения
func (m *ChangeMessage) ToChangeEvent() *models.ChangeEvent {
	return &models.ChangeEvent{
		Entity:   m.Entity.ToState(),
		ScopeID:  m.ScopeID,
		EntityID: m.EntityID,
		Kind:     models.ChangeKind(m.Kind),
		Seq:      m.Seq,
	}
}
