package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind вид мутации
type OperationKind string

// Виды операций
const (
	KindCreate OperationKind = "create"
	KindUpdate OperationKind = "update"
	KindDelete OperationKind = "delete"
)

// Valid проверяет, что вид операции известен
func (k OperationKind) Valid() bool {
	switch k {
	case KindCreate, KindUpdate, KindDelete:
		return true
	default:
		return false
	}
}

// OperationStatus состояние операции в очереди
type OperationStatus string

// Состояния операции
const (
	StatusPending  OperationStatus = "pending"
	StatusInFlight OperationStatus = "in_flight"
	StatusBlocked  OperationStatus = "blocked"
	StatusFailed   OperationStatus = "failed"
	StatusDone     OperationStatus = "done"
)

// Operation представляет одну намеренную мутацию, ожидающую отправки на сервер.
// Повторные попытки меняют RetryCount и Status на месте, запись никогда не дублируется.
type Operation struct {
	CreatedAt      time.Time       `json:"created_at"`                // CreatedAt время создания операции
	UpdatedAt      time.Time       `json:"updated_at"`                // UpdatedAt время последнего изменения статуса
	NextAttemptAt  time.Time       `json:"next_attempt_at"`           // NextAttemptAt не раньше этого момента операция может быть отправлена
	SentAt         time.Time       `json:"sent_at,omitempty"`         // SentAt последняя отправка на сервер, ответ на нее мог потеряться
	Payload        Fields          `json:"payload,omitempty"`         // Payload полный снимок (create) или patch (update), пусто для delete
	ID             string          `json:"id"`                        // ID уникальный идентификатор операции (UUID)
	EntityType     string          `json:"entity_type"`               // EntityType тип сущности
	EntityID       string          `json:"entity_id"`                 // EntityID идентификатор сущности
	ScopeID        string          `json:"scope_id"`                  // ScopeID область realtime подписки (например, проект)
	Kind           OperationKind   `json:"kind"`                      // Kind create, update или delete
	Status         OperationStatus `json:"status"`                    // Status текущее состояние
	IdempotencyKey string          `json:"idempotency_key"`           // IdempotencyKey стабилен между повторами
	LastError      string          `json:"last_error,omitempty"`      // LastError текст последней ошибки
	Seq            uint64          `json:"seq"`                       // Seq порядковый номер создания (ключ FIFO)
	BaseVersion    int64           `json:"base_version"`              // BaseVersion версия сервера, на которой основана операция
	RetryCount     int             `json:"retry_count"`               // RetryCount число неудачных попыток
}

// NewOperation создает операцию в состоянии pending с новыми ID и ключом идемпотентности
func NewOperation(kind OperationKind, entityType, entityID, scopeID string, payload Fields, now time.Time) *Operation {
	return &Operation{
		ID:             uuid.New().String(),
		IdempotencyKey: uuid.New().String(),
		Kind:           kind,
		EntityType:     entityType,
		EntityID:       entityID,
		ScopeID:        scopeID,
		Payload:        payload.Clone(),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone создает глубокую копию операции
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	c := *o
	c.Payload = o.Payload.Clone()
	return &c
}

// PatchedFields возвращает имена полей, которые операция изменяет.
// Для delete возвращает nil.
func (o *Operation) PatchedFields() []string {
	if o.Kind == KindDelete {
		return nil
	}
	return o.Payload.Keys()
}

// Active возвращает true для операций, которые еще не завершены
func (o *Operation) Active() bool {
	return o.Status != StatusDone
}
