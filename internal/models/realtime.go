package models

import "time"

// ChangeKind вид изменения в push потоке
type ChangeKind string

// Виды изменений
const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	// ChangeResync сообщает, что поток мог пропустить изменения (переподключение)
	ChangeResync ChangeKind = "resync"
)

// ChangeEvent представляет одно изменение, доставленное push каналом.
// Entity заполнен для insert и update.
type ChangeEvent struct {
	Entity   *EntityState `json:"entity,omitempty"`
	ScopeID  string       `json:"scope_id"`
	EntityID string       `json:"entity_id,omitempty"`
	Kind     ChangeKind   `json:"kind"`
	Seq      int64        `json:"seq"`
}

// SubscriptionLease счетчик ссылок на realtime подписку области
type SubscriptionLease struct {
	CreatedAt     time.Time `json:"created_at"`
	LastRefreshAt time.Time `json:"last_refresh_at"`
	ScopeID       string    `json:"scope_id"`
	RefCount      int       `json:"ref_count"`
	Baseline      int64     `json:"baseline"` // Baseline номер изменения последнего refresh
}
