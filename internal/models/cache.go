package models

import "time"

// EntityState представляет авторитетное состояние сущности на сервере.
type EntityState struct {
	UpdatedAt time.Time `json:"updated_at"` // UpdatedAt серверное время последнего изменения
	Data      Fields    `json:"data"`       // Data поля сущности
	ID        string    `json:"id"`         // ID идентификатор сущности
	Type      string    `json:"type"`       // Type тип сущности
	ScopeID   string    `json:"scope_id"`   // ScopeID область
	Version   int64     `json:"version"`    // Version монотонная версия, назначенная сервером
	Seq       int64     `json:"seq"`        // Seq номер изменения в журнале сервера
}

// CacheEntry представляет локальный снимок одной сущности с метаданными синхронизации.
//
// Base хранит последнее подтвержденное сервером состояние, Data - лучшее известное
// состояние с учетом еще не отправленных операций. Data всегда можно пересчитать
// из Base и активных операций сущности (см. Rebuild).
type CacheEntry struct {
	UpdatedAt    time.Time `json:"updated_at"`     // UpdatedAt серверное время изменения Base
	LastSyncedAt time.Time `json:"last_synced_at"` // LastSyncedAt только растет
	Data         Fields    `json:"data"`           // Data текущие поля (оптимистичные)
	Base         Fields    `json:"base,omitempty"` // Base поля, подтвержденные сервером
	EntityID     string    `json:"entity_id"`      // EntityID идентификатор сущности
	EntityType   string    `json:"entity_type"`    // EntityType тип сущности
	ScopeID      string    `json:"scope_id"`       // ScopeID область
	Version      int64     `json:"version"`        // Version версия сервера (0 - сущности еще нет на сервере)
	Seq          int64     `json:"seq"`            // Seq номер изменения сервера, из которого получен Base
	Deleted      bool      `json:"deleted"`        // Deleted удаление ожидает отправки
}

// OnServer возвращает true, если сущность известна серверу
func (e *CacheEntry) OnServer() bool {
	return e.Version > 0
}

// Visible возвращает true, если запись должна быть видна вызывающему коду
func (e *CacheEntry) Visible() bool {
	return !e.Deleted
}

// Clone создает глубокую копию записи
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Data = e.Data.Clone()
	c.Base = e.Base.Clone()
	return &c
}

// Snapshot возвращает оптимистичный снимок записи
func (e *CacheEntry) Snapshot() *Snapshot {
	return &Snapshot{
		Data:      e.Data.Clone(),
		Version:   e.Version,
		UpdatedAt: e.UpdatedAt,
	}
}

// NewCacheEntry создает запись из состояния сервера
func NewCacheEntry(state *EntityState, syncedAt time.Time) *CacheEntry {
	return &CacheEntry{
		EntityID:     state.ID,
		EntityType:   state.Type,
		ScopeID:      state.ScopeID,
		Data:         state.Data.Clone(),
		Base:         state.Data.Clone(),
		Version:      state.Version,
		Seq:          state.Seq,
		UpdatedAt:    state.UpdatedAt,
		LastSyncedAt: syncedAt,
	}
}

// Rebuild пересчитывает запись: берет подтвержденное сервером состояние base
// и применяет к нему активные операции сущности в порядке создания.
// base может быть nil, если сервер о сущности не знает.
// Возвращает nil, если в результате сущности нет ни локально, ни на сервере.
func Rebuild(base *CacheEntry, ops []*Operation) *CacheEntry {
	var entry *CacheEntry
	if base != nil && base.OnServer() {
		entry = base.Clone()
		entry.Data = entry.Base.Clone()
		entry.Deleted = false
	}

	for _, op := range ops {
		if !op.Active() {
			continue
		}
		switch op.Kind {
		case KindCreate:
			if entry == nil {
				entry = &CacheEntry{
					EntityID:   op.EntityID,
					EntityType: op.EntityType,
					ScopeID:    op.ScopeID,
				}
			}
			entry.Data = op.Payload.Clone()
			entry.Deleted = false
		case KindUpdate:
			if entry == nil || entry.Deleted {
				continue
			}
			entry.Data = entry.Data.Merge(op.Payload)
		case KindDelete:
			if entry == nil {
				continue
			}
			entry.Deleted = true
		}
	}

	if entry == nil {
		return nil
	}
	if !entry.OnServer() && entry.Deleted {
		return nil
	}
	return entry
}

// MutationResult ответ сервера на create, update или delete.
// State заполнен для create и update.
type MutationResult struct {
	State   *EntityState `json:"state,omitempty"`
	Seq     int64        `json:"seq"`
	Deleted bool         `json:"deleted"`
}
