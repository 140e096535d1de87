package models

import (
	"encoding/json"
	"fmt"
)

// EntityType константы для типов синхронизируемых сущностей
const (
	EntityTypeInventoryItem = "inventory_item"
	EntityTypeTransaction   = "transaction"
)

// InventoryItem представляет складскую позицию.
type InventoryItem struct {
	Name       string `json:"name" validate:"required,max=200"`                // Name название позиции
	SKU        string `json:"sku,omitempty" validate:"omitempty,max=64"`       // SKU артикул
	Location   string `json:"location,omitempty" validate:"omitempty,max=120"` // Location место хранения
	Notes      string `json:"notes,omitempty" validate:"omitempty,max=2000"`   // Notes свободные заметки пользователя
	Quantity   int64  `json:"qty" validate:"gte=0"`                            // Quantity количество на складе
	UnitCents  int64  `json:"unit_cents,omitempty" validate:"omitempty,gte=0"` // UnitCents цена за единицу в центах
	Bookmarked bool   `json:"bookmarked,omitempty"`                            // Bookmarked пользовательская закладка
}

// Transaction представляет финансовую операцию по складской позиции.
type Transaction struct {
	ItemID      string `json:"item_id" validate:"required"`                                               // ItemID позиция, к которой относится операция
	Kind        string `json:"kind" validate:"required,oneof=purchase sale adjustment"`                   // Kind вид операции
	Currency    string `json:"currency" validate:"required,iso4217"`                                      // Currency ISO 4217 код валюты
	Disposition string `json:"disposition,omitempty" validate:"omitempty,oneof=open reconciled disputed"` // Disposition статус сверки
	Notes       string `json:"notes,omitempty" validate:"omitempty,max=2000"`                             // Notes свободные заметки
	AmountCents int64  `json:"amount_cents"`                                                              // AmountCents сумма в центах
	Quantity    int64  `json:"qty" validate:"gte=0"`                                                      // Quantity количество единиц
}

// KnownEntityType проверяет, что тип сущности поддерживается
func KnownEntityType(entityType string) bool {
	switch entityType {
	case EntityTypeInventoryItem, EntityTypeTransaction:
		return true
	default:
		return false
	}
}

// DecodeEntity разбирает поля сущности в строго типизированную структуру.
// Возвращает *InventoryItem или *Transaction в зависимости от entityType.
func DecodeEntity(entityType string, fields Fields) (any, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	switch entityType {
	case EntityTypeInventoryItem:
		var item InventoryItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to decode inventory item: %w", err)
		}
		return &item, nil
	case EntityTypeTransaction:
		var tx Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		return &tx, nil
	default:
		return nil, fmt.Errorf("unknown entity type: %q", entityType)
	}
}

// EncodeEntity преобразует типизированную сущность обратно в Fields
func EncodeEntity(entity any) (Fields, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode entity fields: %w", err)
	}
	return fields, nil
}
