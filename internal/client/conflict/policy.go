// Package conflict detects divergence between the local cache and the server
// and decides how each divergence is resolved.
//
// Detection is always scoped to the entity of one pending operation, a conflict
// on one entity never affects operations of another.
package conflict

import (
	"time"

	"github.com/iudanet/stocksync/internal/models"
)

// Strategy способ разрешения конфликта
type Strategy string

// Стратегии разрешения
const (
	StrategyServer Strategy = "server"
	StrategyLocal  Strategy = "local"
	StrategyManual Strategy = "manual"
)

// Valid проверяет, что стратегия известна
func (s Strategy) Valid() bool {
	switch s {
	case StrategyServer, StrategyLocal, StrategyManual:
		return true
	default:
		return false
	}
}

// Policy настройки обнаружения и разрешения конфликтов
type Policy struct {
	// SignificantFields поля, расхождение которых дает content конфликт, по типу сущности
	SignificantFields map[string][]string
	// NonCriticalFields поля, content конфликт по которым решается в пользу локальной правки
	NonCriticalFields map[string][]string
	// ClockSkew допустимое расхождение часов для timestamp конфликтов
	ClockSkew time.Duration
	// ServerWinsAfter сервер побеждает, если его версия новее локальной больше чем на столько
	ServerWinsAfter time.Duration
	// ManualVersionConflicts передает version конфликты на решение пользователю вместо server wins
	ManualVersionConflicts bool
}

// DefaultPolicy политика по умолчанию.
// Закладки и статус сверки не считаются значимыми полями.
func DefaultPolicy() Policy {
	return Policy{
		SignificantFields: map[string][]string{
			models.EntityTypeInventoryItem: {"name", "sku", "qty", "location", "notes"},
			models.EntityTypeTransaction:   {"item_id", "amount_cents", "currency", "kind", "notes"},
		},
		NonCriticalFields: map[string][]string{
			models.EntityTypeInventoryItem: {"notes"},
			models.EntityTypeTransaction:   {"notes"},
		},
		ClockSkew:       5 * time.Second,
		ServerWinsAfter: 5 * time.Minute,
	}
}

func (p Policy) significant(entityType string) []string {
	return p.SignificantFields[entityType]
}

func (p Policy) nonCritical(entityType, field string) bool {
	for _, f := range p.NonCriticalFields[entityType] {
		if f == field {
			return true
		}
	}
	return false
}
