// Package push fans committed entity changes out to the stream subscribers of their scope.
package push

import (
	"log/slog"
	"sync"

	"github.com/iudanet/stocksync/internal/models"
)

// DefaultBuffer емкость очереди одного подписчика
const DefaultBuffer = 256

// Subscription подписка на изменения одной области.
// Канал C закрывается при Close или если подписчик не успевает читать.
type Subscription struct {
	hub     *Hub
	ch      chan models.ChangeEvent
	C       <-chan models.ChangeEvent
	scopeID string
	once    sync.Once
}

// ScopeID возвращает область подписки
func (s *Subscription) ScopeID() string {
	return s.scopeID
}

// Close отписывается от области. Можно вызывать повторно.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub реестр подписчиков по областям
type Hub struct {
	logger *slog.Logger
	scopes map[string]map[*Subscription]struct{}
	buffer int
	mu     sync.Mutex
}

// NewHub создает hub, buffer <= 0 означает DefaultBuffer
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		logger: logger,
		scopes: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe регистрирует подписчика области
func (h *Hub) Subscribe(scopeID string) *Subscription {
	ch := make(chan models.ChangeEvent, h.buffer)
	sub := &Subscription{hub: h, ch: ch, C: ch, scopeID: scopeID}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.scopes[scopeID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.scopes[scopeID] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Publish рассылает изменение подписчикам его области.
// Подписчик с переполненной очередью отключается: клиент переподключится и перечитает область.
func (h *Hub) Publish(ev models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.scopes[ev.ScopeID] {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("Push subscriber is too slow, disconnecting",
				"scope_id", ev.ScopeID,
				"seq", ev.Seq)
			h.removeLocked(sub)
		}
	}
}

// Close отключает всех подписчиков
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.scopes {
		for sub := range subs {
			h.removeLocked(sub)
		}
	}
}

// Subscribers возвращает число подписчиков области
func (h *Hub) Subscribers(scopeID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.scopes[scopeID])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

// removeLocked вызывается под h.mu
func (h *Hub) removeLocked(s *Subscription) {
	s.once.Do(func() {
		subs := h.scopes[s.scopeID]
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.scopes, s.scopeID)
		}
		close(s.ch)
	})
}
