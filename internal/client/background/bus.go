// Package background lets a context without network or storage access ask a
// foreground process to drain the operation queue.
//
// The background side broadcasts request_drain and waits a bounded time for a
// drain_complete carrying the same request id. Any foreground process that
// receives the request runs the executor and replies.
package background

import (
	"context"
	"sync"
	"time"
)

// MessageType тип сообщения между контекстами
type MessageType string

// Типы сообщений
const (
	TypeRequestDrain  MessageType = "request_drain"
	TypeDrainComplete MessageType = "drain_complete"
)

// Message сообщение шины
type Message struct {
	SentAt    time.Time   `json:"sent_at"`
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id"`
	Reason    string      `json:"reason,omitempty"` // Reason причина пробуждения (connectivity, periodic)
	Error     string      `json:"error,omitempty"`
	Processed int         `json:"processed,omitempty"`
	Failed    int         `json:"failed,omitempty"`
}

// Bus широковещательная доставка сообщений между контекстами
type Bus interface {
	// Publish отправляет сообщение всем подписчикам
	Publish(ctx context.Context, msg Message) error
	// Subscribe возвращает канал сообщений, который закрывается при отмене ctx
	Subscribe(ctx context.Context) (<-chan Message, error)
}

const subscriberBuffer = 16

// MemoryBus шина внутри одного процесса
type MemoryBus struct {
	subs map[chan Message]struct{}
	mu   sync.Mutex
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus создает шину
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan Message]struct{})}
}

// Publish доставляет сообщение всем подписчикам. Переполненный подписчик пропускает сообщение.
func (b *MemoryBus) Publish(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe регистрирует подписчика до отмены ctx
func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan Message, error) {
	ch := make(chan Message, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	})
	return ch, nil
}
