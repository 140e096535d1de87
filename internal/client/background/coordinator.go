package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	clientsync "github.com/iudanet/stocksync/internal/client/sync"
)

//go:generate moq -out mocks_test.go . Drainer

// DefaultAckTimeout время ожидания drain_complete от foreground контекста
const DefaultAckTimeout = 5 * time.Second

// ErrNoAck ни один foreground контекст не подтвердил запрос
var ErrNoAck = errors.New("no foreground context acknowledged the drain request")

// Drainer запускает проход очереди
type Drainer interface {
	DrainWithTrigger(ctx context.Context, trigger string) (*clientsync.DrainResult, error)
}

// Coordinator будит foreground контекст из background контекста.
// Сам coordinator не трогает ни хранилище, ни сеть.
type Coordinator struct {
	bus     Bus
	logger  *slog.Logger
	timeout time.Duration
}

// NewCoordinator создает coordinator. timeout <= 0 означает DefaultAckTimeout.
func NewCoordinator(bus Bus, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &Coordinator{bus: bus, timeout: timeout, logger: logger}
}

// Wake рассылает request_drain и ждет drain_complete с тем же идентификатором.
// Без подтверждения возвращает ErrNoAck: следующая попытка будет при следующем пробуждении.
func (c *Coordinator) Wake(ctx context.Context, reason string) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Подписка до публикации, чтобы не пропустить быстрый ответ
	replies, err := c.bus.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	req := Message{
		Type:      TypeRequestDrain,
		RequestID: uuid.New().String(),
		Reason:    reason,
		SentAt:    time.Now().UTC(),
	}
	if err := c.bus.Publish(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to publish drain request: %w", err)
	}
	c.logger.Debug("Drain requested", "request_id", req.RequestID, "reason", reason)

	for {
		select {
		case <-ctx.Done():
			c.logger.Warn("Drain request was not acknowledged",
				"request_id", req.RequestID,
				"reason", reason,
				"timeout", c.timeout)
			return nil, ErrNoAck
		case msg, ok := <-replies:
			if !ok {
				return nil, ErrNoAck
			}
			if msg.Type != TypeDrainComplete || msg.RequestID != req.RequestID {
				continue
			}
			c.logger.Info("Drain acknowledged",
				"request_id", req.RequestID,
				"processed", msg.Processed,
				"failed", msg.Failed)
			if msg.Error != "" {
				return &msg, fmt.Errorf("foreground drain failed: %s", msg.Error)
			}
			return &msg, nil
		}
	}
}

// Responder обслуживает запросы request_drain в foreground контексте
type Responder struct {
	bus     Bus
	drainer Drainer
	logger  *slog.Logger
}

// NewResponder создает responder
func NewResponder(bus Bus, drainer Drainer, logger *slog.Logger) *Responder {
	return &Responder{bus: bus, drainer: drainer, logger: logger}
}

// Run обрабатывает запросы до отмены ctx
func (r *Responder) Run(ctx context.Context) error {
	requests, err := r.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-requests:
			if !ok {
				return nil
			}
			if msg.Type != TypeRequestDrain {
				continue
			}
			r.handle(ctx, msg)
		}
	}
}

func (r *Responder) handle(ctx context.Context, req Message) {
	r.logger.Info("Drain requested by background context", "request_id", req.RequestID, "reason", req.Reason)

	reply := Message{Type: TypeDrainComplete, RequestID: req.RequestID}
	result, err := r.drainer.DrainWithTrigger(ctx, clientsync.TriggerBackground)
	if result != nil {
		reply.Processed = result.Processed + result.Superseded
		reply.Failed = result.Failed
	}
	if err != nil {
		reply.Error = err.Error()
	}

	reply.SentAt = time.Now().UTC()
	if err := r.bus.Publish(context.WithoutCancel(ctx), reply); err != nil {
		r.logger.Error("Failed to acknowledge drain request", "request_id", req.RequestID, "error", err)
	}
}
