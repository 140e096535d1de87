package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/pkg/api"
)

const (
	// pongWait сколько ждать сообщений или pong от сервера
	pongWait = 60 * time.Second
	// eventBuffer емкость канала событий подписки
	eventBuffer = 64
)

// Backoff экспоненциальная задержка между переподключениями
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff задержки переподключения по умолчанию
var DefaultBackoff = Backoff{Initial: 500 * time.Millisecond, Max: 30 * time.Second, Multiplier: 2}

// Delay возвращает задержку перед попыткой attempt (с нуля)
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		delay *= b.Multiplier
		if time.Duration(delay) >= b.Max {
			return b.Max
		}
	}
	return time.Duration(delay)
}

// PushClient подписывается на поток изменений области по websocket.
// После каждого успешного подключения в канал отправляется событие resync,
// так как за время разрыва изменения могли быть пропущены.
type PushClient struct {
	dialer  *websocket.Dialer
	tokens  TokenSource
	logger  *slog.Logger
	wsURL   string
	backoff Backoff
}

// NewPushClient создает push клиент для сервера baseURL (http или https)
func NewPushClient(baseURL string, tokens TokenSource, logger *slog.Logger) *PushClient {
	wsURL := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return &PushClient{
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		tokens:  tokens,
		logger:  logger,
		wsURL:   wsURL,
		backoff: DefaultBackoff,
	}
}

// SetBackoff меняет задержки переподключения
func (p *PushClient) SetBackoff(b Backoff) {
	p.backoff = b
}

// Subscribe открывает подписку на область scopeID.
// Канал закрывается после отмены ctx. Пока сервер недоступен, клиент
// переподключается в фоне.
func (p *PushClient) Subscribe(ctx context.Context, scopeID string) <-chan models.ChangeEvent {
	events := make(chan models.ChangeEvent, eventBuffer)
	go p.run(ctx, scopeID, events)
	return events
}

func (p *PushClient) run(ctx context.Context, scopeID string, events chan<- models.ChangeEvent) {
	defer close(events)

	attempt := 0
	for ctx.Err() == nil {
		conn, err := p.dial(ctx, scopeID)
		if err != nil {
			delay := p.backoff.Delay(attempt)
			attempt++
			p.logger.Debug("Push connection failed", "scope_id", scopeID, "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		p.logger.Info("Push connected", "scope_id", scopeID)
		if !send(ctx, events, models.ChangeEvent{ScopeID: scopeID, Kind: models.ChangeResync}) {
			_ = conn.Close()
			return
		}

		err = p.read(ctx, conn, events)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("Push connection lost", "scope_id", scopeID, "error", err)
	}
}

func (p *PushClient) dial(ctx context.Context, scopeID string) (*websocket.Conn, error) {
	header := http.Header{}
	if p.tokens != nil {
		token, err := p.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	target := p.wsURL + "/api/v1/scopes/" + url.PathEscape(scopeID) + "/stream"
	conn, resp, err := p.dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", target, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return conn, nil
}

// read читает сообщения до ошибки соединения или отмены ctx
func (p *PushClient) read(ctx context.Context, conn *websocket.Conn, events chan<- models.ChangeEvent) error {
	// Закрываем соединение при отмене, чтобы прервать ReadJSON
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg api.ChangeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if !send(ctx, events, *msg.ToChangeEvent()) {
			return ctx.Err()
		}
	}
}

func send(ctx context.Context, events chan<- models.ChangeEvent, ev models.ChangeEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
