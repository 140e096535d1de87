package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/server/metrics"
	"github.com/iudanet/stocksync/internal/server/push"
	"github.com/iudanet/stocksync/internal/validation"
	"github.com/iudanet/stocksync/pkg/api"
)

const (
	// writeWait время на запись одного сообщения
	writeWait = 10 * time.Second
	// pingPeriod должен быть меньше ожидания pong у клиента (60s)
	pingPeriod = 30 * time.Second
	// backlogLimit максимум изменений, догоняемых по ?after=
	backlogLimit = 1000
)

// ChangeLog журнал изменений для догона после переподключения
type ChangeLog interface {
	ChangesSince(ctx context.Context, scopeID string, after int64, limit int) ([]*models.ChangeEvent, error)
}

// StreamHandler отдает поток изменений области по websocket
type StreamHandler struct {
	logger     *slog.Logger
	changes    ChangeLog
	hub        *push.Hub
	metrics    *metrics.Hub
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
}

// NewStreamHandler создает handler потока
func NewStreamHandler(logger *slog.Logger, changes ChangeLog, hub *push.Hub) *StreamHandler {
	return &StreamHandler{
		logger:  logger,
		changes: changes,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		pingPeriod: pingPeriod,
	}
}

// SetMetrics подключает коллекторы prometheus
func (h *StreamHandler) SetMetrics(m *metrics.Hub) {
	h.metrics = m
}

// Stream обрабатывает GET /api/v1/scopes/{scope}/stream.
// Необязательный ?after=N сначала отправляет изменения журнала с Seq > N.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scopeID := r.PathValue("scope")
	if err := validation.ValidateScopeID(scopeID); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	var after int64 = -1
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest, "invalid after")
			return
		}
		after = v
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	// Подписываемся до чтения журнала, чтобы не потерять изменения между ними
	sub := h.hub.Subscribe(scopeID)
	defer sub.Close()

	userID, _ := GetUserID(ctx)
	h.logger.InfoContext(ctx, "stream opened", slog.String("scope_id", scopeID), slog.String("user_id", userID))
	defer h.logger.InfoContext(ctx, "stream closed", slog.String("scope_id", scopeID), slog.String("user_id", userID))

	var sent int64
	if after >= 0 {
		backlog, err := h.changes.ChangesSince(ctx, scopeID, after, backlogLimit)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to read change backlog", slog.Any("error", err))
			return
		}
		for _, ev := range backlog {
			if err := writeChange(conn, ev); err != nil {
				return
			}
			sent = ev.Seq
		}
	}

	// Читаем входящие кадры только ради pong и close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case ev, ok := <-sub.C:
			if !ok {
				// Hub отключил подписчика (переполнение или остановка сервера), клиент переподключится
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "stream closed"),
					time.Now().Add(writeWait))
				return
			}
			if ev.Seq <= sent {
				continue
			}
			if err := writeChange(conn, &ev); err != nil {
				h.logger.DebugContext(ctx, "stream write failed", slog.Any("error", err))
				return
			}
			sent = ev.Seq
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeChange(conn *websocket.Conn, ev *models.ChangeEvent) error {
	msg := api.ChangeMessage{
		ScopeID:  ev.ScopeID,
		EntityID: ev.EntityID,
		Kind:     string(ev.Kind),
		Seq:      ev.Seq,
	}
	if ev.Entity != nil {
		e := toEntity(ev.Entity)
		msg.Entity = &e
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
