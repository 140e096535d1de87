package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/syncerr"
	"github.com/iudanet/stocksync/pkg/api"
)

// DefaultTimeout ограничение времени одного запроса
const DefaultTimeout = 15 * time.Second

// TokenSource выдает access token для запросов к серверу
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером.
// Все ошибки классифицируются через syncerr: сеть, 5xx, 429 и version_mismatch
// считаются временными, 401 означает истекшую сессию, остальные 4xx - отказ.
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	baseURL    string
}

// Option настраивает Client
type Option func(*Client)

// WithTimeout задает таймаут одного запроса
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTokenSource задает источник access token
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithRateLimit ограничивает частоту исходящих запросов
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL возвращает адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	return c.doRequest(ctx, request{op: "health", method: http.MethodGet, path: "/api/v1/health"})
}

// IssueToken получает access token для пользователя
func (c *Client) IssueToken(ctx context.Context, userID string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.doRequest(ctx, request{
		op:     "token",
		method: http.MethodPost,
		path:   "/api/v1/auth/token",
		body:   api.TokenRequest{UserID: userID},
		result: &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Create отправляет операцию создания сущности
func (c *Client) Create(ctx context.Context, op *models.Operation) (*models.MutationResult, error) {
	var resp api.MutationResponse
	err := c.doRequest(ctx, request{
		op:             "create",
		method:         http.MethodPost,
		path:           "/api/v1/entities",
		idempotencyKey: op.IdempotencyKey,
		authorized:     true,
		body: api.CreateRequest{
			ID:      op.EntityID,
			Type:    op.EntityType,
			ScopeID: op.ScopeID,
			Data:    op.Payload,
		},
		result: &resp,
	})
	if err != nil {
		return nil, err
	}
	return toResult(&resp), nil
}

// Update отправляет patch сущности
func (c *Client) Update(ctx context.Context, op *models.Operation) (*models.MutationResult, error) {
	var resp api.MutationResponse
	err := c.doRequest(ctx, request{
		op:             "update",
		method:         http.MethodPatch,
		path:           "/api/v1/entities/" + url.PathEscape(op.EntityID),
		idempotencyKey: op.IdempotencyKey,
		authorized:     true,
		body: api.UpdateRequest{
			Patch:       op.Payload,
			BaseVersion: op.BaseVersion,
		},
		result: &resp,
	})
	if err != nil {
		return nil, err
	}
	return toResult(&resp), nil
}

// Delete отправляет удаление сущности
func (c *Client) Delete(ctx context.Context, op *models.Operation) (*models.MutationResult, error) {
	var resp api.MutationResponse
	path := "/api/v1/entities/" + url.PathEscape(op.EntityID)
	if op.BaseVersion > 0 {
		path += "?base_version=" + strconv.FormatInt(op.BaseVersion, 10)
	}
	err := c.doRequest(ctx, request{
		op:             "delete",
		method:         http.MethodDelete,
		path:           path,
		idempotencyKey: op.IdempotencyKey,
		authorized:     true,
		result:         &resp,
	})
	if err != nil {
		return nil, err
	}
	return toResult(&resp), nil
}

// FetchSnapshots получает авторитетные состояния набора сущностей.
// Сущностей, которых нет на сервере, в результате нет.
func (c *Client) FetchSnapshots(ctx context.Context, ids []string) (map[string]*models.EntityState, error) {
	var resp api.SnapshotResponse
	err := c.doRequest(ctx, request{
		op:         "snapshots",
		method:     http.MethodPost,
		path:       "/api/v1/entities/snapshots",
		authorized: true,
		body:       api.SnapshotRequest{IDs: ids},
		result:     &resp,
	})
	if err != nil {
		return nil, err
	}

	states := make(map[string]*models.EntityState, len(resp.Entities))
	for i := range resp.Entities {
		state := resp.Entities[i].ToState()
		states[state.ID] = state
	}
	return states, nil
}

// ListScope получает полный снимок области и номер изменения, на котором он сделан
func (c *Client) ListScope(ctx context.Context, scopeID string) ([]*models.EntityState, int64, error) {
	var resp api.ScopeResponse
	err := c.doRequest(ctx, request{
		op:         "list_scope",
		method:     http.MethodGet,
		path:       "/api/v1/scopes/" + url.PathEscape(scopeID) + "/entities",
		authorized: true,
		result:     &resp,
	})
	if err != nil {
		return nil, 0, err
	}

	states := make([]*models.EntityState, 0, len(resp.Entities))
	for i := range resp.Entities {
		states = append(states, resp.Entities[i].ToState())
	}
	return states, resp.AsOfSeq, nil
}

func toResult(resp *api.MutationResponse) *models.MutationResult {
	return &models.MutationResult{
		State:   resp.Entity.ToState(),
		Seq:     resp.Seq,
		Deleted: resp.Deleted,
	}
}

// request описание одного запроса к серверу
type request struct {
	body           any
	result         any
	op             string
	method         string
	path           string
	idempotencyKey string
	authorized     bool
}

// doRequest выполняет HTTP запрос и классифицирует ошибку
func (c *Client) doRequest(ctx context.Context, r request) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return syncerr.Transient(r.op, fmt.Errorf("rate limiter: %w", err))
		}
	}

	var bodyReader io.Reader
	if r.body != nil {
		jsonData, err := json.Marshal(r.body)
		if err != nil {
			return syncerr.Permanent(r.op, 0, fmt.Errorf("failed to marshal request body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, bodyReader)
	if err != nil {
		return syncerr.Permanent(r.op, 0, fmt.Errorf("failed to create request: %w", err))
	}

	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.idempotencyKey != "" {
		req.Header.Set(api.IdempotencyKeyHeader, r.idempotencyKey)
	}
	if r.authorized && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return syncerr.Expired(r.op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return syncerr.Transient(r.op, fmt.Errorf("request failed: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return syncerr.Transient(r.op, fmt.Errorf("failed to read response body: %w", err))
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(r.op, resp.StatusCode, respBody)
	}

	// Декодируем успешный ответ
	if r.result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, r.result); err != nil {
			return syncerr.Transient(r.op, fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return nil
}

// classify превращает ответ с ошибкой в классифицированную ошибку
func classify(op string, status int, body []byte) error {
	var errResp api.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil {
		parts := make([]string, 0, 2)
		for _, p := range []string{errResp.Error, errResp.Message} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			msg = strings.Join(parts, ": ")
		}
	}
	cause := fmt.Errorf("server error (%d): %s", status, msg)

	var e *syncerr.Error
	switch {
	case status == http.StatusUnauthorized:
		e = syncerr.Expired(op, cause)
	case status >= 500,
		status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status == http.StatusConflict && errResp.Code == api.CodeVersionMismatch:
		e = syncerr.Transient(op, cause)
		e.StatusCode = status
	default:
		e = syncerr.Permanent(op, status, cause)
	}
	e.Code = errResp.Code
	return e
}

// IsNotFound проверяет, что сервер ответил not_found
func IsNotFound(err error) bool {
	var syncErr *syncerr.Error
	return errors.As(err, &syncErr) && syncErr.StatusCode == http.StatusNotFound
}
