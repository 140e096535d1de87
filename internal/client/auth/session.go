// Package auth keeps the client session: the access token the sync engine
// sends with every request and the reaction to its expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/syncerr"
	"github.com/iudanet/stocksync/internal/validation"
	pkgapi "github.com/iudanet/stocksync/pkg/api"
)

var (
	// ErrNotLoggedIn сессии нет
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrTokenExpired срок действия токена истек
	ErrTokenExpired = errors.New("access token expired")
)

// TokenIssuer выдает access token на сервере
type TokenIssuer interface {
	IssueToken(ctx context.Context, userID string) (*pkgapi.TokenResponse, error)
}

// Session текущая сессия клиента поверх AuthStorage.
// Реализует api.TokenSource.
type Session struct {
	store     storage.AuthStorage
	issuer    TokenIssuer
	logger    *slog.Logger
	now       func() time.Time
	serverURL string
	listeners []func()
	mu        sync.Mutex
}

// NewSession создает сессию. issuer может быть nil, тогда доступен только LoginWithToken.
func NewSession(store storage.AuthStorage, issuer TokenIssuer, serverURL string, logger *slog.Logger) *Session {
	return &Session{
		store:     store,
		issuer:    issuer,
		serverURL: serverURL,
		logger:    logger,
		now:       time.Now,
	}
}

// Login получает токен у сервера и сохраняет сессию
func (s *Session) Login(ctx context.Context, userID string) (*storage.AuthData, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if s.issuer == nil {
		return nil, errors.New("token issuer is not configured")
	}

	resp, err := s.issuer.IssueToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var expiresAt int64
	if resp.ExpiresIn > 0 {
		expiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
	}
	return s.save(ctx, resp.UserID, resp.AccessToken, expiresAt)
}

// LoginWithToken сохраняет токен, полученный вне клиента. expiresAt 0 - без срока.
func (s *Session) LoginWithToken(ctx context.Context, userID, token string, expiresAt time.Time) (*storage.AuthData, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if token == "" {
		return nil, errors.New("access token cannot be empty")
	}
	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}
	return s.save(ctx, userID, token, exp)
}

func (s *Session) save(ctx context.Context, userID, token string, expiresAt int64) (*storage.AuthData, error) {
	auth := &storage.AuthData{
		UserID:      userID,
		AccessToken: token,
		ServerURL:   s.serverURL,
		ExpiresAt:   expiresAt,
	}
	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.logger.Info("Session started", "user_id", userID, "server", s.serverURL)
	return auth, nil
}

// Token возвращает действующий access token или ошибку истекшей сессии
func (s *Session) Token(ctx context.Context) (string, error) {
	auth, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return "", syncerr.Expired("token", ErrNotLoggedIn)
		}
		return "", syncerr.Storage("token", err)
	}
	if auth.ExpiresAt > 0 && s.now().Unix() >= auth.ExpiresAt {
		return "", syncerr.Expired("token", ErrTokenExpired)
	}
	return auth.AccessToken, nil
}

// Current возвращает сохраненную сессию
func (s *Session) Current(ctx context.Context) (*storage.AuthData, error) {
	return s.store.GetAuth(ctx)
}

// IsAuthenticated проверяет, что сессия есть и не истекла
func (s *Session) IsAuthenticated(ctx context.Context) (bool, error) {
	return s.store.IsAuthenticated(ctx)
}

// OnExpired добавляет обработчик истечения сессии
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Expire помечает сессию истекшей после отказа сервера (401) и уведомляет подписчиков.
// Сохраненный user id остается, чтобы повторный вход не требовал его ввода.
func (s *Session) Expire(ctx context.Context) {
	auth, err := s.store.GetAuth(ctx)
	switch {
	case err == nil:
		auth.ExpiresAt = s.now().Unix()
		if err := s.store.SaveAuth(ctx, auth); err != nil {
			s.logger.Error("Failed to mark session expired", "error", err)
		}
		s.logger.Warn("Session expired", "user_id", auth.UserID)
	case !errors.Is(err, storage.ErrAuthNotFound):
		s.logger.Error("Failed to load session", "error", err)
	}

	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Logout удаляет локальную сессию
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.DeleteAuth(ctx); err != nil {
		return fmt.Errorf("failed to delete local auth data: %w", err)
	}
	s.logger.Info("Session closed")
	return nil
}
