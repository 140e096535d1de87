package storage

import (
	"context"
)

// AuthStorage defines interface for storing the client session
type AuthStorage interface {
	// SaveAuth stores authentication data.
	// Switching to another user drops the previous user's cache and fails
	// with ErrForeignData while their operations are still queued.
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored authentication data
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated checks if valid authentication exists (not expired)
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData represents the current session in storage
type AuthData struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	ServerURL   string `json:"server_url"`
	ExpiresAt   int64  `json:"expires_at"` // unix seconds
}
