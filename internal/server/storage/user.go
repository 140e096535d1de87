package storage

import (
	"context"
	"time"
)

// User пользователь, которому выдавались токены
type User struct {
	CreatedAt time.Time
	LastSeen  time.Time
	ID        string
}

// UserStorage defines interface for user bookkeeping
type UserStorage interface {
	// TouchUser creates the user on first sight and updates LastSeen
	TouchUser(ctx context.Context, userID string, at time.Time) (*User, error)

	// GetUser retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUser(ctx context.Context, userID string) (*User, error)
}
