package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/stocksync/internal/server/storage"
)

// TouchUser creates the user on first sight and updates last_seen
func (s *Storage) TouchUser(ctx context.Context, userID string, at time.Time) (*storage.User, error) {
	query := `
		INSERT INTO users (id, created_at, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET last_seen = excluded.last_seen
	`

	if _, err := s.db.ExecContext(ctx, query, userID, at.UnixNano(), at.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return s.GetUser(ctx, userID)
}

// GetUser retrieves user by ID
func (s *Storage) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	query := `
		SELECT id, created_at, last_seen
		FROM users
		WHERE id = ?
	`

	user := &storage.User{}
	var createdAt, lastSeen int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(&user.ID, &createdAt, &lastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.CreatedAt = fromNanos(createdAt)
	user.LastSeen = fromNanos(lastSeen)
	return user, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
