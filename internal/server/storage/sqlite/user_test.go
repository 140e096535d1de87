package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/stocksync/internal/server/storage"
)

func TestUserStorage_TouchUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	user, err := s.TouchUser(ctx, "alice", first)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.ID)
	assert.Equal(t, first, user.CreatedAt)
	assert.Equal(t, first, user.LastSeen)

	user, err = s.TouchUser(ctx, "alice", later)
	require.NoError(t, err)
	assert.Equal(t, first, user.CreatedAt)
	assert.Equal(t, later, user.LastSeen)
}

func TestUserStorage_GetUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.TouchUser(ctx, "bob", time.Now())
	require.NoError(t, err)

	tests := []struct {
		wantErr error
		name    string
		userID  string
	}{
		{name: "existing user", userID: "bob"},
		{name: "unknown user", userID: "carol", wantErr: storage.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := s.GetUser(ctx, tt.userID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.userID, user.ID)
		})
	}
}
