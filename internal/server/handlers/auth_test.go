package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/stocksync/internal/server/storage"
	"github.com/iudanet/stocksync/pkg/api"
)

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	users    map[string]*storage.User
	touchErr error
}

func (m *mockUserStorage) TouchUser(ctx context.Context, userID string, at time.Time) (*storage.User, error) {
	if m.touchErr != nil {
		return nil, m.touchErr
	}
	u, ok := m.users[userID]
	if !ok {
		u = &storage.User{ID: userID, CreatedAt: at}
		m.users[userID] = u
	}
	u.LastSeen = at
	return u, nil
}

func (m *mockUserStorage) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

// mockIssuer is a mock implementation of TokenIssuer for testing
type mockIssuer struct {
	err error
}

func (m *mockIssuer) Issue(userID string) (string, int64, error) {
	if m.err != nil {
		return "", 0, m.err
	}
	return "token-" + userID, 3600, nil
}

func TestAuthHandler_IssueToken(t *testing.T) {
	tests := []struct {
		users      *mockUserStorage
		issuer     *mockIssuer
		name       string
		body       string
		wantCode   string
		wantStatus int
	}{
		{
			name:       "issues token",
			body:       `{"user_id":"alice"}`,
			users:      &mockUserStorage{users: map[string]*storage.User{}},
			issuer:     &mockIssuer{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid body",
			body:       `{`,
			users:      &mockUserStorage{users: map[string]*storage.User{}},
			issuer:     &mockIssuer{},
			wantStatus: http.StatusBadRequest,
			wantCode:   api.CodeBadRequest,
		},
		{
			name:       "invalid user id",
			body:       `{"user_id":"bad id!"}`,
			users:      &mockUserStorage{users: map[string]*storage.User{}},
			issuer:     &mockIssuer{},
			wantStatus: http.StatusBadRequest,
			wantCode:   api.CodeValidation,
		},
		{
			name:       "storage failure",
			body:       `{"user_id":"alice"}`,
			users:      &mockUserStorage{users: map[string]*storage.User{}, touchErr: errors.New("disk full")},
			issuer:     &mockIssuer{},
			wantStatus: http.StatusInternalServerError,
			wantCode:   api.CodeInternal,
		},
		{
			name:       "signing failure",
			body:       `{"user_id":"alice"}`,
			users:      &mockUserStorage{users: map[string]*storage.User{}},
			issuer:     &mockIssuer{err: errors.New("no key")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   api.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(setupTestLogger(), tt.users, tt.issuer)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.IssueToken(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				var resp api.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, tt.wantCode, resp.Code)
				return
			}

			var resp api.TokenResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "token-alice", resp.AccessToken)
			assert.Equal(t, "alice", resp.UserID)
			assert.Equal(t, int64(3600), resp.ExpiresIn)
			assert.Contains(t, tt.users.users, "alice")
		})
	}
}
