package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/stocksync/internal/server/handlers"
	"github.com/iudanet/stocksync/internal/server/jwt"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// userEcho отвечает user_id из контекста
func userEcho(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := handlers.GetUserID(r.Context())
		require.True(t, ok, "user_id should be in context")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(userID))
	}
}

func TestAuthMiddleware(t *testing.T) {
	now := time.Now()
	tokens := jwt.NewService("test-secret-key", 15*time.Minute)

	valid, _, err := tokens.Issue("user123")
	require.NoError(t, err)

	expiredSvc := jwt.NewService("test-secret-key", time.Minute)
	expiredSvc.SetClock(func() time.Time { return now.Add(-time.Hour) })
	expired, _, err := expiredSvc.Issue("user123")
	require.NoError(t, err)

	foreign, _, err := jwt.NewService("other-secret", time.Minute).Issue("user123")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "no scheme", header: valid, wantStatus: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(setupTestLogger(), tokens)(userEcho(t))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/scopes/p1/entities", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "user123", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}
