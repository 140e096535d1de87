package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/stocksync/internal/server/storage/sqlite"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestStore создает sqlite хранилище в памяти
func setupTestStore(t *testing.T) *sqlite.Storage {
	t.Helper()
	s, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
