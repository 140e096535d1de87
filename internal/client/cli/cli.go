// Package cli implements the stocksync client commands on top of the sync engine.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iudanet/stocksync/internal/client/conflict"
	"github.com/iudanet/stocksync/internal/client/engine"
	"github.com/iudanet/stocksync/internal/client/iocli"
	"github.com/iudanet/stocksync/internal/client/storage"
	clientsync "github.com/iudanet/stocksync/internal/client/sync"
	"github.com/iudanet/stocksync/internal/models"
)

//go:generate moq -out mocks_test.go . Engine Session

// Engine операции движка, доступные командам
type Engine interface {
	SubmitOperation(ctx context.Context, m engine.Mutation) (*models.Operation, error)
	GetEntity(ctx context.Context, entityID string) (*models.CacheEntry, error)
	ListEntities(ctx context.Context, scopeID, entityType string) ([]*models.CacheEntry, error)
	Status(ctx context.Context) (*engine.Status, error)
	Operations(ctx context.Context) ([]*models.Operation, error)
	Conflicts(ctx context.Context, entityID string) ([]*models.ConflictRecord, error)
	Drain(ctx context.Context) (*clientsync.DrainResult, error)
	RetryOperation(ctx context.Context, id string) (*models.Operation, error)
	DiscardOperation(ctx context.Context, id string) (*models.Operation, error)
	CancelOperation(ctx context.Context, id string) (*models.Operation, error)
	ResolveConflict(ctx context.Context, entityID string, choice conflict.Strategy) (*conflict.Outcome, error)
	ForceRefresh(ctx context.Context, scopeID string) (*storage.ReplaceResult, error)
	BulkDelete(ctx context.Context, scopeID string, entityIDs []string) (*engine.WriteResult, error)
	Duplicate(ctx context.Context, entityID, newID string) (*engine.WriteResult, error)
}

// Session сессия пользователя
type Session interface {
	Login(ctx context.Context, userID string) (*storage.AuthData, error)
	LoginWithToken(ctx context.Context, userID, token string, expiresAt time.Time) (*storage.AuthData, error)
	Current(ctx context.Context) (*storage.AuthData, error)
	Logout(ctx context.Context) error
}

// Cli команды клиента
type Cli struct {
	io      iocli.IO
	engine  Engine
	session Session
	now     func() time.Time
}

// New создает Cli
func New(io iocli.IO, eng Engine, session Session) *Cli {
	return &Cli{
		io:      io,
		engine:  eng,
		session: session,
		now:     time.Now,
	}
}

// printJSON печатает значение с отступами
func (c *Cli) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	c.io.Printf("%s\n", data)
	return nil
}

// parseFields разбирает JSON объект полей из аргумента --data
func parseFields(raw string) (models.Fields, error) {
	if raw == "" {
		return nil, nil
	}
	var fields models.Fields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid --data, expected a JSON object: %w", err)
	}
	return fields, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
