package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/iudanet/stocksync/internal/client/storage"
	clientsync "github.com/iudanet/stocksync/internal/client/sync"
	"github.com/iudanet/stocksync/internal/models"
)

// runStatus печатает сессию, очередь и подписки
func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")

	auth, err := c.session.Current(ctx)
	switch {
	case err == nil:
		c.io.Printf("User:   %s\n", auth.UserID)
		c.io.Printf("Server: %s\n", auth.ServerURL)
		if auth.ExpiresAt > 0 {
			expires := time.Unix(auth.ExpiresAt, 0)
			if !c.now().Before(expires) {
				c.io.Println("Session: expired, run login")
			} else {
				c.io.Printf("Session: valid until %s\n", formatTime(expires))
			}
		}
	case errors.Is(err, storage.ErrAuthNotFound):
		c.io.Println("Session: not logged in")
	default:
		return fmt.Errorf("failed to read session: %w", err)
	}

	st, err := c.engine.Status(ctx)
	if err != nil {
		return err
	}
	c.io.Println()
	c.io.Printf("Pending:    %d\n", st.Pending)
	c.io.Printf("In flight:  %d\n", st.InFlight)
	c.io.Printf("Blocked:    %d\n", st.Blocked)
	c.io.Printf("Failed:     %d\n", st.Failed)
	c.io.Printf("Conflicts:  %d\n", st.Conflicts)
	c.io.Printf("Last drain: %s\n", formatTime(st.LastDrainAt))
	for _, scopeID := range slices.Sorted(maps.Keys(st.ScopeSeqs)) {
		c.io.Printf("Scope %s: synced to seq %d\n", scopeID, st.ScopeSeqs[scopeID])
	}
	for _, l := range st.Leases {
		c.io.Printf("Scope %s: %d subscribers, baseline %d\n", l.ScopeID, l.RefCount, l.Baseline)
	}
	return nil
}

// runOps печатает журнал операций
func (c *Cli) runOps(ctx context.Context) error {
	ops, err := c.engine.Operations(ctx)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		c.io.Println("Queue is empty")
		return nil
	}

	c.io.Printf("=== Operations (%d) ===\n", len(ops))
	for _, op := range ops {
		c.io.Printf("%s  %-9s %-6s %s/%s  retries=%d\n", op.ID, op.Status, op.Kind, op.EntityType, op.EntityID, op.RetryCount)
		if op.LastError != "" {
			c.io.Printf("    last error: %s\n", op.LastError)
		}
	}
	return nil
}

// runDrain выполняет один проход очереди
func (c *Cli) runDrain(ctx context.Context) error {
	c.io.Println("Syncing...")
	result, err := c.engine.Drain(ctx)
	if err != nil {
		return err
	}
	c.printDrain(result)
	if result.Expired {
		return errors.New("session expired, run login and sync again")
	}
	return nil
}

func (c *Cli) printDrain(r *clientsync.DrainResult) {
	c.io.Printf("✓ Sync finished: %d sent, %d superseded, %d blocked, %d retrying, %d failed\n",
		r.Processed, r.Superseded, r.Blocked, r.Retried, r.Failed)
}

// runRetry возвращает failed операцию в очередь
func (c *Cli) runRetry(ctx context.Context, opID string) error {
	op, err := c.engine.RetryOperation(ctx, opID)
	if err != nil {
		return err
	}
	c.io.Printf("✓ Operation %s is %s again\n", op.ID, op.Status)
	return nil
}

// runDiscard удаляет failed или blocked операцию
func (c *Cli) runDiscard(ctx context.Context, opID string) error {
	op, err := c.engine.DiscardOperation(ctx, opID)
	if err != nil {
		return err
	}
	c.printRemoved("Discarded", op)
	return nil
}

// runCancel отменяет еще не отправленную операцию
func (c *Cli) runCancel(ctx context.Context, opID string) error {
	op, err := c.engine.CancelOperation(ctx, opID)
	if err != nil {
		return err
	}
	c.printRemoved("Cancelled", op)
	return nil
}

func (c *Cli) printRemoved(verb string, op *models.Operation) {
	c.io.Printf("✓ %s %s of %s %s\n", verb, op.Kind, op.EntityType, op.EntityID)
}
