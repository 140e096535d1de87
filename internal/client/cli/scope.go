package cli

import (
	"context"
	"errors"

	"github.com/iudanet/stocksync/internal/client/engine"
)

// runRefresh перечитывает область с сервера
func (c *Cli) runRefresh(ctx context.Context, scopeID string) error {
	result, err := c.engine.ForceRefresh(ctx, scopeID)
	if err != nil {
		return err
	}
	c.io.Printf("✓ Scope %s refreshed: %d written, %d removed, %d kept with local changes\n",
		scopeID, result.Written, result.Removed, result.Kept)
	return nil
}

// runBulkDelete удаляет несколько сущностей и ждет обновления области
func (c *Cli) runBulkDelete(ctx context.Context, scopeID string, ids []string) error {
	result, err := c.engine.BulkDelete(ctx, scopeID, ids)
	if err != nil {
		if errors.Is(err, engine.ErrUnsettled) {
			c.io.Printf("Deletes of %d entities are queued and will be sent when online\n", len(ids))
		}
		return err
	}
	c.io.Printf("✓ Deleted %d entities\n", len(result.Operations))
	c.printRefresh(scopeID, result)
	return nil
}

// runDuplicate копирует сущность под новым ID
func (c *Cli) runDuplicate(ctx context.Context, entityID, newID string) error {
	result, err := c.engine.Duplicate(ctx, entityID, newID)
	if err != nil {
		if errors.Is(err, engine.ErrUnsettled) {
			c.io.Println("Copy is queued and will be sent when online")
		}
		return err
	}
	if len(result.Operations) > 0 {
		op := result.Operations[0]
		c.io.Printf("✓ Duplicated %s as %s\n", entityID, op.EntityID)
		c.printRefresh(op.ScopeID, result)
	}
	return nil
}

func (c *Cli) printRefresh(scopeID string, result *engine.WriteResult) {
	if result.Refresh == nil {
		return
	}
	c.io.Printf("Scope %s refreshed: %d entities\n", scopeID, result.Refresh.Written)
}
