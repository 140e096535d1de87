package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/stocksync/internal/client/conflict"
	"github.com/iudanet/stocksync/internal/models"
)

// runConflicts печатает конфликты, ожидающие решения
func (c *Cli) runConflicts(ctx context.Context, entityID string, asJSON bool) error {
	records, err := c.engine.Conflicts(ctx, entityID)
	if err != nil {
		return err
	}
	if asJSON {
		return c.printJSON(records)
	}
	if len(records) == 0 {
		c.io.Println("No conflicts")
		return nil
	}

	c.io.Printf("=== Conflicts (%d) ===\n", len(records))
	for _, r := range records {
		c.io.Printf("%s %s  %s", r.EntityType, r.EntityID, r.ConflictType)
		if r.Field != "" {
			c.io.Printf(" on %s", r.Field)
		}
		c.io.Println()
		c.io.Printf("    local:  %s\n", describeSnapshot(r.LocalSnapshot, r.Field))
		c.io.Printf("    server: %s\n", describeSnapshot(r.ServerSnapshot, r.Field))
	}
	c.io.Println()
	c.io.Println("Resolve with: resolve <entity-id> local|server")
	return nil
}

func describeSnapshot(s *models.Snapshot, field string) string {
	if s == nil {
		return "deleted"
	}
	if field != "" {
		return fmt.Sprintf("v%d %s=%v", s.Version, field, s.Data[field])
	}
	return fmt.Sprintf("v%d updated %s", s.Version, formatTime(s.UpdatedAt))
}

// runResolve применяет решение пользователя по конфликту сущности
func (c *Cli) runResolve(ctx context.Context, entityID, choice string) error {
	strategy := conflict.Strategy(choice)
	if strategy != conflict.StrategyLocal && strategy != conflict.StrategyServer {
		return fmt.Errorf("invalid choice %q, expected local or server", choice)
	}

	out, err := c.engine.ResolveConflict(ctx, entityID, strategy)
	if err != nil {
		return err
	}

	switch {
	case out.Superseded:
		c.io.Printf("✓ Kept server version of %s\n", entityID)
	case out.Rebased, out.Corrective != nil:
		c.io.Printf("✓ Kept local version of %s, it will be sent on next sync\n", entityID)
	default:
		c.io.Printf("✓ Conflict on %s resolved\n", entityID)
	}
	return nil
}
