package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/iudanet/stocksync/internal/client/engine"
	"github.com/iudanet/stocksync/internal/models"
)

// submitArgs аргументы команды submit
type submitArgs struct {
	Kind       string
	EntityType string
	EntityID   string
	ScopeID    string
	Data       string
}

// runSubmit ставит мутацию в очередь
func (c *Cli) runSubmit(ctx context.Context, args submitArgs) error {
	kind := models.OperationKind(strings.ToLower(args.Kind))
	if !kind.Valid() {
		return fmt.Errorf("unknown operation kind %q, expected create, update or delete", args.Kind)
	}
	fields, err := parseFields(args.Data)
	if err != nil {
		return err
	}

	op, err := c.engine.SubmitOperation(ctx, engine.Mutation{
		Kind:       kind,
		EntityType: args.EntityType,
		EntityID:   args.EntityID,
		ScopeID:    args.ScopeID,
		Payload:    fields,
	})
	if err != nil {
		return err
	}

	c.io.Printf("✓ Queued %s of %s %s\n", op.Kind, op.EntityType, op.EntityID)
	c.io.Printf("Operation: %s\n", op.ID)
	return nil
}

// runGet печатает сущность из локального кэша
func (c *Cli) runGet(ctx context.Context, entityID string, asJSON bool) error {
	entry, err := c.engine.GetEntity(ctx, entityID)
	if err != nil {
		return err
	}
	if asJSON {
		return c.printJSON(entry)
	}

	c.io.Printf("=== %s %s ===\n", entry.EntityType, entry.EntityID)
	c.io.Printf("Scope:       %s\n", entry.ScopeID)
	c.io.Printf("Version:     %d\n", entry.Version)
	c.io.Printf("Last synced: %s\n", formatTime(entry.LastSyncedAt))
	if !entry.OnServer() {
		c.io.Println("Not yet on server")
	}
	c.io.Println()
	for _, k := range sortedKeys(entry.Data) {
		c.io.Printf("  %s: %v\n", k, entry.Data[k])
	}
	return nil
}

// runList печатает сущности области
func (c *Cli) runList(ctx context.Context, scopeID, entityType string) error {
	entries, err := c.engine.ListEntities(ctx, scopeID, entityType)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		c.io.Println("No entities found")
		return nil
	}

	c.io.Printf("=== Entities (%d) ===\n", len(entries))
	for _, e := range entries {
		marker := ""
		if !e.OnServer() {
			marker = " (local)"
		}
		c.io.Printf("%s  %-16s v%d  %s%s\n", e.EntityID, e.EntityType, e.Version, summary(e.Data), marker)
	}
	return nil
}

// summary короткое представление сущности для списка
func summary(data models.Fields) string {
	for _, key := range []string{"name", "sku", "kind"} {
		if v, ok := data[key]; ok {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func sortedKeys(data models.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
