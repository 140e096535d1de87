package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/stocksync/internal/client/background"
	"github.com/iudanet/stocksync/internal/client/iocli"
	clientsync "github.com/iudanet/stocksync/internal/client/sync"
	"github.com/iudanet/stocksync/internal/models"
)

// runWake просит foreground клиент выполнить проход очереди и ждет подтверждения.
// Локальная база не открывается: ее держит foreground процесс.
func runWake(ctx context.Context, out iocli.IO, bus background.Bus, timeout time.Duration, reason string, logger *slog.Logger) error {
	msg, err := background.NewCoordinator(bus, timeout, logger).Wake(ctx, reason)
	if err != nil {
		if errors.Is(err, background.ErrNoAck) {
			out.Printf("Foreground client did not answer in %s\n", timeout)
		}
		return err
	}
	out.Printf("✓ Foreground sync finished: %d sent, %d failed\n", msg.Processed, msg.Failed)
	return nil
}

// watchOptions параметры команды watch
type watchOptions struct {
	Socket      string
	MetricsAddr string
	Scopes      []string
}

// runWatch держит движок запущенным: планировщик, монитор связи, push подписки
// областей и прием запросов от background контекста
func (c *Cli) runWatch(ctx context.Context, rt *Runtime, opts watchOptions) error {
	eng := rt.Engine

	eng.OnChange(func(ev models.ChangeEvent) {
		if ev.Kind == models.ChangeResync {
			c.io.Printf("[%s] scope %s refreshed at #%d\n", c.now().Format(time.TimeOnly), ev.ScopeID, ev.Seq)
			return
		}
		id := ev.EntityID
		if id == "" && ev.Entity != nil {
			id = ev.Entity.ID
		}
		c.io.Printf("[%s] %s %s #%d\n", c.now().Format(time.TimeOnly), ev.Kind, id, ev.Seq)
	})
	eng.OnConflict(func(ev clientsync.ConflictEvent) {
		c.io.Printf("[%s] conflict on %s: %s (%s)\n",
			c.now().Format(time.TimeOnly), ev.Operation.EntityID, ev.Resolution.Strategy, ev.Resolution.Reason)
	})

	hub, err := background.ListenSocket(opts.Socket, rt.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := hub.Close(); err != nil {
			rt.logger.Error("Failed to close background socket", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		return background.NewResponder(hub, eng.Executor(), rt.logger).Run(gctx)
	})
	if opts.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			rt.logger.Info("Metrics server started", "addr", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	for _, scopeID := range opts.Scopes {
		lease, err := eng.SubscribeToScope(gctx, scopeID)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		defer lease.Release()
		c.io.Printf("Watching scope %s\n", scopeID)
	}
	c.io.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	c.io.Println("Stopped")
	return nil
}
