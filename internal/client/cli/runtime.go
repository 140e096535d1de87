package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iudanet/stocksync/internal/client/api"
	"github.com/iudanet/stocksync/internal/client/auth"
	"github.com/iudanet/stocksync/internal/client/conflict"
	"github.com/iudanet/stocksync/internal/client/connectivity"
	"github.com/iudanet/stocksync/internal/client/engine"
	"github.com/iudanet/stocksync/internal/client/metrics"
	"github.com/iudanet/stocksync/internal/client/queue"
	"github.com/iudanet/stocksync/internal/client/storage/boltdb"
	"github.com/iudanet/stocksync/internal/config"
)

// Runtime собранный foreground клиент: хранилище, сессия, транспорт и движок
type Runtime struct {
	Store    *boltdb.Storage
	Session  *auth.Session
	API      *api.Client
	Push     *api.PushClient
	Monitor  *connectivity.Monitor
	Engine   *engine.Engine
	Registry *prometheus.Registry
	logger   *slog.Logger
}

// EngineConfig переводит настройки клиента в параметры движка
func EngineConfig(cfg *config.ClientConfig) engine.Config {
	ec := engine.DefaultConfig()
	ec.Concurrency = cfg.Sync.Concurrency
	ec.PollInterval = cfg.Sync.PollInterval
	ec.Queue = queue.Config{
		BaseDelay:   cfg.Sync.BackoffBase,
		MaxRetries:  cfg.Sync.MaxRetries,
		CapExponent: cfg.Sync.BackoffCap,
	}

	policy := conflict.DefaultPolicy()
	if len(cfg.Conflict.SignificantFields) > 0 {
		policy.SignificantFields = cfg.Conflict.SignificantFields
	}
	if len(cfg.Conflict.NonCriticalFields) > 0 {
		policy.NonCriticalFields = cfg.Conflict.NonCriticalFields
	}
	if cfg.Conflict.ClockSkew > 0 {
		policy.ClockSkew = cfg.Conflict.ClockSkew
	}
	if cfg.Conflict.ServerWinsAfter > 0 {
		policy.ServerWinsAfter = cfg.Conflict.ServerWinsAfter
	}
	policy.ManualVersionConflicts = cfg.Conflict.ManualVersionConflicts
	ec.Policy = policy
	return ec
}

// OpenRuntime открывает локальную базу и собирает движок.
// Операции, прерванные аварийным завершением, возвращаются в очередь.
func OpenRuntime(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger) (*Runtime, error) {
	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Выдача токена не требует авторизации
	issuer := api.NewClient(cfg.ServerURL, api.WithTimeout(cfg.Sync.RequestTimeout))
	session := auth.NewSession(store, issuer, cfg.ServerURL, logger)

	client := api.NewClient(cfg.ServerURL,
		api.WithTokenSource(session),
		api.WithTimeout(cfg.Sync.RequestTimeout))
	push := api.NewPushClient(cfg.ServerURL, session, logger)
	monitor := connectivity.NewMonitor(client, cfg.Background.ConnectivityInterval, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng := engine.New(store, client, push, EngineConfig(cfg), logger,
		engine.WithMetrics(metrics.NewSync(registry)),
		engine.WithMonitor(monitor),
		engine.WithSessionExpired(func() {
			session.Expire(context.Background())
		}),
	)

	recovered, err := eng.Recover(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to recover queue: %w", err)
	}
	if recovered > 0 {
		logger.Info("Interrupted operations returned to queue", "count", recovered)
	}

	return &Runtime{
		Store:    store,
		Session:  session,
		API:      client,
		Push:     push,
		Monitor:  monitor,
		Engine:   eng,
		Registry: registry,
		logger:   logger,
	}, nil
}

// Close закрывает локальную базу
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	if err := r.Store.Close(); err != nil {
		return errors.Join(errors.New("failed to close database"), err)
	}
	return nil
}
