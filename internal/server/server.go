// Package server assembles the reference HTTP server: routes, middleware,
// the push hub and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/stocksync/internal/server/handlers"
	"github.com/iudanet/stocksync/internal/server/jwt"
	"github.com/iudanet/stocksync/internal/server/metrics"
	"github.com/iudanet/stocksync/internal/server/middleware"
	"github.com/iudanet/stocksync/internal/server/push"
	"github.com/iudanet/stocksync/internal/server/storage"
)

// shutdownTimeout время на завершение активных запросов
const shutdownTimeout = 10 * time.Second

// Store хранилище, которое нужно серверу
type Store interface {
	storage.UserStorage
	storage.EntityStorage
	handlers.Pinger
}

// Options параметры сборки сервера
type Options struct {
	Store     Store
	Tokens    *jwt.Service
	Registry  *prometheus.Registry // nil - без /metrics
	Logger    *slog.Logger
	Version   string
	RateLimit float64 // запросов в секунду на клиента, 0 - без ограничения
	RateBurst int
}

// Server эталонный сервер синхронизации
type Server struct {
	handler http.Handler
	hub     *push.Hub
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

// New собирает маршруты и middleware
func New(opts Options) *Server {
	logger := opts.Logger
	hub := push.NewHub(push.DefaultBuffer, logger)

	health := handlers.NewHealthHandler(logger, opts.Store, opts.Version)
	auth := handlers.NewAuthHandler(logger, opts.Store, opts.Tokens)
	entities := handlers.NewEntityHandler(logger, opts.Store, hub)
	stream := handlers.NewStreamHandler(logger, opts.Store, hub)

	var httpMetrics *metrics.HTTP
	if opts.Registry != nil {
		httpMetrics = metrics.NewHTTP(opts.Registry)
		stream.SetMetrics(metrics.NewHub(opts.Registry))
	}

	s := &Server{hub: hub, logger: logger}

	// Защищенные маршруты: токен, затем лимит по пользователю
	protected := []func(http.Handler) http.Handler{middleware.AuthMiddleware(logger, opts.Tokens)}
	public := []func(http.Handler) http.Handler{}
	if opts.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(opts.RateLimit, opts.RateBurst, time.Minute)
		limit := middleware.RateLimitMiddleware(s.limiter, logger)
		protected = append(protected, limit)
		public = append(public, limit)
	}

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc, mws []func(http.Handler) http.Handler, instrument bool) {
		var handler http.Handler = h
		if instrument && httpMetrics != nil {
			handler = httpMetrics.Instrument(pattern, handler)
		}
		mux.Handle(pattern, middleware.Chain(handler, mws...))
	}

	route("GET /api/v1/health", health.Health, nil, true)
	route("POST /api/v1/auth/token", auth.IssueToken, public, true)

	route("POST /api/v1/entities", entities.Create, protected, true)
	route("POST /api/v1/entities/snapshots", entities.Snapshots, protected, true)
	route("PATCH /api/v1/entities/{id}", entities.Update, protected, true)
	route("DELETE /api/v1/entities/{id}", entities.Delete, protected, true)
	route("GET /api/v1/scopes/{scope}/entities", entities.ListScope, protected, true)
	route("GET /api/v1/scopes/{scope}/stream", stream.Stream, protected, false)

	if opts.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	s.handler = middleware.Chain(mux,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingWithSkip(logger, []string{"/api/v1/health", "/metrics"}),
	)
	return s
}

// Handler возвращает корневой обработчик
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub возвращает hub рассылки изменений
func (s *Server) Hub() *push.Hub {
	return s.hub
}

// ListenAndServe обслуживает addr до отмены ctx, затем дожидается активных запросов
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown не ждет websocket соединений, закрываем подписки сами
	srv.RegisterOnShutdown(s.hub.Close)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.stop()
	if err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) stop() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
