package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/iudanet/stocksync/internal/config"
	"github.com/iudanet/stocksync/internal/logging"
	"github.com/iudanet/stocksync/internal/server"
	"github.com/iudanet/stocksync/internal/server/jwt"
	"github.com/iudanet/stocksync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	v := config.New(config.ServerDefaults)
	var configFile string

	root := &cobra.Command{
		Use:           "stocksync-server",
		Short:         "Reference sync server for stocksync clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(v, configFile); err != nil {
				return err
			}
			cfg, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.SetOut(out)

	flags := root.Flags()
	flags.StringVar(&configFile, "config", "", "path to YAML config file")
	flags.String("addr", "", "listen address")
	flags.String("db", "", "path to SQLite database")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("addr", flags.Lookup("addr"))
	_ = v.BindPFlag("db_path", flags.Lookup("db"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stocksync server\n")
			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "Git Commit: %s\n", GitCommit)
		},
	})
	return root
}

func run(ctx context.Context, cfg *config.ServerConfig) error {
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		_ = closer.Close()
	}()

	secret := cfg.JWTSecret
	if secret == "" {
		// Токены не переживут перезапуск сервера
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("jwt_secret is not set, using a random secret for this run")
	}

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.New(server.Options{
		Store:     store,
		Tokens:    jwt.NewService(secret, cfg.TokenTTL),
		Registry:  registry,
		Logger:    logger,
		Version:   Version,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	logger.Info("Starting stocksync server", "version", Version, "addr", cfg.Addr, "db", cfg.DBPath)
	return srv.ListenAndServe(ctx, cfg.Addr)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
