package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/stocksync/internal/client/background"
	"github.com/iudanet/stocksync/internal/client/iocli"
	"github.com/iudanet/stocksync/internal/config"
	"github.com/iudanet/stocksync/internal/logging"
)

// VersionInfo сведения о сборке, задаются через ldflags
type VersionInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// rootOptions общее состояние команд
type rootOptions struct {
	v          *viper.Viper
	io         iocli.IO
	cfg        *config.ClientConfig
	logger     *slog.Logger
	logCloser  io.Closer
	configFile string
}

// Execute собирает дерево команд и выполняет args
func Execute(ctx context.Context, info VersionInfo, stdio iocli.IO, args []string) error {
	root, opts := newRoot(info, stdio)
	defer opts.close()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand создает корневую команду клиента
func NewRootCommand(info VersionInfo, stdio iocli.IO) *cobra.Command {
	root, _ := newRoot(info, stdio)
	return root
}

func newRoot(info VersionInfo, stdio iocli.IO) (*cobra.Command, *rootOptions) {
	opts := &rootOptions{
		v:  config.New(config.ClientDefaults),
		io: stdio,
	}

	root := &cobra.Command{
		Use:           "stocksync",
		Short:         "Offline-first inventory client",
		Long:          "stocksync keeps a local copy of inventory data, queues edits made offline and syncs them with the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.SetOut(stdio)
	root.SetErr(stdio)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "path to YAML config file")
	flags.String("server", "", "server URL")
	flags.String("db", "", "path to local database")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = opts.v.BindPFlag("server_url", flags.Lookup("server"))
	_ = opts.v.BindPFlag("db_path", flags.Lookup("db"))
	_ = opts.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newVersionCommand(info, stdio),
		opts.newLoginCommand(),
		opts.newLogoutCommand(),
		opts.newStatusCommand(),
		opts.newSubmitCommand(),
		opts.newGetCommand(),
		opts.newListCommand(),
		opts.newOpsCommand(),
		opts.newSyncCommand(),
		opts.newRetryCommand(),
		opts.newDiscardCommand(),
		opts.newCancelCommand(),
		opts.newConflictsCommand(),
		opts.newResolveCommand(),
		opts.newRefreshCommand(),
		opts.newDeleteCommand(),
		opts.newDuplicateCommand(),
		opts.newWatchCommand(),
		opts.newWakeCommand(),
	)
	return root, opts
}

// load читает конфигурацию и настраивает логирование
func (o *rootOptions) load() error {
	if o.cfg != nil {
		return nil
	}
	if err := config.ReadFile(o.v, o.configFile); err != nil {
		return err
	}
	cfg, err := config.LoadClient(o.v)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	o.cfg, o.logger, o.logCloser = cfg, logger, closer
	return nil
}

func (o *rootOptions) close() {
	if o.logCloser != nil {
		_ = o.logCloser.Close()
	}
}

// withRuntime открывает локальную базу на время выполнения fn
func (o *rootOptions) withRuntime(ctx context.Context, fn func(ctx context.Context, c *Cli, rt *Runtime) error) error {
	rt, err := OpenRuntime(ctx, o.cfg, o.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			o.logger.Error("Failed to close runtime", "error", err)
		}
	}()
	return fn(ctx, New(o.io, rt.Engine, rt.Session), rt)
}

// withCli вариант withRuntime для команд, которым нужен только Cli
func (o *rootOptions) withCli(fn func(ctx context.Context, c *Cli) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return o.withRuntime(cmd.Context(), func(ctx context.Context, c *Cli, _ *Runtime) error {
			return fn(ctx, c)
		})
	}
}

func newVersionCommand(info VersionInfo, out iocli.IO) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Конфигурация не нужна
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(*cobra.Command, []string) {
			out.Println("stocksync client")
			out.Printf("Version:    %s\n", info.Version)
			out.Printf("Build Date: %s\n", info.BuildDate)
			out.Printf("Git Commit: %s\n", info.GitCommit)
		},
	}
}

func (o *rootOptions) newLoginCommand() *cobra.Command {
	var (
		withToken bool
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login [user-id]",
		Short: "Start a session",
		Long: `Start a session with the sync server.

By default the server issues the token. With --token the token is read
from the terminal, for deployments where tokens come from elsewhere.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var userID string
			if len(args) == 1 {
				userID = args[0]
			}
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return c.runLogin(ctx, userID, withToken, ttl)
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&withToken, "token", false, "read an access token instead of requesting one")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime of a token given with --token (0 - no expiry)")
	return cmd
}

func (o *rootOptions) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session, queued edits are kept",
		Args:  cobra.NoArgs,
		RunE: o.withCli(func(ctx context.Context, c *Cli) error {
			return c.runLogout(ctx)
		}),
	}
}

func (o *rootOptions) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session and queue state",
		Args:  cobra.NoArgs,
		RunE: o.withCli(func(ctx context.Context, c *Cli) error {
			return c.runStatus(ctx)
		}),
	}
}

func (o *rootOptions) newSubmitCommand() *cobra.Command {
	var args submitArgs
	cmd := &cobra.Command{
		Use:   "submit <create|update|delete>",
		Short: "Queue a change",
		Long: `Queue a change to an entity. The change is applied to the local copy
immediately and sent to the server in the background.

Example:
  stocksync submit create --type inventory_item --scope p1 --data '{"name":"bolt","qty":10}'
  stocksync submit update --id 3f2a... --data '{"qty":12}'
  stocksync submit delete --id 3f2a...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			args.Kind = posArgs[0]
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return c.runSubmit(ctx, args)
			})(cmd, posArgs)
		},
	}
	cmd.Flags().StringVar(&args.EntityType, "type", "", "entity type (inventory_item, transaction)")
	cmd.Flags().StringVar(&args.EntityID, "id", "", "entity id (generated for create if empty)")
	cmd.Flags().StringVar(&args.ScopeID, "scope", "", "scope id, required for create")
	cmd.Flags().StringVar(&args.Data, "data", "", "fields as a JSON object")
	return cmd
}

func (o *rootOptions) newGetCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get <entity-id>",
		Short: "Show an entity from the local copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return c.runGet(ctx, args[0], asJSON)
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func (o *rootOptions) newListCommand() *cobra.Command {
	var scopeID, entityType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities from the local copy",
		Args:  cobra.NoArgs,
		RunE: o.withCli(func(ctx context.Context, c *Cli) error {
			return c.runList(ctx, scopeID, entityType)
		}),
	}
	cmd.Flags().StringVar(&scopeID, "scope", "", "only entities of this scope")
	cmd.Flags().StringVar(&entityType, "type", "", "only entities of this type")
	return cmd
}

func (o *rootOptions) newOpsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List queued operations",
		Args:  cobra.NoArgs,
		RunE: o.withCli(func(ctx context.Context, c *Cli) error {
			return c.runOps(ctx)
		}),
	}
}

func (o *rootOptions) newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "sync",
		Aliases: []string{"drain"},
		Short:   "Send queued operations now",
		Args:    cobra.NoArgs,
		RunE: o.withCli(func(ctx context.Context, c *Cli) error {
			return c.runDrain(ctx)
		}),
	}
}

// opCommand команда над одной операцией очереди
func (o *rootOptions) opCommand(use, short string, run func(c *Cli, ctx context.Context, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <operation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return run(c, ctx, args[0])
			})(cmd, args)
		},
	}
}

func (o *rootOptions) newRetryCommand() *cobra.Command {
	return o.opCommand("retry", "Queue a failed operation again", (*Cli).runRetry)
}

func (o *rootOptions) newDiscardCommand() *cobra.Command {
	return o.opCommand("discard", "Drop a failed or blocked operation", (*Cli).runDiscard)
}

func (o *rootOptions) newCancelCommand() *cobra.Command {
	return o.opCommand("cancel", "Cancel an operation that was not sent yet", (*Cli).runCancel)
}

func (o *rootOptions) newConflictsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "conflicts [entity-id]",
		Short: "List conflicts waiting for a decision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entityID string
			if len(args) == 1 {
				entityID = args[0]
			}
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return c.runConflicts(ctx, entityID, asJSON)
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func (o *rootOptions) newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "resolve <entity-id> <local|server>",
		Short:     "Resolve a conflict",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"local", "server"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return c.runResolve(ctx, args[0], strings.ToLower(args[1]))
			})(cmd, args)
		},
	}
}

func (o *rootOptions) newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <scope-id>",
		Short: "Reload a scope from the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return c.runRefresh(ctx, args[0])
			})(cmd, args)
		},
	}
}

func (o *rootOptions) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <scope-id> <entity-id>...",
		Short: "Delete entities and wait for the server",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return c.runBulkDelete(ctx, args[0], args[1:])
			})(cmd, args)
		},
	}
}

func (o *rootOptions) newDuplicateCommand() *cobra.Command {
	var newID string
	cmd := &cobra.Command{
		Use:   "duplicate <entity-id>",
		Short: "Copy an entity and wait for the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withCli(func(ctx context.Context, c *Cli) error {
				return c.runDuplicate(ctx, args[0], newID)
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&newID, "new-id", "", "id of the copy (generated if empty)")
	return cmd
}

func (o *rootOptions) newWatchCommand() *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch [scope-id]...",
		Short: "Run the sync engine in the foreground",
		Long: `Run the sync engine until interrupted: send queued operations, follow
realtime changes of the given scopes and answer wake requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Scopes = args
			opts.Socket = o.cfg.Background.Socket
			if opts.MetricsAddr == "" {
				opts.MetricsAddr = o.cfg.MetricsAddr
			}
			return o.withRuntime(cmd.Context(), func(ctx context.Context, c *Cli, rt *Runtime) error {
				return c.runWatch(ctx, rt, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func (o *rootOptions) newWakeCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "wake",
		Short: "Ask the running client to sync now",
		Long: `Ask the client started with watch to send queued operations and wait
for its answer. Intended for schedulers and hooks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := background.DialSocket(ctx, o.cfg.Background.Socket, o.logger)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()
			return runWake(ctx, o.io, client, o.cfg.Background.AckTimeout, reason, o.logger)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "scheduled", "reason recorded in logs")
	return cmd
}
