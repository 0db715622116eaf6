// Package cli holds the chatbot commands: the long-running serve command
// and the out-of-band tools for migrations, admins, custom commands and
// usage reports.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/db"
	"github.com/onnwee/chatbot/store"
	"github.com/onnwee/chatbot/telemetry"
)

// Version is set at build time with -ldflags "-X github.com/onnwee/chatbot/cli.Version=...".
var Version = "dev"

// Root returns the chatbot command tree. Running it without a subcommand
// serves.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:     "chatbot",
		Short:   "Command bot for Discord and Twitch chat",
		Version: Version,
		Long: `chatbot answers prefixed commands in Discord and Twitch chat, keeps
per-source custom commands and admins, and counts command usage per month.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			// Local dev convenience; real deployments set the environment.
			_ = godotenv.Load(envFile)
			telemetry.SetupLogging(cmd.ErrOrStderr(), os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(adminsCmd())
	root.AddCommand(commandsCmd())
	root.AddCommand(statsCmd())
	return root
}

// openDB connects to the configured SQL backend.
func openDB(cfg *config.Config) (*sql.DB, db.Dialect, error) {
	dialect, err := db.ParseDialect(cfg.DBBackend)
	if err != nil {
		return nil, "", err
	}
	dsn := cfg.DBDsn
	if dialect == db.SQLite {
		dsn = cfg.SQLitePath
	}
	database, err := db.Connect(dialect, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", dialect, err)
	}
	return database, dialect, nil
}

func isMemory(cfg *config.Config) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.DBBackend), "memory")
}

// openStore returns the configured store with its schema in place. The
// returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if isMemory(cfg) {
		slog.Warn("using the in-memory store; admins, custom commands and usage are lost on exit",
			slog.String("component", "db"))
		return store.NewMemory(), func() {}, nil
	}
	database, dialect, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err), slog.String("component", "db"))
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}
	slog.Info("running database migrations", slog.String("backend", string(dialect)), slog.String("component", "db_migrate"))
	if err := db.Setup(ctx, database, dialect); err != nil {
		closeDB()
		return nil, nil, err
	}
	return store.NewSQL(database, dialect), closeDB, nil
}

// withStore runs fn against the persistent store for one CLI invocation.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, st store.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if isMemory(cfg) {
		return fmt.Errorf("DB_BACKEND=memory keeps nothing between runs; use postgres or sqlite")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, release, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, cfg, st)
}

// sourceFlag reads and validates the --source flag.
func sourceFlag(cmd *cobra.Command) (command.Source, error) {
	v, _ := cmd.Flags().GetString("source")
	return command.ParseSource(v)
}
