package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/platform/memory"
	"github.com/phrazzld/inkwell-api/internal/platform/postgres"
	"github.com/phrazzld/inkwell-api/internal/store"
	"github.com/spf13/cobra"
)

// cliEnv holds the hooks commands use to reach configuration and storage.
// Tests replace them to run commands against in-memory stores.
type cliEnv struct {
	loadConfig   func() (*config.Config, error)
	openDB       func(ctx context.Context, cfg *config.Config) (*sql.DB, error)
	openAccounts func(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.AccountStore, func(), error)
}

func defaultEnv() *cliEnv {
	return &cliEnv{
		loadConfig: config.Load,
		openDB: func(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
			if cfg.Database.Driver != "postgres" {
				return nil, fmt.Errorf("database driver %q has no schema to migrate", cfg.Database.Driver)
			}
			return postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		},
		openAccounts: openAccountStore,
	}
}

// openAccountStore opens the configured account store. The memory driver is
// accepted but its data is gone when the command exits.
func openAccountStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.AccountStore, func(), error) {
	if cfg.Database.Driver != "postgres" {
		log.Warn("memory database driver selected, changes will not persist")
		return memory.NewAccountStore(), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database connection", "error", err)
		}
	}
	return postgres.NewPostgresAccountStore(db, log), closeFn, nil
}

// session is what a command gets after configuration is loaded.
type session struct {
	cfg *config.Config
	log *slog.Logger
}

func (e *cliEnv) session(cmd *cobra.Command) (*session, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.SetupWithWriter(cfg.Server, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, log: log}, nil
}

func newRootCmd(env *cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:   "inkctl",
		Short: "Operate an Inkwell API deployment",
		Long: `inkctl manages the database schema, credit balances and access tokens
of an Inkwell API deployment. Configuration is read the same way the server
reads it: config.yaml in the working directory, the file named by
INKWELL_CONFIG_FILE, and INKWELL_* environment variables.`,
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.AddCommand(
		newMigrateCmd(env),
		newCreditsCmd(env),
		newEstimateCmd(),
		newTokenCmd(env),
	)
	return root
}
