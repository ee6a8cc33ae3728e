package main

import (
	"fmt"

	"github.com/phrazzld/inkwell-api/internal/platform/postgres"
	"github.com/spf13/cobra"
)

var migrateCommands = []string{"up", "down", "status", "version", "redo", "reset"}

func newMigrateCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate COMMAND",
		Short:     "Run database migrations",
		Long:      `Run a goose migration command (up, down, status, version, redo, reset) against the configured Postgres database.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env.session(cmd)
			if err != nil {
				return err
			}

			db, err := env.openDB(cmd.Context(), s.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := postgres.Migrate(cmd.Context(), db, s.log, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", args[0])
			return err
		},
	}
}
