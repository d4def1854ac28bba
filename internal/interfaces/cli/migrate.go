package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/postgres"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

// schemaMigrator is the part of postgres.Migrator the migrate commands use.
type schemaMigrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
}

// newMigrator is replaced in tests.
var newMigrator = func(cfg config.DatabaseConfig, log logging.Logger) schemaMigrator {
	return postgres.NewMigrator(cfg, log)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate up failed")
			}
			return printVersion(cmd, m)
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return errors.Newf(errors.ErrCodeValidation, "steps must be greater than 0, got %d", steps)
			}
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate down failed")
			}
			return printVersion(cmd, m)
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			return printVersion(cmd, m)
		},
	}

	cmd.AddCommand(upCmd, downCmd, versionCmd)
	return cmd
}

func migratorFor(cmd *cobra.Command) (schemaMigrator, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return newMigrator(cliCtx.Config.Database, cliCtx.Logger), nil
}

type schemaVersion struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func printVersion(cmd *cobra.Command, m schemaMigrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read schema version")
	}
	v := schemaVersion{Version: version, Dirty: dirty}
	return PrintResult(cmd, v, func(w io.Writer) error {
		state := "clean"
		if dirty {
			state = "dirty"
		}
		_, err := fmt.Fprintf(w, "schema version %d (%s)\n", version, state)
		return err
	})
}
