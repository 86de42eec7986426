package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"finledger/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			if err := storage.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied to %s\n", a.cfg.SQLiteDBPath)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			version, dirty, err := storage.SchemaVersion(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, status)
	return cmd
}
