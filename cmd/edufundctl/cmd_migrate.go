package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"edufund/internal/storage"
)

// migrateCmd applies pending schema migrations to the SQLite database
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StorageBackend != "sqlite" {
			return fmt.Errorf("migrate needs the sqlite backend, got %q", cfg.StorageBackend)
		}
		if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return err
		}
		version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s at schema version %d (dirty=%t)\n", cfg.SQLiteDBPath, version, dirty)
		return nil
	},
}
