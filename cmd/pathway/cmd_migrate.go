package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pathway/internal/config"
	"github.com/felixgeelhaar/pathway/internal/repository"
	"github.com/felixgeelhaar/pathway/internal/storage/sqlite"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cmd.OutOrStdout(), cfg.Storage)
		},
	}
}

func migrate(ctx context.Context, out io.Writer, cfg config.StorageConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ %s is up to date\n", cfg.Path)
	case config.DriverPostgres:
		version, err := repository.Migrate(ctx, repository.Config{DSN: cfg.DSN})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ postgres schema at version %d\n", version)
	default:
		fmt.Fprintf(out, "Storage driver %q has no schema to migrate\n", cfg.Driver)
	}
	return nil
}
