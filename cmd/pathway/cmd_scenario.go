package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pathway/internal/config"
	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/repository"
	"github.com/felixgeelhaar/pathway/internal/scenario"
	"github.com/felixgeelhaar/pathway/internal/storage/sqlite"
)

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Inspect, validate and import learning scenarios",
	}

	var mode string
	list := &cobra.Command{
		Use:   "list [dir]",
		Short: "List scenarios in the catalog directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				_, cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.Scenarios.Dir
			}
			return listScenarios(cmd.OutOrStdout(), dir, domain.Mode(mode))
		},
	}
	list.Flags().StringVar(&mode, "mode", "", "only list scenarios of this mode (assessment, pbl, discovery)")

	validate := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate scenario files against the scenario schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateScenarios(cmd.OutOrStdout(), args)
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a directory of scenario files into the configured database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return importScenarios(cmd.Context(), cmd.OutOrStdout(), cfg.Storage, args[0])
		},
	}

	cmd.AddCommand(list, validate, importCmd)
	return cmd
}

func listScenarios(out io.Writer, dir string, mode domain.Mode) error {
	if mode != "" && !mode.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownMode, mode)
	}
	catalog := scenario.NewCatalog(dir)
	n, err := catalog.Load()
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintf(out, "No scenarios found in %s\n", dir)
		return nil
	}
	for _, s := range catalog.List(mode) {
		fmt.Fprintf(out, "  %-24s %-11s %s\n", s.ID, s.Mode, s.Title.Normalize(domain.DefaultLanguage).Get(domain.DefaultLanguage))
	}
	return nil
}

func validateScenarios(out io.Writer, paths []string) error {
	failed := 0
	for _, path := range paths {
		s, err := scenario.ParseFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s (%s, %s)\n", path, s.ID, s.Mode)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenario files invalid", failed, len(paths))
	}
	return nil
}

type scenarioSaver interface {
	Save(ctx context.Context, s *domain.Scenario) error
}

func importScenarios(ctx context.Context, out io.Writer, cfg config.StorageConfig, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	catalog := scenario.NewCatalog(dir)
	n, err := catalog.Load()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no valid scenarios in %s", dir)
	}

	saver, closeFn, err := openScenarioSaver(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	for _, s := range catalog.List("") {
		if err := saver.Save(ctx, s); err != nil {
			return fmt.Errorf("import %s: %w", s.ID, err)
		}
		fmt.Fprintf(out, "✓ %s\n", s.ID)
	}
	fmt.Fprintf(out, "Imported %d scenarios into %s storage\n", n, cfg.Driver)
	return nil
}

func openScenarioSaver(ctx context.Context, cfg config.StorageConfig) (scenarioSaver, func() error, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewScenarioStore(db), db.Close, nil
	case config.DriverPostgres:
		db, err := repository.Open(ctx, repository.Config{DSN: cfg.DSN})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewScenarioRepository(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("scenario import needs sqlite or postgres storage (driver is %q)", cfg.Driver)
	}
}
