package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/pathway/internal/config"
	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/repository"
	"github.com/felixgeelhaar/pathway/internal/scenario"
	"github.com/felixgeelhaar/pathway/internal/storage/local"
	"github.com/felixgeelhaar/pathway/internal/storage/sqlite"
)

// storage is an opened program store plus whatever the driver offers on the
// side.
type storage struct {
	uow       domain.UnitOfWork
	scenarios domain.ScenarioRepository // nil for the local driver
	analytics *sqlite.AnalyticsStore    // sqlite only
	ping      func(ctx context.Context) error
	close     func() error
}

func openStorage(ctx context.Context, cfg config.StorageConfig, now func() time.Time) (*storage, error) {
	switch cfg.Driver {
	case config.DriverLocal:
		store, err := local.NewStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		return &storage{
			uow: local.NewUnitOfWork(store, local.WithClock(now)),
			ping: func(context.Context) error {
				_, err := os.Stat(store.Path())
				return err
			},
			close: func() error { return nil },
		}, nil

	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return &storage{
			uow:       sqlite.NewUnitOfWork(db, sqlite.WithClock(now)),
			scenarios: sqlite.NewScenarioStore(db),
			analytics: sqlite.NewAnalyticsStore(db),
			ping:      db.PingContext,
			close:     db.Close,
		}, nil

	case config.DriverPostgres:
		pg := repository.Config{DSN: cfg.DSN}
		if _, err := repository.Migrate(ctx, pg); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		db, err := repository.Open(ctx, pg)
		if err != nil {
			return nil, err
		}
		return &storage{
			uow:       repository.NewPostgresUnitOfWork(db, repository.WithClock(now)),
			scenarios: repository.NewScenarioRepository(db),
			ping:      func(ctx context.Context) error { return repository.Ping(ctx, db) },
			close:     db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// openScenarios prefers the YAML catalog when its directory exists, then the
// database store.
func openScenarios(ctx context.Context, cfg config.ScenariosConfig, db domain.ScenarioRepository, logger *slog.Logger) (domain.ScenarioRepository, error) {
	if cfg.Dir != "" {
		if info, err := os.Stat(cfg.Dir); err == nil && info.IsDir() {
			catalog := scenario.NewCatalog(cfg.Dir)
			n, err := catalog.Load()
			if err != nil {
				return nil, fmt.Errorf("load scenarios: %w", err)
			}
			logger.Info("loaded scenario catalog", "dir", cfg.Dir, "count", n)
			return catalog, nil
		}
	}

	if store, ok := db.(*sqlite.ScenarioStore); ok {
		n, err := store.Warm(ctx)
		if err != nil {
			return nil, fmt.Errorf("warm scenario cache: %w", err)
		}
		logger.Info("loaded scenarios from database", "count", n)
		return store, nil
	}
	if db != nil {
		return db, nil
	}

	logger.Warn("no scenario source available", "dir", cfg.Dir)
	return scenario.NewCatalog(cfg.Dir), nil
}
