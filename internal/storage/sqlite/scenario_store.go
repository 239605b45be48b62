package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// ScenarioStore keeps imported scenarios as JSON documents. Reads are served
// from an in-memory cache so lookups made inside an open transaction never
// wait on the single connection.
type ScenarioStore struct {
	db    *DB
	mu    sync.RWMutex
	cache map[string]*domain.Scenario
}

// NewScenarioStore creates a scenario store over db.
func NewScenarioStore(db *DB) *ScenarioStore {
	return &ScenarioStore{db: db, cache: make(map[string]*domain.Scenario)}
}

// Warm loads every stored scenario into the cache.
func (s *ScenarioStore) Warm(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document, created_at, updated_at FROM scenarios`)
	if err != nil {
		return 0, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]*domain.Scenario)
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return 0, err
		}
		loaded[sc.ID] = sc
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.cache = loaded
	s.mu.Unlock()
	return len(loaded), nil
}

// FindByID implements domain.ScenarioRepository.
func (s *ScenarioStore) FindByID(ctx context.Context, id string) (*domain.Scenario, error) {
	s.mu.RLock()
	sc, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return sc, nil
	}

	row := s.db.QueryRowContext(ctx, `SELECT document, created_at, updated_at FROM scenarios WHERE id = ?`, id)
	sc, err := scanScenario(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScenarioNotFound
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = sc
	s.mu.Unlock()
	return sc, nil
}

// Save inserts or replaces a scenario.
func (s *ScenarioStore) Save(ctx context.Context, sc *domain.Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = now

	doc, err := encode("scenario", sc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scenarios (id, mode, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode=excluded.mode, document=excluded.document, updated_at=excluded.updated_at`,
		sc.ID, string(sc.Mode), doc, sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert scenario: %w", err)
	}

	s.mu.Lock()
	s.cache[sc.ID] = sc
	s.mu.Unlock()
	return nil
}

func scanScenario(row rowScanner) (*domain.Scenario, error) {
	var doc string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&doc, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan scenario: %w", err)
	}
	var sc domain.Scenario
	if err := decode("scenario", doc, &sc); err != nil {
		return nil, err
	}
	sc.CreatedAt = createdAt
	sc.UpdatedAt = updatedAt
	return &sc, nil
}

var (
	_ domain.ScenarioRepository = (*ScenarioStore)(nil)
	_ domain.ScenarioWriter     = (*ScenarioStore)(nil)
)
