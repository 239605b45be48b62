package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// ScenarioRepository stores imported scenarios as JSONB documents.
type ScenarioRepository struct {
	queries *Queries
}

// NewScenarioRepository creates a scenario repository over db.
func NewScenarioRepository(db DBTX) *ScenarioRepository {
	return &ScenarioRepository{queries: New(db)}
}

func (r *ScenarioRepository) FindByID(ctx context.Context, id string) (*domain.Scenario, error) {
	row, err := r.queries.GetScenario(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScenarioNotFound
		}
		return nil, fmt.Errorf("get scenario: %w", err)
	}
	return mapScenarioFromRow(row)
}

// Save inserts or replaces a scenario after validating it.
func (r *ScenarioRepository) Save(ctx context.Context, s *domain.Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	row, err := mapScenarioToRow(s)
	if err != nil {
		return err
	}
	if err := r.queries.UpsertScenario(ctx, row); err != nil {
		return fmt.Errorf("upsert scenario: %w", err)
	}
	return nil
}

// IDs lists the stored scenario ids.
func (r *ScenarioRepository) IDs(ctx context.Context) ([]string, error) {
	ids, err := r.queries.ListScenarioIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	return ids, nil
}

var (
	_ domain.ScenarioRepository = (*ScenarioRepository)(nil)
	_ domain.ScenarioWriter     = (*ScenarioRepository)(nil)
)
