package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// EvaluationRepository implements domain.EvaluationRepository for PostgreSQL.
// Rows are insert-only; a second program evaluation for the same program
// violates idx_evaluations_program_once and is reported as a conflict.
type EvaluationRepository struct {
	queries *Queries
	now     func() time.Time
}

// NewEvaluationRepository creates a new EvaluationRepository
func NewEvaluationRepository(queries *Queries, now func() time.Time) *EvaluationRepository {
	return &EvaluationRepository{queries: queries, now: now}
}

func (r *EvaluationRepository) Create(ctx context.Context, e *domain.Evaluation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	row, err := mapEvaluationToRow(e)
	if err != nil {
		return err
	}
	if err := r.queries.CreateEvaluation(ctx, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: evaluation for program %s", domain.ErrConflict, e.ProgramID)
		}
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (*domain.Evaluation, error) {
	row, err := r.queries.GetEvaluation(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEvaluationNotFound
		}
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return mapEvaluationFromRow(row)
}

func (r *EvaluationRepository) FindByProgram(ctx context.Context, programID string) ([]*domain.Evaluation, error) {
	rows, err := r.queries.ListEvaluationsByProgram(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	evals := make([]*domain.Evaluation, 0, len(rows))
	for _, row := range rows {
		e, err := mapEvaluationFromRow(row)
		if err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, nil
}

var _ domain.EvaluationRepository = (*EvaluationRepository)(nil)
