package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint failure.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// ProgramRepository implements domain.ProgramRepository for PostgreSQL
type ProgramRepository struct {
	queries *Queries
	now     func() time.Time
}

// NewProgramRepository creates a new ProgramRepository
func NewProgramRepository(queries *Queries, now func() time.Time) *ProgramRepository {
	return &ProgramRepository{queries: queries, now: now}
}

// Create inserts a program with version 1
func (r *ProgramRepository) Create(ctx context.Context, p *domain.Program) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	if p.LastActivityAt.IsZero() {
		p.LastActivityAt = p.CreatedAt
	}
	p.Version = 1

	row, err := mapProgramToRow(p)
	if err != nil {
		return err
	}
	if err := r.queries.CreateProgram(ctx, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: program %s exists", domain.ErrConflict, p.ID)
		}
		return fmt.Errorf("insert program: %w", err)
	}
	return nil
}

// FindByID retrieves a program by ID
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*domain.Program, error) {
	row, err := r.queries.GetProgram(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProgramNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}
	return mapProgramFromRow(row)
}

// FindByLearner lists a learner's programs, oldest first
func (r *ProgramRepository) FindByLearner(ctx context.Context, learnerID string) ([]*domain.Program, error) {
	rows, err := r.queries.ListProgramsByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	programs := make([]*domain.Program, 0, len(rows))
	for _, row := range rows {
		p, err := mapProgramFromRow(row)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}

// Update writes p if its version matches the stored row
func (r *ProgramRepository) Update(ctx context.Context, p *domain.Program) error {
	row, err := mapProgramToRow(p)
	if err != nil {
		return err
	}
	n, err := r.queries.UpdateProgram(ctx, row)
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	if n == 0 {
		if _, err := r.queries.GetProgram(ctx, p.ID); errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProgramNotFound
		}
		return fmt.Errorf("%w: program %s version %d", domain.ErrConflict, p.ID, p.Version)
	}
	p.Version++
	return nil
}

// UpdateProgress moves the program's task pointer
func (r *ProgramRepository) UpdateProgress(ctx context.Context, id string, currentTaskIndex int) error {
	n, err := r.queries.UpdateProgramProgress(ctx, id, int32(currentTaskIndex), r.now())
	if err != nil {
		return fmt.Errorf("update program progress: %w", err)
	}
	if n == 0 {
		return domain.ErrProgramNotFound
	}
	return nil
}

// Complete marks the program completed. The row is locked for the rest of
// the transaction.
func (r *ProgramRepository) Complete(ctx context.Context, id string) (*domain.Program, error) {
	row, err := r.queries.GetProgramForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProgramNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}
	p, err := mapProgramFromRow(row)
	if err != nil {
		return nil, err
	}
	if err := p.Complete(r.now()); err != nil {
		return nil, err
	}
	if err := r.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

var _ domain.ProgramRepository = (*ProgramRepository)(nil)
