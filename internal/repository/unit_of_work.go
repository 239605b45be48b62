package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// PostgresUnitOfWork implements domain.UnitOfWork for PostgreSQL
type PostgresUnitOfWork struct {
	db      *sql.DB
	tx      *sql.Tx
	queries *Queries
	now     func() time.Time

	// Lazy-initialized repositories
	programs    *ProgramRepository
	tasks       *TaskRepository
	evaluations *EvaluationRepository
}

// Option configures a PostgresUnitOfWork.
type Option func(*PostgresUnitOfWork)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(u *PostgresUnitOfWork) { u.now = now }
}

// NewPostgresUnitOfWork creates a new PostgresUnitOfWork
func NewPostgresUnitOfWork(db *sql.DB, opts ...Option) *PostgresUnitOfWork {
	uow := &PostgresUnitOfWork{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uow)
	}
	return uow
}

// Begin starts a new unit of work with a transaction
func (uow *PostgresUnitOfWork) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := uow.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &PostgresUnitOfWork{
		db:      uow.db,
		tx:      tx,
		queries: New(tx),
		now:     uow.now,
	}, nil
}

// Commit commits the transaction
func (uow *PostgresUnitOfWork) Commit() error {
	if uow.tx == nil {
		return nil
	}
	return uow.tx.Commit()
}

// Rollback rolls back the transaction
func (uow *PostgresUnitOfWork) Rollback() error {
	if uow.tx == nil {
		return nil
	}
	return uow.tx.Rollback()
}

// Programs returns the program repository
func (uow *PostgresUnitOfWork) Programs() domain.ProgramRepository {
	if uow.programs == nil {
		uow.programs = NewProgramRepository(uow.queries, uow.now)
	}
	return uow.programs
}

// Tasks returns the task repository
func (uow *PostgresUnitOfWork) Tasks() domain.TaskRepository {
	if uow.tasks == nil {
		uow.tasks = NewTaskRepository(uow.queries, uow.now)
	}
	return uow.tasks
}

// Evaluations returns the evaluation repository
func (uow *PostgresUnitOfWork) Evaluations() domain.EvaluationRepository {
	if uow.evaluations == nil {
		uow.evaluations = NewEvaluationRepository(uow.queries, uow.now)
	}
	return uow.evaluations
}

// Ensure PostgresUnitOfWork implements domain.UnitOfWork
var _ domain.UnitOfWork = (*PostgresUnitOfWork)(nil)
