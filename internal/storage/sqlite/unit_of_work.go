package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// UnitOfWork implements domain.UnitOfWork over a SQLite database.
type UnitOfWork struct {
	db   *DB
	conn DBTX
	tx   *sql.Tx
	now  func() time.Time
}

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithClock sets the time source for timestamps written by the repositories.
func WithClock(now func() time.Time) Option {
	return func(u *UnitOfWork) { u.now = now }
}

// NewUnitOfWork creates a non-transactional unit of work over db.
func NewUnitOfWork(db *DB, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{db: db, conn: db, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Begin starts a new transaction.
func (u *UnitOfWork) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &UnitOfWork{db: u.db, conn: tx, tx: tx, now: u.now}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return nil
	}
	return u.tx.Commit()
}

// Rollback rolls back the transaction.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	return u.tx.Rollback()
}

func (u *UnitOfWork) Programs() domain.ProgramRepository {
	return &ProgramRepository{db: u.conn, uow: u}
}

func (u *UnitOfWork) Tasks() domain.TaskRepository {
	return &TaskRepository{db: u.conn, uow: u}
}

func (u *UnitOfWork) Evaluations() domain.EvaluationRepository {
	return &EvaluationRepository{db: u.conn, uow: u}
}

// Ensure UnitOfWork implements domain.UnitOfWork
var _ domain.UnitOfWork = (*UnitOfWork)(nil)
