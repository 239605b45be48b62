package local

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// Collection names.
const (
	programsCollection  = "programs"
	taskIndexCollection = "task_index"
	evalIndexCollection = "evaluation_index"
	tasksSubdir         = "tasks"
	evaluationsSubdir   = "evaluations"
)

// indexEntry maps a child record to its owning program directory.
type indexEntry struct {
	ProgramID string `json:"program_id"`
}

// UnitOfWork implements domain.UnitOfWork over a Store. Transactions are
// serialized: Begin blocks until the previous transaction commits or rolls
// back. Writes are buffered and flushed on Commit.
type UnitOfWork struct {
	store *Store
	txMu  *sync.Mutex
	now   func() time.Time

	tx   *buffer
	done bool
}

type buffer struct {
	programs    map[string]*domain.Program
	tasks       map[string]*domain.Task
	evaluations map[string]*domain.Evaluation
}

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithClock sets the time source used for completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(u *UnitOfWork) { u.now = now }
}

// NewUnitOfWork creates the root (non-transactional) unit of work.
func NewUnitOfWork(store *Store, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{store: store, txMu: &sync.Mutex{}, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Begin starts a transaction.
func (u *UnitOfWork) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.txMu.Lock()
	return &UnitOfWork{
		store: u.store,
		txMu:  u.txMu,
		now:   u.now,
		tx: &buffer{
			programs:    map[string]*domain.Program{},
			tasks:       map[string]*domain.Task{},
			evaluations: map[string]*domain.Evaluation{},
		},
	}, nil
}

// Commit flushes buffered writes to disk.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return nil
	}
	if u.done {
		return ErrTxDone
	}
	defer u.finish()

	for id, p := range u.tx.programs {
		if err := u.store.Save(programsCollection, id, p); err != nil {
			return err
		}
	}
	for id, t := range u.tx.tasks {
		if err := saveTask(u.store, id, t); err != nil {
			return err
		}
	}
	for id, e := range u.tx.evaluations {
		if err := saveEvaluation(u.store, id, e); err != nil {
			return err
		}
	}
	return nil
}

// Rollback discards buffered writes.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	if u.done {
		return ErrTxDone
	}
	u.finish()
	return nil
}

func (u *UnitOfWork) finish() {
	u.done = true
	u.txMu.Unlock()
}

func (u *UnitOfWork) Programs() domain.ProgramRepository       { return &ProgramRepository{uow: u} }
func (u *UnitOfWork) Tasks() domain.TaskRepository             { return &TaskRepository{uow: u} }
func (u *UnitOfWork) Evaluations() domain.EvaluationRepository { return &EvaluationRepository{uow: u} }

func saveTask(s *Store, id string, t *domain.Task) error {
	if err := s.SaveDir(programsCollection, t.ProgramID, tasksSubdir, id, t); err != nil {
		return err
	}
	return s.Save(taskIndexCollection, id, indexEntry{ProgramID: t.ProgramID})
}

func saveEvaluation(s *Store, id string, e *domain.Evaluation) error {
	if err := s.SaveDir(programsCollection, e.ProgramID, evaluationsSubdir, id, e); err != nil {
		return err
	}
	return s.Save(evalIndexCollection, id, indexEntry{ProgramID: e.ProgramID})
}

// clone deep-copies v so callers never share state with the buffer.
func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

// Ensure UnitOfWork implements domain.UnitOfWork
var _ domain.UnitOfWork = (*UnitOfWork)(nil)
