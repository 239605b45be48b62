package local

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// -----------------------------------------------------------------------------
// Programs
// -----------------------------------------------------------------------------

// ProgramRepository implements domain.ProgramRepository.
type ProgramRepository struct {
	uow *UnitOfWork
}

func (r *ProgramRepository) put(p *domain.Program) error {
	if r.uow.tx != nil {
		r.uow.tx.programs[p.ID] = clone(p)
		return nil
	}
	return r.uow.store.Save(programsCollection, p.ID, p)
}

func (r *ProgramRepository) get(id string) (*domain.Program, error) {
	if r.uow.tx != nil {
		if p, ok := r.uow.tx.programs[id]; ok {
			return clone(p), nil
		}
	}
	var p domain.Program
	if err := r.uow.store.Load(programsCollection, id, &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, domain.ErrProgramNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create stores a new program with version 1.
func (r *ProgramRepository) Create(ctx context.Context, p *domain.Program) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, err := r.get(p.ID); err == nil {
		return fmt.Errorf("%w: program %s exists", domain.ErrConflict, p.ID)
	}
	p.Version = 1
	return r.put(p)
}

func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*domain.Program, error) {
	return r.get(id)
}

// FindByLearner returns the learner's programs, oldest first.
func (r *ProgramRepository) FindByLearner(ctx context.Context, learnerID string) ([]*domain.Program, error) {
	ids, err := r.uow.store.List(programsCollection)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	if r.uow.tx != nil {
		for id := range r.uow.tx.programs {
			ids = append(ids, id)
		}
	}

	var out []*domain.Program
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, err := r.get(id)
		if err != nil {
			return nil, err
		}
		if p.LearnerID == learnerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update writes p if its version matches the stored one and bumps it.
func (r *ProgramRepository) Update(ctx context.Context, p *domain.Program) error {
	current, err := r.get(p.ID)
	if err != nil {
		return err
	}
	if current.Version != p.Version {
		return fmt.Errorf("%w: program %s version %d, have %d", domain.ErrConflict, p.ID, current.Version, p.Version)
	}
	p.Version++
	return r.put(p)
}

func (r *ProgramRepository) UpdateProgress(ctx context.Context, id string, currentTaskIndex int) error {
	p, err := r.get(id)
	if err != nil {
		return err
	}
	p.CurrentTaskIndex = currentTaskIndex
	p.LastActivityAt = r.uow.now()
	p.Version++
	return r.put(p)
}

func (r *ProgramRepository) Complete(ctx context.Context, id string) (*domain.Program, error) {
	p, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if err := p.Complete(r.uow.now()); err != nil {
		return nil, err
	}
	p.Version++
	if err := r.put(p); err != nil {
		return nil, err
	}
	return p, nil
}

// -----------------------------------------------------------------------------
// Tasks
// -----------------------------------------------------------------------------

// TaskRepository implements domain.TaskRepository.
type TaskRepository struct {
	uow *UnitOfWork
}

func (r *TaskRepository) put(t *domain.Task) error {
	if r.uow.tx != nil {
		r.uow.tx.tasks[t.ID] = clone(t)
		return nil
	}
	return saveTask(r.uow.store, t.ID, t)
}

func (r *TaskRepository) get(id string) (*domain.Task, error) {
	if r.uow.tx != nil {
		if t, ok := r.uow.tx.tasks[id]; ok {
			return clone(t), nil
		}
	}
	var idx indexEntry
	if err := r.uow.store.Load(taskIndexCollection, id, &idx); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	var t domain.Task
	if err := r.uow.store.LoadDir(programsCollection, idx.ProgramID, tasksSubdir, id, &t); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, err := r.get(t.ID); err == nil {
		return fmt.Errorf("%w: task %s exists", domain.ErrConflict, t.ID)
	}
	t.Version = 1
	return r.put(t)
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	return r.get(id)
}

func (r *TaskRepository) FindByProgram(ctx context.Context, programID string) ([]*domain.Task, error) {
	ids, err := r.uow.store.ListDir(programsCollection, programID, tasksSubdir)
	if err != nil {
		return nil, err
	}
	if r.uow.tx != nil {
		for id, t := range r.uow.tx.tasks {
			if t.ProgramID == programID {
				ids = append(ids, id)
			}
		}
	}

	seen := map[string]bool{}
	var out []*domain.Task
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, err := r.get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	current, err := r.get(t.ID)
	if err != nil {
		return err
	}
	if current.Version != t.Version {
		return fmt.Errorf("%w: task %s version %d, have %d", domain.ErrConflict, t.ID, current.Version, t.Version)
	}
	t.Version++
	return r.put(t)
}

func (r *TaskRepository) UpdateInteractions(ctx context.Context, id string, interactions []domain.Interaction) error {
	t, err := r.get(id)
	if err != nil {
		return err
	}
	t.Interactions = interactions
	t.UpdatedAt = r.uow.now()
	t.Version++
	return r.put(t)
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) error {
	t, err := r.get(id)
	if err != nil {
		return err
	}
	now := r.uow.now()
	switch status {
	case domain.TaskActive:
		t.Activate(now)
	case domain.TaskCompleted:
		t.Complete(t.Score, now)
	default:
		t.Status = status
		t.UpdatedAt = now
	}
	t.Version++
	return r.put(t)
}

// -----------------------------------------------------------------------------
// Evaluations
// -----------------------------------------------------------------------------

// EvaluationRepository implements domain.EvaluationRepository.
type EvaluationRepository struct {
	uow *UnitOfWork
}

func (r *EvaluationRepository) get(id string) (*domain.Evaluation, error) {
	if r.uow.tx != nil {
		if e, ok := r.uow.tx.evaluations[id]; ok {
			return clone(e), nil
		}
	}
	var idx indexEntry
	if err := r.uow.store.Load(evalIndexCollection, id, &idx); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, domain.ErrEvaluationNotFound
		}
		return nil, err
	}
	var e domain.Evaluation
	if err := r.uow.store.LoadDir(programsCollection, idx.ProgramID, evaluationsSubdir, id, &e); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, domain.ErrEvaluationNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Create stores an evaluation. Existing evaluations are never overwritten.
func (r *EvaluationRepository) Create(ctx context.Context, e *domain.Evaluation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, err := r.get(e.ID); err == nil {
		return fmt.Errorf("%w: evaluation %s exists", domain.ErrConflict, e.ID)
	}
	if r.uow.tx != nil {
		r.uow.tx.evaluations[e.ID] = clone(e)
		return nil
	}
	return saveEvaluation(r.uow.store, e.ID, e)
}

func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (*domain.Evaluation, error) {
	return r.get(id)
}

// FindByProgram returns the program's evaluations, oldest first.
func (r *EvaluationRepository) FindByProgram(ctx context.Context, programID string) ([]*domain.Evaluation, error) {
	ids, err := r.uow.store.ListDir(programsCollection, programID, evaluationsSubdir)
	if err != nil {
		return nil, err
	}
	if r.uow.tx != nil {
		for id, e := range r.uow.tx.evaluations {
			if e.ProgramID == programID {
				ids = append(ids, id)
			}
		}
	}

	seen := map[string]bool{}
	var out []*domain.Evaluation
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		e, err := r.get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
