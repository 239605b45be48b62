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

// TaskRepository implements domain.TaskRepository for PostgreSQL
type TaskRepository struct {
	queries *Queries
	now     func() time.Time
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(queries *Queries, now func() time.Time) *TaskRepository {
	return &TaskRepository{queries: queries, now: now}
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	t.Version = 1

	row, err := mapTaskToRow(t)
	if err != nil {
		return err
	}
	if err := r.queries.CreateTask(ctx, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: task %d of program %s", domain.ErrConflict, t.Index, t.ProgramID)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	row, err := r.queries.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return mapTaskFromRow(row)
}

func (r *TaskRepository) FindByProgram(ctx context.Context, programID string) ([]*domain.Task, error) {
	rows, err := r.queries.ListTasksByProgram(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]*domain.Task, 0, len(rows))
	for _, row := range rows {
		t, err := mapTaskFromRow(row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	row, err := mapTaskToRow(t)
	if err != nil {
		return err
	}
	n, err := r.queries.UpdateTask(ctx, row)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		if _, err := r.queries.GetTask(ctx, t.ID); errors.Is(err, sql.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return fmt.Errorf("%w: task %s version %d", domain.ErrConflict, t.ID, t.Version)
	}
	t.Version++
	return nil
}

func (r *TaskRepository) UpdateInteractions(ctx context.Context, id string, interactions []domain.Interaction) error {
	data, err := marshalInteractions(interactions)
	if err != nil {
		return err
	}
	n, err := r.queries.UpdateTaskInteractions(ctx, id, data, r.now())
	if err != nil {
		return fmt.Errorf("update interactions: %w", err)
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// UpdateStatus moves a task to status, stamping started_at or completed_at.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) error {
	n, err := r.queries.UpdateTaskStatus(ctx, id, string(status), r.now())
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

var _ domain.TaskRepository = (*TaskRepository)(nil)
