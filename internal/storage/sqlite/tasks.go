package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

const taskColumns = `id, program_id, task_index, type, title, status, content,
	interactions, score, max_score, attempt_count, allowed_attempts,
	time_spent_seconds, extension, created_at, started_at, completed_at,
	updated_at, version`

// TaskRepository implements domain.TaskRepository.
type TaskRepository struct {
	db  DBTX
	uow *UnitOfWork
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.uow.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	t.Version = 1

	title, content, interactions, extension, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProgramID, t.Index, t.Type, title, string(t.Status), content,
		interactions, t.Score, t.MaxScore, t.AttemptCount, t.AllowedAttempts,
		t.TimeSpentSeconds, extension, t.CreatedAt, nullTime(t.StartedAt), nullTime(t.CompletedAt),
		t.UpdatedAt, t.Version,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return t, err
}

func (r *TaskRepository) FindByProgram(ctx context.Context, programID string) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+`
		FROM tasks WHERE program_id = ? ORDER BY task_index`, programID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	title, content, interactions, extension, err := encodeTask(t)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, status = ?, content = ?, interactions = ?, score = ?, max_score = ?,
			attempt_count = ?, allowed_attempts = ?, time_spent_seconds = ?, extension = ?,
			started_at = ?, completed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		title, string(t.Status), content, interactions, t.Score, t.MaxScore,
		t.AttemptCount, t.AllowedAttempts, t.TimeSpentSeconds, extension,
		nullTime(t.StartedAt), nullTime(t.CompletedAt), t.UpdatedAt,
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.FindByID(ctx, t.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: task %s", domain.ErrConflict, t.ID)
	}
	t.Version++
	return nil
}

func (r *TaskRepository) UpdateInteractions(ctx context.Context, id string, interactions []domain.Interaction) error {
	data, err := encode("interactions", interactions)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET interactions = ?, updated_at = ?, version = version + 1 WHERE id = ?`,
		data, r.uow.now(), id)
	if err != nil {
		return fmt.Errorf("update interactions: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// UpdateStatus moves a task to status, stamping started_at or completed_at.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) error {
	now := r.uow.now()
	query := `UPDATE tasks SET status = ?, updated_at = ?, version = version + 1 WHERE id = ?`
	args := []any{string(status), now, id}
	switch status {
	case domain.TaskActive:
		query = `UPDATE tasks SET status = ?, started_at = COALESCE(started_at, ?), updated_at = ?, version = version + 1 WHERE id = ?`
		args = []any{string(status), now, now, id}
	case domain.TaskCompleted:
		query = `UPDATE tasks SET status = ?, completed_at = ?, updated_at = ?, version = version + 1 WHERE id = ?`
		args = []any{string(status), now, now, id}
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func encodeTask(t *domain.Task) (title, content, interactions, extension string, err error) {
	if title, err = encode("title", t.Title); err != nil {
		return
	}
	if content, err = encode("content", t.Content); err != nil {
		return
	}
	list := t.Interactions
	if list == nil {
		list = []domain.Interaction{}
	}
	if interactions, err = encode("interactions", list); err != nil {
		return
	}
	extension, err = encode("extension", t.Extension)
	return
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var status string
	var title, content, interactions, extension string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.ProgramID, &t.Index, &t.Type, &title, &status, &content,
		&interactions, &t.Score, &t.MaxScore, &t.AttemptCount, &t.AllowedAttempts,
		&t.TimeSpentSeconds, &extension, &t.CreatedAt, &startedAt, &completedAt,
		&t.UpdatedAt, &t.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Status = domain.TaskStatus(status)
	t.StartedAt = timePtr(startedAt)
	t.CompletedAt = timePtr(completedAt)
	for _, f := range []struct {
		name string
		data string
		dst  any
	}{
		{"title", title, &t.Title},
		{"content", content, &t.Content},
		{"interactions", interactions, &t.Interactions},
		{"extension", extension, &t.Extension},
	} {
		if err := decode(f.name, f.data, f.dst); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
