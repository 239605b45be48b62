package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

const programColumns = `id, learner_id, scenario_id, mode, status, language,
	current_task_index, completed_task_count, total_task_count, total_score,
	domain_scores, xp_earned, badges, time_spent_seconds, extension,
	created_at, started_at, completed_at, last_activity_at, version`

// ProgramRepository implements domain.ProgramRepository.
type ProgramRepository struct {
	db  DBTX
	uow *UnitOfWork
}

// Create inserts a program with version 1.
func (r *ProgramRepository) Create(ctx context.Context, p *domain.Program) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.uow.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastActivityAt.IsZero() {
		p.LastActivityAt = p.CreatedAt
	}
	p.Version = 1

	args, err := programArgs(p)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO programs (`+programColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert program: %w", err)
	}
	return nil
}

func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*domain.Program, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programs WHERE id = ?`, id)
	p, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProgramNotFound
	}
	return p, err
}

func (r *ProgramRepository) FindByLearner(ctx context.Context, learnerID string) ([]*domain.Program, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+programColumns+`
		FROM programs WHERE learner_id = ? ORDER BY created_at`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update writes every mutable column when the stored version matches.
func (r *ProgramRepository) Update(ctx context.Context, p *domain.Program) error {
	domainScores, err := encode("domain_scores", p.DomainScores)
	if err != nil {
		return err
	}
	badges, err := encode("badges", p.Badges)
	if err != nil {
		return err
	}
	extension, err := encode("extension", p.Extension)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE programs SET
			status = ?, language = ?, current_task_index = ?, completed_task_count = ?,
			total_task_count = ?, total_score = ?, domain_scores = ?, xp_earned = ?,
			badges = ?, time_spent_seconds = ?, extension = ?, started_at = ?,
			completed_at = ?, last_activity_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(p.Status), p.Language, p.CurrentTaskIndex, p.CompletedTaskCount,
		p.TotalTaskCount, p.TotalScore, domainScores, p.XPEarned,
		badges, p.TimeSpentSeconds, extension, nullTime(p.StartedAt),
		nullTime(p.CompletedAt), p.LastActivityAt,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	if err := r.checkVersioned(ctx, result, p.ID); err != nil {
		return err
	}
	p.Version++
	return nil
}

// checkVersioned distinguishes a missing row from a stale version.
func (r *ProgramRepository) checkVersioned(ctx context.Context, result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: program %s", domain.ErrConflict, id)
}

func (r *ProgramRepository) UpdateProgress(ctx context.Context, id string, currentTaskIndex int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE programs SET current_task_index = ?, last_activity_at = ?, version = version + 1
		WHERE id = ?`, currentTaskIndex, r.uow.now(), id)
	if err != nil {
		return fmt.Errorf("update program progress: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrProgramNotFound
	}
	return nil
}

func (r *ProgramRepository) Complete(ctx context.Context, id string) (*domain.Program, error) {
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Complete(r.uow.now()); err != nil {
		return nil, err
	}
	if err := r.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func programArgs(p *domain.Program) ([]any, error) {
	domainScores, err := encode("domain_scores", p.DomainScores)
	if err != nil {
		return nil, err
	}
	badges, err := encode("badges", p.Badges)
	if err != nil {
		return nil, err
	}
	extension, err := encode("extension", p.Extension)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.LearnerID, p.ScenarioID, string(p.Mode), string(p.Status), p.Language,
		p.CurrentTaskIndex, p.CompletedTaskCount, p.TotalTaskCount, p.TotalScore,
		domainScores, p.XPEarned, badges, p.TimeSpentSeconds, extension,
		p.CreatedAt, nullTime(p.StartedAt), nullTime(p.CompletedAt), p.LastActivityAt, p.Version,
	}, nil
}

func scanProgram(row rowScanner) (*domain.Program, error) {
	var p domain.Program
	var mode, status string
	var domainScores, badges, extension string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.LearnerID, &p.ScenarioID, &mode, &status, &p.Language,
		&p.CurrentTaskIndex, &p.CompletedTaskCount, &p.TotalTaskCount, &p.TotalScore,
		&domainScores, &p.XPEarned, &badges, &p.TimeSpentSeconds, &extension,
		&p.CreatedAt, &startedAt, &completedAt, &p.LastActivityAt, &p.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan program: %w", err)
	}

	p.Mode = domain.Mode(mode)
	p.Status = domain.ProgramStatus(status)
	p.StartedAt = timePtr(startedAt)
	p.CompletedAt = timePtr(completedAt)
	if err := decode("domain_scores", domainScores, &p.DomainScores); err != nil {
		return nil, err
	}
	if err := decode("badges", badges, &p.Badges); err != nil {
		return nil, err
	}
	if err := decode("extension", extension, &p.Extension); err != nil {
		return nil, err
	}
	return &p, nil
}
