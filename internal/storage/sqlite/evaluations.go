package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

const evaluationColumns = `id, program_id, task_id, learner_id, mode, type, score,
	max_score, domain_scores, feedback_text, feedback_data, metadata, created_at`

// EvaluationRepository implements domain.EvaluationRepository. Rows are
// never updated.
type EvaluationRepository struct {
	db  DBTX
	uow *UnitOfWork
}

func (r *EvaluationRepository) Create(ctx context.Context, e *domain.Evaluation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.uow.now()
	}
	domainScores, err := encode("domain_scores", e.DomainScores)
	if err != nil {
		return err
	}
	feedbackData, err := encode("feedback_data", e.FeedbackData)
	if err != nil {
		return err
	}
	metadata, err := encode("metadata", e.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO evaluations (`+evaluationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProgramID, nullString(e.TaskID), e.LearnerID, string(e.Mode), string(e.Type), e.Score,
		e.MaxScore, domainScores, e.FeedbackText, feedbackData, metadata, e.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: evaluation for program %s", domain.ErrConflict, e.ProgramID)
		}
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (*domain.Evaluation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`, id)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEvaluationNotFound
	}
	return e, err
}

func (r *EvaluationRepository) FindByProgram(ctx context.Context, programID string) ([]*domain.Evaluation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+evaluationColumns+`
		FROM evaluations WHERE program_id = ? ORDER BY created_at, rowid`, programID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvaluation(row rowScanner) (*domain.Evaluation, error) {
	var e domain.Evaluation
	var taskID sql.NullString
	var mode, typ string
	var domainScores, feedbackData, metadata string

	err := row.Scan(
		&e.ID, &e.ProgramID, &taskID, &e.LearnerID, &mode, &typ, &e.Score,
		&e.MaxScore, &domainScores, &e.FeedbackText, &feedbackData, &metadata, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan evaluation: %w", err)
	}

	e.TaskID = taskID.String
	e.Mode = domain.Mode(mode)
	e.Type = domain.EvaluationType(typ)
	if err := decode("domain_scores", domainScores, &e.DomainScores); err != nil {
		return nil, err
	}
	if err := decode("feedback_data", feedbackData, &e.FeedbackData); err != nil {
		return nil, err
	}
	if err := decode("metadata", metadata, &e.Metadata); err != nil {
		return nil, err
	}
	return &e, nil
}
