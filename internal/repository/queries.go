package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs the statements used by the repositories.
type Queries struct {
	db DBTX
}

// New creates Queries over db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// ProgramRow mirrors the programs table.
type ProgramRow struct {
	ID                 string
	LearnerID          string
	ScenarioID         string
	Mode               string
	Status             string
	Language           string
	CurrentTaskIndex   int32
	CompletedTaskCount int32
	TotalTaskCount     int32
	TotalScore         float64
	DomainScores       json.RawMessage
	XpEarned           int32
	Badges             []string
	TimeSpentSeconds   int32
	Extension          pqtype.NullRawMessage
	CreatedAt          time.Time
	StartedAt          sql.NullTime
	CompletedAt        sql.NullTime
	LastActivityAt     time.Time
	Version            int32
}

// TaskRow mirrors the tasks table.
type TaskRow struct {
	ID               string
	ProgramID        string
	TaskIndex        int32
	Type             string
	Title            json.RawMessage
	Status           string
	Content          json.RawMessage
	Interactions     json.RawMessage
	KsaCodes         []string
	Score            float64
	MaxScore         float64
	AttemptCount     int32
	AllowedAttempts  int32
	TimeSpentSeconds int32
	Extension        pqtype.NullRawMessage
	CreatedAt        time.Time
	StartedAt        sql.NullTime
	CompletedAt      sql.NullTime
	UpdatedAt        time.Time
	Version          int32
}

// EvaluationRow mirrors the evaluations table.
type EvaluationRow struct {
	ID           string
	ProgramID    string
	TaskID       sql.NullString
	LearnerID    string
	Mode         string
	Type         string
	Score        float64
	MaxScore     float64
	DomainScores json.RawMessage
	FeedbackText string
	FeedbackData pqtype.NullRawMessage
	Metadata     pqtype.NullRawMessage
	CreatedAt    time.Time
}

// ScenarioRow mirrors the scenarios table.
type ScenarioRow struct {
	ID        string
	Mode      string
	Document  json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

const programColumns = `id, learner_id, scenario_id, mode, status, language,
	current_task_index, completed_task_count, total_task_count, total_score,
	domain_scores, xp_earned, badges, time_spent_seconds, extension,
	created_at, started_at, completed_at, last_activity_at, version`

const createProgram = `INSERT INTO programs (` + programColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

func (q *Queries) CreateProgram(ctx context.Context, arg ProgramRow) error {
	_, err := q.db.ExecContext(ctx, createProgram,
		arg.ID, arg.LearnerID, arg.ScenarioID, arg.Mode, arg.Status, arg.Language,
		arg.CurrentTaskIndex, arg.CompletedTaskCount, arg.TotalTaskCount, arg.TotalScore,
		arg.DomainScores, arg.XpEarned, pq.Array(arg.Badges), arg.TimeSpentSeconds, arg.Extension,
		arg.CreatedAt, arg.StartedAt, arg.CompletedAt, arg.LastActivityAt, arg.Version,
	)
	return err
}

const getProgram = `SELECT ` + programColumns + ` FROM programs WHERE id = $1`

func (q *Queries) GetProgram(ctx context.Context, id string) (ProgramRow, error) {
	return scanProgramRow(q.db.QueryRowContext(ctx, getProgram, id))
}

const getProgramForUpdate = getProgram + ` FOR UPDATE`

// GetProgramForUpdate locks the row until the surrounding transaction ends.
func (q *Queries) GetProgramForUpdate(ctx context.Context, id string) (ProgramRow, error) {
	return scanProgramRow(q.db.QueryRowContext(ctx, getProgramForUpdate, id))
}

const listProgramsByLearner = `SELECT ` + programColumns + `
FROM programs WHERE learner_id = $1 ORDER BY created_at, id`

func (q *Queries) ListProgramsByLearner(ctx context.Context, learnerID string) ([]ProgramRow, error) {
	rows, err := q.db.QueryContext(ctx, listProgramsByLearner, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProgramRow
	for rows.Next() {
		i, err := scanProgramRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const updateProgram = `UPDATE programs SET
	status = $3, language = $4, current_task_index = $5, completed_task_count = $6,
	total_task_count = $7, total_score = $8, domain_scores = $9, xp_earned = $10,
	badges = $11, time_spent_seconds = $12, extension = $13, started_at = $14,
	completed_at = $15, last_activity_at = $16, version = version + 1
WHERE id = $1 AND version = $2`

// UpdateProgram returns the number of rows written; zero means the id is
// unknown or the version is stale.
func (q *Queries) UpdateProgram(ctx context.Context, arg ProgramRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateProgram,
		arg.ID, arg.Version, arg.Status, arg.Language, arg.CurrentTaskIndex, arg.CompletedTaskCount,
		arg.TotalTaskCount, arg.TotalScore, arg.DomainScores, arg.XpEarned,
		pq.Array(arg.Badges), arg.TimeSpentSeconds, arg.Extension, arg.StartedAt,
		arg.CompletedAt, arg.LastActivityAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateProgramProgress = `UPDATE programs
SET current_task_index = $2, last_activity_at = $3, version = version + 1
WHERE id = $1`

func (q *Queries) UpdateProgramProgress(ctx context.Context, id string, index int32, at time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateProgramProgress, id, index, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const taskColumns = `id, program_id, task_index, type, title, status, content,
	interactions, ksa_codes, score, max_score, attempt_count, allowed_attempts,
	time_spent_seconds, extension, created_at, started_at, completed_at,
	updated_at, version`

const createTask = `INSERT INTO tasks (` + taskColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

func (q *Queries) CreateTask(ctx context.Context, arg TaskRow) error {
	_, err := q.db.ExecContext(ctx, createTask,
		arg.ID, arg.ProgramID, arg.TaskIndex, arg.Type, arg.Title, arg.Status, arg.Content,
		arg.Interactions, pq.Array(arg.KsaCodes), arg.Score, arg.MaxScore, arg.AttemptCount,
		arg.AllowedAttempts, arg.TimeSpentSeconds, arg.Extension, arg.CreatedAt, arg.StartedAt,
		arg.CompletedAt, arg.UpdatedAt, arg.Version,
	)
	return err
}

const getTask = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

func (q *Queries) GetTask(ctx context.Context, id string) (TaskRow, error) {
	return scanTaskRow(q.db.QueryRowContext(ctx, getTask, id))
}

const listTasksByProgram = `SELECT ` + taskColumns + `
FROM tasks WHERE program_id = $1 ORDER BY task_index`

func (q *Queries) ListTasksByProgram(ctx context.Context, programID string) ([]TaskRow, error) {
	rows, err := q.db.QueryContext(ctx, listTasksByProgram, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TaskRow
	for rows.Next() {
		i, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const updateTask = `UPDATE tasks SET
	title = $3, status = $4, content = $5, interactions = $6, ksa_codes = $7,
	score = $8, max_score = $9, attempt_count = $10, allowed_attempts = $11,
	time_spent_seconds = $12, extension = $13, started_at = $14, completed_at = $15,
	updated_at = $16, version = version + 1
WHERE id = $1 AND version = $2`

func (q *Queries) UpdateTask(ctx context.Context, arg TaskRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTask,
		arg.ID, arg.Version, arg.Title, arg.Status, arg.Content, arg.Interactions,
		pq.Array(arg.KsaCodes), arg.Score, arg.MaxScore, arg.AttemptCount, arg.AllowedAttempts,
		arg.TimeSpentSeconds, arg.Extension, arg.StartedAt, arg.CompletedAt, arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateTaskInteractions = `UPDATE tasks
SET interactions = $2, updated_at = $3, version = version + 1
WHERE id = $1`

func (q *Queries) UpdateTaskInteractions(ctx context.Context, id string, interactions json.RawMessage, at time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTaskInteractions, id, interactions, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateTaskStatus = `UPDATE tasks SET
	status = $2,
	started_at = CASE WHEN $2 = 'active' THEN COALESCE(started_at, $3) ELSE started_at END,
	completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END,
	updated_at = $3, version = version + 1
WHERE id = $1`

func (q *Queries) UpdateTaskStatus(ctx context.Context, id, status string, at time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTaskStatus, id, status, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const evaluationColumns = `id, program_id, task_id, learner_id, mode, type, score,
	max_score, domain_scores, feedback_text, feedback_data, metadata, created_at`

const createEvaluation = `INSERT INTO evaluations (` + evaluationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (q *Queries) CreateEvaluation(ctx context.Context, arg EvaluationRow) error {
	_, err := q.db.ExecContext(ctx, createEvaluation,
		arg.ID, arg.ProgramID, arg.TaskID, arg.LearnerID, arg.Mode, arg.Type, arg.Score,
		arg.MaxScore, arg.DomainScores, arg.FeedbackText, arg.FeedbackData, arg.Metadata, arg.CreatedAt,
	)
	return err
}

const getEvaluation = `SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = $1`

func (q *Queries) GetEvaluation(ctx context.Context, id string) (EvaluationRow, error) {
	return scanEvaluationRow(q.db.QueryRowContext(ctx, getEvaluation, id))
}

const listEvaluationsByProgram = `SELECT ` + evaluationColumns + `
FROM evaluations WHERE program_id = $1 ORDER BY created_at, id`

func (q *Queries) ListEvaluationsByProgram(ctx context.Context, programID string) ([]EvaluationRow, error) {
	rows, err := q.db.QueryContext(ctx, listEvaluationsByProgram, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EvaluationRow
	for rows.Next() {
		i, err := scanEvaluationRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const upsertScenario = `INSERT INTO scenarios (id, mode, document, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	mode = EXCLUDED.mode, document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`

func (q *Queries) UpsertScenario(ctx context.Context, arg ScenarioRow) error {
	_, err := q.db.ExecContext(ctx, upsertScenario, arg.ID, arg.Mode, arg.Document, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const getScenario = `SELECT id, mode, document, created_at, updated_at FROM scenarios WHERE id = $1`

func (q *Queries) GetScenario(ctx context.Context, id string) (ScenarioRow, error) {
	var i ScenarioRow
	err := q.db.QueryRowContext(ctx, getScenario, id).Scan(&i.ID, &i.Mode, &i.Document, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listScenarioIDs = `SELECT id FROM scenarios ORDER BY id`

func (q *Queries) ListScenarioIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listScenarioIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProgramRow(row rowScanner) (ProgramRow, error) {
	var i ProgramRow
	err := row.Scan(
		&i.ID, &i.LearnerID, &i.ScenarioID, &i.Mode, &i.Status, &i.Language,
		&i.CurrentTaskIndex, &i.CompletedTaskCount, &i.TotalTaskCount, &i.TotalScore,
		&i.DomainScores, &i.XpEarned, pq.Array(&i.Badges), &i.TimeSpentSeconds, &i.Extension,
		&i.CreatedAt, &i.StartedAt, &i.CompletedAt, &i.LastActivityAt, &i.Version,
	)
	return i, err
}

func scanTaskRow(row rowScanner) (TaskRow, error) {
	var i TaskRow
	err := row.Scan(
		&i.ID, &i.ProgramID, &i.TaskIndex, &i.Type, &i.Title, &i.Status, &i.Content,
		&i.Interactions, pq.Array(&i.KsaCodes), &i.Score, &i.MaxScore, &i.AttemptCount,
		&i.AllowedAttempts, &i.TimeSpentSeconds, &i.Extension, &i.CreatedAt, &i.StartedAt,
		&i.CompletedAt, &i.UpdatedAt, &i.Version,
	)
	return i, err
}

func scanEvaluationRow(row rowScanner) (EvaluationRow, error) {
	var i EvaluationRow
	err := row.Scan(
		&i.ID, &i.ProgramID, &i.TaskID, &i.LearnerID, &i.Mode, &i.Type, &i.Score,
		&i.MaxScore, &i.DomainScores, &i.FeedbackText, &i.FeedbackData, &i.Metadata, &i.CreatedAt,
	)
	return i, err
}
