// Package lifecycle implements the per-mode program lifecycle: starting a
// program, accepting responses, reporting progress, and completing or
// abandoning it.
package lifecycle

import (
	"context"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/progress"
)

// Manager is the uniform lifecycle contract implemented once per mode.
type Manager interface {
	Mode() domain.Mode
	StartLearning(ctx context.Context, req StartRequest) (*domain.Program, error)
	GetProgress(ctx context.Context, programID string) (*progress.LearningProgress, error)
	SubmitResponse(ctx context.Context, programID, taskID string, resp domain.Response) (*SubmitResult, error)
	CompleteLearning(ctx context.Context, programID string) (*CompletionResult, error)
	// GetNextTask returns the task the learner should work on, or nil when
	// none remains.
	GetNextTask(ctx context.Context, programID string) (*domain.Task, error)
	AbandonLearning(ctx context.Context, programID string) (*domain.Program, error)
}

// StartRequest identifies who starts which scenario.
type StartRequest struct {
	LearnerID  string `json:"learner_id"`
	ScenarioID string `json:"scenario_id"`
	Language   string `json:"language,omitempty"`
}

// SubmitResult reports the outcome of one response.
type SubmitResult struct {
	Success           bool         `json:"success"`
	TaskCompleted     bool         `json:"task_completed"`
	Score             float64      `json:"score"`
	Correct           *bool        `json:"correct,omitempty"`
	Feedback          string       `json:"feedback,omitempty"`
	NextTaskAvailable bool         `json:"next_task_available"`
	SideEffects       SideEffects  `json:"side_effects"`
	Task              *domain.Task `json:"task"`
}

// SideEffects lists program changes triggered by a response.
type SideEffects struct {
	XPAwarded        int      `json:"xp_awarded,omitempty"`
	Level            int      `json:"level,omitempty"`
	LeveledUp        bool     `json:"leveled_up,omitempty"`
	UnlockedSkills   []string `json:"unlocked_skills,omitempty"`
	Achievements     []string `json:"achievements,omitempty"`
	GeneratedTaskIDs []string `json:"generated_task_ids,omitempty"`
	ActivatedTaskID  string   `json:"activated_task_id,omitempty"`
}

// CompletionResult is returned by CompleteLearning.
type CompletionResult struct {
	Program         *domain.Program      `json:"program"`
	Evaluation      *domain.Evaluation   `json:"evaluation"`
	TaskEvaluations []*domain.Evaluation `json:"task_evaluations"`
	Feedback        string               `json:"feedback"`
	Passed          *bool                `json:"passed,omitempty"`
}
