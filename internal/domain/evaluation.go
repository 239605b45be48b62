package domain

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation is an immutable judgment of a Task or a Program.
type Evaluation struct {
	ID           string             `json:"id"`
	ProgramID    string             `json:"program_id"`
	TaskID       string             `json:"task_id,omitempty"`
	LearnerID    string             `json:"learner_id"`
	Mode         Mode               `json:"mode"`
	Type         EvaluationType     `json:"type"`
	Score        float64            `json:"score"`
	MaxScore     float64            `json:"max_score"`
	DomainScores map[string]float64 `json:"domain_scores"`
	FeedbackText string             `json:"feedback_text"`
	FeedbackData FeedbackData       `json:"feedback_data"`
	Metadata     EvaluationMetadata `json:"metadata"`
	CreatedAt    time.Time          `json:"created_at"`
}

// FeedbackData summarizes the task snapshot a program evaluation was built from.
type FeedbackData struct {
	CompletedTasks   int    `json:"completed_tasks"`
	TotalTasks       int    `json:"total_tasks"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	Tier             string `json:"tier,omitempty"`
}

// EvaluationMetadata records the inputs a score was computed from.
type EvaluationMetadata struct {
	InteractionCount int      `json:"interaction_count"`
	UserInputCount   int      `json:"user_input_count"`
	CorrectAnswers   int      `json:"correct_answers,omitempty"`
	TotalQuestions   int      `json:"total_questions,omitempty"`
	KSACodes         []string `json:"ksa_codes,omitempty"`
	XPEarned         int      `json:"xp_earned,omitempty"`
	SkillsImproved   []string `json:"skills_improved,omitempty"`
	TaskCount        int      `json:"task_count,omitempty"`
	Language         string   `json:"language,omitempty"`
}

// NewEvaluation allocates an evaluation with identity and timestamp set.
func NewEvaluation(mode Mode, typ EvaluationType, now time.Time) *Evaluation {
	return &Evaluation{
		ID:           uuid.NewString(),
		Mode:         mode,
		Type:         typ,
		MaxScore:     100,
		DomainScores: map[string]float64{},
		CreatedAt:    now,
	}
}
