package domain

import (
	"time"

	"github.com/google/uuid"
)

// Program is one learner's attempt at a Scenario.
type Program struct {
	ID         string        `json:"id"`
	LearnerID  string        `json:"learner_id"`
	ScenarioID string        `json:"scenario_id"`
	Mode       Mode          `json:"mode"`
	Status     ProgramStatus `json:"status"`
	Language   string        `json:"language"`

	CurrentTaskIndex   int                `json:"current_task_index"`
	CompletedTaskCount int                `json:"completed_task_count"`
	TotalTaskCount     int                `json:"total_task_count"`
	TotalScore         float64            `json:"total_score"`
	DomainScores       map[string]float64 `json:"domain_scores,omitempty"`
	XPEarned           int                `json:"xp_earned"`
	Badges             []string           `json:"badges,omitempty"`
	TimeSpentSeconds   int                `json:"time_spent_seconds"`

	Extension ProgramExtension `json:"extension"`

	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastActivityAt time.Time  `json:"last_activity_at"`

	// Version guards concurrent writers. Repositories reject an Update whose
	// Version does not match the stored row and bump it on success.
	Version int `json:"version"`
}

// ProgramExtension carries mode-specific program state.
type ProgramExtension struct {
	Assessment *AssessmentState `json:"assessment,omitempty"`
	Discovery  *DiscoveryState  `json:"discovery,omitempty"`
}

// AssessmentState tracks the questions drawn for an assessment attempt.
type AssessmentState struct {
	SelectedQuestionIDs []string  `json:"selected_question_ids"`
	TimeStartedAt       time.Time `json:"time_started_at"`
	Language            string    `json:"language"`
}

// DiscoveryState tracks experience progression.
type DiscoveryState struct {
	Level               int      `json:"level"`
	TotalXP             int      `json:"total_xp"`
	UnlockedSkills      []string `json:"unlocked_skills,omitempty"`
	Achievements        []string `json:"achievements,omitempty"`
	CompletedChallenges []string `json:"completed_challenges,omitempty"`
}

// HasAchievement reports whether name was already earned.
func (s *DiscoveryState) HasAchievement(name string) bool {
	for _, a := range s.Achievements {
		if a == name {
			return true
		}
	}
	return false
}

// NewProgram creates a pending Program for learnerID on scenario.
func NewProgram(learnerID string, scenario *Scenario, language string, now time.Time) *Program {
	return &Program{
		ID:             uuid.NewString(),
		LearnerID:      learnerID,
		ScenarioID:     scenario.ID,
		Mode:           scenario.Mode,
		Status:         ProgramPending,
		Language:       language,
		DomainScores:   map[string]float64{},
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Activate moves a pending program to active.
func (p *Program) Activate(now time.Time) error {
	if p.Status != ProgramPending {
		return ErrInvalidTransition
	}
	p.Status = ProgramActive
	p.StartedAt = &now
	p.LastActivityAt = now
	return nil
}

// Complete moves an active program to completed.
func (p *Program) Complete(now time.Time) error {
	if p.Status != ProgramActive {
		return ErrProgramNotActive
	}
	p.Status = ProgramCompleted
	p.CompletedAt = &now
	p.LastActivityAt = now
	return nil
}

// Abandon moves an active program to abandoned.
func (p *Program) Abandon(now time.Time) error {
	if p.Status != ProgramActive {
		return ErrProgramNotActive
	}
	p.Status = ProgramAbandoned
	p.LastActivityAt = now
	return nil
}

// IsActive reports whether the program accepts submissions.
func (p *Program) IsActive() bool {
	return p.Status == ProgramActive
}

// Touch records learner activity.
func (p *Program) Touch(now time.Time, spentSeconds int) {
	p.LastActivityAt = now
	if spentSeconds > 0 {
		p.TimeSpentSeconds += spentSeconds
	}
}
