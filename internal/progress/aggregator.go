// Package progress computes read-only progress snapshots for programs.
package progress

import (
	"math"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// Default per-task time estimates.
const (
	DefaultProjectTaskMinutes   = 30
	DefaultDiscoveryTaskMinutes = 20
)

// LearningProgress is a point-in-time view of a Program.
type LearningProgress struct {
	ProgramID        string      `json:"program_id"`
	ScenarioID       string      `json:"scenario_id"`
	Mode             domain.Mode `json:"mode"`
	Status           string      `json:"status"`
	CompletedTasks   int         `json:"completed_tasks"`
	TotalTasks       int         `json:"total_tasks"`
	CurrentTaskIndex int         `json:"current_task_index"`
	CurrentTaskID    string      `json:"current_task_id,omitempty"`
	ElapsedSeconds   int         `json:"elapsed_seconds"`
	RemainingSeconds int         `json:"remaining_seconds"`

	Assessment *AssessmentProgress `json:"assessment,omitempty"`
	Project    *ProjectProgress    `json:"project,omitempty"`
	Discovery  *DiscoveryProgress  `json:"discovery,omitempty"`
}

// AssessmentProgress reports answered questions and the running score.
type AssessmentProgress struct {
	AnsweredQuestions int     `json:"answered_questions"`
	TotalQuestions    int     `json:"total_questions"`
	CurrentScore      float64 `json:"current_score"`
	TimeLimitSeconds  int     `json:"time_limit_seconds"`
}

// ProjectProgress reports competency coverage.
type ProjectProgress struct {
	CurrentPhase string         `json:"current_phase,omitempty"`
	KSACompleted map[string]int `json:"ksa_completed"`
	KSATotal     map[string]int `json:"ksa_total"`
}

// DiscoveryProgress reports experience progression.
type DiscoveryProgress struct {
	Level          int      `json:"level"`
	TotalXP        int      `json:"total_xp"`
	NextLevelXP    int      `json:"next_level_xp"`
	Achievements   []string `json:"achievements"`
	UnlockedSkills []string `json:"unlocked_skills"`
}

// Aggregator computes LearningProgress snapshots.
type Aggregator struct {
	now                  func() time.Time
	projectTaskMinutes   int
	discoveryTaskMinutes int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the time source for remaining-time calculations.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithTaskMinutes overrides the per-task estimates for project and discovery.
func WithTaskMinutes(project, discovery int) Option {
	return func(a *Aggregator) {
		if project > 0 {
			a.projectTaskMinutes = project
		}
		if discovery > 0 {
			a.discoveryTaskMinutes = discovery
		}
	}
}

// NewAggregator creates an Aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		now:                  time.Now,
		projectTaskMinutes:   DefaultProjectTaskMinutes,
		discoveryTaskMinutes: DefaultDiscoveryTaskMinutes,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute builds the snapshot for program from its tasks. scenario supplies
// the assessment time limit and may be nil for other modes.
func (a *Aggregator) Compute(program *domain.Program, tasks []*domain.Task, scenario *domain.Scenario) *LearningProgress {
	lp := &LearningProgress{
		ProgramID:        program.ID,
		ScenarioID:       program.ScenarioID,
		Mode:             program.Mode,
		Status:           program.Status.External(),
		TotalTasks:       len(tasks),
		CurrentTaskIndex: program.CurrentTaskIndex,
	}

	for _, t := range tasks {
		lp.ElapsedSeconds += t.TimeSpentSeconds
		switch t.Status {
		case domain.TaskCompleted:
			lp.CompletedTasks++
		case domain.TaskActive:
			if lp.CurrentTaskID == "" {
				lp.CurrentTaskID = t.ID
			}
		}
	}

	switch program.Mode {
	case domain.ModeAssessment:
		lp.Assessment, lp.RemainingSeconds = a.assessment(program, tasks, scenario)
	case domain.ModePBL:
		lp.Project = a.project(tasks)
		lp.RemainingSeconds = a.projectTaskMinutes * 60 * (lp.TotalTasks - lp.CompletedTasks)
	case domain.ModeDiscovery:
		lp.Discovery = discovery(program)
		open := 0
		for _, t := range tasks {
			if t.Status == domain.TaskPending || t.Status == domain.TaskActive {
				open++
			}
		}
		lp.RemainingSeconds = a.discoveryTaskMinutes * 60 * open
	}
	return lp
}

func (a *Aggregator) assessment(program *domain.Program, tasks []*domain.Task, scenario *domain.Scenario) (*AssessmentProgress, int) {
	ap := &AssessmentProgress{}
	for _, t := range tasks {
		answered, correct := tally(t)
		ap.AnsweredQuestions += answered
		ap.TotalQuestions += len(t.Content.QuestionIDs)
		ap.CurrentScore += float64(correct)
	}
	if ap.TotalQuestions > 0 {
		ap.CurrentScore = math.Round(ap.CurrentScore / float64(ap.TotalQuestions) * 100)
	} else {
		ap.CurrentScore = 0
	}

	if scenario == nil || scenario.Assessment == nil {
		return ap, 0
	}
	ap.TimeLimitSeconds = scenario.Assessment.TimeLimitMinutes * 60

	started := program.CreatedAt
	if state := program.Extension.Assessment; state != nil && !state.TimeStartedAt.IsZero() {
		started = state.TimeStartedAt
	}
	elapsed := int(a.now().Sub(started).Seconds())
	remaining := ap.TimeLimitSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return ap, remaining
}

// tally counts distinct answered questions and how many of them are correct,
// using the latest answer per question.
func tally(t *domain.Task) (answered, correct int) {
	latest := map[string]bool{}
	pos := 0
	for _, in := range t.Interactions {
		if in.Type != domain.InteractionUserInput || in.Correct == nil {
			continue
		}
		key := in.QuestionID()
		if key == "" && pos < len(t.Content.QuestionIDs) {
			key = t.Content.QuestionIDs[pos]
		}
		pos++
		latest[key] = *in.Correct
	}
	for _, ok := range latest {
		if ok {
			correct++
		}
	}
	return len(latest), correct
}

func (a *Aggregator) project(tasks []*domain.Task) *ProjectProgress {
	pp := &ProjectProgress{
		KSACompleted: map[string]int{},
		KSATotal:     map[string]int{},
	}
	for _, t := range tasks {
		for _, code := range t.Content.KSACodes {
			pp.KSATotal[code]++
			if t.Status == domain.TaskCompleted {
				pp.KSACompleted[code]++
			}
		}
		if t.Status == domain.TaskActive && pp.CurrentPhase == "" {
			pp.CurrentPhase = t.Extension.Phase
		}
	}
	return pp
}

func discovery(program *domain.Program) *DiscoveryProgress {
	dp := &DiscoveryProgress{Level: 1, Achievements: []string{}, UnlockedSkills: []string{}}
	if state := program.Extension.Discovery; state != nil {
		if state.Level > 0 {
			dp.Level = state.Level
		}
		dp.TotalXP = state.TotalXP
		dp.Achievements = append(dp.Achievements, state.Achievements...)
		dp.UnlockedSkills = append(dp.UnlockedSkills, state.UnlockedSkills...)
	}
	dp.NextLevelXP = dp.Level * 100
	return dp
}
