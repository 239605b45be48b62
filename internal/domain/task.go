package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task types produced by the generator.
const (
	TaskTypeQuestion  = "question"
	TaskTypeWelcome   = "welcome"
	TaskTypeChallenge = "challenge"
	TaskTypeCreation  = "creation"
)

// Project phases.
const (
	PhaseUnderstanding = "understanding"
	PhaseExploring     = "exploring"
	PhaseCreating      = "creating"
)

// Discovery difficulties.
const (
	DifficultyBeginner = "beginner"
	DifficultyAdvanced = "advanced"
)

// Task is one unit of learner work inside a Program.
type Task struct {
	ID        string        `json:"id"`
	ProgramID string        `json:"program_id"`
	Index     int           `json:"index"`
	Type      string        `json:"type"`
	Title     LocalizedText `json:"title"`
	Status    TaskStatus    `json:"status"`
	Content   TaskContent   `json:"content"`

	Interactions []Interaction `json:"interactions"`

	Score            float64 `json:"score"`
	MaxScore         float64 `json:"max_score"`
	AttemptCount     int     `json:"attempt_count"`
	AllowedAttempts  int     `json:"allowed_attempts"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`

	Extension TaskExtension `json:"extension"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Version int `json:"version"`
}

// TaskContent is what the learner works on.
type TaskContent struct {
	Language     string        `json:"language,omitempty"`
	Instructions LocalizedText `json:"instructions,omitempty"`
	Description  LocalizedText `json:"description,omitempty"`
	TemplateID   string        `json:"template_id,omitempty"`
	QuestionIDs  []string      `json:"question_ids,omitempty"`
	Questions    []Question    `json:"questions,omitempty"`
	SkillID      string        `json:"skill_id,omitempty"`
	KSACodes     []string      `json:"ksa_codes,omitempty"`
}

// Question returns the embedded question with id.
func (c TaskContent) Question(id string) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// TaskExtension carries mode-specific task attributes.
type TaskExtension struct {
	Phase      string   `json:"phase,omitempty"`
	XPReward   int      `json:"xp_reward,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// NewTask creates a pending task for programID at index.
func NewTask(programID string, index int, taskType string, now time.Time) *Task {
	return &Task{
		ID:           uuid.NewString(),
		ProgramID:    programID,
		Index:        index,
		Type:         taskType,
		Status:       TaskPending,
		Interactions: []Interaction{},
		MaxScore:     100,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Activate marks the task as the program's current task.
func (t *Task) Activate(now time.Time) {
	t.Status = TaskActive
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.UpdatedAt = now
}

// Complete marks the task finished with score.
func (t *Task) Complete(score float64, now time.Time) {
	t.Status = TaskCompleted
	t.Score = score
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// Append adds an interaction. Interactions are never edited or removed.
func (t *Task) Append(i Interaction) {
	t.Interactions = append(t.Interactions, i)
	t.UpdatedAt = i.Timestamp
}

// CountInteractions returns how many interactions of typ were recorded.
func (t *Task) CountInteractions(typ InteractionType) int {
	n := 0
	for _, i := range t.Interactions {
		if i.Type == typ {
			n++
		}
	}
	return n
}

// Interaction is one atomic exchange appended to a Task.
type Interaction struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      InteractionType `json:"type"`
	Content   map[string]any  `json:"content"`
	Correct   *bool           `json:"correct,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// QuestionID returns the question id recorded in the interaction metadata.
func (i Interaction) QuestionID() string {
	if i.Metadata == nil {
		return ""
	}
	id, _ := i.Metadata["question_id"].(string)
	return id
}

// ActiveTask returns the first task with status active, or nil.
func ActiveTask(tasks []*Task) *Task {
	for _, t := range tasks {
		if t.Status == TaskActive {
			return t
		}
	}
	return nil
}

// NextPendingTask returns the lowest-index pending task, or nil.
func NextPendingTask(tasks []*Task) *Task {
	var next *Task
	for _, t := range tasks {
		if t.Status != TaskPending {
			continue
		}
		if next == nil || t.Index < next.Index {
			next = t
		}
	}
	return next
}
