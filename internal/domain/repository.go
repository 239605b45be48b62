package domain

import "context"

// ScenarioRepository reads authored scenarios.
type ScenarioRepository interface {
	FindByID(ctx context.Context, id string) (*Scenario, error)
}

// ScenarioWriter stores authored scenarios. Used by import tooling only.
type ScenarioWriter interface {
	Save(ctx context.Context, s *Scenario) error
}

// ProgramRepository persists Programs.
type ProgramRepository interface {
	Create(ctx context.Context, p *Program) error
	FindByID(ctx context.Context, id string) (*Program, error)
	FindByLearner(ctx context.Context, learnerID string) ([]*Program, error)
	Update(ctx context.Context, p *Program) error
	UpdateProgress(ctx context.Context, id string, currentTaskIndex int) error
	Complete(ctx context.Context, id string) (*Program, error)
}

// TaskRepository persists Tasks.
type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	FindByID(ctx context.Context, id string) (*Task, error)
	// FindByProgram returns the program's tasks ordered by index.
	FindByProgram(ctx context.Context, programID string) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	UpdateInteractions(ctx context.Context, id string, interactions []Interaction) error
	UpdateStatus(ctx context.Context, id string, status TaskStatus) error
}

// EvaluationRepository persists Evaluations. Evaluations are append-only.
type EvaluationRepository interface {
	Create(ctx context.Context, e *Evaluation) error
	FindByID(ctx context.Context, id string) (*Evaluation, error)
	FindByProgram(ctx context.Context, programID string) ([]*Evaluation, error)
}

// UnitOfWork scopes a set of repository operations to one transaction.
// The root value is not transactional; call Begin to obtain one that is.
type UnitOfWork interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Commit() error
	Rollback() error

	Programs() ProgramRepository
	Tasks() TaskRepository
	Evaluations() EvaluationRepository
}
