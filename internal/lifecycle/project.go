package lifecycle

import (
	"context"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/progress"
)

// ProjectScore is the fixed score of a completed project task.
const ProjectScore = 100

// ProjectManager runs open-ended multi-task projects. Tasks are worked in
// order; finishing one activates the next.
type ProjectManager struct {
	*engine
	completion CompletionPredicate
}

// ProjectOption configures a ProjectManager.
type ProjectOption func(*ProjectManager)

// WithProjectCompletion replaces the completion predicate.
func WithProjectCompletion(p CompletionPredicate) ProjectOption {
	return func(m *ProjectManager) { m.completion = p }
}

// NewProjectManager creates the project lifecycle.
func NewProjectManager(deps Deps, opts ...ProjectOption) *ProjectManager {
	m := &ProjectManager{
		engine:     newEngine(domain.ModePBL, deps),
		completion: DefaultProjectCompletion(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ProjectManager) Mode() domain.Mode { return domain.ModePBL }

func (m *ProjectManager) StartLearning(ctx context.Context, req StartRequest) (*domain.Program, error) {
	return m.start(ctx, req, nil)
}

func (m *ProjectManager) GetProgress(ctx context.Context, programID string) (*progress.LearningProgress, error) {
	return m.progress(ctx, programID)
}

func (m *ProjectManager) GetNextTask(ctx context.Context, programID string) (*domain.Task, error) {
	return m.nextTask(ctx, programID)
}

func (m *ProjectManager) AbandonLearning(ctx context.Context, programID string) (*domain.Program, error) {
	return m.abandon(ctx, programID)
}

// SubmitResponse appends the learner turn and a phase reply, then applies
// the completion predicate.
func (m *ProjectManager) SubmitResponse(ctx context.Context, programID, taskID string, resp domain.Response) (*SubmitResult, error) {
	return m.submit(ctx, programID, taskID, resp, func(ctx context.Context, s *submission) error {
		prior := len(s.task.Interactions)
		reply := phaseMessage(s.program.Language, s.task.Extension.Phase)

		s.task.Append(domain.Interaction{
			Timestamp: s.now,
			Type:      domain.InteractionUserInput,
			Content:   resp.Payload(),
		})
		s.task.Append(domain.Interaction{
			Timestamp: s.now,
			Type:      domain.InteractionAIResponse,
			Content:   map[string]any{"message": reply},
			Metadata:  map[string]any{"phase": s.task.Extension.Phase},
		})
		s.result.Feedback = reply

		done := m.completion.Complete(CompletionInput{Task: s.task, Response: resp, PriorInteractions: prior})
		if !done {
			s.result.NextTaskAvailable = domain.NextPendingTask(s.tasks) != nil
			return nil
		}

		s.task.Complete(ProjectScore, s.now)
		s.program.CompletedTaskCount++
		s.result.TaskCompleted = true
		s.result.Score = ProjectScore

		if next := s.activateNext(); next != nil {
			s.result.NextTaskAvailable = true
		}
		s.events = append(s.events, domain.NewTaskCompletedEvent(s.program, s.task, 0, s.now))
		return nil
	})
}

func (m *ProjectManager) CompleteLearning(ctx context.Context, programID string) (*CompletionResult, error) {
	return m.complete(ctx, programID, nil)
}
