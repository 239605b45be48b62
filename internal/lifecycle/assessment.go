package lifecycle

import (
	"context"
	"fmt"
	"math"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/progress"
)

// AssessmentManager runs timed multiple-choice assessments. Each response
// answers one question; the program only completes on CompleteLearning.
type AssessmentManager struct {
	*engine
}

// NewAssessmentManager creates the assessment lifecycle.
func NewAssessmentManager(deps Deps) *AssessmentManager {
	return &AssessmentManager{engine: newEngine(domain.ModeAssessment, deps)}
}

func (m *AssessmentManager) Mode() domain.Mode { return domain.ModeAssessment }

func (m *AssessmentManager) StartLearning(ctx context.Context, req StartRequest) (*domain.Program, error) {
	return m.start(ctx, req, func(p *domain.Program, s *domain.Scenario, tasks []*domain.Task) {
		state := &domain.AssessmentState{TimeStartedAt: p.CreatedAt, Language: p.Language}
		if len(tasks) > 0 {
			state.SelectedQuestionIDs = append([]string(nil), tasks[0].Content.QuestionIDs...)
			state.Language = tasks[0].Content.Language
		}
		p.Extension.Assessment = state
	})
}

func (m *AssessmentManager) GetProgress(ctx context.Context, programID string) (*progress.LearningProgress, error) {
	return m.progress(ctx, programID)
}

func (m *AssessmentManager) GetNextTask(ctx context.Context, programID string) (*domain.Task, error) {
	return m.nextTask(ctx, programID)
}

func (m *AssessmentManager) AbandonLearning(ctx context.Context, programID string) (*domain.Program, error) {
	return m.abandon(ctx, programID)
}

// SubmitResponse records one answered question. Correctness is an exact
// match against the stored answer.
func (m *AssessmentManager) SubmitResponse(ctx context.Context, programID, taskID string, resp domain.Response) (*SubmitResult, error) {
	return m.submit(ctx, programID, taskID, resp, func(ctx context.Context, s *submission) error {
		if resp.QuestionID == "" {
			return fmt.Errorf("%w: question id is required", domain.ErrInvalidInput)
		}
		q, ok := s.task.Content.Question(resp.QuestionID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, resp.QuestionID)
		}

		correct := resp.Answer == q.CorrectAnswer
		s.task.Append(domain.Interaction{
			Timestamp: s.now,
			Type:      domain.InteractionUserInput,
			Content:   resp.Payload(),
			Correct:   &correct,
			Metadata:  map[string]any{"question_id": q.ID, "domain": q.Domain},
		})

		answered, right := answeredQuestions(s.task)
		total := len(s.task.Content.QuestionIDs)
		s.result.Correct = &correct
		s.result.Feedback = q.Explanation
		s.result.NextTaskAvailable = answered < total
		if total > 0 {
			s.result.Score = math.Round(float64(right) / float64(total) * 100)
		}
		return nil
	})
}

// CompleteLearning scores the attempt and reports whether it passed.
func (m *AssessmentManager) CompleteLearning(ctx context.Context, programID string) (*CompletionResult, error) {
	return m.complete(ctx, programID, func(ctx context.Context, uow domain.UnitOfWork, p *domain.Program, tasks []*domain.Task, ev *domain.Evaluation) (*bool, error) {
		s, err := m.Scenarios.FindByID(ctx, p.ScenarioID)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
		passed := ev.Score >= float64(s.Assessment.Passing())

		now := m.Clock()
		for _, t := range tasks {
			if t.Status == domain.TaskCompleted {
				continue
			}
			t.Complete(ev.Score, now)
			if err := uow.Tasks().Update(ctx, t); err != nil {
				return nil, fmt.Errorf("complete task: %w", err)
			}
			p.CompletedTaskCount++
		}
		return &passed, nil
	})
}

// answeredQuestions counts distinct questions answered and how many of those
// were answered correctly last.
func answeredQuestions(t *domain.Task) (answered, correct int) {
	latest := map[string]bool{}
	for _, in := range t.Interactions {
		if in.Type != domain.InteractionUserInput || in.Correct == nil {
			continue
		}
		latest[in.QuestionID()] = *in.Correct
	}
	for _, ok := range latest {
		if ok {
			correct++
		}
	}
	return len(latest), correct
}
