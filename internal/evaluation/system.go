// Package evaluation turns tasks and programs into immutable Evaluation
// records and renders learner feedback.
package evaluation

import (
	"math"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// System is the mode-dispatching scorer.
type System struct {
	now func() time.Time
}

// Option configures a System.
type Option func(*System)

// WithClock sets the time source stamped onto evaluations.
func WithClock(now func() time.Time) Option {
	return func(s *System) { s.now = now }
}

// NewSystem creates an evaluation System.
func NewSystem(opts ...Option) *System {
	s := &System{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TaskContext carries what a task evaluation needs beyond the task itself.
type TaskContext struct {
	Program  *domain.Program
	Language string
}

// EvaluateTask scores one task according to the program's mode.
func (s *System) EvaluateTask(task *domain.Task, tc TaskContext) *domain.Evaluation {
	mode := tc.Program.Mode
	ev := domain.NewEvaluation(mode, domain.EvaluationTask, s.now())
	ev.ProgramID = tc.Program.ID
	ev.LearnerID = tc.Program.LearnerID
	ev.TaskID = task.ID
	ev.Metadata.InteractionCount = len(task.Interactions)
	ev.Metadata.UserInputCount = task.CountInteractions(domain.InteractionUserInput)
	ev.Metadata.Language = domain.NormalizeLanguage(tc.Language)

	switch mode {
	case domain.ModeAssessment:
		evaluateAssessmentTask(task, ev)
	case domain.ModePBL:
		evaluateProjectTask(task, ev)
	case domain.ModeDiscovery:
		evaluateDiscoveryTask(task, ev)
	default:
		if len(task.Interactions) > 0 {
			ev.Score = 100
		}
	}

	ev.FeedbackText = taskFeedback(ev.Metadata.Language, ev.Score)
	return ev
}

// ProgramContext carries the pre-completion task snapshot.
type ProgramContext struct {
	Tasks    []*domain.Task
	Language string
}

// EvaluateProgram aggregates task evaluations into one program evaluation.
// The score is the mean of the task scores and each domain score is the mean
// across the task evaluations that reported that domain.
func (s *System) EvaluateProgram(program *domain.Program, taskEvals []*domain.Evaluation, pc ProgramContext) *domain.Evaluation {
	lang := domain.NormalizeLanguage(pc.Language)
	ev := domain.NewEvaluation(program.Mode, domain.EvaluationProgram, s.now())
	ev.ProgramID = program.ID
	ev.LearnerID = program.LearnerID
	ev.Metadata.Language = lang
	ev.Metadata.TaskCount = len(taskEvals)

	var total float64
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, te := range taskEvals {
		total += te.Score
		for dim, v := range te.DomainScores {
			sums[dim] += v
			counts[dim]++
		}
		ev.Metadata.InteractionCount += te.Metadata.InteractionCount
		ev.Metadata.UserInputCount += te.Metadata.UserInputCount
		ev.Metadata.CorrectAnswers += te.Metadata.CorrectAnswers
		ev.Metadata.TotalQuestions += te.Metadata.TotalQuestions
		ev.Metadata.SkillsImproved = append(ev.Metadata.SkillsImproved, te.Metadata.SkillsImproved...)
		ev.Metadata.KSACodes = appendUnique(ev.Metadata.KSACodes, te.Metadata.KSACodes...)
	}
	if len(taskEvals) > 0 {
		ev.Score = round2(total / float64(len(taskEvals)))
	}
	for dim, sum := range sums {
		ev.DomainScores[dim] = round2(sum / float64(counts[dim]))
	}

	if state := program.Extension.Discovery; state != nil {
		ev.Metadata.XPEarned = state.TotalXP
	}

	completed, spent := 0, 0
	for _, t := range pc.Tasks {
		if t.Status == domain.TaskCompleted {
			completed++
		}
		spent += t.TimeSpentSeconds
	}
	tier := TierFor(ev.Score)
	ev.FeedbackData = domain.FeedbackData{
		CompletedTasks:   completed,
		TotalTasks:       len(pc.Tasks),
		TimeSpentSeconds: spent,
		Tier:             string(tier),
	}
	ev.FeedbackText = programFeedback(lang, tier, ev.Score, completed, len(pc.Tasks))
	return ev
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
