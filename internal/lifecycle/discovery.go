package lifecycle

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/progress"
)

// generationWindow is the task index below which a completion appends the
// next skill task.
const generationWindow = 3

// DiscoveryManager runs the gamified skill-tree exploration. Completing
// tasks awards XP, raises the level and grows the task list.
type DiscoveryManager struct {
	*engine
	completion CompletionPredicate
}

// DiscoveryOption configures a DiscoveryManager.
type DiscoveryOption func(*DiscoveryManager)

// WithDiscoveryCompletion replaces the completion predicate.
func WithDiscoveryCompletion(p CompletionPredicate) DiscoveryOption {
	return func(m *DiscoveryManager) { m.completion = p }
}

// NewDiscoveryManager creates the discovery lifecycle.
func NewDiscoveryManager(deps Deps, opts ...DiscoveryOption) *DiscoveryManager {
	m := &DiscoveryManager{
		engine:     newEngine(domain.ModeDiscovery, deps),
		completion: DefaultDiscoveryCompletion(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *DiscoveryManager) Mode() domain.Mode { return domain.ModeDiscovery }

func (m *DiscoveryManager) StartLearning(ctx context.Context, req StartRequest) (*domain.Program, error) {
	return m.start(ctx, req, func(p *domain.Program, s *domain.Scenario, tasks []*domain.Task) {
		p.Extension.Discovery = &domain.DiscoveryState{Level: 1}
	})
}

func (m *DiscoveryManager) GetProgress(ctx context.Context, programID string) (*progress.LearningProgress, error) {
	return m.progress(ctx, programID)
}

func (m *DiscoveryManager) GetNextTask(ctx context.Context, programID string) (*domain.Task, error) {
	return m.nextTask(ctx, programID)
}

func (m *DiscoveryManager) AbandonLearning(ctx context.Context, programID string) (*domain.Program, error) {
	return m.abandon(ctx, programID)
}

// SubmitResponse appends the learner turn and a reply, then on completion
// awards XP, levels up, unlocks skills and generates the next skill task.
func (m *DiscoveryManager) SubmitResponse(ctx context.Context, programID, taskID string, resp domain.Response) (*SubmitResult, error) {
	return m.submit(ctx, programID, taskID, resp, func(ctx context.Context, s *submission) error {
		prior := len(s.task.Interactions)
		s.task.Append(domain.Interaction{
			Timestamp: s.now,
			Type:      domain.InteractionUserInput,
			Content:   resp.Payload(),
		})

		done := m.completion.Complete(CompletionInput{Task: s.task, Response: resp, PriorInteractions: prior})
		xp := s.task.Extension.XPReward
		reply := discoveryMessage(s.program.Language, done, xp)
		s.task.Append(domain.Interaction{
			Timestamp: s.now,
			Type:      domain.InteractionAIResponse,
			Content:   map[string]any{"message": reply},
		})
		s.result.Feedback = reply

		if !done {
			s.result.NextTaskAvailable = domain.NextPendingTask(s.tasks) != nil
			return nil
		}
		return m.completeTask(ctx, s, xp)
	})
}

func (m *DiscoveryManager) completeTask(ctx context.Context, s *submission, xp int) error {
	p, task := s.program, s.task
	state := p.Extension.Discovery
	if state == nil {
		state = &domain.DiscoveryState{Level: 1}
		p.Extension.Discovery = state
	}

	task.Complete(100, s.now)
	p.CompletedTaskCount++
	s.result.TaskCompleted = true
	s.result.Score = task.Score

	oldLevel := state.Level
	if oldLevel < 1 {
		oldLevel = 1
	}
	state.TotalXP += xp
	p.XPEarned += xp
	challenge := task.Content.SkillID
	if challenge == "" {
		challenge = task.Type
	}
	state.CompletedChallenges, _ = appendMissing(state.CompletedChallenges, challenge)
	s.result.SideEffects.XPAwarded = xp

	newLevel := LevelForXP(state.TotalXP)
	state.Level = newLevel
	s.result.SideEffects.Level = newLevel
	if newLevel > oldLevel {
		var earned, unlocked []string
		state.Achievements, earned = appendMissing(state.Achievements, LevelAchievement(newLevel))
		state.UnlockedSkills, unlocked = appendMissing(state.UnlockedSkills, SkillUnlocks(newLevel)...)
		s.result.SideEffects.LeveledUp = true
		s.result.SideEffects.Achievements = append(s.result.SideEffects.Achievements, earned...)
		s.result.SideEffects.UnlockedSkills = unlocked
		s.events = append(s.events, domain.NewLevelReachedEvent(p, oldLevel, newLevel, unlocked, s.now))
	}

	if task.Type == domain.TaskTypeCreation && task.Extension.Difficulty == domain.DifficultyAdvanced {
		var earned []string
		state.Achievements, earned = appendMissing(state.Achievements, AdvancedChallengeMaster)
		s.result.SideEffects.Achievements = append(s.result.SideEffects.Achievements, earned...)
	}
	p.Badges = append([]string(nil), state.Achievements...)

	if task.Index < generationWindow {
		scenario, err := m.Scenarios.FindByID(ctx, p.ScenarioID)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		if next := m.Generator.NextSkillTask(p, scenario, s.tasks, state.Level); next != nil {
			s.tasks = append(s.tasks, next)
			s.created = append(s.created, next)
			p.TotalTaskCount++
			s.result.SideEffects.GeneratedTaskIDs = append(s.result.SideEffects.GeneratedTaskIDs, next.ID)
		}
	}

	if next := s.activateNext(); next != nil {
		s.result.NextTaskAvailable = true
	}
	s.events = append(s.events, domain.NewTaskCompletedEvent(p, task, xp, s.now))
	return nil
}

func (m *DiscoveryManager) CompleteLearning(ctx context.Context, programID string) (*CompletionResult, error) {
	return m.complete(ctx, programID, nil)
}
