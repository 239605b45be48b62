// Package taskgen builds the initial task set for a Program and synthesizes
// follow-on discovery tasks from a scenario's skill tree.
package taskgen

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// Rewards and thresholds for discovery tasks.
const (
	WelcomeXP        = 50
	SkillXP          = 100
	AdvancedSkillXP  = 150
	InitialSkills    = 3
	AdvancedMinLevel = 3
)

// Generator creates Tasks from scenario templates.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the random source used for question sampling.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock sets the time source used for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// InitialTasks builds the tasks created when program starts. All returned
// tasks are pending; the caller decides which one becomes active.
func (g *Generator) InitialTasks(program *domain.Program, scenario *domain.Scenario, language string) ([]*domain.Task, error) {
	if err := scenario.CheckModeData(); err != nil {
		return nil, err
	}
	switch scenario.Mode {
	case domain.ModeAssessment:
		task, err := g.assessmentTask(program, scenario, language)
		if err != nil {
			return nil, err
		}
		return []*domain.Task{task}, nil
	case domain.ModePBL:
		return g.projectTasks(program, scenario, language), nil
	case domain.ModeDiscovery:
		return g.discoveryTasks(program, scenario, language), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMode, scenario.Mode)
}

// SelectQuestions draws the assessment question set for language. The bank
// for language is used when present, otherwise the scenario's default bank.
// Questions are sampled uniformly without domain balancing.
func (g *Generator) SelectQuestions(cfg *domain.AssessmentConfig, language string) ([]domain.Question, string, error) {
	bankLang := language
	bank := cfg.QuestionBanks[language]
	if len(bank) == 0 {
		bankLang = cfg.BankLanguage()
		bank = cfg.QuestionBanks[bankLang]
	}
	if len(bank) == 0 {
		return nil, "", fmt.Errorf("%w: no questions for %q or %q", domain.ErrScenarioDataMissing, language, cfg.BankLanguage())
	}

	count := cfg.QuestionCount
	if count <= 0 || count > len(bank) {
		count = len(bank)
	}

	g.mu.Lock()
	order := g.rng.Perm(len(bank))
	g.mu.Unlock()

	selected := make([]domain.Question, 0, count)
	for _, i := range order[:count] {
		selected = append(selected, bank[i])
	}
	return selected, bankLang, nil
}

func (g *Generator) assessmentTask(program *domain.Program, scenario *domain.Scenario, language string) (*domain.Task, error) {
	questions, bankLang, err := g.SelectQuestions(scenario.Assessment, language)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	task := domain.NewTask(program.ID, 0, domain.TaskTypeQuestion, g.now())
	task.Title = scenario.Title.Normalize(bankLang)
	task.AllowedAttempts = 1
	task.Content = domain.TaskContent{
		Language:     bankLang,
		Instructions: domain.LocalizedText{bankLang: message(bankLang, msgAssessmentInstructions, len(questions))},
		QuestionIDs:  ids,
		Questions:    questions,
	}
	return task, nil
}

func (g *Generator) projectTasks(program *domain.Program, scenario *domain.Scenario, language string) []*domain.Task {
	now := g.now()
	tasks := make([]*domain.Task, 0, len(scenario.TaskTemplates))
	for i, tmpl := range scenario.TaskTemplates {
		taskType := tmpl.Type
		if taskType == "" {
			taskType = "project"
		}
		task := domain.NewTask(program.ID, i, taskType, now)
		task.Title = tmpl.Title.Normalize(language)
		description := tmpl.Description.Normalize(language)
		task.Content = domain.TaskContent{
			Language:     language,
			TemplateID:   tmpl.ID,
			Instructions: description,
			Description:  description,
			KSACodes:     append([]string(nil), tmpl.KSACodes...),
		}
		task.Extension.Phase = PhaseFor(i)
		tasks = append(tasks, task)
	}
	return tasks
}

// PhaseFor returns the project phase for the template at index.
func PhaseFor(index int) string {
	switch index {
	case 0:
		return domain.PhaseUnderstanding
	case 1:
		return domain.PhaseExploring
	default:
		return domain.PhaseCreating
	}
}

func (g *Generator) discoveryTasks(program *domain.Program, scenario *domain.Scenario, language string) []*domain.Task {
	now := g.now()
	cfg := scenario.Discovery

	welcome := domain.NewTask(program.ID, 0, domain.TaskTypeWelcome, now)
	welcome.Title = domain.LocalizedText{language: message(language, msgWelcomeTitle)}
	world := cfg.WorldSetting.Normalize(language).Get(language)
	welcome.Content.Language = language
	welcome.Content.Instructions = domain.LocalizedText{language: strings.TrimSpace(message(language, msgWelcomeInstructions, world))}
	welcome.Extension = domain.TaskExtension{XPReward: WelcomeXP, Difficulty: domain.DifficultyBeginner}

	tasks := []*domain.Task{welcome}
	for _, skill := range cfg.SkillTree.CoreSkills {
		if len(tasks) > InitialSkills {
			break
		}
		if !cfg.SkillTree.Unlocked(skill, nil) {
			continue
		}
		tasks = append(tasks, skillTask(program.ID, len(tasks), skill, false, language, now))
	}
	return tasks
}

// NextSkillTask returns the next discovery task for the first unlocked skill
// that has neither a task nor a completed challenge, or nil when the tree is
// exhausted. Advanced skills are only offered once level reaches
// AdvancedMinLevel.
func (g *Generator) NextSkillTask(program *domain.Program, scenario *domain.Scenario, existing []*domain.Task, level int) *domain.Task {
	if scenario.Discovery == nil {
		return nil
	}

	used := make(map[string]bool)
	done := make(map[string]bool)
	nextIndex := 0
	for _, t := range existing {
		if t.Content.SkillID != "" {
			used[t.Content.SkillID] = true
			if t.Status == domain.TaskCompleted {
				done[t.Content.SkillID] = true
			}
		}
		if t.Index >= nextIndex {
			nextIndex = t.Index + 1
		}
	}
	if state := program.Extension.Discovery; state != nil {
		for _, id := range state.CompletedChallenges {
			used[id] = true
			done[id] = true
		}
	}

	tree := scenario.Discovery.SkillTree
	language := program.Language
	for _, skill := range tree.CoreSkills {
		if !used[skill.ID] && tree.Unlocked(skill, done) {
			return skillTask(program.ID, nextIndex, skill, false, language, g.now())
		}
	}
	if level < AdvancedMinLevel {
		return nil
	}
	for _, skill := range tree.AdvancedSkills {
		if !used[skill.ID] && tree.Unlocked(skill, done) {
			return skillTask(program.ID, nextIndex, skill, true, language, g.now())
		}
	}
	return nil
}

func skillTask(programID string, index int, skill domain.Skill, advanced bool, language string, now time.Time) *domain.Task {
	taskType, difficulty, xp := domain.TaskTypeChallenge, domain.DifficultyBeginner, SkillXP
	if advanced {
		taskType, difficulty, xp = domain.TaskTypeCreation, domain.DifficultyAdvanced, AdvancedSkillXP
	}

	task := domain.NewTask(programID, index, taskType, now)
	task.Title = domain.LocalizedText{language: skill.Name}
	task.Content = domain.TaskContent{
		Language:     language,
		SkillID:      skill.ID,
		Instructions: domain.LocalizedText{language: message(language, msgSkillInstructions, skill.Name)},
		Description:  domain.LocalizedText{language: skill.Description},
	}
	task.Extension = domain.TaskExtension{
		XPReward:   xp,
		Skills:     []string{skill.ID},
		Difficulty: difficulty,
	}
	return task
}
