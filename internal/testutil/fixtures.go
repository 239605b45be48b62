// Package testutil holds scenario fixtures shared by package tests.
package testutil

import (
	"fmt"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// ScenarioOption customizes a fixture scenario.
type ScenarioOption func(*domain.Scenario)

// WithScenarioID overrides the fixture id.
func WithScenarioID(id string) ScenarioOption {
	return func(s *domain.Scenario) { s.ID = id }
}

// WithQuestionCount sets the assessment draw size.
func WithQuestionCount(n int) ScenarioOption {
	return func(s *domain.Scenario) { s.Assessment.QuestionCount = n }
}

// WithTimeLimit sets the assessment time limit in minutes.
func WithTimeLimit(minutes int) ScenarioOption {
	return func(s *domain.Scenario) { s.Assessment.TimeLimitMinutes = minutes }
}

// Questions returns n questions split evenly across the given domains. The
// correct answer for question i is always "a".
func Questions(prefix string, n int, domains ...string) []domain.Question {
	if len(domains) == 0 {
		domains = []string{"general"}
	}
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			ID:            fmt.Sprintf("%s-%02d", prefix, i+1),
			Text:          fmt.Sprintf("Question %d", i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: "a",
			Domain:        domains[i%len(domains)],
			Explanation:   "a is correct",
		}
	}
	return qs
}

// AssessmentScenario returns a scenario with a 20-question English bank and
// a 10-question Chinese bank.
func AssessmentScenario(opts ...ScenarioOption) *domain.Scenario {
	s := &domain.Scenario{
		ID:    "ai-literacy",
		Mode:  domain.ModeAssessment,
		Title: domain.Localized(map[string]string{"en": "AI Literacy", "zh": "AI 素养"}),
		Assessment: &domain.AssessmentConfig{
			TimeLimitMinutes: 15,
			PassingScore:     60,
			QuestionCount:    20,
			QuestionBanks: map[string][]domain.Question{
				"en": Questions("en", 20, "engaging", "creating"),
				"zh": Questions("zh", 10, "engaging"),
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProjectScenario returns a four-template project scenario mixing plain and
// localized text fields.
func ProjectScenario(opts ...ScenarioOption) *domain.Scenario {
	s := &domain.Scenario{
		ID:          "smart-garden",
		Mode:        domain.ModePBL,
		Title:       domain.Text("Smart Garden"),
		Description: domain.Text("Design an irrigation assistant"),
		TaskTemplates: []domain.TaskTemplate{
			{ID: "t1", Title: domain.Text("Understand the problem"), Description: domain.Text("Interview a gardener"), KSACodes: []string{"K1", "S1"}},
			{ID: "t2", Title: domain.Localized(map[string]string{"en": "Explore options", "es": "Explorar opciones"}), KSACodes: []string{"K2"}},
			{ID: "t3", Title: domain.Text("Build a prototype"), KSACodes: []string{"S2", "A1"}},
			{ID: "t4", Title: domain.Text("Present"), Type: "presentation", KSACodes: []string{"A1"}},
		},
		Project: &domain.ProjectConfig{KSAMapping: domain.KSAMapping{
			Knowledge: []string{"K1", "K2"},
			Skills:    []string{"S1", "S2"},
			Attitudes: []string{"A1"},
		}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoveryScenario returns a skill tree with five core and two advanced skills.
func DiscoveryScenario(opts ...ScenarioOption) *domain.Scenario {
	s := &domain.Scenario{
		ID:    "game-designer",
		Mode:  domain.ModeDiscovery,
		Title: domain.Text("Game Designer"),
		Discovery: &domain.DiscoveryConfig{
			CareerType:   "game_designer",
			WorldSetting: domain.Text("A floating city of arcades."),
			SkillTree: domain.SkillTree{
				CoreSkills: []domain.Skill{
					{ID: "level-design", Name: "Level Design"},
					{ID: "storytelling", Name: "Storytelling"},
					{ID: "prototyping", Name: "Prototyping"},
					{ID: "playtesting", Name: "Playtesting"},
					{ID: "balancing", Name: "Balancing"},
				},
				AdvancedSkills: []domain.Skill{
					{ID: "systems-design", Name: "Systems Design"},
					{ID: "monetization", Name: "Monetization"},
				},
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
