package taskgen

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/testutil"
)

func newTestGenerator() *Generator {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return New(
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return now }),
	)
}

func newProgram(s *domain.Scenario, lang string) *domain.Program {
	return domain.NewProgram("learner-1", s, lang, time.Now())
}

func TestInitialTasks_Assessment(t *testing.T) {
	tests := []struct {
		name      string
		lang      string
		count     int
		wantLang  string
		wantCount int
	}{
		{"english bank", "en", 10, "en", 10},
		{"chinese bank", "zh", 5, "zh", 5},
		{"missing bank falls back", "es", 8, "en", 8},
		{"count capped at bank size", "zh", 50, "zh", 10},
		{"zero count takes whole bank", "en", 0, "en", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testutil.AssessmentScenario(testutil.WithQuestionCount(tt.count))
			tasks, err := newTestGenerator().InitialTasks(newProgram(s, tt.lang), s, tt.lang)
			if err != nil {
				t.Fatalf("InitialTasks() error = %v", err)
			}
			if len(tasks) != 1 {
				t.Fatalf("len(tasks) = %d, want 1", len(tasks))
			}
			task := tasks[0]
			if len(task.Content.QuestionIDs) != tt.wantCount {
				t.Errorf("len(QuestionIDs) = %d, want %d", len(task.Content.QuestionIDs), tt.wantCount)
			}
			if len(task.Content.Questions) != len(task.Content.QuestionIDs) {
				t.Errorf("embedded questions = %d, ids = %d", len(task.Content.Questions), len(task.Content.QuestionIDs))
			}
			seen := map[string]bool{}
			for _, id := range task.Content.QuestionIDs {
				if seen[id] {
					t.Errorf("question %s drawn twice", id)
				}
				seen[id] = true
				if id[:2] != tt.wantLang {
					t.Errorf("question %s not from %s bank", id, tt.wantLang)
				}
			}
			if task.Status != domain.TaskPending {
				t.Errorf("Status = %q, want pending", task.Status)
			}
		})
	}
}

func TestInitialTasks_AssessmentNoQuestions(t *testing.T) {
	s := testutil.AssessmentScenario()
	s.Assessment.QuestionBanks = map[string][]domain.Question{"fr": {}}
	_, err := newTestGenerator().InitialTasks(newProgram(s, "en"), s, "en")
	if !errors.Is(err, domain.ErrScenarioDataMissing) {
		t.Errorf("InitialTasks() error = %v, want ErrScenarioDataMissing", err)
	}
}

func TestInitialTasks_Project(t *testing.T) {
	s := testutil.ProjectScenario()
	tasks, err := newTestGenerator().InitialTasks(newProgram(s, "es"), s, "es")
	if err != nil {
		t.Fatalf("InitialTasks() error = %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("len(tasks) = %d, want 4", len(tasks))
	}

	wantPhases := []string{domain.PhaseUnderstanding, domain.PhaseExploring, domain.PhaseCreating, domain.PhaseCreating}
	for i, task := range tasks {
		if task.Index != i {
			t.Errorf("tasks[%d].Index = %d", i, task.Index)
		}
		if task.Extension.Phase != wantPhases[i] {
			t.Errorf("tasks[%d].Phase = %q, want %q", i, task.Extension.Phase, wantPhases[i])
		}
	}

	if got := tasks[0].Title["es"]; got != "Understand the problem" {
		t.Errorf("plain title not keyed under request language: %v", tasks[0].Title)
	}
	if got := tasks[1].Title["es"]; got != "Explorar opciones" {
		t.Errorf("localized title = %v", tasks[1].Title)
	}
	if v, ok := tasks[1].Content.Description["es"]; !ok || v != "" {
		t.Errorf("absent description = %v, want {es: \"\"}", tasks[1].Content.Description)
	}
	if tasks[3].Type != "presentation" {
		t.Errorf("template type not kept: %q", tasks[3].Type)
	}
}

func TestInitialTasks_Discovery(t *testing.T) {
	s := testutil.DiscoveryScenario()
	tasks, err := newTestGenerator().InitialTasks(newProgram(s, "en"), s, "en")
	if err != nil {
		t.Fatalf("InitialTasks() error = %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("len(tasks) = %d, want 4", len(tasks))
	}
	if tasks[0].Type != domain.TaskTypeWelcome || tasks[0].Extension.XPReward != WelcomeXP {
		t.Errorf("welcome task = %+v", tasks[0].Extension)
	}
	for i, task := range tasks[1:] {
		if task.Extension.XPReward != SkillXP {
			t.Errorf("skill task %d XP = %d, want %d", i, task.Extension.XPReward, SkillXP)
		}
		if task.Extension.Difficulty != domain.DifficultyBeginner {
			t.Errorf("skill task %d difficulty = %q", i, task.Extension.Difficulty)
		}
		if task.Content.SkillID != s.Discovery.SkillTree.CoreSkills[i].ID {
			t.Errorf("skill task %d skill = %q", i, task.Content.SkillID)
		}
	}
}

func TestNextSkillTask(t *testing.T) {
	s := testutil.DiscoveryScenario()
	g := newTestGenerator()
	p := newProgram(s, "en")
	tasks, err := g.InitialTasks(p, s, "en")
	if err != nil {
		t.Fatalf("InitialTasks() error = %v", err)
	}

	t.Run("next core skill", func(t *testing.T) {
		next := g.NextSkillTask(p, s, tasks, 1)
		if next == nil {
			t.Fatal("NextSkillTask() = nil")
		}
		if next.Content.SkillID != "playtesting" {
			t.Errorf("SkillID = %q, want playtesting", next.Content.SkillID)
		}
		if next.Index != 4 {
			t.Errorf("Index = %d, want 4", next.Index)
		}
	})

	t.Run("completed challenges are skipped", func(t *testing.T) {
		p.Extension.Discovery = &domain.DiscoveryState{CompletedChallenges: []string{"playtesting"}}
		defer func() { p.Extension.Discovery = nil }()
		next := g.NextSkillTask(p, s, tasks, 1)
		if next == nil || next.Content.SkillID != "balancing" {
			t.Errorf("NextSkillTask() = %+v, want balancing", next)
		}
	})

	all := append([]*domain.Task(nil), tasks...)
	all = append(all, g.NextSkillTask(p, s, all, 1))
	all = append(all, g.NextSkillTask(p, s, all, 1))

	t.Run("core exhausted below advanced level", func(t *testing.T) {
		if next := g.NextSkillTask(p, s, all, 2); next != nil {
			t.Errorf("NextSkillTask() = %+v, want nil", next.Content)
		}
	})

	t.Run("advanced skill at level 3", func(t *testing.T) {
		next := g.NextSkillTask(p, s, all, 3)
		if next == nil {
			t.Fatal("NextSkillTask() = nil")
		}
		if next.Type != domain.TaskTypeCreation || next.Extension.Difficulty != domain.DifficultyAdvanced {
			t.Errorf("advanced task type=%q difficulty=%q", next.Type, next.Extension.Difficulty)
		}
		if next.Extension.XPReward != AdvancedSkillXP {
			t.Errorf("XPReward = %d, want %d", next.Extension.XPReward, AdvancedSkillXP)
		}
	})
}

func TestNextSkillTask_Prerequisites(t *testing.T) {
	s := testutil.DiscoveryScenario()
	tree := &s.Discovery.SkillTree
	// balancing needs playtesting; prototyping needs a skill outside the tree.
	tree.CoreSkills[4].Prerequisites = []string{"playtesting"}
	tree.CoreSkills[2].Prerequisites = []string{"game-theory"}
	g := newTestGenerator()
	p := newProgram(s, "en")

	tasks, err := g.InitialTasks(p, s, "en")
	if err != nil {
		t.Fatalf("InitialTasks() error = %v", err)
	}
	if got := tasks[3].Content.SkillID; got != "prototyping" {
		t.Errorf("third initial skill = %q, want prototyping", got)
	}

	// playtesting is offered but not yet done, so balancing stays locked.
	playtesting := g.NextSkillTask(p, s, tasks, 1)
	if playtesting == nil || playtesting.Content.SkillID != "playtesting" {
		t.Fatalf("NextSkillTask() = %+v, want playtesting", playtesting)
	}
	tasks = append(tasks, playtesting)
	if next := g.NextSkillTask(p, s, tasks, 1); next != nil {
		t.Errorf("NextSkillTask() = %q, want nil while balancing is locked", next.Content.SkillID)
	}

	p.Extension.Discovery = &domain.DiscoveryState{CompletedChallenges: []string{"playtesting"}}
	next := g.NextSkillTask(p, s, tasks, 1)
	if next == nil || next.Content.SkillID != "balancing" {
		t.Errorf("NextSkillTask() = %+v, want balancing once playtesting is done", next)
	}
}

func TestPhaseFor(t *testing.T) {
	tests := map[int]string{0: "understanding", 1: "exploring", 2: "creating", 7: "creating"}
	for idx, want := range tests {
		if got := PhaseFor(idx); got != want {
			t.Errorf("PhaseFor(%d) = %q, want %q", idx, got, want)
		}
	}
}
