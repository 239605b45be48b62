package evaluation

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSystem() *System {
	return NewSystem(WithClock(func() time.Time { return testNow }))
}

func boolPtr(b bool) *bool { return &b }

func answerTask(questions []domain.Question, correct int, withIDs bool) *domain.Task {
	task := &domain.Task{ID: "task-1", Status: domain.TaskActive}
	for _, q := range questions {
		task.Content.QuestionIDs = append(task.Content.QuestionIDs, q.ID)
	}
	task.Content.Questions = questions
	for i, q := range questions {
		in := domain.Interaction{
			Timestamp: testNow,
			Type:      domain.InteractionUserInput,
			Correct:   boolPtr(i < correct),
		}
		if withIDs {
			in.Metadata = map[string]any{"question_id": q.ID}
		}
		task.Interactions = append(task.Interactions, in)
	}
	return task
}

func TestEvaluateTask_Assessment(t *testing.T) {
	program := &domain.Program{ID: "p1", LearnerID: "l1", Mode: domain.ModeAssessment}
	questions := testutil.Questions("q", 20, "engaging", "creating")

	tests := []struct {
		name      string
		task      *domain.Task
		wantScore float64
	}{
		{"17 of 20 by question id", answerTask(questions, 17, true), 85},
		{"17 of 20 by position", answerTask(questions, 17, false), 85},
		{"none answered", &domain.Task{Content: domain.TaskContent{QuestionIDs: []string{"a", "b"}}}, 0},
		{"all correct", answerTask(questions[:4], 4, true), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newTestSystem().EvaluateTask(tt.task, TaskContext{Program: program, Language: "en"})
			if ev.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", ev.Score, tt.wantScore)
			}
			if ev.Type != domain.EvaluationTask || ev.Mode != domain.ModeAssessment {
				t.Errorf("Type/Mode = %s/%s", ev.Type, ev.Mode)
			}
		})
	}
}

func TestEvaluateTask_AssessmentDomains(t *testing.T) {
	program := &domain.Program{ID: "p1", Mode: domain.ModeAssessment}
	// Questions alternate engaging/creating; the first 3 are correct.
	task := answerTask(testutil.Questions("q", 4, "engaging", "creating"), 3, true)

	ev := newTestSystem().EvaluateTask(task, TaskContext{Program: program})
	if got := ev.DomainScores["engaging"]; got != 100 {
		t.Errorf("engaging = %v, want 100", got)
	}
	if got := ev.DomainScores["creating"]; got != 50 {
		t.Errorf("creating = %v, want 50", got)
	}
	if ev.Metadata.CorrectAnswers != 3 || ev.Metadata.TotalQuestions != 4 {
		t.Errorf("metadata = %+v", ev.Metadata)
	}
}

func TestEvaluateTask_AssessmentReanswerCountsOnce(t *testing.T) {
	program := &domain.Program{ID: "p1", Mode: domain.ModeAssessment}
	task := answerTask(testutil.Questions("q", 2), 0, true)
	task.Interactions = append(task.Interactions, domain.Interaction{
		Type:     domain.InteractionUserInput,
		Correct:  boolPtr(true),
		Metadata: map[string]any{"question_id": "q-01"},
	})

	ev := newTestSystem().EvaluateTask(task, TaskContext{Program: program})
	if ev.Score != 50 {
		t.Errorf("Score = %v, want 50 (latest answer wins)", ev.Score)
	}
}

func projectTask(interactions, minutes int, status domain.TaskStatus) *domain.Task {
	task := &domain.Task{ID: "t", Status: status, TimeSpentSeconds: minutes * 60}
	for i := 0; i < interactions; i++ {
		typ := domain.InteractionUserInput
		if i%2 == 1 {
			typ = domain.InteractionAIResponse
		}
		task.Interactions = append(task.Interactions, domain.Interaction{Type: typ})
	}
	return task
}

func TestProjectTaskScore(t *testing.T) {
	tests := []struct {
		name string
		task *domain.Task
		want float64
	}{
		{"complete, 6 interactions, 30 minutes", projectTask(6, 30, domain.TaskCompleted), 100},
		{"complete, 8 interactions, 20 minutes", projectTask(8, 20, domain.TaskCompleted), 100},
		{"complete, 6 interactions, 60 minutes", projectTask(6, 60, domain.TaskCompleted), 100},
		{"overtime", projectTask(6, 90, domain.TaskCompleted), 90},
		{"short session", projectTask(6, 10, domain.TaskCompleted), 85},
		{"incomplete", projectTask(3, 30, domain.TaskActive), 50},
		{"untouched", projectTask(0, 0, domain.TaskPending), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProjectTaskScore(tt.task); got != tt.want {
				t.Errorf("ProjectTaskScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateTask_ProjectDimensions(t *testing.T) {
	program := &domain.Program{ID: "p1", Mode: domain.ModePBL}

	full := projectTask(10, 30, domain.TaskCompleted) // 5 user inputs
	ev := newTestSystem().EvaluateTask(full, TaskContext{Program: program})
	want := map[string]float64{"knowledge": 90, "skills": 85, "attitudes": 95}
	for dim, v := range want {
		if ev.DomainScores[dim] != v {
			t.Errorf("%s = %v, want %v", dim, ev.DomainScores[dim], v)
		}
	}

	partial := projectTask(4, 30, domain.TaskActive) // 2 user inputs
	ev = newTestSystem().EvaluateTask(partial, TaskContext{Program: program})
	if ev.DomainScores["knowledge"] != 36 {
		t.Errorf("knowledge = %v, want 36", ev.DomainScores["knowledge"])
	}
}

func TestEvaluateTask_Discovery(t *testing.T) {
	program := &domain.Program{ID: "p1", Mode: domain.ModeDiscovery}

	task := projectTask(4, 0, domain.TaskCompleted) // 2 of 4 are user input
	task.Extension = domain.TaskExtension{XPReward: 100, Skills: []string{"storytelling"}}
	ev := newTestSystem().EvaluateTask(task, TaskContext{Program: program})

	if ev.Score != 75 {
		t.Errorf("Score = %v, want 75", ev.Score)
	}
	if ev.Metadata.XPEarned != 100 {
		t.Errorf("XPEarned = %d, want 100", ev.Metadata.XPEarned)
	}
	if len(ev.Metadata.SkillsImproved) != 1 {
		t.Errorf("SkillsImproved = %v", ev.Metadata.SkillsImproved)
	}

	onlyInput := &domain.Task{Interactions: []domain.Interaction{{Type: domain.InteractionUserInput}}}
	if ev := newTestSystem().EvaluateTask(onlyInput, TaskContext{Program: program}); ev.Score != 100 {
		t.Errorf("engagement capped score = %v, want 100", ev.Score)
	}
}

func TestEvaluateTask_UnknownMode(t *testing.T) {
	program := &domain.Program{ID: "p1", Mode: "legacy"}
	if ev := newTestSystem().EvaluateTask(&domain.Task{}, TaskContext{Program: program}); ev.Score != 0 {
		t.Errorf("empty task score = %v, want 0", ev.Score)
	}
	task := &domain.Task{Interactions: []domain.Interaction{{Type: domain.InteractionAIResponse}}}
	if ev := newTestSystem().EvaluateTask(task, TaskContext{Program: program}); ev.Score != 100 {
		t.Errorf("task with interaction score = %v, want 100", ev.Score)
	}
}

func TestEvaluateProgram(t *testing.T) {
	program := &domain.Program{ID: "p1", LearnerID: "l1", Mode: domain.ModePBL}
	evals := []*domain.Evaluation{
		{Score: 80, DomainScores: map[string]float64{"K": 80, "S": 70}},
		{Score: 90, DomainScores: map[string]float64{"K": 90}},
	}
	tasks := []*domain.Task{
		{Status: domain.TaskCompleted, TimeSpentSeconds: 600},
		{Status: domain.TaskActive, TimeSpentSeconds: 300},
	}

	ev := newTestSystem().EvaluateProgram(program, evals, ProgramContext{Tasks: tasks, Language: "en"})

	if ev.Score != 85 {
		t.Errorf("Score = %v, want 85", ev.Score)
	}
	if ev.DomainScores["K"] != 85 {
		t.Errorf("K = %v, want 85", ev.DomainScores["K"])
	}
	if ev.DomainScores["S"] != 70 {
		t.Errorf("S = %v, want 70", ev.DomainScores["S"])
	}
	if ev.Type != domain.EvaluationProgram {
		t.Errorf("Type = %q, want program", ev.Type)
	}
	if ev.FeedbackData.CompletedTasks != 1 || ev.FeedbackData.TotalTasks != 2 || ev.FeedbackData.TimeSpentSeconds != 900 {
		t.Errorf("FeedbackData = %+v", ev.FeedbackData)
	}
	want := "Overall performance: very good (85%). You completed 1 of 2 tasks."
	if ev.FeedbackText != want {
		t.Errorf("FeedbackText = %q, want %q", ev.FeedbackText, want)
	}
}

func TestEvaluateProgram_NoTasks(t *testing.T) {
	program := &domain.Program{ID: "p1", Mode: domain.ModeDiscovery}
	ev := newTestSystem().EvaluateProgram(program, nil, ProgramContext{Language: "zh"})
	if ev.Score != 0 {
		t.Errorf("Score = %v, want 0", ev.Score)
	}
	if ev.Metadata.Language != "zh" {
		t.Errorf("Language = %q, want zh", ev.Metadata.Language)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{100, TierExcellent},
		{90, TierExcellent},
		{89.99, TierVeryGood},
		{80, TierVeryGood},
		{70, TierGood},
		{60, TierSatisfactory},
		{59, TierNeedsImprovement},
		{0, TierNeedsImprovement},
	}
	for _, tt := range tests {
		if got := TierFor(tt.score); got != tt.want {
			t.Errorf("TierFor(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestTierWord(t *testing.T) {
	if got := TierWord("es", TierGood); got != "bueno" {
		t.Errorf("TierWord(es, good) = %q", got)
	}
	if got := TierWord("fr", TierGood); got != "good" {
		t.Errorf("TierWord(fr, good) = %q, want english fallback", got)
	}
}

func TestFormatScore(t *testing.T) {
	tests := map[float64]string{0: "0", 85: "85", 36.5: "36.5", 66.666: "66.67"}
	for score, want := range tests {
		if got := formatScore(score); got != want {
			t.Errorf("formatScore(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestProgramFeedback_KeepsStoredPrecision(t *testing.T) {
	got := programFeedback("en", TierFor(36.5), 36.5, 1, 2)
	want := "Overall performance: " + TierWord("en", TierFor(36.5)) + " (36.5%). You completed 1 of 2 tasks."
	if got != want {
		t.Errorf("programFeedback() = %q, want %q", got, want)
	}
	if got := taskFeedback("es", 72.25); got != "Desempeño en la tarea: "+TierWord("es", TierFor(72.25))+" (72.25%)." {
		t.Errorf("taskFeedback() = %q", got)
	}
}
