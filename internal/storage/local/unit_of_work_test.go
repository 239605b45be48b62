package local

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestUoW(t *testing.T) *UnitOfWork {
	t.Helper()
	return NewUnitOfWork(newTestStore(t), WithClock(func() time.Time { return epoch }))
}

func seedProgram(t *testing.T, uow *UnitOfWork) (*domain.Program, []*domain.Task) {
	t.Helper()
	ctx := context.Background()
	p := domain.NewProgram("learner-1", testutil.ProjectScenario(), "en", epoch)
	if err := p.Activate(epoch); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if err := uow.Programs().Create(ctx, p); err != nil {
		t.Fatalf("Programs().Create() error = %v", err)
	}
	var tasks []*domain.Task
	for i := 2; i >= 0; i-- {
		task := domain.NewTask(p.ID, i, domain.TaskTypeChallenge, epoch)
		if err := uow.Tasks().Create(ctx, task); err != nil {
			t.Fatalf("Tasks().Create() error = %v", err)
		}
		tasks = append(tasks, task)
	}
	return p, tasks
}

func TestUnitOfWork_CommitPersists(t *testing.T) {
	ctx := context.Background()
	root := newTestUoW(t)

	tx, err := root.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	p := domain.NewProgram("learner-1", testutil.AssessmentScenario(), "en", epoch)
	if err := tx.Programs().Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	task := domain.NewTask(p.ID, 0, domain.TaskTypeQuestion, epoch)
	if err := tx.Tasks().Create(ctx, task); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Visible inside the transaction, not outside.
	if _, err := tx.Programs().FindByID(ctx, p.ID); err != nil {
		t.Errorf("FindByID() inside tx error = %v", err)
	}
	if _, err := root.Programs().FindByID(ctx, p.ID); !errors.Is(err, domain.ErrProgramNotFound) {
		t.Errorf("FindByID() outside tx error = %v, want ErrProgramNotFound", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, ErrTxDone) {
		t.Errorf("second Commit() error = %v, want ErrTxDone", err)
	}

	got, err := root.Programs().FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindByID() after commit error = %v", err)
	}
	if got.LearnerID != "learner-1" || got.Version != 1 {
		t.Errorf("program = %+v", got)
	}
	tasks, err := root.Tasks().FindByProgram(ctx, p.ID)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("FindByProgram() = %d tasks, %v", len(tasks), err)
	}
}

func TestUnitOfWork_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	root := newTestUoW(t)

	tx, _ := root.Begin(ctx)
	p := domain.NewProgram("learner-1", testutil.AssessmentScenario(), "en", epoch)
	tx.Programs().Create(ctx, p)
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if _, err := root.Programs().FindByID(ctx, p.ID); !errors.Is(err, domain.ErrProgramNotFound) {
		t.Errorf("FindByID() after rollback error = %v, want ErrProgramNotFound", err)
	}

	// The transaction lock is released.
	tx2, err := root.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() after rollback error = %v", err)
	}
	tx2.Rollback()
}

func TestProgramRepository_UpdateVersion(t *testing.T) {
	ctx := context.Background()
	uow := newTestUoW(t)
	p, _ := seedProgram(t, uow)

	stale, _ := uow.Programs().FindByID(ctx, p.ID)
	fresh, _ := uow.Programs().FindByID(ctx, p.ID)

	fresh.XPEarned = 50
	if err := uow.Programs().Update(ctx, fresh); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if fresh.Version != 2 {
		t.Errorf("Version = %d, want 2", fresh.Version)
	}

	stale.XPEarned = 100
	if err := uow.Programs().Update(ctx, stale); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("stale Update() error = %v, want ErrConflict", err)
	}

	got, _ := uow.Programs().FindByID(ctx, p.ID)
	if got.XPEarned != 50 {
		t.Errorf("XPEarned = %d, want 50", got.XPEarned)
	}
}

func TestProgramRepository_CompleteAndProgress(t *testing.T) {
	ctx := context.Background()
	uow := newTestUoW(t)
	p, _ := seedProgram(t, uow)

	if err := uow.Programs().UpdateProgress(ctx, p.ID, 2); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	done, err := uow.Programs().Complete(ctx, p.ID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if done.Status != domain.ProgramCompleted || done.CompletedAt == nil {
		t.Errorf("Complete() = status %s, completed_at %v", done.Status, done.CompletedAt)
	}
	if done.CurrentTaskIndex != 2 {
		t.Errorf("CurrentTaskIndex = %d, want 2", done.CurrentTaskIndex)
	}
	if _, err := uow.Programs().Complete(ctx, p.ID); !errors.Is(err, domain.ErrProgramNotActive) {
		t.Errorf("second Complete() error = %v, want ErrProgramNotActive", err)
	}
	if _, err := uow.Programs().Complete(ctx, "missing"); !errors.Is(err, domain.ErrProgramNotFound) {
		t.Errorf("Complete(missing) error = %v, want ErrProgramNotFound", err)
	}
}

func TestProgramRepository_FindByLearner(t *testing.T) {
	ctx := context.Background()
	uow := newTestUoW(t)
	seedProgram(t, uow)
	seedProgram(t, uow)

	other := domain.NewProgram("learner-2", testutil.DiscoveryScenario(), "en", epoch)
	uow.Programs().Create(ctx, other)

	got, err := uow.Programs().FindByLearner(ctx, "learner-1")
	if err != nil {
		t.Fatalf("FindByLearner() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("FindByLearner() = %d programs, want 2", len(got))
	}
}

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()
	uow := newTestUoW(t)
	p, _ := seedProgram(t, uow)

	tasks, err := uow.Tasks().FindByProgram(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindByProgram() error = %v", err)
	}
	for i, task := range tasks {
		if task.Index != i {
			t.Errorf("tasks[%d].Index = %d, not ordered", i, task.Index)
		}
	}

	first := tasks[0]
	if err := uow.Tasks().UpdateStatus(ctx, first.ID, domain.TaskActive); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	in := []domain.Interaction{{Timestamp: epoch, Type: domain.InteractionUserInput, Content: map[string]any{"response": "hi"}}}
	if err := uow.Tasks().UpdateInteractions(ctx, first.ID, in); err != nil {
		t.Fatalf("UpdateInteractions() error = %v", err)
	}

	got, err := uow.Tasks().FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Status != domain.TaskActive || got.StartedAt == nil {
		t.Errorf("task status = %s, started_at = %v", got.Status, got.StartedAt)
	}
	if len(got.Interactions) != 1 {
		t.Errorf("Interactions = %d, want 1", len(got.Interactions))
	}

	// first was loaded before the two updates.
	if err := uow.Tasks().Update(ctx, first); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("stale Update() error = %v, want ErrConflict", err)
	}
	if _, err := uow.Tasks().FindByID(ctx, "missing"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("FindByID(missing) error = %v, want ErrTaskNotFound", err)
	}
}

func TestEvaluationRepository(t *testing.T) {
	ctx := context.Background()
	uow := newTestUoW(t)
	p, tasks := seedProgram(t, uow)

	taskEval := domain.NewEvaluation(domain.ModePBL, domain.EvaluationTask, epoch)
	taskEval.ProgramID = p.ID
	taskEval.TaskID = tasks[0].ID
	taskEval.Score = 80
	programEval := domain.NewEvaluation(domain.ModePBL, domain.EvaluationProgram, epoch.Add(time.Minute))
	programEval.ProgramID = p.ID
	programEval.Score = 85

	for _, ev := range []*domain.Evaluation{programEval, taskEval} {
		if err := uow.Evaluations().Create(ctx, ev); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := uow.Evaluations().Create(ctx, taskEval); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate Create() error = %v, want ErrConflict", err)
	}

	got, err := uow.Evaluations().FindByProgram(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindByProgram() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FindByProgram() = %d, want 2", len(got))
	}
	if got[0].Type != domain.EvaluationTask || got[1].Type != domain.EvaluationProgram {
		t.Errorf("evaluations not ordered by creation: %s, %s", got[0].Type, got[1].Type)
	}

	one, err := uow.Evaluations().FindByID(ctx, programEval.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if one.Score != 85 {
		t.Errorf("Score = %v, want 85", one.Score)
	}
}
