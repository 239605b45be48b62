package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/evaluation"
	"github.com/felixgeelhaar/pathway/internal/lock"
	"github.com/felixgeelhaar/pathway/internal/progress"
	"github.com/felixgeelhaar/pathway/internal/taskgen"
)

// Deps are the collaborators shared by every Manager.
type Deps struct {
	Scenarios domain.ScenarioRepository
	Store     domain.UnitOfWork
	Generator *taskgen.Generator
	Evaluator *evaluation.System
	Feedback  *evaluation.FeedbackGenerator
	Progress  *progress.Aggregator
	Locker    lock.Locker
	Events    *domain.EventDispatcher
	Clock     func() time.Time
	Logger    *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Generator == nil {
		d.Generator = taskgen.New(taskgen.WithClock(d.Clock))
	}
	if d.Evaluator == nil {
		d.Evaluator = evaluation.NewSystem(evaluation.WithClock(d.Clock))
	}
	if d.Progress == nil {
		d.Progress = progress.NewAggregator(progress.WithClock(d.Clock))
	}
	if d.Locker == nil {
		d.Locker = lock.NewLocalLocker()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// engine holds the transactional plumbing the mode managers compose.
type engine struct {
	Deps
	mode domain.Mode
}

func newEngine(mode domain.Mode, deps Deps) *engine {
	return &engine{Deps: deps.withDefaults(), mode: mode}
}

// withTx runs fn inside one unit of work, committing on success.
func (e *engine) withTx(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	uow, err := e.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(uow); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			e.Logger.Warn("failed to roll back transaction", "mode", e.mode, "error", rbErr)
		}
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// scenario loads a scenario and checks that it can be played in this mode.
func (e *engine) scenario(ctx context.Context, id string) (*domain.Scenario, error) {
	s, err := e.Scenarios.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Mode != e.mode {
		return nil, fmt.Errorf("%w: scenario %s is %s, not %s", domain.ErrModeMismatch, id, s.Mode, e.mode)
	}
	if err := s.CheckModeData(); err != nil {
		return nil, err
	}
	return s, nil
}

// load fetches a program of this mode and its tasks ordered by index.
func (e *engine) load(ctx context.Context, uow domain.UnitOfWork, programID string) (*domain.Program, []*domain.Task, error) {
	p, err := uow.Programs().FindByID(ctx, programID)
	if err != nil {
		return nil, nil, err
	}
	if p.Mode != e.mode {
		return nil, nil, fmt.Errorf("%w: program %s is %s, not %s", domain.ErrModeMismatch, programID, p.Mode, e.mode)
	}
	tasks, err := uow.Tasks().FindByProgram(ctx, programID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	return p, tasks, nil
}

// requestLanguage trims a caller language, defaulting to English.
func requestLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return domain.DefaultLanguage
	}
	return lang
}

// start creates the program and its initial tasks in one transaction. The
// first task is activated. prepare may adjust the program before it is
// stored.
func (e *engine) start(ctx context.Context, req StartRequest, prepare func(p *domain.Program, s *domain.Scenario, tasks []*domain.Task)) (*domain.Program, error) {
	if strings.TrimSpace(req.LearnerID) == "" {
		return nil, fmt.Errorf("%w: learner id is required", domain.ErrInvalidInput)
	}
	s, err := e.scenario(ctx, req.ScenarioID)
	if err != nil {
		return nil, err
	}

	now := e.Clock()
	lang := requestLanguage(req.Language)
	p := domain.NewProgram(req.LearnerID, s, lang, now)

	tasks, err := e.Generator.InitialTasks(p, s, lang)
	if err != nil {
		return nil, fmt.Errorf("generate tasks: %w", err)
	}
	if len(tasks) > 0 {
		tasks[0].Activate(now)
	}
	p.TotalTaskCount = len(tasks)
	if err := p.Activate(now); err != nil {
		return nil, err
	}
	if prepare != nil {
		prepare(p, s, tasks)
	}

	err = e.withTx(ctx, func(uow domain.UnitOfWork) error {
		if err := uow.Programs().Create(ctx, p); err != nil {
			return fmt.Errorf("create program: %w", err)
		}
		for _, t := range tasks {
			if err := uow.Tasks().Create(ctx, t); err != nil {
				return fmt.Errorf("create task %d: %w", t.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Logger.Info("program started",
		"program_id", p.ID, "learner_id", p.LearnerID, "scenario_id", s.ID,
		"mode", e.mode, "tasks", len(tasks))
	e.Events.Publish(domain.NewProgramStartedEvent(p, now))
	return p, nil
}

// progress computes the snapshot outside any transaction.
func (e *engine) progress(ctx context.Context, programID string) (*progress.LearningProgress, error) {
	p, tasks, err := e.load(ctx, e.Store, programID)
	if err != nil {
		return nil, err
	}
	var s *domain.Scenario
	if e.mode == domain.ModeAssessment {
		s, err = e.Scenarios.FindByID(ctx, p.ScenarioID)
		if err != nil {
			e.Logger.Warn("failed to load scenario for progress",
				"program_id", p.ID, "scenario_id", p.ScenarioID, "error", err)
			s = nil
		}
	}
	return e.Progress.Compute(p, tasks, s), nil
}

// nextTask returns the active task, otherwise the lowest pending one.
func (e *engine) nextTask(ctx context.Context, programID string) (*domain.Task, error) {
	p, tasks, err := e.load(ctx, e.Store, programID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, nil
	}
	if t := domain.ActiveTask(tasks); t != nil {
		return t, nil
	}
	return domain.NextPendingTask(tasks), nil
}

// submission is the state a mode rule mutates while handling a response.
type submission struct {
	program  *domain.Program
	task     *domain.Task
	tasks    []*domain.Task
	response domain.Response
	now      time.Time

	result    *SubmitResult
	created   []*domain.Task
	activated []*domain.Task
	events    []domain.Event
}

// activateNext activates the lowest pending task if none is active.
func (s *submission) activateNext() *domain.Task {
	if domain.ActiveTask(s.tasks) != nil {
		return nil
	}
	next := domain.NextPendingTask(s.tasks)
	if next == nil {
		return nil
	}
	next.Activate(s.now)
	s.program.CurrentTaskIndex = next.Index
	s.activated = append(s.activated, next)
	s.result.SideEffects.ActivatedTaskID = next.ID
	return next
}

func (s *submission) isCreated(t *domain.Task) bool {
	for _, c := range s.created {
		if c == t {
			return true
		}
	}
	return false
}

// submit serializes responses per program and applies rule inside one
// transaction. Either every write of the submission lands or none does.
func (e *engine) submit(ctx context.Context, programID, taskID string, resp domain.Response, rule func(ctx context.Context, s *submission) error) (*SubmitResult, error) {
	release, err := e.Locker.Acquire(ctx, "program:"+programID)
	if err != nil {
		return nil, fmt.Errorf("lock program %s: %w", programID, err)
	}
	defer release()

	var sub *submission
	err = e.withTx(ctx, func(uow domain.UnitOfWork) error {
		p, tasks, err := e.load(ctx, uow, programID)
		if err != nil {
			return err
		}
		if !p.IsActive() {
			return domain.ErrProgramNotActive
		}

		var task *domain.Task
		for _, t := range tasks {
			if t.ID == taskID {
				task = t
				break
			}
		}
		if task == nil {
			other, err := uow.Tasks().FindByID(ctx, taskID)
			if err != nil {
				return err
			}
			if other.ProgramID != programID {
				return domain.ErrTaskNotInProgram
			}
			return domain.ErrTaskNotFound
		}
		switch task.Status {
		case domain.TaskCompleted:
			return domain.ErrTaskCompleted
		case domain.TaskPending:
			return domain.ErrTaskNotActive
		}

		now := e.Clock()
		task.AttemptCount++
		if resp.TimeSpentSeconds > 0 {
			task.TimeSpentSeconds += resp.TimeSpentSeconds
		}
		p.Touch(now, resp.TimeSpentSeconds)

		sub = &submission{
			program:  p,
			task:     task,
			tasks:    tasks,
			response: resp,
			now:      now,
			result:   &SubmitResult{Success: true, Task: task},
		}
		if err := rule(ctx, sub); err != nil {
			return err
		}
		return e.persist(ctx, uow, sub)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			e.Logger.Warn("concurrent submission rejected", "program_id", programID, "task_id", taskID)
		}
		return nil, err
	}

	e.Events.PublishAll(sub.events)
	return sub.result, nil
}

func (e *engine) persist(ctx context.Context, uow domain.UnitOfWork, s *submission) error {
	if err := uow.Tasks().Update(ctx, s.task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	for _, t := range s.created {
		if err := uow.Tasks().Create(ctx, t); err != nil {
			return fmt.Errorf("create task %d: %w", t.Index, err)
		}
	}
	for _, t := range s.activated {
		if t == s.task || s.isCreated(t) {
			continue
		}
		if err := uow.Tasks().UpdateStatus(ctx, t.ID, domain.TaskActive); err != nil {
			return fmt.Errorf("activate task %d: %w", t.Index, err)
		}
	}
	if err := uow.Programs().Update(ctx, s.program); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// completion evaluates every started task, stores the task evaluations and
// exactly one program evaluation, then marks the program completed. The
// program evaluation is computed from the task snapshot taken before
// finalize runs. Feedback is generated after the transaction commits.
func (e *engine) complete(ctx context.Context, programID string, finalize func(ctx context.Context, uow domain.UnitOfWork, p *domain.Program, tasks []*domain.Task, programEval *domain.Evaluation) (*bool, error)) (*CompletionResult, error) {
	release, err := e.Locker.Acquire(ctx, "program:"+programID)
	if err != nil {
		return nil, fmt.Errorf("lock program %s: %w", programID, err)
	}
	defer release()

	result := &CompletionResult{}
	var lang string
	err = e.withTx(ctx, func(uow domain.UnitOfWork) error {
		p, tasks, err := e.load(ctx, uow, programID)
		if err != nil {
			return err
		}
		if !p.IsActive() {
			return domain.ErrProgramNotActive
		}
		lang = domain.NormalizeLanguage(p.Language)

		evals := make([]*domain.Evaluation, 0, len(tasks))
		for _, t := range tasks {
			if t.Status == domain.TaskPending {
				continue
			}
			ev := e.Evaluator.EvaluateTask(t, evaluation.TaskContext{Program: p, Language: lang})
			if err := uow.Evaluations().Create(ctx, ev); err != nil {
				return fmt.Errorf("store task evaluation: %w", err)
			}
			evals = append(evals, ev)
		}

		programEval := e.Evaluator.EvaluateProgram(p, evals, evaluation.ProgramContext{Tasks: tasks, Language: lang})
		if err := uow.Evaluations().Create(ctx, programEval); err != nil {
			return fmt.Errorf("store program evaluation: %w", err)
		}

		var passed *bool
		if finalize != nil {
			if passed, err = finalize(ctx, uow, p, tasks, programEval); err != nil {
				return err
			}
		}

		p.TotalScore = programEval.Score
		p.DomainScores = programEval.DomainScores
		p.LastActivityAt = e.Clock()
		if err := uow.Programs().Update(ctx, p); err != nil {
			return fmt.Errorf("update program: %w", err)
		}
		completed, err := uow.Programs().Complete(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("complete program: %w", err)
		}

		result.Program = completed
		result.Evaluation = programEval
		result.TaskEvaluations = evals
		result.Passed = passed
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := e.Clock()
	for _, ev := range result.TaskEvaluations {
		e.Events.Publish(domain.NewEvaluationRecordedEvent(result.Program, ev, now))
	}
	e.Events.Publish(domain.NewEvaluationRecordedEvent(result.Program, result.Evaluation, now))
	e.Events.Publish(domain.NewProgramCompletedEvent(result.Program, result.Evaluation, result.Passed, now))

	result.Feedback = e.Feedback.Generate(ctx, result.Evaluation, lang)
	e.Logger.Info("program completed",
		"program_id", programID, "mode", e.mode, "score", result.Evaluation.Score)
	return result, nil
}

// abandon moves an active program to abandoned.
func (e *engine) abandon(ctx context.Context, programID string) (*domain.Program, error) {
	release, err := e.Locker.Acquire(ctx, "program:"+programID)
	if err != nil {
		return nil, fmt.Errorf("lock program %s: %w", programID, err)
	}
	defer release()

	var program *domain.Program
	now := e.Clock()
	err = e.withTx(ctx, func(uow domain.UnitOfWork) error {
		p, _, err := e.load(ctx, uow, programID)
		if err != nil {
			return err
		}
		if err := p.Abandon(now); err != nil {
			return err
		}
		if err := uow.Programs().Update(ctx, p); err != nil {
			return fmt.Errorf("update program: %w", err)
		}
		program = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Events.Publish(domain.NewProgramAbandonedEvent(program, now))
	return program, nil
}
