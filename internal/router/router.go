// Package router dispatches lifecycle calls to the manager for a program's
// mode and aggregates a learner's programs across modes.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/lifecycle"
	"github.com/felixgeelhaar/pathway/internal/progress"
)

// Router maps each mode to its lifecycle manager.
type Router struct {
	managers  map[domain.Mode]lifecycle.Manager
	scenarios domain.ScenarioRepository
	programs  domain.ProgramRepository
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router. scenarios resolves the mode for StartLearning and
// programs resolves it for program-scoped calls.
func New(scenarios domain.ScenarioRepository, programs domain.ProgramRepository, managers []lifecycle.Manager, opts ...Option) *Router {
	r := &Router{
		managers:  make(map[domain.Mode]lifecycle.Manager, len(managers)),
		scenarios: scenarios,
		programs:  programs,
		logger:    slog.Default(),
	}
	for _, m := range managers {
		r.managers[m.Mode()] = m
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the manager registered for mode.
func (r *Router) Get(mode domain.Mode) (lifecycle.Manager, error) {
	m, ok := r.managers[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMode, mode)
	}
	return m, nil
}

// Modes lists the registered modes in a stable order.
func (r *Router) Modes() []domain.Mode {
	var out []domain.Mode
	for _, m := range domain.Modes {
		if _, ok := r.managers[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *Router) forProgram(ctx context.Context, programID string) (lifecycle.Manager, error) {
	p, err := r.programs.FindByID(ctx, programID)
	if err != nil {
		return nil, err
	}
	return r.Get(p.Mode)
}

// StartLearning starts a program with the manager for the scenario's mode.
func (r *Router) StartLearning(ctx context.Context, req lifecycle.StartRequest) (*domain.Program, error) {
	s, err := r.scenarios.FindByID(ctx, req.ScenarioID)
	if err != nil {
		return nil, err
	}
	m, err := r.Get(s.Mode)
	if err != nil {
		return nil, err
	}
	return m.StartLearning(ctx, req)
}

func (r *Router) GetProgress(ctx context.Context, programID string) (*progress.LearningProgress, error) {
	m, err := r.forProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	return m.GetProgress(ctx, programID)
}

func (r *Router) SubmitResponse(ctx context.Context, programID, taskID string, resp domain.Response) (*lifecycle.SubmitResult, error) {
	m, err := r.forProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	return m.SubmitResponse(ctx, programID, taskID, resp)
}

func (r *Router) CompleteLearning(ctx context.Context, programID string) (*lifecycle.CompletionResult, error) {
	m, err := r.forProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	return m.CompleteLearning(ctx, programID)
}

func (r *Router) GetNextTask(ctx context.Context, programID string) (*domain.Task, error) {
	m, err := r.forProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	return m.GetNextTask(ctx, programID)
}

func (r *Router) AbandonLearning(ctx context.Context, programID string) (*domain.Program, error) {
	m, err := r.forProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	return m.AbandonLearning(ctx, programID)
}

// ModeSummary is a learner's standing in one mode.
type ModeSummary struct {
	Mode      domain.Mode                  `json:"mode"`
	Total     int                          `json:"total"`
	Active    int                          `json:"active"`
	Completed int                          `json:"completed"`
	Programs  []*progress.LearningProgress `json:"programs"`
}

// LearnerSummary groups a learner's programs by mode.
type LearnerSummary struct {
	LearnerID string                       `json:"learner_id"`
	Modes     map[domain.Mode]*ModeSummary `json:"modes"`
	TotalXP   int                          `json:"total_xp"`
}

// LearnerSummary collects progress for every program the learner owns. A
// program whose progress cannot be computed is logged and omitted.
func (r *Router) LearnerSummary(ctx context.Context, learnerID string) (*LearnerSummary, error) {
	programs, err := r.programs.FindByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	sort.SliceStable(programs, func(i, j int) bool { return programs[i].CreatedAt.Before(programs[j].CreatedAt) })

	summary := &LearnerSummary{LearnerID: learnerID, Modes: map[domain.Mode]*ModeSummary{}}
	for _, mode := range r.Modes() {
		summary.Modes[mode] = &ModeSummary{Mode: mode, Programs: []*progress.LearningProgress{}}
	}

	for _, p := range programs {
		m, err := r.Get(p.Mode)
		if err != nil {
			r.logger.Warn("skipping program with unregistered mode",
				"program_id", p.ID, "mode", p.Mode)
			continue
		}
		lp, err := m.GetProgress(ctx, p.ID)
		if err != nil {
			r.logger.Warn("failed to compute progress for summary",
				"program_id", p.ID, "mode", p.Mode, "error", err)
			continue
		}

		ms := summary.Modes[p.Mode]
		ms.Total++
		switch p.Status {
		case domain.ProgramActive:
			ms.Active++
		case domain.ProgramCompleted:
			ms.Completed++
		}
		ms.Programs = append(ms.Programs, lp)
		summary.TotalXP += p.XPEarned
	}
	return summary, nil
}
