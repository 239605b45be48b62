package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// ScenarioRepo is an in-memory domain.ScenarioRepository.
type ScenarioRepo struct {
	mu        sync.RWMutex
	scenarios map[string]*domain.Scenario
}

// NewScenarioRepo seeds a repository with scenarios.
func NewScenarioRepo(scenarios ...*domain.Scenario) *ScenarioRepo {
	r := &ScenarioRepo{scenarios: make(map[string]*domain.Scenario)}
	for _, s := range scenarios {
		r.scenarios[s.ID] = s
	}
	return r
}

func (r *ScenarioRepo) FindByID(ctx context.Context, id string) (*domain.Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scenarios[id]
	if !ok {
		return nil, domain.ErrScenarioNotFound
	}
	return s, nil
}

func (r *ScenarioRepo) Save(ctx context.Context, s *domain.Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios[s.ID] = s
	return nil
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
