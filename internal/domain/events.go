package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event is a fact recorded after a lifecycle change has been committed.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	// AggregateID is the id of the Program the event belongs to.
	AggregateID() string
	LearnerID() string
}

// Event type names.
const (
	EventProgramStarted     = "program.started"
	EventTaskCompleted      = "task.completed"
	EventLevelReached       = "program.level_reached"
	EventProgramCompleted   = "program.completed"
	EventProgramAbandoned   = "program.abandoned"
	EventEvaluationRecorded = "evaluation.recorded"
)

// BaseEvent provides common event fields.
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ProgramID string    `json:"program_id"`
	Learner   string    `json:"learner_id"`
	Mode      Mode      `json:"mode"`
}

// NewBaseEvent stamps a new event for program.
func NewBaseEvent(eventType string, p *Program, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: at,
		ProgramID: p.ID,
		Learner:   p.LearnerID,
		Mode:      p.Mode,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.ProgramID }
func (e BaseEvent) LearnerID() string     { return e.Learner }

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events.
type EventHandler func(event Event)

// EventDispatcher fans events out to subscribers synchronously.
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler
}

// NewEventDispatcher creates an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for one event type.
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish delivers event to its type-specific handlers and then to the
// catch-all handlers. A nil dispatcher drops the event.
func (d *EventDispatcher) Publish(event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	typed := append([]EventHandler(nil), d.handlers[event.EventType()]...)
	all := append([]EventHandler(nil), d.allHandlers...)
	d.mu.RUnlock()

	for _, h := range typed {
		h(event)
	}
	for _, h := range all {
		h(event)
	}
}

// PublishAll delivers events in order.
func (d *EventDispatcher) PublishAll(events []Event) {
	for _, event := range events {
		d.Publish(event)
	}
}

// -----------------------------------------------------------------------------
// Program Events
// -----------------------------------------------------------------------------

// ProgramStartedEvent is published when a learner starts a scenario.
type ProgramStartedEvent struct {
	BaseEvent
	ScenarioID string `json:"scenario_id"`
	TaskCount  int    `json:"task_count"`
}

func NewProgramStartedEvent(p *Program, at time.Time) ProgramStartedEvent {
	return ProgramStartedEvent{
		BaseEvent:  NewBaseEvent(EventProgramStarted, p, at),
		ScenarioID: p.ScenarioID,
		TaskCount:  p.TotalTaskCount,
	}
}

// TaskCompletedEvent is published when a task reaches completed.
type TaskCompletedEvent struct {
	BaseEvent
	TaskID   string  `json:"task_id"`
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
	XPEarned int     `json:"xp_earned,omitempty"`
}

func NewTaskCompletedEvent(p *Program, t *Task, xp int, at time.Time) TaskCompletedEvent {
	return TaskCompletedEvent{
		BaseEvent: NewBaseEvent(EventTaskCompleted, p, at),
		TaskID:    t.ID,
		Index:     t.Index,
		Score:     t.Score,
		XPEarned:  xp,
	}
}

// LevelReachedEvent is published when a discovery learner levels up.
type LevelReachedEvent struct {
	BaseEvent
	OldLevel       int      `json:"old_level"`
	NewLevel       int      `json:"new_level"`
	UnlockedSkills []string `json:"unlocked_skills,omitempty"`
}

func NewLevelReachedEvent(p *Program, oldLevel, newLevel int, unlocked []string, at time.Time) LevelReachedEvent {
	return LevelReachedEvent{
		BaseEvent:      NewBaseEvent(EventLevelReached, p, at),
		OldLevel:       oldLevel,
		NewLevel:       newLevel,
		UnlockedSkills: unlocked,
	}
}

// ProgramCompletedEvent is published after the program evaluation is stored.
type ProgramCompletedEvent struct {
	BaseEvent
	EvaluationID string  `json:"evaluation_id"`
	Score        float64 `json:"score"`
	Passed       *bool   `json:"passed,omitempty"`
}

func NewProgramCompletedEvent(p *Program, e *Evaluation, passed *bool, at time.Time) ProgramCompletedEvent {
	return ProgramCompletedEvent{
		BaseEvent:    NewBaseEvent(EventProgramCompleted, p, at),
		EvaluationID: e.ID,
		Score:        e.Score,
		Passed:       passed,
	}
}

// ProgramAbandonedEvent is published when a learner abandons a program.
type ProgramAbandonedEvent struct {
	BaseEvent
	CompletedTasks int `json:"completed_tasks"`
}

func NewProgramAbandonedEvent(p *Program, at time.Time) ProgramAbandonedEvent {
	return ProgramAbandonedEvent{
		BaseEvent:      NewBaseEvent(EventProgramAbandoned, p, at),
		CompletedTasks: p.CompletedTaskCount,
	}
}

// EvaluationRecordedEvent is published for every stored evaluation.
type EvaluationRecordedEvent struct {
	BaseEvent
	EvaluationID string         `json:"evaluation_id"`
	TaskID       string         `json:"task_id,omitempty"`
	Kind         EvaluationType `json:"kind"`
	Score        float64        `json:"score"`
}

func NewEvaluationRecordedEvent(p *Program, e *Evaluation, at time.Time) EvaluationRecordedEvent {
	return EvaluationRecordedEvent{
		BaseEvent:    NewBaseEvent(EventEvaluationRecorded, p, at),
		EvaluationID: e.ID,
		TaskID:       e.TaskID,
		Kind:         e.Type,
		Score:        e.Score,
	}
}
