package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testProgram() *Program {
	return &Program{ID: "prog-1", LearnerID: "learner-1", Mode: ModeDiscovery}
}

func TestBaseEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	event := NewBaseEvent(EventProgramStarted, testProgram(), at)

	if event.EventID() == uuid.Nil {
		t.Error("EventID() should not be nil")
	}
	if event.EventType() != EventProgramStarted {
		t.Errorf("EventType() = %q, want %q", event.EventType(), EventProgramStarted)
	}
	if !event.OccurredAt().Equal(at) {
		t.Errorf("OccurredAt() = %v, want %v", event.OccurredAt(), at)
	}
	if event.AggregateID() != "prog-1" {
		t.Errorf("AggregateID() = %q, want prog-1", event.AggregateID())
	}
	if event.LearnerID() != "learner-1" {
		t.Errorf("LearnerID() = %q, want learner-1", event.LearnerID())
	}
}

func TestEventDispatcher(t *testing.T) {
	t.Run("typed and catch-all handlers", func(t *testing.T) {
		d := NewEventDispatcher()
		var typed, all []string

		d.Subscribe(EventTaskCompleted, func(e Event) { typed = append(typed, e.EventType()) })
		d.SubscribeAll(func(e Event) { all = append(all, e.EventType()) })

		p := testProgram()
		d.PublishAll([]Event{
			NewProgramStartedEvent(p, time.Now()),
			NewTaskCompletedEvent(p, &Task{ID: "t1"}, 50, time.Now()),
		})

		if len(typed) != 1 || typed[0] != EventTaskCompleted {
			t.Errorf("typed handlers got %v, want [%s]", typed, EventTaskCompleted)
		}
		if len(all) != 2 {
			t.Errorf("catch-all handler got %d events, want 2", len(all))
		}
	})

	t.Run("nil dispatcher drops events", func(t *testing.T) {
		var d *EventDispatcher
		d.Publish(NewProgramStartedEvent(testProgram(), time.Now()))
	})

	t.Run("handler may subscribe during publish", func(t *testing.T) {
		d := NewEventDispatcher()
		d.SubscribeAll(func(e Event) {
			d.Subscribe("late", func(Event) {})
		})
		d.Publish(NewProgramStartedEvent(testProgram(), time.Now()))
	})

	t.Run("concurrent publish", func(t *testing.T) {
		d := NewEventDispatcher()
		var mu sync.Mutex
		count := 0
		d.SubscribeAll(func(Event) {
			mu.Lock()
			count++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.Publish(NewProgramStartedEvent(testProgram(), time.Now()))
			}()
		}
		wg.Wait()

		if count != 20 {
			t.Errorf("handler called %d times, want 20", count)
		}
	})
}
