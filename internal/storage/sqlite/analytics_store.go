package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// AnalyticsEvent is a recorded domain event.
type AnalyticsEvent struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	ProgramID string          `json:"program_id,omitempty"`
	LearnerID string          `json:"learner_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// FromEvent converts a domain event into its stored form.
func FromEvent(e domain.Event) (AnalyticsEvent, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return AnalyticsEvent{}, fmt.Errorf("marshal event: %w", err)
	}
	return AnalyticsEvent{
		EventID:   e.EventID().String(),
		EventType: e.EventType(),
		ProgramID: e.AggregateID(),
		LearnerID: e.LearnerID(),
		Data:      data,
		CreatedAt: e.OccurredAt(),
	}, nil
}

// AnalyticsStore provides analytics event recording backed by SQLite.
type AnalyticsStore struct {
	db *DB
}

// NewAnalyticsStore creates a new SQLite-backed analytics store.
func NewAnalyticsStore(db *DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

// Record stores an event. Recording the same event ID twice is a no-op, so
// redelivered queue messages are safe.
func (s *AnalyticsStore) Record(ctx context.Context, e AnalyticsEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if len(e.Data) == 0 {
		e.Data = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO analytics_events (event_id, event_type, program_id, learner_id, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullString(e.EventID), e.EventType, nullString(e.ProgramID), nullString(e.LearnerID),
		string(e.Data), e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

// RecordEvent stores a domain event.
func (s *AnalyticsStore) RecordEvent(ctx context.Context, e domain.Event) error {
	ae, err := FromEvent(e)
	if err != nil {
		return err
	}
	return s.Record(ctx, ae)
}

// Handler returns a dispatcher subscriber that records every event.
// Failures are logged; analytics never fail a learner operation.
func (s *AnalyticsStore) Handler(logger *slog.Logger) domain.EventHandler {
	return func(e domain.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.RecordEvent(ctx, e); err != nil {
			logger.Warn("failed to record analytics event",
				"event_type", e.EventType(), "program_id", e.AggregateID(), "error", err)
		}
	}
}

// Query returns events of eventType, optionally filtered by program and time
// range, newest first.
func (s *AnalyticsStore) Query(ctx context.Context, eventType, programID string, since, until time.Time) ([]AnalyticsEvent, error) {
	query := `SELECT id, event_id, event_type, program_id, learner_id, data, created_at
		FROM analytics_events WHERE event_type = ?`
	args := []any{eventType}

	if programID != "" {
		query += " AND program_id = ?"
		args = append(args, programID)
	}
	if !since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, since.UTC())
	}
	if !until.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, until.UTC())
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}
	defer rows.Close()

	var events []AnalyticsEvent
	for rows.Next() {
		var e AnalyticsEvent
		var eventID, programID, learnerID *string
		var data string
		if err := rows.Scan(&e.ID, &eventID, &e.EventType, &programID, &learnerID, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analytics event: %w", err)
		}
		if eventID != nil {
			e.EventID = *eventID
		}
		if programID != nil {
			e.ProgramID = *programID
		}
		if learnerID != nil {
			e.LearnerID = *learnerID
		}
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of events of eventType.
func (s *AnalyticsStore) Count(ctx context.Context, eventType string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM analytics_events WHERE event_type = ?", eventType,
	).Scan(&count)
	return count, err
}

// Prune deletes events older than the given duration.
func (s *AnalyticsStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	result, err := s.db.ExecContext(ctx, "DELETE FROM analytics_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune analytics: %w", err)
	}
	return result.RowsAffected()
}
