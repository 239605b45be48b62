package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sqlc-dev/pqtype"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// -----------------------------------------------------------------------------
// Program Mappers
// -----------------------------------------------------------------------------

func mapProgramToRow(p *domain.Program) (ProgramRow, error) {
	domainScores, err := marshalObject(p.DomainScores)
	if err != nil {
		return ProgramRow{}, fmt.Errorf("encode domain scores: %w", err)
	}
	extension, err := marshalNullable(p.Extension)
	if err != nil {
		return ProgramRow{}, fmt.Errorf("encode program extension: %w", err)
	}
	badges := p.Badges
	if badges == nil {
		badges = []string{}
	}
	return ProgramRow{
		ID:                 p.ID,
		LearnerID:          p.LearnerID,
		ScenarioID:         p.ScenarioID,
		Mode:               string(p.Mode),
		Status:             string(p.Status),
		Language:           p.Language,
		CurrentTaskIndex:   int32(p.CurrentTaskIndex),
		CompletedTaskCount: int32(p.CompletedTaskCount),
		TotalTaskCount:     int32(p.TotalTaskCount),
		TotalScore:         p.TotalScore,
		DomainScores:       domainScores,
		XpEarned:           int32(p.XPEarned),
		Badges:             badges,
		TimeSpentSeconds:   int32(p.TimeSpentSeconds),
		Extension:          extension,
		CreatedAt:          p.CreatedAt,
		StartedAt:          ptrToNullTime(p.StartedAt),
		CompletedAt:        ptrToNullTime(p.CompletedAt),
		LastActivityAt:     p.LastActivityAt,
		Version:            int32(p.Version),
	}, nil
}

func mapProgramFromRow(r ProgramRow) (*domain.Program, error) {
	p := &domain.Program{
		ID:                 r.ID,
		LearnerID:          r.LearnerID,
		ScenarioID:         r.ScenarioID,
		Mode:               domain.Mode(r.Mode),
		Status:             domain.ProgramStatus(r.Status),
		Language:           r.Language,
		CurrentTaskIndex:   int(r.CurrentTaskIndex),
		CompletedTaskCount: int(r.CompletedTaskCount),
		TotalTaskCount:     int(r.TotalTaskCount),
		TotalScore:         r.TotalScore,
		XPEarned:           int(r.XpEarned),
		Badges:             r.Badges,
		TimeSpentSeconds:   int(r.TimeSpentSeconds),
		CreatedAt:          r.CreatedAt,
		StartedAt:          nullTimeToPtr(r.StartedAt),
		CompletedAt:        nullTimeToPtr(r.CompletedAt),
		LastActivityAt:     r.LastActivityAt,
		Version:            int(r.Version),
	}
	if len(p.Badges) == 0 {
		p.Badges = nil
	}
	if err := unmarshalRaw(r.DomainScores, &p.DomainScores); err != nil {
		return nil, fmt.Errorf("decode domain scores: %w", err)
	}
	if p.DomainScores == nil {
		p.DomainScores = map[string]float64{}
	}
	if err := unmarshalNullable(r.Extension, &p.Extension); err != nil {
		return nil, fmt.Errorf("decode program extension: %w", err)
	}
	return p, nil
}

// -----------------------------------------------------------------------------
// Task Mappers
// -----------------------------------------------------------------------------

func mapTaskToRow(t *domain.Task) (TaskRow, error) {
	title, err := marshalObject(t.Title)
	if err != nil {
		return TaskRow{}, fmt.Errorf("encode task title: %w", err)
	}
	content, err := json.Marshal(t.Content)
	if err != nil {
		return TaskRow{}, fmt.Errorf("encode task content: %w", err)
	}
	interactions, err := marshalInteractions(t.Interactions)
	if err != nil {
		return TaskRow{}, err
	}
	extension, err := marshalNullable(t.Extension)
	if err != nil {
		return TaskRow{}, fmt.Errorf("encode task extension: %w", err)
	}
	ksa := t.Content.KSACodes
	if ksa == nil {
		ksa = []string{}
	}
	return TaskRow{
		ID:               t.ID,
		ProgramID:        t.ProgramID,
		TaskIndex:        int32(t.Index),
		Type:             t.Type,
		Title:            title,
		Status:           string(t.Status),
		Content:          content,
		Interactions:     interactions,
		KsaCodes:         ksa,
		Score:            t.Score,
		MaxScore:         t.MaxScore,
		AttemptCount:     int32(t.AttemptCount),
		AllowedAttempts:  int32(t.AllowedAttempts),
		TimeSpentSeconds: int32(t.TimeSpentSeconds),
		Extension:        extension,
		CreatedAt:        t.CreatedAt,
		StartedAt:        ptrToNullTime(t.StartedAt),
		CompletedAt:      ptrToNullTime(t.CompletedAt),
		UpdatedAt:        t.UpdatedAt,
		Version:          int32(t.Version),
	}, nil
}

func mapTaskFromRow(r TaskRow) (*domain.Task, error) {
	t := &domain.Task{
		ID:               r.ID,
		ProgramID:        r.ProgramID,
		Index:            int(r.TaskIndex),
		Type:             r.Type,
		Status:           domain.TaskStatus(r.Status),
		Score:            r.Score,
		MaxScore:         r.MaxScore,
		AttemptCount:     int(r.AttemptCount),
		AllowedAttempts:  int(r.AllowedAttempts),
		TimeSpentSeconds: int(r.TimeSpentSeconds),
		CreatedAt:        r.CreatedAt,
		StartedAt:        nullTimeToPtr(r.StartedAt),
		CompletedAt:      nullTimeToPtr(r.CompletedAt),
		UpdatedAt:        r.UpdatedAt,
		Version:          int(r.Version),
	}
	if err := unmarshalRaw(r.Title, &t.Title); err != nil {
		return nil, fmt.Errorf("decode task title: %w", err)
	}
	if err := unmarshalRaw(r.Content, &t.Content); err != nil {
		return nil, fmt.Errorf("decode task content: %w", err)
	}
	if err := unmarshalRaw(r.Interactions, &t.Interactions); err != nil {
		return nil, fmt.Errorf("decode interactions: %w", err)
	}
	if t.Interactions == nil {
		t.Interactions = []domain.Interaction{}
	}
	if err := unmarshalNullable(r.Extension, &t.Extension); err != nil {
		return nil, fmt.Errorf("decode task extension: %w", err)
	}
	return t, nil
}

func marshalInteractions(list []domain.Interaction) (json.RawMessage, error) {
	if list == nil {
		list = []domain.Interaction{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode interactions: %w", err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------
// Evaluation Mappers
// -----------------------------------------------------------------------------

func mapEvaluationToRow(e *domain.Evaluation) (EvaluationRow, error) {
	domainScores, err := marshalObject(e.DomainScores)
	if err != nil {
		return EvaluationRow{}, fmt.Errorf("encode domain scores: %w", err)
	}
	feedbackData, err := marshalNullable(e.FeedbackData)
	if err != nil {
		return EvaluationRow{}, fmt.Errorf("encode feedback data: %w", err)
	}
	metadata, err := marshalNullable(e.Metadata)
	if err != nil {
		return EvaluationRow{}, fmt.Errorf("encode evaluation metadata: %w", err)
	}
	return EvaluationRow{
		ID:           e.ID,
		ProgramID:    e.ProgramID,
		TaskID:       stringToNullString(e.TaskID),
		LearnerID:    e.LearnerID,
		Mode:         string(e.Mode),
		Type:         string(e.Type),
		Score:        e.Score,
		MaxScore:     e.MaxScore,
		DomainScores: domainScores,
		FeedbackText: e.FeedbackText,
		FeedbackData: feedbackData,
		Metadata:     metadata,
		CreatedAt:    e.CreatedAt,
	}, nil
}

func mapEvaluationFromRow(r EvaluationRow) (*domain.Evaluation, error) {
	e := &domain.Evaluation{
		ID:           r.ID,
		ProgramID:    r.ProgramID,
		TaskID:       nullStringValue(r.TaskID),
		LearnerID:    r.LearnerID,
		Mode:         domain.Mode(r.Mode),
		Type:         domain.EvaluationType(r.Type),
		Score:        r.Score,
		MaxScore:     r.MaxScore,
		FeedbackText: r.FeedbackText,
		CreatedAt:    r.CreatedAt,
	}
	if err := unmarshalRaw(r.DomainScores, &e.DomainScores); err != nil {
		return nil, fmt.Errorf("decode domain scores: %w", err)
	}
	if e.DomainScores == nil {
		e.DomainScores = map[string]float64{}
	}
	if err := unmarshalNullable(r.FeedbackData, &e.FeedbackData); err != nil {
		return nil, fmt.Errorf("decode feedback data: %w", err)
	}
	if err := unmarshalNullable(r.Metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode evaluation metadata: %w", err)
	}
	return e, nil
}

// -----------------------------------------------------------------------------
// Scenario Mappers
// -----------------------------------------------------------------------------

func mapScenarioToRow(s *domain.Scenario) (ScenarioRow, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return ScenarioRow{}, fmt.Errorf("encode scenario: %w", err)
	}
	return ScenarioRow{
		ID:        s.ID,
		Mode:      string(s.Mode),
		Document:  doc,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}, nil
}

func mapScenarioFromRow(r ScenarioRow) (*domain.Scenario, error) {
	var s domain.Scenario
	if err := json.Unmarshal(r.Document, &s); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", r.ID, err)
	}
	s.CreatedAt = r.CreatedAt
	s.UpdatedAt = r.UpdatedAt
	return &s, nil
}

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

// marshalObject encodes v, writing {} for nil maps.
func marshalObject(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return json.RawMessage("{}"), nil
	}
	return data, nil
}

func marshalNullable(v any) (pqtype.NullRawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func unmarshalRaw(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func unmarshalNullable(n pqtype.NullRawMessage, v any) error {
	if !n.Valid {
		return nil
	}
	return unmarshalRaw(n.RawMessage, v)
}

func stringToNullString(s string) sql.NullString {
	if s != "" {
		return sql.NullString{String: s, Valid: true}
	}
	return sql.NullString{}
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullTimeToPtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func ptrToNullTime(t *time.Time) sql.NullTime {
	if t != nil {
		return sql.NullTime{Time: *t, Valid: true}
	}
	return sql.NullTime{}
}
