package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/lifecycle"
	"github.com/felixgeelhaar/pathway/internal/lock"
)

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrScenarioNotFound),
		errors.Is(err, domain.ErrProgramNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrEvaluationNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrTaskCompleted),
		errors.Is(err, domain.ErrProgramNotActive),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, lock.ErrLockTimeout):
		return http.StatusConflict
	case errors.Is(err, domain.ErrModeMismatch),
		errors.Is(err, domain.ErrScenarioDataMissing),
		errors.Is(err, domain.ErrTaskNotActive),
		errors.Is(err, domain.ErrTaskNotInProgram),
		errors.Is(err, domain.ErrUnknownMode),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) engineError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(message,
			"correlation_id", GetCorrelationID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	s.jsonError(w, r, status, message, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// Health & status

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	resp := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
			resp["error"] = err.Error()
		}
	}
	resp["status"] = status
	s.jsonResponse(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var modes []domain.Mode
	if s.engine != nil {
		modes = s.engine.Modes()
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":        "running",
		"version":       Version,
		"storage":       s.cfg.Storage.Driver,
		"modes":         modes,
		"llm_providers": s.providers(),
	})
}

// Program handlers

func (s *Server) handleStartProgram(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.StartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req.LearnerID = strings.TrimSpace(req.LearnerID)
	req.ScenarioID = strings.TrimSpace(req.ScenarioID)
	if req.LearnerID == "" || req.ScenarioID == "" {
		s.jsonError(w, r, http.StatusBadRequest, "learner_id and scenario_id are required", nil)
		return
	}
	if req.Language == "" {
		req.Language = s.cfg.Learning.DefaultLanguage
	}

	p, err := s.engine.StartLearning(r.Context(), req)
	if err != nil {
		s.engineError(w, r, "failed to start program", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, p)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	lp, err := s.engine.GetProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.engineError(w, r, "failed to get progress", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, lp)
}

func (s *Server) handleNextTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.engine.GetNextTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.engineError(w, r, "failed to get next task", err)
		return
	}
	if task == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.jsonResponse(w, http.StatusOK, task)
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var resp domain.Response
	if err := decodeJSON(w, r, &resp); err != nil {
		s.jsonError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if resp.TimeSpentSeconds < 0 {
		s.jsonError(w, r, http.StatusBadRequest, "time_spent_seconds must not be negative", nil)
		return
	}

	result, err := s.engine.SubmitResponse(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskID"), resp)
	if err != nil {
		s.engineError(w, r, "failed to submit response", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.CompleteLearning(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.engineError(w, r, "failed to complete program", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.AbandonLearning(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.engineError(w, r, "failed to abandon program", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

// Learner handlers

func (s *Server) handleLearnerSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.LearnerSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.engineError(w, r, "failed to summarize learner", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

// Analytics handlers

func (s *Server) handleAnalyticsEvents(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		s.jsonError(w, r, http.StatusNotFound, "analytics are not enabled", nil)
		return
	}

	q := r.URL.Query()
	eventType := q.Get("type")
	if eventType == "" {
		s.jsonError(w, r, http.StatusBadRequest, "type is required", nil)
		return
	}
	var since, until time.Time
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &since}, {"until", &until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.jsonError(w, r, http.StatusBadRequest, "invalid "+p.name, err)
			return
		}
		*p.dst = t
	}

	events, err := s.analytics.Query(r.Context(), eventType, q.Get("program_id"), since, until)
	if err != nil {
		s.engineError(w, r, "failed to query analytics", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"type":   eventType,
		"count":  len(events),
		"events": events,
	})
}
