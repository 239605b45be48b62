package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/felixgeelhaar/pathway/internal/config"
	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/lifecycle"
	"github.com/felixgeelhaar/pathway/internal/progress"
	"github.com/felixgeelhaar/pathway/internal/router"
	"github.com/felixgeelhaar/pathway/internal/storage/sqlite"
)

// Version is reported by the status endpoint.
var Version = "dev"

// Engine is the lifecycle surface served over HTTP. *router.Router
// implements it.
type Engine interface {
	StartLearning(ctx context.Context, req lifecycle.StartRequest) (*domain.Program, error)
	GetProgress(ctx context.Context, programID string) (*progress.LearningProgress, error)
	SubmitResponse(ctx context.Context, programID, taskID string, resp domain.Response) (*lifecycle.SubmitResult, error)
	CompleteLearning(ctx context.Context, programID string) (*lifecycle.CompletionResult, error)
	GetNextTask(ctx context.Context, programID string) (*domain.Task, error)
	AbandonLearning(ctx context.Context, programID string) (*domain.Program, error)
	LearnerSummary(ctx context.Context, learnerID string) (*router.LearnerSummary, error)
	Modes() []domain.Mode
}

// Analytics answers event queries. *sqlite.AnalyticsStore implements it.
type Analytics interface {
	Query(ctx context.Context, eventType, programID string, since, until time.Time) ([]sqlite.AnalyticsEvent, error)
}

// Server represents the Pathway daemon HTTP server
type Server struct {
	cfg       *config.Config
	engine    Engine
	analytics Analytics
	ping      func(ctx context.Context) error
	providers func() []string
	logger    *slog.Logger
	limiter   ratelimit.RateLimiter

	router *chi.Mux
	server *http.Server
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config *config.Config
	Engine Engine
	// Analytics is optional; without it the analytics route returns 404.
	Analytics Analytics
	// Ping checks storage for the health endpoint.
	Ping func(ctx context.Context) error
	// Providers lists the registered LLM providers.
	Providers func() []string
	Logger    *slog.Logger
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		cfg:       cfg.Config,
		engine:    cfg.Engine,
		analytics: cfg.Analytics,
		ping:      cfg.Ping,
		providers: cfg.Providers,
		logger:    cfg.Logger,
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.providers == nil {
		s.providers = func() []string { return nil }
	}
	s.limiter = newRateLimiter(s.cfg.Daemon.RateLimitPerMinute)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.cfg.Daemon.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // feedback generation runs inside complete
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(correlationIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoveryMiddleware(s.logger))
	r.Use(cors.Handler(s.corsOptions()))

	r.Route("/v1", func(r chi.Router) {
		// Health & status
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		// Programs
		r.Route("/programs", func(r chi.Router) {
			limited := r.With(rateLimitMiddleware(s.limiter, s.logger))
			limited.Post("/", s.handleStartProgram)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/progress", s.handleGetProgress)
				r.Get("/next-task", s.handleNextTask)
				limited := r.With(rateLimitMiddleware(s.limiter, s.logger))
				limited.Post("/tasks/{taskID}/responses", s.handleSubmitResponse)
				limited.Post("/complete", s.handleComplete)
				limited.Post("/abandon", s.handleAbandon)
			})
		})

		// Learners
		r.Get("/learners/{id}/summary", s.handleLearnerSummary)

		// Analytics
		r.Get("/analytics/events", s.handleAnalyticsEvents)
	})

	s.router = r
}

func (s *Server) corsOptions() cors.Options {
	origins := s.cfg.Daemon.CORSOrigins
	credentials := true
	if len(origins) == 0 {
		origins = []string{"*"}
		credentials = false
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", CorrelationIDHeader},
		ExposedHeaders:   []string{CorrelationIDHeader},
		AllowCredentials: credentials,
		MaxAge:           300,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting pathway daemon",
		"addr", s.server.Addr,
		"llm_providers", s.providers(),
		"storage", s.cfg.Storage.Driver,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")
	err := s.server.Shutdown(ctx)
	if s.limiter != nil {
		if cerr := s.limiter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	if id := GetCorrelationID(r.Context()); id != "" {
		response["request_id"] = id
	}
	s.jsonResponse(w, status, response)
}
