// Package app assembles the learning engine from configuration: storage,
// scenario source, locking, feedback generation, event fan-out, the mode
// managers and the router.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/pathway/internal/config"
	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/evaluation"
	"github.com/felixgeelhaar/pathway/internal/lifecycle"
	"github.com/felixgeelhaar/pathway/internal/llm"
	"github.com/felixgeelhaar/pathway/internal/lock"
	"github.com/felixgeelhaar/pathway/internal/progress"
	"github.com/felixgeelhaar/pathway/internal/queue"
	"github.com/felixgeelhaar/pathway/internal/router"
	"github.com/felixgeelhaar/pathway/internal/storage/sqlite"
	"github.com/felixgeelhaar/pathway/internal/taskgen"
)

// App is the assembled engine.
type App struct {
	Config    *config.Config
	Router    *router.Router
	Scenarios domain.ScenarioRepository
	Events    *domain.EventDispatcher
	LLM       *llm.Registry
	// Analytics is set when the storage driver is sqlite.
	Analytics *sqlite.AnalyticsStore
	Logger    *slog.Logger

	ping     func(ctx context.Context) error
	consumer *queue.Consumer
	closers  []func() error
}

// Option configures New.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	clock     func() time.Time
	generator domain.ContentGenerator
	scenarios domain.ScenarioRepository
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithContentGenerator replaces the LLM-backed feedback generator.
func WithContentGenerator(g domain.ContentGenerator) Option {
	return func(o *options) { o.generator = g }
}

// WithScenarios replaces the configured scenario source.
func WithScenarios(r domain.ScenarioRepository) Option {
	return func(o *options) { o.scenarios = r }
}

// New builds the engine. On error every resource opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	o := &options{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	a = &App{Config: cfg, Logger: o.logger, Events: domain.NewEventDispatcher()}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	st, err := openStorage(ctx, cfg.Storage, o.clock)
	if err != nil {
		return a, err
	}
	a.closers = append(a.closers, st.close)
	a.ping = st.ping
	a.Analytics = st.analytics

	a.Scenarios = o.scenarios
	if a.Scenarios == nil {
		if a.Scenarios, err = openScenarios(ctx, cfg.Scenarios, st.scenarios, o.logger); err != nil {
			return a, err
		}
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		return a, err
	}

	generator := o.generator
	a.LLM = llm.NewRegistry()
	a.closers = append(a.closers, a.LLM.Close)
	if generator == nil {
		generator = a.setupLLM(ctx)
	}

	if err := a.setupEvents(ctx); err != nil {
		return a, err
	}

	deps := lifecycle.Deps{
		Scenarios: a.Scenarios,
		Store:     st.uow,
		Generator: taskgen.New(taskgen.WithClock(o.clock)),
		Evaluator: evaluation.NewSystem(evaluation.WithClock(o.clock)),
		Feedback: evaluation.NewFeedbackGenerator(generator, evaluation.FeedbackConfig{
			Timeout:     cfg.Learning.FeedbackTimeout(),
			MaxTokens:   cfg.Learning.FeedbackMaxTokens,
			Temperature: cfg.Learning.FeedbackTemperature,
		}, evaluation.WithFeedbackLogger(o.logger)),
		Progress: progress.NewAggregator(
			progress.WithClock(o.clock),
			progress.WithTaskMinutes(cfg.Learning.ProjectTaskMinutes, cfg.Learning.DiscoveryTaskMinutes),
		),
		Locker: locker,
		Events: a.Events,
		Clock:  o.clock,
		Logger: o.logger,
	}

	a.Router = router.New(a.Scenarios, st.uow.Programs(), []lifecycle.Manager{
		lifecycle.NewAssessmentManager(deps),
		lifecycle.NewProjectManager(deps),
		lifecycle.NewDiscoveryManager(deps),
	}, router.WithLogger(o.logger))

	o.logger.Info("learning engine ready",
		"storage", cfg.Storage.Driver,
		"llm_providers", a.LLM.List(),
		"redis_lock", cfg.Redis.Enabled,
		"rabbitmq", cfg.RabbitMQ.Enabled,
	)
	return a, nil
}

// Ping checks the storage backend.
func (a *App) Ping(ctx context.Context) error {
	if a.ping == nil {
		return nil
	}
	return a.ping(ctx)
}

// Close stops the consumer and releases resources in reverse order.
func (a *App) Close() error {
	if a.consumer != nil {
		a.consumer.Stop()
		a.consumer = nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	rc := a.Config.Redis
	if !rc.Enabled {
		return lock.NewLocalLocker(), nil
	}
	client, err := lock.Dial(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return lock.NewRedisLocker(client, lock.DefaultRedisConfig()), nil
}

// setupLLM registers the configured providers and returns the feedback
// content generator, or nil when no provider is usable.
func (a *App) setupLLM(ctx context.Context) domain.ContentGenerator {
	registerProviders(ctx, a.LLM, a.Config.LLM, a.Logger)
	if len(a.LLM.List()) == 0 {
		a.Logger.Info("no LLM provider configured, using templated feedback")
		return nil
	}
	if err := a.LLM.SetDefault(a.Config.LLM.DefaultProvider); err != nil {
		a.Logger.Warn("default LLM provider unavailable", "provider", a.Config.LLM.DefaultProvider, "error", err)
	}
	provider, err := a.LLM.Default()
	if err != nil {
		a.Logger.Warn("no default LLM provider", "error", err)
		return nil
	}

	rc := llm.DefaultResilientConfig()
	rc.Logger = a.Logger
	return llm.NewContentGenerator(llm.NewResilientProvider(provider, rc))
}

// setupEvents subscribes the event sinks: debug logging, analytics and the
// RabbitMQ publisher. When the consumer runs, analytics are recorded from the
// queue instead of in-process.
func (a *App) setupEvents(ctx context.Context) error {
	logger := a.Logger
	a.Events.SubscribeAll(func(e domain.Event) {
		logger.Debug("domain event",
			"event_type", e.EventType(),
			"event_id", e.EventID(),
			"program_id", e.AggregateID(),
			"learner_id", e.LearnerID(),
		)
	})

	rc := a.Config.RabbitMQ
	consume := rc.Enabled && rc.Consume && a.Analytics != nil
	if a.Analytics != nil && !consume {
		a.Events.SubscribeAll(a.Analytics.Handler(logger))
	}
	if !rc.Enabled {
		return nil
	}

	conn, err := queue.NewConnection(rc.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	a.closers = append(a.closers, conn.Close)
	a.Events.SubscribeAll(queue.NewProducer(conn, logger).Handler())

	if consume {
		a.consumer = queue.NewConsumer(conn, recordMessage(a.Analytics), queue.ConsumerConfig{Logger: logger})
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start event consumer: %w", err)
		}
	}
	return nil
}

// recordMessage stores a consumed event in the analytics table.
func recordMessage(store *sqlite.AnalyticsStore) queue.EventHandler {
	return func(ctx context.Context, msg *queue.EventMessage) error {
		return store.Record(ctx, sqlite.AnalyticsEvent{
			EventID:   msg.EventID,
			EventType: msg.EventType,
			ProgramID: msg.ProgramID,
			LearnerID: msg.LearnerID,
			Data:      msg.Payload,
			CreatedAt: msg.OccurredAt,
		})
	}
}
