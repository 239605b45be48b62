package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// FeedbackConfig controls the generated-feedback request.
type FeedbackConfig struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// DefaultFeedbackConfig returns the settings used when none are configured.
func DefaultFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{
		Timeout:     10 * time.Second,
		MaxTokens:   500,
		Temperature: 0.7,
	}
}

// FeedbackGenerator renders an Evaluation into learner-facing text through an
// external content generator. Any failure yields the evaluation's stored
// feedback text; requests are never retried.
type FeedbackGenerator struct {
	generator domain.ContentGenerator
	cfg       FeedbackConfig
	logger    *slog.Logger
}

// FeedbackOption configures a FeedbackGenerator.
type FeedbackOption func(*FeedbackGenerator)

// WithFeedbackLogger sets the logger.
func WithFeedbackLogger(l *slog.Logger) FeedbackOption {
	return func(g *FeedbackGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewFeedbackGenerator creates a FeedbackGenerator. A nil generator always
// produces the stored feedback text.
func NewFeedbackGenerator(generator domain.ContentGenerator, cfg FeedbackConfig, opts ...FeedbackOption) *FeedbackGenerator {
	def := DefaultFeedbackConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	g := &FeedbackGenerator{generator: generator, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type contentResult struct {
	resp *domain.ContentResponse
	err  error
}

// Generate returns feedback for ev in lang. It returns within the configured
// timeout even when the content generator ignores cancellation.
func (g *FeedbackGenerator) Generate(ctx context.Context, ev *domain.Evaluation, lang string) string {
	if g == nil || g.generator == nil {
		return ev.FeedbackText
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req := domain.ContentRequest{
		Prompt:      BuildFeedbackPrompt(ev, lang),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan contentResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- contentResult{err: fmt.Errorf("generator panicked: %v", r)}
			}
		}()
		resp, err := g.generator.GenerateContent(ctx, req)
		done <- contentResult{resp: resp, err: err}
	}()

	var res contentResult
	select {
	case res = <-done:
	case <-ctx.Done():
		g.logger.Warn("feedback generation timed out, using stored feedback",
			"evaluation_id", ev.ID, "timeout", g.cfg.Timeout)
		return ev.FeedbackText
	}

	if res.err == nil && ctx.Err() != nil {
		res.err = ctx.Err()
	}
	if res.err != nil {
		g.logger.Warn("feedback generation failed, using stored feedback",
			"evaluation_id", ev.ID, "error", res.err)
		return ev.FeedbackText
	}
	if res.resp == nil || strings.TrimSpace(res.resp.Content) == "" {
		g.logger.Warn("feedback generation returned empty content", "evaluation_id", ev.ID)
		return ev.FeedbackText
	}
	return strings.TrimSpace(res.resp.Content)
}

// BuildFeedbackPrompt constructs the prompt sent to the content generator.
func BuildFeedbackPrompt(ev *domain.Evaluation, lang string) string {
	lang = domain.NormalizeLanguage(lang)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a supportive learning coach. Write short, encouraging feedback in %s for a learner.\n\n", languageNames[lang])
	fmt.Fprintf(&b, "Learning mode: %s\n", ev.Mode)
	fmt.Fprintf(&b, "Overall score: %s/%s (%s)\n", formatScore(ev.Score), formatScore(ev.MaxScore), TierWord("en", TierFor(ev.Score)))

	if len(ev.DomainScores) > 0 {
		dims := make([]string, 0, len(ev.DomainScores))
		for d := range ev.DomainScores {
			dims = append(dims, d)
		}
		sort.Strings(dims)
		b.WriteString("Scores by area:\n")
		for _, d := range dims {
			fmt.Fprintf(&b, "- %s: %s\n", d, formatScore(ev.DomainScores[d]))
		}
	}
	if ev.FeedbackData.TotalTasks > 0 {
		fmt.Fprintf(&b, "Tasks completed: %d of %d\n", ev.FeedbackData.CompletedTasks, ev.FeedbackData.TotalTasks)
	}
	if ev.FeedbackData.TimeSpentSeconds > 0 {
		fmt.Fprintf(&b, "Time spent: %d minutes\n", ev.FeedbackData.TimeSpentSeconds/60)
	}
	if ev.Metadata.XPEarned > 0 {
		fmt.Fprintf(&b, "Experience earned: %d XP\n", ev.Metadata.XPEarned)
	}

	b.WriteString("\nName one strength and one concrete next step. Keep it under 120 words.")
	return b.String()
}
