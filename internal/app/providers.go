package app

import (
	"context"
	"log/slog"
	"sort"

	"github.com/felixgeelhaar/pathway/internal/config"
	"github.com/felixgeelhaar/pathway/internal/llm"
)

// registerProviders adds every enabled provider that has the credentials it
// needs. Providers that fail to construct are logged and skipped.
func registerProviders(ctx context.Context, registry *llm.Registry, cfg config.LLMConfig, logger *slog.Logger) {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := cfg.Providers[name]
		if pc == nil || !pc.Enabled {
			continue
		}
		if pc.APIKey == "" && name != "ollama" {
			logger.Debug("LLM provider enabled but no API key set", "name", name)
			continue
		}

		var (
			provider llm.Provider
			err      error
		)
		switch name {
		case "claude":
			provider, err = llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey:  pc.APIKey,
				BaseURL: pc.URL,
				Model:   pc.Model,
			})
		case "openai":
			provider, err = llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey:  pc.APIKey,
				BaseURL: pc.URL,
				Model:   pc.Model,
			})
		case "gemini":
			provider, err = llm.NewGeminiProvider(ctx, llm.GeminiConfig{
				APIKey: pc.APIKey,
				Model:  pc.Model,
			})
		case "ollama":
			provider = llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: pc.URL,
				Model:   pc.Model,
			})
		default:
			logger.Warn("unknown LLM provider", "name", name)
			continue
		}
		if err != nil {
			logger.Warn("failed to create LLM provider", "name", name, "error", err)
			continue
		}

		registry.Register(name, provider)
		logger.Info("registered LLM provider", "name", name, "model", pc.Model)
	}
}
