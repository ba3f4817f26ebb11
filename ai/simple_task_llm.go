package ai

import (
	"log/slog"

	"github.com/hrygo/inkwell/ai/core/llm"
)

// Configuration defaults for simple LLM tasks.
const (
	SimpleTaskMaxTokens   = 1024
	SimpleTaskTemperature = 0.3
	SimpleTaskTimeout     = 30 // seconds
)

// NewSimpleTaskLLMService returns the service used for titles and summaries:
// a dedicated lightweight model when configured, otherwise mainLLM.
func NewSimpleTaskLLMService(cfg *Config, mainLLM llm.Service) llm.Service {
	if cfg == nil || cfg.SimpleLLM == nil {
		return mainLLM
	}

	svc, err := llm.NewService(cfg.SimpleLLM)
	if err != nil {
		slog.Warn("Failed to create simple task LLM service, falling back to main LLM",
			"provider", cfg.SimpleLLM.Provider,
			"model", cfg.SimpleLLM.Model,
			"error", err,
		)
		return mainLLM
	}

	slog.Info("Simple task LLM service initialized",
		"provider", cfg.SimpleLLM.Provider,
		"model", cfg.SimpleLLM.Model,
	)
	return svc
}
