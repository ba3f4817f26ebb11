package ai

import (
	"errors"

	"github.com/hrygo/inkwell/ai/core/llm"
	"github.com/hrygo/inkwell/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	LLM llm.Config
	// SimpleLLM serves titles and summaries. Nil means use LLM.
	SimpleLLM *llm.Config
	Enabled   bool
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{Enabled: p.IsAIEnabled()}
	if !cfg.Enabled {
		return cfg
	}

	cfg.LLM = llm.Config{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     p.LLMTimeout,
	}

	if p.SimpleLLMAPIKey != "" {
		cfg.SimpleLLM = &llm.Config{
			Provider:    p.SimpleLLMProvider,
			Model:       p.SimpleLLMModel,
			APIKey:      p.SimpleLLMAPIKey,
			BaseURL:     p.SimpleLLMBaseURL,
			MaxTokens:   SimpleTaskMaxTokens,
			Temperature: SimpleTaskTemperature,
			Timeout:     SimpleTaskTimeout,
		}
	}
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}
	return nil
}
