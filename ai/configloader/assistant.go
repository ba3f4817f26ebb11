package configloader

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"
)

// AssistantFile is the assistant config file name under the loader base dir.
const AssistantFile = "assistant.yaml"

// ModeConfig tunes one conversation mode.
type ModeConfig struct {
	StepBudget      int      `yaml:"step_budget"`
	Temperature     *float32 `yaml:"temperature,omitempty"`
	MaxOutputTokens int      `yaml:"max_output_tokens,omitempty"`
	// SystemPrompt is appended to the base prompt for this mode.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// AssistantConfig is the parsed assistant.yaml.
type AssistantConfig struct {
	SystemPrompt string                `yaml:"system_prompt"`
	Modes        map[string]ModeConfig `yaml:"modes"`
}

// Mode returns the config for mode, falling back to the compiled-in defaults
// for missing values.
func (c *AssistantConfig) Mode(mode string) ModeConfig {
	def := DefaultAssistantConfig().Modes[mode]
	mc, ok := c.Modes[mode]
	if !ok {
		mc = def
	}
	if mc.StepBudget <= 0 {
		mc.StepBudget = def.StepBudget
	}
	if mc.StepBudget <= 0 {
		mc.StepBudget = 1
	}
	if mc.Temperature == nil {
		mc.Temperature = def.Temperature
	}
	if mc.SystemPrompt == "" {
		mc.SystemPrompt = def.SystemPrompt
	}
	return mc
}

// LoadAssistant loads the assistant config from subPath, AssistantFile when
// empty. A missing file yields the defaults; a malformed one is an error.
func (l *Loader) LoadAssistant(subPath string) (*AssistantConfig, error) {
	cfg := DefaultAssistantConfig()
	if l == nil {
		return cfg, nil
	}
	if subPath == "" {
		subPath = AssistantFile
	}
	if err := l.Load(subPath, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("assistant config not found, using defaults", "base_dir", l.baseDir)
			return DefaultAssistantConfig(), nil
		}
		return nil, err
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultAssistantConfig().SystemPrompt
	}
	return cfg, nil
}

func float32Ptr(v float32) *float32 { return &v }

// DefaultAssistantConfig returns the compiled-in configuration.
func DefaultAssistantConfig() *AssistantConfig {
	return &AssistantConfig{
		SystemPrompt: defaultSystemPrompt,
		Modes: map[string]ModeConfig{
			"ask": {
				StepBudget:   5,
				Temperature:  float32Ptr(0.7),
				SystemPrompt: askPrompt,
			},
			"write": {
				StepBudget:   15,
				Temperature:  float32Ptr(0.5),
				SystemPrompt: writePrompt,
			},
		},
	}
}

const defaultSystemPrompt = `You are Inkwell, a writing assistant working inside an author's project.
The project holds a manuscript, plots, characters and memos. Read content with the tools before discussing it.
Be concise. Quote line numbers when you refer to text.`

const askPrompt = `You are in ask mode. You can read content but cannot change it.
If the author wants a change, describe it and suggest switching to write mode.`

const writePrompt = `You are in write mode. Changes are never applied directly: every propose_* tool submits a proposal the author reviews.
Prefer propose_line_edits for prose and include expectedText so stale edits are caught.
After proposing, stop and wait for the author's review.
Save durable facts about the project with save_memory.`
