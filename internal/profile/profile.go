package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// Main LLM, any OpenAI-compatible provider.
	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	LLMTimeout  int // seconds

	// Lightweight LLM for titles and summaries. Falls back to the main LLM
	// when no API key is configured.
	SimpleLLMProvider string
	SimpleLLMModel    string
	SimpleLLMAPIKey   string
	SimpleLLMBaseURL  string

	// AssistantConfig is the path of the assistant YAML (step budgets, prompts).
	AssistantConfig string

	// ChatRateLimit is the number of chat requests allowed per session per minute.
	ChatRateLimit int

	LogLevel  string
	LogFormat string

	Mode    string
	DSN     string
	Driver  string
	Version string
	Addr    string
	Data    string
	Port    int
}

// Provider default configurations for LLM.
// Used when the base URL or model is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsDemo reports whether the server runs on the in-memory demo content store.
func (p *Profile) IsDemo() bool {
	return p.Mode == "demo"
}

// IsAIEnabled returns true if an LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads the LLM configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("INKWELL_LLM_PROVIDER", "deepseek")
	p.LLMAPIKey = getEnvOrDefault("INKWELL_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("INKWELL_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("INKWELL_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("INKWELL_LLM_TIMEOUT_SECONDS", 120)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok && p.LLMBaseURL == "" {
		slog.Warn("Unknown LLM provider without base URL, using default: deepseek", "provider", p.LLMProvider)
		p.LLMProvider = "deepseek"
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.SimpleLLMProvider = getEnvOrDefault("INKWELL_SIMPLE_LLM_PROVIDER", "siliconflow")
	p.SimpleLLMModel = getEnvOrDefault("INKWELL_SIMPLE_LLM_MODEL", "Qwen/Qwen2.5-7B-Instruct")
	p.SimpleLLMAPIKey = getEnvOrDefault("INKWELL_SIMPLE_LLM_API_KEY", "")
	p.SimpleLLMBaseURL = getEnvOrDefault("INKWELL_SIMPLE_LLM_BASE_URL", "")

	p.ChatRateLimit = getEnvOrDefaultInt("INKWELL_CHAT_RATE_LIMIT", 20)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the mode, resolves the data directory and derives the
// default sqlite DSN.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "inkwell")
		} else {
			p.Data = "/var/opt/inkwell"
		}
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return errors.Wrap(err, "failed to create data directory")
			}
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("inkwell_%s.db", p.Mode))
	}
	if p.ChatRateLimit <= 0 {
		p.ChatRateLimit = 20
	}
	return nil
}
