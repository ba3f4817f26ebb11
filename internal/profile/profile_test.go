package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"INKWELL_LLM_PROVIDER", "INKWELL_LLM_API_KEY", "INKWELL_LLM_BASE_URL", "INKWELL_LLM_MODEL",
		"INKWELL_LLM_TIMEOUT_SECONDS", "INKWELL_SIMPLE_LLM_PROVIDER", "INKWELL_SIMPLE_LLM_MODEL",
		"INKWELL_SIMPLE_LLM_API_KEY", "INKWELL_SIMPLE_LLM_BASE_URL", "INKWELL_CHAT_RATE_LIMIT",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.Equal(t, 120, p.LLMTimeout)
	assert.Equal(t, 20, p.ChatRateLimit)
	assert.False(t, p.IsAIEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		check  func(*Profile) any
		expect any
	}{
		{
			name:   "provider defaults fill model",
			env:    map[string]string{"INKWELL_LLM_PROVIDER": "openai", "INKWELL_LLM_API_KEY": "k"},
			check:  func(p *Profile) any { return p.LLMModel },
			expect: "gpt-4o-mini",
		},
		{
			name:   "unknown provider with base URL is kept",
			env:    map[string]string{"INKWELL_LLM_PROVIDER": "acme", "INKWELL_LLM_BASE_URL": "http://llm.local/v1"},
			check:  func(p *Profile) any { return p.LLMProvider },
			expect: "acme",
		},
		{
			name:   "unknown provider without base URL falls back",
			env:    map[string]string{"INKWELL_LLM_PROVIDER": "acme"},
			check:  func(p *Profile) any { return p.LLMProvider },
			expect: "deepseek",
		},
		{
			name:   "invalid timeout keeps default",
			env:    map[string]string{"INKWELL_LLM_TIMEOUT_SECONDS": "soon"},
			check:  func(p *Profile) any { return p.LLMTimeout },
			expect: 120,
		},
		{
			name:   "api key enables ai",
			env:    map[string]string{"INKWELL_LLM_API_KEY": "secret"},
			check:  func(p *Profile) any { return p.IsAIEnabled() },
			expect: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			p := &Profile{}
			p.FromEnv()
			assert.Equal(t, tt.expect, tt.check(p))
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{Mode: "bogus", Data: dir}
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
	assert.Equal(t, "sqlite", p.Driver)
	assert.Equal(t, filepath.Join(dir, "inkwell_demo.db"), p.DSN)
	assert.True(t, p.IsDemo())
	assert.True(t, p.IsDev())

	p = &Profile{Mode: "dev", Data: dir, Driver: "postgres"}
	assert.Error(t, p.Validate())

	p = &Profile{Mode: "dev", Data: dir, Driver: "mysql"}
	assert.Error(t, p.Validate())

	p = &Profile{Mode: "dev", Data: filepath.Join(dir, "missing")}
	assert.Error(t, p.Validate())
}
