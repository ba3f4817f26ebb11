package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/inkwell/internal/profile"
	"github.com/hrygo/inkwell/plugin/content/memstore"
	"github.com/hrygo/inkwell/store"
	"github.com/hrygo/inkwell/store/db/sqlite"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := sqlite.NewDB(&profile.Profile{DSN: filepath.Join(t.TempDir(), "server_test.db")})
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	return store.New(driver, &profile.Profile{})
}

func TestNewServer_AIDisabled(t *testing.T) {
	cs := memstore.New()
	memstore.SeedDemo(cs)
	s, err := NewServer(context.Background(), &profile.Profile{Mode: "demo", Version: "0.1.0-dev"}, newStore(t), cs)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"0.1.0-dev","aiEnabled":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/x/proposals/y/accept", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewServer_InvalidAssistantConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	require.NoError(t, writeFile(path, "modes: [not, a, map"))

	p := &profile.Profile{LLMProvider: "deepseek", LLMAPIKey: "sk-test", LLMModel: "deepseek-chat", AssistantConfig: path}
	_, err := NewServer(context.Background(), p, newStore(t), memstore.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant config")
}

func TestLoadAssistantConfig_Default(t *testing.T) {
	cfg, err := loadAssistantConfig("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Modes)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
