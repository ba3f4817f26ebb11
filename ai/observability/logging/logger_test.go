package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "debug", "json")

	ctx := WithContext(context.Background(), l)
	ctx = With(ctx, "session_id", "s1", "mode", "write")
	FromContext(ctx).Info("turn started")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "turn started", rec["msg"])
	assert.Equal(t, "s1", rec["session_id"])
	assert.Equal(t, "write", rec["mode"])
}

func TestFromContext_Default(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn", "text")
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "k=1")
}
