package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTool is a simple tool implementation for testing.
type mockTool struct {
	name   string
	params string
	runErr error
	gotArg json.RawMessage
}

func (t *mockTool) Name() string        { return t.name }
func (t *mockTool) Description() string { return "test tool " + t.name }
func (t *mockTool) Parameters() string {
	if t.params != "" {
		return t.params
	}
	return `{"type":"object","properties":{"id":{"type":"string"}},"required":["id"],"additionalProperties":false}`
}
func (t *mockTool) Run(_ context.Context, args json.RawMessage) (any, error) {
	t.gotArg = args
	if t.runErr != nil {
		return nil, t.runErr
	}
	return map[string]string{"ok": t.name}, nil
}

func TestToolRegistry_Register(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.Register(CategoryRead, &mockTool{name: "get_content"}))

	err := r.Register(CategoryRead, &mockTool{name: "get_content"})
	assert.Error(t, err, "duplicate names are rejected")

	err = r.Register(CategoryRead, &mockTool{name: "broken", params: `{"type": 12}`})
	assert.Error(t, err, "schema must compile")

	tool, ok := r.Get("get_content")
	assert.True(t, ok)
	assert.Equal(t, "get_content", tool.Name())

	assert.Panics(t, func() { r.MustRegister(CategoryRead, &mockTool{name: "get_content"}) })
}

func TestToolRegistry_ForMode(t *testing.T) {
	r := NewToolRegistry()
	r.MustRegister(CategoryRead, &mockTool{name: "get_content"})
	r.MustRegister(CategoryProposal, &mockTool{name: "propose_update"})
	r.MustRegister(CategoryMemory, &mockTool{name: "save_memory"})

	assert.Equal(t, []string{"get_content"}, r.Names(ModeAsk))
	assert.Equal(t, []string{"get_content", "propose_update", "save_memory"}, r.Names(ModeWrite))

	tools := r.ForMode(ModeWrite)
	require.Len(t, tools, 3)
	assert.Equal(t, "get_content", tools[0].Name)
	assert.Contains(t, tools[0].Parameters, `"required"`)
}

func TestToolRegistry_ValidatesArguments(t *testing.T) {
	r := NewToolRegistry()
	mt := &mockTool{name: "get_content"}
	r.MustRegister(CategoryRead, mt)

	var observed []string
	r.SetObserver(func(name string, err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observed = append(observed, name+":"+status)
	})
	exec := r.ForMode(ModeAsk)[0].Execute

	out, err := exec(context.Background(), `{"id":"plot-1"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ok": "get_content"}, out)
	assert.JSONEq(t, `{"id":"plot-1"}`, string(mt.gotArg))

	_, err = exec(context.Background(), `{"id":7}`)
	assert.ErrorContains(t, err, "invalid arguments")

	_, err = exec(context.Background(), `{`)
	assert.ErrorContains(t, err, "not valid JSON")

	_, err = exec(context.Background(), ``)
	assert.ErrorContains(t, err, "invalid arguments", "empty arguments are an empty object")

	mt.runErr = errors.New("boom")
	_, err = exec(context.Background(), `{"id":"x"}`)
	assert.EqualError(t, err, "boom")

	assert.Equal(t, []string{"get_content:ok", "get_content:error", "get_content:error", "get_content:error", "get_content:error"}, observed)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeWrite, ParseMode("write"))
	assert.Equal(t, ModeAsk, ParseMode("ask"))
	assert.Equal(t, ModeAsk, ParseMode(""))
}
