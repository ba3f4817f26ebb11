package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/inkwell/store"
)

func TestEvent_WireShapes(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"text", Text("Hel"), `{"type":"text","content":"Hel"}`},
		{"tool_call", NewToolCall("c1", "get_content", `{"id":"x"}`), `{"type":"tool_call","toolCall":{"id":"c1","name":"get_content","arguments":"{\"id\":\"x\"}"}}`},
		{"tool_result", NewToolResult("c1", "get_content", `{}`), `{"type":"tool_result","toolResult":{"toolCallId":"c1","toolName":"get_content","result":"{}"}}`},
		{"usage", NewUsage(store.TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}), `{"type":"usage","usage":{"promptTokens":1,"completionTokens":2,"totalTokens":3}}`},
		{"error", Error("boom"), `{"type":"error","error":"boom"}`},
		{"done", Done(), `{"type":"done"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}

	b, err := json.Marshal(NewProposal(&store.Proposal{ID: "p", Action: store.ProposalActionCreate, Proposed: store.FieldChanges{}}))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"proposal"`)
	assert.Contains(t, string(b), `"proposal":{"id":"p"`)
}

func TestType_IsTerminal(t *testing.T) {
	assert.True(t, TypeDone.IsTerminal())
	assert.True(t, TypeError.IsTerminal())
	assert.False(t, TypeText.IsTerminal())
}

func TestEncoder_NDJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewEncoder(rec)
	require.NoError(t, enc.Encode(Text("a")))
	require.NoError(t, enc.Encode(Done()))
	assert.True(t, rec.Flushed)

	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{`{"type":"text","content":"a"}`, `{"type":"done"}`}, lines)
}
