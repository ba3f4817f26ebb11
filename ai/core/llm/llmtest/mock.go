// Package llmtest provides a scripted llm.Service for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hrygo/inkwell/ai/core/llm"
)

// Step is one scripted model request: optional text followed by tool calls.
type Step struct {
	Text      string
	ToolCalls []llm.ToolCall
}

// Turn is the script of one StreamSteps call.
type Turn struct {
	Steps []Step
	// Err ends the turn with an error event after the steps.
	Err error
	// Block waits for ctx cancellation after the steps instead of finishing.
	Block bool
}

// MockLLM is a configurable mock LLM service.
type MockLLM struct {
	mu              sync.Mutex
	responses       map[string]string
	defaultResponse string
	chatErr         error
	callStats       llm.LLMCallStats
	turns           []Turn

	ChatCalls [][]llm.Message
	Requests  []*llm.StepRequest
}

// NewMockLLM creates a mock that answers every Chat with "Mock response".
func NewMockLLM() *MockLLM {
	return &MockLLM{
		responses:       map[string]string{},
		defaultResponse: "Mock response",
		callStats: llm.LLMCallStats{
			PromptTokens:     100,
			CompletionTokens: 50,
			TotalTokens:      150,
		},
	}
}

// WithResponse answers Chat with output when the last user message contains input.
func (m *MockLLM) WithResponse(input, output string) *MockLLM {
	m.responses[input] = output
	return m
}

// WithDefaultResponse sets the Chat answer when no preset matches.
func (m *MockLLM) WithDefaultResponse(output string) *MockLLM {
	m.defaultResponse = output
	return m
}

// WithChatError makes every Chat call fail.
func (m *MockLLM) WithChatError(err error) *MockLLM {
	m.chatErr = err
	return m
}

// WithCallStats sets the usage reported by Chat and by each finished turn.
func (m *MockLLM) WithCallStats(stats llm.LLMCallStats) *MockLLM {
	m.callStats = stats
	return m
}

// WithTurn queues the script of the next StreamSteps call.
func (m *MockLLM) WithTurn(t Turn) *MockLLM {
	m.turns = append(m.turns, t)
	return m
}

// Chat implements llm.Service.
func (m *MockLLM) Chat(_ context.Context, messages []llm.Message, _ ...llm.CallOption) (string, *llm.LLMCallStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatCalls = append(m.ChatCalls, messages)
	if m.chatErr != nil {
		return "", nil, m.chatErr
	}

	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = messages[i].Content
			break
		}
	}
	stats := m.callStats
	for input, output := range m.responses {
		if strings.Contains(last, input) {
			return output, &stats, nil
		}
	}
	return m.defaultResponse, &stats, nil
}

// Warmup implements llm.Service.
func (m *MockLLM) Warmup(context.Context) {}

// StreamSteps plays the next queued turn. Tool calls are executed against
// req.Tools. A turn with no script finishes immediately.
func (m *MockLLM) StreamSteps(ctx context.Context, req *llm.StepRequest) <-chan llm.StepEvent {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	var turn Turn
	if len(m.turns) > 0 {
		turn, m.turns = m.turns[0], m.turns[1:]
	}
	stats := m.callStats
	m.mu.Unlock()

	out := make(chan llm.StepEvent)
	go func() {
		defer close(out)
		emit := func(ev llm.StepEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		tools := map[string]llm.Tool{}
		for _, t := range req.Tools {
			tools[t.Name] = t
		}
		for i, step := range turn.Steps {
			if req.StepBudget > 0 && i >= req.StepBudget {
				break
			}
			if step.Text != "" && !emit(llm.StepEvent{Type: llm.StepTextDelta, Text: step.Text}) {
				return
			}
			for j := range step.ToolCalls {
				call := step.ToolCalls[j]
				if !emit(llm.StepEvent{Type: llm.StepToolCall, ToolCall: &call}) {
					return
				}
				result := &llm.ToolResult{ToolCallID: call.ID, ToolName: call.Function.Name}
				tool, ok := tools[call.Function.Name]
				if !ok {
					result.Output = map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Function.Name)}
				} else if output, err := tool.Execute(ctx, call.Function.Arguments); err != nil {
					result.Output = map[string]any{"error": err.Error()}
				} else {
					result.Output = output
				}
				if !emit(llm.StepEvent{Type: llm.StepToolResult, ToolResult: result}) {
					return
				}
			}
		}

		switch {
		case turn.Block:
			<-ctx.Done()
		case turn.Err != nil:
			emit(llm.StepEvent{Type: llm.StepError, Err: turn.Err})
		default:
			emit(llm.StepEvent{Type: llm.StepFinish, Usage: &stats})
		}
	}()
	return out
}

// Call builds a function tool call.
func Call(id, name, arguments string) llm.ToolCall {
	c := llm.ToolCall{ID: id, Type: "function"}
	c.Function.Name = name
	c.Function.Arguments = arguments
	return c
}

// StepRequests returns the recorded StreamSteps requests.
func (m *MockLLM) StepRequests() []*llm.StepRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.StepRequest(nil), m.Requests...)
}

var _ llm.Service = (*MockLLM)(nil)
