package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Tool is a function the model may invoke during StreamSteps.
type Tool struct {
	ToolDescriptor
	// Execute receives the raw JSON arguments produced by the model.
	Execute func(ctx context.Context, arguments string) (any, error)
}

// ModelOutput lets a tool result present a different payload to the model
// than the one reported in StepEvent.ToolResult.Output.
type ModelOutput interface {
	ForModel() any
}

// StepRequest configures a StreamSteps run.
type StepRequest struct {
	Messages        []Message
	Tools           []Tool
	StepBudget      int
	Temperature     *float32
	MaxOutputTokens int
}

// StepEventType discriminates StepEvent.
type StepEventType string

const (
	StepTextDelta  StepEventType = "text_delta"
	StepToolCall   StepEventType = "tool_call"
	StepToolResult StepEventType = "tool_result"
	StepFinish     StepEventType = "finish"
	StepError      StepEventType = "error"
)

// ToolResult is the outcome of one executed tool call.
type ToolResult struct {
	ToolCallID string
	ToolName   string
	Output     any
}

// StepEvent is one unit of the internal model event stream.
type StepEvent struct {
	Type       StepEventType
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
	Usage      *LLMCallStats // set on finish, summed over all steps
	Err        error
}

func (s *service) StreamSteps(ctx context.Context, req *StepRequest) <-chan StepEvent {
	out := make(chan StepEvent, 16)
	go func() {
		defer close(out)
		r := &stepRunner{svc: s, req: req, out: out, tools: map[string]Tool{}}
		for _, t := range req.Tools {
			r.tools[t.Name] = t
		}
		r.run(ctx)
	}()
	return out
}

type stepRunner struct {
	svc   *service
	req   *StepRequest
	out   chan<- StepEvent
	tools map[string]Tool
	usage LLMCallStats
}

func (r *stepRunner) emit(ctx context.Context, ev StepEvent) bool {
	select {
	case r.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *stepRunner) fail(ctx context.Context, err error) {
	r.emit(ctx, StepEvent{Type: StepError, Err: err})
}

func (r *stepRunner) run(ctx context.Context) {
	startTime := time.Now()
	messages := append([]Message(nil), r.req.Messages...)
	budget := r.req.StepBudget
	if budget <= 0 {
		budget = 1
	}

	for step := 0; step < budget; step++ {
		text, calls, err := r.streamOne(ctx, messages)
		if err != nil {
			if ctx.Err() == nil {
				r.fail(ctx, err)
			}
			return
		}
		if len(calls) == 0 {
			break
		}

		messages = append(messages, Message{Role: "assistant", Content: text, ToolCalls: calls})
		for i := range calls {
			call := calls[i]
			if !r.emit(ctx, StepEvent{Type: StepToolCall, ToolCall: &call}) {
				return
			}
			result, modelContent := r.execute(ctx, call)
			if ctx.Err() != nil {
				return
			}
			if !r.emit(ctx, StepEvent{Type: StepToolResult, ToolResult: result}) {
				return
			}
			messages = append(messages, ToolMessage(call.ID, modelContent))
		}
		slog.Debug("LLM StreamSteps step finished", "step", step+1, "budget", budget, "tool_calls", len(calls))
	}

	usage := r.usage
	usage.TotalDurationMs = time.Since(startTime).Milliseconds()
	r.emit(ctx, StepEvent{Type: StepFinish, Usage: &usage})
}

// streamOne runs a single model request, forwarding text deltas live.
func (r *stepRunner) streamOne(ctx context.Context, messages []Message) (string, []ToolCall, error) {
	req := openai.ChatCompletionRequest{
		Model:         r.svc.model,
		MaxTokens:     r.svc.maxTokens,
		Temperature:   r.svc.temperature,
		Messages:      convertMessages(messages),
		Tools:         convertTools(r.req.Tools),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if r.req.Temperature != nil {
		req.Temperature = *r.req.Temperature
	}
	if r.req.MaxOutputTokens > 0 {
		req.MaxTokens = r.req.MaxOutputTokens
	}

	stream, err := r.svc.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("create stream failed: %w", err)
	}
	defer func() { _ = stream.Close() }() //nolint:errcheck // cleanup

	var (
		text    strings.Builder
		pending = map[int]*ToolCall{}
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("stream recv failed: %w", err)
		}
		if resp.Usage != nil {
			r.usage.add(usageStats(resp.Usage))
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if !r.emit(ctx, StepEvent{Type: StepTextDelta, Text: delta.Content}) {
				return "", nil, ctx.Err()
			}
		}
		for i, tc := range delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := pending[idx]
			if !ok {
				call = &ToolCall{Type: string(openai.ToolTypeFunction)}
				pending[idx] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			call.Function.Name += tc.Function.Name
			call.Function.Arguments += tc.Function.Arguments
		}
	}

	indexes := make([]int, 0, len(pending))
	for idx := range pending {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	calls := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		call := *pending[idx]
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", idx)
		}
		if strings.TrimSpace(call.Function.Arguments) == "" {
			call.Function.Arguments = "{}"
		}
		calls = append(calls, call)
	}
	return text.String(), calls, nil
}

// execute runs one tool call. Failures become an {"error": ...} result the
// model can react to instead of aborting the run.
func (r *stepRunner) execute(ctx context.Context, call ToolCall) (*ToolResult, string) {
	result := &ToolResult{ToolCallID: call.ID, ToolName: call.Function.Name}

	tool, ok := r.tools[call.Function.Name]
	var (
		output any
		err    error
	)
	if !ok {
		err = fmt.Errorf("unknown tool %q", call.Function.Name)
	} else {
		output, err = tool.Execute(ctx, call.Function.Arguments)
	}
	if err != nil {
		slog.Warn("LLM StreamSteps tool failed", "tool", call.Function.Name, "error", err)
		output = map[string]any{"error": err.Error()}
	}
	result.Output = output

	forModel := output
	if mo, ok := output.(ModelOutput); ok {
		forModel = mo.ForModel()
	}
	content, merr := json.Marshal(forModel)
	if merr != nil {
		content = []byte(fmt.Sprintf(`{"error":%q}`, merr.Error()))
	}
	return result, string(content)
}
