package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/inkwell/ai/agents/events"
	"github.com/hrygo/inkwell/ai/agents/tools"
	"github.com/hrygo/inkwell/ai/configloader"
	aicontext "github.com/hrygo/inkwell/ai/context"
	"github.com/hrygo/inkwell/ai/core/llm"
	"github.com/hrygo/inkwell/ai/observability/logging"
	"github.com/hrygo/inkwell/ai/proposal"
	"github.com/hrygo/inkwell/ai/summary"
	"github.com/hrygo/inkwell/store"
)

const persistTimeout = 5 * time.Second

// turn is the state of one streamed model turn.
//
// idle -> streaming -> done | error. Events stop after done or error.
type turn struct {
	o       *Orchestrator
	req     *Request
	session *store.AISession
	mode    configloader.ModeConfig
	stream  *Stream
	logger  *slog.Logger

	log   *store.AIMessageLog
	text  strings.Builder
	usage store.TokenUsage
	saved bool
}

func (t *turn) run(ctx context.Context) {
	defer close(t.stream.ch)

	ctx = logging.With(ctx, "session_id", t.session.ID, "project_id", t.session.ProjectID, "mode", t.req.Mode)
	t.logger = logging.FromContext(ctx)

	start := time.Now()
	status := "done"
	t.o.Metrics.TurnStarted()
	defer func() {
		t.o.Metrics.RecordTurn(string(t.req.Mode), status, time.Since(start))
	}()

	err := t.execute(ctx)
	switch {
	case err == nil:
		t.logger.Info("turn finished",
			"duration_ms", time.Since(start).Milliseconds(),
			"total_tokens", t.usage.TotalTokens,
		)
	case ctx.Err() != nil:
		status = "canceled"
		t.logger.Info("turn canceled by consumer")
		t.persistBestEffort(ctx)
	default:
		status = "error"
		t.logger.Error("turn failed", "error", err)
		t.persistBestEffort(ctx)
		t.send(ctx, events.Error(err.Error()))
	}
}

func (t *turn) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn panicked: %v", r)
		}
	}()

	log, err := t.o.Store.GetAIMessageLog(ctx, t.session.ID)
	if err != nil {
		return fmt.Errorf("failed to load message log: %w", err)
	}
	t.log = log

	if t.req.Message != nil {
		if n := rejectPending(log); n > 0 {
			t.logger.Info("pending proposals rejected by new message", "count", n)
		}
		log.Messages = append(log.Messages, &store.TextMessage{
			MessageHeader: store.NewMessageHeader(),
			Role:          store.RoleUser,
			Content:       *t.req.Message,
		})
		if err := t.o.Store.SaveAIMessageLog(ctx, log); err != nil {
			return fmt.Errorf("failed to save message log: %w", err)
		}
	}

	built, compressed, err := t.prepare(ctx)
	if err != nil {
		return err
	}

	messages := []llm.Message{llm.SystemPrompt(t.systemPrompt(built, compressed.Summary))}
	history, reported := buildHistory(compressed.Messages)
	messages = append(messages, history...)
	for _, p := range reported {
		p.OutcomeReported = true
	}

	stepReq := &llm.StepRequest{
		Messages:        messages,
		Tools:           t.o.Tools.ForMode(t.req.Mode),
		StepBudget:      t.mode.StepBudget,
		Temperature:     t.mode.Temperature,
		MaxOutputTokens: t.mode.MaxOutputTokens,
	}
	t.logger.Debug("turn started",
		"history_messages", len(messages)-1,
		"tools", len(stepReq.Tools),
		"step_budget", stepReq.StepBudget,
		"compressed", compressed.Compressed(),
	)

	finished := false
	for ev := range t.o.LLM.StreamSteps(tools.WithProjectID(ctx, t.session.ProjectID), stepReq) {
		switch ev.Type {
		case llm.StepTextDelta:
			t.text.WriteString(ev.Text)
			if !t.send(ctx, events.Text(ev.Text)) {
				return ctx.Err()
			}
		case llm.StepToolCall:
			if !t.onToolCall(ctx, ev.ToolCall) {
				return ctx.Err()
			}
		case llm.StepToolResult:
			if !t.onToolResult(ctx, ev.ToolResult) {
				return ctx.Err()
			}
		case llm.StepFinish:
			if ev.Usage != nil {
				t.usage = store.TokenUsage{
					PromptTokens:     ev.Usage.PromptTokens,
					CompletionTokens: ev.Usage.CompletionTokens,
					TotalTokens:      ev.Usage.TotalTokens,
				}
			}
			finished = true
		case llm.StepError:
			return fmt.Errorf("model stream failed: %w", ev.Err)
		}
	}
	if !finished {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("model stream ended without finishing")
	}

	return t.complete(ctx)
}

// prepare builds the system context and the compressed history concurrently.
func (t *turn) prepare(ctx context.Context) (*aicontext.Result, *summary.Result, error) {
	var (
		built      *aicontext.Result
		compressed = &summary.Result{Messages: t.log.Messages}
	)
	g, gctx := errgroup.WithContext(ctx)
	if t.o.Context != nil {
		g.Go(func() error {
			r, err := t.o.Context.Build(gctx, &aicontext.Request{
				ProjectID: t.session.ProjectID,
				ActiveTab: t.req.ActiveTab,
			})
			if err != nil {
				return fmt.Errorf("failed to build context: %w", err)
			}
			built = r
			return nil
		})
	}
	if t.o.Compressor != nil {
		g.Go(func() error {
			compressed = t.o.Compressor.Compress(gctx, t.session.ID, t.log.Messages)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return built, compressed, nil
}

func (t *turn) systemPrompt(built *aicontext.Result, conversationSummary string) string {
	parts := []string{strings.TrimSpace(t.o.Assistant.SystemPrompt)}
	if t.mode.SystemPrompt != "" {
		parts = append(parts, strings.TrimSpace(t.mode.SystemPrompt))
	}
	switch {
	case built != nil:
		parts = append(parts, built.Render(conversationSummary))
	case conversationSummary != "":
		parts = append(parts, "## Earlier in this conversation\n"+conversationSummary)
	}
	return strings.Join(parts, "\n\n")
}

func (t *turn) onToolCall(ctx context.Context, call *llm.ToolCall) bool {
	args := json.RawMessage(call.Function.Arguments)
	if !json.Valid(args) {
		// Keep malformed arguments as a string so the log stays valid JSON.
		args, _ = json.Marshal(call.Function.Arguments)
	}
	t.log.Messages = append(t.log.Messages, &store.ToolCallMessage{
		MessageHeader: store.NewMessageHeader(),
		Content:       []store.ToolCall{{ToolCallID: call.ID, ToolName: call.Function.Name, Args: args}},
	})
	return t.send(ctx, events.NewToolCall(call.ID, call.Function.Name, call.Function.Arguments))
}

func (t *turn) onToolResult(ctx context.Context, r *llm.ToolResult) bool {
	if out, ok := r.Output.(*proposal.Output); ok && out.Proposal != nil {
		msg := t.o.Proposals.CreateProposal(out, r.ToolCallID, r.ToolName)
		t.log.Messages = append(t.log.Messages, msg)
		t.logger.Info("proposal created",
			"proposal_id", msg.Proposal.ID,
			"action", msg.Proposal.Action,
			"content_type", msg.Proposal.ContentType,
		)
		return t.send(ctx, events.NewProposal(msg.Proposal))
	}

	result, err := json.Marshal(r.Output)
	if err != nil {
		result, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	t.log.Messages = append(t.log.Messages, &store.ToolResultMessage{
		MessageHeader: store.NewMessageHeader(),
		Content:       []store.ToolResult{{ToolCallID: r.ToolCallID, ToolName: r.ToolName, Result: result}},
	})
	return t.send(ctx, events.NewToolResult(r.ToolCallID, r.ToolName, string(result)))
}

// complete persists the turn and emits the closing usage and done events.
func (t *turn) complete(ctx context.Context) error {
	t.flushText()
	if err := t.o.Store.SaveAIMessageLog(ctx, t.log); err != nil {
		return fmt.Errorf("failed to save message log: %w", err)
	}
	t.saved = true

	now := time.Now().Unix()
	cumulative := t.session.CumulativeUsage.Add(t.usage)
	if _, err := t.o.Store.UpdateAISession(ctx, &store.UpdateAISession{
		ID:              t.session.ID,
		UpdatedTs:       &now,
		CumulativeUsage: &cumulative,
	}); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	t.o.Metrics.RecordLLMTokens(t.usage.PromptTokens, t.usage.CompletionTokens)

	if !t.send(ctx, events.NewUsage(t.usage)) || !t.send(ctx, events.Done()) {
		return ctx.Err()
	}
	t.o.scheduleBackground(t.session)
	return nil
}

func (t *turn) flushText() {
	if t.text.Len() == 0 {
		return
	}
	t.log.Messages = append(t.log.Messages, &store.TextMessage{
		MessageHeader: store.NewMessageHeader(),
		Role:          store.RoleAssistant,
		Content:       t.text.String(),
	})
	t.text.Reset()
}

// persistBestEffort keeps what was appended before a failure or cancellation.
func (t *turn) persistBestEffort(ctx context.Context) {
	if t.log == nil || t.saved {
		return
	}
	t.flushText()
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := t.o.Store.SaveAIMessageLog(saveCtx, t.log); err != nil {
		t.logger.Warn("failed to persist partial turn", "error", err)
		return
	}
	t.saved = true
}

func (t *turn) send(ctx context.Context, ev events.Event) bool {
	select {
	case t.stream.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// rejectPending moves every pending proposal to rejected and returns the count.
func rejectPending(log *store.AIMessageLog) int {
	n := 0
	for _, p := range log.Proposals() {
		if p.ProposalStatus == store.ProposalStatusPending {
			p.ProposalStatus = store.ProposalStatusRejected
			n++
		}
	}
	return n
}
