package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hrygo/inkwell/ai"
	"github.com/hrygo/inkwell/ai/agents/events"
	"github.com/hrygo/inkwell/ai/agents/registry"
	"github.com/hrygo/inkwell/ai/agents/tools"
	"github.com/hrygo/inkwell/ai/content"
	aicontext "github.com/hrygo/inkwell/ai/context"
	"github.com/hrygo/inkwell/ai/core/llm"
	"github.com/hrygo/inkwell/ai/core/llm/llmtest"
	"github.com/hrygo/inkwell/ai/proposal"
	"github.com/hrygo/inkwell/ai/services/tasks"
	"github.com/hrygo/inkwell/ai/summary"
	"github.com/hrygo/inkwell/internal/profile"
	"github.com/hrygo/inkwell/plugin/content/memstore"
	"github.com/hrygo/inkwell/store"
	"github.com/hrygo/inkwell/store/db/sqlite"
)

type fixture struct {
	store   *store.Store
	content *memstore.Store
	llm     *llmtest.MockLLM
	orch    *Orchestrator
}

func newFixture(t *testing.T, mock *llmtest.MockLLM) *fixture {
	t.Helper()
	driver, err := sqlite.NewDB(&profile.Profile{DSN: filepath.Join(t.TempDir(), "orchestrator_test.db")})
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	s := store.New(driver, &profile.Profile{})

	cs := memstore.New()
	cs.Put(store.ContentTypeProject, &content.Entity{ID: "p1", Name: "Lisbon Nights"})
	cs.Put(store.ContentTypePlot, &content.Entity{ID: "plot-1", ProjectID: "p1", Name: "Act I", Fields: map[string]any{"synopsis": "old"}})

	memories := &content.StoreMemory{Store: s}
	r := registry.NewToolRegistry()
	require.NoError(t, tools.Register(r, tools.Deps{Content: cs.Registry(), Summaries: cs, Memories: memories}))

	orch := New(Deps{
		Store:      s,
		LLM:        mock,
		Tools:      r,
		Proposals:  proposal.NewManager(s, cs.Registry()),
		Context:    aicontext.NewBuilder(cs.Registry(), cs, memories, aicontext.DefaultBudget()),
		Compressor: summary.NewCompressor(s, mock),
	})
	return &fixture{store: s, content: cs, llm: mock, orch: orch}
}

func strPtr(s string) *string { return &s }

func collect(t *testing.T, s *Stream) []events.Event {
	t.Helper()
	ch, err := s.Consume()
	require.NoError(t, err)
	var out []events.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func types(evs []events.Event) []events.Type {
	out := make([]events.Type, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func (f *fixture) log(t *testing.T, sessionID string) *store.AIMessageLog {
	t.Helper()
	log, err := f.store.GetAIMessageLog(context.Background(), sessionID)
	require.NoError(t, err)
	return log
}

func TestRun_NewSessionTextTurn(t *testing.T) {
	mock := llmtest.NewMockLLM().WithTurn(llmtest.Turn{Steps: []llmtest.Step{{Text: "Hel"}, {Text: "lo"}}})
	f := newFixture(t, mock)
	ctx := context.Background()

	stream, err := f.orch.Run(ctx, &Request{ProjectID: "p1", Message: strPtr("Say hello"), Mode: registry.ModeAsk})
	require.NoError(t, err)
	evs := collect(t, stream)

	assert.Equal(t, []events.Type{events.TypeText, events.TypeText, events.TypeUsage, events.TypeDone}, types(evs))
	assert.Equal(t, 150, evs[2].Usage.TotalTokens)

	session, err := f.store.GetAISession(ctx, stream.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "Say hello", session.Title)
	assert.Equal(t, store.TitleSourceDefault, session.TitleSource)
	assert.Equal(t, 150, session.CumulativeUsage.TotalTokens)

	log := f.log(t, stream.SessionID)
	require.Len(t, log.Messages, 2)
	assert.Equal(t, "Hello", log.Messages[1].(*store.TextMessage).Content)

	req := mock.StepRequests()[0]
	assert.Equal(t, 5, req.StepBudget)
	assert.Contains(t, req.Messages[0].Content, "Lisbon Nights")
	for _, tool := range req.Tools {
		assert.False(t, strings.HasPrefix(tool.Name, "propose_"), "ask mode must not offer %s", tool.Name)
	}
}

func TestRun_ProposalAcceptContinues(t *testing.T) {
	mock := llmtest.NewMockLLM().
		WithTurn(llmtest.Turn{Steps: []llmtest.Step{{
			Text:      "Proposing a sharper synopsis.",
			ToolCalls: []llm.ToolCall{llmtest.Call("call-1", "propose_update", `{"id":"plot-1","contentType":"plot","fields":{"synopsis":"new"}}`)},
		}}}).
		WithTurn(llmtest.Turn{Steps: []llmtest.Step{{Text: "Applied."}}})
	f := newFixture(t, mock)
	ctx := context.Background()

	stream, err := f.orch.Run(ctx, &Request{ProjectID: "p1", Message: strPtr("Fix the synopsis"), Mode: registry.ModeWrite})
	require.NoError(t, err)
	evs := collect(t, stream)
	assert.Equal(t, []events.Type{events.TypeText, events.TypeToolCall, events.TypeProposal, events.TypeUsage, events.TypeDone}, types(evs))
	assert.Equal(t, 15, mock.StepRequests()[0].StepBudget)

	p := evs[2].Proposal
	require.NotNil(t, p)
	log := f.log(t, stream.SessionID)
	msg := log.FindProposal(p.ID)
	require.NotNil(t, msg)
	assert.Equal(t, store.ProposalStatusPending, msg.ProposalStatus)
	assert.Equal(t, "call-1", msg.ToolCallID)

	result, err := f.orch.Proposals.AcceptProposal(ctx, stream.SessionID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ProposalStatusAccepted, result.Status)
	require.NotNil(t, result.Stream)

	cont, ok := result.Stream.(*Stream)
	require.True(t, ok)
	evs = collect(t, cont)
	assert.Equal(t, []events.Type{events.TypeText, events.TypeUsage, events.TypeDone}, types(evs))

	entity, _, _ := f.content.Get("plot-1")
	assert.Equal(t, "new", entity.Fields["synopsis"])

	msgs := mock.StepRequests()[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, `Update plot "Act I": accepted`)
	var placeholder bool
	for _, m := range msgs {
		if m.Role == "tool" && m.ToolCallID == "call-1" {
			placeholder = strings.Contains(m.Content, "submitted for review")
		}
	}
	assert.True(t, placeholder, "proposal tool call should be answered with a placeholder")

	session, err := f.store.GetAISession(ctx, stream.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 300, session.CumulativeUsage.TotalTokens)
}

func TestRun_NewMessageRejectsPending(t *testing.T) {
	mock := llmtest.NewMockLLM().
		WithTurn(llmtest.Turn{Steps: []llmtest.Step{{
			ToolCalls: []llm.ToolCall{llmtest.Call("call-1", "propose_update", `{"id":"plot-1","contentType":"plot","fields":{"synopsis":"new"}}`)},
		}}}).
		WithTurn(llmtest.Turn{Steps: []llmtest.Step{{Text: "Okay, something else."}}})
	f := newFixture(t, mock)
	ctx := context.Background()

	first, err := f.orch.Run(ctx, &Request{ProjectID: "p1", Message: strPtr("Fix the synopsis"), Mode: registry.ModeWrite})
	require.NoError(t, err)
	evs := collect(t, first)
	require.Equal(t, events.TypeProposal, evs[1].Type)
	proposalID := evs[1].Proposal.ID

	second, err := f.orch.Run(ctx, &Request{ProjectID: "p1", SessionID: first.SessionID, Message: strPtr("Never mind"), Mode: registry.ModeWrite})
	require.NoError(t, err)
	collect(t, second)

	msg := f.log(t, first.SessionID).FindProposal(proposalID)
	require.NotNil(t, msg)
	assert.Equal(t, store.ProposalStatusRejected, msg.ProposalStatus)

	msgs := mock.StepRequests()[1].Messages
	last := msgs[len(msgs)-1]
	assert.Contains(t, last.Content, "rejected")
	for _, m := range msgs {
		if m.Role == "tool" {
			assert.Equal(t, elidedResult, m.Content, "results of earlier turns are elided")
		}
	}
	assert.True(t, f.log(t, first.SessionID).FindProposal(proposalID).OutcomeReported)

	entity, _, _ := f.content.Get("plot-1")
	assert.Equal(t, "old", entity.Fields["synopsis"])
}

func TestRun_OutcomeReportedOnce(t *testing.T) {
	mock := llmtest.NewMockLLM().
		WithTurn(llmtest.Turn{Steps: []llmtest.Step{{
			ToolCalls: []llm.ToolCall{llmtest.Call("call-1", "propose_update", `{"id":"plot-1","contentType":"plot","fields":{"synopsis":"new"}}`)},
		}}}).
		WithTurn(llmtest.Turn{Steps: []llmtest.Step{{Text: "Applied."}}}).
		WithTurn(llmtest.Turn{Steps: []llmtest.Step{{Text: "Sure."}}})
	f := newFixture(t, mock)
	ctx := context.Background()

	first, err := f.orch.Run(ctx, &Request{ProjectID: "p1", Message: strPtr("Fix the synopsis"), Mode: registry.ModeWrite})
	require.NoError(t, err)
	evs := collect(t, first)
	require.Equal(t, events.TypeProposal, evs[1].Type)

	result, err := f.orch.Proposals.AcceptProposal(ctx, first.SessionID, evs[1].Proposal.ID)
	require.NoError(t, err)
	cont, ok := result.Stream.(*Stream)
	require.True(t, ok)
	collect(t, cont)

	next, err := f.orch.Run(ctx, &Request{ProjectID: "p1", SessionID: first.SessionID, Message: strPtr("Now the title"), Mode: registry.ModeWrite})
	require.NoError(t, err)
	collect(t, next)

	reqs := mock.StepRequests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[1].Messages[len(reqs[1].Messages)-1].Content, "[Proposal review results]")
	last := reqs[2].Messages[len(reqs[2].Messages)-1]
	assert.Equal(t, "Now the title", last.Content)
	for _, m := range reqs[2].Messages {
		assert.NotContains(t, m.Content, "[Proposal review results]")
	}
}

func TestRun_SessionErrors(t *testing.T) {
	f := newFixture(t, llmtest.NewMockLLM())
	ctx := context.Background()

	_, err := f.orch.Run(ctx, &Request{ProjectID: "p1", SessionID: "missing", Message: strPtr("hi")})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.store.CreateAISession(ctx, &store.AISession{ID: "s-other", ProjectID: "p2", TitleSource: store.TitleSourceDefault})
	require.NoError(t, err)
	_, err = f.orch.Run(ctx, &Request{ProjectID: "p1", SessionID: "s-other", Message: strPtr("hi")})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.orch.Run(ctx, &Request{ProjectID: "p1", Message: strPtr("   ")})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRun_ModelErrorEmitsSingleErrorEvent(t *testing.T) {
	mock := llmtest.NewMockLLM().WithTurn(llmtest.Turn{
		Steps: []llmtest.Step{{Text: "Partial"}},
		Err:   errors.New("upstream unavailable"),
	})
	f := newFixture(t, mock)

	stream, err := f.orch.Run(context.Background(), &Request{ProjectID: "p1", Message: strPtr("hi"), Mode: registry.ModeAsk})
	require.NoError(t, err)
	evs := collect(t, stream)

	assert.Equal(t, []events.Type{events.TypeText, events.TypeError}, types(evs))
	assert.Contains(t, evs[1].Error, "upstream unavailable")

	log := f.log(t, stream.SessionID)
	require.Len(t, log.Messages, 2)
	assert.Equal(t, "Partial", log.Messages[1].(*store.TextMessage).Content)
}

func TestRun_ContextFailureIsErrorEvent(t *testing.T) {
	f := newFixture(t, llmtest.NewMockLLM())

	stream, err := f.orch.Run(context.Background(), &Request{ProjectID: "p-missing", Message: strPtr("hi"), Mode: registry.ModeAsk})
	require.NoError(t, err)
	evs := collect(t, stream)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeError, evs[0].Type)
	assert.Empty(t, f.llm.StepRequests())
}

func TestRun_CancelReleasesResources(t *testing.T) {
	mock := llmtest.NewMockLLM().WithTurn(llmtest.Turn{Steps: []llmtest.Step{{Text: "thinking"}}, Block: true})
	f := newFixture(t, mock)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := f.orch.Run(ctx, &Request{ProjectID: "p1", Message: strPtr("hi"), Mode: registry.ModeAsk})
	require.NoError(t, err)

	ch, err := stream.Consume()
	require.NoError(t, err)
	ev := <-ch
	assert.Equal(t, events.TypeText, ev.Type)
	cancel()

	for range ch {
	}

	// The user message and the partial text survive the cancellation.
	require.Eventually(t, func() bool {
		return len(f.log(t, stream.SessionID).Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_CloseWithoutConsuming(t *testing.T) {
	mock := llmtest.NewMockLLM().WithTurn(llmtest.Turn{Steps: []llmtest.Step{{Text: "thinking"}}, Block: true})
	f := newFixture(t, mock)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stream, err := f.orch.Run(context.Background(), &Request{ProjectID: "p1", Message: strPtr("hi"), Mode: registry.ModeAsk})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(f.llm.StepRequests()) == 1 }, 2*time.Second, 10*time.Millisecond)

	var cont proposal.Stream = stream
	cont.Close()
	cont.Close()

	require.Eventually(t, func() bool {
		return len(f.log(t, stream.SessionID).Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_SingleUse(t *testing.T) {
	s := newStream("s1", nil)
	_, err := s.Consume()
	require.NoError(t, err)
	_, err = s.Consume()
	assert.ErrorIs(t, err, ErrStreamConsumed)

	ev, ok := <-s.Events()
	require.True(t, ok)
	assert.Equal(t, events.TypeError, ev.Type)
}

func TestBackgroundTitle(t *testing.T) {
	mock := llmtest.NewMockLLM().
		WithDefaultResponse(`{"title": "Tram at dawn"}`).
		WithTurn(llmtest.Turn{Steps: []llmtest.Step{{Text: "A tram climbs at dawn."}}})
	f := newFixture(t, mock)
	queue := tasks.NewQueue(8, nil)
	f.orch.Tasks = queue
	f.orch.Titles = ai.NewTitleGenerator(mock)

	stream, err := f.orch.Run(context.Background(), &Request{ProjectID: "p1", Message: strPtr("Open with the tram"), Mode: registry.ModeAsk})
	require.NoError(t, err)
	collect(t, stream)
	require.NoError(t, queue.Close(5*time.Second))

	session, err := f.store.GetAISession(context.Background(), stream.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Tram at dawn", session.Title)
	assert.Equal(t, store.TitleSourceAuto, session.TitleSource)
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "Fix the opening", defaultTitle("  Fix   the\nopening "))
	long := defaultTitle(strings.Repeat("é", 80))
	assert.Equal(t, defaultTitleRunes+3, len([]rune(long)))
}
