// Package orchestrator runs chat turns: it assembles prompt material,
// drives the model's tool loop and translates its events into the wire
// stream while persisting the session log.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/inkwell/ai"
	"github.com/hrygo/inkwell/ai/agents/registry"
	"github.com/hrygo/inkwell/ai/configloader"
	aicontext "github.com/hrygo/inkwell/ai/context"
	"github.com/hrygo/inkwell/ai/core/llm"
	"github.com/hrygo/inkwell/ai/internal/strutil"
	"github.com/hrygo/inkwell/ai/metrics"
	"github.com/hrygo/inkwell/ai/proposal"
	"github.com/hrygo/inkwell/ai/services/tasks"
	"github.com/hrygo/inkwell/ai/summary"
	"github.com/hrygo/inkwell/store"
)

var (
	// ErrSessionNotFound is returned when the requested session does not
	// exist or belongs to another project.
	ErrSessionNotFound = proposal.ErrSessionNotFound
	// ErrEmptyMessage is returned when a new session is requested without a message.
	ErrEmptyMessage = errors.New("message is required to start a session")
	// ErrStreamConsumed is returned when a stream is read a second time.
	ErrStreamConsumed = errors.New("stream already consumed")
)

const defaultTitleRunes = 50

// Request starts one model turn.
type Request struct {
	ProjectID string
	// SessionID is empty to start a new session.
	SessionID string
	// Message is nil for a continuation turn.
	Message   *string
	Mode      registry.Mode
	ActiveTab *aicontext.ActiveTab
}

// Deps are the collaborators of the orchestrator. Titles, Tasks, Metrics
// and Assistant may be nil.
type Deps struct {
	Store      *store.Store
	LLM        llm.Service
	Tools      *registry.ToolRegistry
	Proposals  *proposal.Manager
	Context    *aicontext.Builder
	Compressor *summary.Compressor
	Titles     *ai.TitleGenerator
	Tasks      *tasks.Queue
	Assistant  *configloader.AssistantConfig
	Metrics    *metrics.PrometheusExporter
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	Deps
}

// New creates an orchestrator and registers it as the continuation
// scheduler of the proposal manager.
func New(d Deps) *Orchestrator {
	if d.Assistant == nil {
		d.Assistant = configloader.DefaultAssistantConfig()
	}
	o := &Orchestrator{Deps: d}
	if d.Proposals != nil {
		d.Proposals.SetScheduler(o)
	}
	return o
}

// Run starts a turn and returns its event stream. Session lookup failures
// are returned directly. Every later failure arrives as an error event.
// The turn runs until the stream is drained, closed or ctx is done.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Stream, error) {
	session, err := o.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &turn{
		o:       o,
		req:     req,
		session: session,
		mode:    o.Assistant.Mode(string(req.Mode)),
		stream:  newStream(session.ID, cancel),
	}
	go func() {
		defer cancel()
		t.run(ctx)
	}()
	return t.stream, nil
}

// ScheduleContinuation starts the turn that reacts to resolved proposals.
func (o *Orchestrator) ScheduleContinuation(ctx context.Context, ev proposal.AllProposalsResolved) (proposal.Stream, error) {
	if o.Context != nil {
		o.Context.Invalidate(ev.ProjectID)
	}
	stream, err := o.Run(ctx, &Request{
		ProjectID: ev.ProjectID,
		SessionID: ev.SessionID,
		Mode:      registry.ModeWrite,
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (o *Orchestrator) resolveSession(ctx context.Context, req *Request) (*store.AISession, error) {
	if req.SessionID != "" {
		session, err := o.Store.GetAISession(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if session == nil || session.ProjectID != req.ProjectID {
			return nil, ErrSessionNotFound
		}
		return session, nil
	}

	if req.Message == nil || strings.TrimSpace(*req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	now := time.Now().Unix()
	session, err := o.Store.CreateAISession(ctx, &store.AISession{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		Title:       defaultTitle(*req.Message),
		TitleSource: store.TitleSourceDefault,
		CreatedTs:   now,
		UpdatedTs:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func defaultTitle(message string) string {
	return strutil.Truncate(strutil.CollapseSpace(message), defaultTitleRunes)
}
