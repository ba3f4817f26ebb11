package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/ai/diff"
	"github.com/hrygo/inkwell/store"
)

// Recorder receives proposal outcomes for metrics.
type Recorder interface {
	RecordProposal(action store.ProposalAction, status store.ProposalStatus)
}

// Manager accepts and rejects proposals stored in session logs.
type Manager struct {
	store     *store.Store
	registry  *content.Registry
	scheduler ContinuationScheduler
	recorder  Recorder

	// locks serializes resolution per session within this process.
	locks sync.Map
}

// NewManager creates a manager. The scheduler may be set later with SetScheduler.
func NewManager(s *store.Store, registry *content.Registry) *Manager {
	return &Manager{store: s, registry: registry}
}

// SetScheduler installs the continuation scheduler.
func (m *Manager) SetScheduler(s ContinuationScheduler) { m.scheduler = s }

// SetRecorder installs a metrics recorder.
func (m *Manager) SetRecorder(r Recorder) { m.recorder = r }

// CreateProposal wraps tool output in a pending proposal message.
func (m *Manager) CreateProposal(out *Output, toolCallID, toolName string) *store.ProposalMessage {
	return &store.ProposalMessage{
		MessageHeader:  store.NewMessageHeader(),
		Proposal:       out.Proposal,
		ProposalStatus: store.ProposalStatusPending,
		ToolCallID:     toolCallID,
		ToolName:       toolName,
	}
}

func (m *Manager) lock(sessionID string) func() {
	mu, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

// AcceptProposal validates the proposal against current content and commits it.
// Conflicts and adapter failures are reported in the Result, not as errors.
func (m *Manager) AcceptProposal(ctx context.Context, sessionID, proposalID string) (*Result, error) {
	return m.resolve(ctx, sessionID, proposalID, m.apply)
}

// RejectProposal marks the proposal rejected without touching content.
func (m *Manager) RejectProposal(ctx context.Context, sessionID, proposalID string) (*Result, error) {
	return m.resolve(ctx, sessionID, proposalID, func(context.Context, *store.AISession, *store.Proposal) outcome {
		return outcome{status: store.ProposalStatusRejected}
	})
}

type outcome struct {
	status store.ProposalStatus
	detail string
}

func (m *Manager) resolve(ctx context.Context, sessionID, proposalID string, decide func(context.Context, *store.AISession, *store.Proposal) outcome) (*Result, error) {
	unlock := m.lock(sessionID)
	session, msg, log, err := m.lookup(ctx, sessionID, proposalID)
	if err != nil {
		unlock()
		return nil, err
	}

	if msg.ProposalStatus.IsTerminal() {
		unlock()
		return &Result{
			ProposalID:      proposalID,
			Status:          msg.ProposalStatus,
			Feedback:        fmt.Sprintf("%s was already %s", msg.Proposal.TargetName, msg.ProposalStatus),
			ConflictDetails: msg.ConflictDetail,
			Refused:         true,
		}, nil
	}

	out := decide(ctx, session, msg.Proposal)
	msg.ProposalStatus = out.status
	msg.ConflictDetail = out.detail
	if err := m.store.SaveAIMessageLog(ctx, log); err != nil {
		unlock()
		return nil, fmt.Errorf("failed to save proposal status: %w", err)
	}
	unlock()

	if m.recorder != nil {
		m.recorder.RecordProposal(msg.Proposal.Action, out.status)
	}
	slog.Info("proposal resolved",
		"session_id", sessionID,
		"proposal_id", proposalID,
		"action", msg.Proposal.Action,
		"status", out.status,
	)

	result := &Result{
		ProposalID:      proposalID,
		Status:          out.status,
		Feedback:        Feedback(msg.Proposal, out.status),
		ConflictDetails: out.detail,
	}
	return m.buildProposalResult(ctx, session, log, result)
}

func (m *Manager) lookup(ctx context.Context, sessionID, proposalID string) (*store.AISession, *store.ProposalMessage, *store.AIMessageLog, error) {
	session, err := m.store.GetAISession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, nil, nil, ErrSessionNotFound
	}
	log, err := m.store.GetAIMessageLog(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load message log: %w", err)
	}
	msg := log.FindProposal(proposalID)
	if msg == nil {
		return nil, nil, nil, ErrProposalNotFound
	}
	return session, msg, log, nil
}

// buildProposalResult attaches a continuation stream once no proposal is pending.
func (m *Manager) buildProposalResult(ctx context.Context, session *store.AISession, log *store.AIMessageLog, result *Result) (*Result, error) {
	for _, p := range log.Proposals() {
		if p.ProposalStatus == store.ProposalStatusPending {
			return result, nil
		}
	}
	if m.scheduler == nil {
		return result, nil
	}
	stream, err := m.scheduler.ScheduleContinuation(ctx, AllProposalsResolved{SessionID: session.ID, ProjectID: session.ProjectID})
	if err != nil {
		// The status change is already persisted; the user can still continue by chatting.
		slog.Warn("failed to schedule continuation", "session_id", session.ID, "error", err)
		return result, nil
	}
	result.Stream = stream
	return result, nil
}

// apply commits an accepted proposal. Every failure downgrades to a conflict.
func (m *Manager) apply(ctx context.Context, session *store.AISession, p *store.Proposal) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{status: store.ProposalStatusConflict, detail: fmt.Sprintf("failed to apply proposal: %v", r)}
		}
	}()

	adapter, err := m.registry.Adapter(p.ContentType)
	if err != nil {
		return conflict(err.Error())
	}

	switch p.Action {
	case store.ProposalActionCreate:
		fields := map[string]any{}
		for name, change := range p.Proposed {
			if rc, ok := change.(store.ReplaceChange); ok {
				fields[name] = rc.Value
			}
		}
		addWordCount(p.ContentType, fields)
		if _, err := adapter.Create(ctx, &content.CreateEntity{
			ProjectID: session.ProjectID,
			ParentID:  p.ParentID,
			Name:      p.TargetName,
			Order:     0,
			Fields:    fields,
		}); err != nil {
			return conflict(err.Error())
		}
		return outcome{status: store.ProposalStatusAccepted}

	case store.ProposalActionUpdate:
		entity, err := adapter.GetByID(ctx, p.TargetID)
		if err != nil {
			return conflict(err.Error())
		}
		if entity == nil {
			return conflict(fmt.Sprintf("%s %q no longer exists", p.ContentType, p.TargetName))
		}
		if conflicts := detectConflicts(p, entity); len(conflicts) > 0 {
			return conflict(diff.DescribeConflicts(conflicts))
		}

		fields, err := resolveChanges(p.Proposed, entity)
		if err != nil {
			return conflict(err.Error())
		}
		addWordCount(p.ContentType, fields)
		if _, err := adapter.Update(ctx, p.TargetID, fields); err != nil {
			return conflict(err.Error())
		}
		return outcome{status: store.ProposalStatusAccepted}

	default:
		return conflict(fmt.Sprintf("unknown proposal action %q", p.Action))
	}
}

func conflict(detail string) outcome {
	return outcome{status: store.ProposalStatusConflict, detail: detail}
}

// detectConflicts runs only when the entity changed since the proposal was made.
func detectConflicts(p *store.Proposal, entity *content.Entity) []string {
	if p.UpdatedAt == nil || entity.UpdatedAt.Equal(*p.UpdatedAt) {
		return nil
	}
	if p.Proposed.HasLineEdits() {
		field := firstLineEditsField(p.Proposed)
		text, _ := entity.Fields[field].(string)
		return diff.DetectLineEditsConflict(p.Original, text)
	}
	return diff.DetectConflictFields(p.Original, entity.Fields)
}

func firstLineEditsField(changes store.FieldChanges) string {
	for _, name := range changes.Fields() {
		if _, ok := changes[name].(store.LineEditsChange); ok {
			return name
		}
	}
	return ""
}

func resolveChanges(changes store.FieldChanges, entity *content.Entity) (map[string]any, error) {
	fields := make(map[string]any, len(changes))
	for name, change := range changes {
		switch c := change.(type) {
		case store.ReplaceChange:
			fields[name] = c.Value
		case store.LineEditsChange:
			current, ok := entity.Fields[name].(string)
			if !ok && entity.Fields[name] != nil {
				return nil, fmt.Errorf("field %q is not text", name)
			}
			fields[name] = diff.ApplyLineEdits(current, c.Edits)
		default:
			return nil, fmt.Errorf("field %q: unknown change %T", name, change)
		}
	}
	return fields, nil
}

// addWordCount derives the manuscript word count as the character length of its content.
func addWordCount(t store.ContentType, fields map[string]any) {
	if t != store.ContentTypeManuscript {
		return
	}
	if text, ok := fields["content"].(string); ok {
		fields["wordCount"] = utf8.RuneCountInString(text)
	}
}

// Feedback is the one-line outcome shown to the user and replayed to the model.
func Feedback(p *store.Proposal, status store.ProposalStatus) string {
	name := p.TargetName
	if name == "" {
		name = p.TargetID
	}
	return fmt.Sprintf("%s %s %q: %s", actionVerb(p.Action), p.ContentType, name, status)
}

func actionVerb(a store.ProposalAction) string {
	if a == store.ProposalActionCreate {
		return "Create"
	}
	return "Update"
}
