// Package proposal manages the lifecycle of reviewable content mutations:
// creation from tool output, lookup in the session log, and accept/reject
// with optimistic-concurrency conflict detection.
package proposal

import (
	"context"
	"errors"
	"fmt"

	"github.com/hrygo/inkwell/ai/agents/events"
	"github.com/hrygo/inkwell/store"
)

var (
	// ErrProposalNotFound is returned when no proposal with the ID exists in the session log.
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrSessionNotFound is returned when the session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// Output is the structured result of a proposal-producing tool. Its
// presence marks a tool result as a proposal rather than a plain result.
type Output struct {
	Proposal *store.Proposal `json:"proposal"`
}

// ForModel is what the model sees in place of the full proposal.
func (o *Output) ForModel() any {
	return map[string]any{
		"status":     "pending_review",
		"proposalId": o.Proposal.ID,
		"message":    fmt.Sprintf("Proposal to %s %q submitted for user review. Wait for the user's decision before proposing further changes to it.", o.Proposal.Action, o.Proposal.TargetName),
	}
}

// Stream is a continuation turn produced after all proposals are resolved.
// The turn holds a goroutine until its events are drained or Close is called.
type Stream interface {
	Events() <-chan events.Event
	Close()
}

// AllProposalsResolved is raised when the last pending proposal of a turn
// has been accepted, rejected or marked conflicting.
type AllProposalsResolved struct {
	SessionID string
	ProjectID string
}

// ContinuationScheduler starts the implicit assistant turn that reacts to
// resolved proposals.
type ContinuationScheduler interface {
	ScheduleContinuation(ctx context.Context, ev AllProposalsResolved) (Stream, error)
}

// Result is the outcome of an accept or reject call.
type Result struct {
	ProposalID      string               `json:"proposalId"`
	Status          store.ProposalStatus `json:"status"`
	Feedback        string               `json:"feedback"`
	ConflictDetails string               `json:"conflictDetails,omitempty"`
	// Refused is set when the proposal was already resolved and nothing changed.
	Refused bool `json:"refused,omitempty"`
	// Stream is set when this call resolved the last pending proposal.
	// Callers must drain it or call Close.
	Stream Stream `json:"-"`
}
