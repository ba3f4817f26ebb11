package orchestrator

import (
	"context"
	"sync/atomic"

	"github.com/hrygo/inkwell/ai/agents/events"
)

const streamBuffer = 16

// Stream is the single-use event stream of one turn. It always ends with
// a done or error event unless it is closed first. The turn blocks until
// the channel is drained or Close is called.
type Stream struct {
	SessionID string
	ch        chan events.Event
	consumed  atomic.Bool
	cancel    context.CancelFunc
}

func newStream(sessionID string, cancel context.CancelFunc) *Stream {
	return &Stream{SessionID: sessionID, ch: make(chan events.Event, streamBuffer), cancel: cancel}
}

// Close cancels the turn. Whatever was appended so far is persisted and
// the event channel is closed. It is safe to call after the turn ended.
func (s *Stream) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Consume hands out the event channel. Only the first call succeeds.
func (s *Stream) Consume() (<-chan events.Event, error) {
	if !s.consumed.CompareAndSwap(false, true) {
		return nil, ErrStreamConsumed
	}
	return s.ch, nil
}

// Events is Consume for callers that cannot handle an error. A second call
// yields a closed channel carrying only an error event.
func (s *Stream) Events() <-chan events.Event {
	ch, err := s.Consume()
	if err == nil {
		return ch
	}
	failed := make(chan events.Event, 1)
	failed <- events.Error(err.Error())
	close(failed)
	return failed
}
