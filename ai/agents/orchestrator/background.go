package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hrygo/inkwell/ai/services/tasks"
	"github.com/hrygo/inkwell/store"
)

// scheduleBackground enqueues title generation and summary refresh.
// Failures are logged by the queue and never reach the user.
func (o *Orchestrator) scheduleBackground(session *store.AISession) {
	if o.Tasks == nil {
		return
	}
	if o.Titles != nil && session.TitleSource == store.TitleSourceDefault {
		o.enqueue(&tasks.Task{Name: "title", Key: "title:" + session.ID, Run: o.refreshTitle(session.ID)})
	}
	if o.Compressor != nil {
		o.enqueue(&tasks.Task{Name: "summary", Key: "summary:" + session.ID, Run: o.refreshSummary(session.ID)})
	}
}

func (o *Orchestrator) enqueue(t *tasks.Task) {
	if !o.Tasks.Enqueue(t) {
		slog.Debug("background task skipped", "task", t.Name, "key", t.Key)
	}
}

func (o *Orchestrator) refreshTitle(sessionID string) func(context.Context) error {
	return func(ctx context.Context) error {
		session, err := o.Store.GetAISession(ctx, sessionID)
		if err != nil || session == nil || session.TitleSource != store.TitleSourceDefault {
			return err
		}
		log, err := o.Store.GetAIMessageLog(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load message log: %w", err)
		}
		title, err := o.Titles.GenerateFromMessages(ctx, log.Messages)
		if err != nil {
			return err
		}

		// The user may have renamed the session while the model was busy.
		session, err = o.Store.GetAISession(ctx, sessionID)
		if err != nil || session == nil || session.TitleSource != store.TitleSourceDefault {
			return err
		}
		source := store.TitleSourceAuto
		if _, err := o.Store.UpdateAISession(ctx, &store.UpdateAISession{
			ID:          sessionID,
			Title:       &title,
			TitleSource: &source,
		}); err != nil {
			return fmt.Errorf("failed to save title: %w", err)
		}
		slog.Debug("session title generated", "session_id", sessionID, "title", title)
		return nil
	}
}

func (o *Orchestrator) refreshSummary(sessionID string) func(context.Context) error {
	return func(ctx context.Context) error {
		log, err := o.Store.GetAIMessageLog(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load message log: %w", err)
		}
		return o.Compressor.Refresh(ctx, sessionID, log.Messages)
	}
}
