package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hrygo/inkwell/store"
)

func (d *DB) GetAIMessageLog(ctx context.Context, sessionID string) (*store.AIMessageLog, error) {
	var (
		raw []byte
		log = &store.AIMessageLog{SessionID: sessionID}
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT messages, revision, updated_ts FROM ai_message_log WHERE session_id = `+placeholder(1), sessionID,
	).Scan(&raw, &log.Revision, &log.UpdatedTs)
	if err == sql.ErrNoRows {
		log.Messages = []store.AIMessage{}
		return log, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ai_message_log: %w", err)
	}

	messages, err := store.UnmarshalMessages(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ai_message_log %s: %w", sessionID, err)
	}
	log.Messages = messages
	return log, nil
}

func (d *DB) SaveAIMessageLog(ctx context.Context, log *store.AIMessageLog) error {
	raw, err := store.MarshalMessages(log.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode ai_message_log %s: %w", log.SessionID, err)
	}
	now := time.Now().UnixMilli()
	stmt := `INSERT INTO ai_message_log (session_id, messages, revision, updated_ts)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, 1, ` + placeholder(3) + `)
		ON CONFLICT (session_id) DO UPDATE SET
			messages = EXCLUDED.messages,
			revision = ai_message_log.revision + 1,
			updated_ts = EXCLUDED.updated_ts
		RETURNING revision`
	if err := d.db.QueryRowContext(ctx, stmt, log.SessionID, string(raw), now).Scan(&log.Revision); err != nil {
		return fmt.Errorf("failed to save ai_message_log: %w", err)
	}
	log.UpdatedTs = now
	return nil
}

func (d *DB) GetAISummary(ctx context.Context, sessionID string) (*store.AISummary, error) {
	s := &store.AISummary{SessionID: sessionID}
	err := d.db.QueryRowContext(ctx,
		`SELECT summary, summarized_up_to, created_ts FROM ai_summary WHERE session_id = `+placeholder(1), sessionID,
	).Scan(&s.Summary, &s.SummarizedUpTo, &s.CreatedTs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ai_summary: %w", err)
	}
	return s, nil
}

func (d *DB) UpsertAISummary(ctx context.Context, summary *store.AISummary) error {
	stmt := `INSERT INTO ai_summary (session_id, summary, summarized_up_to, created_ts) VALUES (` + placeholders(4) + `)
		ON CONFLICT (session_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			summarized_up_to = EXCLUDED.summarized_up_to,
			created_ts = EXCLUDED.created_ts`
	if _, err := d.db.ExecContext(ctx, stmt, summary.SessionID, summary.Summary, summary.SummarizedUpTo, summary.CreatedTs); err != nil {
		return fmt.Errorf("failed to upsert ai_summary: %w", err)
	}
	return nil
}
