package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrygo/inkwell/store"
)

func (d *DB) CreateAISession(ctx context.Context, create *store.AISession) (*store.AISession, error) {
	usage, err := json.Marshal(create.CumulativeUsage)
	if err != nil {
		return nil, fmt.Errorf("failed to encode usage: %w", err)
	}
	fields := []string{"id", "project_id", "title", "title_source", "usage", "created_ts", "updated_ts"}
	args := []any{create.ID, create.ProjectID, create.Title, create.TitleSource, string(usage), create.CreatedTs, create.UpdatedTs}
	stmt := `INSERT INTO ai_session (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to create ai_session: %w", err)
	}
	return create, nil
}

func (d *DB) ListAISessions(ctx context.Context, find *store.FindAISession) ([]*store.AISession, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.ProjectID != nil {
		where, args = append(where, "project_id = ?"), append(args, *find.ProjectID)
	}

	query := `SELECT id, project_id, title, title_source, usage, created_ts, updated_ts
		FROM ai_session
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_ts DESC`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai_sessions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.AISession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ai_sessions: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateAISession(ctx context.Context, update *store.UpdateAISession) (*store.AISession, error) {
	set, args := []string{}, []any{}
	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.TitleSource != nil {
		set, args = append(set, "title_source = ?"), append(args, *update.TitleSource)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}
	if update.CumulativeUsage != nil {
		usage, err := json.Marshal(update.CumulativeUsage)
		if err != nil {
			return nil, fmt.Errorf("failed to encode usage: %w", err)
		}
		set, args = append(set, "usage = ?"), append(args, string(usage))
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE ai_session SET ` + strings.Join(set, ", ") + ` WHERE id = ?
		RETURNING id, project_id, title, title_source, usage, created_ts, updated_ts`
	result, err := scanSession(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update ai_session: %w", err)
	}
	return result, nil
}

func (d *DB) DeleteAISession(ctx context.Context, delete *store.DeleteAISession) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM ai_session WHERE id = ?`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete ai_session: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ai_message_log WHERE session_id = ?`, delete.ID); err != nil {
		return fmt.Errorf("failed to delete ai_message_log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ai_summary WHERE session_id = ?`, delete.ID); err != nil {
		return fmt.Errorf("failed to delete ai_summary: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*store.AISession, error) {
	s := &store.AISession{}
	var usage string
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Title, &s.TitleSource, &usage, &s.CreatedTs, &s.UpdatedTs); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ai_session: %w", err)
	}
	if err := json.Unmarshal([]byte(usage), &s.CumulativeUsage); err != nil {
		return nil, fmt.Errorf("failed to decode usage of session %s: %w", s.ID, err)
	}
	return s, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
