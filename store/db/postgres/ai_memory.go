package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/inkwell/store"
)

func (d *DB) CreateAIMemory(ctx context.Context, create *store.AIMemory) (*store.AIMemory, error) {
	stmt := `INSERT INTO ai_memory (id, project_id, content, created_ts) VALUES (` + placeholders(4) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, create.ID, create.ProjectID, create.Content, create.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create ai_memory: %w", err)
	}
	return create, nil
}

func (d *DB) ListAIMemories(ctx context.Context, find *store.FindAIMemory) ([]*store.AIMemory, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.ProjectID != nil {
		where, args = append(where, "project_id = "+placeholder(len(args)+1)), append(args, *find.ProjectID)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, project_id, content, created_ts FROM ai_memory
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_ts ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai_memories: %w", err)
	}
	defer rows.Close()

	list := make([]*store.AIMemory, 0)
	for rows.Next() {
		m := &store.AIMemory{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Content, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan ai_memory: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ai_memories: %w", err)
	}
	return list, nil
}

func (d *DB) DeleteAIMemory(ctx context.Context, delete *store.DeleteAIMemory) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM ai_memory WHERE id = `+placeholder(1)+` AND project_id = `+placeholder(2), delete.ID, delete.ProjectID)
	if err != nil {
		return false, fmt.Errorf("failed to delete ai_memory: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
