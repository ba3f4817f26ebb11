package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/inkwell/internal/profile"
	"github.com/hrygo/inkwell/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the PostgreSQL database named by profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS ai_session (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	title_source TEXT NOT NULL DEFAULT 'default',
	usage JSONB NOT NULL DEFAULT '{}',
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_session_project ON ai_session (project_id, updated_ts);

CREATE TABLE IF NOT EXISTS ai_message_log (
	session_id TEXT PRIMARY KEY REFERENCES ai_session (id) ON DELETE CASCADE,
	messages JSONB NOT NULL DEFAULT '[]',
	revision BIGINT NOT NULL DEFAULT 0,
	updated_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_summary (
	session_id TEXT PRIMARY KEY REFERENCES ai_session (id) ON DELETE CASCADE,
	summary TEXT NOT NULL,
	summarized_up_to INTEGER NOT NULL,
	created_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_memory (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	content TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_memory_project ON ai_memory (project_id, created_ts);
`

// Migrate creates the AI engine tables when they are missing.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate postgres schema")
	}
	return nil
}

func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}
