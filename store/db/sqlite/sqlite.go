package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/inkwell/internal/profile"
	"github.com/hrygo/inkwell/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database named by profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Notes:
	// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	// - Foreign keys stay off; session deletes cascade in a transaction.
	separator := "?"
	if strings.Contains(profile.DSN, "?") {
		separator = "&"
	}
	sqliteDB, err := sql.Open("sqlite", profile.DSN+separator+"_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite: single connection is optimal with WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS ai_session (
	id TEXT NOT NULL PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	title_source TEXT NOT NULL DEFAULT 'default',
	usage TEXT NOT NULL DEFAULT '{}',
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_session_project ON ai_session (project_id, updated_ts);

CREATE TABLE IF NOT EXISTS ai_message_log (
	session_id TEXT NOT NULL PRIMARY KEY,
	messages TEXT NOT NULL DEFAULT '[]',
	revision BIGINT NOT NULL DEFAULT 0,
	updated_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_summary (
	session_id TEXT NOT NULL PRIMARY KEY,
	summary TEXT NOT NULL,
	summarized_up_to INTEGER NOT NULL,
	created_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_memory (
	id TEXT NOT NULL PRIMARY KEY,
	project_id TEXT NOT NULL,
	content TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_memory_project ON ai_memory (project_id, created_ts);
`

// Migrate creates the AI engine tables when they are missing.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate sqlite schema")
	}
	return nil
}
