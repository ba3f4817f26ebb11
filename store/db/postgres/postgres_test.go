package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/inkwell/internal/profile"
	"github.com/hrygo/inkwell/store"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholder(1))
	assert.Equal(t, "$1, $2, $3", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

func TestNewDB_RequiresDSN(t *testing.T) {
	_, err := NewDB(&profile.Profile{})
	assert.Error(t, err)
}

// TestAISessionRoundTrip runs against a live database when INKWELL_TEST_POSTGRES_DSN is set.
func TestAISessionRoundTrip(t *testing.T) {
	dsn := os.Getenv("INKWELL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INKWELL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	d, err := NewDB(&profile.Profile{DSN: dsn})
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Migrate(ctx))

	id := store.NewID()
	now := time.Now().UnixMilli()
	_, err = d.CreateAISession(ctx, &store.AISession{ID: id, ProjectID: "p1", TitleSource: store.TitleSourceDefault, CreatedTs: now, UpdatedTs: now})
	require.NoError(t, err)

	log, err := d.GetAIMessageLog(ctx, id)
	require.NoError(t, err)
	log.Messages = append(log.Messages, &store.TextMessage{MessageHeader: store.NewMessageHeader(), Role: store.RoleUser, Content: "hi"})
	require.NoError(t, d.SaveAIMessageLog(ctx, log))
	assert.Equal(t, int64(1), log.Revision)

	require.NoError(t, d.DeleteAISession(ctx, &store.DeleteAISession{ID: id}))
	log, err = d.GetAIMessageLog(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, log.Messages)
}
