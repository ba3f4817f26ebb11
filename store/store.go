package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/inkwell/internal/profile"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// Driver is the persistence backend of the AI engine.
// Get* lookups return (nil, nil) when the record does not exist.
type Driver interface {
	GetDB() *sql.DB
	Migrate(ctx context.Context) error
	Close() error

	CreateAISession(ctx context.Context, create *AISession) (*AISession, error)
	ListAISessions(ctx context.Context, find *FindAISession) ([]*AISession, error)
	UpdateAISession(ctx context.Context, update *UpdateAISession) (*AISession, error)
	// DeleteAISession removes the session together with its message log and summary.
	DeleteAISession(ctx context.Context, delete *DeleteAISession) error

	// GetAIMessageLog returns an empty log at revision 0 when nothing was saved yet.
	GetAIMessageLog(ctx context.Context, sessionID string) (*AIMessageLog, error)
	// SaveAIMessageLog rewrites the whole log and bumps its revision.
	SaveAIMessageLog(ctx context.Context, log *AIMessageLog) error

	GetAISummary(ctx context.Context, sessionID string) (*AISummary, error)
	UpsertAISummary(ctx context.Context, summary *AISummary) error

	CreateAIMemory(ctx context.Context, create *AIMemory) (*AIMemory, error)
	ListAIMemories(ctx context.Context, find *FindAIMemory) ([]*AIMemory, error)
	DeleteAIMemory(ctx context.Context, delete *DeleteAIMemory) (bool, error)
}

// Store provides database access to all AI engine records.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

// NewID returns a short random identifier for messages, proposals and memories.
func NewID() string {
	return shortuuid.New()
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateAISession(ctx context.Context, create *AISession) (*AISession, error) {
	return s.driver.CreateAISession(ctx, create)
}

// GetAISession returns the session or nil when it does not exist.
func (s *Store) GetAISession(ctx context.Context, id string) (*AISession, error) {
	list, err := s.driver.ListAISessions(ctx, &FindAISession{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListAISessions(ctx context.Context, find *FindAISession) ([]*AISession, error) {
	return s.driver.ListAISessions(ctx, find)
}

func (s *Store) UpdateAISession(ctx context.Context, update *UpdateAISession) (*AISession, error) {
	return s.driver.UpdateAISession(ctx, update)
}

func (s *Store) DeleteAISession(ctx context.Context, delete *DeleteAISession) error {
	return s.driver.DeleteAISession(ctx, delete)
}

func (s *Store) GetAIMessageLog(ctx context.Context, sessionID string) (*AIMessageLog, error) {
	return s.driver.GetAIMessageLog(ctx, sessionID)
}

func (s *Store) SaveAIMessageLog(ctx context.Context, log *AIMessageLog) error {
	return s.driver.SaveAIMessageLog(ctx, log)
}

func (s *Store) GetAISummary(ctx context.Context, sessionID string) (*AISummary, error) {
	return s.driver.GetAISummary(ctx, sessionID)
}

func (s *Store) UpsertAISummary(ctx context.Context, summary *AISummary) error {
	return s.driver.UpsertAISummary(ctx, summary)
}

func (s *Store) CreateAIMemory(ctx context.Context, create *AIMemory) (*AIMemory, error) {
	return s.driver.CreateAIMemory(ctx, create)
}

func (s *Store) ListAIMemories(ctx context.Context, find *FindAIMemory) ([]*AIMemory, error) {
	return s.driver.ListAIMemories(ctx, find)
}

func (s *Store) DeleteAIMemory(ctx context.Context, delete *DeleteAIMemory) (bool, error) {
	return s.driver.DeleteAIMemory(ctx, delete)
}
