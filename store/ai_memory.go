package store

// AIMemory is a project-scoped long-term note. Memories are never mutated in place.
type AIMemory struct {
	ID        string
	ProjectID string
	Content   string
	CreatedTs int64
}

type FindAIMemory struct {
	ID        *string
	ProjectID *string
}

type DeleteAIMemory struct {
	ID        string
	ProjectID string
}

// AISummary caches a compressed prefix of a session's log.
// SummarizedUpTo is the message index of the first turn left uncompressed.
type AISummary struct {
	SessionID      string
	Summary        string
	SummarizedUpTo int
	CreatedTs      int64
}
