// Package content defines the narrow interfaces through which the AI engine
// reads and mutates project content it does not own.
package content

import (
	"context"
	"fmt"
	"time"

	"github.com/hrygo/inkwell/store"
)

// Entity is a content item as seen by the AI engine.
// UpdatedAt is the optimistic-concurrency token.
type Entity struct {
	ID        string
	ProjectID string
	ParentID  string
	Name      string
	Fields    map[string]any
	UpdatedAt time.Time
}

// CreateEntity is the payload for a new content item.
type CreateEntity struct {
	ProjectID string
	ParentID  string
	Name      string
	Order     int
	Fields    map[string]any
}

// Adapter exposes one content kind to the engine.
type Adapter interface {
	// GetByID returns (nil, nil) when the entity does not exist.
	GetByID(ctx context.Context, id string) (*Entity, error)
	// Update writes only the given fields and advances UpdatedAt.
	Update(ctx context.Context, id string, fields map[string]any) (*Entity, error)
	Create(ctx context.Context, create *CreateEntity) (*Entity, error)
}

// SummaryProvider renders human-readable listings for prompt injection.
type SummaryProvider interface {
	// ProjectSummary lists every entity of the project with per-kind counts.
	ProjectSummary(ctx context.Context, projectID string) (string, error)
}

// MemoryStore persists project-scoped memory notes.
type MemoryStore interface {
	Save(ctx context.Context, projectID, content string) (*store.AIMemory, error)
	Delete(ctx context.Context, projectID, id string) (bool, error)
	List(ctx context.Context, projectID string) ([]*store.AIMemory, error)
}

// Registry dispatches content types to their adapters.
// Projects are tree roots and are kept apart from tree content.
type Registry struct {
	project Adapter
	tree    map[store.ContentType]Adapter
}

// NewRegistry creates a registry with the project adapter.
func NewRegistry(project Adapter) *Registry {
	return &Registry{project: project, tree: map[store.ContentType]Adapter{}}
}

// Register binds a tree content type to its adapter.
func (r *Registry) Register(t store.ContentType, a Adapter) *Registry {
	r.tree[t] = a
	return r
}

// Adapter returns the adapter for t.
func (r *Registry) Adapter(t store.ContentType) (Adapter, error) {
	if t == store.ContentTypeProject {
		if r.project == nil {
			return nil, fmt.Errorf("no adapter for content type %q", t)
		}
		return r.project, nil
	}
	if !t.IsTree() {
		return nil, fmt.Errorf("unknown content type %q", t)
	}
	a, ok := r.tree[t]
	if !ok {
		return nil, fmt.Errorf("no adapter for content type %q", t)
	}
	return a, nil
}

// TextField is the field holding the main text of a content type,
// the one line edits usually target.
func TextField(t store.ContentType) string {
	switch t {
	case store.ContentTypeManuscript, store.ContentTypeMemo:
		return "content"
	case store.ContentTypeCharacter:
		return "description"
	case store.ContentTypePlot:
		return "synopsis"
	default:
		return "description"
	}
}
