// Package context assembles the project-level material injected into the
// system prompt of every chat turn.
package context

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/inkwell/ai/cache"
	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/ai/diff"
	"github.com/hrygo/inkwell/ai/internal/strutil"
	"github.com/hrygo/inkwell/store"
)

// Default budget values.
const (
	DefaultMaxActiveRunes = 24000
	DefaultMaxMemories    = 50
	summaryCacheTTL       = 2 * time.Minute
)

// Budget caps the size of each context section.
type Budget struct {
	MaxActiveRunes int
	MaxMemories    int
}

// DefaultBudget returns the budget used when none is configured.
func DefaultBudget() Budget {
	return Budget{MaxActiveRunes: DefaultMaxActiveRunes, MaxMemories: DefaultMaxMemories}
}

// ActiveTab identifies the document the user has open.
type ActiveTab struct {
	ID          string            `json:"id"`
	ContentType store.ContentType `json:"contentType"`
}

// Request contains parameters for context building.
type Request struct {
	ProjectID string
	ActiveTab *ActiveTab
}

// ActiveDocument is the full text of the open document.
type ActiveDocument struct {
	Entity      *content.Entity
	ContentType store.ContentType
	TextField   string
	Truncated   bool
}

// Result contains the built context.
type Result struct {
	ProjectSummary string
	Active         *ActiveDocument
	Memories       []*store.AIMemory
	BuildTime      time.Duration
}

// Builder gathers context sections concurrently.
type Builder struct {
	registry  *content.Registry
	summaries content.SummaryProvider
	memories  content.MemoryStore
	cache     *cache.LRU[string]
	budget    Budget
}

// NewBuilder creates a builder. Project summaries are cached briefly per project.
func NewBuilder(registry *content.Registry, summaries content.SummaryProvider, memories content.MemoryStore, budget Budget) *Builder {
	if budget.MaxActiveRunes <= 0 {
		budget.MaxActiveRunes = DefaultMaxActiveRunes
	}
	if budget.MaxMemories <= 0 {
		budget.MaxMemories = DefaultMaxMemories
	}
	return &Builder{
		registry:  registry,
		summaries: summaries,
		memories:  memories,
		cache:     cache.New[string](128, summaryCacheTTL),
		budget:    budget,
	}
}

// Build loads the project summary, the active document and the memory notes.
// A missing active document is skipped. Other failures fail the build.
func (b *Builder) Build(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	result := &Result{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := b.cache.GetOrLoad(gctx, summaryKey(req.ProjectID), func(ctx context.Context) (string, error) {
			return b.summaries.ProjectSummary(ctx, req.ProjectID)
		})
		if err != nil {
			return fmt.Errorf("failed to load project summary: %w", err)
		}
		result.ProjectSummary = summary
		return nil
	})
	if req.ActiveTab != nil && req.ActiveTab.ID != "" {
		g.Go(func() error {
			doc, err := b.loadActive(gctx, req.ProjectID, req.ActiveTab)
			if err != nil {
				return err
			}
			result.Active = doc
			return nil
		})
	}
	if b.memories != nil {
		g.Go(func() error {
			list, err := b.memories.List(gctx, req.ProjectID)
			if err != nil {
				return fmt.Errorf("failed to list memories: %w", err)
			}
			if len(list) > b.budget.MaxMemories {
				list = list[len(list)-b.budget.MaxMemories:]
			}
			result.Memories = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.BuildTime = time.Since(start)
	return result, nil
}

func (b *Builder) loadActive(ctx context.Context, projectID string, tab *ActiveTab) (*ActiveDocument, error) {
	adapter, err := b.registry.Adapter(tab.ContentType)
	if err != nil {
		slog.Debug("active tab has no adapter", "content_type", tab.ContentType, "error", err)
		return nil, nil
	}
	entity, err := adapter.GetByID(ctx, tab.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active document: %w", err)
	}
	if entity == nil || entity.ProjectID != projectID {
		return nil, nil
	}

	doc := &ActiveDocument{Entity: entity, ContentType: tab.ContentType, TextField: content.TextField(tab.ContentType)}
	if text, ok := entity.Fields[doc.TextField].(string); ok && utf8.RuneCountInString(text) > b.budget.MaxActiveRunes {
		// Adapters may hand out their stored entity; truncate a copy.
		cut := *entity
		cut.Fields = maps.Clone(entity.Fields)
		cut.Fields[doc.TextField] = strutil.Cut(text, b.budget.MaxActiveRunes)
		doc.Entity = &cut
		doc.Truncated = true
	}
	return doc, nil
}

// Invalidate drops cached material for a project after its content changed.
func (b *Builder) Invalidate(projectID string) {
	b.cache.Remove(summaryKey(projectID))
}

func summaryKey(projectID string) string { return "project:" + projectID }

// Render formats the result as system prompt sections. conversationSummary
// is the compressed history of older turns, if any.
func (r *Result) Render(conversationSummary string) string {
	var sb strings.Builder
	sb.WriteString("## Project overview\n")
	sb.WriteString(strings.TrimSpace(r.ProjectSummary))
	sb.WriteString("\n")

	if r.Active != nil {
		e := r.Active.Entity
		fmt.Fprintf(&sb, "\n## Open document: %s (%s, id: %s, updatedAt: %s)\n",
			e.Name, r.Active.ContentType, e.ID, e.UpdatedAt.Format(time.RFC3339))
		text, _ := e.Fields[r.Active.TextField].(string)
		if text != "" {
			fmt.Fprintf(&sb, "%s (numbered lines):\n%s\n", r.Active.TextField, diff.NumberLines(text))
		}
		if r.Active.Truncated {
			sb.WriteString("[document truncated; use get_content for the rest]\n")
		}
		for _, k := range sortedFieldNames(e.Fields, r.Active.TextField) {
			fmt.Fprintf(&sb, "%s: %v\n", k, e.Fields[k])
		}
	}

	if len(r.Memories) > 0 {
		sb.WriteString("\n## Memories\n")
		for _, m := range r.Memories {
			fmt.Fprintf(&sb, "- [%s] %s\n", m.ID, m.Content)
		}
	}

	if conversationSummary != "" {
		sb.WriteString("\n## Earlier in this conversation\n")
		sb.WriteString(conversationSummary)
		sb.WriteString("\n")
	}
	return sb.String()
}

func sortedFieldNames(fields map[string]any, skip string) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		if k != skip {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
