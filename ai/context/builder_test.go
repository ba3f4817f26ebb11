package context

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/plugin/content/memstore"
	"github.com/hrygo/inkwell/store"
)

type countingSummaries struct {
	content.SummaryProvider
	calls int
	err   error
}

func (c *countingSummaries) ProjectSummary(ctx context.Context, projectID string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.SummaryProvider.ProjectSummary(ctx, projectID)
}

type staticMemories struct {
	list []*store.AIMemory
}

func (s *staticMemories) Save(context.Context, string, string) (*store.AIMemory, error) {
	return nil, errors.New("read only")
}
func (s *staticMemories) Delete(context.Context, string, string) (bool, error) { return false, nil }
func (s *staticMemories) List(context.Context, string) ([]*store.AIMemory, error) {
	return s.list, nil
}

func seed() *memstore.Store {
	cs := memstore.New()
	cs.Put(store.ContentTypeProject, &content.Entity{ID: "p1", Name: "Lisbon Nights"})
	cs.Put(store.ContentTypeManuscript, &content.Entity{
		ID: "ms-1", ProjectID: "p1", Name: "Chapter 1",
		Fields: map[string]any{"content": "The tram climbed.\nRain fell.", "wordCount": 27},
	})
	cs.Put(store.ContentTypeManuscript, &content.Entity{ID: "ms-x", ProjectID: "p2", Name: "Foreign"})
	return cs
}

func TestBuild(t *testing.T) {
	cs := seed()
	summaries := &countingSummaries{SummaryProvider: cs}
	memories := &staticMemories{list: []*store.AIMemory{{ID: "m1", Content: "Narrator is unreliable"}}}
	b := NewBuilder(cs.Registry(), summaries, memories, DefaultBudget())

	result, err := b.Build(context.Background(), &Request{
		ProjectID: "p1",
		ActiveTab: &ActiveTab{ID: "ms-1", ContentType: store.ContentTypeManuscript},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Active)
	assert.Equal(t, "content", result.Active.TextField)
	assert.Len(t, result.Memories, 1)

	rendered := result.Render("They agreed on a darker ending.")
	assert.Contains(t, rendered, "Chapter 1 (id: ms-1)")
	assert.Contains(t, rendered, "1| The tram climbed.\n2| Rain fell.")
	assert.Contains(t, rendered, "wordCount: 27")
	assert.Contains(t, rendered, "- [m1] Narrator is unreliable")
	assert.Contains(t, rendered, "## Earlier in this conversation\nThey agreed on a darker ending.")

	_, err = b.Build(context.Background(), &Request{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summaries.calls, "summary should be cached")

	b.Invalidate("p1")
	_, err = b.Build(context.Background(), &Request{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 2, summaries.calls)
}

func TestBuild_SkipsForeignOrMissingTab(t *testing.T) {
	cs := seed()
	b := NewBuilder(cs.Registry(), cs, nil, DefaultBudget())

	for _, tab := range []*ActiveTab{
		{ID: "ms-x", ContentType: store.ContentTypeManuscript},
		{ID: "missing", ContentType: store.ContentTypePlot},
		{ID: "ms-1", ContentType: "spreadsheet"},
	} {
		result, err := b.Build(context.Background(), &Request{ProjectID: "p1", ActiveTab: tab})
		require.NoError(t, err)
		assert.Nil(t, result.Active, tab.ID)
		assert.NotContains(t, result.Render(""), "## Open document")
	}
}

func TestBuild_Budget(t *testing.T) {
	cs := seed()
	memories := &staticMemories{list: []*store.AIMemory{{ID: "old"}, {ID: "mid"}, {ID: "new"}}}
	b := NewBuilder(cs.Registry(), cs, memories, Budget{MaxActiveRunes: 8, MaxMemories: 2})

	result, err := b.Build(context.Background(), &Request{
		ProjectID: "p1",
		ActiveTab: &ActiveTab{ID: "ms-1", ContentType: store.ContentTypeManuscript},
	})
	require.NoError(t, err)
	assert.True(t, result.Active.Truncated)
	assert.Equal(t, "The tram", result.Active.Entity.Fields["content"])
	assert.Equal(t, []string{"mid", "new"}, []string{result.Memories[0].ID, result.Memories[1].ID})
	assert.True(t, strings.Contains(result.Render(""), "[document truncated"))

	stored, _, _ := cs.Get("ms-1")
	assert.Equal(t, "The tram climbed.\nRain fell.", stored.Fields["content"])
}

func TestBuild_SummaryFailure(t *testing.T) {
	cs := seed()
	b := NewBuilder(cs.Registry(), &countingSummaries{SummaryProvider: cs, err: errors.New("db down")}, nil, DefaultBudget())
	_, err := b.Build(context.Background(), &Request{ProjectID: "p1"})
	assert.ErrorContains(t, err, "db down")
}

// sharedAdapter returns its stored entity without copying.
type sharedAdapter struct {
	content.Adapter
	entity *content.Entity
}

func (a *sharedAdapter) GetByID(context.Context, string) (*content.Entity, error) {
	return a.entity, nil
}

func TestBuild_TruncationLeavesAdapterEntity(t *testing.T) {
	cs := seed()
	doc := &content.Entity{ID: "ms-2", ProjectID: "p1", Name: "Chapter 2", Fields: map[string]any{"content": "Longer than eight runes"}}
	registry := content.NewRegistry(&sharedAdapter{}).Register(store.ContentTypeManuscript, &sharedAdapter{entity: doc})
	b := NewBuilder(registry, cs, nil, Budget{MaxActiveRunes: 8})

	for range 2 {
		result, err := b.Build(context.Background(), &Request{
			ProjectID: "p1",
			ActiveTab: &ActiveTab{ID: "ms-2", ContentType: store.ContentTypeManuscript},
		})
		require.NoError(t, err)
		assert.True(t, result.Active.Truncated)
		assert.Equal(t, "Longer t", result.Active.Entity.Fields["content"])
	}
	assert.Equal(t, "Longer than eight runes", doc.Fields["content"])
}
