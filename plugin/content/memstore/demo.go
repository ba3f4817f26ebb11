package memstore

import (
	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/store"
)

// DemoProjectID is the project seeded by SeedDemo.
const DemoProjectID = "demo"

// SeedDemo fills s with a small sample project for demo mode.
func SeedDemo(s *Store) {
	s.Put(store.ContentTypeProject, &content.Entity{
		ID:     DemoProjectID,
		Name:   "The Lisbon Tram",
		Fields: map[string]any{"description": "A quiet mystery set on Lisbon's tram 28."},
	})
	s.Put(store.ContentTypeManuscript, &content.Entity{
		ID:        "demo-ch1",
		ProjectID: DemoProjectID,
		ParentID:  DemoProjectID,
		Name:      "Chapter 1",
		Fields: map[string]any{
			"content": "The tram climbed Graça in the rain.\nInês counted the stops.\nAt the seventh, the stranger got on.",
		},
	})
	s.Put(store.ContentTypeCharacter, &content.Entity{
		ID:        "demo-ines",
		ProjectID: DemoProjectID,
		ParentID:  DemoProjectID,
		Name:      "Inês",
		Fields:    map[string]any{"description": "A tram conductor who notices everything.", "role": "protagonist"},
	})
	s.Put(store.ContentTypePlot, &content.Entity{
		ID:        "demo-act1",
		ProjectID: DemoProjectID,
		ParentID:  DemoProjectID,
		Name:      "Act I",
		Fields:    map[string]any{"synopsis": "A stranger boards the tram every night at the same stop."},
	})
}
