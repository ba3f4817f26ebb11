// Package memstore is an in-process content store implementing every
// content adapter and the project summary provider. It backs demo mode
// and tests.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/store"
)

type record struct {
	kind   store.ContentType
	order  int
	entity content.Entity
}

// Store holds content entities keyed by ID.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*record
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entities: map[string]*record{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Registry returns a registry wired to adapters for every content type.
func (s *Store) Registry() *content.Registry {
	r := content.NewRegistry(s.Adapter(store.ContentTypeProject))
	for _, t := range []store.ContentType{
		store.ContentTypePlot, store.ContentTypeCharacter, store.ContentTypeMemo, store.ContentTypeManuscript,
	} {
		r.Register(t, s.Adapter(t))
	}
	return r
}

// Adapter returns the adapter for one content kind.
func (s *Store) Adapter(kind store.ContentType) content.Adapter {
	return &kindAdapter{s: s, kind: kind}
}

// Put seeds an entity, replacing any entity with the same ID.
// A zero UpdatedAt is stamped with the current time.
func (s *Store) Put(kind store.ContentType, e *content.Entity) *content.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := clone(e)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = s.now()
	}
	if kind == store.ContentTypeProject && cp.ProjectID == "" {
		cp.ProjectID = cp.ID
	}
	s.entities[cp.ID] = &record{kind: kind, entity: cp}
	out := clone(&cp)
	return &out
}

// Get returns the entity with id regardless of kind.
func (s *Store) Get(id string) (*content.Entity, store.ContentType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[id]
	if !ok {
		return nil, "", false
	}
	out := clone(&rec.entity)
	return &out, rec.kind, true
}

// next returns a timestamp strictly after prev.
func (s *Store) next(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

// ProjectSummary lists the project's entities grouped by kind.
func (s *Store) ProjectSummary(_ context.Context, projectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.entities[projectID]
	if !ok || project.kind != store.ContentTypeProject {
		return "", fmt.Errorf("project %s not found", projectID)
	}

	byKind := map[store.ContentType][]*record{}
	for _, rec := range s.entities {
		if rec.kind == store.ContentTypeProject || rec.entity.ProjectID != projectID {
			continue
		}
		byKind[rec.kind] = append(byKind[rec.kind], rec)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s (id: %s)\n", project.entity.Name, project.entity.ID)
	for _, kind := range []store.ContentType{
		store.ContentTypeManuscript, store.ContentTypePlot, store.ContentTypeCharacter, store.ContentTypeMemo,
	} {
		list := byKind[kind]
		sort.Slice(list, func(i, j int) bool {
			if list[i].order != list[j].order {
				return list[i].order < list[j].order
			}
			return list[i].entity.Name < list[j].entity.Name
		})
		fmt.Fprintf(&b, "\n%s (%d):\n", kind, len(list))
		for _, rec := range list {
			fmt.Fprintf(&b, "- %s (id: %s)\n", rec.entity.Name, rec.entity.ID)
		}
	}
	return b.String(), nil
}

type kindAdapter struct {
	s    *Store
	kind store.ContentType
}

func (a *kindAdapter) GetByID(_ context.Context, id string) (*content.Entity, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	rec, ok := a.s.entities[id]
	if !ok || rec.kind != a.kind {
		return nil, nil
	}
	out := clone(&rec.entity)
	return &out, nil
}

func (a *kindAdapter) Update(_ context.Context, id string, fields map[string]any) (*content.Entity, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	rec, ok := a.s.entities[id]
	if !ok || rec.kind != a.kind {
		return nil, fmt.Errorf("%s %s not found", a.kind, id)
	}
	for k, v := range fields {
		if k == "name" || k == "title" {
			if name, ok := v.(string); ok {
				rec.entity.Name = name
			}
		}
		rec.entity.Fields[k] = v
	}
	rec.entity.UpdatedAt = a.s.next(rec.entity.UpdatedAt)
	out := clone(&rec.entity)
	return &out, nil
}

func (a *kindAdapter) Create(_ context.Context, create *content.CreateEntity) (*content.Entity, error) {
	if a.kind == store.ContentTypeProject {
		return nil, fmt.Errorf("projects cannot be created through the assistant")
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.entities[create.ProjectID]; !ok {
		return nil, fmt.Errorf("project %s not found", create.ProjectID)
	}
	if create.ParentID != "" {
		if _, ok := a.s.entities[create.ParentID]; !ok {
			return nil, fmt.Errorf("parent %s not found", create.ParentID)
		}
	}

	e := content.Entity{
		ID:        store.NewID(),
		ProjectID: create.ProjectID,
		ParentID:  create.ParentID,
		Name:      create.Name,
		Fields:    maps.Clone(create.Fields),
		UpdatedAt: a.s.now(),
	}
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	a.s.entities[e.ID] = &record{kind: a.kind, order: create.Order, entity: e}
	out := clone(&e)
	return &out, nil
}

func clone(e *content.Entity) content.Entity {
	cp := *e
	cp.Fields = maps.Clone(e.Fields)
	if cp.Fields == nil {
		cp.Fields = map[string]any{}
	}
	return cp
}
