// Package tools implements the functions the assistant can call while
// working on a project: content lookups, change proposals and memory notes.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hrygo/inkwell/ai/agents/registry"
	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/store"
)

// ToolExecutionTimeout bounds a single tool call.
const ToolExecutionTimeout = 30 * time.Second

type projectIDKey struct{}

// WithProjectID scopes tool calls to a project.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectIDKey{}, projectID)
}

// ProjectIDFrom returns the project the current tool call is scoped to.
func ProjectIDFrom(ctx context.Context) (string, error) {
	id, _ := ctx.Value(projectIDKey{}).(string)
	if id == "" {
		return "", errors.New("no project in context")
	}
	return id, nil
}

// Deps are the collaborators shared by all tools.
type Deps struct {
	Content   *content.Registry
	Summaries content.SummaryProvider
	Memories  content.MemoryStore
}

// Register adds the full tool set to r.
func Register(r *registry.ToolRegistry, d Deps) error {
	for _, t := range []struct {
		category registry.ToolCategory
		tool     registry.Tool
	}{
		{registry.CategoryRead, &ProjectOverviewTool{deps: d}},
		{registry.CategoryRead, &GetContentTool{deps: d}},
		{registry.CategoryProposal, &ProposeUpdateTool{deps: d}},
		{registry.CategoryProposal, &ProposeLineEditsTool{deps: d}},
		{registry.CategoryProposal, &ProposeCreateTool{deps: d}},
		{registry.CategoryMemory, &SaveMemoryTool{deps: d}},
		{registry.CategoryMemory, &DeleteMemoryTool{deps: d}},
	} {
		if err := r.Register(t.category, t.tool); err != nil {
			return err
		}
	}
	return nil
}

// Refusal is returned to the model instead of a proposal when the request
// cannot produce a meaningful one. The model is expected to retry with fresh data.
type Refusal struct {
	Refused bool   `json:"refused"`
	Reason  string `json:"reason"`
	Details any    `json:"details,omitempty"`
}

func refuse(reason string, details any) *Refusal {
	return &Refusal{Refused: true, Reason: reason, Details: details}
}

const contentTypeEnum = `["plot", "character", "memo", "manuscript", "project"]`

func decode(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// loadEntity fetches an entity of the current project.
func loadEntity(ctx context.Context, d Deps, t store.ContentType, id string) (*content.Entity, error) {
	projectID, err := ProjectIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	adapter, err := d.Content.Adapter(t)
	if err != nil {
		return nil, err
	}
	entity, err := adapter.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", t, id, err)
	}
	if entity == nil || entity.ProjectID != projectID {
		return nil, fmt.Errorf("%s %s not found in this project", t, id)
	}
	return entity, nil
}
