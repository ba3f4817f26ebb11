package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/ai/diff"
	"github.com/hrygo/inkwell/store"
)

// ProjectOverviewTool lists every entity of the current project.
type ProjectOverviewTool struct {
	deps Deps
}

func (t *ProjectOverviewTool) Name() string { return "get_project_overview" }

func (t *ProjectOverviewTool) Description() string {
	return `List every plot, character, memo and manuscript of the current project with their ids.
Use this to find the id of an item before reading or changing it.`
}

func (t *ProjectOverviewTool) Parameters() string {
	return `{"type": "object", "properties": {}, "additionalProperties": false}`
}

func (t *ProjectOverviewTool) Run(ctx context.Context, _ json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, ToolExecutionTimeout)
	defer cancel()

	projectID, err := ProjectIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := t.deps.Summaries.ProjectSummary(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize project: %w", err)
	}
	return map[string]any{"overview": summary}, nil
}

// GetContentTool returns the fields of one entity with its main text split
// into numbered lines, the numbering line edits refer to.
type GetContentTool struct {
	deps Deps
}

type getContentArgs struct {
	ID          string            `json:"id"`
	ContentType store.ContentType `json:"contentType"`
}

// ContentView is the model-facing rendering of an entity.
type ContentView struct {
	ID          string            `json:"id"`
	ContentType store.ContentType `json:"contentType"`
	Name        string            `json:"name"`
	ParentID    string            `json:"parentId,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Fields      map[string]any    `json:"fields"`
	TextField   string            `json:"textField"`
	Lines       string            `json:"lines"`
}

func (t *GetContentTool) Name() string { return "get_content" }

func (t *GetContentTool) Description() string {
	return `Read one item in full. The main text is returned as numbered lines ("3| text").
Line numbers are 1-based and are the ones propose_line_edits expects.`
}

func (t *GetContentTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "contentType": {"enum": ` + contentTypeEnum + `}
  },
  "required": ["id", "contentType"]
}`
}

func (t *GetContentTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, ToolExecutionTimeout)
	defer cancel()

	var in getContentArgs
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	entity, err := loadEntity(ctx, t.deps, in.ContentType, in.ID)
	if err != nil {
		return nil, err
	}
	field := content.TextField(in.ContentType)
	text, _ := entity.Fields[field].(string)
	return &ContentView{
		ID:          entity.ID,
		ContentType: in.ContentType,
		Name:        entity.Name,
		ParentID:    entity.ParentID,
		UpdatedAt:   entity.UpdatedAt,
		Fields:      entity.Fields,
		TextField:   field,
		Lines:       diff.NumberLines(text),
	}, nil
}
