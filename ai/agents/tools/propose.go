package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/ai/diff"
	"github.com/hrygo/inkwell/ai/proposal"
	"github.com/hrygo/inkwell/store"
)

// ProposeUpdateTool proposes whole-field replacements on an existing item.
type ProposeUpdateTool struct {
	deps Deps
}

type proposeUpdateArgs struct {
	ID          string            `json:"id"`
	ContentType store.ContentType `json:"contentType"`
	Fields      map[string]any    `json:"fields"`
}

func (t *ProposeUpdateTool) Name() string { return "propose_update" }

func (t *ProposeUpdateTool) Description() string {
	return `Propose new values for fields of an existing item. The user reviews the proposal
before anything changes. Only send the fields you want to change.
For edits inside long text prefer propose_line_edits.`
}

func (t *ProposeUpdateTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "contentType": {"enum": ` + contentTypeEnum + `},
    "fields": {"type": "object", "minProperties": 1}
  },
  "required": ["id", "contentType", "fields"]
}`
}

func (t *ProposeUpdateTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, ToolExecutionTimeout)
	defer cancel()

	var in proposeUpdateArgs
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	entity, err := loadEntity(ctx, t.deps, in.ContentType, in.ID)
	if err != nil {
		return nil, err
	}

	d := diff.DiffFields(in.Fields, entity.Fields)
	if d == nil {
		return refuse("the proposed values are identical to the current ones", nil), nil
	}

	proposed := make(store.FieldChanges, len(d.Changed))
	for name, value := range d.Changed {
		proposed[name] = store.ReplaceChange{Value: value}
	}
	updatedAt := entity.UpdatedAt
	return &proposal.Output{Proposal: &store.Proposal{
		ID:          store.NewID(),
		Action:      store.ProposalActionUpdate,
		TargetID:    entity.ID,
		ContentType: in.ContentType,
		TargetName:  entity.Name,
		UpdatedAt:   &updatedAt,
		Original:    d.Original,
		Proposed:    proposed,
	}}, nil
}

// ProposeLineEditsTool proposes line-range edits to one text field.
type ProposeLineEditsTool struct {
	deps Deps
}

type proposeLineEditsArgs struct {
	ID          string            `json:"id"`
	ContentType store.ContentType `json:"contentType"`
	Field       string            `json:"field"`
	Edits       []store.LineEdit  `json:"edits"`
}

func (t *ProposeLineEditsTool) Name() string { return "propose_line_edits" }

func (t *ProposeLineEditsTool) Description() string {
	return `Propose edits to line ranges of an item's text, using the line numbers from get_content.
Each edit replaces lines startLine..endLine (1-based, inclusive) with newText.
startLine greater than endLine inserts newText before startLine. An empty newText deletes the range.
Set expectedText to the current text of the range so stale edits are caught.`
}

func (t *ProposeLineEditsTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "contentType": {"enum": ` + contentTypeEnum + `},
    "field": {"type": "string", "description": "Text field to edit. Defaults to the item's main text."},
    "edits": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "startLine": {"type": "integer", "minimum": 1},
          "endLine": {"type": "integer", "minimum": 0},
          "newText": {"type": "string"},
          "expectedText": {"type": "string"}
        },
        "required": ["startLine", "endLine", "newText"]
      }
    }
  },
  "required": ["id", "contentType", "edits"]
}`
}

func (t *ProposeLineEditsTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, ToolExecutionTimeout)
	defer cancel()

	var in proposeLineEditsArgs
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	entity, err := loadEntity(ctx, t.deps, in.ContentType, in.ID)
	if err != nil {
		return nil, err
	}
	field := in.Field
	if field == "" {
		field = content.TextField(in.ContentType)
	}
	text, ok := entity.Fields[field].(string)
	if !ok && entity.Fields[field] != nil {
		return refuse(fmt.Sprintf("field %q is not text", field), nil), nil
	}

	lines := diff.SplitLines(text)
	if v := diff.ValidateLineEditsConsistency(lines, in.Edits); !v.Valid {
		return refuse("expectedText does not match the current text; read the item again and retry", v.Mismatches), nil
	}
	if diff.ApplyLineEdits(text, in.Edits) == text {
		return refuse("the edits do not change the text", nil), nil
	}

	updatedAt := entity.UpdatedAt
	return &proposal.Output{Proposal: &store.Proposal{
		ID:          store.NewID(),
		Action:      store.ProposalActionUpdate,
		TargetID:    entity.ID,
		ContentType: in.ContentType,
		TargetName:  entity.Name,
		UpdatedAt:   &updatedAt,
		Original:    diff.LineSnapshot(lines, in.Edits),
		Proposed:    store.FieldChanges{field: store.LineEditsChange{Edits: in.Edits}},
	}}, nil
}

// ProposeCreateTool proposes a new item in the project tree.
type ProposeCreateTool struct {
	deps Deps
}

type proposeCreateArgs struct {
	ContentType store.ContentType `json:"contentType"`
	ParentID    string            `json:"parentId"`
	Name        string            `json:"name"`
	Fields      map[string]any    `json:"fields"`
}

func (t *ProposeCreateTool) Name() string { return "propose_create" }

func (t *ProposeCreateTool) Description() string {
	return `Propose a new plot, character, memo or manuscript. The user reviews it before it is created.
parentId defaults to the project root.`
}

func (t *ProposeCreateTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {
    "contentType": {"enum": ["plot", "character", "memo", "manuscript"]},
    "parentId": {"type": "string"},
    "name": {"type": "string", "minLength": 1},
    "fields": {"type": "object"}
  },
  "required": ["contentType", "name"]
}`
}

func (t *ProposeCreateTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var in proposeCreateArgs
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	projectID, err := ProjectIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := t.deps.Content.Adapter(in.ContentType); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	parentID := in.ParentID
	if parentID == "" {
		parentID = projectID
	}

	proposed := make(store.FieldChanges, len(in.Fields))
	for k, v := range in.Fields {
		proposed[k] = store.ReplaceChange{Value: v}
	}
	return &proposal.Output{Proposal: &store.Proposal{
		ID:          store.NewID(),
		Action:      store.ProposalActionCreate,
		ContentType: in.ContentType,
		TargetName:  name,
		ParentID:    parentID,
		Proposed:    proposed,
	}}, nil
}
