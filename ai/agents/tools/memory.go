package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SaveMemoryTool stores a long-term note about the project.
type SaveMemoryTool struct {
	deps Deps
}

type saveMemoryArgs struct {
	Content string `json:"content"`
}

func (t *SaveMemoryTool) Name() string { return "save_memory" }

func (t *SaveMemoryTool) Description() string {
	return `Remember a durable fact about the project or the author's preferences across conversations.
Keep each memory short and self-contained.`
}

func (t *SaveMemoryTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {"content": {"type": "string", "minLength": 1}},
  "required": ["content"]
}`
}

func (t *SaveMemoryTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, ToolExecutionTimeout)
	defer cancel()

	var in saveMemoryArgs
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(in.Content)
	if text == "" {
		return nil, fmt.Errorf("content is required and cannot be empty")
	}
	projectID, err := ProjectIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	m, err := t.deps.Memories.Save(ctx, projectID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to save memory: %w", err)
	}
	return map[string]any{"id": m.ID, "content": m.Content}, nil
}

// DeleteMemoryTool forgets a stored note.
type DeleteMemoryTool struct {
	deps Deps
}

type deleteMemoryArgs struct {
	ID string `json:"id"`
}

func (t *DeleteMemoryTool) Name() string { return "delete_memory" }

func (t *DeleteMemoryTool) Description() string {
	return `Forget a memory by id, when it is wrong or no longer relevant.`
}

func (t *DeleteMemoryTool) Parameters() string {
	return `{
  "type": "object",
  "properties": {"id": {"type": "string", "minLength": 1}},
  "required": ["id"]
}`
}

func (t *DeleteMemoryTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, ToolExecutionTimeout)
	defer cancel()

	var in deleteMemoryArgs
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	projectID, err := ProjectIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	deleted, err := t.deps.Memories.Delete(ctx, projectID, in.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete memory: %w", err)
	}
	return map[string]any{"deleted": deleted}, nil
}
