// Package registry holds the tools available to the assistant and exposes
// the subset allowed in each chat mode.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hrygo/inkwell/ai/core/llm"
)

// Mode selects the tool set and step budget of a chat turn.
type Mode string

const (
	ModeAsk   Mode = "ask"
	ModeWrite Mode = "write"
)

// ParseMode maps unknown values to ModeAsk.
func ParseMode(s string) Mode {
	if Mode(s) == ModeWrite {
		return ModeWrite
	}
	return ModeAsk
}

// ToolCategory groups tools by the modes that may use them.
type ToolCategory string

const (
	// CategoryRead tools only look things up and are always available.
	CategoryRead ToolCategory = "read"
	// CategoryProposal tools create reviewable proposals. Write mode only.
	CategoryProposal ToolCategory = "proposal"
	// CategoryMemory tools change long-term memory. Write mode only.
	CategoryMemory ToolCategory = "memory"
)

func (c ToolCategory) allowedIn(mode Mode) bool {
	return c == CategoryRead || mode == ModeWrite
}

// Tool is a function the assistant can call.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema of the arguments object.
	Parameters() string
	Run(ctx context.Context, args json.RawMessage) (any, error)
}

// Observer is notified after every tool execution.
type Observer func(toolName string, err error)

type entry struct {
	tool     Tool
	category ToolCategory
	schema   *jsonschema.Schema
}

// ToolRegistry manages tool registration and discovery.
type ToolRegistry struct {
	mu       sync.RWMutex
	tools    map[string]*entry
	observer Observer
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*entry)}
}

// SetObserver installs a callback invoked after each execution.
func (r *ToolRegistry) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Register adds a tool. Its parameter schema must compile.
func (r *ToolRegistry) Register(category ToolCategory, tool Tool) error {
	schema, err := jsonschema.CompileString(tool.Name()+".json", tool.Parameters())
	if err != nil {
		return fmt.Errorf("tool %s: invalid parameter schema: %w", tool.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Name())
	}
	r.tools[tool.Name()] = &entry{tool: tool, category: category, schema: schema}
	return nil
}

// MustRegister is Register that panics on error, for static tool sets.
func (r *ToolRegistry) MustRegister(category ToolCategory, tool Tool) {
	if err := r.Register(category, tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Names returns the tool names allowed in mode, sorted.
func (r *ToolRegistry) Names(mode Mode) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name, e := range r.tools {
		if e.category.allowedIn(mode) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ForMode returns the model-facing tools allowed in mode. Arguments are
// validated against the tool schema before Run is called.
func (r *ToolRegistry) ForMode(mode Mode) []llm.Tool {
	names := r.Names(mode)

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.Tool, 0, len(names))
	for _, name := range names {
		e := r.tools[name]
		out = append(out, llm.Tool{
			ToolDescriptor: llm.ToolDescriptor{
				Name:        e.tool.Name(),
				Description: e.tool.Description(),
				Parameters:  e.tool.Parameters(),
			},
			Execute: r.executor(e),
		})
	}
	return out
}

func (r *ToolRegistry) executor(e *entry) func(ctx context.Context, arguments string) (any, error) {
	return func(ctx context.Context, arguments string) (any, error) {
		out, err := r.run(ctx, e, arguments)
		r.mu.RLock()
		observer := r.observer
		r.mu.RUnlock()
		if observer != nil {
			observer(e.tool.Name(), err)
		}
		return out, err
	}
}

func (r *ToolRegistry) run(ctx context.Context, e *entry, arguments string) (any, error) {
	raw := json.RawMessage(arguments)
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := e.schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return e.tool.Run(ctx, raw)
}
