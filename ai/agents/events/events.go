// Package events defines the streamed wire protocol of a chat turn: one
// type-tagged JSON object per line.
package events

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/hrygo/inkwell/store"
)

// Type is the discriminator of a wire event.
type Type string

const (
	TypeText       Type = "text"
	TypeToolCall   Type = "tool_call"
	TypeToolResult Type = "tool_result"
	TypeProposal   Type = "proposal"
	TypeUsage      Type = "usage"
	TypeError      Type = "error"
	TypeDone       Type = "done"
)

// IsTerminal reports whether no event follows this one in a turn.
func (t Type) IsTerminal() bool {
	return t == TypeError || t == TypeDone
}

type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Arguments is a JSON-encoded string.
	Arguments string `json:"arguments"`
}

type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	// Result is a JSON-encoded string.
	Result string `json:"result"`
}

// Event is one wire event. Only the field matching Type is set.
type Event struct {
	Type       Type              `json:"type"`
	Content    string            `json:"content,omitempty"`
	ToolCall   *ToolCall         `json:"toolCall,omitempty"`
	ToolResult *ToolResult       `json:"toolResult,omitempty"`
	Proposal   *store.Proposal   `json:"proposal,omitempty"`
	Usage      *store.TokenUsage `json:"usage,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func Text(content string) Event { return Event{Type: TypeText, Content: content} }

func NewToolCall(id, name, arguments string) Event {
	return Event{Type: TypeToolCall, ToolCall: &ToolCall{ID: id, Name: name, Arguments: arguments}}
}

func NewToolResult(toolCallID, toolName, result string) Event {
	return Event{Type: TypeToolResult, ToolResult: &ToolResult{ToolCallID: toolCallID, ToolName: toolName, Result: result}}
}

func NewProposal(p *store.Proposal) Event { return Event{Type: TypeProposal, Proposal: p} }

func NewUsage(u store.TokenUsage) Event { return Event{Type: TypeUsage, Usage: &u} }

func Error(msg string) Event { return Event{Type: TypeError, Error: msg} }

func Done() Event { return Event{Type: TypeDone} }

// Encoder writes newline-delimited JSON and flushes after every line when
// the writer supports it.
type Encoder struct {
	w   io.Writer
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, enc: json.NewEncoder(w)}
}

// Encode writes v as one line. json.Encoder terminates each value with "\n".
func (e *Encoder) Encode(v any) error {
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	if f, ok := e.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
