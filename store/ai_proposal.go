package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ContentType identifies the kind of content item a proposal targets.
type ContentType string

const (
	ContentTypePlot       ContentType = "plot"
	ContentTypeCharacter  ContentType = "character"
	ContentTypeMemo       ContentType = "memo"
	ContentTypeManuscript ContentType = "manuscript"
	ContentTypeProject    ContentType = "project"
)

// IsTree reports whether the content type lives in the project tree.
// Projects are the tree roots and are routed separately.
func (t ContentType) IsTree() bool {
	switch t {
	case ContentTypePlot, ContentTypeCharacter, ContentTypeMemo, ContentTypeManuscript:
		return true
	default:
		return false
	}
}

// ProposalAction is the mutation a proposal performs.
type ProposalAction string

const (
	ProposalActionCreate ProposalAction = "create"
	ProposalActionUpdate ProposalAction = "update"
)

// ProposalStatus is the review state of a proposal.
//
// pending -> accepted | rejected | conflict. Every non-pending status is terminal.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
	ProposalStatusConflict ProposalStatus = "conflict"
)

// IsTerminal reports whether no further transition is allowed.
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalStatusAccepted || s == ProposalStatusRejected || s == ProposalStatusConflict
}

// LineEdit replaces the inclusive 1-indexed range [StartLine, EndLine].
// StartLine > EndLine is a pure insertion before StartLine, and an empty
// NewText deletes the range.
type LineEdit struct {
	StartLine    int     `json:"startLine"`
	EndLine      int     `json:"endLine"`
	NewText      string  `json:"newText"`
	ExpectedText *string `json:"expectedText,omitempty"`
}

// IsInsertion reports whether the edit inserts without removing lines.
func (e LineEdit) IsInsertion() bool {
	return e.StartLine > e.EndLine
}

// FieldChangeKind tags the FieldChange variants on the wire.
type FieldChangeKind string

const (
	FieldChangeReplace   FieldChangeKind = "replace"
	FieldChangeLineEdits FieldChangeKind = "line_edits"
)

// FieldChange describes how a proposal alters a single field.
// It is implemented by ReplaceChange and LineEditsChange only.
type FieldChange interface {
	Kind() FieldChangeKind
}

// ReplaceChange sets the field to a literal value.
type ReplaceChange struct {
	Value any `json:"value"`
}

func (ReplaceChange) Kind() FieldChangeKind { return FieldChangeReplace }

// LineEditsChange applies ordered line-range edits to a text field.
type LineEditsChange struct {
	Edits []LineEdit `json:"edits"`
}

func (LineEditsChange) Kind() FieldChangeKind { return FieldChangeLineEdits }

// FieldChanges maps field names to their change.
type FieldChanges map[string]FieldChange

// HasLineEdits reports whether any change is a line edit.
func (c FieldChanges) HasLineEdits() bool {
	for _, change := range c {
		if _, ok := change.(LineEditsChange); ok {
			return true
		}
	}
	return false
}

// Fields returns the changed field names in sorted order.
func (c FieldChanges) Fields() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fieldChangeJSON struct {
	Type  FieldChangeKind `json:"type"`
	Value any             `json:"value,omitempty"`
	Edits []LineEdit      `json:"edits,omitempty"`
}

// MarshalJSON encodes every change with its "type" tag.
func (c FieldChanges) MarshalJSON() ([]byte, error) {
	out := make(map[string]fieldChangeJSON, len(c))
	for name, change := range c {
		switch v := change.(type) {
		case ReplaceChange:
			out[name] = fieldChangeJSON{Type: FieldChangeReplace, Value: v.Value}
		case LineEditsChange:
			edits := v.Edits
			if edits == nil {
				edits = []LineEdit{}
			}
			out[name] = fieldChangeJSON{Type: FieldChangeLineEdits, Edits: edits}
		default:
			return nil, fmt.Errorf("field %q: unknown field change %T", name, change)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes tagged changes back into their variants.
func (c *FieldChanges) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(FieldChanges, len(raw))
	for name, body := range raw {
		var tag struct {
			Type FieldChangeKind `json:"type"`
		}
		if err := json.Unmarshal(body, &tag); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		switch tag.Type {
		case FieldChangeReplace:
			var v ReplaceChange
			if err := json.Unmarshal(body, &v); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			out[name] = v
		case FieldChangeLineEdits:
			var v LineEditsChange
			if err := json.Unmarshal(body, &v); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			out[name] = v
		default:
			return fmt.Errorf("field %q: unknown field change type %q", name, tag.Type)
		}
	}
	*c = out
	return nil
}

// Proposal is a deferred, user-reviewable mutation of one content item.
// Create proposals carry neither Original nor UpdatedAt.
type Proposal struct {
	ID          string         `json:"id"`
	Action      ProposalAction `json:"action"`
	TargetID    string         `json:"targetId,omitempty"`
	ContentType ContentType    `json:"contentType"`
	TargetName  string         `json:"targetName"`
	ParentID    string         `json:"parentId,omitempty"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
	Original    map[string]any `json:"original,omitempty"`
	Proposed    FieldChanges   `json:"proposed"`
}

// LineKey is the Original key recording the text of line n.
func LineKey(n int) string {
	return fmt.Sprintf("line_%d", n)
}
