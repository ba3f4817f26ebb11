package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is the discriminator of the persisted message union.
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeToolCall   MessageType = "tool_call"
	MessageTypeToolResult MessageType = "tool_result"
	MessageTypeProposal   MessageType = "proposal"
)

// MessageRole is the author of a text message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageHeader is shared by every message variant.
type MessageHeader struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// AIMessage is one entry of a session's message log.
// Implemented by *TextMessage, *ToolCallMessage, *ToolResultMessage and *ProposalMessage.
type AIMessage interface {
	Type() MessageType
	Header() *MessageHeader
}

type TextMessage struct {
	MessageHeader
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

func (*TextMessage) Type() MessageType         { return MessageTypeText }
func (m *TextMessage) Header() *MessageHeader { return &m.MessageHeader }

type ToolCall struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

type ToolCallMessage struct {
	MessageHeader
	Content []ToolCall `json:"content"`
}

func (*ToolCallMessage) Type() MessageType         { return MessageTypeToolCall }
func (m *ToolCallMessage) Header() *MessageHeader { return &m.MessageHeader }

type ToolResult struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Result     json.RawMessage `json:"result"`
}

type ToolResultMessage struct {
	MessageHeader
	Content []ToolResult `json:"content"`
}

func (*ToolResultMessage) Type() MessageType         { return MessageTypeToolResult }
func (m *ToolResultMessage) Header() *MessageHeader { return &m.MessageHeader }

// ProposalMessage carries exactly one proposal and its review status.
// ToolCallID links it to the tool call that produced it.
type ProposalMessage struct {
	MessageHeader
	Proposal       *Proposal      `json:"proposal"`
	ProposalStatus ProposalStatus `json:"proposalStatus"`
	ToolCallID     string         `json:"toolCallId,omitempty"`
	ToolName       string         `json:"toolName,omitempty"`
	ConflictDetail string         `json:"conflictDetail,omitempty"`
	// OutcomeReported is set once the model has been told the review outcome.
	OutcomeReported bool `json:"outcomeReported,omitempty"`
}

func (*ProposalMessage) Type() MessageType         { return MessageTypeProposal }
func (m *ProposalMessage) Header() *MessageHeader { return &m.MessageHeader }

// MarshalMessage encodes a message with its "messageType" tag inlined.
func MarshalMessage(m AIMessage) ([]byte, error) {
	switch v := m.(type) {
	case *TextMessage:
		return json.Marshal(struct {
			MessageType MessageType `json:"messageType"`
			*TextMessage
		}{MessageTypeText, v})
	case *ToolCallMessage:
		return json.Marshal(struct {
			MessageType MessageType `json:"messageType"`
			*ToolCallMessage
		}{MessageTypeToolCall, v})
	case *ToolResultMessage:
		return json.Marshal(struct {
			MessageType MessageType `json:"messageType"`
			*ToolResultMessage
		}{MessageTypeToolResult, v})
	case *ProposalMessage:
		if v.Proposal == nil {
			return nil, fmt.Errorf("proposal message %s has no proposal", v.ID)
		}
		return json.Marshal(struct {
			MessageType MessageType `json:"messageType"`
			*ProposalMessage
		}{MessageTypeProposal, v})
	default:
		return nil, fmt.Errorf("unknown message type %T", m)
	}
}

// UnmarshalMessage decodes a single tagged message.
func UnmarshalMessage(data []byte) (AIMessage, error) {
	var head struct {
		MessageType MessageType `json:"messageType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var m AIMessage
	switch head.MessageType {
	case MessageTypeText:
		m = &TextMessage{}
	case MessageTypeToolCall:
		m = &ToolCallMessage{}
	case MessageTypeToolResult:
		m = &ToolResultMessage{}
	case MessageTypeProposal:
		m = &ProposalMessage{}
	default:
		return nil, fmt.Errorf("unknown message type %q", head.MessageType)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode %s message: %w", head.MessageType, err)
	}
	if p, ok := m.(*ProposalMessage); ok && p.Proposal == nil {
		return nil, fmt.Errorf("proposal message %s has no proposal", p.ID)
	}
	return m, nil
}

// MarshalMessages encodes a log as a JSON array.
func MarshalMessages(messages []AIMessage) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(messages))
	for _, m := range messages {
		b, err := MarshalMessage(m)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

// UnmarshalMessages decodes a JSON array produced by MarshalMessages.
func UnmarshalMessages(data []byte) ([]AIMessage, error) {
	if len(data) == 0 {
		return []AIMessage{}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	messages := make([]AIMessage, 0, len(raw))
	for i, r := range raw {
		m, err := UnmarshalMessage(r)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// AIMessageLog is the whole-log artifact of a session.
// Revision is bumped on every save and is not checked against concurrent writers.
type AIMessageLog struct {
	SessionID string
	Messages  []AIMessage
	Revision  int64
	UpdatedTs int64
}

// FindProposal scans the log for a proposal message by proposal ID.
func (l *AIMessageLog) FindProposal(proposalID string) *ProposalMessage {
	for _, m := range l.Messages {
		if p, ok := m.(*ProposalMessage); ok && p.Proposal.ID == proposalID {
			return p
		}
	}
	return nil
}

// Proposals returns every proposal message in log order.
func (l *AIMessageLog) Proposals() []*ProposalMessage {
	var out []*ProposalMessage
	for _, m := range l.Messages {
		if p, ok := m.(*ProposalMessage); ok {
			out = append(out, p)
		}
	}
	return out
}

// NewMessageHeader stamps a fresh header.
func NewMessageHeader() MessageHeader {
	return MessageHeader{ID: NewID(), CreatedAt: time.Now().UTC()}
}
