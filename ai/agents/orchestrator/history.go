package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrygo/inkwell/ai/core/llm"
	"github.com/hrygo/inkwell/ai/proposal"
	"github.com/hrygo/inkwell/store"
)

// elidedResult answers tool calls of earlier turns in place of their result.
const elidedResult = `{"elided":true}`

// buildHistory converts logged messages into model turns.
//
// Tool calls are kept for every turn, but results older than the most
// recent user message are replaced by a fixed placeholder. Proposals are
// never replayed: their tool call is answered with a short placeholder.
// Review outcomes not yet shown to the model are reported in one synthetic
// user message at the end; the proposals reported are returned so the
// caller can mark them once the log is saved.
func buildHistory(messages []store.AIMessage) ([]llm.Message, []*store.ProposalMessage) {
	lastUser := -1
	if idx := userTurns(messages); len(idx) > 0 {
		lastUser = idx[len(idx)-1]
	}

	answered := map[string]bool{}
	called := map[string]bool{}
	for _, m := range messages {
		switch v := m.(type) {
		case *store.ToolCallMessage:
			for _, c := range v.Content {
				called[c.ToolCallID] = true
			}
		case *store.ToolResultMessage:
			for _, r := range v.Content {
				answered[r.ToolCallID] = true
			}
		case *store.ProposalMessage:
			if v.ToolCallID != "" {
				answered[v.ToolCallID] = true
			}
		}
	}

	var (
		out      []llm.Message
		outcomes []string
		reported []*store.ProposalMessage
	)
	for i, m := range messages {
		switch v := m.(type) {
		case *store.TextMessage:
			if v.Role == store.RoleUser {
				out = append(out, llm.UserMessage(v.Content))
			} else {
				out = append(out, llm.AssistantMessage(v.Content))
			}
		case *store.ToolCallMessage:
			var calls []llm.ToolCall
			for _, c := range v.Content {
				if !answered[c.ToolCallID] {
					continue
				}
				call := llm.ToolCall{ID: c.ToolCallID, Type: "function"}
				call.Function.Name = c.ToolName
				call.Function.Arguments = string(c.Args)
				calls = append(calls, call)
			}
			if len(calls) > 0 {
				out = append(out, llm.Message{Role: "assistant", ToolCalls: calls})
			}
		case *store.ToolResultMessage:
			for _, r := range v.Content {
				if !called[r.ToolCallID] {
					continue
				}
				content := string(r.Result)
				if i < lastUser {
					content = elidedResult
				}
				out = append(out, llm.ToolMessage(r.ToolCallID, content))
			}
		case *store.ProposalMessage:
			if v.ProposalStatus.IsTerminal() && !v.OutcomeReported {
				outcome := proposal.Feedback(v.Proposal, v.ProposalStatus)
				if v.ConflictDetail != "" {
					outcome += " (" + v.ConflictDetail + ")"
				}
				outcomes = append(outcomes, outcome)
				reported = append(reported, v)
			}
			if !called[v.ToolCallID] {
				continue
			}
			content := elidedResult
			if i > lastUser {
				placeholder, _ := json.Marshal(map[string]string{
					"status":     "submitted for review",
					"proposalId": v.Proposal.ID,
				})
				content = string(placeholder)
			}
			out = append(out, llm.ToolMessage(v.ToolCallID, content))
		}
	}

	if len(outcomes) > 0 {
		out = append(out, llm.UserMessage(outcomeMessage(outcomes)))
	}
	return out, reported
}

func outcomeMessage(outcomes []string) string {
	var sb strings.Builder
	sb.WriteString("[Proposal review results]\n")
	for _, o := range outcomes {
		fmt.Fprintf(&sb, "- %s\n", o)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func userTurns(messages []store.AIMessage) []int {
	var idx []int
	for i, m := range messages {
		if t, ok := m.(*store.TextMessage); ok && t.Role == store.RoleUser {
			idx = append(idx, i)
		}
	}
	return idx
}
