// Package summary keeps long conversations affordable by replacing older
// turns with a cached model-written summary.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hrygo/inkwell/ai/core/llm"
	"github.com/hrygo/inkwell/ai/internal/strutil"
	"github.com/hrygo/inkwell/store"
)

const (
	// DefaultTurnThreshold is the number of user turns before compression starts.
	DefaultTurnThreshold = 6
	// DefaultKeepTurns is the number of most recent user turns never summarized.
	DefaultKeepTurns = 4

	maxEntryRunes  = 500
	summaryTimeout = 30 * time.Second
)

// SummaryStore persists one cached summary per session.
type SummaryStore interface {
	GetAISummary(ctx context.Context, sessionID string) (*store.AISummary, error)
	UpsertAISummary(ctx context.Context, summary *store.AISummary) error
}

// Result is the history to send for one turn.
type Result struct {
	// Summary of Messages dropped before the cutoff. Empty when uncompressed.
	Summary string
	// SummarizedUpTo is the index of the first kept message.
	SummarizedUpTo int
	// Messages are the kept messages, the full log when uncompressed.
	Messages []store.AIMessage
}

// Compressed reports whether older turns were replaced by a summary.
func (r *Result) Compressed() bool { return r.Summary != "" }

// Compressor summarizes the turns before the most recent ones.
type Compressor struct {
	store         SummaryStore
	llm           llm.Service
	turnThreshold int
	keepTurns     int
}

// NewCompressor creates a compressor with the default thresholds.
// A nil llm disables compression.
func NewCompressor(s SummaryStore, llmSvc llm.Service) *Compressor {
	return &Compressor{
		store:         s,
		llm:           llmSvc,
		turnThreshold: DefaultTurnThreshold,
		keepTurns:     DefaultKeepTurns,
	}
}

// Cutoff returns the index of the first message to keep verbatim, or 0 when
// the conversation is too short to compress.
func (c *Compressor) Cutoff(messages []store.AIMessage) int {
	var userTurns []int
	for i, m := range messages {
		if t, ok := m.(*store.TextMessage); ok && t.Role == store.RoleUser {
			userTurns = append(userTurns, i)
		}
	}
	if len(userTurns) < c.turnThreshold || len(userTurns) <= c.keepTurns {
		return 0
	}
	return userTurns[len(userTurns)-c.keepTurns]
}

// Compress returns the history for the next turn. Summary failures degrade
// to the full history and are only logged.
func (c *Compressor) Compress(ctx context.Context, sessionID string, messages []store.AIMessage) *Result {
	full := &Result{Messages: messages}
	if c.llm == nil {
		return full
	}
	cutoff := c.Cutoff(messages)
	if cutoff == 0 {
		return full
	}

	summary, err := c.summaryFor(ctx, sessionID, messages, cutoff)
	if err != nil {
		slog.Warn("conversation summary unavailable, sending full history",
			"session_id", sessionID,
			"cutoff", cutoff,
			"error", err,
		)
		return full
	}
	return &Result{Summary: summary, SummarizedUpTo: cutoff, Messages: messages[cutoff:]}
}

// Refresh regenerates the cached summary for the current boundary if stale.
// It is meant to run in the background after a turn completes.
func (c *Compressor) Refresh(ctx context.Context, sessionID string, messages []store.AIMessage) error {
	if c.llm == nil {
		return nil
	}
	cutoff := c.Cutoff(messages)
	if cutoff == 0 {
		return nil
	}
	_, err := c.summaryFor(ctx, sessionID, messages, cutoff)
	return err
}

func (c *Compressor) summaryFor(ctx context.Context, sessionID string, messages []store.AIMessage, cutoff int) (string, error) {
	cached, err := c.store.GetAISummary(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load summary: %w", err)
	}
	if cached != nil && cached.SummarizedUpTo == cutoff && cached.Summary != "" {
		return cached.Summary, nil
	}

	summary, err := c.generate(ctx, messages[:cutoff])
	if err != nil {
		return "", err
	}
	if err := c.store.UpsertAISummary(ctx, &store.AISummary{
		SessionID:      sessionID,
		Summary:        summary,
		SummarizedUpTo: cutoff,
		CreatedTs:      time.Now().UnixMilli(),
	}); err != nil {
		// The summary is still usable for this turn.
		slog.Warn("failed to cache conversation summary", "session_id", sessionID, "error", err)
	}
	slog.Debug("conversation summarized", "session_id", sessionID, "cutoff", cutoff, "summary_runes", utf8.RuneCountInString(summary))
	return summary, nil
}

func (c *Compressor) generate(ctx context.Context, messages []store.AIMessage) (string, error) {
	transcript := Transcript(messages)
	if transcript == "" {
		return "", fmt.Errorf("no text turns to summarize")
	}

	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	content, _, err := c.llm.Chat(ctx, []llm.Message{
		llm.SystemPrompt(summarySystemPrompt),
		llm.UserMessage("Summarize this conversation:\n\n" + transcript),
	}, llm.WithMaxTokens(600), llm.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	summary := strings.TrimSpace(content)
	if summary == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}
	return summary, nil
}

// Transcript renders the plain-text turns of messages, skipping tool traffic.
func Transcript(messages []store.AIMessage) string {
	var b strings.Builder
	for _, m := range messages {
		t, ok := m.(*store.TextMessage)
		if !ok || strings.TrimSpace(t.Content) == "" {
			continue
		}
		label := "User"
		if t.Role == store.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strutil.Truncate(strings.TrimSpace(t.Content), maxEntryRunes))
	}
	return strings.TrimSpace(b.String())
}

const summarySystemPrompt = `You summarize a conversation between an author and their writing assistant.

Requirements:
1. At most 250 words.
2. Keep decisions, facts about the story and its characters, and open requests.
3. Note which proposed changes the author accepted or rejected if mentioned.
4. Write in the language of the conversation.
5. Output the summary text only, without a heading.`
