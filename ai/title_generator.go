package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/inkwell/ai/core/llm"
	"github.com/hrygo/inkwell/ai/internal/strutil"
	"github.com/hrygo/inkwell/store"
)

// LLM parameters for title generation
const (
	titleTimeout      = 15 * time.Second
	titleMaxTokens    = 40
	titleTemperature  = 0.1
	titleMaxLen       = 500
	titleMaxRuneCount = 50
)

// TitleGenerator generates short titles for chat sessions.
type TitleGenerator struct {
	llm llm.Service
}

// NewTitleGenerator creates a new title generator instance.
func NewTitleGenerator(svc llm.Service) *TitleGenerator {
	return &TitleGenerator{llm: svc}
}

// Generate generates a title based on the first exchange of a conversation.
func (tg *TitleGenerator) Generate(ctx context.Context, userMessage, aiResponse string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	prompt := fmt.Sprintf("User message: %s\n\nAssistant reply: %s\n\nWrite a short title for this conversation.",
		strutil.Truncate(userMessage, titleMaxLen), strutil.Truncate(aiResponse, titleMaxLen))

	start := time.Now()
	content, stats, err := tg.llm.Chat(ctx, []llm.Message{
		llm.SystemPrompt(titleSystemPrompt),
		llm.UserMessage(prompt),
	},
		llm.WithMaxTokens(titleMaxTokens),
		llm.WithTemperature(titleTemperature),
		llm.WithResponseSchema("title_generation", titleJSONSchema),
	)
	latency := time.Since(start)
	if err != nil {
		slog.Error("title_generation_failed", "error", err, "latency_ms", latency.Milliseconds())
		return "", fmt.Errorf("LLM request failed: %w", err)
	}

	title, err := parseTitle(content)
	if err != nil {
		slog.Warn("title_generation_parse_failed", "content", content, "error", err)
		return "", err
	}

	tokens := 0
	if stats != nil {
		tokens = stats.TotalTokens
	}
	slog.Debug("title_generation_success",
		"title", title,
		"latency_ms", latency.Milliseconds(),
		"tokens_total", tokens)
	return title, nil
}

// GenerateFromMessages uses the first user and assistant text messages.
func (tg *TitleGenerator) GenerateFromMessages(ctx context.Context, messages []store.AIMessage) (string, error) {
	var userMessage, aiResponse string
	for _, m := range messages {
		t, ok := m.(*store.TextMessage)
		if !ok {
			continue
		}
		if t.Role == store.RoleUser && userMessage == "" {
			userMessage = t.Content
		}
		if t.Role == store.RoleAssistant && aiResponse == "" {
			aiResponse = t.Content
		}
		if userMessage != "" && aiResponse != "" {
			break
		}
	}
	if userMessage == "" {
		return "", fmt.Errorf("no user message found")
	}
	return tg.Generate(ctx, userMessage, aiResponse)
}

func parseTitle(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		return "", fmt.Errorf("parse response failed: %w", err)
	}
	title := strings.Trim(strings.TrimSpace(result.Title), `"`)
	if title == "" {
		return "", fmt.Errorf("empty title in response")
	}

	return strutil.Cut(title, titleMaxRuneCount), nil
}

const titleSystemPrompt = `You write titles for conversations between an author and their writing assistant.

Requirements:
1. 3 to 8 words, in the language of the conversation.
2. Name the story element or task being discussed.
3. No quotes, no trailing punctuation, no filler like "Discussion about".

Examples:
- "Can you tighten the opening of chapter one?" -> "Tightening chapter one opening"
- "Give Ines a backstory" -> "Backstory for Ines"`

var titleJSONSchema = &llm.JSONSchema{
	Type:                 "object",
	AdditionalProperties: false,
	Required:             []string{"title"},
	Properties: map[string]*llm.JSONSchema{
		"title": {
			Type:        "string",
			Description: "The conversation title, 3 to 8 words",
		},
	},
}
