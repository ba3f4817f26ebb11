package store

// TitleSource indicates how the session title was created.
// - "default": first user message, truncated
// - "auto": generated from the conversation
// - "user": edited by the user, never overwritten
type TitleSource string

const (
	TitleSourceDefault TitleSource = "default"
	TitleSourceAuto    TitleSource = "auto"
	TitleSourceUser    TitleSource = "user"
)

// TokenUsage is a prompt/completion token tally.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add returns the sum of two tallies.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// AISession is the metadata record of one conversation.
type AISession struct {
	ID              string
	ProjectID       string
	Title           string
	TitleSource     TitleSource
	CreatedTs       int64
	UpdatedTs       int64
	CumulativeUsage TokenUsage
}

type FindAISession struct {
	ID        *string
	ProjectID *string
	Limit     *int
}

type UpdateAISession struct {
	ID              string
	Title           *string
	TitleSource     *TitleSource
	UpdatedTs       *int64
	CumulativeUsage *TokenUsage
}

type DeleteAISession struct {
	ID string
}
