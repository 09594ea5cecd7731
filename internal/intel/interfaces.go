package intel

import (
	"context"
	"time"
)

// ExtractionSession is an exclusively-owned browser/session context reused
// across sequential extraction calls for one analysis. It must be closed on
// every exit path.
type ExtractionSession interface {
	Extract(ctx context.Context, url string, directive Directive) (ExtractionResult, error)
	Close() error
}

// ExtractionCapability opens extraction sessions against the external
// crawler+extraction service.
type ExtractionCapability interface {
	NewSession(ctx context.Context) (ExtractionSession, error)
}

// Searcher resolves free-text queries to web results.
type Searcher interface {
	Search(ctx context.Context, query string) (*SearchResults, error)
}

// ChatMessage is one turn of a chat-completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a chat-completion invocation.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

// ChatChoice is one completion candidate. Some providers put the text under
// message.content, others directly under content.
type ChatChoice struct {
	Message ChatMessage `json:"message"`
	Content string      `json:"content,omitempty"`
}

// ChatResponse is the subset of a chat-completion response the core consumes.
type ChatResponse struct {
	Choices []ChatChoice `json:"choices"`
}

// Text returns the first choice's content, tolerating both response shapes.
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	if c := r.Choices[0].Message.Content; c != "" {
		return c
	}
	return r.Choices[0].Content
}

// ChatCompleter invokes a chat-completion model.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
