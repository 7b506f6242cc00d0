// Package llm provides the provider registry and the streaming transport
// used for every model call: shape-specific SSE clients, retry and
// think-tag middlewares, and token accounting.
package llm

import (
	"context"
)

// Role is a closed set of message roles.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one provider-ready chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChunkStream is a pull-based stream of response chunks. Next returns
// io.EOF when the stream is complete. Close releases the underlying
// connection and is safe to call more than once.
type ChunkStream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Usage is the token count for one completed request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	// Authoritative is true when the provider reported the counts.
	Authoritative bool
}

// usageReporter is implemented by shape streams that learn usage from the
// final event.
type usageReporter interface {
	Usage() (Usage, bool)
}

// StreamOptions tune a single request.
type StreamOptions struct {
	// Think marks reasoning models that reject an explicit temperature.
	Think bool
	// MaxCompletionTokens caps the completion when > 0.
	MaxCompletionTokens int
	// JSONOutput requests a JSON response where the provider supports it.
	JSONOutput bool
}

// Streamer is one provider-shape client.
type Streamer interface {
	Stream(ctx context.Context, model string, messages []Message, opts StreamOptions) (ChunkStream, error)
}

// ModelResolver maps a model name to its provider and think flag.
// Implemented by the model list.
type ModelResolver interface {
	ResolveModel(name string) (provider string, think bool, err error)
}

// Progress receives token-accounting updates for the UI, tagged with the
// originating worker. Implemented by the task monitor.
type Progress interface {
	UpdateInputTokens(workerID, model string, tokens int)
	UpdateOutputTokens(workerID string, tokens int, tokensPerSec float64)
}
