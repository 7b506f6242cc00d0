// Package agents implements the router, code and research agents. Agents
// are transient: one is constructed per request with the capabilities it
// needs and discarded when the request finishes.
package agents

import (
	"context"

	"jrdev/internal/llm"
)

// Transport is the slice of the streaming transport agents use.
// Implemented by llm.Transport.
type Transport interface {
	GenerateResponse(ctx context.Context, model string, messages []llm.Message, workerID string, opts llm.StreamOptions) (string, error)
	StreamRequest(ctx context.Context, model string, messages []llm.Message, workerID string, opts llm.StreamOptions) (llm.ChunkStream, error)
}

// Profiles resolves profile roles to model names.
type Profiles interface {
	Model(role string) string
	ChatModel() string
}

// Sink is the UI output capability. Every update carries the worker id
// that produced it, since workers interleave.
type Sink interface {
	Print(workerID, text string)
	Markdown(workerID, text string)
	Warn(workerID, text string)
}
