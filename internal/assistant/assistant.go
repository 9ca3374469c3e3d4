// Package assistant is the thin LLM client surface: a text completer and an
// embedder. No tools, no agent loop; chat and knowledge build on these two
// interfaces and tests substitute mocks for them.
package assistant

import (
	"context"
	"errors"
)

// Message roles understood by the completer.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnavailable indicates the upstream model could not produce a response.
// API handlers map it to 502.
var ErrUnavailable = errors.New("assistant unavailable")

// Turn is one prior exchange in the conversation history.
type Turn struct {
	Role    string // RoleUser or RoleAssistant
	Content string
}

// Request is a single completion request: system prompt, prior turns and the
// new user message.
type Request struct {
	System  string
	History []Turn
	Message string
}

// StreamFunc receives response chunks in order. Returning an error aborts
// the stream.
type StreamFunc func(chunk string) error

// Completer produces assistant replies.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, fn StreamFunc) error
}

// Embedder converts texts to vectors. Implementations return one vector per
// input text, all with the same dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
