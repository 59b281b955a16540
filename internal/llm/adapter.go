// Package llm provides a uniform streaming-chat interface over the
// heterogeneous vendor APIs reachable through langchaingo, plus a
// process-wide registry that maps a public model identifier to the
// adapter instance bound to it.
package llm

import (
	"context"
	"errors"

	"github.com/ZM-BAD/DAG-chat/internal/dag"
)

// ErrUnknownModel is returned by Registry.Get when the requested model
// identifier has no registered adapter.
var ErrUnknownModel = errors.New("llm: unknown model")

// ChatEventType tags the variant carried by a ChatEvent.
type ChatEventType string

const (
	// EventReasoning carries a chunk of the model's reasoning trace, for
	// adapters whose provider exposes one.
	EventReasoning ChatEventType = "reasoning"
	// EventContent carries a chunk of the model's visible reply.
	EventContent ChatEventType = "content"
	// EventError terminates the stream with an adapter- or vendor-side
	// failure. No further events follow.
	EventError ChatEventType = "error"
	// EventDone terminates the stream successfully. No further events
	// follow.
	EventDone ChatEventType = "done"
)

// ChatEvent is one token-level unit of a streamed reply.
type ChatEvent struct {
	Type ChatEventType
	Text string
	Err  error // set only on EventError, for logging; Text holds the message
}

// Capabilities describes what a model can do beyond plain text chat.
type Capabilities struct {
	Reasoning bool `json:"reasoning"`
	Search    bool `json:"search"`
}

// ChatOptions carries the per-turn knobs a caller may request. An
// adapter silently ignores knobs its provider cannot satisfy.
type ChatOptions struct {
	DeepThinking  bool
	SearchEnabled bool
	Temperature   float64
	MaxTokens     int
}

// Adapter streams a chat completion from one bound model. The returned
// channel carries zero or more EventReasoning/EventContent events
// followed by exactly one terminal EventError or EventDone, and is
// always closed before StreamChat's goroutine returns. Cancelling ctx
// stops generation and closes the channel without a terminal error
// event — callers distinguish that from a genuine failure by checking
// ctx.Err() themselves.
type Adapter interface {
	StreamChat(ctx context.Context, history []dag.ChatMessage, prompt string, opts ChatOptions) (<-chan ChatEvent, error)
	Capabilities() Capabilities
}
