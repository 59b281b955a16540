package llm

import (
	"context"

	"github.com/ZM-BAD/DAG-chat/internal/dag"
	"github.com/ZM-BAD/DAG-chat/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// chatAdapter implements Adapter over any langchaingo llms.Model. One
// instance is bound to exactly one vendor model at registry construction
// time (see NewRegistry) — StreamChat does not accept a model argument
// because there is nothing left to select.
type chatAdapter struct {
	llm          llms.Model
	displayName  string
	capabilities Capabilities
}

func (a *chatAdapter) Capabilities() Capabilities { return a.capabilities }

func (a *chatAdapter) StreamChat(ctx context.Context, history []dag.ChatMessage, prompt string, opts ChatOptions) (<-chan ChatEvent, error) {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	for _, h := range history {
		role := llms.ChatMessageTypeHuman
		if h.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, h.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	events := make(chan ChatEvent)

	go func() {
		defer close(events)

		_, err := a.llm.GenerateContent(ctx, messages, a.buildCallOptions(ctx, events, opts)...)
		if err != nil {
			if ctx.Err() != nil {
				return // cancellation: caller maps this to a client disconnect, not an adapter error
			}
			select {
			case events <- ChatEvent{Type: EventError, Text: err.Error(), Err: err}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case events <- ChatEvent{Type: EventDone}:
		case <-ctx.Done():
		}
	}()

	return events, nil
}

// buildCallOptions wires langchaingo's chunk-level streaming callback into
// the ChatEvent channel. Every provider we register (OpenAI, Anthropic,
// Ollama) streams plain content tokens through this same callback; none
// currently exposes a langchaingo-level reasoning channel, so EventReasoning
// is never emitted here.
func (a *chatAdapter) buildCallOptions(ctx context.Context, events chan<- ChatEvent, opts ChatOptions) []llms.CallOption {
	callOpts := []llms.CallOption{
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			select {
			case events <- ChatEvent{Type: EventContent, Text: string(chunk)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	return callOpts
}
