package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZM-BAD/DAG-chat/internal/llm"
)

// autoTitleMaxLen bounds the generated title, per spec 4.6.
const autoTitleMaxLen = 16

// autoTitleJobTimeout bounds the whole job, model call plus persist.
const autoTitleJobTimeout = 10 * time.Second

// scheduleAutoTitle runs detached from the request goroutine — by the
// time it fires, the chat response has already completed. Failure at
// any step is non-fatal and simply leaves the title empty, per spec
// 4.6's "Auto-title job" paragraph.
func (o *Orchestrator) scheduleAutoTitle(conversationID, model, firstMessage string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("auto-title job panicked", "conversation_id", conversationID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), autoTitleJobTimeout)
		defer cancel()

		title, err := o.generateTitle(ctx, model, firstMessage)
		if err != nil {
			o.logger.Warn("auto-title generation with the turn's model failed, retrying with default model",
				"conversation_id", conversationID, "model", model, "error", err)
			title, err = o.generateTitle(ctx, o.defaultModel, firstMessage)
		}
		if err != nil {
			o.logger.Warn("auto-title generation failed twice, falling back to a truncated message",
				"conversation_id", conversationID, "error", err)
			title = truncateRunes(firstMessage, autoTitleMaxLen)
		}
		if title == "" {
			return
		}

		if err := o.conversations.SetTitle(ctx, conversationID, title); err != nil {
			o.logger.Warn("auto-title persist failed", "conversation_id", conversationID, "error", err)
		}
	}()
}

// generateTitle asks model to summarize firstMessage in
// autoTitleMaxLen characters or fewer and sanitizes the reply.
func (o *Orchestrator) generateTitle(ctx context.Context, model, firstMessage string) (string, error) {
	adapter, err := o.registry.Get(model)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(
		"Summarize the following question in %d characters or fewer, plain text, no quotes or trailing punctuation: %s",
		autoTitleMaxLen, firstMessage,
	)
	events, err := adapter.StreamChat(ctx, nil, prompt, llm.ChatOptions{})
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for ev := range events {
		switch ev.Type {
		case llm.EventContent:
			reply.WriteString(ev.Text)
		case llm.EventError:
			return "", ev.Err
		}
	}

	title := truncateRunes(strings.ReplaceAll(strings.TrimSpace(reply.String()), "\n", " "), autoTitleMaxLen)
	if title == "" {
		return "", fmt.Errorf("orchestrator: model returned an empty title")
	}
	return title, nil
}

func truncateRunes(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > maxLen {
		r = r[:maxLen]
	}
	return string(r)
}
