package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ZM-BAD/DAG-chat/internal/dag"
	"github.com/ZM-BAD/DAG-chat/internal/llm"
	"github.com/ZM-BAD/DAG-chat/internal/metrics"
	"github.com/ZM-BAD/DAG-chat/internal/models"
	"github.com/ZM-BAD/DAG-chat/internal/sse"
)

// Orchestrator drives one chat turn end to end: it is stateless between
// calls, holding only the shared stores, registry, and collector every
// request needs.
type Orchestrator struct {
	messages      messageStore
	conversations conversationStore
	registry      adapterRegistry
	metrics       *metrics.Collector
	logger        *slog.Logger
	defaultModel  string
	totalTimeout  time.Duration
	idleTimeout   time.Duration
}

// New builds an Orchestrator. totalTimeoutSec and idleTimeoutSec are
// CHAT_TOTAL_TIMEOUT_SEC and CHAT_IDLE_TIMEOUT_SEC from config.Config.
func New(
	messages messageStore,
	conversations conversationStore,
	registry adapterRegistry,
	collector *metrics.Collector,
	logger *slog.Logger,
	defaultModel string,
	totalTimeoutSec, idleTimeoutSec int,
) *Orchestrator {
	return &Orchestrator{
		messages:      messages,
		conversations: conversations,
		registry:      registry,
		metrics:       collector,
		logger:        logger,
		defaultModel:  defaultModel,
		totalTimeout:  time.Duration(totalTimeoutSec) * time.Second,
		idleTimeout:   time.Duration(idleTimeoutSec) * time.Second,
	}
}

// Prepare runs step 1 (validate & reconcile parents) and step 2 (build
// history) — everything that can fail before any SSE header is sent.
// The caller responds to a Prepare error with a JSON envelope, not an
// SSE frame, since the stream hasn't started.
func (o *Orchestrator) Prepare(ctx context.Context, req ChatRequest) (llm.Adapter, []dag.ChatMessage, *models.Conversation, error) {
	if req.Message == "" {
		return nil, nil, nil, fmt.Errorf("%w: message must not be empty", ErrInvalidRequest)
	}
	if req.ConversationID == "" || req.UserID == "" {
		return nil, nil, nil, fmt.Errorf("%w: conversation_id and user_id are required", ErrInvalidRequest)
	}

	adapter, err := o.registry.Get(req.Model)
	if err != nil {
		return nil, nil, nil, err
	}

	dbStart := time.Now()
	conv, err := o.conversations.Get(ctx, req.ConversationID)
	o.metrics.RecordTiming(metrics.OpDBQuery, time.Since(dbStart))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("orchestrator: look up conversation: %w", err)
	}
	if conv == nil {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownConversation, req.ConversationID)
	}
	if conv.UserID != req.UserID {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownConversation, req.ConversationID)
	}

	if len(req.ParentIDs) == 0 {
		return adapter, nil, conv, nil
	}

	dbStart = time.Now()
	found, err := o.messages.GetMany(ctx, req.ParentIDs)
	o.metrics.RecordTiming(metrics.OpDBQuery, time.Since(dbStart))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("orchestrator: look up parents: %w", err)
	}
	for _, id := range req.ParentIDs {
		m, ok := found[id]
		if !ok || m.ConversationID != req.ConversationID {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
		}
	}

	history, err := dag.BuildHistory(ctx, o.messages, req.ParentIDs)
	if err != nil {
		if errors.Is(err, dag.ErrEmptyParents) {
			return adapter, nil, conv, nil
		}
		return nil, nil, nil, fmt.Errorf("orchestrator: build history: %w", err)
	}
	return adapter, history, conv, nil
}

// Stream runs steps 3 through 6 of the chat turn, writing every event to
// sw. reqCtx is the HTTP request's context: its cancellation is what
// distinguishes a client disconnect (silent) from an adapter timeout or
// vendor error (an {error} frame). Stream never returns a non-nil error
// for anything it has already reported over SSE; a non-nil return means
// either the user node could not be persisted (nothing has been written
// to the stream yet) or an SSE write itself failed, so the caller can't
// report further.
func (o *Orchestrator) Stream(reqCtx context.Context, sw *sse.Writer, adapter llm.Adapter, history []dag.ChatMessage, conv *models.Conversation, req ChatRequest) error {
	start := time.Now()

	userNode := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		Role:           models.RoleUser,
		Content:        req.Message,
		ParentIDs:      req.ParentIDs,
		CreatedAt:      time.Now(),
	}
	if err := o.messages.Insert(reqCtx, userNode); err != nil {
		return fmt.Errorf("orchestrator: persist user node: %w", err)
	}
	for _, parentID := range req.ParentIDs {
		if err := o.messages.AppendChild(reqCtx, parentID, userNode.ID); err != nil {
			// PartialWrite (spec 7): the child's own parent_ids already
			// names this edge, so the node is still reachable — only the
			// denormalized reverse index on parentID is now stale.
			o.logger.Error("append child on parent failed, edges now asymmetric",
				"parent_id", parentID, "child_id", userNode.ID, "error", err)
		}
	}

	if err := sw.Send(map[string]string{"user_message_id": userNode.ID}); err != nil {
		return fmt.Errorf("orchestrator: emit user_message_id: %w", err)
	}

	isFirstQuestion := len(history) == 0

	chatCtx, cancel := context.WithTimeout(reqCtx, o.totalTimeout)
	defer cancel()

	events, err := adapter.StreamChat(chatCtx, history, req.Message, llm.ChatOptions{
		DeepThinking:  req.DeepThinking,
		SearchEnabled: req.SearchEnabled,
	})
	if err != nil {
		return o.emitError(reqCtx, sw, fmt.Errorf("%w: %s", ErrAdapterFailure, err))
	}

	var content, reasoning string
	idle := time.NewTimer(o.idleTimeout)
	defer idle.Stop()
	ping := time.NewTimer(sse.KeepAliveInterval)
	defer ping.Stop()

drain:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break drain
			}
			idle.Reset(o.idleTimeout)
			ping.Reset(sse.KeepAliveInterval)
			switch ev.Type {
			case llm.EventReasoning:
				reasoning += ev.Text
				if err := sw.Send(map[string]string{"reasoning": ev.Text}); err != nil {
					cancel()
					return fmt.Errorf("orchestrator: emit reasoning: %w", err)
				}
			case llm.EventContent:
				content += ev.Text
				if err := sw.Send(map[string]string{"content": ev.Text}); err != nil {
					cancel()
					return fmt.Errorf("orchestrator: emit content: %w", err)
				}
			case llm.EventError:
				cancel()
				return o.emitError(reqCtx, sw, fmt.Errorf("%w: %s", ErrAdapterFailure, ev.Text))
			case llm.EventDone:
				// the channel closes right after; loop around to drain it.
			}
		case <-ping.C:
			if err := sw.Ping(); err != nil {
				cancel()
				return fmt.Errorf("orchestrator: emit keepalive ping: %w", err)
			}
			ping.Reset(sse.KeepAliveInterval)
		case <-idle.C:
			cancel()
			return o.emitError(reqCtx, sw, fmt.Errorf("%w: no token received for %s", ErrAdapterFailure, o.idleTimeout))
		case <-chatCtx.Done():
			cancel()
			return o.emitError(reqCtx, sw, fmt.Errorf("%w: exceeded total timeout %s", ErrAdapterFailure, o.totalTimeout))
		case <-reqCtx.Done():
			cancel()
			o.logger.Debug("client disconnected mid-stream, discarding partial content",
				"conversation_id", req.ConversationID, "user_message_id", userNode.ID)
			return nil
		}
	}

	// An adapter closes its channel without a terminal event when its
	// context is canceled, so a closed channel alone does not mean the
	// reply is complete.
	if reqCtx.Err() != nil {
		o.logger.Debug("client disconnected mid-stream, discarding partial content",
			"conversation_id", req.ConversationID, "user_message_id", userNode.ID)
		return nil
	}
	if chatCtx.Err() != nil {
		return o.emitError(reqCtx, sw, fmt.Errorf("%w: exceeded total timeout %s", ErrAdapterFailure, o.totalTimeout))
	}

	// Token counts aren't surfaced by the per-chunk streaming callback;
	// full usage accounting would need the adapter's final response
	// object, which StreamChat doesn't currently thread through.
	o.metrics.RecordTiming(metrics.OpLLMStream, time.Since(start))

	if content == "" {
		// discard-partial policy (spec 9, fixed default): nothing
		// buffered, so no assistant node is created — invariant 3 holds.
		return o.emitError(reqCtx, sw, fmt.Errorf("%w: adapter produced no content", ErrAdapterFailure))
	}

	assistantNode := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		Role:           models.RoleAssistant,
		Content:        content,
		Reasoning:      reasoning,
		Model:          req.Model,
		ParentIDs:      []string{userNode.ID},
		CreatedAt:      time.Now(),
	}
	if err := o.messages.Insert(reqCtx, assistantNode); err != nil {
		return o.emitError(reqCtx, sw, fmt.Errorf("orchestrator: persist assistant node: %w", err))
	}
	if err := o.messages.AppendChild(reqCtx, userNode.ID, assistantNode.ID); err != nil {
		o.logger.Error("append child on user node failed, edges now asymmetric",
			"parent_id", userNode.ID, "child_id", assistantNode.ID, "error", err)
	}
	if err := o.conversations.AddModel(reqCtx, req.ConversationID, req.Model); err != nil {
		o.logger.Error("touch conversation failed after successful turn",
			"conversation_id", req.ConversationID, "error", err)
	}

	if err := sw.Send(map[string]any{"message_id": assistantNode.ID, "complete": true}); err != nil {
		return fmt.Errorf("orchestrator: emit completion: %w", err)
	}

	if conv.Title == "" && isFirstQuestion {
		o.scheduleAutoTitle(req.ConversationID, req.Model, req.Message)
	}

	return nil
}

// emitError logs err and, only if the client connection is still open,
// sends it as a terminal {error} frame. reqCtx.Err() != nil means the
// client already disconnected, so writing would be pointless.
func (o *Orchestrator) emitError(reqCtx context.Context, sw *sse.Writer, err error) error {
	o.logger.Error("chat turn failed", "error", err)
	if reqCtx.Err() != nil {
		return nil
	}
	if sendErr := sw.Send(map[string]string{"error": err.Error()}); sendErr != nil {
		return fmt.Errorf("orchestrator: emit error frame: %w", sendErr)
	}
	return nil
}
