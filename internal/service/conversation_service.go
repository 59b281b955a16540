package service

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ZM-BAD/DAG-chat/internal/models"
)

const defaultPageSize = 20

type messageStore interface {
	GetByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type conversationStore interface {
	Create(ctx context.Context, id, userID string) (*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	SetTitle(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

// ConversationService implements §4.7's conversation CRUD contracts on
// top of a ConversationStore and MessageStore.
type ConversationService struct {
	conversations conversationStore
	messages      messageStore
	logger        *slog.Logger
}

// NewConversationService wires the two stores behind the CRUD surface.
func NewConversationService(conversations conversationStore, messages messageStore, logger *slog.Logger) *ConversationService {
	return &ConversationService{conversations: conversations, messages: messages, logger: logger}
}

// Create makes a new, untitled conversation for userID. Per spec 4.7 it
// does not create any message — the caller's next step is /chat.
func (s *ConversationService) Create(ctx context.Context, userID string) (*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	return s.conversations.Create(ctx, uuid.New().String(), userID)
}

// List returns userID's conversations ordered by updated_at DESC, plus
// the total count across all pages.
func (s *ConversationService) List(ctx context.Context, userID string, page, pageSize int) (items []*models.Conversation, total int, err error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	offset := (page - 1) * pageSize

	items, err = s.conversations.ListByUser(ctx, userID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("service: list conversations: %w", err)
	}
	total, err = s.conversations.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("service: count conversations: %w", err)
	}
	return items, total, nil
}

// History returns every message in conversationID as a flat list, for
// client-side DAG reconstruction (spec 4.7).
func (s *ConversationService) History(ctx context.Context, conversationID string) ([]*models.Message, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("service: look up conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConversation, conversationID)
	}

	msgs, err := s.messages.GetByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("service: list messages: %w", err)
	}
	return msgs, nil
}

// Rename overwrites a conversation's title, enforcing models.TitleMaxLen
// and ownership by userID.
func (s *ConversationService) Rename(ctx context.Context, conversationID, userID, newTitle string) error {
	if newTitle == "" || utf8.RuneCountInString(newTitle) > models.TitleMaxLen {
		return fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidRequest, models.TitleMaxLen)
	}

	if _, err := s.authorize(ctx, conversationID, userID); err != nil {
		return err
	}

	return s.conversations.SetTitle(ctx, conversationID, newTitle)
}

// Delete cascades to messages first; the conversation row is retained if
// that fails, so a retry can complete the deletion — spec 4.7's
// atomic-from-the-client's-perspective guarantee.
func (s *ConversationService) Delete(ctx context.Context, conversationID, userID string) error {
	if _, err := s.authorize(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := s.messages.DeleteByConversation(ctx, conversationID); err != nil {
		s.logger.Error("cascade delete of messages failed, conversation retained for retry",
			"conversation_id", conversationID, "error", err)
		return fmt.Errorf("service: delete messages: %w", err)
	}

	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("service: delete conversation: %w", err)
	}
	return nil
}

// authorize fetches conversationID and verifies it belongs to userID,
// returning ErrUnknownConversation for either a missing row or a
// cross-user access attempt — the caller can't distinguish the two
// without leaking which conversation IDs exist.
func (s *ConversationService) authorize(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("service: look up conversation: %w", err)
	}
	if conv == nil || conv.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConversation, conversationID)
	}
	return conv, nil
}
