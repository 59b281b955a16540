package orchestrator

import (
	"context"

	"github.com/ZM-BAD/DAG-chat/internal/llm"
	"github.com/ZM-BAD/DAG-chat/internal/models"
)

// messageStore is the subset of store.MessageStore the orchestrator
// needs. It is also a dag.MessageFetcher, so the same value backs both
// BuildHistory and the orchestrator's own node writes.
type messageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	AppendChild(ctx context.Context, parentID, childID string) error
	GetMany(ctx context.Context, ids []string) (map[string]*models.Message, error)
}

// conversationStore is the subset of store.ConversationStore the
// orchestrator needs.
type conversationStore interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	AddModel(ctx context.Context, id, model string) error
	SetTitle(ctx context.Context, id, title string) error
}

// adapterRegistry is the subset of llm.Registry the orchestrator needs.
type adapterRegistry interface {
	Get(model string) (llm.Adapter, error)
}
