package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ZM-BAD/DAG-chat/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ConversationStore persists conversation metadata rows in the
// conversation table.
type ConversationStore struct {
	client *Client
}

// NewConversationStore wraps client for conversation-table access.
func NewConversationStore(client *Client) *ConversationStore {
	return &ConversationStore{client: client}
}

// Create inserts a new, untitled conversation for userID and returns it.
func (s *ConversationStore) Create(ctx context.Context, id, userID string) (*models.Conversation, error) {
	sql := `
		CREATE type::record("conversation", $id) SET
			user_id = $user_id,
			title = '',
			models = [],
			created_at = time::now(),
			updated_at = time::now()
		RETURN AFTER
	`
	results, err := surrealdb.Query[[]conversationRow](ctx, s.client.db, sql, map[string]any{
		"id":      id,
		"user_id": userID,
	})
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("create conversation: %w", err))
	}
	row := firstRow(results)
	if row == nil {
		return nil, fmt.Errorf("create conversation: no result returned")
	}
	return row.toModel(), nil
}

// Get retrieves a conversation by ID, or nil if it does not exist.
func (s *ConversationStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	results, err := surrealdb.Query[[]conversationRow](ctx, s.client.db, `
		SELECT * FROM type::record("conversation", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("get conversation: %w", err))
	}
	row := firstRow(results)
	if row == nil {
		return nil, nil
	}
	return row.toModel(), nil
}

// ListByUser returns userID's conversations ordered by most-recently
// updated first, for the dialogue/list endpoint.
func (s *ConversationStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, error) {
	results, err := surrealdb.Query[[]conversationRow](ctx, s.client.db, `
		SELECT * FROM conversation WHERE user_id = $user_id
		ORDER BY updated_at DESC
		LIMIT $limit START $offset
	`, map[string]any{"user_id": userID, "limit": limit, "offset": offset})
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("list conversations: %w", err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	rows := (*results)[0].Result
	out := make([]*models.Conversation, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

// CountByUser returns the total number of conversations owned by
// userID, for the dialogue/list endpoint's pagination total.
func (s *ConversationStore) CountByUser(ctx context.Context, userID string) (int, error) {
	results, err := surrealdb.Query[[]int](ctx, s.client.db, `
		SELECT VALUE count() FROM conversation WHERE user_id = $user_id GROUP ALL
	`, map[string]any{"user_id": userID})
	if err != nil {
		return 0, wrapQueryError(fmt.Errorf("count conversations: %w", err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0], nil
}

// SetTitle overwrites a conversation's title — used both by the
// dialogue/rename endpoint and by the auto-title background job.
func (s *ConversationStore) SetTitle(ctx context.Context, id, title string) error {
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		UPDATE type::record("conversation", $id) SET title = $title, updated_at = time::now()
	`, map[string]any{"id": id, "title": title})
	if err != nil {
		return wrapQueryError(fmt.Errorf("set conversation title: %w", err))
	}
	return nil
}

// AddModel appends modelName to a conversation's model list if absent,
// and bumps updated_at — the persisted half of invariant 7 (ordered
// per-conversation model list).
func (s *ConversationStore) AddModel(ctx context.Context, id, modelName string) error {
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		UPDATE type::record("conversation", $id) SET
			models = IF $model IN models THEN models ELSE array::append(models, $model) END,
			updated_at = time::now()
	`, map[string]any{"id": id, "model": modelName})
	if err != nil {
		return wrapQueryError(fmt.Errorf("add conversation model: %w", err))
	}
	return nil
}

// Delete removes a conversation row. Callers are responsible for
// cascading to MessageStore.DeleteByConversation first.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		DELETE type::record("conversation", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return wrapQueryError(fmt.Errorf("delete conversation: %w", err))
	}
	return nil
}

type conversationRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	Title     string                 `json:"title"`
	Models    []string               `json:"models"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func (r conversationRow) toModel() *models.Conversation {
	return &models.Conversation{
		ID:        models.MustRecordIDString(r.ID),
		UserID:    r.UserID,
		Title:     r.Title,
		Models:    r.Models,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
