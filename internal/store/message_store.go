package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ZM-BAD/DAG-chat/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// MessageStore persists the DAG's message nodes in the message table.
// It satisfies dag.MessageFetcher via GetMany.
type MessageStore struct {
	client *Client
}

// NewMessageStore wraps client for message-table access.
func NewMessageStore(client *Client) *MessageStore {
	return &MessageStore{client: client}
}

// Insert creates a new message node. msg.ID must already be set by the
// caller (the orchestrator mints one with uuid.New() before persisting,
// so it can be emitted to the client before the model finishes replying).
func (s *MessageStore) Insert(ctx context.Context, msg *models.Message) error {
	sql := `
		CREATE type::record("message", $id) SET
			conversation_id = $conversation_id,
			role = $role,
			content = $content,
			reasoning = $reasoning,
			model = $model,
			parent_ids = $parent_ids,
			children = $children,
			created_at = $created_at
	`
	vars := map[string]any{
		"id":              msg.ID,
		"conversation_id": msg.ConversationID,
		"role":            string(msg.Role),
		"content":         msg.Content,
		"reasoning":       msg.Reasoning,
		"model":           msg.Model,
		"parent_ids":      orEmpty(msg.ParentIDs),
		"children":        orEmpty(msg.Children),
		"created_at":      msg.CreatedAt,
	}

	_, err := surrealdb.Query[[]messageRow](ctx, s.client.db, sql, vars)
	if err != nil {
		return wrapQueryError(fmt.Errorf("insert message: %w", err))
	}
	return nil
}

// AppendChild records that childID descends from parentID by appending
// to parentID's children index. This is purely a rendering convenience
// (see models.Message's doc comment) — the authoritative edge is the
// child's own parent_ids, already set when the child was inserted.
func (s *MessageStore) AppendChild(ctx context.Context, parentID, childID string) error {
	sql := `
		UPDATE type::record("message", $id) SET
			children = array::union(children, [$child])
	`
	_, err := surrealdb.Query[any](ctx, s.client.db, sql, map[string]any{
		"id":    parentID,
		"child": childID,
	})
	if err != nil {
		return wrapQueryError(fmt.Errorf("append child: %w", err))
	}
	return nil
}

// Get retrieves a single message by ID, or nil if it does not exist.
func (s *MessageStore) Get(ctx context.Context, id string) (*models.Message, error) {
	results, err := surrealdb.Query[[]messageRow](ctx, s.client.db, `
		SELECT * FROM type::record("message", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("get message: %w", err))
	}
	row := firstRow(results)
	if row == nil {
		return nil, nil
	}
	return row.toModel(), nil
}

// GetMany batch-fetches messages by ID. Missing IDs are simply absent
// from the result map, never an error — this is what lets dag.BuildSubDAG
// treat an unknown parent ID as prune-not-fail.
func (s *MessageStore) GetMany(ctx context.Context, ids []string) (map[string]*models.Message, error) {
	out := make(map[string]*models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	recordIDs := make([]string, len(ids))
	for i, id := range ids {
		recordIDs[i] = "message:" + id
	}

	results, err := surrealdb.Query[[]messageRow](ctx, s.client.db, `
		SELECT * FROM message WHERE id IN $ids
	`, map[string]any{"ids": recordIDs})
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("get many messages: %w", err))
	}
	if results == nil || len(*results) == 0 {
		return out, nil
	}
	for _, row := range (*results)[0].Result {
		m := row.toModel()
		out[m.ID] = m
	}
	return out, nil
}

// GetByConversation returns every message belonging to conversationID,
// ordered by creation time. Used for the dialogue/history listing, which
// shows the whole DAG rather than one linear thread.
func (s *MessageStore) GetByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	results, err := surrealdb.Query[[]messageRow](ctx, s.client.db, `
		SELECT * FROM message WHERE conversation_id = $cid ORDER BY created_at ASC
	`, map[string]any{"cid": conversationID})
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("get messages by conversation: %w", err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	rows := (*results)[0].Result
	out := make([]*models.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

// DeleteByConversation removes every message of conversationID. Called
// when the owning conversation is deleted.
func (s *MessageStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		DELETE message WHERE conversation_id = $cid
	`, map[string]any{"cid": conversationID})
	if err != nil {
		return wrapQueryError(fmt.Errorf("delete messages by conversation: %w", err))
	}
	return nil
}

// messageRow mirrors the message table's shape for CBOR decoding; the
// record ID lives in a field SurrealDB fills in automatically, separate
// from models.Message's plain string ID.
type messageRow struct {
	ID             surrealmodels.RecordID `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	Reasoning      string                 `json:"reasoning"`
	Model          string                 `json:"model"`
	ParentIDs      []string               `json:"parent_ids"`
	Children       []string               `json:"children"`
	CreatedAt      time.Time              `json:"created_at"`
}

func (r messageRow) toModel() *models.Message {
	return &models.Message{
		ID:             models.MustRecordIDString(r.ID),
		ConversationID: r.ConversationID,
		Role:           models.Role(r.Role),
		Content:        r.Content,
		Reasoning:      r.Reasoning,
		Model:          r.Model,
		ParentIDs:      r.ParentIDs,
		Children:       r.Children,
		CreatedAt:      r.CreatedAt,
	}
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func firstRow[T any](results *[]surrealdb.QueryResult[[]T]) *T {
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil
	}
	return &(*results)[0].Result[0]
}
