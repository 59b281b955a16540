package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZM-BAD/DAG-chat/internal/dag"
	"github.com/ZM-BAD/DAG-chat/internal/llm"
	"github.com/ZM-BAD/DAG-chat/internal/metrics"
	"github.com/ZM-BAD/DAG-chat/internal/models"
	"github.com/ZM-BAD/DAG-chat/internal/orchestrator"
	"github.com/ZM-BAD/DAG-chat/internal/service"
)

// fakeMessageStore satisfies both orchestrator's and service's narrower
// messageStore interfaces, the way *store.MessageStore does in production.
type fakeMessageStore struct {
	mu   sync.Mutex
	byID map[string]*models.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{byID: make(map[string]*models.Message)}
}

func (f *fakeMessageStore) Insert(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *msg
	f.byID[msg.ID] = &cp
	return nil
}

func (f *fakeMessageStore) AppendChild(_ context.Context, parentID, childID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byID[parentID]; ok {
		m.Children = append(m.Children, childID)
	}
	return nil
}

func (f *fakeMessageStore) GetMany(_ context.Context, ids []string) (map[string]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*models.Message, len(ids))
	for _, id := range ids {
		if m, ok := f.byID[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeMessageStore) GetByConversation(_ context.Context, conversationID string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for _, m := range f.byID {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) DeleteByConversation(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.byID {
		if m.ConversationID == conversationID {
			delete(f.byID, id)
		}
	}
	return nil
}

// fakeConversationStore satisfies both orchestrator's and service's
// narrower conversationStore interfaces.
type fakeConversationStore struct {
	mu   sync.Mutex
	byID map[string]*models.Conversation
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{byID: make(map[string]*models.Conversation)}
}

func (f *fakeConversationStore) Create(_ context.Context, id, userID string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Conversation{ID: id, UserID: userID}
	f.byID[id] = c
	return c, nil
}

func (f *fakeConversationStore) Get(_ context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeConversationStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*models.Conversation
	for _, c := range f.byID {
		if c.UserID == userID {
			all = append(all, c)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeConversationStore) CountByUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.byID {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeConversationStore) AddModel(_ context.Context, id, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.byID[id]; ok {
		c.AddModel(model)
	}
	return nil
}

func (f *fakeConversationStore) SetTitle(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.byID[id]; ok {
		c.Title = title
	}
	return nil
}

func (f *fakeConversationStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

type fakeAdapter struct {
	events []llm.ChatEvent
}

func (a *fakeAdapter) Capabilities() llm.Capabilities { return llm.Capabilities{} }

func (a *fakeAdapter) StreamChat(ctx context.Context, _ []dag.ChatMessage, _ string, _ llm.ChatOptions) (<-chan llm.ChatEvent, error) {
	out := make(chan llm.ChatEvent, len(a.events))
	for _, ev := range a.events {
		out <- ev
	}
	close(out)
	return out, nil
}

type fakeRegistry struct {
	adapters map[string]llm.Adapter
}

func (r *fakeRegistry) Get(model string) (llm.Adapter, error) {
	a, ok := r.adapters[model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", llm.ErrUnknownModel, model)
	}
	return a, nil
}

func (r *fakeRegistry) ListModels() []llm.ModelInfo {
	out := make([]llm.ModelInfo, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, llm.ModelInfo{Name: name, DisplayName: name})
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testDeps struct {
	handlers      *Handlers
	messages      *fakeMessageStore
	conversations *fakeConversationStore
	registry      *fakeRegistry
}

func newTestHandlers(t *testing.T) *testDeps {
	t.Helper()
	messages := newFakeMessageStore()
	conversations := newFakeConversationStore()
	registry := &fakeRegistry{adapters: map[string]llm.Adapter{
		"gpt": &fakeAdapter{events: []llm.ChatEvent{
			{Type: llm.EventContent, Text: "hello"},
			{Type: llm.EventDone},
		}},
	}}

	orch := orchestrator.New(messages, conversations, registry, metrics.NewCollector(), testLogger(), "gpt", 5, 5)
	svc := service.NewConversationService(conversations, messages, testLogger())
	h := NewHandlers(orch, svc, registry, testLogger())

	return &testDeps{handlers: h, messages: messages, conversations: conversations, registry: registry}
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body.Bytes(), &env))
	return env
}

func TestHandlers_Health(t *testing.T) {
	deps := newTestHandlers(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	deps.handlers.Mux().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandlers_CreateConversation(t *testing.T) {
	deps := newTestHandlers(t)
	body := strings.NewReader(`{"user_id":"user-1","model":"gpt","message":"hi"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/create-conversation", body)
	deps.handlers.Mux().ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec.Body)
	assert.Equal(t, 0, env.Code)
	data := env.Data.(map[string]any)
	assert.NotEmpty(t, data["conversation_id"])
}

func TestHandlers_Chat_FullFlow(t *testing.T) {
	deps := newTestHandlers(t)
	conv, err := deps.conversations.Create(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)
	_ = conv

	body := strings.NewReader(`{"conversation_id":"conv-1","user_id":"user-1","model":"gpt","message":"hi"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/chat", body)
	deps.handlers.Mux().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	respBody := rec.Body.String()
	assert.Contains(t, respBody, "user_message_id")
	assert.Contains(t, respBody, `"content":"hello"`)
	assert.Contains(t, respBody, `"complete":true`)
}

func TestHandlers_Chat_UnknownModelReturnsEnvelopeError(t *testing.T) {
	deps := newTestHandlers(t)
	_, err := deps.conversations.Create(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)

	body := strings.NewReader(`{"conversation_id":"conv-1","user_id":"user-1","model":"nope","message":"hi"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/chat", body)
	deps.handlers.Mux().ServeHTTP(rec, req)

	assert.NotEqual(t, "text/event-stream", rec.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rec.Body)
	assert.Equal(t, codeUnknownModel, env.Code)
}

func TestHandlers_DialogueList(t *testing.T) {
	deps := newTestHandlers(t)
	_, err := deps.conversations.Create(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/dialogue/list?user_id=user-1&page=1&page_size=10", nil)
	deps.handlers.Mux().ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec.Body)
	assert.Equal(t, 0, env.Code)
	data := env.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
}

func TestHandlers_DialogueRenameAndDelete(t *testing.T) {
	deps := newTestHandlers(t)
	_, err := deps.conversations.Create(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)

	renameReq := httptest.NewRequest("PUT", "/api/v1/dialogue/rename?conversation_id=conv-1&user_id=user-1&new_title=Renamed", nil)
	renameRec := httptest.NewRecorder()
	deps.handlers.Mux().ServeHTTP(renameRec, renameReq)
	assert.Equal(t, 0, decodeEnvelope(t, renameRec.Body).Code)

	deleteReq := httptest.NewRequest("DELETE", "/api/v1/dialogue/delete?conversation_id=conv-1&user_id=user-1", nil)
	deleteRec := httptest.NewRecorder()
	deps.handlers.Mux().ServeHTTP(deleteRec, deleteReq)
	assert.Equal(t, 0, decodeEnvelope(t, deleteRec.Body).Code)

	got, err := deps.conversations.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHandlers_Models(t *testing.T) {
	deps := newTestHandlers(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/models", nil)
	deps.handlers.Mux().ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "gpt")
}
