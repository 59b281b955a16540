package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ZM-BAD/DAG-chat/internal/llm"
	"github.com/ZM-BAD/DAG-chat/internal/orchestrator"
	"github.com/ZM-BAD/DAG-chat/internal/service"
	"github.com/ZM-BAD/DAG-chat/internal/sse"
)

// modelRegistry is the subset of llm.Registry the Handlers need.
type modelRegistry interface {
	ListModels() []llm.ModelInfo
}

// Handlers wires the HTTP surface from spec 6 onto the orchestrator and
// conversation service.
type Handlers struct {
	orchestrator  *orchestrator.Orchestrator
	conversations *service.ConversationService
	registry      modelRegistry
	logger        *slog.Logger
}

// NewHandlers builds the Handlers and its http.ServeMux.
func NewHandlers(o *orchestrator.Orchestrator, svc *service.ConversationService, registry modelRegistry, logger *slog.Logger) *Handlers {
	return &Handlers{orchestrator: o, conversations: svc, registry: registry, logger: logger}
}

// Mux builds the route table for the API surface (spec 6).
func (h *Handlers) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/v1/create-conversation", h.handleCreateConversation)
	mux.HandleFunc("/api/v1/chat", h.handleChat)
	mux.HandleFunc("/api/v1/dialogue/list", h.handleDialogueList)
	mux.HandleFunc("/api/v1/dialogue/history", h.handleDialogueHistory)
	mux.HandleFunc("/api/v1/dialogue/rename", h.handleDialogueRename)
	mux.HandleFunc("/api/v1/dialogue/delete", h.handleDialogueDelete)
	mux.HandleFunc("/api/v1/models", h.handleModels)
	return mux
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createConversationRequest struct {
	UserID  string `json:"user_id"`
	Model   string `json:"model"`
	Message string `json:"message"`
}

func (h *Handlers) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	conv, err := h.conversations.Create(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(map[string]string{"conversation_id": conv.ID}))
}

type chatRequestBody struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	Model          string   `json:"model"`
	Message        string   `json:"message"`
	ParentIDs      []string `json:"parent_ids"`
	DeepThinking   bool     `json:"deep_thinking"`
	SearchEnabled  bool     `json:"search_enabled"`
}

// handleChat implements the streaming endpoint (spec 4.6). Validation
// (Prepare) happens before any SSE header is written, so a request that
// fails validation gets a normal JSON envelope instead of a stream.
func (h *Handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	req := orchestrator.ChatRequest{
		ConversationID: body.ConversationID,
		UserID:         body.UserID,
		Model:          body.Model,
		Message:        body.Message,
		ParentIDs:      body.ParentIDs,
		DeepThinking:   body.DeepThinking,
		SearchEnabled:  body.SearchEnabled,
	}

	adapter, history, conv, err := h.orchestrator.Prepare(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	if err := h.orchestrator.Stream(r.Context(), sw, adapter, history, conv, req); err != nil {
		h.logger.Error("chat stream failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	}
}

func (h *Handlers) handleDialogueList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	userID := q.Get("user_id")
	page := atoiOrDefault(q.Get("page"), 1)
	pageSize := atoiOrDefault(q.Get("page_size"), 20)

	items, total, err := h.conversations.List(r.Context(), userID, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{
		"list":      items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	}))
}

func (h *Handlers) handleDialogueHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dialogueID := r.URL.Query().Get("dialogue_id")
	msgs, err := h.conversations.History(r.Context(), dialogueID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(msgs))
}

func (h *Handlers) handleDialogueRename(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	err := h.conversations.Rename(r.Context(), q.Get("conversation_id"), q.Get("user_id"), q.Get("new_title"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

func (h *Handlers) handleDialogueDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	err := h.conversations.Delete(r.Context(), q.Get("conversation_id"), q.Get("user_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

func (h *Handlers) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": h.registry.ListModels()})
}

// writeError logs err and writes its classified business code in the
// standard envelope — always HTTP 200, per spec 6's "business errors
// stay 200" rule.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	code, message := classify(err)
	h.logger.Warn("request returned a business error", "code", code, "error", err)
	writeJSON(w, http.StatusOK, envelope{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoiOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
