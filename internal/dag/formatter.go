package dag

import "github.com/ZM-BAD/DAG-chat/internal/models"

// ChatMessage is a role-tagged entry ready for concatenation into a new
// model prompt — the History Formatter's output shape (spec 4.4).
type ChatMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// FormatHistory turns a topologically ordered node sequence into the
// role-tagged array a model adapter expects. Empty-content nodes (partial
// writes from an interrupted run) are dropped, and the reasoning trace is
// never replayed back to the model.
func FormatHistory(nodes []*models.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(nodes))
	for _, n := range nodes {
		if n.Content == "" {
			continue
		}
		out = append(out, ChatMessage{Role: n.Role, Content: n.Content})
	}
	return out
}
