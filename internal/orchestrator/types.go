package orchestrator

// ChatRequest is the decoded body of a POST /chat request (spec 4.6).
type ChatRequest struct {
	ConversationID string
	UserID         string
	Model          string
	Message        string
	ParentIDs      []string
	DeepThinking   bool
	SearchEnabled  bool
}
