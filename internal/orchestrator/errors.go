// Package orchestrator implements the chat turn pipeline (spec 4.6):
// validate the request against the DAG, build history, persist the user
// node, stream a reply from a model adapter, and finalize the assistant
// node — plus the detached auto-title job that follows a conversation's
// first completed turn.
package orchestrator

import "errors"

var (
	// ErrInvalidRequest covers request-shape problems caught before any
	// store or adapter call: an empty message, or a missing
	// conversation_id or user_id.
	ErrInvalidRequest = errors.New("orchestrator: invalid request")

	// ErrUnknownConversation is returned when conversation_id does not
	// resolve to a stored conversation.
	ErrUnknownConversation = errors.New("orchestrator: unknown conversation")

	// ErrUnknownMessage is returned when a parent_id does not resolve to
	// a stored message in the same conversation.
	ErrUnknownMessage = errors.New("orchestrator: unknown parent message")

	// ErrAdapterFailure wraps a vendor error, an idle timeout, or an
	// empty completion — anything that reaches step 6's error path while
	// the connection is still open.
	ErrAdapterFailure = errors.New("orchestrator: adapter failure")
)
