// Package service implements the conversation CRUD surface (C7):
// create, paged list, history, rename, and cascading delete.
package service

import "errors"

var (
	// ErrInvalidRequest covers request-shape problems: missing user_id,
	// an empty or oversized title.
	ErrInvalidRequest = errors.New("service: invalid request")

	// ErrUnknownConversation is returned when a conversation_id doesn't
	// resolve, or resolves to a conversation owned by a different user.
	ErrUnknownConversation = errors.New("service: unknown conversation")
)
