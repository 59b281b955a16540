package server

import (
	"errors"

	"github.com/ZM-BAD/DAG-chat/internal/dag"
	"github.com/ZM-BAD/DAG-chat/internal/llm"
	"github.com/ZM-BAD/DAG-chat/internal/orchestrator"
	"github.com/ZM-BAD/DAG-chat/internal/service"
)

// Business error codes for the uniform envelope (spec 6, 7). code=0
// means success; everything else carries an HTTP 200 with the error
// described in message — only transport-level failures (malformed JSON,
// wrong method) get a non-200 status.
const (
	codeOK                  = 0
	codeInvalidRequest      = 1
	codeUnknownConversation = 2
	codeUnknownMessage      = 3
	codeUnknownModel        = 4
	codeInvalidDag          = 5
	codeAdapterError        = 6
	codeInternal            = 99
)

// envelope is the uniform response shape for every non-streaming
// endpoint (spec 6).
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(data any) envelope {
	return envelope{Code: codeOK, Data: data}
}

// classify maps an internal error to the envelope's business error code
// and message, per the taxonomy in spec 7.
func classify(err error) (code int, message string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest), errors.Is(err, service.ErrInvalidRequest):
		return codeInvalidRequest, err.Error()
	case errors.Is(err, orchestrator.ErrUnknownConversation), errors.Is(err, service.ErrUnknownConversation):
		return codeUnknownConversation, err.Error()
	case errors.Is(err, orchestrator.ErrUnknownMessage):
		return codeUnknownMessage, err.Error()
	case errors.Is(err, llm.ErrUnknownModel):
		return codeUnknownModel, err.Error()
	case errors.Is(err, dag.ErrInvalidDag):
		return codeInvalidDag, err.Error()
	case errors.Is(err, orchestrator.ErrAdapterFailure):
		return codeAdapterError, err.Error()
	default:
		return codeInternal, "internal error"
	}
}
