// Package sse frames server-sent events for the /chat endpoint: one JSON
// object per event, flushed immediately so the client sees tokens as
// they arrive rather than batched behind the transport's write buffer.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// KeepAliveInterval is how often a comment-only ping is written while no
// real event is pending, so intermediaries don't time out the connection.
const KeepAliveInterval = 15 * time.Second

// Writer frames and flushes server-sent events on top of an
// http.ResponseWriter. It is not safe for concurrent use by more than
// one goroutine — the chat orchestrator writes from a single goroutine
// and relies on that.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets the SSE response headers and returns a Writer, or an
// error if the underlying ResponseWriter cannot be flushed incrementally.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx's response buffering for proxied deployments

	return &Writer{w: w, flusher: flusher}, nil
}

// Send JSON-encodes payload and writes it as one SSE data frame,
// flushing immediately.
func (sw *Writer) Send(payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", body); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	sw.flusher.Flush()
	return nil
}

// Ping writes a comment-only keep-alive line, ignored by EventSource
// clients but enough to keep idle proxies and load balancers from
// closing the connection.
func (sw *Writer) Ping() error {
	if _, err := fmt.Fprint(sw.w, ": ping\n\n"); err != nil {
		return fmt.Errorf("sse: write ping: %w", err)
	}
	sw.flusher.Flush()
	return nil
}
