// Package server provides the HTTP/SSE surface: route wiring, request
// logging, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// shutdownTimeout bounds how long Run waits for in-flight requests
// (including open SSE streams) to drain after ctx is canceled.
const shutdownTimeout = 10 * time.Second

// Server wraps an http.Server with lifecycle management.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a Server listening on addr, serving mux through
// LoggingMiddleware. WriteTimeout is intentionally left at zero: /chat
// streams can legitimately run for CHAT_TOTAL_TIMEOUT_SEC, far longer
// than a typical request, so the deadline for that endpoint belongs to
// the orchestrator, not the transport.
func New(addr string, mux http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     LoggingMiddleware(logger)(mux),
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Run starts the server and blocks until ctx is canceled, then drains
// in-flight requests for up to shutdownTimeout before returning.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
