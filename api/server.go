// Package api provides the HTTP REST API of the chat backend.
//
// Endpoints:
//
//	GET    /health               liveness probe
//	GET    /ready                readiness probe (pings the database)
//	POST   /api/chat             ask a question
//	GET    /api/chat/history     recent turns of the calling user
//	GET    /api/chat/stats       conversation statistics
//	GET    /api/budget           cost budget status
//	POST   /api/documents        upload a document (multipart)
//	GET    /api/documents        list the calling user's documents
//	DELETE /api/documents/{id}   delete a document
//
// Identity comes from the X-User-ID header; privileged operations
// additionally require X-Admin: true. Authentication proper sits in front of
// this service.
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery, identity)
//   - health.go: health check endpoints (/health, /ready)
//   - chat.go: chat, history, stats and budget endpoints
//   - documents.go: document upload, list and delete endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/provider"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Chat
	// requests wait on the model provider, so this is generous.
	WriteTimeout = 3 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the chat backend.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health    *HealthHandler
	chat      *ChatHandler
	documents *DocumentHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(engine Asker, conversations ConversationReader, documents DocumentStore, embedder provider.Embedder, recorder ActivityRecorder, budget *provider.Budget, pool *pgxpool.Pool, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:       mux,
		logger:    logger,
		health:    NewHealthHandler(pool, logger),
		chat:      NewChatHandler(engine, conversations, budget, logger),
		documents: NewDocumentHandler(documents, embedder, recorder, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
