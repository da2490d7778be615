// ABOUTME: HTTP server wiring for the neuroline API
// ABOUTME: Builds the route table and manages graceful startup and shutdown

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartfactory/neuroline/internal/chat"
	"github.com/smartfactory/neuroline/internal/config"
	"github.com/smartfactory/neuroline/internal/ollama"
	"github.com/smartfactory/neuroline/internal/store"
)

// Server is the neuroline HTTP API server. It owns the store, the
// generation client, and the chat service, and serves all routes on a
// single listener.
type Server struct {
	config     *config.Config
	store      store.Store
	ollama     *ollama.Client
	chat       *chat.Service
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a fully wired server from configuration: store, generation
// client, chat service, and route table.
func New(cfg *config.Config) (*Server, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	client := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Timeout)

	s := &Server{
		config: cfg,
		store:  st,
		ollama: client,
		chat:   chat.NewService(st, client),
		logger: slog.Default().With("component", "server"),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// routes builds the route table.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/chat/conversations/{project_id}", s.handleListConversations)
	mux.HandleFunc("GET /api/chat/messages/{conversation_id}", s.handleListMessages)

	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/metadata/types", s.handleProjectTypes)
	mux.HandleFunc("GET /api/projects/metadata/statuses", s.handleProjectStatuses)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("PATCH /api/projects/{id}/access", s.handleTouchProject)

	mux.HandleFunc("POST /api/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("PUT /api/agents/{id}", s.handleUpdateAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)

	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("POST /api/models/pull", s.handlePullModel)
	mux.HandleFunc("DELETE /api/models/{name}", s.handleDeleteModel)

	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Run starts the server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting HTTP server", "addr", s.config.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	// Fresh context: the original one is already canceled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutting down HTTP server: %w", err)
	}

	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	s.logger.Info("server stopped")
	return firstErr
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "neuroline",
	})
}
