// ABOUTME: HTTP handlers proxying model management to the generation backend
// ABOUTME: Listing, pulling (with SSE progress), and deleting installed models

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smartfactory/neuroline/internal/ollama"
)

// ModelResponse is the JSON shape for an installed model.
type ModelResponse struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// PullRequest is the JSON body for POST /api/models/pull.
type PullRequest struct {
	Name string `json:"name"`
}

// sendBackendError maps generation backend errors onto HTTP statuses.
func (s *Server) sendBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ollama.ErrUnavailable):
		s.sendJSONError(w, http.StatusServiceUnavailable, "generation backend unavailable")
	case errors.Is(err, ollama.ErrStatus):
		s.sendJSONError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("backend operation failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleListModels handles GET /api/models requests.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.ollama.ListModels(r.Context())
	if err != nil {
		s.sendBackendError(w, err)
		return
	}

	response := make([]ModelResponse, 0, len(models))
	for _, m := range models {
		response = append(response, ModelResponse{
			Name:       m.Name,
			Size:       m.Size,
			ModifiedAt: m.ModifiedAt.Format(timeFormat),
		})
	}
	s.sendJSON(w, http.StatusOK, response)
}

// handlePullModel handles POST /api/models/pull requests.
// Download progress streams back as SSE `progress` events, ending with
// `done` or `error`.
func (s *Server) handlePullModel(w http.ResponseWriter, r *http.Request) {
	var req PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		s.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	progress, err := s.ollama.Pull(r.Context(), req.Name)
	if err != nil {
		s.sendBackendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for p := range progress {
		if p.Err != nil {
			s.writeSSEEvent(w, "error", map[string]string{"error": p.Err.Error()})
			flusher.Flush()
			return
		}
		s.writeSSEEvent(w, "progress", p)
		flusher.Flush()
	}

	s.writeSSEEvent(w, "done", map[string]string{"name": req.Name})
	flusher.Flush()
}

// handleDeleteModel handles DELETE /api/models/{name} requests.
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		s.sendJSONError(w, http.StatusBadRequest, "model name is required")
		return
	}

	if err := s.ollama.DeleteModel(r.Context(), name); err != nil {
		s.sendBackendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
