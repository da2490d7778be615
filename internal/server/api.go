// ABOUTME: Shared HTTP helpers and the chat streaming endpoint
// ABOUTME: Maps chat service events onto SSE frames with JSON payloads

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/smartfactory/neuroline/internal/chat"
	"github.com/smartfactory/neuroline/internal/ollama"
	"github.com/smartfactory/neuroline/internal/store"
)

// timeFormat is the wire format for all timestamps.
const timeFormat = time.RFC3339

// ChatStreamRequest is the JSON body for POST /api/chat/stream.
// ConversationID omitted or zero starts a new conversation.
type ChatStreamRequest struct {
	Message        string `json:"message"`
	ProjectID      int64  `json:"project_id"`
	AgentID        int64  `json:"agent_id"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

// ConversationResponse is the JSON shape for a conversation.
type ConversationResponse struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	AgentID   int64  `json:"agent_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageResponse is the JSON shape for a message.
type MessageResponse struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendJSON writes a JSON response with the given status.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendStoreError maps store errors onto HTTP statuses.
func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalidInput):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("store operation failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
// The payload is always JSON-marshaled, so fragment text containing
// newlines or quotes cannot break the framing.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// pathID parses a numeric path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// parseOffsetLimit reads offset/limit query parameters with defaults.
func parseOffsetLimit(r *http.Request) (offset, limit int) {
	offset = 0
	limit = 100
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return offset, limit
}

// handleChatStream handles POST /api/chat/stream requests.
// Validation and lookup failures return discrete JSON errors; once the
// turn is accepted the response switches to SSE. The first event is
// always `conversation` with the resolved id, followed by zero or more
// `content` events and exactly one terminal `done` or `error`.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Check streaming support before doing any work (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	turn, err := s.chat.Submit(r.Context(), chat.TurnRequest{
		ProjectID:      req.ProjectID,
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Resolved conversation id first so the client can track the thread
	s.writeSSEEvent(w, "conversation", map[string]int64{"id": turn.ConversationID})
	flusher.Flush()

	for event := range turn.Events {
		switch event.Type {
		case chat.EventContent:
			s.writeSSEEvent(w, "content", map[string]string{"text": event.Content})
		case chat.EventDone:
			s.writeSSEEvent(w, "done", map[string]int64{"conversation_id": turn.ConversationID})
		case chat.EventError:
			s.writeSSEEvent(w, "error", map[string]string{"error": turnErrorMessage(event.Err)})
		}
		flusher.Flush()
	}
}

// turnErrorMessage converts a turn failure into a client-safe message.
func turnErrorMessage(err error) string {
	switch {
	case errors.Is(err, ollama.ErrTimeout):
		return "generation timed out"
	case errors.Is(err, ollama.ErrUnavailable):
		return "generation backend unavailable"
	case errors.Is(err, chat.ErrStorage):
		return "reply generated but could not be saved; conversation history may be incomplete"
	case errors.Is(err, ollama.ErrStatus):
		return "generation backend error"
	default:
		return "generation failed"
	}
}

// handleListConversations handles GET /api/chat/conversations/{project_id}.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "project_id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Listing against a missing project is a 404, not an empty list
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.sendStoreError(w, err)
		return
	}

	convs, err := s.store.ListConversations(r.Context(), projectID)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	response := make([]ConversationResponse, 0, len(convs))
	for _, c := range convs {
		response = append(response, conversationResponse(c))
	}
	s.sendJSON(w, http.StatusOK, response)
}

// handleListMessages handles GET /api/chat/messages/{conversation_id}.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "conversation_id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), conversationID)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	response := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, MessageResponse{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Role:           m.Role,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt.Format(timeFormat),
		})
	}
	s.sendJSON(w, http.StatusOK, response)
}

func conversationResponse(c *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		AgentID:   c.AgentID,
		CreatedAt: c.CreatedAt.Format(timeFormat),
		UpdatedAt: c.UpdatedAt.Format(timeFormat),
	}
}
