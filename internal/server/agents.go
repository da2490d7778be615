// ABOUTME: HTTP handlers for agent CRUD
// ABOUTME: Agents are named model configurations with sampling defaults

package server

import (
	"encoding/json"
	"net/http"

	"github.com/smartfactory/neuroline/internal/store"
)

// AgentRequest is the JSON body for creating an agent. Temperature and
// MaxTokens are pointers so "omitted" and "explicit zero" stay distinct;
// omitted fields get the service defaults.
type AgentRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	BaseModel    string   `json:"base_model"`
	SystemPrompt string   `json:"system_prompt"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    *int     `json:"max_tokens"`
}

// AgentUpdateRequest is the JSON body for updating an agent.
// Omitted fields are left unchanged.
type AgentUpdateRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	BaseModel    *string  `json:"base_model"`
	SystemPrompt *string  `json:"system_prompt"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    *int     `json:"max_tokens"`
}

// AgentResponse is the JSON shape for an agent.
type AgentResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	BaseModel    string  `json:"base_model"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func agentResponse(a *store.Agent) AgentResponse {
	return AgentResponse{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		BaseModel:    a.BaseModel,
		SystemPrompt: a.SystemPrompt,
		Temperature:  a.Temperature,
		MaxTokens:    a.MaxTokens,
		CreatedAt:    a.CreatedAt.Format(timeFormat),
		UpdatedAt:    a.UpdatedAt.Format(timeFormat),
	}
}

// handleCreateAgent handles POST /api/agents requests.
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	a := &store.Agent{
		Name:         req.Name,
		Description:  req.Description,
		BaseModel:    req.BaseModel,
		SystemPrompt: req.SystemPrompt,
		Temperature:  store.DefaultTemperature,
		MaxTokens:    store.DefaultMaxTokens,
	}
	if req.Temperature != nil {
		a.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		a.MaxTokens = *req.MaxTokens
	}

	if err := s.store.CreateAgent(r.Context(), a); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, agentResponse(a))
}

// handleListAgents handles GET /api/agents requests.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	offset, limit := parseOffsetLimit(r)

	agents, err := s.store.ListAgents(r.Context(), offset, limit)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	response := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		response = append(response, agentResponse(a))
	}
	s.sendJSON(w, http.StatusOK, response)
}

// handleGetAgent handles GET /api/agents/{id} requests.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := s.store.GetAgent(r.Context(), id)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, agentResponse(a))
}

// handleUpdateAgent handles PUT /api/agents/{id} requests.
// Only fields present in the body change.
func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AgentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	a, err := s.store.UpdateAgent(r.Context(), id, store.AgentUpdate{
		Name:         req.Name,
		Description:  req.Description,
		BaseModel:    req.BaseModel,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, agentResponse(a))
}

// handleDeleteAgent handles DELETE /api/agents/{id} requests.
func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.DeleteAgent(r.Context(), id); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
