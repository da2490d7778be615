// ABOUTME: HTTP handlers for project CRUD and project metadata
// ABOUTME: Projects group conversations and carry type/status/last-accessed state

package server

import (
	"encoding/json"
	"net/http"

	"github.com/smartfactory/neuroline/internal/store"
)

// ProjectRequest is the JSON body for creating a project.
type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Status      string `json:"status"`
}

// ProjectUpdateRequest is the JSON body for updating a project.
// Omitted fields are left unchanged.
type ProjectUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
}

// ProjectResponse is the JSON shape for a project.
type ProjectResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	LastAccessed string `json:"last_accessed"`
}

func projectResponse(p *store.Project) ProjectResponse {
	return ProjectResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Type:         p.Type,
		Status:       p.Status,
		CreatedAt:    p.CreatedAt.Format(timeFormat),
		UpdatedAt:    p.UpdatedAt.Format(timeFormat),
		LastAccessed: p.LastAccessed.Format(timeFormat),
	}
}

// handleCreateProject handles POST /api/projects requests.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p := &store.Project{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Status:      req.Status,
	}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		s.sendStoreError(w, err)
		return
	}

	s.sendJSON(w, http.StatusCreated, projectResponse(p))
}

// handleListProjects handles GET /api/projects requests.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	offset, limit := parseOffsetLimit(r)

	projects, err := s.store.ListProjects(r.Context(), offset, limit)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	response := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		response = append(response, projectResponse(p))
	}
	s.sendJSON(w, http.StatusOK, response)
}

// handleGetProject handles GET /api/projects/{id} requests.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, projectResponse(p))
}

// handleUpdateProject handles PUT /api/projects/{id} requests.
// Only fields present in the body change.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ProjectUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.store.UpdateProject(r.Context(), id, store.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Status:      req.Status,
	})
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, projectResponse(p))
}

// handleDeleteProject handles DELETE /api/projects/{id} requests.
// Deletion cascades to the project's conversations and messages.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleTouchProject handles PATCH /api/projects/{id}/access requests.
// Clients call this when a project is opened so recency sorting works.
func (s *Server) handleTouchProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.TouchProject(r.Context(), id); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProjectTypes handles GET /api/projects/metadata/types requests.
func (s *Server) handleProjectTypes(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, store.ProjectTypes())
}

// handleProjectStatuses handles GET /api/projects/metadata/statuses requests.
func (s *Server) handleProjectStatuses(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, store.ProjectStatuses())
}
