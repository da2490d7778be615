// ABOUTME: Store interface and data types for neuroline persistence
// ABOUTME: Defines Project, Agent, Conversation, Message and their validation rules

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist,
// or exists but fails an ownership-scoped lookup.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned when a field fails validation.
// Callers wrap it with the offending field via fmt.Errorf.
var ErrInvalidInput = errors.New("invalid input")

// ProjectType constants for the project type enum.
const (
	ProjectTypeWebApp        = "web_app"
	ProjectTypeAPI           = "api"
	ProjectTypeDataAnalysis  = "data_analysis"
	ProjectTypeDocumentation = "documentation"
	ProjectTypeDatabase      = "database"
	ProjectTypeGeneral       = "general"
)

// ProjectStatus constants for the project status enum.
const (
	ProjectStatusActive    = "active"
	ProjectStatusPaused    = "paused"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Role constants for message authorship.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Field limits shared by projects and agents.
const (
	MaxNameLength  = 100
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 32000
)

// Defaults applied when the corresponding field is left zero.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

// Project is a workspace that owns conversations.
type Project struct {
	ID           int64
	Name         string
	Description  string
	Type         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastAccessed time.Time
}

// Agent is a named model configuration applied to conversations.
// It is not owned by any project.
type Agent struct {
	ID           int64
	Name         string
	Description  string
	BaseModel    string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Conversation binds a project and an agent to an ordered message sequence.
// ProjectID and AgentID are immutable after creation.
type Conversation struct {
	ID        int64
	ProjectID int64
	AgentID   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry in a conversation's history. Immutable once created.
type Message struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	CreatedAt      time.Time
}

// ProjectUpdate lists the fields a project update may change.
// Nil fields are left untouched by the merge.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Type        *string
	Status      *string
}

// AgentUpdate lists the fields an agent update may change.
// Nil fields are left untouched by the merge.
type AgentUpdate struct {
	Name         *string
	Description  *string
	BaseModel    *string
	SystemPrompt *string
	Temperature  *float64
	MaxTokens    *int
}

// Store defines the persistence boundary for projects, agents,
// conversations and messages.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context, offset, limit int) ([]*Project, error)
	UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (*Project, error)
	DeleteProject(ctx context.Context, id int64) error
	TouchProject(ctx context.Context, id int64) error

	// Agents
	CreateAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, id int64) (*Agent, error)
	ListAgents(ctx context.Context, offset, limit int) ([]*Agent, error)
	UpdateAgent(ctx context.Context, id int64, upd AgentUpdate) (*Agent, error)
	DeleteAgent(ctx context.Context, id int64) error

	// Conversations
	CreateConversation(ctx context.Context, projectID, agentID int64) (*Conversation, error)
	GetConversation(ctx context.Context, id, projectID int64) (*Conversation, error)
	ListConversations(ctx context.Context, projectID int64) ([]*Conversation, error)

	// Messages
	AppendMessage(ctx context.Context, conversationID int64, role, content string) (*Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}

// ValidProjectType reports whether t is a known project type.
func ValidProjectType(t string) bool {
	switch t {
	case ProjectTypeWebApp, ProjectTypeAPI, ProjectTypeDataAnalysis,
		ProjectTypeDocumentation, ProjectTypeDatabase, ProjectTypeGeneral:
		return true
	}
	return false
}

// ValidProjectStatus reports whether s is a known project status.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusPaused, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

// ValidRole reports whether r is a known message role.
func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAssistant
}

// Validate checks project fields before a write. Type and status default
// to "general" and "active" when empty.
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	if len(p.Name) > MaxNameLength {
		return fmt.Errorf("%w: project name exceeds %d characters", ErrInvalidInput, MaxNameLength)
	}
	if p.Type == "" {
		p.Type = ProjectTypeGeneral
	}
	if !ValidProjectType(p.Type) {
		return fmt.Errorf("%w: unknown project type %q", ErrInvalidInput, p.Type)
	}
	if p.Status == "" {
		p.Status = ProjectStatusActive
	}
	if !ValidProjectStatus(p.Status) {
		return fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, p.Status)
	}
	return nil
}

// Validate checks agent fields before a write. Defaults for temperature
// and max_tokens are applied by the API layer, not here, so an explicit
// temperature of 0.0 survives.
func (a *Agent) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: agent name is required", ErrInvalidInput)
	}
	if len(a.Name) > MaxNameLength {
		return fmt.Errorf("%w: agent name exceeds %d characters", ErrInvalidInput, MaxNameLength)
	}
	if a.BaseModel == "" {
		return fmt.Errorf("%w: base_model is required", ErrInvalidInput)
	}
	if a.Temperature < MinTemperature || a.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature must be between %.1f and %.1f", ErrInvalidInput, MinTemperature, MaxTemperature)
	}
	if a.MaxTokens < MinMaxTokens || a.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("%w: max_tokens must be between %d and %d", ErrInvalidInput, MinMaxTokens, MaxMaxTokens)
	}
	return nil
}

// apply merges non-nil update fields onto the project. Only supplied
// fields change; the caller re-validates the result.
func (u ProjectUpdate) apply(p *Project) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Type != nil {
		p.Type = *u.Type
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
}

// apply merges non-nil update fields onto the agent.
func (u AgentUpdate) apply(a *Agent) {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Description != nil {
		a.Description = *u.Description
	}
	if u.BaseModel != nil {
		a.BaseModel = *u.BaseModel
	}
	if u.SystemPrompt != nil {
		a.SystemPrompt = *u.SystemPrompt
	}
	if u.Temperature != nil {
		a.Temperature = *u.Temperature
	}
	if u.MaxTokens != nil {
		a.MaxTokens = *u.MaxTokens
	}
}
