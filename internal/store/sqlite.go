// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides project/agent/conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas go on the DSN so every connection in the database/sql pool
	// gets them. A plain db.Exec only configures one pooled connection:
	// foreign_keys would silently stay off on the rest, and without a
	// busy_timeout concurrent writers fail immediately with SQLITE_BUSY
	// instead of waiting for the lock. WAL mode persists in the database
	// file but is harmless to re-apply per connection.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Each in-memory connection is its own database, so the pool
		// must collapse to a single connection.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'general',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			last_accessed TEXT NOT NULL,

			CHECK (type IN ('web_app', 'api', 'data_analysis', 'documentation', 'database', 'general')),
			CHECK (status IN ('active', 'paused', 'completed', 'archived'))
		);

		CREATE TABLE IF NOT EXISTS agents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			base_model TEXT NOT NULL,
			system_prompt TEXT NOT NULL DEFAULT '',
			temperature REAL NOT NULL DEFAULT 0.7,
			max_tokens INTEGER NOT NULL DEFAULT 2048,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id),
			FOREIGN KEY (agent_id) REFERENCES agents(id)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_project
			ON conversations(project_id);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),

			CHECK (role IN ('user', 'assistant'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string // Query to check if migration is needed
		apply  string // Query to apply the migration
		table  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('projects') WHERE name = 'last_accessed'`,
			apply:  `ALTER TABLE projects ADD COLUMN last_accessed TEXT NOT NULL DEFAULT ''`,
			table:  "projects",
			column: "last_accessed",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('projects') WHERE name = 'status'`,
			apply:  `ALTER TABLE projects ADD COLUMN status TEXT NOT NULL DEFAULT 'active'`,
			table:  "projects",
			column: "status",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('agents') WHERE name = 'system_prompt'`,
			apply:  `ALTER TABLE agents ADD COLUMN system_prompt TEXT NOT NULL DEFAULT ''`,
			table:  "agents",
			column: "system_prompt",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// now returns the current time in UTC, the store's canonical zone.
func now() time.Time {
	return time.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// clampLimit normalizes offset/limit for list queries.
func clampLimit(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return offset, limit
}

// CreateProject inserts a new project and fills in its generated ID
// and timestamps.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	if err := p.Validate(); err != nil {
		return err
	}

	ts := now()
	p.CreatedAt = ts
	p.UpdatedAt = ts
	p.LastAccessed = ts

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (name, description, type, status, created_at, updated_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.Description, p.Type, p.Status, formatTime(ts), formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}

	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting project id: %w", err)
	}

	s.logger.Debug("created project", "id", p.ID, "name", p.Name)
	return nil
}

func (s *SQLiteStore) scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var createdAt, updatedAt, lastAccessed string

	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Type, &p.Status, &createdAt, &updatedAt, &lastAccessed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if p.LastAccessed, err = parseTime(lastAccessed); err != nil {
		return nil, fmt.Errorf("parsing last_accessed: %w", err)
	}
	return &p, nil
}

// GetProject retrieves a project by ID.
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, type, status, created_at, updated_at, last_accessed
		FROM projects
		WHERE id = ?
	`, id)
	return s.scanProject(row)
}

// ListProjects returns projects ordered by creation, paged by offset/limit.
func (s *SQLiteStore) ListProjects(ctx context.Context, offset, limit int) ([]*Project, error) {
	offset, limit = clampLimit(offset, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, type, status, created_at, updated_at, last_accessed
		FROM projects
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var createdAt, updatedAt, lastAccessed string

		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Type, &p.Status, &createdAt, &updatedAt, &lastAccessed); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		if p.LastAccessed, err = parseTime(lastAccessed); err != nil {
			return nil, fmt.Errorf("parsing last_accessed: %w", err)
		}
		projects = append(projects, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

// UpdateProject merges the supplied fields onto the stored project.
// Only non-nil fields change. Returns the updated project.
func (s *SQLiteStore) UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (*Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	upd.apply(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, description = ?, type = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Description, p.Type, p.Status, formatTime(p.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}

	s.logger.Debug("updated project", "id", id)
	return p, nil
}

// DeleteProject removes a project together with its conversations and
// their messages. The cascade is explicit and runs in one transaction,
// deleting in dependency order: messages, conversations, project.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("checking project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM messages
		WHERE conversation_id IN (SELECT id FROM conversations WHERE project_id = ?)
	`, id); err != nil {
		return fmt.Errorf("deleting project messages: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("deleting project conversations: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	s.logger.Debug("deleted project", "id", id)
	return nil
}

// TouchProject updates the project's last_accessed timestamp.
func (s *SQLiteStore) TouchProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET last_accessed = ? WHERE id = ?
	`, formatTime(now()), id)
	if err != nil {
		return fmt.Errorf("touching project: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAgent inserts a new agent and fills in its generated ID
// and timestamps.
func (s *SQLiteStore) CreateAgent(ctx context.Context, a *Agent) error {
	if err := a.Validate(); err != nil {
		return err
	}

	ts := now()
	a.CreatedAt = ts
	a.UpdatedAt = ts

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (name, description, base_model, system_prompt, temperature, max_tokens, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Name, a.Description, a.BaseModel, a.SystemPrompt, a.Temperature, a.MaxTokens, formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}

	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting agent id: %w", err)
	}

	s.logger.Debug("created agent", "id", a.ID, "name", a.Name, "base_model", a.BaseModel)
	return nil
}

func (s *SQLiteStore) scanAgent(row *sql.Row) (*Agent, error) {
	var a Agent
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.BaseModel, &a.SystemPrompt, &a.Temperature, &a.MaxTokens, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}

	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}

// GetAgent retrieves an agent by ID.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) GetAgent(ctx context.Context, id int64) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, base_model, system_prompt, temperature, max_tokens, created_at, updated_at
		FROM agents
		WHERE id = ?
	`, id)
	return s.scanAgent(row)
}

// ListAgents returns agents ordered by creation, paged by offset/limit.
func (s *SQLiteStore) ListAgents(ctx context.Context, offset, limit int) ([]*Agent, error) {
	offset, limit = clampLimit(offset, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, base_model, system_prompt, temperature, max_tokens, created_at, updated_at
		FROM agents
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		var a Agent
		var createdAt, updatedAt string

		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.BaseModel, &a.SystemPrompt, &a.Temperature, &a.MaxTokens, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		agents = append(agents, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent rows: %w", err)
	}
	return agents, nil
}

// UpdateAgent merges the supplied fields onto the stored agent.
// Only non-nil fields change. Returns the updated agent.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, id int64, upd AgentUpdate) (*Agent, error) {
	a, err := s.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}

	upd.apply(a)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.UpdatedAt = now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE agents
		SET name = ?, description = ?, base_model = ?, system_prompt = ?, temperature = ?, max_tokens = ?, updated_at = ?
		WHERE id = ?
	`, a.Name, a.Description, a.BaseModel, a.SystemPrompt, a.Temperature, a.MaxTokens, formatTime(a.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("updating agent: %w", err)
	}

	s.logger.Debug("updated agent", "id", id)
	return a, nil
}

// DeleteAgent removes an agent.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted agent", "id", id)
	return nil
}

// CreateConversation creates a conversation bound to a project and agent.
// Returns ErrNotFound if either referenced record is missing.
func (s *SQLiteStore) CreateConversation(ctx context.Context, projectID, agentID int64) (*Conversation, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}

	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (project_id, agent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, projectID, agentID, formatTime(ts), formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting conversation id: %w", err)
	}

	s.logger.Debug("created conversation", "id", id, "project_id", projectID, "agent_id", agentID)
	return &Conversation{
		ID:        id,
		ProjectID: projectID,
		AgentID:   agentID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

// GetConversation retrieves a conversation scoped to its owning project.
// A conversation that exists under a different project is ErrNotFound:
// the ownership check is not separable from the existence check.
func (s *SQLiteStore) GetConversation(ctx context.Context, id, projectID int64) (*Conversation, error) {
	var c Conversation
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, agent_id, created_at, updated_at
		FROM conversations
		WHERE id = ? AND project_id = ?
	`, id, projectID).Scan(&c.ID, &c.ProjectID, &c.AgentID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}

// ListConversations returns all conversations belonging to a project.
func (s *SQLiteStore) ListConversations(ctx context.Context, projectID int64) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, agent_id, created_at, updated_at
		FROM conversations
		WHERE project_id = ?
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		var c Conversation
		var createdAt, updatedAt string

		if err := rows.Scan(&c.ID, &c.ProjectID, &c.AgentID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		conversations = append(conversations, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return conversations, nil
}

// AppendMessage adds a message to a conversation and bumps the
// conversation's updated_at. Returns ErrNotFound if the conversation
// doesn't exist, ErrInvalidInput for a bad role or empty content.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID int64, role, content string) (*Message, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}

	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, role, content, formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting message id: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, formatTime(ts), conversationID); err != nil {
		return nil, fmt.Errorf("bumping conversation updated_at: %w", err)
	}

	s.logger.Debug("appended message", "id", id, "conversation_id", conversationID, "role", role)
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      ts,
	}, nil
}

// ListMessages returns a conversation's messages in chronological order,
// ties broken by id so the ordering is total and stable.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID int64) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var createdAt string

		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
