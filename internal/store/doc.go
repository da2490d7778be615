// Package store provides persistent storage for neuroline using SQLite.
//
// # Architecture
//
// The Store interface covers all persistence operations; SQLiteStore
// implements it on a single SQLite database file. Callers depend on the
// interface so tests can substitute wrappers.
//
// # Data Models
//
//   - Project: Workspace grouping conversations, with type and status metadata
//   - Agent: Named model configuration (base model, system prompt, sampling)
//   - Conversation: Message thread owned by one project, driven by one agent
//   - Message: Immutable chat message (user or assistant) within a conversation
//
// # Validation
//
// Writes validate before touching the database: names are required and
// capped at 100 characters, temperature must lie in [0.0, 2.0], max_tokens
// in [1, 32000], and message roles are restricted to user/assistant.
// Violations wrap ErrInvalidInput; missing records wrap ErrNotFound.
//
// # Ownership
//
// Conversations are scoped to their project: GetConversation takes both
// ids and reports ErrNotFound when the conversation exists under a
// different project. Deleting a project cascades to its conversations and
// their messages in a single transaction. Agents are standalone and
// survive project deletion.
//
// # Timestamps
//
// All timestamps are stored as RFC 3339 text in UTC. Message ordering is
// by created_at with id as tiebreaker, so the sequence is total and
// stable under equal timestamps.
package store
