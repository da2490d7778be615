// Package server exposes the neuroline HTTP API.
//
// # Routes
//
// Chat:
//
//	POST /api/chat/stream                         Submit a turn, stream the reply (SSE)
//	GET  /api/chat/conversations/{project_id}     List a project's conversations
//	GET  /api/chat/messages/{conversation_id}     List a conversation's messages
//
// Projects:
//
//	POST   /api/projects                  Create
//	GET    /api/projects                  List (offset/limit)
//	GET    /api/projects/{id}             Get
//	PUT    /api/projects/{id}             Partial update
//	DELETE /api/projects/{id}             Delete (cascades)
//	PATCH  /api/projects/{id}/access      Bump last_accessed
//	GET    /api/projects/metadata/types     Type metadata
//	GET    /api/projects/metadata/statuses  Status metadata
//
// Agents:
//
//	POST   /api/agents          Create
//	GET    /api/agents          List (offset/limit)
//	GET    /api/agents/{id}     Get
//	PUT    /api/agents/{id}     Partial update
//	DELETE /api/agents/{id}     Delete
//
// Models (proxied to the generation backend):
//
//	GET    /api/models            List installed models
//	POST   /api/models/pull       Download a model (SSE progress)
//	DELETE /api/models/{name}     Remove a model
//
// # Streaming
//
// POST /api/chat/stream answers with discrete JSON errors (400/404/500)
// when validation or lookup fails, before anything streams. Accepted
// turns switch to text/event-stream: a `conversation` event with the
// resolved id comes first, then `content` events as fragments arrive,
// then exactly one `done` or `error`. All event payloads are JSON, so
// fragment text cannot corrupt the framing.
package server
