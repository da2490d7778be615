// Package ollama is an HTTP client for a local Ollama-compatible
// generation backend.
//
// # Streaming
//
// StreamChat posts to /api/chat with stream enabled and reads the
// newline-delimited JSON response incrementally, forwarding each
// message.content fragment on a channel as it arrives. Malformed or
// unexpected lines are skipped; a well-formed error line or a read
// failure terminates the stream with an in-band error.
//
// # Failure Classification
//
//   - ErrUnavailable: the backend could not be reached
//   - ErrStatus: the backend answered with an error status or error line
//   - ErrTimeout: the turn exceeded the configured deadline
//
// Errors before any output (connection, status) are returned
// synchronously from StreamChat; errors after streaming begins arrive as
// the final Chunk.
//
// # Model Management
//
// ListModels, Pull, and DeleteModel proxy the backend's /api/tags,
// /api/pull, and /api/delete endpoints. Pull streams download progress
// on a channel the same way StreamChat streams content.
package ollama
