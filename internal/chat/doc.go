// Package chat orchestrates chat turns: persistence, history assembly,
// and streamed generation.
//
// # Turn Lifecycle
//
// Submit validates the request and resolves the project, agent, and
// conversation before any write happens; lookup failures return
// synchronously with nothing persisted. Once accepted, the user message
// is stored, the full history is loaded, and a goroutine streams the
// reply as Events: zero or more EventContent fragments followed by
// exactly one EventDone or EventError, then channel close.
//
// # Serialization
//
// Each conversation has an execution lock held from user-message persist
// through assistant-message commit, so a conversation's message log is
// always a single causal chain. Turns on different conversations run
// concurrently.
//
// # Commit Discipline
//
// The assistant reply is committed only after the stream ends cleanly.
// A stream failure or caller cancellation leaves the user message in
// place and persists nothing else. A commit failure after a successful
// stream surfaces as an EventError wrapping ErrStorage so callers can
// tell "generation failed" from "generation succeeded but history is
// now inconsistent".
package chat
