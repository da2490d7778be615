// ABOUTME: Chat turn orchestration - persistence, history, and streaming
// ABOUTME: Serializes each conversation so its message log stays a single causal chain

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/smartfactory/neuroline/internal/ollama"
	"github.com/smartfactory/neuroline/internal/store"
)

// ErrStorage marks a failure to persist the assistant reply after the
// stream already completed. The generated text is lost; callers should
// report it distinctly from generation failures.
var ErrStorage = errors.New("storing assistant reply failed")

// Generator produces streamed completions. *ollama.Client satisfies it;
// tests inject fakes.
type Generator interface {
	StreamChat(ctx context.Context, req ollama.ChatRequest) (<-chan ollama.Chunk, error)
}

// EventType classifies turn events.
type EventType string

const (
	// EventContent carries one generated fragment.
	EventContent EventType = "content"
	// EventDone signals a clean end of turn; the assistant reply is saved.
	EventDone EventType = "done"
	// EventError signals the turn failed; no assistant reply is saved
	// unless Err wraps ErrStorage, in which case the reply was generated
	// but could not be stored.
	EventError EventType = "error"
)

// Event is one unit of turn output, delivered in generation order.
// Exactly one EventDone or EventError terminates the stream.
type Event struct {
	Type    EventType
	Content string
	Err     error
}

// TurnRequest describes one user turn. ConversationID zero means
// start a new conversation.
type TurnRequest struct {
	ProjectID      int64
	AgentID        int64
	ConversationID int64
	Message        string
}

// Turn is an accepted turn. ConversationID is resolved (it differs
// from the request when a conversation was created); Events delivers
// the streamed output and closes after the terminal event.
type Turn struct {
	ConversationID int64
	Events         <-chan Event
}

// Service executes chat turns against a store and a generator.
type Service struct {
	store     store.Store
	generator Generator
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[int64]*convLock
}

// convLock serializes one conversation's turns. holders counts the
// owner plus anyone waiting, so the map entry can be dropped once the
// last holder releases it instead of accumulating for every
// conversation ever touched.
type convLock struct {
	mu      sync.Mutex
	holders int
}

// NewService creates a chat service.
func NewService(st store.Store, gen Generator) *Service {
	return &Service{
		store:     st,
		generator: gen,
		logger:    slog.Default().With("component", "chat"),
		locks:     make(map[int64]*convLock),
	}
}

// lockConversation blocks until the caller owns the conversation's turn lock.
func (s *Service) lockConversation(id int64) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &convLock{}
		s.locks[id] = l
	}
	l.holders++
	s.mu.Unlock()

	l.mu.Lock()
}

// unlockConversation releases the turn lock, removing the map entry
// when no other turn holds or waits on it.
func (s *Service) unlockConversation(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.locks[id]
	l.holders--
	if l.holders == 0 {
		delete(s.locks, id)
	}
	l.mu.Unlock()
}

// Submit validates and records a user turn, then starts streaming the
// reply. Validation and lookup failures return synchronously before
// anything is written; once a Turn is returned, the user message is
// persisted and events will follow on the channel.
func (s *Service) Submit(ctx context.Context, req TurnRequest) (*Turn, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", store.ErrInvalidInput)
	}

	requestID := uuid.New().String()
	logger := s.logger.With("request_id", requestID, "project_id", req.ProjectID, "agent_id", req.AgentID)

	project, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("resolving project %d: %w", req.ProjectID, err)
	}

	agent, err := s.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("resolving agent %d: %w", req.AgentID, err)
	}

	var conv *store.Conversation
	if req.ConversationID != 0 {
		conv, err = s.store.GetConversation(ctx, req.ConversationID, req.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("resolving conversation %d: %w", req.ConversationID, err)
		}
	} else {
		conv, err = s.store.CreateConversation(ctx, req.ProjectID, req.AgentID)
		if err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		logger.Debug("created conversation", "conversation_id", conv.ID)
	}
	logger = logger.With("conversation_id", conv.ID)

	// One turn at a time per conversation: the user message, the history
	// snapshot, and the assistant reply commit as a single causal chain.
	s.lockConversation(conv.ID)

	if _, err := s.store.AppendMessage(ctx, conv.ID, store.RoleUser, req.Message); err != nil {
		s.unlockConversation(conv.ID)
		return nil, fmt.Errorf("saving user message: %w", err)
	}

	history, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		s.unlockConversation(conv.ID)
		return nil, fmt.Errorf("loading history: %w", err)
	}

	if err := s.store.TouchProject(ctx, project.ID); err != nil {
		logger.Warn("failed to touch project", "error", err)
	}

	messages := make([]ollama.Message, len(history))
	for i, m := range history {
		messages[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	events := make(chan Event)
	go s.stream(ctx, logger, conv.ID, agent, messages, events)

	return &Turn{ConversationID: conv.ID, Events: events}, nil
}

// stream runs the generation half of a turn. It forwards fragments in
// receipt order, accumulates the full reply, and commits it only on a
// clean end of stream.
func (s *Service) stream(ctx context.Context, logger *slog.Logger, conversationID int64, agent *store.Agent, messages []ollama.Message, events chan<- Event) {
	defer s.unlockConversation(conversationID)
	defer close(events)

	chunks, err := s.generator.StreamChat(ctx, ollama.ChatRequest{
		Model:        agent.BaseModel,
		SystemPrompt: agent.SystemPrompt,
		Messages:     messages,
		Temperature:  agent.Temperature,
		MaxTokens:    agent.MaxTokens,
	})
	if err != nil {
		logger.Error("generation request failed", "error", err)
		s.emit(ctx, events, Event{Type: EventError, Err: err})
		return
	}

	var reply strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			logger.Error("generation stream failed", "error", chunk.Err, "partial_len", reply.Len())
			s.emit(ctx, events, Event{Type: EventError, Err: chunk.Err})
			return
		}
		reply.WriteString(chunk.Content)
		if !s.emit(ctx, events, Event{Type: EventContent, Content: chunk.Content}) {
			// Caller went away mid-stream; abandon without committing.
			logger.Info("turn abandoned", "partial_len", reply.Len())
			return
		}
	}

	if ctx.Err() != nil {
		logger.Info("turn canceled before commit", "partial_len", reply.Len())
		return
	}

	if reply.Len() == 0 {
		// The backend closed cleanly without producing anything. Messages
		// are never empty, so there is nothing to commit.
		logger.Warn("generation produced no content")
		s.emit(ctx, events, Event{Type: EventDone})
		return
	}

	if _, err := s.store.AppendMessage(ctx, conversationID, store.RoleAssistant, reply.String()); err != nil {
		logger.Error("failed to store assistant reply", "error", err, "reply_len", reply.Len())
		s.emit(ctx, events, Event{Type: EventError, Err: fmt.Errorf("%w: %v", ErrStorage, err)})
		return
	}

	logger.Debug("turn complete", "reply_len", reply.Len())
	s.emit(ctx, events, Event{Type: EventDone})
}

// emit delivers an event unless the caller has gone away.
func (s *Service) emit(ctx context.Context, events chan<- Event, e Event) bool {
	select {
	case events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
