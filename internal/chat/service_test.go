// ABOUTME: Tests for chat turn orchestration
// ABOUTME: Uses a fake generator so streaming behavior is fully scripted

package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartfactory/neuroline/internal/ollama"
	"github.com/smartfactory/neuroline/internal/store"
)

// fakeGenerator scripts a stream: fragments delivered in order, then an
// optional failure, then close.
type fakeGenerator struct {
	mu        sync.Mutex
	fragments []string
	streamErr error // delivered in-band after fragments
	callErr   error // returned synchronously
	lastReq   ollama.ChatRequest
}

func (f *fakeGenerator) StreamChat(ctx context.Context, req ollama.ChatRequest) (<-chan ollama.Chunk, error) {
	f.mu.Lock()
	f.lastReq = req
	fragments := f.fragments
	streamErr := f.streamErr
	callErr := f.callErr
	f.mu.Unlock()

	if callErr != nil {
		return nil, callErr
	}

	chunks := make(chan ollama.Chunk)
	go func() {
		defer close(chunks)
		for _, fr := range fragments {
			select {
			case chunks <- ollama.Chunk{Content: fr}:
			case <-ctx.Done():
				return
			}
		}
		if streamErr != nil {
			select {
			case chunks <- ollama.Chunk{Err: streamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return chunks, nil
}

func (f *fakeGenerator) request() ollama.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func setupService(t *testing.T, gen Generator) (*Service, *store.SQLiteStore, *store.Project, *store.Agent) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	p := &store.Project{Name: "Test Project"}
	require.NoError(t, st.CreateProject(ctx, p))

	a := &store.Agent{
		Name:         "assistant",
		BaseModel:    "llama3.2",
		SystemPrompt: "Be helpful.",
		Temperature:  0.7,
		MaxTokens:    2048,
	}
	require.NoError(t, st.CreateAgent(ctx, a))

	return NewService(st, gen), st, p, a
}

// drain collects all events from a turn.
func drain(t *testing.T, turn *Turn) []Event {
	t.Helper()

	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-turn.Events:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("timed out draining turn events")
		}
	}
}

func TestSubmitNewConversation(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"Hel", "lo", "!"}}
	svc, st, p, a := setupService(t, gen)
	ctx := context.Background()

	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "Hello"})
	require.NoError(t, err)
	assert.NotZero(t, turn.ConversationID)

	events := drain(t, turn)
	require.NotEmpty(t, events)

	// Zero or more content events then exactly one done
	var content string
	for _, e := range events[:len(events)-1] {
		require.Equal(t, EventContent, e.Type)
		content += e.Content
	}
	assert.Equal(t, EventDone, events[len(events)-1].Type)
	assert.Equal(t, "Hello!", content)

	// Store ends with [user, assistant] in order
	msgs, err := st.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello!", msgs[1].Content)
}

func TestSubmitPassesAgentConfig(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"ok"}}
	svc, _, p, a := setupService(t, gen)

	turn, err := svc.Submit(context.Background(), TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "hi"})
	require.NoError(t, err)
	drain(t, turn)

	req := gen.request()
	assert.Equal(t, "llama3.2", req.Model)
	assert.Equal(t, "Be helpful.", req.SystemPrompt)
	assert.InDelta(t, 0.7, req.Temperature, 0.0001)
	assert.Equal(t, 2048, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hi", req.Messages[0].Content)
}

func TestSubmitContinuesConversationWithHistory(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"first answer"}}
	svc, _, p, a := setupService(t, gen)
	ctx := context.Background()

	turn1, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "q1"})
	require.NoError(t, err)
	drain(t, turn1)

	gen.mu.Lock()
	gen.fragments = []string{"second answer"}
	gen.mu.Unlock()

	turn2, err := svc.Submit(ctx, TurnRequest{
		ProjectID:      p.ID,
		AgentID:        a.ID,
		ConversationID: turn1.ConversationID,
		Message:        "q2",
	})
	require.NoError(t, err)
	assert.Equal(t, turn1.ConversationID, turn2.ConversationID)
	drain(t, turn2)

	// The generator saw the full history including the new user message
	req := gen.request()
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "q1", req.Messages[0].Content)
	assert.Equal(t, "first answer", req.Messages[1].Content)
	assert.Equal(t, "q2", req.Messages[2].Content)
}

func TestSubmitValidation(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _, p, a := setupService(t, gen)
	ctx := context.Background()

	_, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: ""})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "   "})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.Submit(ctx, TurnRequest{ProjectID: 9999, AgentID: a.ID, Message: "hi"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: 9999, Message: "hi"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, ConversationID: 9999, Message: "hi"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitFailureLeavesStoreUntouched(t *testing.T) {
	gen := &fakeGenerator{}
	svc, st, p, _ := setupService(t, gen)
	ctx := context.Background()

	_, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: 9999, Message: "hi"})
	require.ErrorIs(t, err, store.ErrNotFound)

	convs, err := st.ListConversations(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestConversationOwnershipEnforced(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"ok"}}
	svc, st, p, a := setupService(t, gen)
	ctx := context.Background()

	other := &store.Project{Name: "Other"}
	require.NoError(t, st.CreateProject(ctx, other))

	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "hi"})
	require.NoError(t, err)
	drain(t, turn)

	// Someone else's project can't continue this conversation
	_, err = svc.Submit(ctx, TurnRequest{
		ProjectID:      other.ID,
		AgentID:        a.ID,
		ConversationID: turn.ConversationID,
		Message:        "hijack",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStreamFailureDoesNotPersistAssistant(t *testing.T) {
	gen := &fakeGenerator{
		fragments: []string{"partial ", "output"},
		streamErr: fmt.Errorf("%w: connection reset", ollama.ErrStatus),
	}
	svc, st, p, a := setupService(t, gen)
	ctx := context.Background()

	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "hi"})
	require.NoError(t, err)

	events := drain(t, turn)
	require.NotEmpty(t, events)

	// Exactly one terminal event, and it's an error
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.ErrorIs(t, last.Err, ollama.ErrStatus)
	for _, e := range events[:len(events)-1] {
		assert.Equal(t, EventContent, e.Type)
	}

	// User message persisted, assistant message not
	msgs, err := st.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
}

func TestGeneratorCallFailure(t *testing.T) {
	gen := &fakeGenerator{callErr: fmt.Errorf("%w: dial tcp refused", ollama.ErrUnavailable)}
	svc, st, p, a := setupService(t, gen)
	ctx := context.Background()

	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "hi"})
	require.NoError(t, err)

	events := drain(t, turn)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.ErrorIs(t, events[0].Err, ollama.ErrUnavailable)

	// The user message survives even though generation never started
	msgs, err := st.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestEmptyStreamCommitsNothing(t *testing.T) {
	gen := &fakeGenerator{fragments: nil}
	svc, st, p, a := setupService(t, gen)
	ctx := context.Background()

	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "hi"})
	require.NoError(t, err)

	events := drain(t, turn)
	require.Len(t, events, 1)
	assert.Equal(t, EventDone, events[0].Type)

	msgs, err := st.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
}

func TestCancellationAbandonsCommit(t *testing.T) {
	gen := &blockedGenerator{started: make(chan struct{})}
	svc, st, p, a := setupService(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "hi"})
	require.NoError(t, err)

	// First fragment arrives, then the caller disconnects
	e := <-turn.Events
	require.Equal(t, EventContent, e.Type)
	<-gen.started
	cancel()

	// Channel closes without a terminal event reaching us
	for range turn.Events {
	}

	// Give the goroutine a beat to finish, then check nothing was committed
	require.Eventually(t, func() bool {
		msgs, err := st.ListMessages(context.Background(), turn.ConversationID)
		require.NoError(t, err)
		return len(msgs) == 1 && msgs[0].Role == store.RoleUser
	}, 2*time.Second, 10*time.Millisecond)
}

// blockedGenerator emits one fragment then blocks until cancellation.
type blockedGenerator struct {
	started chan struct{}
}

func (b *blockedGenerator) StreamChat(ctx context.Context, req ollama.ChatRequest) (<-chan ollama.Chunk, error) {
	chunks := make(chan ollama.Chunk)
	go func() {
		defer close(chunks)
		select {
		case chunks <- ollama.Chunk{Content: "first"}:
			close(b.started)
		case <-ctx.Done():
			return
		}
		<-ctx.Done()
	}()
	return chunks, nil
}

func TestStorageFailureSurfacedDistinctly(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"reply"}}
	svc, st, p, a := setupService(t, gen)
	ctx := context.Background()

	// Wrap the store so the assistant commit fails
	svc.store = &failingStore{Store: st, failAfter: 1}

	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "hi"})
	require.NoError(t, err)

	events := drain(t, turn)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.ErrorIs(t, last.Err, ErrStorage)
}

// failingStore passes through to the real store but fails AppendMessage
// after failAfter successful calls.
type failingStore struct {
	store.Store
	mu        sync.Mutex
	calls     int
	failAfter int
}

func (f *failingStore) AppendMessage(ctx context.Context, conversationID int64, role, content string) (*store.Message, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls > f.failAfter
	f.mu.Unlock()

	if fail {
		return nil, errors.New("disk full")
	}
	return f.Store.AppendMessage(ctx, conversationID, role, content)
}

func TestConcurrentTurnsDifferentConversations(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"answer"}}
	svc, st, p, a := setupService(t, gen)
	ctx := context.Background()

	const n = 5
	var wg sync.WaitGroup
	ids := make([]int64, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: fmt.Sprintf("q%d", i)})
			if err != nil {
				t.Error(err)
				return
			}
			for range turn.Events {
			}
			ids[i] = turn.ConversationID
		}(i)
	}
	wg.Wait()

	// Each turn got its own conversation with exactly one exchange
	seen := make(map[int64]bool)
	for _, id := range ids {
		require.NotZero(t, id)
		assert.False(t, seen[id], "conversation id reused across turns")
		seen[id] = true

		msgs, err := st.ListMessages(ctx, id)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	}
}

func TestConversationLocksReleased(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"answer"}}
	svc, _, p, a := setupService(t, gen)
	ctx := context.Background()

	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "first"})
	require.NoError(t, err)
	drain(t, turn)

	// A second turn on the same conversation and a fresh one
	for _, convID := range []int64{turn.ConversationID, 0} {
		next, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, ConversationID: convID, Message: "again"})
		require.NoError(t, err)
		drain(t, next)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.locks, "lock entries kept after all turns finished")
}

func TestListMessagesIdempotent(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"answer"}}
	svc, st, p, a := setupService(t, gen)
	ctx := context.Background()

	turn, err := svc.Submit(ctx, TurnRequest{ProjectID: p.ID, AgentID: a.ID, Message: "hi"})
	require.NoError(t, err)
	drain(t, turn)

	first, err := st.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)
	second, err := st.ListMessages(ctx, turn.ConversationID)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Content, second[i].Content)
	}
}
