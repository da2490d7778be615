// ABOUTME: Tests for the Ollama backend client
// ABOUTME: Uses httptest servers to simulate streaming and failure modes

package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectChunks(t *testing.T, chunks <-chan Chunk) (string, error) {
	t.Helper()

	var content string
	for ch := range chunks {
		if ch.Err != nil {
			return content, ch.Err
		}
		content += ch.Content
	}
	return content, nil
}

func TestStreamChatHappyPath(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hello"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":", world"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"!"},"done":true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	chunks, err := client.StreamChat(context.Background(), ChatRequest{
		Model:       "llama3.2",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0.5,
		MaxTokens:   128,
	})
	require.NoError(t, err)

	content, streamErr := collectChunks(t, chunks)
	require.NoError(t, streamErr)
	assert.Equal(t, "Hello, world!", content)

	// Wire request shape
	assert.Equal(t, "llama3.2", gotBody["model"])
	assert.Equal(t, true, gotBody["stream"])
	opts := gotBody["options"].(map[string]any)
	assert.InDelta(t, 0.5, opts["temperature"], 0.0001)
	assert.EqualValues(t, 128, opts["num_predict"])
}

func TestStreamChatPrependsSystemPrompt(t *testing.T) {
	var gotBody struct {
		Messages []Message `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprintln(w, `{"message":{"content":"ok"},"done":true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	chunks, err := client.StreamChat(context.Background(), ChatRequest{
		Model:        "llama3.2",
		SystemPrompt: "You are terse.",
		Messages: []Message{
			{Role: "user", Content: "q1"},
			{Role: "assistant", Content: "a1"},
			{Role: "user", Content: "q2"},
		},
	})
	require.NoError(t, err)
	_, streamErr := collectChunks(t, chunks)
	require.NoError(t, streamErr)

	require.Len(t, gotBody.Messages, 4)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "You are terse.", gotBody.Messages[0].Content)
	assert.Equal(t, "q1", gotBody.Messages[1].Content)
}

func TestStreamChatSkipsMalformedLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"good"},"done":false}`)
		fmt.Fprintln(w, `this is not json at all`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"unexpected":"shape"}`)
		fmt.Fprintln(w, `{"message":{"content":" tail"},"done":true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	chunks, err := client.StreamChat(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)

	content, streamErr := collectChunks(t, chunks)
	require.NoError(t, streamErr)
	assert.Equal(t, "good tail", content)
}

func TestStreamChatConnectionRefused(t *testing.T) {
	// Grab a port that nothing is listening on
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Minute)
	_, err := client.StreamChat(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStreamChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	_, err := client.StreamChat(context.Background(), ChatRequest{Model: "no-such-model"})
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "model not found")
}

func TestStreamChatInBandError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"partial"},"done":false}`)
		fmt.Fprintln(w, `{"error":"backend fell over"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	chunks, err := client.StreamChat(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)

	content, streamErr := collectChunks(t, chunks)
	assert.Equal(t, "partial", content)
	assert.ErrorIs(t, streamErr, ErrStatus)
}

func TestStreamChatTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"slow"},"done":false}`)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 100*time.Millisecond)
	chunks, err := client.StreamChat(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)

	content, streamErr := collectChunks(t, chunks)
	assert.Equal(t, "slow", content)
	assert.ErrorIs(t, streamErr, ErrTimeout)
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprintln(w, `{"models":[{"name":"llama3.2","size":2019393189,"modified_at":"2025-11-04T14:56:49Z"},{"name":"qwen2.5-coder","size":4683087332,"modified_at":"2025-12-01T09:12:03Z"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.2", models[0].Name)
	assert.EqualValues(t, 2019393189, models[0].Size)
}

func TestListModelsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Minute)
	_, err := client.ListModels(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPullStreamsProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pull", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "llama3.2", body["name"])

		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","total":1000,"completed":500}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	progress, err := client.Pull(context.Background(), "llama3.2")
	require.NoError(t, err)

	var lines []PullProgress
	for p := range progress {
		require.NoError(t, p.Err)
		lines = append(lines, p)
	}
	require.Len(t, lines, 3)
	assert.Equal(t, "pulling manifest", lines[0].Status)
	assert.EqualValues(t, 500, lines[1].Completed)
	assert.Equal(t, "success", lines[2].Status)
}

func TestPullInBandError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	progress, err := client.Pull(context.Background(), "ghost-model")
	require.NoError(t, err)

	var last PullProgress
	for p := range progress {
		last = p
	}
	assert.ErrorIs(t, last.Err, ErrStatus)
}

func TestDeleteModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/delete", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["name"] != "llama3.2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	require.NoError(t, client.DeleteModel(context.Background(), "llama3.2"))

	err := client.DeleteModel(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStatus)
}
