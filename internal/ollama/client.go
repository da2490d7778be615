// ABOUTME: HTTP client for a local Ollama-compatible generation backend
// ABOUTME: Streams NDJSON chat completions and proxies model management calls

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Sentinel errors classifying backend failures.
var (
	// ErrUnavailable means the backend could not be reached at all.
	ErrUnavailable = errors.New("generation backend unavailable")

	// ErrStatus means the backend answered with a non-2xx status.
	ErrStatus = errors.New("generation backend returned error status")

	// ErrTimeout means the generation exceeded the configured deadline.
	ErrTimeout = errors.New("generation timed out")
)

// Message is a single chat message in backend wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one streaming generation call.
type ChatRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// Chunk is one unit of streamed output. Exactly one of Content or Err
// is meaningful; a Chunk with Err set is always the last one sent.
type Chunk struct {
	Content string
	Err     error
}

// ModelInfo describes an installed model as reported by the backend.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// PullProgress is one progress line from a model download.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Err       error  `json:"-"`
}

// Client talks to an Ollama-compatible HTTP API.
// Construct it with NewClient; the zero value is not usable.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the backend at baseURL. The timeout
// bounds each generation turn end to end, not individual reads.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		// The http.Client carries no timeout of its own: streaming
		// responses stay open longer than any fixed request timeout,
		// so the deadline lives on the context instead.
		httpClient: &http.Client{},
		logger:     slog.Default().With("component", "ollama"),
	}
}

type chatWireRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// StreamChat starts a streaming chat completion. It returns an error
// synchronously if the backend cannot be reached or rejects the request;
// otherwise it returns a channel of Chunks. The channel closes when the
// backend finishes; a read failure or timeout surfaces as a final Chunk
// with Err set before the close.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(chatWireRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
		Options: chatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	// The deadline lives on a derived context so the caller's context
	// still signals "consumer gone" independently of the timeout.
	streamCtx, cancel := context.WithTimeout(ctx, c.timeout)

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	chunks := make(chan Chunk)
	go c.readStream(ctx, streamCtx, cancel, resp.Body, chunks)
	return chunks, nil
}

// readStream consumes the backend's NDJSON body line by line and
// forwards extracted content fragments. callerCtx gates delivery;
// streamCtx carries the generation deadline.
func (c *Client) readStream(callerCtx, streamCtx context.Context, cancel context.CancelFunc, body io.ReadCloser, chunks chan<- Chunk) {
	defer close(chunks)
	defer cancel()
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			c.logger.Debug("skipping malformed stream line", "line_len", len(line))
			continue
		}

		parsed := gjson.ParseBytes(line)
		if errMsg := parsed.Get("error"); errMsg.Exists() {
			c.sendChunk(callerCtx, chunks, Chunk{Err: fmt.Errorf("%w: %s", ErrStatus, errMsg.String())})
			return
		}

		if content := parsed.Get("message.content"); content.Exists() && content.String() != "" {
			if !c.sendChunk(callerCtx, chunks, Chunk{Content: content.String()}) {
				return
			}
		}

		if parsed.Get("done").Bool() {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if streamCtx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			c.sendChunk(callerCtx, chunks, Chunk{Err: fmt.Errorf("%w: %v", ErrTimeout, err)})
			return
		}
		c.sendChunk(callerCtx, chunks, Chunk{Err: fmt.Errorf("reading generation stream: %w", err)})
	}
}

// sendChunk delivers a chunk unless the caller has gone away.
func (c *Client) sendChunk(ctx context.Context, chunks chan<- Chunk, ch Chunk) bool {
	select {
	case chunks <- ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// ListModels returns the models installed on the backend.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("building list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	var payload struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	return payload.Models, nil
}

// Pull downloads a model, streaming progress lines as they arrive.
// The channel closes when the download completes; a failure arrives as
// a final PullProgress with Err set.
func (c *Client) Pull(ctx context.Context, name string) (<-chan PullProgress, error) {
	body, err := json.Marshal(map[string]any{"name": name, "stream": true})
	if err != nil {
		return nil, fmt.Errorf("encoding pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	progress := make(chan PullProgress)
	go func() {
		defer close(progress)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 || !gjson.ValidBytes(line) {
				continue
			}

			parsed := gjson.ParseBytes(line)
			p := PullProgress{
				Status:    parsed.Get("status").String(),
				Total:     parsed.Get("total").Int(),
				Completed: parsed.Get("completed").Int(),
			}
			if errMsg := parsed.Get("error"); errMsg.Exists() {
				p.Err = fmt.Errorf("%w: %s", ErrStatus, errMsg.String())
			}

			select {
			case progress <- p:
			case <-ctx.Done():
				return
			}
			if p.Err != nil {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case progress <- PullProgress{Err: fmt.Errorf("reading pull stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return progress, nil
}

// DeleteModel removes an installed model from the backend.
func (c *Client) DeleteModel(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return fmt.Errorf("encoding delete request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/delete", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: model %q not installed", ErrStatus, name)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return nil
}
