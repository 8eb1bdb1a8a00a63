package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/ki-backend/internal/logger"
)

const apiVersion = "2023-06-01"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client opens streaming completions against the Anthropic Messages API.
type Client interface {
	// StreamMessage starts a streamed completion. The returned Stream is a
	// forward-only, single-pass sequence of text deltas; it is not
	// restartable. Retries only cover connection establishment - once the
	// stream has started, errors surface through Recv.
	StreamMessage(ctx context.Context, system string, messages []Message) (Stream, error)
}

// Stream yields incremental text fragments. Recv returns io.EOF on normal
// completion and an *APIError (or wrapped transport error) on failure.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client

	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}

	baseURL := os.Getenv("ANTHROPIC_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}

	maxTokens := 2048
	if v := os.Getenv("ANTHROPIC_MAX_TOKENS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			maxTokens = parsed
		}
	}

	// The timeout bounds the whole streamed response, not just the connect,
	// so it defaults high enough for long generations.
	timeoutSec := 180
	if v := os.Getenv("ANTHROPIC_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 4
	if v := os.Getenv("ANTHROPIC_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("client", "AnthropicClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

// APIError is a provider-level failure, distinguishable from normal
// end-of-stream (io.EOF) and from local transport errors.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("anthropic http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("anthropic %s: %s", e.Type, e.Message)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	if code >= 500 && code <= 599 {
		return true
	}
	return false
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return isRetryableHTTP(apiErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

func (c *client) StreamMessage(ctx context.Context, system string, messages []Message) (Stream, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages required")
	}

	reqBody := messagesRequest{
		Model:     c.model,
		System:    strings.TrimSpace(system),
		Messages:  messages,
		MaxTokens: c.maxTokens,
		Stream:    true,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	// Exponential backoff on the connect phase only: 1s, 2s, 4s, 8s (cap 10s).
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, openErr := c.open(ctx, payload)
		if openErr == nil {
			return &messageStream{body: resp.Body, br: bufio.NewReader(resp.Body)}, nil
		}
		lastErr = openErr

		if !isRetryableErr(openErr) || attempt == c.maxRetries {
			return nil, openErr
		}

		sleepFor := backoff
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		c.log.Warn("Anthropic stream connect retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", openErr.Error(),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return nil, lastErr
}

func (c *client) open(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		var envelope struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Type = envelope.Error.Type
			apiErr.Message = envelope.Error.Message
		}
		return nil, apiErr
	}
	return resp, nil
}

type messageStream struct {
	body   io.ReadCloser
	br     *bufio.Reader
	closed bool
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Recv advances to the next text delta. Non-text events (message_start,
// content_block_start, ping, ...) are skipped.
func (s *messageStream) Recv() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	for {
		event, data, err := s.readEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = s.Close()
				return "", io.EOF
			}
			return "", err
		}
		if strings.TrimSpace(data) == "" {
			continue
		}

		var ev streamEvent
		if jsonErr := json.Unmarshal([]byte(data), &ev); jsonErr != nil {
			continue
		}
		evType := ev.Type
		if evType == "" {
			evType = event
		}

		switch evType {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				return ev.Delta.Text, nil
			}
		case "message_stop":
			_ = s.Close()
			return "", io.EOF
		case "error":
			_ = s.Close()
			return "", &APIError{Type: ev.Error.Type, Message: ev.Error.Message}
		}
	}
}

// readEvent reads one SSE event (event name + joined data lines).
func (s *messageStream) readEvent() (string, string, error) {
	var (
		eventName string
		dataLines []string
	)
	for {
		line, err := s.br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && len(dataLines) > 0 {
				return eventName, strings.Join(dataLines, "\n"), nil
			}
			return "", "", err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends the event.
		if line == "" {
			if len(dataLines) == 0 && eventName == "" {
				continue
			}
			return eventName, strings.Join(dataLines, "\n"), nil
		}

		// Comment.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}
}

func (s *messageStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
