package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Static errors for Ollama client operations.
var (
	// ErrModelRequired is returned when no model name is provided.
	ErrModelRequired = errors.New("ollama: model is required")
	// ErrServerError is returned when the server answers with a 5xx status.
	ErrServerError = errors.New("ollama: server error")
	// ErrRateLimited is returned when the server answers with 429.
	ErrRateLimited = errors.New("ollama: rate limited")
	// ErrRequestFailed is returned for any other non-2xx status.
	ErrRequestFailed = errors.New("ollama: request failed")
	// ErrChatFailed is returned when a 2xx reply carries an error field.
	ErrChatFailed = errors.New("ollama: chat failed")
	// ErrEmptyResponse is returned when the server closes the stream without a reply.
	ErrEmptyResponse = errors.New("ollama: empty response")
)

// DefaultHost is where a local Ollama listens by default.
const DefaultHost = "http://localhost:11434"

// OllamaClient talks to the Ollama chat API through the official api package
// and retries transient failures with exponential backoff.
type OllamaClient struct {
	host        string
	model       string
	httpClient  *http.Client
	api         *api.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an OllamaClient.
type ClientOption func(*OllamaClient)

// WithHTTPClient sets the HTTP client the api package sends requests with.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(oc *OllamaClient) {
		oc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(oc *OllamaClient) {
		oc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(oc *OllamaClient) {
		oc.baseBackoff = d
	}
}

// NewOllamaClient creates a client for the model served at host.
// An empty host means DefaultHost.
func NewOllamaClient(host, model string, opts ...ClientOption) (*OllamaClient, error) {
	if model == "" {
		return nil, ErrModelRequired
	}
	if host == "" {
		host = DefaultHost
	}
	host = strings.TrimRight(host, "/")

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse host %q: %w", host, err)
	}

	c := &OllamaClient{
		host:  host,
		model: model,
		// Local models can take a while to answer on CPU.
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.api = api.NewClient(base, c.httpClient)
	return c, nil
}

// Model returns the model name sent with every request.
func (c *OllamaClient) Model() string {
	return c.model
}

// Chat sends the whole history and the tool declarations, and returns the
// assistant message. Streaming is disabled.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error) {
	req, err := c.chatRequest(messages, tools)
	if err != nil {
		return Message{}, err
	}

	var reply Message
	err = c.withRetry(ctx, func() error {
		var resp *api.ChatResponse
		err := c.api.Chat(ctx, req, func(r api.ChatResponse) error {
			if resp == nil {
				resp = &r
				return nil
			}
			// Only reached if the server streams anyway.
			resp.Message.Content += r.Message.Content
			resp.Message.ToolCalls = append(resp.Message.ToolCalls, r.Message.ToolCalls...)
			return nil
		})
		if err != nil {
			return classify(ctx, err)
		}
		if resp == nil {
			return &retryableError{err: ErrEmptyResponse}
		}
		reply, err = fromAPIMessage(resp.Message)
		return err
	})
	if err != nil {
		return Message{}, err
	}

	if reply.Role == "" {
		reply.Role = RoleAssistant
	}
	return reply, nil
}

// chatRequest converts the history and tool declarations into the api
// package types. Both share the Ollama wire format, so JSON is the bridge.
func (c *OllamaClient) chatRequest(messages []Message, tools []ToolSpec) (*api.ChatRequest, error) {
	var apiMessages []api.Message
	if err := convertJSON(messages, &apiMessages); err != nil {
		return nil, fmt.Errorf("ollama: convert messages: %w", err)
	}

	var apiTools api.Tools
	if len(tools) > 0 {
		if err := convertJSON(tools, &apiTools); err != nil {
			return nil, fmt.Errorf("ollama: convert tools: %w", err)
		}
	}

	stream := false
	return &api.ChatRequest{
		Model:    c.model,
		Messages: apiMessages,
		Tools:    apiTools,
		Stream:   &stream,
	}, nil
}

func fromAPIMessage(m api.Message) (Message, error) {
	var msg Message
	if err := convertJSON(m, &msg); err != nil {
		return Message{}, fmt.Errorf("ollama: convert reply: %w", err)
	}
	return msg, nil
}

func convertJSON(from, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}

// withRetry runs call until it succeeds, fails permanently or runs out of retries.
func (c *OllamaClient) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("ollama: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("ollama: max retries exceeded: %w", lastErr)
}

// classify maps api package errors onto the client's sentinels and marks the
// transient ones retryable.
func classify(ctx context.Context, err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, statusErr.StatusCode, statusErr.ErrorMessage)}
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, statusErr.ErrorMessage)}
		default:
			return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, statusErr.StatusCode, statusErr.ErrorMessage)
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("ollama: request failed: %w", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &retryableError{err: fmt.Errorf("ollama: request failed: %w", err)}
	}

	// A 2xx body with an "error" field surfaces as a plain error.
	return fmt.Errorf("%w: %w", ErrChatFailed, err)
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
