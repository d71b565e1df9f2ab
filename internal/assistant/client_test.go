package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// wireRequest and wireResponse mirror the /api/chat JSON bodies.
type wireRequest struct {
	Model    string     `json:"model"`
	Messages []Message  `json:"messages"`
	Tools    []ToolSpec `json:"tools,omitempty"`
	Stream   bool       `json:"stream"`
}

type wireResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func newTestClient(t *testing.T, serverURL string, opts ...ClientOption) *OllamaClient {
	t.Helper()
	opts = append([]ClientOption{WithBaseBackoff(time.Millisecond)}, opts...)
	client, err := NewOllamaClient(serverURL, "llama3.2", opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestNewOllamaClient_MissingModel(t *testing.T) {
	_, err := NewOllamaClient(DefaultHost, "")
	if !errors.Is(err, ErrModelRequired) {
		t.Errorf("expected ErrModelRequired, got %v", err)
	}
}

func TestNewOllamaClient_Defaults(t *testing.T) {
	client, err := NewOllamaClient("", "llama3.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.host != DefaultHost {
		t.Errorf("expected host %q, got %q", DefaultHost, client.host)
	}
	if client.Model() != "llama3.2" {
		t.Errorf("expected model llama3.2, got %q", client.Model())
	}
	if client.maxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", client.maxRetries)
	}
}

func TestNewOllamaClient_TrimsTrailingSlash(t *testing.T) {
	client, err := NewOllamaClient("http://ollama:11434/", "qwen2.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.host != "http://ollama:11434" {
		t.Errorf("unexpected host %q", client.host)
	}
}

func TestChat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat, got %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req wireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "llama3.2" {
			t.Errorf("expected model llama3.2, got %q", req.Model)
		}
		if req.Stream {
			t.Error("expected stream to be false")
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hi" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "sum_as_string" {
			t.Errorf("unexpected tools: %+v", req.Tools)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"hello"},"done":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	reply, err := client.Chat(context.Background(), []Message{UserMessage("hi")}, []ToolSpec{SumTool{}.Spec()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Role != RoleAssistant || reply.Content != "hello" {
		t.Errorf("unexpected reply: %+v", reply)
	}
}

func TestChat_StreamFieldAlwaysSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		_ = json.NewDecoder(r.Body).Decode(&raw)
		if v, ok := raw["stream"]; !ok || v != false {
			t.Errorf("expected stream:false in body, got %v", raw["stream"])
		}
		if _, ok := raw["tools"]; ok {
			t.Error("expected tools to be omitted when empty")
		}
		_, _ = w.Write([]byte(`{"message":{"content":"ok"},"done":true}`))
	}))
	defer server.Close()

	reply, err := newTestClient(t, server.URL).Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Role != RoleAssistant {
		t.Errorf("expected missing role to default to assistant, got %q", reply.Role)
	}
}

func TestChat_ToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Berlin"}}}]},"done":true}`))
	}))
	defer server.Close()

	reply, err := newTestClient(t, server.URL).Chat(context.Background(), []Message{UserMessage("weather?")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reply.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(reply.ToolCalls))
	}
	call := reply.ToolCalls[0].Function
	if call.Name != "get_weather" {
		t.Errorf("expected get_weather, got %q", call.Name)
	}
	if string(call.Arguments) != `{"city":"Berlin"}` {
		t.Errorf("unexpected arguments %s", call.Arguments)
	}
}

func TestChat_ErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model does not support tools"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if !errors.Is(err, ErrChatFailed) {
		t.Errorf("expected ErrChatFailed, got %v", err)
	}
}

func TestChat_RetryOnServerError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"loading model"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ready"},"done":true}`))
	}))
	defer server.Close()

	reply, err := newTestClient(t, server.URL).Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Content != "ready" {
		t.Errorf("expected ready, got %q", reply.Content)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestChat_RetryOnRateLimit(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL).Chat(context.Background(), []Message{UserMessage("x")}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestChat_MaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithMaxRetries(2))

	_, err := client.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if !errors.Is(err, ErrServerError) {
		t.Errorf("expected ErrServerError, got %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", got)
	}
}

func TestChat_NoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestChat_EmptyResponseRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"back"},"done":true}`))
	}))
	defer server.Close()

	reply, err := newTestClient(t, server.URL).Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Content != "back" {
		t.Errorf("expected back, got %q", reply.Content)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestChat_EmptyResponseExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, WithMaxRetries(1)).Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestChat_ConnectionRefusedRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := newTestClient(t, addr, WithMaxRetries(1)).Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("expected retries to be exhausted, got %v", err)
	}
}

func TestChat_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithBaseBackoff(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, []Message{UserMessage("x")}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}
