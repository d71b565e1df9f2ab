package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrTooManyToolRounds is returned when the model keeps requesting tools
// past the configured limit.
var ErrTooManyToolRounds = errors.New("assistant: too many tool rounds")

// DefaultMaxToolRounds bounds tool round trips per Chat call.
const DefaultMaxToolRounds = 5

// ChatClient sends a chat history to a model.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error)
}

// Coordinator keeps a conversation with a model and runs the tools it asks for.
type Coordinator struct {
	mu            sync.Mutex
	client        ChatClient
	registry      *Registry
	history       []Message
	maxToolRounds int
	logger        *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithHistory seeds the conversation, e.g. with a system prompt.
func WithHistory(messages ...Message) CoordinatorOption {
	return func(c *Coordinator) {
		c.history = append(c.history, messages...)
	}
}

// WithMaxToolRounds sets the tool round-trip limit. Non-positive values are ignored.
func WithMaxToolRounds(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxToolRounds = n
		}
	}
}

// WithLogger sets the logger used for tool invocations.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a Coordinator offering the tools in registry.
func NewCoordinator(client ChatClient, registry *Registry, opts ...CoordinatorOption) *Coordinator {
	if registry == nil {
		registry = NewRegistry()
	}
	c := &Coordinator{
		client:        client,
		registry:      registry,
		maxToolRounds: DefaultMaxToolRounds,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat appends messages to the history and asks the model for a reply.
// Requested tool calls are executed locally and their results sent back
// until the model answers without tool calls. A failing tool does not end
// the conversation; its error text is returned to the model instead.
//
// When Chat fails, the history keeps everything exchanged up to the failure.
func (c *Coordinator) Chat(ctx context.Context, messages ...Message) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, messages...)
	specs := c.registry.Specs()

	for round := 0; ; round++ {
		reply, err := c.client.Chat(ctx, c.history, specs)
		if err != nil {
			return Message{}, fmt.Errorf("assistant: chat: %w", err)
		}
		c.history = append(c.history, reply)

		if len(reply.ToolCalls) == 0 {
			return reply, nil
		}
		if round >= c.maxToolRounds {
			return Message{}, fmt.Errorf("%w: limit is %d", ErrTooManyToolRounds, c.maxToolRounds)
		}

		for _, call := range reply.ToolCalls {
			c.history = append(c.history, c.runTool(ctx, call))
		}
	}
}

func (c *Coordinator) runTool(ctx context.Context, call ToolCall) Message {
	name := call.Function.Name
	c.logger.Debug("calling tool",
		slog.String("tool", name),
		slog.String("args", string(call.Function.Arguments)),
	)

	out, err := c.registry.Call(ctx, name, call.Function.Arguments)
	if err != nil {
		c.logger.Warn("tool failed",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		out = "error: " + err.Error()
	}
	return Message{Role: RoleTool, Content: out, ToolName: name}
}

// History returns a copy of the conversation so far.
func (c *Coordinator) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// Reset clears the conversation.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}
