// Package assistant drives a local Ollama model through a tool-calling chat loop.
package assistant

import "encoding/json"

// Role identifies the author of a chat message.
type Role string

// Message roles understood by Ollama.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the chat history.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolName is set on RoleTool messages to the tool that produced Content.
	ToolName string `json:"tool_name,omitempty"`
}

// UserMessage returns a RoleUser message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Function FunctionCall `json:"function"`
}

// FunctionCall names a tool and carries its JSON object arguments.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolSpec declares a tool to the model.
type ToolSpec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes a callable function and its JSON Schema parameters.
type FunctionSpec struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Parameters is the JSON Schema object describing function arguments.
type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single argument.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// functionSpec builds a ToolSpec of type "function".
func functionSpec(name, description string, props map[string]Property, required ...string) ToolSpec {
	if props == nil {
		props = map[string]Property{}
	}
	return ToolSpec{
		Type: "function",
		Function: FunctionSpec{
			Name:        name,
			Description: description,
			Parameters: Parameters{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
	}
}
