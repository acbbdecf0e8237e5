package llm

// Role defines message roles in a conversation.
type Role string

const (
	// RoleUser is for caller messages and tool results.
	RoleUser Role = "user"

	// RoleAssistant is for model responses.
	RoleAssistant Role = "assistant"
)

// Message represents one conversation message.
// A message carries text, tool calls (assistant), or tool results
// (user); the wire encoding flattens these into content blocks.
type Message struct {
	// Role identifies the message sender.
	Role Role

	// Content is the text content of the message.
	Content string

	// ToolCalls are tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolResults are results being returned for earlier tool calls.
	ToolResults []ToolResult
}

// ToolCall represents a tool invocation request from the model.
type ToolCall struct {
	// ID uniquely identifies this tool call.
	ID string

	// Name of the tool to call.
	Name string

	// Arguments parsed from the model's JSON input.
	Arguments map[string]any
}

// ToolResult carries a tool's output back into the conversation.
type ToolResult struct {
	// ToolCallID matches the ToolCall this responds to.
	ToolCallID string

	// Content is the JSON-encoded result payload.
	Content string

	// IsError marks a failed execution; the model decides how to react.
	IsError bool
}

// Tool defines a callable tool for the model.
type Tool struct {
	// Name of the tool.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema map[string]any `json:"input_schema"`
}

// NewUserMessage creates a user text message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant text message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolCallMessage creates the assistant message recording text plus
// the tool calls it issued.
func NewToolCallMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultMessage creates the user message carrying tool results.
func NewToolResultMessage(results ...ToolResult) Message {
	return Message{Role: RoleUser, ToolResults: results}
}
