// Package llm provides a unified interface for streaming language model
// providers with tool calling.
//
// A generation call takes the assembled prompt (system instructions,
// conversation history, new user turn) plus a tool schema and returns a
// lazy sequence of increments. Each increment is either a text delta or
// a complete tool call; after executing a tool, the caller appends the
// result to the message list and opens a follow-up stream, which is how
// mid-stream continuation works.
//
// Example usage:
//
//	provider, _ := llm.NewAnthropic(
//	    llm.WithAPIKey(os.Getenv("LLM_API_KEY")),
//	    llm.WithModel("claude-3-5-haiku-20241022"),
//	)
//	stream, _ := provider.Stream(ctx, &llm.Request{
//	    System:   prompt,
//	    Messages: history,
//	    Tools:    tools,
//	})
//	for {
//	    inc, err := stream.Recv()
//	    if inc == nil || inc.Done { break }
//	}
package llm

import "context"

// Provider defines the language model interface.
type Provider interface {
	// Stream opens a streaming generation call.
	Stream(ctx context.Context, req *Request) (Stream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Stream is a streaming generation response.
type Stream interface {
	// Recv returns the next increment. Returns an increment with Done
	// set when the stream is complete.
	Recv() (*Increment, error)

	// Close stops the stream and releases resources.
	Close() error
}

// Request is one generation call.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation so far, oldest first.
	Messages []Message

	// Tools available for the model to call.
	Tools []Tool

	// Model overrides the configured default.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64
}

// Increment is one piece of a streaming response.
type Increment struct {
	// Text is the incremental text content, if any.
	Text string

	// ToolCall is set when the model requests a tool invocation.
	// Tool call arguments arrive complete, never fragmented.
	ToolCall *ToolCall

	// StopReason indicates why generation stopped (end_turn, tool_use,
	// max_tokens). Only set on the final increment.
	StopReason string

	// Done is true when the stream is complete.
	Done bool
}
