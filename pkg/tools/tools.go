// Package tools implements the actions the assistant can take during a
// call: booking and checking appointments and escalating to a human.
// Tools are registered in a Registry and dispatched by name.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/byteai/voiceline/pkg/llm"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 5 * time.Second

// Tool is a function the model can invoke during conversation.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "book_appointment").
	Name string

	// Description explains what the tool does, helping the model decide
	// when to use it.
	Description string

	// InputSchema is the JSON schema for the tool's arguments.
	InputSchema map[string]any

	// Handler executes the tool. It returns a result string that is sent
	// back to the model to continue the conversation.
	Handler func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the available tools and dispatches calls to them.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Tool
	order   []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		tools:   make(map[string]*Tool),
		timeout: timeout,
		logger:  logger.With("component", "tools"),
	}
}

// Register adds a tool. Registering the same name twice replaces it.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns the named tool, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns the registered tools in registration order, in the
// shape the model API expects.
func (r *Registry) Definitions() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return defs
}

// Execute runs a tool call and returns its result. Failures (unknown
// tool, handler error, timeout) are returned as error results, never as
// Go errors: the model sees what went wrong and can recover in
// conversation.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	tool := r.Get(call.Name)
	if tool == nil {
		r.logger.Warn("unknown tool requested", "tool", call.Name)
		return errorResult(call.ID, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	content, err := tool.Handler(ctx, call.Arguments)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Error("tool execution failed",
			"tool", call.Name, "duration", elapsed, "error", err)
		return errorResult(call.ID, err.Error())
	}

	r.logger.Info("tool executed", "tool", call.Name, "duration", elapsed)
	return llm.ToolResult{ToolCallID: call.ID, Content: content}
}

func errorResult(callID, message string) llm.ToolResult {
	content, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   message,
	})
	return llm.ToolResult{ToolCallID: callID, Content: string(content), IsError: true}
}

// successResult marshals a payload with success=true for the model.
func successResult(fields map[string]any) (string, error) {
	fields["success"] = true
	out, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(out), nil
}
