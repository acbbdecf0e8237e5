package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMockScriptedStream(t *testing.T) {
	mock := NewMock()
	mock.ScriptText("Hello, ", "world.")

	stream, err := mock.Stream(context.Background(), &Request{
		Messages: []Message{NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var text string
	for {
		inc, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if inc.Done {
			if inc.StopReason != "end_turn" {
				t.Errorf("stop reason = %q, want end_turn", inc.StopReason)
			}
			break
		}
		text += inc.Text
	}

	if text != "Hello, world." {
		t.Errorf("text = %q, want %q", text, "Hello, world.")
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(reqs))
	}
	if reqs[0].Messages[0].Content != "hi" {
		t.Errorf("recorded message = %q", reqs[0].Messages[0].Content)
	}
}

func TestMockToolCallIncrement(t *testing.T) {
	mock := NewMock()
	mock.Script(
		Increment{Text: "Let me book that. "},
		Increment{ToolCall: &ToolCall{
			ID:   "toolu_01",
			Name: "book_appointment",
			Arguments: map[string]any{
				"date": "2026-09-15",
				"time": "10:00",
			},
		}},
		Increment{Done: true, StopReason: "tool_use"},
	)

	stream, err := mock.Stream(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var gotTool *ToolCall
	for {
		inc, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if inc.ToolCall != nil {
			gotTool = inc.ToolCall
		}
		if inc.Done {
			if inc.StopReason != "tool_use" {
				t.Errorf("stop reason = %q, want tool_use", inc.StopReason)
			}
			break
		}
	}

	if gotTool == nil {
		t.Fatal("no tool call increment received")
	}
	if gotTool.Name != "book_appointment" {
		t.Errorf("tool name = %q", gotTool.Name)
	}
	if gotTool.Arguments["date"] != "2026-09-15" {
		t.Errorf("tool date arg = %v", gotTool.Arguments["date"])
	}
}

func TestMockStreamClosed(t *testing.T) {
	stream := &MockStream{incs: []Increment{{Text: "a"}}}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := stream.Recv(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Recv after close = %v, want ErrStreamClosed", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("empty key: %v, want ErrNoAPIKey", err)
	}

	cfg.Apply(WithAPIKey("sk-test"))
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}

	cfg.Apply(WithModel(""))
	if err := cfg.Validate(); !errors.Is(err, ErrNoModel) {
		t.Errorf("empty model: %v, want ErrNoModel", err)
	}
}

func TestEncodeMessages(t *testing.T) {
	messages := []Message{
		NewUserMessage("book me in"),
		NewToolCallMessage("Sure. ", ToolCall{
			ID:        "toolu_01",
			Name:      "book_appointment",
			Arguments: map[string]any{"date": "2026-09-15"},
		}),
		NewToolResultMessage(ToolResult{
			ToolCallID: "toolu_01",
			Content:    `{"appointment_id":"APT-1234"}`,
		}),
	}

	encoded := encodeMessages(messages)
	if len(encoded) != 3 {
		t.Fatalf("encoded %d messages, want 3", len(encoded))
	}

	assistant := encoded[1]
	if assistant["role"] != "assistant" {
		t.Errorf("role = %v", assistant["role"])
	}
	blocks := assistant["content"].([]contentBlock)
	if len(blocks) != 2 {
		t.Fatalf("assistant blocks = %d, want 2 (text + tool_use)", len(blocks))
	}
	if blocks[0].Type != "text" || blocks[1].Type != "tool_use" {
		t.Errorf("block types = %q, %q", blocks[0].Type, blocks[1].Type)
	}
	if blocks[1].ID != "toolu_01" {
		t.Errorf("tool_use id = %q", blocks[1].ID)
	}

	result := encoded[2]["content"].([]contentBlock)
	if len(result) != 1 || result[0].Type != "tool_result" {
		t.Fatalf("tool result blocks = %+v", result)
	}
	if result[0].ToolUseID != "toolu_01" {
		t.Errorf("tool_use_id = %q", result[0].ToolUseID)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	rateLimited := &APIError{StatusCode: 429, Provider: providerAnthropic}
	if !rateLimited.IsRateLimited() {
		t.Error("429 should be rate limited")
	}
	if !rateLimited.IsRetryable() {
		t.Error("429 should be retryable")
	}

	overloaded := &APIError{StatusCode: 529, Provider: providerAnthropic}
	if !overloaded.IsOverloaded() {
		t.Error("529 should be overloaded")
	}
	if !overloaded.IsRetryable() {
		t.Error("529 should be retryable")
	}

	unauthorized := &APIError{StatusCode: 401, Provider: providerAnthropic}
	if !unauthorized.IsUnauthorized() {
		t.Error("401 should be unauthorized")
	}
	if unauthorized.IsRetryable() {
		t.Error("401 should not be retryable")
	}
}

func TestAnthropicStreamTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server detects the client disconnect
		// and cancels r.Context(); otherwise Close hangs on this conn.
		io.Copy(io.Discard, r.Body)
		// Never respond; the stream client deadline must fire.
		<-r.Context().Done()
	}))
	defer srv.Close()

	provider, err := NewAnthropic(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithStreamTimeout(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	defer provider.Close()

	start := time.Now()
	_, err = provider.Stream(context.Background(), &Request{
		Messages: []Message{NewUserMessage("hello")},
	})
	if err == nil {
		t.Fatal("expected error from unresponsive endpoint")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("stream call took %v, timeout not applied", elapsed)
	}
}
