package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/byteai/voiceline/internal/httpc"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
	providerAnthropic   = "anthropic"
)

// Anthropic implements Provider using the Anthropic Messages API.
type Anthropic struct {
	config *Config

	// streamClient bounds a whole streaming call with StreamTimeout.
	streamClient *http.Client

	logger  *slog.Logger
	baseURL string
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(opts ...Option) (*Anthropic, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}

	return &Anthropic{
		config:       cfg,
		streamClient: httpc.NewClient(cfg.StreamTimeout),
		logger:       cfg.Logger.With("component", "llm.anthropic"),
		baseURL:      baseURL,
	}, nil
}

// contentBlock is one element of a wire message's content array.
type contentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// encodeMessages flattens Messages into the wire content-block shape.
func encodeMessages(messages []Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		var blocks []contentBlock
		if m.Content != "" {
			blocks = append(blocks, contentBlock{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			input := tc.Arguments
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, contentBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: input,
			})
		}
		for _, tr := range m.ToolResults {
			blocks = append(blocks, contentBlock{
				Type:      "tool_result",
				ToolUseID: tr.ToolCallID,
				Content:   tr.Content,
				IsError:   tr.IsError,
			})
		}
		out = append(out, map[string]any{
			"role":    string(m.Role),
			"content": blocks,
		})
	}
	return out
}

// Stream opens a streaming generation call.
func (a *Anthropic) Stream(ctx context.Context, req *Request) (Stream, error) {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = a.config.Temperature
	}

	payload := map[string]any{
		"model":       model,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"stream":      true,
		"messages":    encodeMessages(req.Messages),
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerAnthropic, fmt.Errorf("marshal payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerAnthropic, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.streamClient.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerAnthropic, fmt.Errorf("stream request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, a.parseError(resp)
	}

	return &anthropicStream{
		reader: bufio.NewReader(resp.Body),
		body:   resp.Body,
		logger: a.logger,
	}, nil
}

// Health issues a minimal request to verify the API key.
func (a *Anthropic) Health(ctx context.Context) error {
	payload := map[string]any{
		"model":      a.config.Model,
		"max_tokens": 1,
		"messages":   encodeMessages([]Message{NewUserMessage("ping")}),
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return WrapError(providerAnthropic, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.config.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := httpc.Do(req)
	if err != nil {
		return WrapError(providerAnthropic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return a.parseError(resp)
	}
	return nil
}

// Close releases provider resources.
func (a *Anthropic) Close() error {
	return nil
}

// parseError converts an HTTP error response into an APIError.
func (a *Anthropic) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	errType := ""
	if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.Error.Message != "" {
		message = apiResp.Error.Message
		errType = apiResp.Error.Type
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Type:       errType,
		Provider:   providerAnthropic,
	}
}

// anthropicStream parses Messages API server-sent events into
// Increments. Tool input JSON arrives fragmented across deltas and is
// accumulated until the block closes; callers never see partial JSON.
type anthropicStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
	logger *slog.Logger

	// open tool_use block, if any
	toolID    string
	toolName  string
	inputJSON strings.Builder

	stopReason string
}

// streamEvent is the SSE data payload shape.
type streamEvent struct {
	Type         string `json:"type"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
}

// Recv returns the next increment.
func (s *anthropicStream) Recv() (*Increment, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err == io.EOF {
			return &Increment{Done: true, StopReason: s.stopReason}, nil
		}
		if err != nil {
			return nil, WrapError(providerAnthropic, fmt.Errorf("read stream: %w", err))
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			// Skip malformed events
			continue
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				s.toolID = event.ContentBlock.ID
				s.toolName = event.ContentBlock.Name
				s.inputJSON.Reset()
			}

		case "content_block_delta":
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text != "" {
					return &Increment{Text: event.Delta.Text}, nil
				}
			case "input_json_delta":
				s.inputJSON.WriteString(event.Delta.PartialJSON)
			}

		case "content_block_stop":
			if s.toolID != "" {
				inc, err := s.finishToolBlock()
				if err != nil {
					return nil, err
				}
				return inc, nil
			}

		case "message_delta":
			if event.Delta.StopReason != "" {
				s.stopReason = event.Delta.StopReason
			}

		case "message_stop":
			return &Increment{Done: true, StopReason: s.stopReason}, nil

		case "error":
			return nil, WrapError(providerAnthropic, fmt.Errorf("stream error event"))
		}
	}
}

// finishToolBlock parses the accumulated input JSON into a tool call.
func (s *anthropicStream) finishToolBlock() (*Increment, error) {
	args := map[string]any{}
	if raw := s.inputJSON.String(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			s.logger.Error("tool input JSON parse failed", "tool", s.toolName, "error", err)
			args = map[string]any{}
		}
	}

	call := &ToolCall{ID: s.toolID, Name: s.toolName, Arguments: args}
	s.toolID = ""
	s.toolName = ""
	s.inputJSON.Reset()

	return &Increment{ToolCall: call}, nil
}

// Close stops the stream.
func (s *anthropicStream) Close() error {
	return s.body.Close()
}

// Verify Anthropic implements Provider at compile time.
var _ Provider = (*Anthropic)(nil)
