package voice

import (
	"context"

	"github.com/byteai/voiceline/pkg/llm"
)

// TextResult is the outcome of a text-only exchange.
type TextResult struct {
	ResponseText string           `json:"response"`
	Tools        []ToolInvocation `json:"tool_calls,omitempty"`
	Status       TurnStatus       `json:"status"`
}

// TextExchange runs a single text-in, text-out turn against the full
// generation pipeline (retrieval, model streaming, tools) with no audio
// stages attached. It exists for operator smoke tests; real calls go
// through Admit.
func (sch *Scheduler) TextExchange(ctx context.Context, userText string) (TextResult, error) {
	gen := &generator{
		llm:       sch.deps.LLM,
		retriever: sch.deps.Retriever,
		registry:  sch.deps.Tools,
		cfg:       sch.cfg,
		metrics:   sch.metrics,
		logger:    sch.deps.Logger.With("component", "text-exchange"),
	}

	chunks := make(chan ResponseChunk, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range chunks {
		}
	}()

	result := gen.run(ctx, "text", userText, sch.systemPrompt, []llm.Message{}, nil, chunks)
	<-drained

	if result.Status == TurnTimedOut && result.Err != nil {
		return TextResult{}, result.Err
	}
	return TextResult{
		ResponseText: result.ResponseText,
		Tools:        result.Tools,
		Status:       result.Status,
	}, nil
}
