package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/byteai/voiceline/pkg/knowledge"
	"github.com/byteai/voiceline/pkg/llm"
	"github.com/byteai/voiceline/pkg/tools"
)

// generator drives one turn's response pipeline: retrieval overlapped
// with prompt assembly, streaming generation, tool execution with result
// re-injection, and ordered speakable chunk emission.
type generator struct {
	llm       llm.Provider
	retriever knowledge.Retriever
	registry  *tools.Registry
	cfg       Config
	metrics   *MetricsCollector
	logger    *slog.Logger
}

// turnResult is what one generation run produced.
type turnResult struct {
	ResponseText string
	Tools        []ToolInvocation
	Status       TurnStatus
	Err          error
}

// maxStreamRetries bounds reconnects after a transient model-stream
// failure mid-turn.
const maxStreamRetries = 1

// run generates the response for one finalized user turn, emitting
// speakable chunks with strictly increasing sequence numbers. It closes
// the chunks channel when no more text will be produced.
func (g *generator) run(ctx context.Context, turnID, userText, system string, history []llm.Message, marks *turnMarks, chunks chan<- ResponseChunk) turnResult {
	defer close(chunks)

	// Retrieval is issued before prompt assembly so the two overlap;
	// the bounded wait happens only once the rest of the prompt is
	// ready. A miss or timeout degrades the answer but never blocks
	// the turn.
	pending := g.startRetrieval(ctx, userText)

	messages := append(history, llm.NewUserMessage(userText))

	if snippets := g.awaitRetrieval(pending); len(snippets) > 0 {
		system += renderContext(snippets)
	}

	gctx, cancel := context.WithTimeout(ctx, g.cfg.GenerationTimeout)
	defer cancel()

	var (
		result   turnResult
		chunker  = NewChunker(g.cfg.MinChunkWords)
		seq      int
		segText  strings.Builder // assistant text since the last tool call
		executed = map[string]bool{}
		retries  int
	)

	emit := func(text string) {
		select {
		case chunks <- ResponseChunk{TurnID: turnID, Seq: seq, Text: text}:
			seq++
		case <-ctx.Done():
		}
	}

	req := &llm.Request{
		System:   system,
		Messages: messages,
		Tools:    g.registry.Definitions(),
	}

stream:
	for {
		stream, err := g.llm.Stream(gctx, req)
		if err != nil {
			fr := g.fail(turnID, gctx, &result, err, &retries)
			if fr.Status == "" {
				continue stream
			}
			return fr
		}

		recv := pump(stream)

		for {
			var res recvResult
			select {
			case res = <-recv:
			case <-gctx.Done():
				stream.Close()
				return g.timeout(turnID, &result)
			}

			if res.err != nil {
				stream.Close()
				fr := g.fail(turnID, gctx, &result, res.err, &retries)
				if fr.Status == "" {
					continue stream // transient, retry with same context
				}
				return fr
			}

			inc := res.inc
			switch {
			case inc.Done:
				stream.Close()
				if tail := chunker.Flush(); tail != "" {
					emit(tail)
				}
				result.Status = TurnCompleted
				return result

			case inc.ToolCall != nil:
				call := *inc.ToolCall

				// At-most-once: a stream retry may replay the call.
				if !executed[call.ID] {
					executed[call.ID] = true
					toolResult := g.registry.Execute(ctx, call)
					result.Tools = append(result.Tools, ToolInvocation{
						Name:      call.Name,
						Arguments: call.Arguments,
						Result:    toolResult.Content,
						IsError:   toolResult.IsError,
						Timestamp: time.Now(),
					})
					if toolResult.IsError {
						g.metrics.StageFailure(StageTool)
					}

					// Re-inject and continue generation on a fresh stream.
					req.Messages = append(req.Messages,
						llm.NewToolCallMessage(segText.String(), call),
						llm.NewToolResultMessage(toolResult),
					)
					segText.Reset()
				}
				stream.Close()
				continue stream

			case inc.Text != "":
				marks.MarkFirstToken()
				result.ResponseText += inc.Text
				segText.WriteString(inc.Text)
				for _, c := range chunker.Write(inc.Text) {
					emit(c)
				}
			}
		}
	}
}

// fail classifies a stream error: transient failures under the retry
// budget return an empty status (caller retries); anything else times
// out the turn.
func (g *generator) fail(turnID string, gctx context.Context, result *turnResult, err error, retries *int) turnResult {
	if gctx.Err() != nil {
		return g.timeout(turnID, result)
	}

	g.metrics.StageFailure(StageGeneration)
	if *retries < maxStreamRetries {
		*retries++
		g.logger.Warn("model stream failed, retrying",
			"turn", turnID, "attempt", *retries, "error", err)
		return turnResult{} // signal retry
	}

	g.logger.Error("generation failed past retry budget", "turn", turnID, "error", err)
	result.Status = TurnTimedOut
	result.Err = &TransientStageError{Stage: StageGeneration, Attempt: *retries + 1, Err: err}
	return *result
}

// timeout marks the turn aborted on the generation budget.
func (g *generator) timeout(turnID string, result *turnResult) turnResult {
	g.metrics.TurnTimedOut()
	g.logger.Error("generation exceeded budget", "turn", turnID, "budget", g.cfg.GenerationTimeout)
	result.Status = TurnTimedOut
	result.Err = &TimeoutError{Stage: StageGeneration, Budget: g.cfg.GenerationTimeout}
	return *result
}

// pendingRetrieval is an in-flight knowledge query.
type pendingRetrieval struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan retrievalOutcome
}

type retrievalOutcome struct {
	snippets []knowledge.Snippet
	err      error
}

// startRetrieval issues the knowledge query under its own deadline.
// Returns nil when no retriever is wired.
func (g *generator) startRetrieval(ctx context.Context, query string) *pendingRetrieval {
	if g.retriever == nil {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, g.cfg.RetrievalTimeout)
	p := &pendingRetrieval{ctx: rctx, cancel: cancel, ch: make(chan retrievalOutcome, 1)}
	go func() {
		s, err := g.retriever.Search(rctx, query, g.cfg.RetrievalTopK)
		p.ch <- retrievalOutcome{s, err}
	}()
	return p
}

// awaitRetrieval collects the query result, bounded by its deadline.
func (g *generator) awaitRetrieval(p *pendingRetrieval) []knowledge.Snippet {
	if p == nil {
		return nil
	}
	defer p.cancel()

	select {
	case out := <-p.ch:
		if out.err != nil {
			g.metrics.StageFailure(StageRetrieval)
			g.logger.Warn("retrieval failed, continuing without context", "error", out.err)
			return nil
		}
		return out.snippets
	case <-p.ctx.Done():
		g.metrics.StageFailure(StageRetrieval)
		g.logger.Warn("retrieval timed out, continuing without context",
			"budget", g.cfg.RetrievalTimeout)
		return nil
	}
}

// renderContext formats retrieved snippets for the system prompt.
func renderContext(snippets []knowledge.Snippet) string {
	var sb strings.Builder
	sb.WriteString("\n\nRelevant context for this question:")
	for _, s := range snippets {
		sb.WriteString(fmt.Sprintf("\nQ: %s\nA: %s", s.Question, s.Answer))
	}
	return sb.String()
}

// recvResult carries one stream read.
type recvResult struct {
	inc *llm.Increment
	err error
}

// pump reads a model stream into a channel so the consumer can select
// against the generation deadline.
func pump(stream llm.Stream) <-chan recvResult {
	ch := make(chan recvResult, 8)
	go func() {
		defer close(ch)
		for {
			inc, err := stream.Recv()
			ch <- recvResult{inc, err}
			if err != nil || inc.Done {
				return
			}
		}
	}()
	return ch
}
