package voice

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/byteai/voiceline/pkg/audio"
	"github.com/byteai/voiceline/pkg/tts"
)

// egressGate owns the session's outbound audio channel and enforces the
// stale-chunk guard: only audio tagged with the active turn id reaches
// the caller. Cancellation flips the active turn to empty, so increments
// from a cancelled turn are dropped rather than spoken.
type egressGate struct {
	mu      sync.Mutex
	channel *audio.FrameChannel
	active  string
}

func newEgressGate(channel *audio.FrameChannel) *egressGate {
	return &egressGate{channel: channel}
}

// Activate marks turnID as the one allowed to emit audio.
func (g *egressGate) Activate(turnID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = turnID
}

// Deactivate drops all further audio for turnID.
func (g *egressGate) Deactivate(turnID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == turnID {
		g.active = ""
	}
}

// Push emits one audio increment if its turn is still active. Returns
// false when the increment was dropped as stale.
func (g *egressGate) Push(ctx context.Context, turnID string, data []byte) bool {
	g.mu.Lock()
	ok := g.active == turnID
	g.mu.Unlock()
	if !ok {
		return false
	}

	if err := g.channel.Push(ctx, audio.NewULawFrame(data)); err != nil {
		return false
	}
	return true
}

// synthJob is one chunk's synthesis in flight. Jobs are queued in chunk
// order; audio for job N drains fully before job N+1's, even though
// N+1's synthesis starts while N is still streaming out.
type synthJob struct {
	chunk  ResponseChunk
	stream tts.AudioStream
	err    error
}

// synthesizer turns speakable text chunks into ordered caller audio.
// Each chunk's synthesis shares the turn's generation budget: a stream
// that stalls past the timeout is abandoned and the chunk falls back to
// silence, so a wedged provider cannot hold the turn open.
type synthesizer struct {
	provider tts.Provider
	gate     *egressGate
	timeout  time.Duration
	metrics  *MetricsCollector
	logger   *slog.Logger
}

func newSynthesizer(provider tts.Provider, gate *egressGate, timeout time.Duration, metrics *MetricsCollector, logger *slog.Logger) *synthesizer {
	if timeout <= 0 {
		timeout = DefaultConfig().GenerationTimeout
	}
	return &synthesizer{provider: provider, gate: gate, timeout: timeout, metrics: metrics, logger: logger}
}

// run consumes the turn's text chunks and emits their audio in order.
// It returns once all audio for the turn has been emitted (or dropped as
// stale). A per-chunk synthesis failure substitutes fallback silence and
// the turn continues.
func (s *synthesizer) run(ctx context.Context, marks *turnMarks, chunks <-chan ResponseChunk) {
	queue := make(chan *synthJob, 8)

	// Opening streams ahead of the drain gives pipelined overlap.
	go func() {
		defer close(queue)
		for chunk := range chunks {
			job := &synthJob{chunk: chunk}
			job.stream, job.err = s.provider.Stream(ctx, chunk.Text)

			select {
			case queue <- job:
			case <-ctx.Done():
				if job.stream != nil {
					job.stream.Close()
				}
				return
			}
		}
	}()

	for job := range queue {
		s.drain(ctx, marks, job)
	}
}

// drain streams one chunk's audio to the egress gate.
func (s *synthesizer) drain(ctx context.Context, marks *turnMarks, job *synthJob) {
	if job.err != nil {
		s.fallback(ctx, marks, job.chunk, job.err)
		return
	}
	defer job.stream.Close()

	// Read has no deadline of its own; closing the stream when the
	// chunk budget expires unblocks it with an error.
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(dctx, func() { job.stream.Close() })
	defer stop()

	emitted := false
	for {
		data, err := job.stream.Read()
		if err != nil {
			if dctx.Err() != nil {
				s.logger.Warn("synthesis stream stalled, abandoning chunk",
					"turn", job.chunk.TurnID, "seq", job.chunk.Seq, "timeout", s.timeout)
			} else {
				s.logger.Warn("synthesis stream error mid-chunk",
					"turn", job.chunk.TurnID, "seq", job.chunk.Seq, "error", err)
			}
			s.metrics.StageFailure(StageSynthesis)
			if !emitted {
				s.fallbackAudio(ctx, marks, job.chunk)
			}
			return
		}
		if data == nil {
			return
		}
		emitted = true
		if !s.gate.Push(ctx, job.chunk.TurnID, data) {
			// Turn cancelled; stop reading so the remote stream is freed.
			return
		}
		marks.MarkFirstAudio()
	}
}

// fallback logs a chunk failure and substitutes silence.
func (s *synthesizer) fallback(ctx context.Context, marks *turnMarks, chunk ResponseChunk, err error) {
	s.logger.Warn("synthesis failed for chunk, substituting fallback audio",
		"turn", chunk.TurnID, "seq", chunk.Seq, "error", err)
	s.metrics.StageFailure(StageSynthesis)
	s.fallbackAudio(ctx, marks, chunk)
}

// fallbackAudio pushes silence sized to the chunk's estimated speech
// duration so turn pacing survives the failure.
func (s *synthesizer) fallbackAudio(ctx context.Context, marks *turnMarks, chunk ResponseChunk) {
	d := time.Duration(len(strings.Fields(chunk.Text))) * 400 * time.Millisecond
	if d < 500*time.Millisecond {
		d = 500 * time.Millisecond
	}
	frame := audio.Silence(d)
	if s.gate.Push(ctx, chunk.TurnID, frame.Data) {
		marks.MarkFirstAudio()
	}
}

// speak synthesizes one fixed utterance (greeting, apology, escalation
// notice) outside a generated turn, under the given turn id.
func (s *synthesizer) speak(ctx context.Context, turnID, text string) {
	chunks := make(chan ResponseChunk, 1)
	chunks <- ResponseChunk{TurnID: turnID, Seq: 0, Text: text}
	close(chunks)
	s.run(ctx, nil, chunks)
}
