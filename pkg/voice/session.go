package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/byteai/voiceline/pkg/audio"
	"github.com/byteai/voiceline/pkg/tools"
)

// Session owns one phone call end to end: ingress audio, transcription,
// turn control, response generation, synthesis, egress audio. All
// dialogue state is mutated only by the session's own event loop.
type Session struct {
	ID        string
	CreatedAt time.Time

	// Ingress receives caller audio from the telephony gateway; Egress
	// carries synthesized audio back. Egress is closed when the session
	// ends.
	Ingress *audio.FrameChannel
	Egress  *audio.FrameChannel

	cfg     Config
	deps    Deps
	metrics *MetricsCollector
	logger  *slog.Logger

	controller *TurnController
	history    *History
	gate       *egressGate
	synth      *synthesizer
	gen        *generator
	trans      *transcriber

	systemPrompt string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	endReason EndReason

	onRelease func(id string)
}

func newSession(id string, cfg Config, deps Deps, metrics *MetricsCollector, systemPrompt string, onRelease func(string)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	logger := deps.Logger.With("component", "session", "session", id)

	ingress := audio.NewFrameChannel(audio.DefaultChannelCapacity)
	egress := audio.NewFrameChannel(audio.DefaultChannelCapacity)
	gate := newEgressGate(egress)

	s := &Session{
		ID:           id,
		CreatedAt:    time.Now(),
		Ingress:      ingress,
		Egress:       egress,
		cfg:          cfg,
		deps:         deps,
		metrics:      metrics,
		logger:       logger,
		controller:   NewTurnController(),
		history:      NewHistory(cfg.MaxHistoryTurns),
		gate:         gate,
		synth:        newSynthesizer(deps.TTS, gate, cfg.GenerationTimeout, metrics, logger),
		systemPrompt: systemPrompt,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		onRelease:    onRelease,
	}
	s.gen = &generator{
		llm:       deps.LLM,
		retriever: deps.Retriever,
		registry:  deps.Tools,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
	s.trans = newTranscriber(deps.STT, ingress, cfg.MaxSTTFailures, metrics, logger)
	return s
}

// Run drives the session until the call ends. It blocks; the telephony
// gateway calls it on its own goroutine.
func (s *Session) Run() {
	defer func() {
		s.controller.End(s.Reason())
		s.Egress.Close()
		s.metrics.SessionEnded()
		if s.onRelease != nil {
			s.onRelease(s.ID)
		}
		close(s.done)
		s.logger.Info("session ended", "reason", s.Reason(),
			"turns", s.history.Len(), "duration", time.Since(s.CreatedAt))
	}()

	s.logger.Info("session started")
	go s.trans.run(s.ctx)

	if s.cfg.Greeting != "" {
		s.speak("greeting", s.cfg.Greeting)
		s.history.Append(Turn{
			ID:           "greeting",
			ResponseText: s.cfg.Greeting,
			Status:       TurnCompleted,
			StartedAt:    s.CreatedAt,
			CompletedAt:  time.Now(),
		})
	}
	s.loop()
}

// loop is the single-goroutine event loop: transcription events, the
// silence timer, and cancellation. One timer is reset on every partial
// and stopped on finals, so the final-event and silence-timeout races
// collapse into a single source of turn endings.
func (s *Session) loop() {
	silence := time.NewTimer(s.cfg.SilenceTimeout)
	if !silence.Stop() {
		<-silence.C
	}
	silenceArmed := false
	disarm := func() {
		if silenceArmed && !silence.Stop() {
			<-silence.C
		}
		silenceArmed = false
	}

	var currentText string

	for {
		select {
		case ev, ok := <-s.trans.events:
			if !ok {
				s.End(EndCallerHangup)
				return
			}
			if ev.Fatal != nil {
				s.logger.Error("transcription failed past retry budget", "error", ev.Fatal)
				s.escalate(true)
				return
			}

			if ev.IsFinal {
				if ev.Text != "" {
					currentText = ev.Text
				}
				if s.controller.State() == StateIdle {
					// Final with no preceding partial in this loop pass.
					s.controller.OnPartial()
				}
				if s.controller.State() != StateListening {
					continue
				}
				disarm()
				if currentText == "" {
					s.controller.CancelUtterance()
					continue
				}
				s.runTurn(currentText)
				currentText = ""
			} else {
				if ev.Text == "" {
					continue
				}
				if s.controller.OnPartial() {
					currentText = ev.Text
					disarm()
					silence.Reset(s.cfg.SilenceTimeout)
					silenceArmed = true
				}
			}

		case <-silence.C:
			silenceArmed = false
			if s.controller.State() != StateListening {
				continue
			}
			// Prolonged silence is an implicit end of turn.
			if currentText == "" {
				s.controller.CancelUtterance()
				continue
			}
			s.runTurn(currentText)
			currentText = ""

		case <-s.ctx.Done():
			return
		}

		if s.controller.State() == StateEnding {
			return
		}
	}
}

// runTurn executes one full turn: finalize, generate, synthesize,
// commit, applying the failure policy on the way.
func (s *Session) runTurn(userText string) {
	if err := s.controller.OnUtteranceEnd(); err != nil {
		s.logger.Error("turn state error", "error", err)
		return
	}
	turnID, err := s.controller.StartGenerating()
	if err != nil {
		s.logger.Error("turn state error", "error", err)
		return
	}

	speechEnd := time.Now()
	marks := newTurnMarks()
	s.logger.Info("turn started", "turn", turnID, "text", userText)

	genChunks := make(chan ResponseChunk, 16)
	synthChunks := make(chan ResponseChunk, 16)
	s.gate.Activate(turnID)

	// The forwarder marks the generating-to-speaking transition on the
	// first speakable chunk. The session goroutine is blocked in gen.run
	// for the whole forwarding window, so the controller stays
	// single-writer.
	go func() {
		first := true
		for c := range genChunks {
			if first {
				first = false
				if err := s.controller.StartSpeaking(); err != nil {
					s.logger.Error("turn state error", "error", err)
				}
			}
			synthChunks <- c
		}
		close(synthChunks)
	}()

	synthDone := make(chan struct{})
	go func() {
		s.synth.run(s.ctx, marks, synthChunks)
		close(synthDone)
	}()

	ctx := tools.WithSessionID(s.ctx, s.ID)
	result := s.gen.run(ctx, turnID, userText, s.systemPrompt, s.history.Messages(), marks, genChunks)
	<-synthDone
	s.gate.Deactivate(turnID)

	turn := Turn{
		ID:           turnID,
		UserText:     userText,
		ResponseText: result.ResponseText,
		Tools:        result.Tools,
		Status:       result.Status,
		StartedAt:    speechEnd,
		CompletedAt:  time.Now(),
	}

	switch result.Status {
	case TurnCompleted:
		if escalated(result.Tools) {
			turn.Status = TurnEscalated
		}
		s.history.Append(turn)
		if err := s.controller.CompleteTurn(); err != nil {
			s.logger.Error("turn state error", "error", err)
		}
		s.metrics.TurnCompleted(time.Since(speechEnd), marks)
		s.logger.Info("turn completed", "turn", turnID,
			"latency", time.Since(speechEnd), "tools", len(result.Tools))

		if turn.Status == TurnEscalated {
			s.escalate(false)
		}

	case TurnTimedOut:
		s.history.Append(turn)
		s.logger.Warn("turn aborted", "turn", turnID, "error", result.Err)
		// Apologize, then hand the call to a human.
		s.speak(turnID+"-apology", s.cfg.ApologyText)
		s.escalate(false)
	}
}

// escalated reports whether the model successfully invoked the human
// handoff tool during the turn.
func escalated(invocations []ToolInvocation) bool {
	for _, inv := range invocations {
		if inv.Name == "escalate_to_human" && !inv.IsError {
			return true
		}
	}
	return false
}

// speak emits one fixed utterance outside turn generation.
func (s *Session) speak(id, text string) {
	if text == "" {
		return
	}
	s.gate.Activate(id)
	s.synth.speak(s.ctx, id, text)
	s.gate.Deactivate(id)
}

// escalate ends the session with a human handoff, optionally speaking
// the escalation notice first. Silent drops are never allowed; callers
// that already spoke a closing utterance pass speakNotice=false.
func (s *Session) escalate(speakNotice bool) {
	if speakNotice {
		s.speak("escalation", s.cfg.EscalationText)
	}
	s.metrics.Escalated()
	if s.deps.OnTransfer != nil {
		s.deps.OnTransfer(s.ID)
	}
	s.controller.End(EndEscalated)
	s.End(EndEscalated)
}

// End requests session termination. Safe to call from any goroutine;
// the first reason recorded wins.
func (s *Session) End(reason EndReason) {
	s.mu.Lock()
	if s.endReason == "" {
		s.endReason = reason
	}
	s.mu.Unlock()
	s.cancel()
}

// Reason returns the recorded end reason.
func (s *Session) Reason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason
}

// Done is closed when the session's Run loop has fully exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// History exposes committed turns for inspection.
func (s *Session) History() *History {
	return s.history
}

// State returns the turn controller state. Advisory: the value may be
// stale the moment it is read.
func (s *Session) State() State {
	return s.controller.State()
}
