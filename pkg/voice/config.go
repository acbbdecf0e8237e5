package voice

import (
	"log/slog"
	"time"

	"github.com/byteai/voiceline/pkg/knowledge"
	"github.com/byteai/voiceline/pkg/llm"
	"github.com/byteai/voiceline/pkg/stt"
	"github.com/byteai/voiceline/pkg/tools"
	"github.com/byteai/voiceline/pkg/tts"
)

// Config holds orchestrator tuning knobs shared by all sessions.
type Config struct {
	// MaxSessions bounds concurrent calls on one worker.
	MaxSessions int

	// SilenceTimeout ends a turn when no new partials arrive.
	SilenceTimeout time.Duration

	// GenerationTimeout aborts a turn whose model response stalls.
	GenerationTimeout time.Duration

	// RetrievalTimeout bounds the wait for supporting context; past it
	// the turn proceeds without context.
	RetrievalTimeout time.Duration

	// RetrievalTopK is how many snippets to request per turn.
	RetrievalTopK int

	// MaxHistoryTurns caps conversation history handed to the model.
	MaxHistoryTurns int

	// MinChunkWords tunes speakable chunking.
	MinChunkWords int

	// MaxSTTFailures is the consecutive-failure threshold that escalates
	// a session.
	MaxSTTFailures int

	// SystemPrompt is the model's standing instructions. Knowledge base
	// text is appended at session start.
	SystemPrompt string

	// Greeting is spoken when the call connects.
	Greeting string

	// ApologyText is spoken when generation times out.
	ApologyText string

	// EscalationText is spoken before transferring to a human.
	EscalationText string
}

// DefaultConfig returns production defaults tuned for sub-second
// perceived response latency.
func DefaultConfig() Config {
	return Config{
		MaxSessions:       10,
		SilenceTimeout:    800 * time.Millisecond,
		GenerationTimeout: 10 * time.Second,
		RetrievalTimeout:  300 * time.Millisecond,
		RetrievalTopK:     3,
		MaxHistoryTurns:   20,
		MinChunkWords:     DefaultMinChunkWords,
		MaxSTTFailures:    3,
		SystemPrompt: "You are a helpful voice assistant answering phone calls for a business. " +
			"Keep responses brief and conversational, at most two short sentences. " +
			"Use the knowledge base to answer questions. Book appointments, look them up, " +
			"or escalate to a human using the tools when the caller asks.",
		Greeting:       "Hello! Thanks for calling. How can I help you today?",
		ApologyText:    "I'm sorry, I'm having trouble processing that right now. Let me transfer you to someone who can help.",
		EscalationText: "I'll connect you with a member of our team. Please hold for just a moment.",
	}
}

// Deps are the external collaborators one session pipeline is wired to.
type Deps struct {
	STT       stt.Provider
	TTS       tts.Provider
	LLM       llm.Provider
	Retriever knowledge.Retriever
	Tools     *tools.Registry
	Logger    *slog.Logger

	// OnTransfer is notified when a session escalates; the telephony
	// layer hands the call to a human.
	OnTransfer func(sessionID string)
}
