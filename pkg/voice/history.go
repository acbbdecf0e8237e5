package voice

import (
	"time"

	"github.com/byteai/voiceline/pkg/llm"
)

// Utterance is one contiguous span of recognized caller speech. It is
// mutated only by the transcription loop and finalized exactly once.
type Utterance struct {
	ID          string
	Text        string
	Final       bool
	Confidence  float64
	StartedAt   time.Time
	FinalizedAt time.Time
}

// ToolInvocation records one tool call made during a turn. Append-only
// once issued.
type ToolInvocation struct {
	Name      string
	Arguments map[string]any
	Result    string
	IsError   bool
	Timestamp time.Time
}

// TurnStatus is the terminal status of a committed turn.
type TurnStatus string

const (
	TurnCompleted TurnStatus = "completed"
	TurnEscalated TurnStatus = "escalated"
	TurnTimedOut  TurnStatus = "timed-out"
)

// Turn is one committed user-to-agent exchange. Immutable once appended
// to history.
type Turn struct {
	ID           string
	UserText     string
	ResponseText string
	Tools        []ToolInvocation
	Status       TurnStatus
	StartedAt    time.Time
	CompletedAt  time.Time
}

// ResponseChunk is an incremental unit of response text or audio. Seq is
// strictly increasing within a turn; consumers discard chunks whose
// TurnID does not match the active turn.
type ResponseChunk struct {
	TurnID string
	Seq    int
	Text   string
	Audio  []byte
}

// History is the ordered sequence of committed turns for one session,
// bounded to maxTurns (oldest dropped past the cap). It is owned by the
// session loop; Messages snapshots are handed to generation so the live
// slice is never read while a request is in flight.
type History struct {
	turns    []Turn
	maxTurns int
}

// NewHistory creates a bounded history.
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &History{maxTurns: maxTurns}
}

// Append commits a turn, dropping the oldest past the cap.
func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
	if len(h.turns) > h.maxTurns {
		h.turns = h.turns[len(h.turns)-h.maxTurns:]
	}
}

// Len returns the number of committed turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Last returns the most recent turn, or nil.
func (h *History) Last() *Turn {
	if len(h.turns) == 0 {
		return nil
	}
	t := h.turns[len(h.turns)-1]
	return &t
}

// Messages renders the committed turns as model context. The returned
// slice is a fresh copy: appending new turns while a generation request
// holds it cannot change what the request sees.
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(h.turns)*2)
	for _, t := range h.turns {
		// Agent-initiated turns (the greeting) have no user side.
		if t.UserText != "" {
			out = append(out, llm.NewUserMessage(t.UserText))
		}
		if t.ResponseText != "" {
			out = append(out, llm.NewAssistantMessage(t.ResponseText))
		}
	}
	return out
}
