package voice

import "fmt"

// State is the turn controller's position in the dialogue cycle.
type State int

const (
	// StateIdle means no caller speech is in progress.
	StateIdle State = iota
	// StateListening means partial transcription is arriving.
	StateListening
	// StateFinalizing means the utterance just closed (final event or
	// silence timeout) and the turn is being handed to generation.
	StateFinalizing
	// StateGenerating means the response pipeline is active.
	StateGenerating
	// StateSpeaking means synthesized audio is streaming out.
	StateSpeaking
	// StateEnding is terminal: call end, escalation, or fatal failure.
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateFinalizing:
		return "finalizing"
	case StateGenerating:
		return "generating"
	case StateSpeaking:
		return "speaking"
	case StateEnding:
		return "ending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EndReason records why a session reached StateEnding.
type EndReason string

const (
	EndCallerHangup EndReason = "caller-hangup"
	EndEscalated    EndReason = "escalated"
	EndFatal        EndReason = "fatal-error"
	EndEvicted      EndReason = "evicted"
)

// TurnController is the per-session dialogue state machine. It is not
// goroutine-safe: only the owning session loop drives it.
type TurnController struct {
	state  State
	reason EndReason

	// utteranceSeq numbers utterances; turnSeq numbers committed turns.
	utteranceSeq int
	turnSeq      int
}

// NewTurnController starts in StateIdle.
func NewTurnController() *TurnController {
	return &TurnController{state: StateIdle}
}

// State returns the current state.
func (tc *TurnController) State() State {
	return tc.state
}

// EndReason returns the recorded end reason, empty unless StateEnding.
func (tc *TurnController) EndReason() EndReason {
	return tc.reason
}

// ErrInvalidTransition reports a transition the state machine forbids.
type ErrInvalidTransition struct {
	From  State
	Event string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: %s in state %s", e.Event, e.From)
}

// OnPartial handles a partial transcription event. In StateIdle it opens
// a new utterance and moves to StateListening, returning true. In
// StateListening it stays put, returning true (the silence timer should
// reset). In StateGenerating or StateSpeaking the caller is talking over
// the response: the event is not promoted and false is returned; the
// session buffers it until StateIdle.
func (tc *TurnController) OnPartial() bool {
	switch tc.state {
	case StateIdle:
		tc.utteranceSeq++
		tc.state = StateListening
		return true
	case StateListening:
		return true
	default:
		return false
	}
}

// CancelUtterance abandons an open utterance that produced no usable
// text, returning to StateIdle without starting a turn.
func (tc *TurnController) CancelUtterance() {
	if tc.state == StateListening {
		tc.state = StateIdle
	}
}

// OnUtteranceEnd closes the open utterance, on a final transcription
// event or on silence timeout, and moves to StateFinalizing.
func (tc *TurnController) OnUtteranceEnd() error {
	if tc.state != StateListening {
		return &ErrInvalidTransition{From: tc.state, Event: "utterance end"}
	}
	tc.state = StateFinalizing
	return nil
}

// StartGenerating hands the finalized text to the response pipeline and
// allocates the new turn's id.
func (tc *TurnController) StartGenerating() (turnID string, err error) {
	if tc.state != StateFinalizing {
		return "", &ErrInvalidTransition{From: tc.state, Event: "start generating"}
	}
	tc.turnSeq++
	tc.state = StateGenerating
	return fmt.Sprintf("turn-%d", tc.turnSeq), nil
}

// StartSpeaking marks the first speakable increment of the active turn.
func (tc *TurnController) StartSpeaking() error {
	if tc.state != StateGenerating {
		return &ErrInvalidTransition{From: tc.state, Event: "start speaking"}
	}
	tc.state = StateSpeaking
	return nil
}

// CompleteTurn returns to StateIdle after the turn's final audio is out.
// Turns that produce no speakable output complete from StateGenerating.
func (tc *TurnController) CompleteTurn() error {
	if tc.state != StateSpeaking && tc.state != StateGenerating {
		return &ErrInvalidTransition{From: tc.state, Event: "complete turn"}
	}
	tc.state = StateIdle
	return nil
}

// End moves to the terminal state from anywhere, recording the reason.
// The first reason wins.
func (tc *TurnController) End(reason EndReason) {
	if tc.state == StateEnding {
		return
	}
	tc.state = StateEnding
	tc.reason = reason
}

// UtteranceID returns the id for the currently open utterance.
func (tc *TurnController) UtteranceID() string {
	return fmt.Sprintf("utt-%d", tc.utteranceSeq)
}
