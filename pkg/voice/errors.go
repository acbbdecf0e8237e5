package voice

import (
	"fmt"
	"time"
)

// Stage names used in error reporting and failure counters.
const (
	StageTranscription = "transcription"
	StageGeneration    = "generation"
	StageSynthesis     = "synthesis"
	StageRetrieval     = "retrieval"
	StageTool          = "tool"
)

// TransientStageError is a recoverable stage failure (connection drop,
// provider hiccup). The stage retries up to its budget before the error
// propagates to the session.
type TransientStageError struct {
	Stage   string
	Attempt int
	Err     error
}

func (e *TransientStageError) Error() string {
	return fmt.Sprintf("%s: transient failure (attempt %d): %v", e.Stage, e.Attempt, e.Err)
}

func (e *TransientStageError) Unwrap() error {
	return e.Err
}

// TimeoutError is a stage exceeding its latency budget.
type TimeoutError struct {
	Stage  string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: exceeded %s budget", e.Stage, e.Budget)
}

// CapacityExceededError is returned synchronously by the scheduler when
// admission would exceed the session limit.
type CapacityExceededError struct {
	Active int
	Limit  int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("at capacity: %d of %d sessions active", e.Active, e.Limit)
}

// FatalSessionError is unrecoverable and forces the session to end with
// the recorded reason.
type FatalSessionError struct {
	Reason EndReason
	Err    error
}

func (e *FatalSessionError) Error() string {
	return fmt.Sprintf("fatal session error (%s): %v", e.Reason, e.Err)
}

func (e *FatalSessionError) Unwrap() error {
	return e.Err
}
