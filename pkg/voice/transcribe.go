package voice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/byteai/voiceline/pkg/audio"
	"github.com/byteai/voiceline/pkg/stt"
)

// transcriptEvent is what the transcription loop hands to the session
// event loop.
type transcriptEvent struct {
	Text       string
	IsFinal    bool
	Confidence float64
	Timestamp  time.Time

	// Fatal is set when the recognizer failed past the retry budget and
	// the session must apply the escalation policy.
	Fatal error
}

// transcriber feeds caller audio to the streaming recognizer and
// forwards its events. A dropped recognizer connection is retried once
// with a fresh stream; repeated consecutive failures become fatal.
type transcriber struct {
	provider stt.Provider
	ingress  *audio.FrameChannel
	events   chan transcriptEvent
	metrics  *MetricsCollector
	logger   *slog.Logger

	maxFailures int
	failures    int // consecutive
}

func newTranscriber(provider stt.Provider, ingress *audio.FrameChannel, maxFailures int, metrics *MetricsCollector, logger *slog.Logger) *transcriber {
	return &transcriber{
		provider:    provider,
		ingress:     ingress,
		events:      make(chan transcriptEvent, 64),
		metrics:     metrics,
		logger:      logger,
		maxFailures: maxFailures,
	}
}

// run pumps audio into recognizer streams until the context ends or the
// failure budget is spent. It closes the events channel on return.
func (t *transcriber) run(ctx context.Context) {
	defer close(t.events)

	for ctx.Err() == nil {
		err := t.runStream(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		t.failures++
		t.metrics.StageFailure(StageTranscription)
		t.logger.Warn("recognizer stream failed",
			"consecutive_failures", t.failures, "error", err)

		if t.failures >= t.maxFailures {
			t.events <- transcriptEvent{Fatal: &TransientStageError{
				Stage:   StageTranscription,
				Attempt: t.failures,
				Err:     err,
			}}
			return
		}
		// Retry with a fresh connection.
	}
}

// runStream drives one recognizer connection to completion. A nil
// return means the audio source ended cleanly.
func (t *transcriber) runStream(ctx context.Context) error {
	stream, err := t.provider.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	// Pump frames until the ingress channel closes or ctx ends.
	pumpDone := make(chan error, 1)
	go func() {
		for {
			frame, err := t.ingress.Pull(ctx)
			if err != nil {
				pumpDone <- err
				return
			}
			if err := stream.Send(frame.Data); err != nil {
				pumpDone <- err
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				// Remote closed without a terminal error event.
				select {
				case err := <-pumpDone:
					if errors.Is(err, audio.ErrChannelClosed) {
						return nil
					}
					return err
				default:
					return nil
				}
			}
			if ev.Err != nil {
				return ev.Err
			}

			// A usable event clears the consecutive failure count.
			t.failures = 0

			select {
			case t.events <- transcriptEvent{
				Text:       ev.Text,
				IsFinal:    ev.IsFinal,
				Confidence: ev.Confidence,
				Timestamp:  ev.Timestamp,
			}:
			case <-ctx.Done():
				return nil
			}

		case err := <-pumpDone:
			// Audio source gone: clean end of transcription.
			if errors.Is(err, audio.ErrChannelClosed) || ctx.Err() != nil {
				return nil
			}
			return err

		case <-ctx.Done():
			return nil
		}
	}
}
