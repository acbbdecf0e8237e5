// Package stt provides a unified interface for streaming speech
// recognition providers.
//
// A provider accepts a lazy, unbounded sequence of audio frames for one
// call and produces an ordered sequence of transcription events. Events
// are either partial updates, superseding the previous partial, or
// final events that close the current span of speech.
//
// Example usage:
//
//	provider, _ := stt.NewDeepgram(
//	    stt.WithAPIKey(os.Getenv("STT_API_KEY")),
//	    stt.WithModel("nova-2"),
//	)
//	stream, _ := provider.OpenStream(ctx)
//	defer stream.Close()
//
//	go func() {
//	    for frame := range frames {
//	        stream.Send(frame)
//	    }
//	}()
//	for ev := range stream.Events() {
//	    // ev.Text, ev.IsFinal, ev.Err
//	}
package stt

import (
	"context"
	"time"
)

// Provider defines the streaming recognizer interface.
// All implementations must satisfy this interface for seamless provider
// switching.
type Provider interface {
	// OpenStream opens one streaming recognition session.
	// Each call session gets its own stream; streams are not restartable.
	OpenStream(ctx context.Context) (Stream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Stream is one live recognition session.
type Stream interface {
	// Send forwards an encoded audio frame to the recognizer.
	// Frames must be sent in capture order.
	Send(frame []byte) error

	// Events returns the ordered transcription event sequence.
	// The channel is closed after a terminal event (error or clean end).
	Events() <-chan Event

	// Close ends the session and releases the remote connection.
	Close() error
}

// Event is one transcription update from the recognizer.
type Event struct {
	// Text is the recognized text so far for the open speech span.
	Text string

	// IsFinal marks the event that closes the current speech span.
	IsFinal bool

	// Confidence is the recognizer's confidence in Text (0.0-1.0).
	Confidence float64

	// Timestamp is when the event was received.
	Timestamp time.Time

	// Err is set on a terminal error event. No further events follow.
	Err error
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Err != nil
}
