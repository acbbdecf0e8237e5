package stt

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
// Each OpenStream returns a MockStream fed by the test through Emit.
type Mock struct {
	// OpenStreamFunc overrides OpenStream when set.
	OpenStreamFunc func(ctx context.Context) (Stream, error)

	// HealthFunc is called when Health is invoked. If nil, returns nil.
	HealthFunc func(ctx context.Context) error

	mu      sync.Mutex
	streams []*MockStream
	opens   int
}

// NewMock creates a mock recognizer provider.
func NewMock() *Mock {
	return &Mock{}
}

// OpenStream returns a new MockStream (or calls OpenStreamFunc).
func (m *Mock) OpenStream(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	m.opens++
	m.mu.Unlock()

	if m.OpenStreamFunc != nil {
		return m.OpenStreamFunc(ctx)
	}

	s := NewMockStream()
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

// Health calls HealthFunc or returns nil.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close releases nothing.
func (m *Mock) Close() error {
	return nil
}

// OpenCount returns how many streams were opened.
func (m *Mock) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Streams returns all streams opened so far.
func (m *Mock) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockStream, len(m.streams))
	copy(out, m.streams)
	return out
}

// MockStream is a scriptable recognition stream.
type MockStream struct {
	events chan Event

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

// NewMockStream creates an open mock stream.
func NewMockStream() *MockStream {
	return &MockStream{
		events: make(chan Event, 64),
	}
}

// Send records the frame.
func (s *MockStream) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.sent = append(s.sent, cp)
	return nil
}

// Events returns the scripted event sequence.
func (s *MockStream) Events() <-chan Event {
	return s.events
}

// Close marks the stream closed and ends the event sequence.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Emit delivers a transcription event to the consumer.
// Use EmitError for terminal failures.
func (s *MockStream) Emit(text string, isFinal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- Event{
		Text:       text,
		IsFinal:    isFinal,
		Confidence: 0.95,
		Timestamp:  time.Now(),
	}
}

// EmitError delivers a terminal error event and ends the stream.
func (s *MockStream) EmitError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- Event{Err: err, Timestamp: time.Now()}
	s.closed = true
	close(s.events)
}

// SentFrames returns every frame sent so far.
func (s *MockStream) SentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// Verify interfaces at compile time.
var (
	_ Provider = (*Mock)(nil)
	_ Stream   = (*MockStream)(nil)
)
