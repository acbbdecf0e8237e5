package llm

import (
	"context"
	"sync"
)

// Mock implements Provider for testing. Each call to Stream consumes
// the next scripted increment sequence; requests are recorded.
type Mock struct {
	mu       sync.Mutex
	scripts  [][]Increment
	requests []*Request

	// StreamFunc overrides scripted behavior when set.
	StreamFunc func(ctx context.Context, req *Request) (Stream, error)
	// HealthFunc overrides Health when set.
	HealthFunc func(ctx context.Context) error
}

// NewMock creates a mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// Script appends an increment sequence to serve on a future Stream call.
// A Done increment is appended automatically if the sequence lacks one.
func (m *Mock) Script(incs ...Increment) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(incs) == 0 || !incs[len(incs)-1].Done {
		incs = append(incs, Increment{Done: true, StopReason: "end_turn"})
	}
	m.scripts = append(m.scripts, incs)
	return m
}

// ScriptText is shorthand for a text-only response split into chunks.
func (m *Mock) ScriptText(chunks ...string) *Mock {
	incs := make([]Increment, 0, len(chunks))
	for _, c := range chunks {
		incs = append(incs, Increment{Text: c})
	}
	return m.Script(incs...)
}

// Stream serves the next scripted sequence.
func (m *Mock) Stream(ctx context.Context, req *Request) (Stream, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	var incs []Increment
	if len(m.scripts) > 0 {
		incs = m.scripts[0]
		m.scripts = m.scripts[1:]
	} else {
		incs = []Increment{{Done: true, StopReason: "end_turn"}}
	}

	return &MockStream{incs: incs}, nil
}

// Health reports mock health.
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

// Requests returns a copy of all recorded requests.
func (m *Mock) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// MockStream replays a fixed increment sequence.
type MockStream struct {
	mu     sync.Mutex
	incs   []Increment
	pos    int
	closed bool

	// Err, if set, is returned after the scripted increments run out
	// instead of a Done increment.
	Err error
}

// Recv returns the next scripted increment.
func (s *MockStream) Recv() (*Increment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.pos >= len(s.incs) {
		if s.Err != nil {
			return nil, s.Err
		}
		return &Increment{Done: true, StopReason: "end_turn"}, nil
	}

	inc := s.incs[s.pos]
	s.pos++
	return &inc, nil
}

// Close marks the stream closed.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Verify mocks implement the interfaces at compile time.
var (
	_ Provider = (*Mock)(nil)
	_ Stream   = (*MockStream)(nil)
)
