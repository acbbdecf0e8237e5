package knowledge

import (
	"context"
	"sync"
	"time"
)

// MockRetriever implements Retriever for testing.
type MockRetriever struct {
	mu      sync.Mutex
	queries []string

	// Snippets are returned from every Search call.
	Snippets []Snippet
	// Err, if set, is returned instead.
	Err error
	// Delay is waited before returning, honoring ctx cancellation.
	Delay time.Duration
}

// Search records the query and returns the configured snippets.
func (m *MockRetriever) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if topK < len(m.Snippets) {
		return m.Snippets[:topK], nil
	}
	return m.Snippets, nil
}

// Queries returns a copy of all recorded queries.
func (m *MockRetriever) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

var _ Retriever = (*MockRetriever)(nil)
