package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler admits, tracks, and evicts concurrent sessions against the
// capacity limit. It is the only cross-session shared state.
type Scheduler struct {
	cfg     Config
	deps    Deps
	metrics *MetricsCollector
	logger  *slog.Logger

	// systemPrompt is the standing prompt shared by all sessions,
	// including any inlined knowledge base text.
	systemPrompt string

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewScheduler creates a scheduler with no active sessions.
func NewScheduler(cfg Config, deps Deps, systemPrompt string) *Scheduler {
	if systemPrompt == "" {
		systemPrompt = cfg.SystemPrompt
	}
	return &Scheduler{
		cfg:          cfg,
		deps:         deps,
		metrics:      NewMetricsCollector(),
		logger:       deps.Logger.With("component", "scheduler"),
		systemPrompt: systemPrompt,
		sessions:     make(map[string]*Session),
	}
}

// Admit creates a session for a new call. The capacity check is
// synchronous: a call beyond the limit gets CapacityExceededError
// immediately, never a silent hang. The caller runs the returned
// session's Run loop and feeds its Ingress channel.
func (sch *Scheduler) Admit() (*Session, error) {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	if sch.closed {
		return nil, &CapacityExceededError{Active: len(sch.sessions), Limit: 0}
	}
	if len(sch.sessions) >= sch.cfg.MaxSessions {
		sch.logger.Warn("admission rejected at capacity",
			"active", len(sch.sessions), "limit", sch.cfg.MaxSessions)
		return nil, &CapacityExceededError{
			Active: len(sch.sessions),
			Limit:  sch.cfg.MaxSessions,
		}
	}

	id := uuid.New().String()
	session := newSession(id, sch.cfg, sch.deps, sch.metrics, sch.systemPrompt, sch.release)
	sch.sessions[id] = session
	sch.metrics.SessionStarted()

	sch.logger.Info("session admitted", "session", id, "active", len(sch.sessions))
	return session, nil
}

// release removes an ended session from the active set.
func (sch *Scheduler) release(id string) {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	delete(sch.sessions, id)
}

// AtCapacity reports whether a new admission would be rejected right
// now. Advisory; Admit remains the authoritative check.
func (sch *Scheduler) AtCapacity() bool {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.closed || len(sch.sessions) >= sch.cfg.MaxSessions
}

// Get returns an active session by id, or nil.
func (sch *Scheduler) Get(id string) *Session {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.sessions[id]
}

// Active returns the current session count.
func (sch *Scheduler) Active() int {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return len(sch.sessions)
}

// Evict force-ends a session. Returns false if it was not active.
func (sch *Scheduler) Evict(id string) bool {
	sch.mu.Lock()
	session := sch.sessions[id]
	sch.mu.Unlock()

	if session == nil {
		return false
	}
	session.End(EndEvicted)
	return true
}

// Metrics returns a snapshot of the orchestrator counters.
func (sch *Scheduler) Metrics() Metrics {
	return sch.metrics.Snapshot()
}

// Shutdown stops admission, ends every active session, and waits for
// them to drain or the context to expire.
func (sch *Scheduler) Shutdown(ctx context.Context) error {
	sch.mu.Lock()
	sch.closed = true
	active := make([]*Session, 0, len(sch.sessions))
	for _, s := range sch.sessions {
		active = append(active, s)
	}
	sch.mu.Unlock()

	for _, s := range active {
		s.End(EndEvicted)
	}

	deadline := time.NewTimer(10 * time.Second)
	defer deadline.Stop()
	for _, s := range active {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			sch.logger.Warn("shutdown drain timed out", "remaining", sch.Active())
			return context.DeadlineExceeded
		}
	}
	return nil
}
