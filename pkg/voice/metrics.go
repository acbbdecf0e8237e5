package voice

import (
	"sync"
	"time"
)

// Metrics is a point-in-time snapshot of orchestrator counters, exposed
// for external observability tooling.
type Metrics struct {
	ActiveSessions  int            `json:"active_sessions"`
	TotalSessions   int            `json:"total_sessions"`
	TurnsCompleted  int            `json:"turns_completed"`
	TurnsTimedOut   int            `json:"turns_timed_out"`
	Escalations     int            `json:"escalations"`
	StageFailures   map[string]int `json:"stage_failures"`
	AvgTurnLatency  time.Duration  `json:"avg_turn_latency_ms"`
	LastTurnLatency time.Duration  `json:"last_turn_latency_ms"`

	// Stage latencies, measured from end of caller speech and averaged
	// over recent turns.
	AvgFirstTokenLatency time.Duration `json:"avg_first_token_latency_ms"`
	AvgFirstAudioLatency time.Duration `json:"avg_first_audio_latency_ms"`
}

// turnMarks records one turn's stage timestamps. End of caller speech
// is the reference point for every measurement.
type turnMarks struct {
	mu         sync.Mutex
	speechEnd  time.Time
	firstToken time.Duration
	firstAudio time.Duration
}

func newTurnMarks() *turnMarks {
	return &turnMarks{speechEnd: time.Now()}
}

// MarkFirstToken records the first model token. Later calls are no-ops.
func (t *turnMarks) MarkFirstToken() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstToken == 0 {
		t.firstToken = time.Since(t.speechEnd)
	}
}

// MarkFirstAudio records the first audio emitted toward the caller.
// Later calls are no-ops.
func (t *turnMarks) MarkFirstAudio() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstAudio == 0 {
		t.firstAudio = time.Since(t.speechEnd)
	}
}

func (t *turnMarks) snapshot() (firstToken, firstAudio time.Duration) {
	if t == nil {
		return 0, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firstToken, t.firstAudio
}

// MetricsCollector aggregates counters across sessions. Goroutine-safe.
type MetricsCollector struct {
	mu             sync.Mutex
	active         int
	total          int
	turnsCompleted int
	turnsTimedOut  int
	escalations    int
	stageFailures  map[string]int

	// recent turn latencies, capped for averaging
	latencies   []time.Duration
	firstTokens []time.Duration
	firstAudios []time.Duration
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		stageFailures: make(map[string]int),
		latencies:     make([]time.Duration, 0, 100),
	}
}

// SessionStarted records an admitted session.
func (m *MetricsCollector) SessionStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active++
	m.total++
}

// SessionEnded records a released session.
func (m *MetricsCollector) SessionEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active > 0 {
		m.active--
	}
}

// TurnCompleted records a committed turn: its end-of-speech to
// end-of-audio latency plus the stage marks gathered during the turn.
func (m *MetricsCollector) TurnCompleted(latency time.Duration, marks *turnMarks) {
	firstToken, firstAudio := marks.snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnsCompleted++
	m.latencies = appendCapped(m.latencies, latency)
	if firstToken > 0 {
		m.firstTokens = appendCapped(m.firstTokens, firstToken)
	}
	if firstAudio > 0 {
		m.firstAudios = appendCapped(m.firstAudios, firstAudio)
	}
}

func appendCapped(ring []time.Duration, d time.Duration) []time.Duration {
	ring = append(ring, d)
	if len(ring) > 100 {
		ring = ring[1:]
	}
	return ring
}

// TurnTimedOut records an aborted turn.
func (m *MetricsCollector) TurnTimedOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnsTimedOut++
}

// Escalated records a handoff to a human.
func (m *MetricsCollector) Escalated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations++
}

// StageFailure records one failure for a pipeline stage.
func (m *MetricsCollector) StageFailure(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageFailures[stage]++
}

// Snapshot returns a copy of all counters.
func (m *MetricsCollector) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	failures := make(map[string]int, len(m.stageFailures))
	for k, v := range m.stageFailures {
		failures[k] = v
	}

	snap := Metrics{
		ActiveSessions: m.active,
		TotalSessions:  m.total,
		TurnsCompleted: m.turnsCompleted,
		TurnsTimedOut:  m.turnsTimedOut,
		Escalations:    m.escalations,
		StageFailures:  failures,
	}

	if n := len(m.latencies); n > 0 {
		snap.LastTurnLatency = m.latencies[n-1]
		snap.AvgTurnLatency = average(m.latencies)
	}
	snap.AvgFirstTokenLatency = average(m.firstTokens)
	snap.AvgFirstAudioLatency = average(m.firstAudios)

	return snap
}

func average(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}
