package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/byteai/voiceline/pkg/llm"
	"github.com/byteai/voiceline/pkg/stt"
	"github.com/byteai/voiceline/pkg/tts"
)

func testScheduler(t *testing.T, maxSessions int) *Scheduler {
	t.Helper()
	cfg := testConfig()
	cfg.MaxSessions = maxSessions
	deps := testDeps(stt.NewMock(), tts.NewMock(), llm.NewMock(), &transferRecorder{})
	return NewScheduler(cfg, deps, "")
}

func TestAdmissionCapacityBoundary(t *testing.T) {
	sch := testScheduler(t, 10)

	for i := 0; i < 10; i++ {
		if _, err := sch.Admit(); err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
	}
	if sch.Active() != 10 {
		t.Fatalf("active = %d", sch.Active())
	}

	// The 11th call must be rejected synchronously, never hang.
	start := time.Now()
	_, err := sch.Admit()
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("admission check blocked for %s", elapsed)
	}

	var capErr *CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want CapacityExceededError", err)
	}
	if capErr.Active != 10 || capErr.Limit != 10 {
		t.Errorf("capacity error = %+v", capErr)
	}
}

func TestEvictFreesCapacity(t *testing.T) {
	sch := testScheduler(t, 1)

	s, err := sch.Admit()
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	go s.Run()

	if _, err := sch.Admit(); err == nil {
		t.Fatal("second admission should fail at capacity 1")
	}

	if !sch.Evict(s.ID) {
		t.Fatal("Evict returned false for active session")
	}
	<-s.Done()

	if s.Reason() != EndEvicted {
		t.Errorf("reason = %s", s.Reason())
	}
	if _, err := sch.Admit(); err != nil {
		t.Errorf("admission after eviction: %v", err)
	}
}

func TestEvictUnknownSession(t *testing.T) {
	sch := testScheduler(t, 1)
	if sch.Evict("nope") {
		t.Error("Evict should return false for unknown id")
	}
}

func TestSchedulerShutdownDrainsSessions(t *testing.T) {
	sch := testScheduler(t, 5)

	var sessions []*Session
	for i := 0; i < 3; i++ {
		s, err := sch.Admit()
		if err != nil {
			t.Fatalf("Admit: %v", err)
		}
		go s.Run()
		sessions = append(sessions, s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sch.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	for _, s := range sessions {
		select {
		case <-s.Done():
		default:
			t.Errorf("session %s still running after shutdown", s.ID)
		}
	}

	if _, err := sch.Admit(); err == nil {
		t.Error("admission should fail after shutdown")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetricsCollector()
	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded()
	m.TurnCompleted(800*time.Millisecond, nil)
	m.TurnCompleted(400*time.Millisecond, nil)
	m.StageFailure(StageSynthesis)
	m.Escalated()

	snap := m.Snapshot()
	if snap.ActiveSessions != 1 || snap.TotalSessions != 2 {
		t.Errorf("sessions = %d/%d", snap.ActiveSessions, snap.TotalSessions)
	}
	if snap.TurnsCompleted != 2 {
		t.Errorf("turns = %d", snap.TurnsCompleted)
	}
	if snap.AvgTurnLatency != 600*time.Millisecond {
		t.Errorf("avg latency = %s", snap.AvgTurnLatency)
	}
	if snap.LastTurnLatency != 400*time.Millisecond {
		t.Errorf("last latency = %s", snap.LastTurnLatency)
	}
	if snap.StageFailures[StageSynthesis] != 1 {
		t.Errorf("failures = %+v", snap.StageFailures)
	}
	if snap.Escalations != 1 {
		t.Errorf("escalations = %d", snap.Escalations)
	}
}

func TestMetricsStageMarks(t *testing.T) {
	marks := newTurnMarks()
	time.Sleep(5 * time.Millisecond)
	marks.MarkFirstToken()
	time.Sleep(5 * time.Millisecond)
	marks.MarkFirstAudio()

	firstToken, firstAudio := marks.snapshot()
	if firstToken <= 0 || firstAudio <= firstToken {
		t.Fatalf("marks out of order: token=%s audio=%s", firstToken, firstAudio)
	}

	// Later marks must not move the first.
	marks.MarkFirstToken()
	if ft, _ := marks.snapshot(); ft != firstToken {
		t.Errorf("first-token mark moved: %s -> %s", firstToken, ft)
	}

	m := NewMetricsCollector()
	m.TurnCompleted(20*time.Millisecond, marks)

	snap := m.Snapshot()
	if snap.AvgFirstTokenLatency != firstToken {
		t.Errorf("avg first token = %s, want %s", snap.AvgFirstTokenLatency, firstToken)
	}
	if snap.AvgFirstAudioLatency != firstAudio {
		t.Errorf("avg first audio = %s, want %s", snap.AvgFirstAudioLatency, firstAudio)
	}
}
