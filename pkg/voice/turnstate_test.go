package voice

import "testing"

func TestTurnLifecycle(t *testing.T) {
	tc := NewTurnController()

	if tc.State() != StateIdle {
		t.Fatalf("initial state = %s", tc.State())
	}

	if !tc.OnPartial() {
		t.Fatal("first partial should open an utterance")
	}
	if tc.State() != StateListening {
		t.Fatalf("state after partial = %s", tc.State())
	}

	// Further partials stay in listening.
	if !tc.OnPartial() {
		t.Fatal("partial while listening should be accepted")
	}
	if tc.State() != StateListening {
		t.Fatalf("state = %s", tc.State())
	}

	if err := tc.OnUtteranceEnd(); err != nil {
		t.Fatalf("OnUtteranceEnd: %v", err)
	}
	if tc.State() != StateFinalizing {
		t.Fatalf("state = %s", tc.State())
	}

	turnID, err := tc.StartGenerating()
	if err != nil {
		t.Fatalf("StartGenerating: %v", err)
	}
	if turnID != "turn-1" {
		t.Errorf("turn id = %q", turnID)
	}

	if err := tc.StartSpeaking(); err != nil {
		t.Fatalf("StartSpeaking: %v", err)
	}
	if err := tc.CompleteTurn(); err != nil {
		t.Fatalf("CompleteTurn: %v", err)
	}
	if tc.State() != StateIdle {
		t.Fatalf("state after complete = %s", tc.State())
	}
}

func TestFinalizeExactlyOncePerUtterance(t *testing.T) {
	tc := NewTurnController()

	tc.OnPartial()
	if err := tc.OnUtteranceEnd(); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	// A second finalize for the same utterance must be rejected, and the
	// controller must not re-enter listening.
	if err := tc.OnUtteranceEnd(); err == nil {
		t.Fatal("second finalize should fail")
	}
	if tc.OnPartial() {
		t.Fatal("partial during finalizing should not be promoted")
	}
	if tc.State() != StateFinalizing {
		t.Fatalf("state = %s", tc.State())
	}
}

func TestPartialsIgnoredWhileResponding(t *testing.T) {
	tc := NewTurnController()

	tc.OnPartial()
	tc.OnUtteranceEnd()
	tc.StartGenerating()

	if tc.OnPartial() {
		t.Error("partial during generating should not be promoted")
	}
	tc.StartSpeaking()
	if tc.OnPartial() {
		t.Error("partial during speaking should not be promoted")
	}
}

func TestCompleteWithoutSpeech(t *testing.T) {
	tc := NewTurnController()

	tc.OnPartial()
	tc.OnUtteranceEnd()
	tc.StartGenerating()

	// A turn with no speakable output completes from generating.
	if err := tc.CompleteTurn(); err != nil {
		t.Fatalf("CompleteTurn from generating: %v", err)
	}
	if tc.State() != StateIdle {
		t.Fatalf("state = %s", tc.State())
	}
}

func TestEndFromAnyState(t *testing.T) {
	for _, setup := range []func(*TurnController){
		func(tc *TurnController) {},
		func(tc *TurnController) { tc.OnPartial() },
		func(tc *TurnController) { tc.OnPartial(); tc.OnUtteranceEnd() },
		func(tc *TurnController) { tc.OnPartial(); tc.OnUtteranceEnd(); tc.StartGenerating() },
	} {
		tc := NewTurnController()
		setup(tc)
		tc.End(EndCallerHangup)
		if tc.State() != StateEnding {
			t.Errorf("state = %s, want ending", tc.State())
		}
		// First reason wins.
		tc.End(EndEscalated)
		if tc.EndReason() != EndCallerHangup {
			t.Errorf("reason = %s", tc.EndReason())
		}
	}
}

func TestCancelUtterance(t *testing.T) {
	tc := NewTurnController()
	tc.OnPartial()
	tc.CancelUtterance()
	if tc.State() != StateIdle {
		t.Fatalf("state = %s", tc.State())
	}
	// Next utterance gets a fresh id.
	tc.OnPartial()
	if got := tc.UtteranceID(); got != "utt-2" {
		t.Errorf("utterance id = %q", got)
	}
}

func TestTurnIDsAreSequential(t *testing.T) {
	tc := NewTurnController()
	for i := 1; i <= 3; i++ {
		tc.OnPartial()
		tc.OnUtteranceEnd()
		id, err := tc.StartGenerating()
		if err != nil {
			t.Fatalf("StartGenerating: %v", err)
		}
		want := map[int]string{1: "turn-1", 2: "turn-2", 3: "turn-3"}[i]
		if id != want {
			t.Errorf("turn id = %q, want %q", id, want)
		}
		tc.CompleteTurn()
	}
}
