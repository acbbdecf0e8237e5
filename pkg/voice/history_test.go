package voice

import (
	"testing"
	"time"
)

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(Turn{ID: string(rune('a' + i)), UserText: "hi", Status: TurnCompleted})
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	if h.Last().ID != "e" {
		t.Errorf("last turn = %q", h.Last().ID)
	}
}

func TestHistoryMessagesSnapshotIsolation(t *testing.T) {
	h := NewHistory(10)
	h.Append(Turn{UserText: "hello", ResponseText: "hi there", Status: TurnCompleted})

	snapshot := h.Messages()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot len = %d", len(snapshot))
	}

	// Appending while a generation request holds the snapshot must not
	// change what that request sees.
	h.Append(Turn{UserText: "book me in", ResponseText: "sure", Status: TurnCompleted})
	if len(snapshot) != 2 {
		t.Errorf("snapshot mutated: len = %d", len(snapshot))
	}
	if snapshot[0].Content != "hello" || snapshot[1].Content != "hi there" {
		t.Errorf("snapshot contents changed: %+v", snapshot)
	}
}

func TestHistoryMessagesSkipEmptyResponse(t *testing.T) {
	h := NewHistory(10)
	h.Append(Turn{UserText: "hello", Status: TurnTimedOut, CompletedAt: time.Now()})

	msgs := h.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want user message only", len(msgs))
	}
}

func TestHistoryMessagesAgentInitiatedTurn(t *testing.T) {
	h := NewHistory(10)
	h.Append(Turn{ID: "greeting", ResponseText: "Hello! How can I help?", Status: TurnCompleted})
	h.Append(Turn{UserText: "what are your hours", ResponseText: "Nine to five.", Status: TurnCompleted})

	msgs := h.Messages()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want assistant + user + assistant", len(msgs))
	}
	if msgs[0].Role != "assistant" || msgs[1].Role != "user" {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
}
