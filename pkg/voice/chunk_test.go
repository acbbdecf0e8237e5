package voice

import (
	"reflect"
	"testing"
)

func TestChunkerSentenceBoundary(t *testing.T) {
	c := NewChunker(3)

	chunks := c.Write("Hello there. How can I help you today?")
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0] != "Hello there." {
		t.Errorf("first chunk = %q, want %q", chunks[0], "Hello there.")
	}
}

func TestChunkerMinWordsBeforeBoundary(t *testing.T) {
	c := NewChunker(3)

	// Streamed word by word with no sentence end: the chunker must not
	// wait for the full response, and must not emit single words.
	var chunks []string
	for _, piece := range []string{"our ", "office ", "is ", "open ", "every ", "weekday"} {
		chunks = append(chunks, c.Write(piece)...)
	}
	if len(chunks) == 0 {
		t.Fatal("expected emission before response completion")
	}
	for _, ch := range chunks {
		if len(ch) == 0 {
			t.Error("empty chunk emitted")
		}
	}
	// Remaining text arrives on flush.
	tail := c.Flush()
	got := ""
	for _, ch := range chunks {
		got += ch + " "
	}
	got += tail
	if got != "our office is open every weekday" {
		t.Errorf("reassembled = %q", got)
	}
}

func TestChunkerFlushRemainder(t *testing.T) {
	c := NewChunker(3)

	chunks := c.Write("Sure")
	if len(chunks) != 0 {
		t.Errorf("premature emission: %v", chunks)
	}
	if got := c.Flush(); got != "Sure" {
		t.Errorf("Flush = %q, want %q", got, "Sure")
	}
	if got := c.Flush(); got != "" {
		t.Errorf("second Flush = %q, want empty", got)
	}
}

func TestChunkerMultipleSentences(t *testing.T) {
	c := NewChunker(3)

	chunks := c.Write("Yes. We open at nine. Closed on weekends.\n")
	want := []string{"Yes.", "We open at nine.", "Closed on weekends."}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("chunks = %v, want %v", chunks, want)
	}
}

func TestChunkerQuestionAndExclamation(t *testing.T) {
	c := NewChunker(3)

	chunks := c.Write("Great! Anything else? ")
	want := []string{"Great!", "Anything else?"}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("chunks = %v, want %v", chunks, want)
	}
}
