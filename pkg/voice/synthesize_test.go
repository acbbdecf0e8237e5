package voice

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/byteai/voiceline/pkg/audio"
	"github.com/byteai/voiceline/pkg/tts"
)

// textAudio makes each chunk's audio recognizable in the egress stream.
func textAudio(text string) tts.AudioStream {
	return tts.NewBufferStream([]byte("<"+text+">"), tts.AudioFormat{
		Encoding: tts.EncodingULaw, SampleRate: 8000, Channels: 1,
	})
}

func runSynth(t *testing.T, provider tts.Provider, chunks []ResponseChunk) []byte {
	t.Helper()

	egress := audio.NewFrameChannel(64)
	gate := newEgressGate(egress)
	gate.Activate("turn-1")
	s := newSynthesizer(provider, gate, time.Second, NewMetricsCollector(), discard())

	in := make(chan ResponseChunk, len(chunks))
	for _, c := range chunks {
		in <- c
	}
	close(in)
	s.run(context.Background(), nil, in)
	egress.Close()

	var out bytes.Buffer
	for {
		frame, err := egress.Pull(context.Background())
		if err != nil {
			break
		}
		out.Write(frame.Data)
	}
	return out.Bytes()
}

func TestSynthesisPreservesChunkOrder(t *testing.T) {
	mock := tts.NewMock()
	mock.StreamFunc = func(ctx context.Context, text string) (tts.AudioStream, error) {
		return textAudio(text), nil
	}

	out := string(runSynth(t, mock, []ResponseChunk{
		{TurnID: "turn-1", Seq: 0, Text: "one"},
		{TurnID: "turn-1", Seq: 1, Text: "two"},
		{TurnID: "turn-1", Seq: 2, Text: "three"},
	}))

	if out != "<one><two><three>" {
		t.Errorf("egress audio = %q", out)
	}
}

func TestSynthesisChunkFailureSubstitutesFallback(t *testing.T) {
	mock := tts.NewMock()
	mock.StreamFunc = func(ctx context.Context, text string) (tts.AudioStream, error) {
		if strings.Contains(text, "bad") {
			return nil, errors.New("synthesis unavailable")
		}
		return textAudio(text), nil
	}

	out := runSynth(t, mock, []ResponseChunk{
		{TurnID: "turn-1", Seq: 0, Text: "good start"},
		{TurnID: "turn-1", Seq: 1, Text: "bad middle"},
		{TurnID: "turn-1", Seq: 2, Text: "good end"},
	})

	s := string(out)
	if !strings.HasPrefix(s, "<good start>") || !strings.HasSuffix(s, "<good end>") {
		t.Errorf("surrounding chunks lost: %q", s)
	}
	// The failed chunk became fallback silence, not an aborted turn.
	if len(out) <= len("<good start><good end>") {
		t.Error("no fallback audio substituted for the failed chunk")
	}
	if strings.Contains(s, "bad") {
		t.Error("failed chunk audio leaked through")
	}
}

// wedgedStream blocks Read until Close, like a synthesis connection
// that stops delivering audio without erroring.
type wedgedStream struct {
	once   sync.Once
	closed chan struct{}
}

func newWedgedStream() *wedgedStream {
	return &wedgedStream{closed: make(chan struct{})}
}

func (w *wedgedStream) Read() ([]byte, error) {
	<-w.closed
	return nil, tts.ErrStreamClosed
}

func (w *wedgedStream) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}

func (w *wedgedStream) Format() tts.AudioFormat {
	return tts.AudioFormat{Encoding: tts.EncodingULaw, SampleRate: 8000, Channels: 1}
}

func TestSynthesisStalledStreamFallsBack(t *testing.T) {
	mock := tts.NewMock()
	mock.StreamFunc = func(ctx context.Context, text string) (tts.AudioStream, error) {
		return newWedgedStream(), nil
	}

	egress := audio.NewFrameChannel(64)
	gate := newEgressGate(egress)
	gate.Activate("turn-1")
	s := newSynthesizer(mock, gate, 100*time.Millisecond, NewMetricsCollector(), discard())

	in := make(chan ResponseChunk, 1)
	in <- ResponseChunk{TurnID: "turn-1", Seq: 0, Text: "hello there caller"}
	close(in)

	done := make(chan struct{})
	go func() {
		s.run(context.Background(), nil, in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("synthesizer did not abandon the stalled stream")
	}

	egress.Close()
	frame, err := egress.Pull(context.Background())
	if err != nil {
		t.Fatal("no fallback audio emitted for the stalled chunk")
	}
	if len(frame.Data) == 0 {
		t.Error("fallback frame is empty")
	}
}

func TestEgressGateDropsStaleTurns(t *testing.T) {
	egress := audio.NewFrameChannel(8)
	gate := newEgressGate(egress)

	gate.Activate("turn-2")
	if gate.Push(context.Background(), "turn-1", []byte{1}) {
		t.Error("stale turn audio was accepted")
	}
	if !gate.Push(context.Background(), "turn-2", []byte{2}) {
		t.Error("active turn audio was rejected")
	}

	gate.Deactivate("turn-2")
	if gate.Push(context.Background(), "turn-2", []byte{3}) {
		t.Error("audio accepted after deactivation")
	}

	if egress.Len() != 1 {
		t.Errorf("egress frames = %d, want 1", egress.Len())
	}
}
