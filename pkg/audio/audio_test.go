package audio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/byteai/voiceline/pkg/audio"
)

func TestFrameDuration(t *testing.T) {
	t.Run("ulaw 20ms frame", func(t *testing.T) {
		f := audio.NewULawFrame(make([]byte, audio.ULawFrameSize))
		if f.Duration() != 20*time.Millisecond {
			t.Errorf("expected 20ms, got %v", f.Duration())
		}
	})

	t.Run("unknown format is zero", func(t *testing.T) {
		f := audio.Frame{Data: make([]byte, 100), Format: "mystery"}
		if f.Duration() != 0 {
			t.Errorf("expected 0, got %v", f.Duration())
		}
	})
}

func TestSilence(t *testing.T) {
	f := audio.Silence(100 * time.Millisecond)

	if len(f.Data) != 800 {
		t.Errorf("expected 800 samples, got %d", len(f.Data))
	}
	for i, b := range f.Data {
		if b != audio.ULawSilenceByte {
			t.Fatalf("sample %d is 0x%x, want 0x%x", i, b, audio.ULawSilenceByte)
		}
	}
	if f.Duration() != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", f.Duration())
	}
}

func TestFrameChannelOrdering(t *testing.T) {
	ch := audio.NewFrameChannel(10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := ch.Push(ctx, audio.NewULawFrame([]byte{byte(i)})); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		f, err := ch.Pull(ctx)
		if err != nil {
			t.Fatalf("pull %d: %v", i, err)
		}
		if f.Data[0] != byte(i) {
			t.Errorf("frame %d out of order: got %d", i, f.Data[0])
		}
	}
}

func TestFrameChannelClose(t *testing.T) {
	t.Run("push after close fails", func(t *testing.T) {
		ch := audio.NewFrameChannel(1)
		ch.Close()
		err := ch.Push(context.Background(), audio.NewULawFrame([]byte{1}))
		if !errors.Is(err, audio.ErrChannelClosed) {
			t.Errorf("expected ErrChannelClosed, got %v", err)
		}
	})

	t.Run("pull drains buffered frames after close", func(t *testing.T) {
		ch := audio.NewFrameChannel(2)
		ctx := context.Background()
		if err := ch.Push(ctx, audio.NewULawFrame([]byte{42})); err != nil {
			t.Fatal(err)
		}
		ch.Close()

		f, err := ch.Pull(ctx)
		if err != nil {
			t.Fatalf("expected buffered frame, got %v", err)
		}
		if f.Data[0] != 42 {
			t.Errorf("unexpected frame %v", f.Data)
		}

		_, err = ch.Pull(ctx)
		if !errors.Is(err, audio.ErrChannelClosed) {
			t.Errorf("expected ErrChannelClosed, got %v", err)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		ch := audio.NewFrameChannel(1)
		ch.Close()
		ch.Close()
		if !ch.Closed() {
			t.Error("expected channel closed")
		}
	})

	t.Run("pull unblocks on close", func(t *testing.T) {
		ch := audio.NewFrameChannel(1)
		done := make(chan error, 1)
		go func() {
			_, err := ch.Pull(context.Background())
			done <- err
		}()

		time.Sleep(10 * time.Millisecond)
		ch.Close()

		select {
		case err := <-done:
			if !errors.Is(err, audio.ErrChannelClosed) {
				t.Errorf("expected ErrChannelClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("pull did not unblock after close")
		}
	})
}

func TestFrameChannelContext(t *testing.T) {
	ch := audio.NewFrameChannel(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ch.Pull(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
