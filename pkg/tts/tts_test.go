package tts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/byteai/voiceline/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != 8000 {
			t.Errorf("expected 8000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Stream returns audio stream", func(t *testing.T) {
		stream, err := mock.Stream(ctx, "Test stream")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer stream.Close()

		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
		if len(chunk) == 0 {
			t.Error("expected audio chunk")
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", mock.CallCount("Synthesize"))
		}
		if mock.CallCount("Stream") != 1 {
			t.Errorf("expected 1 Stream call, got %d", mock.CallCount("Stream"))
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	if _, err := mock.Synthesize(ctx, "Hello"); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
	if _, err := mock.Stream(ctx, "Hello"); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
	if err := mock.Health(ctx); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
}

func TestBufferStream(t *testing.T) {
	data := make([]byte, 3000)
	stream := tts.NewBufferStream(data, tts.AudioFormat{
		Encoding:   tts.EncodingULaw,
		SampleRate: 8000,
		Channels:   1,
	})

	var total int
	var reads int
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
		if chunk == nil {
			break
		}
		total += len(chunk)
		reads++
	}

	if total != 3000 {
		t.Errorf("expected 3000 bytes total, got %d", total)
	}
	if reads != 3 {
		t.Errorf("expected 3 reads, got %d", reads)
	}

	t.Run("read after close fails", func(t *testing.T) {
		stream.Close()
		if _, err := stream.Read(); !errors.Is(err, tts.ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("empty chain rejected", func(t *testing.T) {
		if _, err := tts.NewChain(); !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("falls through to second provider", func(t *testing.T) {
		failing := tts.WithError(errors.New("down"))
		working := tts.NewMock()
		chain, err := tts.NewChain(failing, working)
		if err != nil {
			t.Fatal(err)
		}

		result, err := chain.Synthesize(ctx, "hi")
		if err != nil {
			t.Fatalf("expected fallback success, got %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio from fallback provider")
		}
		if working.CallCount("Synthesize") != 1 {
			t.Error("expected fallback provider to be called")
		}
	})

	t.Run("aggregates errors when all fail", func(t *testing.T) {
		chain, err := tts.NewChain(
			tts.WithError(errors.New("one")),
			tts.WithError(errors.New("two")),
		)
		if err != nil {
			t.Fatal(err)
		}

		_, err = chain.Stream(ctx, "hi")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %v", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
		}
	})
}

func TestConfigValidation(t *testing.T) {
	t.Run("Validate requires API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		if err := cfg.Validate(); !errors.Is(err, tts.ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("ValidateWithVoice requires voice", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.Apply(tts.WithAPIKey("key"))
		if err := cfg.ValidateWithVoice(); !errors.Is(err, tts.ErrNoVoiceID) {
			t.Errorf("expected ErrNoVoiceID, got %v", err)
		}
	})

	t.Run("telephony defaults", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		if cfg.OutputFormat != tts.EncodingULaw {
			t.Errorf("expected ulaw default, got %s", cfg.OutputFormat)
		}
	})
}

func TestSampleRateFromEncoding(t *testing.T) {
	tests := []struct {
		enc  tts.Encoding
		rate int
	}{
		{tts.EncodingULaw, 8000},
		{tts.EncodingPCM16, 16000},
		{tts.EncodingPCM24, 24000},
		{tts.EncodingMP3, 44100},
		{tts.Encoding("unknown"), 8000},
	}

	for _, tt := range tests {
		if got := tts.SampleRateFromEncoding(tt.enc); got != tt.rate {
			t.Errorf("%s: expected %d, got %d", tt.enc, tt.rate, got)
		}
	}
}
