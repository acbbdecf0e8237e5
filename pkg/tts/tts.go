// Package tts provides a unified interface for streaming text-to-speech
// providers.
//
// Providers synthesize speakable text chunks into telephony audio. The
// orchestrator consumes audio increments as they arrive, so Stream is
// the primary path; Synthesize exists for short fixed utterances such
// as greetings.
//
// Example usage:
//
//	provider, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("TTS_API_KEY")),
//	    tts.WithVoice("voice-id"),
//	)
//	defer provider.Close()
//
//	stream, _ := provider.Stream(ctx, "Sure, let me check that for you.")
//	for {
//	    chunk, err := stream.Read()
//	    if chunk == nil { break }
//	    // forward chunk to the caller
//	}
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider
// switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio with streaming output for lowest
	// latency. Audio increments are returned as they become available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream represents a streaming audio response.
// Callers should read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio increment.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioResult represents a complete synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec (e.g., ulaw_8000).
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Encoding represents audio encoding types.
// These match ElevenLabs output format options.
type Encoding string

const (
	// EncodingULaw is mu-law 8kHz, the telephony media format.
	EncodingULaw Encoding = "ulaw_8000"

	// EncodingPCM16 is 16kHz mono PCM16.
	EncodingPCM16 Encoding = "pcm_16000"

	// EncodingPCM24 is 24kHz mono PCM16.
	EncodingPCM24 Encoding = "pcm_24000"

	// EncodingMP3 is MP3 128kbps.
	EncodingMP3 Encoding = "mp3_44100_128"
)

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingULaw:
		return 8000
	case EncodingPCM16:
		return 16000
	case EncodingPCM24:
		return 24000
	case EncodingMP3:
		return 44100
	default:
		return 8000 // telephony default
	}
}

// EstimateDuration approximates playback time for an audio buffer.
func EstimateDuration(format AudioFormat, size int) time.Duration {
	if format.SampleRate == 0 {
		return 0
	}
	samples := size
	if format.Encoding != EncodingULaw {
		samples = size / 2 // PCM16 is two bytes per sample
	}
	return time.Duration(samples) * time.Second / time.Duration(format.SampleRate)
}
