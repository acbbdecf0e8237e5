// Package audio provides frame types and frame channels for telephony
// audio. Frames are opaque byte payloads in a declared format; the
// pipeline never decodes them.
package audio

import "time"

// Format describes the encoding of audio frames on a channel.
type Format string

const (
	// FormatULaw8000 is 8kHz mono mu-law, the telephony media format.
	FormatULaw8000 Format = "ulaw_8000"

	// FormatPCM16 is 16kHz mono PCM16.
	FormatPCM16 Format = "pcm_16000"

	// FormatPCM24 is 24kHz mono PCM16.
	FormatPCM24 Format = "pcm_24000"
)

// ULawSilenceByte is one sample of mu-law encoded silence.
const ULawSilenceByte = 0xFF

// FrameDuration is the nominal duration of one telephony media frame.
const FrameDuration = 20 * time.Millisecond

// ULawFrameSize is the payload size of one 20ms frame at 8kHz mu-law.
const ULawFrameSize = 160

// Frame is one fixed-size span of audio for a session.
type Frame struct {
	// Data is the encoded audio payload.
	Data []byte

	// Format identifies the payload encoding.
	Format Format

	// Timestamp is when the frame entered the system.
	Timestamp time.Time
}

// NewULawFrame wraps telephony payload bytes in a Frame.
func NewULawFrame(data []byte) Frame {
	return Frame{
		Data:      data,
		Format:    FormatULaw8000,
		Timestamp: time.Now(),
	}
}

// Silence returns n milliseconds of mu-law silence. Used as fallback
// audio when a synthesis chunk fails.
func Silence(d time.Duration) Frame {
	samples := int(d.Milliseconds()) * 8 // 8kHz
	data := make([]byte, samples)
	for i := range data {
		data[i] = ULawSilenceByte
	}
	return NewULawFrame(data)
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	switch f.Format {
	case FormatULaw8000:
		return time.Duration(len(f.Data)) * time.Second / 8000
	case FormatPCM16:
		return time.Duration(len(f.Data)/2) * time.Second / 16000
	case FormatPCM24:
		return time.Duration(len(f.Data)/2) * time.Second / 24000
	default:
		return 0
	}
}
