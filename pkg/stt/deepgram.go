package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/byteai/voiceline/internal/httpc"
)

const (
	deepgramWSBaseURL   = "wss://api.deepgram.com/v1/listen"
	deepgramHTTPBaseURL = "https://api.deepgram.com/v1"
	providerDeepgram    = "deepgram"

	keepaliveInterval = 8 * time.Second
)

// Deepgram implements Provider using the Deepgram live transcription
// WebSocket API.
type Deepgram struct {
	config *Config
	logger *slog.Logger
}

// NewDeepgram creates a Deepgram provider.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Deepgram{
		config: cfg,
		logger: cfg.Logger.With("component", "stt.deepgram"),
	}, nil
}

// OpenStream dials the live transcription endpoint and starts the read
// and keepalive loops.
func (d *Deepgram) OpenStream(ctx context.Context) (Stream, error) {
	base := d.config.BaseURL
	if base == "" {
		base = deepgramWSBaseURL
	}

	q := url.Values{}
	q.Set("model", d.config.Model)
	q.Set("language", d.config.Language)
	q.Set("encoding", d.config.Encoding)
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	q.Set("endpointing", strconv.FormatInt(d.config.Endpointing.Milliseconds(), 10))

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.config.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: d.config.DialTimeout}
	conn, resp, err := dialer.DialContext(ctx, base+"?"+q.Encode(), headers)
	if err != nil {
		if resp != nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    err.Error(),
				Provider:   providerDeepgram,
			}
		}
		return nil, WrapError(providerDeepgram, fmt.Errorf("dial: %w", err))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &deepgramStream{
		conn:   conn,
		logger: d.logger,
		events: make(chan Event, 32),
		ctx:    streamCtx,
		cancel: cancel,
	}

	go s.readLoop()
	go s.keepaliveLoop()

	d.logger.Debug("recognition stream opened",
		"model", d.config.Model,
		"encoding", d.config.Encoding,
		"sample_rate", d.config.SampleRate,
	)

	return s, nil
}

// Health verifies the API key against the projects endpoint.
func (d *Deepgram) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, deepgramHTTPBaseURL+"/projects", nil)
	if err != nil {
		return WrapError(providerDeepgram, err)
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)

	resp, err := httpc.Do(req)
	if err != nil {
		return WrapError(providerDeepgram, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    "health check failed",
			Provider:   providerDeepgram,
		}
	}
	return nil
}

// Close releases provider resources. Streams are closed individually.
func (d *Deepgram) Close() error {
	return nil
}

// deepgramStream is one live recognition session.
type deepgramStream struct {
	conn   *websocket.Conn
	logger *slog.Logger
	events chan Event

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	closed  bool
}

// deepgramResult is the live API response shape.
type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Send forwards an encoded audio frame.
func (s *deepgramStream) Send(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return WrapError(providerDeepgram, fmt.Errorf("send frame: %w", err))
	}
	return nil
}

// Events returns the transcription event sequence.
func (s *deepgramStream) Events() <-chan Event {
	return s.events
}

// Close sends the close message and tears down the connection.
func (s *deepgramStream) Close() error {
	s.writeMu.Lock()
	if s.closed {
		s.writeMu.Unlock()
		return nil
	}
	s.closed = true
	// Best effort: tell the recognizer we are done before closing.
	s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	s.writeMu.Unlock()

	s.cancel()
	return s.conn.Close()
}

// readLoop parses incoming results into Events. A read error emits one
// terminal error event and closes the event channel.
func (s *deepgramStream) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return // closed locally, not an upstream failure
			}
			s.logger.Warn("recognizer read failed", "error", err)
			s.emit(Event{Err: ErrConnectionLost, Timestamp: time.Now()})
			return
		}

		var result deepgramResult
		if err := json.Unmarshal(data, &result); err != nil {
			continue // skip malformed messages
		}
		if result.Type != "Results" || len(result.Channel.Alternatives) == 0 {
			continue
		}

		alt := result.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		s.emit(Event{
			Text:       alt.Transcript,
			IsFinal:    result.IsFinal,
			Confidence: alt.Confidence,
			Timestamp:  time.Now(),
		})
	}
}

// keepaliveLoop keeps the connection open through caller silence.
func (s *deepgramStream) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			if !s.closed {
				s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			}
			s.writeMu.Unlock()
		}
	}
}

// emit delivers an event without blocking the read loop forever.
func (s *deepgramStream) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// Verify Deepgram implements Provider at compile time.
var _ Provider = (*Deepgram)(nil)
