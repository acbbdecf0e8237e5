package stt

import (
	"log/slog"
	"time"
)

// Config holds recognizer settings.
type Config struct {
	// APIKey authenticates with the provider.
	APIKey string

	// BaseURL overrides the provider endpoint (for testing).
	BaseURL string

	// Model is the recognition model (e.g., "nova-2").
	Model string

	// Language is the language hint (e.g., "en-US").
	Language string

	// SampleRate of the inbound audio in Hz.
	SampleRate int

	// Encoding of the inbound audio (e.g., "mulaw").
	Encoding string

	// Endpointing is the recognizer-side silence window that closes a
	// speech span.
	Endpointing time.Duration

	// DialTimeout bounds the WebSocket handshake.
	DialTimeout time.Duration

	// Logger for provider diagnostics.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with telephony defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:       "nova-2",
		Language:    "en-US",
		SampleRate:  8000,
		Encoding:    "mulaw",
		Endpointing: 300 * time.Millisecond,
		DialTimeout: 10 * time.Second,
		Logger:      slog.Default(),
	}
}

// Option configures a provider.
type Option func(*Config)

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the recognition model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the language hint.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithAudioFormat sets the inbound encoding and sample rate.
func WithAudioFormat(encoding string, sampleRate int) Option {
	return func(c *Config) {
		c.Encoding = encoding
		c.SampleRate = sampleRate
	}
}

// WithEndpointing sets the recognizer silence window.
func WithEndpointing(d time.Duration) Option {
	return func(c *Config) { c.Endpointing = d }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
