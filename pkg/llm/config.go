package llm

import (
	"log/slog"
	"time"
)

// Config holds language model provider settings.
type Config struct {
	// APIKey authenticates with the provider.
	APIKey string

	// BaseURL overrides the provider endpoint (for testing).
	BaseURL string

	// Model is the default model name.
	Model string

	// MaxTokens is the default response limit.
	MaxTokens int

	// Temperature is the default sampling temperature.
	Temperature float64

	// StreamTimeout bounds a whole streaming call.
	StreamTimeout time.Duration

	// Logger for provider diagnostics.
	Logger *slog.Logger
}

// DefaultConfig returns defaults tuned for short spoken responses.
func DefaultConfig() *Config {
	return &Config{
		Model:         "claude-3-5-haiku-20241022",
		MaxTokens:     200,
		Temperature:   0.3,
		StreamTimeout: 30 * time.Second,
		Logger:        slog.Default(),
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
	if c.Model == "" {
		return ErrNoModel
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

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets the default response limit.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithStreamTimeout bounds a whole streaming call.
func WithStreamTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.StreamTimeout = timeout }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
