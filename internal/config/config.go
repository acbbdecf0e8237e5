// Package config loads voiceline configuration from a YAML file with
// environment variable overrides for secrets and deployment settings.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for the voiceline server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	STT       STTConfig       `yaml:"stt"`
	TTS       TTSConfig       `yaml:"tts"`
	LLM       LLMConfig       `yaml:"llm"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Tools     ToolsConfig     `yaml:"tools"`
	Session   SessionConfig   `yaml:"session"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// WebSocketURL is the public wss:// URL returned to the telephony
	// provider in the call webhook. Defaults to the request host.
	WebSocketURL string `yaml:"websocket_url"`

	// EnableTestEndpoints exposes the text-only /test/chat endpoint.
	EnableTestEndpoints bool `yaml:"enable_test_endpoints"`
}

// STTConfig holds speech recognizer settings.
type STTConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Encoding   string `yaml:"encoding"`

	// EndpointingMs is the recognizer-side silence window that closes
	// an utterance, in milliseconds.
	EndpointingMs int `yaml:"endpointing_ms"`
}

// TTSConfig holds speech synthesizer settings.
type TTSConfig struct {
	APIKey       string `yaml:"api_key"`
	VoiceID      string `yaml:"voice_id"`
	Model        string `yaml:"model"`
	OutputFormat string `yaml:"output_format"`
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float64       `yaml:"temperature"`
	SystemPrompt string        `yaml:"system_prompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// KnowledgeConfig holds knowledge base settings.
type KnowledgeConfig struct {
	// Path is the JSON document file loaded at startup.
	Path string `yaml:"path"`

	// DBPath is the SQLite database backing the document index.
	DBPath string `yaml:"db_path"`

	TopK    int           `yaml:"top_k"`
	Timeout time.Duration `yaml:"timeout"`

	// PreloadPrompt embeds the whole knowledge base into the system
	// prompt instead of searching per turn. Trades prompt size for the
	// retrieval round-trip.
	PreloadPrompt bool `yaml:"preload_prompt"`
}

// ToolsConfig holds tool execution settings.
type ToolsConfig struct {
	DBPath       string        `yaml:"db_path"`
	SupportPhone string        `yaml:"support_phone"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SessionConfig holds per-call orchestration settings.
type SessionConfig struct {
	MaxSessions       int           `yaml:"max_sessions"`
	SilenceTimeout    time.Duration `yaml:"silence_timeout"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	MaxHistoryTurns   int           `yaml:"max_history_turns"`
}

// Defaults returns a Config with every field set to its default value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		STT: STTConfig{
			Model:         "nova-2",
			Language:      "en-US",
			SampleRate:    8000,
			Encoding:      "mulaw",
			EndpointingMs: 300,
		},
		TTS: TTSConfig{
			Model:        "eleven_turbo_v2_5",
			OutputFormat: "ulaw_8000",
		},
		LLM: LLMConfig{
			Model:       "claude-3-5-haiku-20241022",
			MaxTokens:   200,
			Temperature: 0.3,
			Timeout:     10 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			Path:    "./knowledge/sample_kb.json",
			DBPath:  "./data/knowledge.db",
			TopK:    3,
			Timeout: 300 * time.Millisecond,
		},
		Tools: ToolsConfig{
			DBPath:       "./data/voiceline.db",
			SupportPhone: "+1-555-SUPPORT",
			Timeout:      5 * time.Second,
		},
		Session: SessionConfig{
			MaxSessions:       10,
			SilenceTimeout:    800 * time.Millisecond,
			GenerationTimeout: 10 * time.Second,
			MaxHistoryTurns:   20,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for errors that would prevent the
// server from taking calls.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.STT.APIKey == "" {
		return errors.New("config: stt.api_key required (or STT_API_KEY)")
	}
	if c.TTS.APIKey == "" {
		return errors.New("config: tts.api_key required (or TTS_API_KEY)")
	}
	if c.LLM.APIKey == "" {
		return errors.New("config: llm.api_key required (or LLM_API_KEY)")
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("config: session.max_sessions must be positive, got %d", c.Session.MaxSessions)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config: llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}
	return nil
}
