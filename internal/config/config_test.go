package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Session.MaxSessions)
	assert.Equal(t, 10*time.Second, cfg.Session.GenerationTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.Knowledge.Timeout)
	assert.Equal(t, "ulaw_8000", cfg.TTS.OutputFormat)
	assert.Equal(t, 8000, cfg.STT.SampleRate)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9000
  enable_test_endpoints: true
session:
  max_sessions: 4
  silence_timeout: 500ms
llm:
  api_key: file-key
  temperature: 0.7
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.EnableTestEndpoints)
	assert.Equal(t, 4, cfg.Session.MaxSessions)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.SilenceTimeout)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)

	// Untouched sections keep defaults.
	assert.Equal(t, "nova-2", cfg.STT.Model)
}

func TestExpandSensitiveFields(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "secret-123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "llm:\n  api_key: ${TEST_LLM_KEY}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-123", cfg.LLM.APIKey)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("PORT", "8443")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "llm:\n  api_key: file-key\nserver:\n  port: 9000\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, 8443, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.STT.APIKey = "k"
	valid.TTS.APIKey = "k"
	valid.LLM.APIKey = "k"

	t.Run("valid config passes", func(t *testing.T) {
		cfg := valid
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing keys rejected", func(t *testing.T) {
		cfg := valid
		cfg.LLM.APIKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad port rejected", func(t *testing.T) {
		cfg := valid
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad temperature rejected", func(t *testing.T) {
		cfg := valid
		cfg.LLM.Temperature = 3.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero capacity rejected", func(t *testing.T) {
		cfg := valid
		cfg.Session.MaxSessions = 0
		assert.Error(t, cfg.Validate())
	})
}
