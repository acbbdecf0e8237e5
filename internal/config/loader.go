package config

import (
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.STT.APIKey = expandEnvVars(cfg.STT.APIKey)
	cfg.TTS.APIKey = expandEnvVars(cfg.TTS.APIKey)
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
}

// applyEnvOverrides lets a bare environment beat the config file for the
// settings that change per deployment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STT_API_KEY"); v != "" {
		cfg.STT.APIKey = v
	}
	if v := os.Getenv("TTS_API_KEY"); v != "" {
		cfg.TTS.APIKey = v
	}
	if v := os.Getenv("TTS_VOICE_ID"); v != "" {
		cfg.TTS.VoiceID = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("WEBSOCKET_URL"); v != "" {
		cfg.Server.WebSocketURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KNOWLEDGE_BASE_PATH"); v != "" {
		cfg.Knowledge.Path = v
	}
	if v := os.Getenv("SUPPORT_PHONE"); v != "" {
		cfg.Tools.SupportPhone = v
	}
	if v := os.Getenv("ENABLE_TEST_ENDPOINTS"); v == "true" || v == "1" || v == "yes" {
		cfg.Server.EnableTestEndpoints = true
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A missing file produces defaults plus env overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}
