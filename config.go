package agentquery

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the server and the model
// endpoint. Values are loaded from a YAML file and/or environment
// variables; the file wins where both are set.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// MaxToolRounds caps agent-mode tool rounds (0 uses the default).
	MaxToolRounds int `yaml:"max_tool_rounds"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:    "0.0.0.0",
		Port:    8000,
		Model:   "gpt-4o-mini",
		BaseURL: "https://api.openai.com/v1/chat/completions",
	}
}

// LoadConfig builds a Config from defaults, environment variables, and
// optionally a YAML file at path (empty path skips the file).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	cfg.Host = envOr("HOST", cfg.Host)
	cfg.Port = envIntOr("PORT", cfg.Port)
	cfg.Model = envOr("LLM_MODEL", cfg.Model)
	cfg.BaseURL = envOr("LLM_BASE_URL", cfg.BaseURL)
	cfg.APIKey = envOr("LLM_API_KEY", cfg.APIKey)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	return cfg, nil
}

// envOr returns the environment variable or a default value.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envIntOr returns the environment variable as int or a default value.
func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
