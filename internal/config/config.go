package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds scamwatch configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Store     StoreConfig     `yaml:"store"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP listen address, e.g. ":8080"

	// APIKeys are accepted management API bearer keys. Empty leaves the
	// API open, the default for local deployments.
	APIKeys []string `yaml:"api_keys"`
}

// ProviderConfig describes the OpenAI-compatible model endpoint and the
// default call parameters. The API key is read from the named environment
// variable, never from the file itself.
type ProviderConfig struct {
	BaseURL        string   `yaml:"base_url"`    // e.g. "http://localhost:1234/v1"
	APIKeyEnv      string   `yaml:"api_key_env"` // e.g. "OPENAI_API_KEY"
	Model          string   `yaml:"model"`
	MaxTokens      int      `yaml:"max_tokens"`
	Temperature    *float64 `yaml:"temperature"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// StoreConfig points at the pattern database. An empty path runs the
// server memory-only.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig wires analysis event sinks.
type EventsConfig struct {
	FilePath              string `yaml:"file_path"`
	WebhookURL            string `yaml:"webhook_url"`
	WebhookTimeoutSeconds int    `yaml:"webhook_timeout_seconds"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "http://localhost:1234/v1"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "local-model"
	}
	if cfg.Provider.MaxTokens == 0 {
		cfg.Provider.MaxTokens = 2048
	}
	if cfg.Provider.Temperature == nil {
		t := 0.1
		cfg.Provider.Temperature = &t
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 120
	}

	if cfg.Events.WebhookTimeoutSeconds == 0 {
		cfg.Events.WebhookTimeoutSeconds = 2
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "scamwatch"
	}
}

// APIKey resolves the provider API key from the configured environment
// variable. Empty is fine for local servers.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}
