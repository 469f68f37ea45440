package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level client configuration.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Session SessionConfig `yaml:"session"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// NetworkConfig configures the compute network backend.
type NetworkConfig struct {
	Endpoint       string        `yaml:"endpoint"`        // API base URL
	APIKey         string        `yaml:"api_key"`         // supports ${ENV} style values at the CLI layer
	InvokeTimeout  time.Duration `yaml:"invoke_timeout"`  // per model invocation
	AccountTimeout time.Duration `yaml:"account_timeout"` // per funding/balance call
	StatusStream   bool          `yaml:"status_stream"`   // subscribe to chain status events
}

// SessionConfig configures the conversation session.
type SessionConfig struct {
	DefaultModel string `yaml:"default_model"`
	Account      string `yaml:"account"` // wallet address shown in exports
}

// HistoryConfig configures the transaction ledger store.
type HistoryConfig struct {
	// Path of the SQLite database. Empty selects the in-memory store.
	Path string `yaml:"path"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a config with all defaults applied.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			Endpoint:       DefaultEndpoint,
			InvokeTimeout:  DefaultInvokeTimeout,
			AccountTimeout: DefaultAccountTimeout,
			StatusStream:   true,
		},
		Session: SessionConfig{
			DefaultModel: DefaultModelID,
		},
		History: HistoryConfig{
			Path: DefaultHistoryPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values that would misbehave later.
func (c *Config) Validate() error {
	if c.Network.Endpoint == "" {
		return fmt.Errorf("network.endpoint must not be empty")
	}
	if c.Network.InvokeTimeout < 0 {
		return fmt.Errorf("network.invoke_timeout must be >= 0, got %s", c.Network.InvokeTimeout)
	}
	if c.Network.AccountTimeout < 0 {
		return fmt.Errorf("network.account_timeout must be >= 0, got %s", c.Network.AccountTimeout)
	}
	if c.Session.DefaultModel == "" {
		return fmt.Errorf("session.default_model must not be empty")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
