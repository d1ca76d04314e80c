package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.convo/config.toml.
type Config struct {
	// DisplayName is how the local user is labeled in call-log notices.
	DisplayName string `toml:"display_name"`

	// DialDelayMS is the simulated network delay before an outgoing call
	// starts ringing on the caller's side.
	DialDelayMS int `toml:"dial_delay_ms"`

	// EndedLingerMS is how long ended call records stay visible before
	// they are removed from active-call state.
	EndedLingerMS int `toml:"ended_linger_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DisplayName:   "Me",
		DialDelayMS:   3000,
		EndedLingerMS: 1500,
	}
}

// DialDelay returns the simulated dial delay as a duration.
func (c *Config) DialDelay() time.Duration {
	if c.DialDelayMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.DialDelayMS) * time.Millisecond
}

// EndedLinger returns the ended-call linger as a duration.
func (c *Config) EndedLinger() time.Duration {
	if c.EndedLingerMS <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.EndedLingerMS) * time.Millisecond
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from the given path, falling back to the
// built-in defaults if the file is missing or unparseable.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Me"
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
