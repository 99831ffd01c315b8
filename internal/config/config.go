// Package config loads client settings from defaults, an optional YAML
// file and ROOMS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const appDirName = "chat-rooms"

// Config holds all client settings.
type Config struct {
	WSURL       string          `yaml:"ws_url" env:"ROOMS_WS_URL"`
	APIURL      string          `yaml:"api_url" env:"ROOMS_API_URL"`
	StateDir    string          `yaml:"state_dir" env:"ROOMS_STATE_DIR"`
	HTTPTimeout time.Duration   `yaml:"http_timeout" env:"ROOMS_HTTP_TIMEOUT"`
	Reconnect   ReconnectConfig `yaml:"reconnect"`
	Log         LogConfig       `yaml:"log"`
	Transport   TransportConfig `yaml:"transport"`

	// MarkdownStyle is the glamour style for message bodies.
	MarkdownStyle string `yaml:"markdown_style" env:"ROOMS_MARKDOWN_STYLE"`
}

// ReconnectConfig bounds the reconnect backoff.
type ReconnectConfig struct {
	BaseDelay time.Duration `yaml:"base_delay" env:"ROOMS_RECONNECT_BASE_DELAY"`
	MaxDelay  time.Duration `yaml:"max_delay" env:"ROOMS_RECONNECT_MAX_DELAY"`
}

// LogConfig controls log output.
type LogConfig struct {
	// File receives JSON records in addition to the debug overlay.
	// Empty disables file logging.
	File  string `yaml:"file" env:"ROOMS_LOG_FILE"`
	Level string `yaml:"level" env:"ROOMS_LOG_LEVEL"`
}

// TransportConfig tunes the websocket connection.
type TransportConfig struct {
	MaxMessageBytes int64 `yaml:"max_message_bytes" env:"ROOMS_MAX_MESSAGE_BYTES"`
}

func defaultConfig() *Config {
	return &Config{
		WSURL:       "ws://localhost:8080/ws",
		APIURL:      "http://localhost:8080",
		HTTPTimeout: 10 * time.Second,
		Reconnect: ReconnectConfig{
			BaseDelay: time.Second,
			MaxDelay:  30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			MaxMessageBytes: 64 * 1024,
		},
		MarkdownStyle: "dark",
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults
// (still with environment overrides).
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = defaultConfig()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/chat-rooms/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, appDirName, "config.yaml")
}

// Validate checks endpoints and timings.
func (c *Config) Validate() error {
	if err := checkURL("ws_url", c.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("api_url", c.APIURL, "http", "https"); err != nil {
		return err
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("reconnect.base_delay must be positive, got %s", c.Reconnect.BaseDelay)
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%s) is below base_delay (%s)",
			c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}
	if c.Transport.MaxMessageBytes < 0 {
		return fmt.Errorf("transport.max_message_bytes must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: %q must be an absolute %v URL", field, raw, schemes)
}
