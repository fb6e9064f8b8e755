package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Duration is a time.Duration written as a string ("1500ms") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.portalchat/config.toml.
type Config struct {
	DefaultProfile string        `toml:"default_profile"`
	Engine         EngineConfig  `toml:"engine"`
	Store          StoreConfig   `toml:"store"`
	Daemon         DaemonConfig  `toml:"daemon"`
	Notify         NotifyConfig  `toml:"notify"`
	Limits         LimitsConfig  `toml:"limits"`
	Metrics        MetricsConfig `toml:"metrics"`
	Log            LogConfig     `toml:"log"`
}

type EngineConfig struct {
	ReplyDelay      Duration `toml:"reply_delay"`
	SnippetLength   int      `toml:"snippet_length"`
	ReplyTemplate   string   `toml:"reply_template"`
	SimulateReplies bool     `toml:"simulate_replies"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
	// Path overrides the profile database path. Ignored by the memory driver.
	Path string `toml:"path"`
}

type DaemonConfig struct {
	// Socket overrides the profile socket path.
	Socket string `toml:"socket"`
}

type NotifyConfig struct {
	RecentWindow Duration `toml:"recent_window"`
	ToastTTL     Duration `toml:"toast_ttl"`
}

type LimitsConfig struct {
	SendRPS   float64 `toml:"send_rps"`
	SendBurst int     `toml:"send_burst"`
}

type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `toml:"listen"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			ReplyDelay:      Duration{1500 * time.Millisecond},
			ReplyTemplate:   `Thanks for your message: "{message}"`,
			SimulateReplies: true,
		},
		Store: StoreConfig{Driver: DriverSQLite},
		Notify: NotifyConfig{
			RecentWindow: Duration{10 * time.Second},
			ToastTTL:     Duration{5 * time.Second},
		},
		Limits: LimitsConfig{SendRPS: 5, SendBurst: 10},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads config from the given path on top of the defaults. Returns an
// error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
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

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.DefaultProfile != "" {
		if err := ValidateName(c.DefaultProfile); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Engine.ReplyDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("engine.reply_delay must not be negative"))
	}
	if c.Engine.SnippetLength < 0 {
		errs = append(errs, fmt.Errorf("engine.snippet_length must not be negative"))
	}
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Store.Driver))
	}
	if c.Limits.SendRPS <= 0 || c.Limits.SendBurst <= 0 {
		errs = append(errs, fmt.Errorf("limits.send_rps and limits.send_burst must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}
