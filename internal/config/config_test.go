package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Engine.ReplyDelay = Duration{250 * time.Millisecond}
	cfg.Store.Driver = DriverMemory
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Engine.ReplyDelay.Duration != 250*time.Millisecond {
		t.Errorf("ReplyDelay = %v, want 250ms", loaded.Engine.ReplyDelay)
	}
	if loaded.Store.Driver != DriverMemory {
		t.Errorf("Driver = %q, want memory", loaded.Store.Driver)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[engine]\nreply_delay = \"2s\"\n\n[metrics]\nlisten = \"127.0.0.1:9190\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.ReplyDelay.Duration != 2*time.Second {
		t.Errorf("ReplyDelay = %v, want 2s", cfg.Engine.ReplyDelay)
	}
	if !cfg.Engine.SimulateReplies || cfg.Engine.SnippetLength != 0 || cfg.Engine.ReplyTemplate == "" {
		t.Errorf("engine defaults lost: %+v", cfg.Engine)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9190" {
		t.Errorf("Listen = %q", cfg.Metrics.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[engine]\nreply_delay = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid duration")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("expected defaults, got %+v", cfg.Store)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"negative delay", func(c *Config) { c.Engine.ReplyDelay = Duration{-time.Second} }, "reply_delay"},
		{"negative snippet", func(c *Config) { c.Engine.SnippetLength = -1 }, "snippet_length"},
		{"zero burst", func(c *Config) { c.Limits.SendBurst = 0 }, "send_burst"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad profile", func(c *Config) { c.DefaultProfile = "Work" }, "invalid profile name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PORTALCHAT_REPLY_DELAY", "50ms")
	t.Setenv("PORTALCHAT_SIMULATE_REPLIES", "false")
	t.Setenv("PORTALCHAT_STORE_DRIVER", "memory")
	t.Setenv("PORTALCHAT_SEND_BURST", "3")

	envFile := filepath.Join(t.TempDir(), ".env")
	data := "PORTALCHAT_LOG_LEVEL=debug\nPORTALCHAT_STORE_DRIVER=sqlite\n"
	if err := os.WriteFile(envFile, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("PORTALCHAT_LOG_LEVEL") })

	cfg := Default()
	if err := LoadEnv(cfg, envFile); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if cfg.Engine.ReplyDelay.Duration != 50*time.Millisecond {
		t.Errorf("ReplyDelay = %v, want 50ms", cfg.Engine.ReplyDelay)
	}
	if cfg.Engine.SimulateReplies {
		t.Error("SimulateReplies should be disabled")
	}
	// The process environment wins over the .env file.
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want debug from .env", cfg.Log.Level)
	}
	if cfg.Limits.SendBurst != 3 {
		t.Errorf("SendBurst = %d, want 3", cfg.Limits.SendBurst)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Setenv("PORTALCHAT_SEND_RPS", "fast")
	if err := LoadEnv(Default(), ""); err == nil || !strings.Contains(err.Error(), "PORTALCHAT_SEND_RPS") {
		t.Errorf("LoadEnv() error = %v, want PORTALCHAT_SEND_RPS error", err)
	}
}
