package config

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.portalchat, or $PORTALCHAT_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(EnvPrefix + "HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".portalchat")
}

// Dir returns the profile-specific directory.
func Dir(profile string) string {
	return filepath.Join(BaseDir(), "profiles", profile)
}

// SocketPath returns the UDS socket path for a profile.
func SocketPath(profile string) string {
	return filepath.Join(Dir(profile), "daemon.sock")
}

// DBPath returns the SQLite database path for a profile.
func DBPath(profile string) string {
	return filepath.Join(Dir(profile), "portalchat.db")
}

// LogDir returns the log directory for a profile.
func LogDir(profile string) string {
	return filepath.Join(Dir(profile), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(profile string) string {
	return filepath.Join(LogDir(profile), "portalchatd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnvPath returns the optional .env file next to the config.
func EnvPath() string {
	return filepath.Join(BaseDir(), ".env")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(profile string) error {
	for _, d := range []string{Dir(profile), LogDir(profile)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// SocketFor returns the configured socket, or the profile default.
func (c *Config) SocketFor(profile string) string {
	if c.Daemon.Socket != "" {
		return c.Daemon.Socket
	}
	return SocketPath(profile)
}

// DBFor returns the configured database path, or the profile default.
func (c *Config) DBFor(profile string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return DBPath(profile)
}
