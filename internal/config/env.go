package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PORTALCHAT_"

// LoadEnv applies PORTALCHAT_* environment variables to cfg. When envFile is
// set it is loaded first; variables already in the environment win, and a
// missing file is not an error.
func LoadEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PROFILE", &cfg.DefaultProfile)
	str("REPLY_TEMPLATE", &cfg.Engine.ReplyTemplate)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_PATH", &cfg.Store.Path)
	str("SOCKET", &cfg.Daemon.Socket)
	str("METRICS_LISTEN", &cfg.Metrics.Listen)
	str("LOG_LEVEL", &cfg.Log.Level)

	if v, ok := lookup("REPLY_DELAY"); ok {
		if err := cfg.Engine.ReplyDelay.UnmarshalText([]byte(v)); err != nil {
			return envError("REPLY_DELAY", err)
		}
	}
	if v, ok := lookup("SIMULATE_REPLIES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("SIMULATE_REPLIES", err)
		}
		cfg.Engine.SimulateReplies = b
	}
	if v, ok := lookup("SNIPPET_LENGTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("SNIPPET_LENGTH", err)
		}
		cfg.Engine.SnippetLength = n
	}
	if v, ok := lookup("SEND_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("SEND_RPS", err)
		}
		cfg.Limits.SendRPS = f
	}
	if v, ok := lookup("SEND_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("SEND_BURST", err)
		}
		cfg.Limits.SendBurst = n
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func envError(key string, err error) error {
	return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
}
