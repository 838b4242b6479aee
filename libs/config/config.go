// Package config reads service settings from the environment, optionally layered over a
// YAML/TOML/JSON file. Keys are the environment variable names (DATABASE_URL, PORT, ...);
// inside a config file the same keys may be written in lower case.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v = newViper()

func newViper() *viper.Viper {
	vp := viper.New()
	vp.AutomaticEnv()
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	return vp
}

// Load reads an optional config file. An empty path is a no-op; a missing or malformed
// file is an error.
func Load(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Set overrides a key for the life of the process, e.g. from a command-line flag.
func Set(key string, value any) {
	v.Set(key, value)
}

func String(key, fallback string) string {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return fallback
	}
	return s
}

func RequiredString(key string) (string, error) {
	s := String(key, "")
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func Port(key, fallback string) (string, error) {
	s := String(key, fallback)
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, s)
	}
	return s, nil
}

func Int(key string, fallback int) (int, error) {
	s := String(key, "")
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, s)
	}
	return n, nil
}

// Duration accepts Go duration syntax ("90s", "5m").
func Duration(key string, fallback time.Duration) (time.Duration, error) {
	s := String(key, "")
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration (got %q)", key, s)
	}
	return d, nil
}

func Bool(key string, fallback bool) bool {
	switch strings.ToLower(String(key, "")) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
