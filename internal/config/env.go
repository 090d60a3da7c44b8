package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env returns the value of the environment variable key, or fallback
// when the variable is unset or empty.
func Env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// IntEnv parses key as an integer. Unparsable values are logged and
// the fallback is used.
func IntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring invalid integer in environment", "key", key, "value", v)
		return fallback
	}
	return n
}

// DurationEnv parses key as a time.Duration ("250ms", "5s"). Unparsable
// values are logged and the fallback is used.
func DurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Ignoring invalid duration in environment", "key", key, "value", v)
		return fallback
	}
	return d
}

// SecretFile reads a secret from path, trimming surrounding whitespace.
// Returns "" when path is empty or unreadable, so a missing secret
// mount degrades to the feature being disabled rather than a crash.
func SecretFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Secret file not readable", "path", path, "error", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}
