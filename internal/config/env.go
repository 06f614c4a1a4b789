// internal/config/env.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// GetEnv reads an environment variable or returns def.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an environment variable as an integer, else def.
func GetEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid integer %q, using %d", s, def)
		return def
	}
	return v
}

// GetEnvDuration parses an environment variable with time.ParseDuration. A bare
// integer is read as milliseconds.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid duration %q, using %s", s, def)
		return def
	}
	return d
}

// LogLevel parses LOG_LEVEL, falling back to def.
func LogLevel(def logrus.Level) logrus.Level {
	lvl, err := logrus.ParseLevel(GetEnv("LOG_LEVEL", def.String()))
	if err != nil {
		return def
	}
	return lvl
}
