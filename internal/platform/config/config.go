// Package config builds process-level configuration from the environment so
// main stays lean. Domain tuning parameters (fusion weights, thresholds,
// severity bands) live with their domains and are injected explicitly; this
// package only resolves where the process listens and what it connects to.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// PostgresURL selects the durable alert/audit stores. Empty means the
	// in-memory stores are used (single-node, non-durable).
	PostgresURL string

	// RedisURL enables the cross-instance dissemination relay. Empty means
	// events fan out only to subscribers of this process.
	RedisURL string

	// StreamBuffer is the per-subscriber event queue depth before a slow
	// stream consumer is disconnected.
	StreamBuffer int

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:            getString("TRACKGUARD_ADDR", ":8080"),
		PostgresURL:     os.Getenv("TRACKGUARD_POSTGRES_URL"),
		RedisURL:        os.Getenv("TRACKGUARD_REDIS_URL"),
		StreamBuffer:    getInt("TRACKGUARD_STREAM_BUFFER", 64),
		ShutdownTimeout: getDuration("TRACKGUARD_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
