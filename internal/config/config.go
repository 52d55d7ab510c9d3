// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers an optional YAML file and SCALE_* environment variables on top.
// - Errors returned from this package wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"runtime"
)

// Sink names accepted by the "sink" key.
const (
	SinkMemory   = "memory"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the number of batches waiting for a worker.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of filter workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the batch-id idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreSize bounds the in-memory readings store.
	StoreSize int `koanf:"store_size"`

	// Sink selects where scaled batches go: memory, postgres or kafka.
	Sink string `koanf:"sink"`

	Filter   FilterConfig   `koanf:"filter"`
	Postgres PostgresConfig `koanf:"postgres"`
	Kafka    KafkaConfig    `koanf:"kafka"`
}

// FilterConfig seeds the scale filter's configuration category.
type FilterConfig struct {
	// Enable switches the transform on. Disabled filters forward batches untouched.
	Enable bool `koanf:"enable"`

	// Factor is kept as text; it is parsed by the filter so malformed
	// values get the same fallback wherever they come from.
	Factor string `koanf:"factor"`
}

// PostgresConfig configures the postgres readings sink.
type PostgresConfig struct {
	DSN   string `koanf:"dsn"`
	Table string `koanf:"table"`
}

// KafkaConfig configures the kafka readings sink.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":9080",
		QueueSize:   10_000,
		WorkerCount: runtime.NumCPU(),
		DedupeSize:  100_000,
		StoreSize:   10_000,
		Sink:        SinkMemory,
		Filter: FilterConfig{
			Enable: false,
			Factor: "100.0",
		},
		Postgres: PostgresConfig{
			Table: "readings",
		},
	}
}
