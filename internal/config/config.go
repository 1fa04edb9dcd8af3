// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load(ctx) layers defaults, optional YAML file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"

	"github.com/senselab/datakit/internal/domain/version"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory normalization queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of normalization workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the ingest deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the dataset store.
	ShardCount int `koanf:"shard_count"`

	// MaxListLimit caps GET /datasets?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// DefaultVersion is the data layout targeted when a request carries
	// no version tag.
	DefaultVersion string `koanf:"default_version"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and is
// currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":9080",
		QueueSize:      10_000,
		WorkerCount:    runtime.NumCPU() * 2,
		DedupeSize:     100_000,
		ShardCount:     8,
		MaxListLimit:   100,
		DefaultVersion: version.LatestTag,
	}
}
