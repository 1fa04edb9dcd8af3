package comp

import (
	"github.com/senselab/datakit/internal/domain/raw"
	"github.com/senselab/datakit/internal/domain/version"
	"github.com/senselab/datakit/pkg/logger"
)

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithRawNormalizer sets the collaborator used for the shared time-series
// fields. Absent this option a default raw normalizer is used.
func WithRawNormalizer(r *raw.Normalizer) Option {
	return func(n *Normalizer) {
		if r != nil {
			n.raw = r
		}
	}
}

// WithLogger sets a custom logger for the normalizer.
func WithLogger(log logger.Logger) Option {
	return func(n *Normalizer) {
		if log != nil {
			n.log = log
		}
	}
}

// normalizeConfig carries the per-call settings of Normalize.
type normalizeConfig struct {
	tag string
}

// NormalizeOption applies a per-call option to Normalize.
type NormalizeOption func(*normalizeConfig)

// WithVersion selects the target schema version tag. Absent this option
// Normalize targets the latest version.
func WithVersion(tag string) NormalizeOption {
	return func(c *normalizeConfig) {
		c.tag = tag
	}
}

func newNormalizeConfig(opts ...NormalizeOption) normalizeConfig {
	cfg := normalizeConfig{tag: version.LatestTag}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
