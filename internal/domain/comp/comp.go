// Package comp normalizes decomposed (unmixed) time-series records across
// historical schema versions. The component-specific fields are handled
// here; the shared time-series fields are delegated to the raw normalizer.
package comp

import (
	"context"
	"fmt"
	"time"

	"github.com/senselab/datakit/internal/domain/raw"
	"github.com/senselab/datakit/internal/domain/record"
	"github.com/senselab/datakit/internal/domain/version"
	"github.com/senselab/datakit/pkg/linalg"
	"github.com/senselab/datakit/pkg/logger"
	"github.com/senselab/datakit/pkg/metrics"
)

// unmixingState tracks what happened to the unmixing matrix during the
// version branch, so re-attachment after delegation can neither fabricate
// nor silently drop it.
type unmixingState uint8

const (
	unmixingAbsent unmixingState = iota
	unmixingPreserved
	unmixingComputed
)

func (s unmixingState) String() string {
	switch s {
	case unmixingPreserved:
		return "preserved"
	case unmixingComputed:
		return "computed"
	default:
		return "absent"
	}
}

// Normalizer rewrites decomposed records to a requested schema version.
type Normalizer struct {
	raw *raw.Normalizer
	log logger.Logger
}

// New creates a comp record normalizer with configuration options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		log: logger.Get().Named("comp"),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.raw == nil {
		n.raw = raw.New()
	}
	return n
}

// Normalize returns a copy of rec conforming to the requested schema
// version (default "latest"). The mixing matrix and channel names pass
// through untouched; the unmixing matrix is computed, preserved, or removed
// depending on the target version; the remaining fields are normalized by
// the raw collaborator. The input value is not mutated, though surviving
// matrix and slice fields are shared with it.
func (n *Normalizer) Normalize(ctx context.Context, rec record.Comp, opts ...NormalizeOption) (record.Comp, error) {
	cfg := newNormalizeConfig(opts...)
	v, err := version.Parse(cfg.tag)
	if err != nil {
		metrics.RecordNormalizationError("comp", "unsupported_version")
		return record.Comp{}, err
	}
	if err := rec.Validate(); err != nil {
		metrics.RecordNormalizationError("comp", "invalid_record")
		return record.Comp{}, err
	}

	var (
		state    = unmixingAbsent
		unmixing *record.Matrix
	)
	switch v {
	case version.V2011v2:
		if rec.Unmixing != nil {
			// A stored unmixing matrix is trusted as-is.
			state = unmixingPreserved
			unmixing = rec.Unmixing
		} else {
			unmixing, err = pseudoInverse(rec.Topo)
			if err != nil {
				metrics.RecordNormalizationError("comp", "pinv_failed")
				return record.Comp{}, fmt.Errorf("compute unmixing from topo: %w", err)
			}
			state = unmixingComputed
		}
	case version.V2011v1, version.V2003:
		// The field did not exist in these eras; never recompute it.
		state = unmixingAbsent
	}

	// Delegate the shared time-series fields, then re-attach the
	// component-specific ones.
	reduced, err := n.raw.Normalize(ctx, rec.Raw, raw.WithVersion(v.String()))
	if err != nil {
		metrics.RecordNormalizationError("comp", "raw_delegate")
		return record.Comp{}, err
	}

	out := record.Comp{
		Raw:       reduced,
		Topo:      rec.Topo,
		TopoLabel: rec.TopoLabel,
	}
	if state != unmixingAbsent {
		out.Unmixing = unmixing
	}

	n.log.Debug(ctx, "normalized comp record",
		logger.String("version", v.String()),
		logger.String("unmixing", state.String()),
		logger.Int("components", len(out.Label)),
	)
	metrics.RecordNormalization("comp", v.String())
	return out, nil
}

// pseudoInverse computes the Moore-Penrose pseudo-inverse of the mixing
// matrix and reports its duration.
func pseudoInverse(topo *record.Matrix) (*record.Matrix, error) {
	start := time.Now()
	inv, err := linalg.PseudoInverse(topo)
	metrics.ObservePinvDuration(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, err
	}
	out := &record.Matrix{}
	out.CloneFrom(inv)
	return out, nil
}
