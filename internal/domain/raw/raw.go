// Package raw normalizes segmented time-series records across historical
// schema versions. Each version branch adds or removes era-specific fields;
// the current era folds the sampling rate and trigger offsets into the
// per-trial time axes.
package raw

import (
	"context"
	"fmt"
	"math"

	"github.com/senselab/datakit/internal/domain/record"
	"github.com/senselab/datakit/internal/domain/version"
	"github.com/senselab/datakit/pkg/logger"
	"github.com/senselab/datakit/pkg/metrics"
)

// Normalizer rewrites raw records to a requested schema version.
type Normalizer struct {
	log logger.Logger
}

// New creates a raw record normalizer with configuration options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		log: logger.Get().Named("raw"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns a copy of rec conforming to the requested schema
// version (default "latest"). The input value is not mutated; matrix and
// slice fields that survive normalization are shared with the input.
func (n *Normalizer) Normalize(ctx context.Context, rec record.Raw, opts ...NormalizeOption) (record.Raw, error) {
	cfg := newNormalizeConfig(opts...)
	v, err := version.Parse(cfg.tag)
	if err != nil {
		return record.Raw{}, err
	}
	if err := rec.Validate(); err != nil {
		return record.Raw{}, err
	}

	out := rec
	switch v {
	case version.V2011v2:
		// Reconstruct missing sample bookkeeping before the deprecated
		// fields are dropped.
		if out.SampleInfo == nil {
			out.SampleInfo = consecutiveSampleInfo(out.Trial)
		}
		out.Fsample = 0
		out.Offset = nil
	case version.V2011v1:
		// Sampling rate was still a first-class field in this era.
		out.Offset = nil
	case version.V2003:
		if out.Fsample == 0 {
			fs, err := rateFromTimeAxis(out.Time[0])
			if err != nil {
				return record.Raw{}, err
			}
			out.Fsample = fs
		}
		if out.Offset == nil {
			out.Offset = triggerOffsets(out.Time, out.Fsample)
		}
		// Bookkeeping matrices did not exist yet.
		out.SampleInfo = nil
		out.TrialInfo = nil
	}

	n.log.Debug(ctx, "normalized raw record",
		logger.String("version", v.String()),
		logger.Int("trials", len(out.Trial)),
	)
	metrics.RecordNormalization("raw", v.String())
	return out, nil
}

// consecutiveSampleInfo derives begin/end samples assuming the trials were
// cut back to back from one continuous recording, which is the convention
// for records that never carried explicit bookkeeping.
func consecutiveSampleInfo(trials []*record.Matrix) [][2]int {
	info := make([][2]int, len(trials))
	cursor := 1
	for i, trial := range trials {
		_, samples := trial.Dims()
		info[i] = [2]int{cursor, cursor + samples - 1}
		cursor += samples
	}
	return info
}

// rateFromTimeAxis estimates the sampling rate from the span of a time axis.
func rateFromTimeAxis(axis []float64) (float64, error) {
	if len(axis) < 2 {
		return 0, fmt.Errorf("%w: time axis too short to derive sampling rate", record.ErrMalformed)
	}
	span := axis[len(axis)-1] - axis[0]
	if span <= 0 {
		return 0, fmt.Errorf("%w: time axis is not increasing", record.ErrMalformed)
	}
	return float64(len(axis)-1) / span, nil
}

// triggerOffsets recovers the per-trial offset of the first sample relative
// to the trigger from the time axes.
func triggerOffsets(times [][]float64, fsample float64) []int {
	offsets := make([]int, len(times))
	for i, axis := range times {
		if len(axis) > 0 {
			offsets[i] = int(math.Round(axis[0] * fsample))
		}
	}
	return offsets
}
