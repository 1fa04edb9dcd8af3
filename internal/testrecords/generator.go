// Package testrecords generates synthetic raw and decomposed records for
// tests and local exercising of the normalization pipeline.
package testrecords

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/senselab/datakit/internal/domain/model"
	"github.com/senselab/datakit/internal/domain/record"
	"github.com/senselab/datakit/internal/domain/version"
)

// Defaults for generated geometry.
const (
	defaultChannels   = 4
	defaultComponents = 3
	defaultTrials     = 2
	defaultSamples    = 50
	defaultRate       = 250.0

	signalAmplitude = 5.0
	noiseAmplitude  = 0.5
)

// Generator produces reproducible synthetic records from a seeded source.
type Generator struct {
	rng *rand.Rand

	channels   int
	components int
	trials     int
	samples    int
	rate       float64
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithChannels sets the channel count of generated records.
func WithChannels(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.channels = n
		}
	}
}

// WithComponents sets the component count of generated comp records.
func WithComponents(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.components = n
		}
	}
}

// WithTrials sets the trial count of generated records.
func WithTrials(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.trials = n
		}
	}
}

// WithSamples sets the samples per trial of generated records.
func WithSamples(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.samples = n
		}
	}
}

// WithSamplingRate sets the sampling rate used for time axes.
func WithSamplingRate(hz float64) Option {
	return func(g *Generator) {
		if hz > 0 {
			g.rate = hz
		}
	}
}

// New creates a Generator seeded for reproducible output.
func New(seed int64, opts ...Option) *Generator {
	g := &Generator{
		rng:        rand.New(rand.NewSource(seed)),
		channels:   defaultChannels,
		components: defaultComponents,
		trials:     defaultTrials,
		samples:    defaultSamples,
		rate:       defaultRate,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Raw generates a raw record with consistent time axes, trials and labels.
func (g *Generator) Raw() record.Raw {
	rec := record.Raw{
		Time:    make([][]float64, g.trials),
		Trial:   make([]*record.Matrix, g.trials),
		Label:   channelLabels(g.channels),
		Fsample: g.rate,
	}
	for t := 0; t < g.trials; t++ {
		rec.Time[t] = g.timeAxis()
		rec.Trial[t] = g.signalMatrix(g.channels)
	}
	return rec
}

// Comp generates a decomposed record whose topography is full column rank,
// so its pseudo-inverse is a proper left inverse.
func (g *Generator) Comp() record.Comp {
	rec := record.Comp{
		Raw: record.Raw{
			Time:    make([][]float64, g.trials),
			Trial:   make([]*record.Matrix, g.trials),
			Label:   componentLabels(g.components),
			Fsample: g.rate,
		},
		TopoLabel: channelLabels(g.channels),
		Topo:      g.topography(),
	}
	for t := 0; t < g.trials; t++ {
		rec.Time[t] = g.timeAxis()
		rec.Trial[t] = g.signalMatrix(g.components)
	}
	return rec
}

// Dataset wraps a generated record of the given kind into a dataset ready
// for ingest.
func (g *Generator) Dataset(kind model.Kind) model.Dataset {
	ds := model.Dataset{
		ID:      uuid.New().String(),
		Name:    fmt.Sprintf("synthetic-%s-%04d", kind, g.rng.Intn(10_000)),
		Kind:    kind,
		Version: version.LatestTag,
	}
	switch kind {
	case model.KindComp:
		rec := g.Comp()
		ds.Comp = &rec
	case model.KindRaw:
		rec := g.Raw()
		ds.Raw = &rec
	}
	return ds
}

// timeAxis returns a uniformly sampled axis starting at zero.
func (g *Generator) timeAxis() []float64 {
	axis := make([]float64, g.samples)
	for i := range axis {
		axis[i] = float64(i) / g.rate
	}
	return axis
}

// signalMatrix returns a rows x samples matrix of sinusoids with noise.
func (g *Generator) signalMatrix(rows int) *record.Matrix {
	data := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		freq := 1.0 + g.rng.Float64()*9.0
		phase := g.rng.Float64() * 2 * math.Pi
		row := make([]float64, g.samples)
		for i := range row {
			t := float64(i) / g.rate
			row[i] = signalAmplitude*math.Sin(2*math.Pi*freq*t+phase) + noiseAmplitude*g.rng.NormFloat64()
		}
		data[r] = row
	}
	m, err := record.MatrixFromRows(data)
	if err != nil {
		panic(err)
	}
	return m
}

// topography returns a channels x components mixing matrix. Adding identity
// rows keeps the columns linearly independent regardless of the random part.
func (g *Generator) topography() *record.Matrix {
	data := make([][]float64, g.channels)
	for ch := 0; ch < g.channels; ch++ {
		row := make([]float64, g.components)
		for c := range row {
			row[c] = g.rng.NormFloat64()
			if ch == c {
				row[c] += float64(g.components)
			}
		}
		data[ch] = row
	}
	m, err := record.MatrixFromRows(data)
	if err != nil {
		panic(err)
	}
	return m
}

func channelLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("chan%03d", i+1)
	}
	return labels
}

func componentLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("comp%03d", i+1)
	}
	return labels
}
