// Package record defines the in-memory record types flowing through the
// normalizers: raw multichannel time-series and their decomposed ("comp")
// counterparts. Field names mirror the conventions of the source datasets.
package record

import "fmt"

// Raw represents segmented multichannel time-series data. Time, Trial and
// Label are required; the remaining fields are optional metadata whose
// presence depends on the schema era the record was produced under.
type Raw struct {
	// Time holds one time axis per trial, in seconds.
	Time [][]float64 `json:"time"`

	// Trial holds one channel x sample matrix per trial.
	Trial []*Matrix `json:"trial"`

	// Label names the channels (components, for decomposed data).
	Label []string `json:"label"`

	// SampleInfo holds the begin and end sample of each trial relative to
	// the original continuous recording. Optional.
	SampleInfo [][2]int `json:"sampleinfo,omitempty"`

	// TrialInfo carries user-defined per-trial values. Optional.
	TrialInfo *Matrix `json:"trialinfo,omitempty"`

	// Sensor descriptions are carried opaquely; their internal migrations
	// are owned by the acquisition layer.
	Grad map[string]any `json:"grad,omitempty"`
	Elec map[string]any `json:"elec,omitempty"`
	Opto map[string]any `json:"opto,omitempty"`

	// Hdr preserves the original acquisition header. Optional.
	Hdr map[string]any `json:"hdr,omitempty"`

	// Cfg preserves the processing provenance. Optional.
	Cfg map[string]any `json:"cfg,omitempty"`

	// Fsample is the sampling rate in Hz. Deprecated: current-era records
	// carry the rate implicitly in their time axes. Zero means unset.
	Fsample float64 `json:"fsample,omitempty"`

	// Offset holds the per-trial offset of the first sample relative to
	// the trigger, in samples. Obsolete: only pre-2011 records use it.
	Offset []int `json:"offset,omitempty"`
}

// Comp represents decomposed (unmixed) multichannel time-series data. The
// embedded Raw carries the shared time-series fields; Topo and TopoLabel
// relate the components back to the original channels.
type Comp struct {
	Raw

	// Topo is the mixing matrix mapping components to original channels
	// (one column per component).
	Topo *Matrix `json:"topo"`

	// TopoLabel names the original channels the topography refers to.
	TopoLabel []string `json:"topolabel"`

	// Unmixing maps original channels to components; when present it is
	// the (pseudo-)inverse of Topo or a stored matrix trusted as-is.
	// Nil means the field is absent. Optional.
	Unmixing *Matrix `json:"unmixing,omitempty"`
}

// Validate checks the required raw fields and their mutual consistency.
func (r *Raw) Validate() error {
	switch {
	case len(r.Time) == 0:
		return MissingField("time")
	case len(r.Trial) == 0:
		return MissingField("trial")
	case len(r.Label) == 0:
		return MissingField("label")
	}
	if len(r.Time) != len(r.Trial) {
		return fmt.Errorf("%w: %d time axes for %d trials", ErrMalformed, len(r.Time), len(r.Trial))
	}
	return nil
}

// Validate checks the fields required of a decomposed record on top of the
// raw requirements.
func (c *Comp) Validate() error {
	if c.Topo == nil {
		return MissingField("topo")
	}
	if len(c.TopoLabel) == 0 {
		return MissingField("topolabel")
	}
	return c.Raw.Validate()
}
