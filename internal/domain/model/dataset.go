// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/senselab/datakit/internal/domain/record"
)

// Kind identifies the datatype of a dataset payload.
type Kind string

const (
	// KindRaw marks plain segmented time-series data.
	KindRaw Kind = "raw"
	// KindComp marks decomposed (unmixed) time-series data.
	KindComp Kind = "comp"
)

// Valid reports whether k is a known datatype.
func (k Kind) Valid() bool {
	return k == KindRaw || k == KindComp
}

// Dataset is a record submitted for normalization, together with the
// schema version it claims to conform to. Exactly one of Raw and Comp is
// set, matching Kind.
type Dataset struct {
	ID         string       // unique id for idempotency
	Name       string       // human-readable dataset name
	Kind       Kind         // datatype of the payload
	Version    string       // declared schema version tag
	Raw        *record.Raw  // payload when Kind == KindRaw
	Comp       *record.Comp // payload when Kind == KindComp
	ReceivedAt time.Time    // ingest timestamp
}
