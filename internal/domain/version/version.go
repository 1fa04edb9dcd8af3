// Package version defines the closed set of schema version tags used by the
// record normalizers. Adding a new era means adding a constant here and
// extending every switch that consumes Version; the compiler flags the rest.
package version

import "fmt"

// Version identifies a historical field-set convention for records.
type Version uint8

const (
	// V2003 is the oldest supported convention: per-trial offsets and an
	// explicit sampling rate, no sample/trial bookkeeping matrices.
	V2003 Version = iota + 1

	// V2011v1 introduced sample bookkeeping but predates stored unmixing
	// matrices.
	V2011v1

	// V2011v2 is the current convention: unmixing stored alongside the
	// mixing matrix, offsets and sampling rate folded into the time axes.
	V2011v2
)

// Latest is the version the sentinel tag "latest" resolves to.
const Latest = V2011v2

// LatestTag is the sentinel accepted wherever a version tag is expected.
const LatestTag = "latest"

// Parse maps a version tag to its Version. The sentinel "latest" resolves
// to Latest. Unknown tags yield an error wrapping ErrUnsupported that
// carries the offending tag.
func Parse(tag string) (Version, error) {
	switch tag {
	case "2003":
		return V2003, nil
	case "2011v1":
		return V2011v1, nil
	case "2011v2", LatestTag:
		return V2011v2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupported, tag)
	}
}

// String returns the canonical tag for v.
func (v Version) String() string {
	switch v {
	case V2003:
		return "2003"
	case V2011v1:
		return "2011v1"
	case V2011v2:
		return "2011v2"
	default:
		return fmt.Sprintf("version(%d)", uint8(v))
	}
}
