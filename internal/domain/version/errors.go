package version

import "errors"

// Sentinel kinds for version errors.
var (
	ErrUnsupported = errors.New("unsupported schema version")
)
