package record

import (
	"errors"
	"fmt"
)

// Sentinel kinds for record errors.
var (
	ErrMissingField = errors.New("missing required field")
	ErrMalformed    = errors.New("malformed record")
)

// MissingField wraps ErrMissingField with the name of the absent field so
// callers can both errors.Is on the kind and report the field.
func MissingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}
