package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("dataset not found")
	ErrEmptyID      = errors.New("dataset id must not be empty")
	ErrInvalidLimit = errors.New("invalid list limit")
)
