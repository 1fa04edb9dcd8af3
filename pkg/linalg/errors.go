package linalg

import "errors"

// Sentinel kinds for linear-algebra errors.
var (
	ErrEmptyMatrix   = errors.New("matrix has zero dimension")
	ErrFactorization = errors.New("svd factorization failed")
)
