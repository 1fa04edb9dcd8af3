// Package linalg provides the small set of dense linear-algebra helpers the
// normalizers need, built on gonum.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PseudoInverse computes the Moore-Penrose pseudo-inverse of a via a thin
// SVD. Singular values at or below max(m,n) * eps * smax are treated as
// zero, matching the conventional numerical-rank cutoff. For an m x n input
// the result is n x m.
func PseudoInverse(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()
	if r == 0 || c == 0 {
		return nil, ErrEmptyMatrix
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrFactorization
	}

	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Values are sorted descending, so s[0] is the largest.
	eps := math.Nextafter(1, 2) - 1
	tol := float64(max(r, c)) * eps * s[0]

	sinv := make([]float64, len(s))
	for i, sv := range s {
		if sv > tol {
			sinv[i] = 1 / sv
		}
	}

	// pinv = V * S^+ * U^T
	var vs mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(sinv), sinv))
	var pinv mat.Dense
	pinv.Mul(&vs, u.T())
	return &pinv, nil
}
