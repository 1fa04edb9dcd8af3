package record

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense row-major float64 matrix. It embeds a gonum matrix so
// it can be handed to linear-algebra routines directly, and encodes to JSON
// as an array of rows for the HTTP surface.
type Matrix struct {
	mat.Dense
}

// NewMatrix creates an r x c matrix backed by data (row-major). A nil data
// slice allocates a zeroed matrix.
func NewMatrix(r, c int, data []float64) *Matrix {
	return &Matrix{Dense: *mat.NewDense(r, c, data)}
}

// MatrixFromRows builds a Matrix from a slice of equally sized rows.
func MatrixFromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: matrix has no rows", ErrMalformed)
	}
	c := len(rows[0])
	if c == 0 {
		return nil, fmt.Errorf("%w: matrix has empty rows", ErrMalformed)
	}
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformed, i, len(row), c)
		}
		data = append(data, row...)
	}
	return NewMatrix(len(rows), c, data), nil
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	if m == nil {
		return nil
	}
	out := &Matrix{}
	out.CloneFrom(&m.Dense)
	return out
}

// Rows returns the matrix content as a slice of rows. The rows are copies.
func (m *Matrix) Rows() [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		mat.Row(row, i, m)
		rows[i] = row
	}
	return rows
}

// MarshalJSON encodes the matrix as an array of rows.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(m.Rows())
	if err != nil {
		return nil, fmt.Errorf("encode matrix: %w", err)
	}
	return b, nil
}

// UnmarshalJSON decodes an array of equally sized rows.
func (m *Matrix) UnmarshalJSON(b []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(b, &rows); err != nil {
		return fmt.Errorf("decode matrix: %w", err)
	}
	parsed, err := MatrixFromRows(rows)
	if err != nil {
		return err
	}
	m.Dense = parsed.Dense
	return nil
}
