package linalg

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/cmplxs"
)

/*
Matrix is a dense, row-major complex matrix. Column vectors are stored as
D×1 matrices so that state vectors and density operators share one type.

Matrices handed to the core are treated as immutable: every backend
operation returns a fresh Matrix and never writes into its inputs.
*/
type Matrix struct {
	rows int
	cols int
	data []complex128
}

// New allocates a zero matrix.
func New(rows, cols int) *Matrix {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("linalg: invalid shape %dx%d", rows, cols))
	}

	return &Matrix{rows: rows, cols: cols, data: make([]complex128, rows*cols)}
}

// NewFromData wraps data without copying. len(data) must equal rows*cols.
func NewFromData(rows, cols int, data []complex128) *Matrix {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("linalg: data length %d does not match %dx%d", len(data), rows, cols))
	}

	return &Matrix{rows: rows, cols: cols, data: data}
}

// FromRows builds a matrix from equally sized rows.
func FromRows(rows ...[]complex128) *Matrix {
	if len(rows) == 0 {
		panic("linalg: no rows")
	}

	m := New(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			panic("linalg: ragged rows")
		}
		copy(m.data[i*m.cols:], row)
	}

	return m
}

// Column builds a column vector.
func Column(values ...complex128) *Matrix {
	data := make([]complex128, len(values))
	copy(data, values)
	return NewFromData(len(values), 1, data)
}

// Identity returns the n×n identity.
func Identity(n int) *Matrix {
	m := New(n, n)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

// Basis returns the k-th computational basis column vector of length n.
func Basis(n, k int) *Matrix {
	m := New(n, 1)
	m.data[k] = 1
	return m
}

func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }
func (m *Matrix) Rows() int        { return m.rows }
func (m *Matrix) Cols() int        { return m.cols }

// At returns element (i, j).
func (m *Matrix) At(i, j int) complex128 {
	return m.data[i*m.cols+j]
}

// Set writes element (i, j). Only used while a matrix is being built.
func (m *Matrix) Set(i, j int, v complex128) {
	m.data[i*m.cols+j] = v
}

// RawData exposes the backing slice. Callers must not mutate it.
func (m *Matrix) RawData() []complex128 {
	return m.data
}

func (m *Matrix) IsSquare() bool { return m.rows == m.cols }
func (m *Matrix) IsColumn() bool { return m.cols == 1 }

// Bytes is the storage footprint of the element data.
func (m *Matrix) Bytes() int64 {
	return int64(len(m.data)) * 16
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	data := make([]complex128, len(m.data))
	copy(data, m.data)
	return NewFromData(m.rows, m.cols, data)
}

// H returns the conjugate transpose.
func (m *Matrix) H() *Matrix {
	out := New(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			out.data[j*m.rows+i] = cmplx.Conj(m.data[i*m.cols+j])
		}
	}
	return out
}

// Conj returns the element-wise complex conjugate.
func (m *Matrix) Conj() *Matrix {
	out := m.Clone()
	for i, v := range out.data {
		out.data[i] = cmplx.Conj(v)
	}
	return out
}

// Scale returns c·m.
func (m *Matrix) Scale(c complex128) *Matrix {
	out := m.Clone()
	cmplxs.Scale(c, out.data)
	return out
}

// Add returns m + other.
func (m *Matrix) Add(other *Matrix) *Matrix {
	m.mustMatch(other)
	out := m.Clone()
	cmplxs.Add(out.data, other.data)
	return out
}

// Sub returns m - other.
func (m *Matrix) Sub(other *Matrix) *Matrix {
	m.mustMatch(other)
	out := m.Clone()
	cmplxs.Sub(out.data, other.data)
	return out
}

// MaxAbs is the largest element modulus.
func (m *Matrix) MaxAbs() float64 {
	return cmplx.Abs(cmplxs.MaxAbs(m.data))
}

// FrobeniusNorm is sqrt(sum |m_ij|^2).
func (m *Matrix) FrobeniusNorm() float64 {
	return cmplxs.Norm(m.data, 2)
}

// EqualApprox reports element-wise equality within tol.
func (m *Matrix) EqualApprox(other *Matrix, tol float64) bool {
	if other == nil || m.rows != other.rows || m.cols != other.cols {
		return false
	}
	return cmplxs.EqualApprox(m.data, other.data, tol)
}

// IsHermitian reports whether m equals its adjoint within tol.
func (m *Matrix) IsHermitian(tol float64) bool {
	if !m.IsSquare() {
		return false
	}
	for i := 0; i < m.rows; i++ {
		for j := i; j < m.cols; j++ {
			if cmplx.Abs(m.At(i, j)-cmplx.Conj(m.At(j, i))) > tol {
				return false
			}
		}
	}
	return true
}

func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix(%dx%d)", m.rows, m.cols)
}

func (m *Matrix) general() cblas128.General {
	return cblas128.General{Rows: m.rows, Cols: m.cols, Stride: m.cols, Data: m.data}
}

func (m *Matrix) mustMatch(other *Matrix) {
	if m.rows != other.rows || m.cols != other.cols {
		panic(fmt.Sprintf("linalg: shape mismatch %dx%d vs %dx%d", m.rows, m.cols, other.rows, other.cols))
	}
}
