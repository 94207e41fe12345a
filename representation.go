package qweave

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/theapemachine/qweave/linalg"
)

/*
Level orders the three encodings of a quantum state by memory cost. A Label
costs one integer, a Vector D amplitudes and a Matrix D×D entries.
*/
type Level int

const (
	LevelLabel Level = iota
	LevelVector
	LevelMatrix
)

func (l Level) String() string {
	switch l {
	case LevelLabel:
		return "label"
	case LevelVector:
		return "vector"
	case LevelMatrix:
		return "matrix"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

/*
Representation is a closed tagged union over the three encodings. The level
tag selects which field is meaningful: label for LevelLabel, data (a D×1
column) for LevelVector, data (a D×D density operator) for LevelMatrix. Every
consumer switches exhaustively on the tag.

The zero value is Label(0), the ground state.

Matrix data held by a Representation is never written after construction;
transformations always produce a new Representation.
*/
type Representation struct {
	level Level
	label int
	data  *linalg.Matrix
}

// Label encodes the basis state |index⟩.
func Label(index int) Representation {
	return Representation{level: LevelLabel, label: index}
}

// Vector encodes a pure state from its amplitudes.
func Vector(amplitudes ...complex128) Representation {
	return Representation{level: LevelVector, data: linalg.Column(amplitudes...)}
}

// VectorOf encodes a pure state from a column matrix.
func VectorOf(column *linalg.Matrix) Representation {
	return Representation{level: LevelVector, data: column.Clone()}
}

// Density encodes a (possibly mixed) state from its density operator.
func Density(rho *linalg.Matrix) Representation {
	return Representation{level: LevelMatrix, data: rho.Clone()}
}

func (r Representation) Level() Level {
	return r.level
}

// Index returns the basis index of a Label representation.
func (r Representation) Index() (int, bool) {
	if r.level != LevelLabel {
		return 0, false
	}
	return r.label, true
}

// Data returns a copy of the amplitude column or density operator, or nil
// for a Label.
func (r Representation) Data() *linalg.Matrix {
	if r.data == nil {
		return nil
	}
	return r.data.Clone()
}

func (r Representation) String() string {
	switch r.level {
	case LevelLabel:
		return fmt.Sprintf("|%d⟩", r.label)
	case LevelVector:
		return fmt.Sprintf("vector(%d)", r.data.Rows())
	case LevelMatrix:
		return fmt.Sprintf("matrix(%d)", r.data.Rows())
	}
	return "invalid"
}

// validate checks the representation against a dimension.
func (r Representation) validate(dim int) error {
	switch r.level {
	case LevelLabel:
		if r.label < 0 || r.label >= dim {
			return newError(ErrDimension, "representation", "label %d outside dimension %d", r.label, dim)
		}
	case LevelVector:
		if r.data == nil || !r.data.IsColumn() || r.data.Rows() != dim {
			return newError(ErrDimension, "representation", "vector does not have %d amplitudes", dim)
		}
	case LevelMatrix:
		if r.data == nil || !r.data.IsSquare() || r.data.Rows() != dim {
			return newError(ErrDimension, "representation", "density operator is not %dx%d", dim, dim)
		}
	default:
		return newError(ErrValue, "representation", "unknown level %d", r.level)
	}
	return nil
}

/*
promote raises the representation to at least the requested level. It never
lowers a level; that is the reducer's job.
*/
func (r Representation) promote(to Level, dim int) Representation {
	if r.level >= to {
		return r
	}

	switch r.level {
	case LevelLabel:
		v := Representation{level: LevelVector, data: linalg.Basis(dim, r.label)}
		return v.promote(to, dim)
	case LevelVector:
		return Representation{level: LevelMatrix, data: outer(r.data)}
	}
	return r
}

// dense returns the vector or matrix form, promoting a Label to a Vector.
func (r Representation) dense(dim int) Representation {
	return r.promote(LevelVector, dim)
}

/*
Probabilities returns the distribution over the computational basis:
one-hot for a Label, squared moduli for a Vector, the real diagonal for a
Matrix.
*/
func (r Representation) Probabilities(dim int) []float64 {
	p := make([]float64, dim)
	switch r.level {
	case LevelLabel:
		p[r.label] = 1
	case LevelVector:
		for i, a := range r.data.RawData() {
			p[i] = sqAbs(a)
		}
	case LevelMatrix:
		for i := 0; i < dim; i++ {
			p[i] = real(r.data.At(i, i))
		}
	}
	return p
}

// Norm is the total probability: 1 for a Label, the squared norm of a
// Vector, the real trace of a Matrix.
func (r Representation) Norm() float64 {
	switch r.level {
	case LevelLabel:
		return 1
	case LevelVector:
		n := r.data.FrobeniusNorm()
		return n * n
	case LevelMatrix:
		var t float64
		for i := 0; i < r.data.Rows(); i++ {
			t += real(r.data.At(i, i))
		}
		return t
	}
	return 0
}

// scaled returns a renormalized copy given the current total probability.
func (r Representation) scaled(norm float64) Representation {
	switch r.level {
	case LevelVector:
		return Representation{level: LevelVector, data: r.data.Scale(complex(1/math.Sqrt(norm), 0))}
	case LevelMatrix:
		return Representation{level: LevelMatrix, data: r.data.Scale(complex(1/norm, 0))}
	}
	return r
}

// bytes is the storage footprint of the encoding at dimension dim.
func bytesFor(level Level, dim int) int64 {
	switch level {
	case LevelVector:
		return int64(dim) * 16
	case LevelMatrix:
		return int64(dim) * int64(dim) * 16
	}
	return 8
}

/*
Fidelity returns |⟨a|b⟩|² for two pure states, or ⟨a|ρ|a⟩ when one side is
mixed. Both sides must be pure or at most one mixed.
*/
func Fidelity(a, b Representation, dim int) float64 {
	if a.level == LevelMatrix && b.level == LevelMatrix {
		// Tr(ρσ) is sufficient for the rank-one comparisons the package makes.
		var t complex128
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				t += a.data.At(i, j) * b.data.At(j, i)
			}
		}
		return real(t)
	}
	if a.level == LevelMatrix {
		a, b = b, a
	}

	av := a.dense(dim).data
	if b.level == LevelMatrix {
		var t complex128
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				t += cmplx.Conj(av.At(i, 0)) * b.data.At(i, j) * av.At(j, 0)
			}
		}
		return real(t)
	}

	bv := b.dense(dim).data
	var overlap complex128
	for i := 0; i < dim; i++ {
		overlap += cmplx.Conj(av.At(i, 0)) * bv.At(i, 0)
	}
	return sqAbs(overlap)
}

func outer(column *linalg.Matrix) *linalg.Matrix {
	n := column.Rows()
	out := linalg.New(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, column.At(i, 0)*cmplx.Conj(column.At(j, 0)))
		}
	}
	return out
}

func sqAbs(c complex128) float64 {
	return real(c)*real(c) + imag(c)*imag(c)
}
