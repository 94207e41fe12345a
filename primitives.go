package qweave

import (
	"math"

	"github.com/theapemachine/qweave/linalg"
)

/*
Primitive builds the matrix of one named operator at a given dimension.
Expressions are evaluated against the container's current dimension, so a
primitive must be able to produce its matrix for any dimension it supports.
*/
type Primitive func(dim int) (*linalg.Matrix, error)

/*
Context maps primitive names to constructors. Each Operation owns its
context; there is no shared registry. The constructors below return fresh
maps that callers may extend freely.
*/
type Context map[string]Primitive

// Clone returns a shallow copy that can be extended without touching c.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for name, p := range c {
		out[name] = p
	}
	return out
}

// FockContext provides a, a_dag, n and identity.
func FockContext() Context {
	return Context{
		"a":        annihilationMatrix,
		"a_dag":    creationMatrix,
		"n":        numberMatrix,
		"identity": identityMatrix,
	}
}

// PolarizationContext provides the Pauli operators x, y, z and identity.
func PolarizationContext() Context {
	return Context{
		"x":        pauli(0, 1, 1, 0),
		"y":        pauli(0, -1i, 1i, 0),
		"z":        pauli(1, 0, 0, -1),
		"identity": identityMatrix,
	}
}

// DefaultContext is the union of the Fock and polarization contexts.
func DefaultContext() Context {
	ctx := FockContext()
	for name, p := range PolarizationContext() {
		ctx[name] = p
	}
	return ctx
}

func annihilationMatrix(dim int) (*linalg.Matrix, error) {
	if dim < 1 {
		return nil, newError(ErrDimension, "primitive a", "dimension %d", dim)
	}
	m := linalg.New(dim, dim)
	for n := 1; n < dim; n++ {
		m.Set(n-1, n, complex(math.Sqrt(float64(n)), 0))
	}
	return m, nil
}

func creationMatrix(dim int) (*linalg.Matrix, error) {
	a, err := annihilationMatrix(dim)
	if err != nil {
		return nil, err
	}
	return a.H(), nil
}

func numberMatrix(dim int) (*linalg.Matrix, error) {
	if dim < 1 {
		return nil, newError(ErrDimension, "primitive n", "dimension %d", dim)
	}
	m := linalg.New(dim, dim)
	for n := 0; n < dim; n++ {
		m.Set(n, n, complex(float64(n), 0))
	}
	return m, nil
}

func identityMatrix(dim int) (*linalg.Matrix, error) {
	if dim < 1 {
		return nil, newError(ErrDimension, "primitive identity", "dimension %d", dim)
	}
	return linalg.Identity(dim), nil
}

func pauli(a, b, c, d complex128) Primitive {
	return func(dim int) (*linalg.Matrix, error) {
		if dim != 2 {
			return nil, newError(ErrDimension, "pauli primitive", "needs dimension 2, got %d", dim)
		}
		return linalg.FromRows([]complex128{a, b}, []complex128{c, d}), nil
	}
}
