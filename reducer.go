package qweave

import (
	"math"
	"math/cmplx"

	"github.com/theapemachine/qweave/linalg"
	"gonum.org/v1/gonum/floats"
)

/*
reducer keeps representations minimal. After every operation or measurement
it tries Matrix→Vector (numerical rank one) and then Vector→Label (a single
amplitude of unit modulus). Demotion only changes the encoding: the density
operator, or the state up to a global phase, is unchanged.

With Config.Contractions off the reducer is a no-op and representations only
ever grow; State.Contract still demotes on request.
*/
type reducer struct {
	backend linalg.Backend
	tol     float64
	rankTol float64
	off     bool
}

func newReducer(cfg *Config) reducer {
	return reducer{
		backend: cfg.Backend(),
		tol:     cfg.Tolerance,
		rankTol: cfg.SeparabilityTolerance,
		off:     !cfg.Contractions,
	}
}

func (rd reducer) reduce(r Representation) Representation {
	if rd.off {
		return r
	}
	switch r.level {
	case LevelLabel:
		return r
	case LevelVector:
		if l, ok := rd.toLabel(r); ok {
			return l
		}
		return r
	case LevelMatrix:
		v, ok := rd.toVector(r)
		if !ok {
			return r
		}
		return rd.reduce(v)
	}
	return r
}

// reduceVectorOnly demotes a Matrix to a Vector but never to a Label. Product
// spaces use it: their combined tensor is never a bare label.
func (rd reducer) reduceVectorOnly(r Representation) Representation {
	if rd.off || r.level != LevelMatrix {
		return r
	}
	if v, ok := rd.toVector(r); ok {
		return v
	}
	return r
}

func (rd reducer) toLabel(r Representation) (Representation, bool) {
	index := -1
	for i, a := range r.data.RawData() {
		if math.Abs(cmplx.Abs(a)-1) <= rd.tol {
			if index >= 0 {
				return r, false
			}
			index = i
		}
	}
	if index < 0 {
		return r, false
	}
	return Label(index), true
}

/*
toVector recovers ψ from a rank-one ρ = ψψ†. The column j with the largest
diagonal entry gives ψ_i = ρ_ij / sqrt(ρ_jj), exact up to a global phase.
*/
func (rd reducer) toVector(r Representation) (Representation, bool) {
	rho := r.data
	if rd.backend.Rank(rho, rd.rankTol) != 1 {
		return r, false
	}

	n := rho.Rows()
	diag := make([]float64, n)
	for i := range diag {
		diag[i] = real(rho.At(i, i))
	}
	j := floats.MaxIdx(diag)
	if diag[j] <= 0 {
		return r, false
	}

	scale := complex(1/math.Sqrt(diag[j]), 0)
	psi := linalg.New(n, 1)
	for i := 0; i < n; i++ {
		psi.Set(i, 0, rho.At(i, j)*scale)
	}

	if !outer(psi).EqualApprox(rho, rd.rankTol) {
		return r, false
	}
	return Representation{level: LevelVector, data: psi}, true
}

/*
maxPopulated returns the highest basis index whose probability exceeds eps,
or -1 when the distribution is empty.
*/
func maxPopulated(p []float64, eps float64) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] > eps {
			return i
		}
	}
	return -1
}

/*
minimalCutoff returns the smallest dimension d >= floor whose truncated tail
sum_{i>=d} p_i is at most eps.
*/
func minimalCutoff(p []float64, eps float64, floor int) int {
	d := len(p)
	tail := 0.0
	for d > floor {
		if tail+p[d-1] > eps {
			break
		}
		tail += p[d-1]
		d--
	}
	return d
}
