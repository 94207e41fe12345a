package qweave

import (
	"math"
	"math/cmplx"

	"github.com/theapemachine/qweave/linalg"
)

/*
Index bookkeeping for tensors laid out over an ordered list of subsystem
dimensions. Every helper takes a Vector or Matrix representation (never a
Label) together with dims, and returns a fresh representation.
*/

// marginal returns the joint distribution over axes, row-major in axes order.
func marginal(r Representation, dims []int, axes []int) []float64 {
	kept := linalg.Offsets(dims, axes)
	rest := linalg.Offsets(dims, linalg.Complement(axes, len(dims)))
	p := make([]float64, len(kept))

	switch r.level {
	case LevelVector:
		data := r.data.RawData()
		for i, k := range kept {
			for _, t := range rest {
				p[i] += sqAbs(data[k+t])
			}
		}
	case LevelMatrix:
		for i, k := range kept {
			for _, t := range rest {
				p[i] += real(r.data.At(k+t, k+t))
			}
		}
	}
	return p
}

/*
project selects outcome k on axis and drops that axis. The result is not
renormalized; its norm is the probability of the outcome.
*/
func project(r Representation, dims []int, axis, k int) Representation {
	rest := linalg.Offsets(dims, linalg.Complement([]int{axis}, len(dims)))
	off := k * linalg.Strides(dims)[axis]

	switch r.level {
	case LevelVector:
		out := linalg.New(len(rest), 1)
		data := r.data.RawData()
		for n, t := range rest {
			out.Set(n, 0, data[off+t])
		}
		return Representation{level: LevelVector, data: out}
	case LevelMatrix:
		out := linalg.New(len(rest), len(rest))
		for a, ta := range rest {
			for b, tb := range rest {
				out.Set(a, b, r.data.At(off+ta, off+tb))
			}
		}
		return Representation{level: LevelMatrix, data: out}
	}
	return r
}

/*
permute reorders the subsystems so that new position i holds old subsystem
order[i].
*/
func permute(r Representation, dims []int, order []int) Representation {
	offs := linalg.Offsets(dims, order)

	switch r.level {
	case LevelVector:
		out := linalg.New(len(offs), 1)
		data := r.data.RawData()
		for n, o := range offs {
			out.Set(n, 0, data[o])
		}
		return Representation{level: LevelVector, data: out}
	case LevelMatrix:
		out := linalg.New(len(offs), len(offs))
		for a, oa := range offs {
			for b, ob := range offs {
				out.Set(a, b, r.data.At(oa, ob))
			}
		}
		return Representation{level: LevelMatrix, data: out}
	}
	return r
}

func permuteDims(dims []int, order []int) []int {
	out := make([]int, len(order))
	for i, o := range order {
		out[i] = dims[o]
	}
	return out
}

/*
resizeAxis pads or truncates one subsystem to newDim. Truncation drops
amplitudes outright; callers verify the dropped mass first.
*/
func resizeAxis(r Representation, dims []int, axis, newDim int) Representation {
	newDims := append([]int(nil), dims...)
	newDims[axis] = newDim
	keep := min(dims[axis], newDim)

	others := linalg.Complement([]int{axis}, len(dims))
	oldRest := linalg.Offsets(dims, others)
	newRest := linalg.Offsets(newDims, others)
	oldStride := linalg.Strides(dims)[axis]
	newStride := linalg.Strides(newDims)[axis]

	type pair struct{ from, to int }
	idx := make([]pair, 0, keep*len(oldRest))
	for k := 0; k < keep; k++ {
		for n := range oldRest {
			idx = append(idx, pair{from: k*oldStride + oldRest[n], to: k*newStride + newRest[n]})
		}
	}

	size := linalg.Product(newDims)
	switch r.level {
	case LevelVector:
		out := linalg.New(size, 1)
		data := r.data.RawData()
		for _, p := range idx {
			out.Set(p.to, 0, data[p.from])
		}
		return Representation{level: LevelVector, data: out}
	case LevelMatrix:
		out := linalg.New(size, size)
		for _, a := range idx {
			for _, b := range idx {
				out.Set(a.to, b.to, r.data.At(a.from, b.from))
			}
		}
		return Representation{level: LevelMatrix, data: out}
	}
	return r
}

/*
embed expands an operator acting on the target subsystems (in targets order)
to the whole space, padding every other subsystem with the identity. When the
targets are contiguous and ascending the padding is a plain Kronecker
product; otherwise the operator is scattered through the index map.
*/
func embed(b linalg.Backend, op *linalg.Matrix, dims []int, targets []int) *linalg.Matrix {
	if contiguous(targets) {
		left := linalg.Product(dims[:targets[0]])
		right := linalg.Product(dims[targets[len(targets)-1]+1:])
		full := op
		if left > 1 {
			full = b.Kron(linalg.Identity(left), full)
		}
		if right > 1 {
			full = b.Kron(full, linalg.Identity(right))
		}
		return full
	}

	tOff := linalg.Offsets(dims, targets)
	rOff := linalg.Offsets(dims, linalg.Complement(targets, len(dims)))
	size := linalg.Product(dims)
	full := b.Allocate(size, size)
	for i, ti := range tOff {
		for j, tj := range tOff {
			v := op.At(i, j)
			if v == 0 {
				continue
			}
			for _, r := range rOff {
				full.Set(ti+r, tj+r, v)
			}
		}
	}
	return full
}

func contiguous(targets []int) bool {
	for i := 1; i < len(targets); i++ {
		if targets[i] != targets[i-1]+1 {
			return false
		}
	}
	return len(targets) > 0
}

// evolve applies U to a vector (Uψ) or a density operator (UρU†).
func evolve(b linalg.Backend, r Representation, u *linalg.Matrix) Representation {
	switch r.level {
	case LevelVector:
		return Representation{level: LevelVector, data: b.Mul(u, r.data)}
	case LevelMatrix:
		return Representation{level: LevelMatrix, data: b.Mul(b.Mul(u, r.data), u.H())}
	}
	return r
}

// channel applies a Kraus set to a density operator: Σ KρK†.
func channel(b linalg.Backend, rho *linalg.Matrix, kraus []*linalg.Matrix) Representation {
	var out *linalg.Matrix
	for _, k := range kraus {
		term := b.Mul(b.Mul(k, rho), k.H())
		if out == nil {
			out = term
			continue
		}
		out = out.Add(term)
	}
	return Representation{level: LevelMatrix, data: out}
}

// kronRep tensors two representations of equal level.
func kronRep(b linalg.Backend, x, y Representation) Representation {
	return Representation{level: x.level, data: b.Kron(x.data, y.data)}
}

/*
splitVector tests whether ψ over (A, B), with A the leading dA indices,
factorizes as a⊗b. The Schmidt rank is estimated from the singular values of
ψ reshaped to dA×dB. On success the factors are recovered from the row and
column through the largest amplitude, normalized, and phase-fixed so that
each factor's largest amplitude is real and positive.
*/
func splitVector(b linalg.Backend, psi *linalg.Matrix, dA, dB int, tol float64) (*linalg.Matrix, *linalg.Matrix, bool) {
	m := linalg.NewFromData(dA, dB, psi.RawData())
	if b.Rank(m, tol) != 1 {
		return nil, nil, false
	}

	best := 0
	data := psi.RawData()
	for i, v := range data {
		if cmplx.Abs(v) > cmplx.Abs(data[best]) {
			best = i
		}
	}
	i0, j0 := best/dB, best%dB
	pivot := m.At(i0, j0)

	left := linalg.New(dA, 1)
	for i := 0; i < dA; i++ {
		left.Set(i, 0, m.At(i, j0))
	}
	right := linalg.New(dB, 1)
	for j := 0; j < dB; j++ {
		right.Set(j, 0, m.At(i0, j)/pivot)
	}

	left, right = canonicalPhase(normalizeColumn(left)), canonicalPhase(normalizeColumn(right))
	if !phaseAlign(b.Kron(left, right), psi).EqualApprox(normalizeColumn(psi), math.Sqrt(tol)) {
		return nil, nil, false
	}
	return left, right, true
}

/*
splitDensity tests whether ρ over (A, B) equals ρ_A⊗ρ_B within tol and
returns the two marginals when it does.
*/
func splitDensity(b linalg.Backend, rho *linalg.Matrix, dA, dB int, tol float64) (*linalg.Matrix, *linalg.Matrix, bool) {
	dims := []int{dA, dB}
	a := b.PartialTrace(rho, dims, []int{0})
	c := b.PartialTrace(rho, dims, []int{1})
	if rho.Sub(b.Kron(a, c)).MaxAbs() > tol {
		return nil, nil, false
	}
	return a, c, true
}

func normalizeColumn(v *linalg.Matrix) *linalg.Matrix {
	n := v.FrobeniusNorm()
	if n == 0 {
		return v
	}
	return v.Scale(complex(1/n, 0))
}

// canonicalPhase rotates a column so its largest amplitude is real positive.
func canonicalPhase(v *linalg.Matrix) *linalg.Matrix {
	data := v.RawData()
	best := 0
	for i, a := range data {
		if cmplx.Abs(a) > cmplx.Abs(data[best])+1e-15 {
			best = i
		}
	}
	if data[best] == 0 {
		return v
	}
	return v.Scale(cmplx.Conj(data[best]) / complex(cmplx.Abs(data[best]), 0))
}

// phaseAlign multiplies x by the global phase that best aligns it with y.
func phaseAlign(x, y *linalg.Matrix) *linalg.Matrix {
	var overlap complex128
	xd, yd := x.RawData(), y.RawData()
	for i := range xd {
		overlap += cmplx.Conj(xd[i]) * yd[i]
	}
	if overlap == 0 {
		return x
	}
	return x.Scale(overlap / complex(cmplx.Abs(overlap), 0))
}
