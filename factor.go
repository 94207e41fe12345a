package qweave

import (
	"github.com/theapemachine/qweave/linalg"
)

// part is one independent factor of a product space.
type part struct {
	members []int
	rep     Representation
	dims    []int
}

/*
factor splits a Materialized space into independent parts. Parts with one
member dissolve into separable containers, larger parts become new
Materialized spaces, and the original space is retired. A space that does
not factorize is left untouched. Members of a space that was never evolved
get back the exact representation they joined with, not just the same state
up to a global phase.
*/
func (ce *CompositeEnvelope) factor(ps *ProductSpace) error {
	if ps.phase != PhaseMaterialized || len(ps.members) < 2 {
		return nil
	}

	e := newEngine(ce.cfg)
	f := ps.frame()
	all := make([]int, len(f.dims))
	for i := range all {
		all[i] = i
	}

	parts := ce.split(e, part{members: all, rep: f.rep, dims: f.dims})
	if len(parts) == 1 {
		return nil
	}

	members := ps.members
	for _, pt := range parts {
		if len(pt.members) == 1 {
			m := members[pt.members[0]]
			rep, ok := ps.restored(m)
			if !ok {
				rep = e.rd.reduce(pt.rep)
			}
			m.separate(rep, m.dim)
			continue
		}

		group := make([]*State, len(pt.members))
		for i, idx := range pt.members {
			group[i] = members[idx]
		}
		nps := newProductSpace(SpaceID(len(ce.spaces)), group, nil)
		ce.spaces = append(ce.spaces, nps)
		for _, m := range group {
			m.space = nps.id
		}
		nps.rep = e.rd.reduceVectorOnly(pt.rep)
		nps.origin = ps.originOf(group)
		if err := nps.transition(PhaseMaterialized, "factor"); err != nil {
			return err
		}
	}

	ps.members = nil
	ce.cfg.Metrics().recordEvent("factor")
	return ce.retire(ps, "factor")
}

/*
split searches for a bipartition (S, R) of the part with ψ = ψ_S ⊗ ψ_R, or
ρ = ρ_S ⊗ ρ_R, trying subsets S of increasing size, and recurses into both
sides. Parts larger than FactorSearchLimit only try single members.
*/
func (ce *CompositeEnvelope) split(e engine, pt part) []part {
	n := len(pt.members)
	if n < 2 {
		return []part{pt}
	}

	largest := n / 2
	if n > ce.cfg.FactorSearchLimit {
		largest = 1
	}

	for size := 1; size <= largest; size++ {
		for _, subset := range subsets(n, size) {
			left, right, ok := ce.bipartition(e, pt, subset)
			if !ok {
				continue
			}
			return append(ce.split(e, left), ce.split(e, right)...)
		}
	}
	return []part{pt}
}

func (ce *CompositeEnvelope) bipartition(e engine, pt part, subset []int) (part, part, bool) {
	rest := linalg.Complement(subset, len(pt.members))
	order := append(append([]int(nil), subset...), rest...)

	dimsS := permuteDims(pt.dims, subset)
	dimsR := permuteDims(pt.dims, rest)
	dS, dR := linalg.Product(dimsS), linalg.Product(dimsR)

	rep := permute(pt.rep, pt.dims, order)
	tol := ce.cfg.SeparabilityTolerance

	var a, b *linalg.Matrix
	var ok bool
	switch rep.level {
	case LevelVector:
		a, b, ok = splitVector(e.backend, rep.data, dS, dR, tol)
	case LevelMatrix:
		a, b, ok = splitDensity(e.backend, rep.data, dS, dR, tol)
	}
	if !ok {
		return part{}, part{}, false
	}

	left := part{members: pick(pt.members, subset), rep: Representation{level: rep.level, data: a}, dims: dimsS}
	right := part{members: pick(pt.members, rest), rep: Representation{level: rep.level, data: b}, dims: dimsR}
	return left, right, true
}

// subsets enumerates the size-k subsets of [0, n) in lexicographic order.
func subsets(n, k int) [][]int {
	var out [][]int
	current := make([]int, 0, k)

	var walk func(start int)
	walk = func(start int) {
		if len(current) == k {
			out = append(out, append([]int(nil), current...))
			return
		}
		for i := start; i <= n-(k-len(current)); i++ {
			current = append(current, i)
			walk(i + 1)
			current = current[:len(current)-1]
		}
	}
	walk(0)
	return out
}

func pick(values []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
