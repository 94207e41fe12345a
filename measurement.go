package qweave

import (
	"github.com/theapemachine/qweave/linalg"
)

/*
Outcome is the result of a measurement. Index holds one basis index per
measured container, in the order they were measured; Probability is the
probability of the whole sequence of outcomes.
*/
type Outcome struct {
	Index       []int
	Probability float64
}

type measureOptions struct {
	basis        *linalg.Matrix
	polarization string
	perState     map[*State]*linalg.Matrix
	destructive  bool
}

type MeasureOption func(*measureOptions)

/*
WithMeasurementBasis measures every target in the basis given by the
columns of the unitary basis. Targets of a different dimension fail with
ErrValue.
*/
func WithMeasurementBasis(basis *linalg.Matrix) MeasureOption {
	return func(m *measureOptions) {
		m.basis = basis
	}
}

// WithBasisFor sets the measurement basis of one target only.
func WithBasisFor(s *State, basis *linalg.Matrix) MeasureOption {
	return func(m *measureOptions) {
		if m.perState == nil {
			m.perState = make(map[*State]*linalg.Matrix)
		}
		m.perState[s] = basis
	}
}

// WithPolarizationBasis measures polarization targets in "HV", "DA" or "RL".
func WithPolarizationBasis(name string) MeasureOption {
	return func(m *measureOptions) {
		m.polarization = name
	}
}

// Destructive marks measured containers as consumed.
func Destructive() MeasureOption {
	return func(m *measureOptions) {
		m.destructive = true
	}
}

func newMeasureOptions(opts []MeasureOption) *measureOptions {
	m := &measureOptions{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

/*
basisFor resolves the basis for a target: an explicit per-target basis wins,
then a named polarization basis for polarization targets, then the general
basis, then the basis a custom state declared with WithBasis. Nil means the
computational basis: photon number for Fock, H/V for polarization.
*/
func (m *measureOptions) basisFor(s *State) (*linalg.Matrix, error) {
	if b, ok := m.perState[s]; ok {
		return b, nil
	}
	if m.polarization != "" && s.kind == KindPolarization {
		b, err := PolarizationBasis(m.polarization)
		if err != nil {
			return nil, err
		}
		if m.polarization == "HV" {
			return nil, nil
		}
		return b, nil
	}
	if m.basis != nil {
		return m.basis, nil
	}
	if s.kind == KindCustom {
		return s.basis, nil
	}
	return nil, nil
}

/*
Distribution returns the outcome probabilities of measuring a single
container in the computational basis, without sampling or disturbing it.
*/
func (s *State) Distribution() ([]float64, error) {
	return s.Probabilities()
}

/*
Expectation returns Tr(ρA) for an observable on this container alone.
*/
func (s *State) Expectation(observable *linalg.Matrix) (float64, error) {
	if observable.Rows() != s.dim || !observable.IsSquare() {
		return 0, newError(ErrDimension, "expectation", "observable is %dx%d, container has dimension %d", observable.Rows(), observable.Cols(), s.dim)
	}

	rep, err := s.Reduced()
	if err != nil {
		return 0, err
	}

	b := s.cfg.Backend()
	rho := rep.promote(LevelMatrix, s.dim).data
	return real(b.Trace(b.Mul(rho, observable))), nil
}
