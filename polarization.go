package qweave

import (
	"math"

	"github.com/theapemachine/qweave/linalg"
)

// PolarizationLabel names one of the six cardinal polarization states.
type PolarizationLabel string

const (
	Horizontal    PolarizationLabel = "H"
	Vertical      PolarizationLabel = "V"
	Diagonal      PolarizationLabel = "D"
	AntiDiagonal  PolarizationLabel = "A"
	RightCircular PolarizationLabel = "R"
	LeftCircular  PolarizationLabel = "L"
)

/*
Polarized returns the representation of a cardinal polarization state in
the H/V basis. H and V are labels; the others are superpositions:

	D = (H + V)/√2   A = (H - V)/√2
	R = (H + iV)/√2  L = (H - iV)/√2
*/
func Polarized(label PolarizationLabel) (Representation, error) {
	s := complex(1/math.Sqrt2, 0)

	switch label {
	case Horizontal:
		return Label(0), nil
	case Vertical:
		return Label(1), nil
	case Diagonal:
		return Vector(s, s), nil
	case AntiDiagonal:
		return Vector(s, -s), nil
	case RightCircular:
		return Vector(s, 1i*s), nil
	case LeftCircular:
		return Vector(s, -1i*s), nil
	}
	return Representation{}, newError(ErrValue, "polarization", "unknown label %q", label)
}

// NewPolarization creates a polarization qubit in a cardinal state.
func NewPolarization(label PolarizationLabel, opts ...StateOption) (*State, error) {
	rep, err := Polarized(label)
	if err != nil {
		return nil, err
	}
	return newState(KindPolarization, 2, rep, opts...)
}

// NewPolarizationFrom creates a polarization qubit from amplitudes or a
// density operator over H/V.
func NewPolarizationFrom(rep Representation, opts ...StateOption) (*State, error) {
	return newState(KindPolarization, 2, rep, opts...)
}

/*
PolarizationBasis returns the measurement basis for "HV", "DA" or "RL" as a
unitary whose columns are the basis vectors.
*/
func PolarizationBasis(name string) (*linalg.Matrix, error) {
	s := complex(1/math.Sqrt2, 0)

	switch name {
	case "HV":
		return linalg.Identity(2), nil
	case "DA":
		return linalg.FromRows(
			[]complex128{s, s},
			[]complex128{s, -s},
		), nil
	case "RL":
		return linalg.FromRows(
			[]complex128{s, s},
			[]complex128{1i * s, -1i * s},
		), nil
	}
	return nil, newError(ErrValue, "polarization basis", "unknown basis %q", name)
}
