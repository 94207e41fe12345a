package qweave

import (
	"math"
	"math/cmplx"
)

// Creation raises the photon number by one: a†|n⟩ ∝ |n+1⟩.
func Creation() *Operation {
	return NewExpressionOperation(Prim("a_dag"), []Kind{KindFock},
		WithName("creation"), WithGrowth(1), WithRenormalize())
}

// Annihilation lowers the photon number by one. Applied to vacuum it fails
// with ErrNormalization.
func Annihilation() *Operation {
	return NewExpressionOperation(Prim("a"), []Kind{KindFock},
		WithName("annihilation"), WithRenormalize())
}

// PhaseShift is exp(iφn).
func PhaseShift(phi float64) *Operation {
	return NewExpressionOperation(Exp(Scale(complex(0, phi), Prim("n"))), []Kind{KindFock},
		WithName("phase_shift"))
}

// Displace is exp(αa† - α*a).
func Displace(alpha complex128) *Operation {
	expr := Exp(Sum(
		Scale(alpha, Prim("a_dag")),
		Scale(-cmplx.Conj(alpha), Prim("a")),
	))
	return NewExpressionOperation(expr, []Kind{KindFock},
		WithName("displace"), WithGrowthPolicy(GrowthUnbounded))
}

// Squeeze is exp(½(ζ*a² - ζa†²)).
func Squeeze(zeta complex128) *Operation {
	expr := Exp(Sum(
		Scale(cmplx.Conj(zeta)/2, Compose(Prim("a"), Prim("a"))),
		Scale(-zeta/2, Compose(Prim("a_dag"), Prim("a_dag"))),
	))
	return NewExpressionOperation(expr, []Kind{KindFock},
		WithName("squeeze"), WithGrowthPolicy(GrowthUnbounded))
}

func FockIdentity() *Operation {
	return NewExpressionOperation(Prim("identity"), []Kind{KindFock}, WithName("identity"))
}

/*
BeamSplitter mixes two Fock modes: exp(iη(a†⊗a + a⊗a†)). η = π/4 is a
balanced (50/50) splitter.
*/
func BeamSplitter(eta float64) *Operation {
	expr := Exp(Scale(complex(0, eta), Sum(
		Compose(PrimOn("a_dag", 0), PrimOn("a", 1)),
		Compose(PrimOn("a", 0), PrimOn("a_dag", 1)),
	)))
	return NewExpressionOperation(expr, []Kind{KindFock, KindFock},
		WithName("beam_splitter"), WithGrowthPolicy(GrowthConserve))
}

func PauliX() *Operation {
	return NewExpressionOperation(Prim("x"), []Kind{KindPolarization}, WithName("pauli_x"))
}

func PauliY() *Operation {
	return NewExpressionOperation(Prim("y"), []Kind{KindPolarization}, WithName("pauli_y"))
}

func PauliZ() *Operation {
	return NewExpressionOperation(Prim("z"), []Kind{KindPolarization}, WithName("pauli_z"))
}

func Hadamard() *Operation {
	return NewExpressionOperation(Scale(complex(1/math.Sqrt2, 0), Sum(Prim("x"), Prim("z"))),
		[]Kind{KindPolarization}, WithName("hadamard"))
}

// RX rotates about x: exp(-iθσx/2).
func RX(theta float64) *Operation {
	return rotation("rx", "x", theta)
}

func RY(theta float64) *Operation {
	return rotation("ry", "y", theta)
}

func RZ(theta float64) *Operation {
	return rotation("rz", "z", theta)
}

func PolarizationIdentity() *Operation {
	return NewExpressionOperation(Prim("identity"), []Kind{KindPolarization}, WithName("identity"))
}

func rotation(name, axis string, theta float64) *Operation {
	return NewExpressionOperation(Exp(Scale(complex(0, -theta/2), Prim(axis))),
		[]Kind{KindPolarization}, WithName(name))
}

/*
NewGate builds a named gate. Parameters, when the gate takes any, are given
in order: phase_shift(φ), displace(re, im), squeeze(re, im),
beam_splitter(η), rx/ry/rz(θ). Unknown names fail with
ErrUnsupportedOperation.
*/
func NewGate(name string, params ...float64) (*Operation, error) {
	param := func(i int) float64 {
		if i < len(params) {
			return params[i]
		}
		return 0
	}

	switch name {
	case "creation", "a_dag":
		return Creation(), nil
	case "annihilation", "a":
		return Annihilation(), nil
	case "phase_shift":
		return PhaseShift(param(0)), nil
	case "displace":
		return Displace(complex(param(0), param(1))), nil
	case "squeeze":
		return Squeeze(complex(param(0), param(1))), nil
	case "beam_splitter":
		if len(params) == 0 {
			return BeamSplitter(math.Pi / 4), nil
		}
		return BeamSplitter(param(0)), nil
	case "fock_identity":
		return FockIdentity(), nil
	case "x", "pauli_x":
		return PauliX(), nil
	case "y", "pauli_y":
		return PauliY(), nil
	case "z", "pauli_z":
		return PauliZ(), nil
	case "h", "hadamard":
		return Hadamard(), nil
	case "rx":
		return RX(param(0)), nil
	case "ry":
		return RY(param(0)), nil
	case "rz":
		return RZ(param(0)), nil
	case "polarization_identity":
		return PolarizationIdentity(), nil
	}
	return nil, newError(ErrUnsupportedOperation, "gate", "unknown gate %q", name)
}
