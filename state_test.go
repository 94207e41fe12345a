package qweave

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qweave/linalg"
)

func TestFockState(t *testing.T) {
	Convey("Given a vacuum mode with a cutoff of 2", t, func() {
		vac, err := Vacuum()
		So(err, ShouldBeNil)
		So(vac.Dimension(), ShouldEqual, 2)
		So(vac.Kind(), ShouldEqual, KindFock)

		Convey("When a photon is created", func() {
			So(vac.Apply(Creation()), ShouldBeNil)

			Convey("Then it should hold the label |1⟩", func() {
				index, ok := vac.Index()
				So(ok, ShouldBeTrue)
				So(index, ShouldEqual, 1)
				So(vac.Dimension(), ShouldEqual, 2)
			})

			Convey("A second creation should not fit the cutoff", func() {
				err := vac.Apply(Creation())
				So(errors.Is(err, ErrDimension), ShouldBeTrue)

				index, _ := vac.Index()
				So(index, ShouldEqual, 1)
				So(vac.Dimension(), ShouldEqual, 2)
			})
		})

		Convey("Annihilating the vacuum should fail and leave it untouched", func() {
			err := vac.Apply(Annihilation())
			So(errors.Is(err, ErrNormalization), ShouldBeTrue)
			index, ok := vac.Index()
			So(ok, ShouldBeTrue)
			So(index, ShouldEqual, 0)
		})

		Convey("A polarization gate should be a type mismatch", func() {
			So(errors.Is(vac.Apply(PauliX()), ErrTypeMismatch), ShouldBeTrue)
		})
	})

	Convey("Given a vacuum mode with auto-resize", t, func() {
		cfg := NewConfig()
		cfg.AutoResize = true
		vac, err := Vacuum(WithConfig(cfg))
		So(err, ShouldBeNil)

		Convey("When two photons are created", func() {
			So(vac.Apply(Creation()), ShouldBeNil)
			So(vac.Apply(Creation()), ShouldBeNil)

			Convey("Then the cutoff should have grown to hold |2⟩", func() {
				So(vac.Dimension(), ShouldEqual, 3)
				index, ok := vac.Index()
				So(ok, ShouldBeTrue)
				So(index, ShouldEqual, 2)

				n, err := vac.PhotonNumber()
				So(err, ShouldBeNil)
				So(n, ShouldAlmostEqual, 2, 1e-9)
			})

			Convey("Annihilation should shrink it again", func() {
				So(vac.Apply(Annihilation()), ShouldBeNil)
				So(vac.Dimension(), ShouldEqual, 2)
				index, _ := vac.Index()
				So(index, ShouldEqual, 1)
			})
		})

		Convey("When it is displaced", func() {
			So(vac.Apply(Displace(complex(1, 0))), ShouldBeNil)

			Convey("Then the mean photon number should be |α|²", func() {
				n, err := vac.PhotonNumber()
				So(err, ShouldBeNil)
				So(n, ShouldAlmostEqual, 1, 1e-6)
				So(vac.Dimension(), ShouldBeGreaterThan, 2)
			})
		})
	})

	Convey("Given a vacuum mode without auto-resize", t, func() {
		vac, err := Vacuum()
		So(err, ShouldBeNil)

		Convey("A displacement that leaks past the cutoff should fail", func() {
			err := vac.Apply(Displace(complex(1.5, 0)))
			So(errors.Is(err, ErrDimension), ShouldBeTrue)

			index, ok := vac.Index()
			So(ok, ShouldBeTrue)
			So(index, ShouldEqual, 0)
			So(vac.Dimension(), ShouldEqual, 2)
		})
	})

	Convey("Given an auto-resizing vacuum capped at four levels", t, func() {
		cfg := NewConfig()
		cfg.AutoResize = true
		cfg.MaxCutoff = 4
		vac, err := Vacuum(WithConfig(cfg))
		So(err, ShouldBeNil)

		Convey("A large displacement should fail at the cap", func() {
			err := vac.Apply(Displace(complex(1.5, 0)))
			So(errors.Is(err, ErrDimension), ShouldBeTrue)
			So(vac.Dimension(), ShouldEqual, 2)
		})

		Convey("A small displacement should be accepted with a truncation warning", func() {
			So(vac.Apply(Displace(complex(0.1, 0))), ShouldBeNil)
			So(vac.Dimension(), ShouldEqual, 4)
			So(cfg.Metrics().TruncWarnings, ShouldEqual, 1)

			n, err := vac.PhotonNumber()
			So(err, ShouldBeNil)
			So(n, ShouldAlmostEqual, 0.01, 1e-4)
		})
	})

	Convey("Given a Fock state created from amplitudes", t, func() {
		s := complex(1/math.Sqrt2, 0)
		mode, err := NewFockFrom(Vector(s, 0, s))
		So(err, ShouldBeNil)

		Convey("Resize should refuse to drop populated levels", func() {
			So(errors.Is(mode.Resize(2), ErrDimension), ShouldBeTrue)
			So(mode.Dimension(), ShouldEqual, 3)
		})

		Convey("Resize should pad freely", func() {
			So(mode.Resize(5), ShouldBeNil)
			p, err := mode.Probabilities()
			So(err, ShouldBeNil)
			So(len(p), ShouldEqual, 5)
			So(p[2], ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("A phase shift should not change the populations", func() {
			So(mode.Apply(PhaseShift(0.7)), ShouldBeNil)
			p, _ := mode.Probabilities()
			So(p[0], ShouldAlmostEqual, 0.5, 1e-9)
			So(p[2], ShouldAlmostEqual, 0.5, 1e-9)
		})
	})

	Convey("Given a single photon", t, func() {
		one, err := NewFock(1)
		So(err, ShouldBeNil)

		Convey("A number-basis POVM should find it with certainty", func() {
			p0 := linalg.New(2, 2)
			p0.Set(0, 0, 1)
			p1 := linalg.New(2, 2)
			p1.Set(1, 1, 1)

			k, p, err := one.MeasurePOVM(p0, p1)
			So(err, ShouldBeNil)
			So(k, ShouldEqual, 1)
			So(p, ShouldAlmostEqual, 1, 1e-12)
		})
	})

	Convey("Given a negative photon number", t, func() {
		_, err := NewFock(-1)
		So(errors.Is(err, ErrValue), ShouldBeTrue)
	})
}

func TestPolarizationState(t *testing.T) {
	Convey("Given a horizontally polarized qubit", t, func() {
		h, err := NewPolarization(Horizontal)
		So(err, ShouldBeNil)

		Convey("X should flip it to V", func() {
			So(h.Apply(PauliX()), ShouldBeNil)
			index, ok := h.Index()
			So(ok, ShouldBeTrue)
			So(index, ShouldEqual, 1)
		})

		Convey("Hadamard should rotate it to D", func() {
			So(h.Apply(Hadamard()), ShouldBeNil)
			rep, err := h.Representation()
			So(err, ShouldBeNil)
			d, _ := Polarized(Diagonal)
			So(Fidelity(rep, d, 2), ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("A Fock gate should be a type mismatch", func() {
			So(errors.Is(h.Apply(Creation()), ErrTypeMismatch), ShouldBeTrue)
		})

		Convey("Measuring in H/V should be deterministic", func() {
			out, err := h.Measure()
			So(err, ShouldBeNil)
			So(out.Index, ShouldResemble, []int{0})
			So(out.Probability, ShouldAlmostEqual, 1, 1e-12)
		})
	})

	Convey("Given a diagonally polarized qubit", t, func() {
		d, err := NewPolarization(Diagonal)
		So(err, ShouldBeNil)

		Convey("Measuring in D/A should always give D", func() {
			out, err := d.Measure(WithPolarizationBasis("DA"))
			So(err, ShouldBeNil)
			So(out.Index, ShouldResemble, []int{0})
			So(out.Probability, ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("Measuring in H/V should give either outcome with probability one half", func() {
			out, err := d.Measure()
			So(err, ShouldBeNil)
			So(out.Probability, ShouldAlmostEqual, 0.5, 1e-9)

			index, ok := d.Index()
			So(ok, ShouldBeTrue)
			So(index, ShouldEqual, out.Index[0])
		})

		Convey("An unknown basis name should be a value error", func() {
			_, err := d.Measure(WithPolarizationBasis("XY"))
			So(errors.Is(err, ErrValue), ShouldBeTrue)
		})

		Convey("A non-unitary basis should be a value error", func() {
			_, err := d.Measure(WithMeasurementBasis(linalg.FromRows([]complex128{1, 1}, []complex128{0, 1})))
			So(errors.Is(err, ErrValue), ShouldBeTrue)
		})

		Convey("The expectation of Z should vanish and of X should be one", func() {
			z, err := d.Expectation(linalg.FromRows([]complex128{1, 0}, []complex128{0, -1}))
			So(err, ShouldBeNil)
			So(z, ShouldAlmostEqual, 0, 1e-9)

			x, err := d.Expectation(linalg.FromRows([]complex128{0, 1}, []complex128{1, 0}))
			So(err, ShouldBeNil)
			So(x, ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("A destructive measurement should consume it", func() {
			_, err := d.Measure(Destructive())
			So(err, ShouldBeNil)
			So(d.Measured(), ShouldBeTrue)
			So(errors.Is(d.Apply(PauliX()), ErrMeasured), ShouldBeTrue)
		})
	})

	Convey("Given a polarization dimension other than 2", t, func() {
		_, err := NewPolarization(Horizontal, WithDimensions(3))
		So(errors.Is(err, ErrDimension), ShouldBeTrue)
	})
}

func TestCustomStateDeclaredBasis(t *testing.T) {
	Convey("Given a qutrit in |0⟩ with a declared cyclic basis", t, func() {
		// Column k of the basis is |k+1 mod 3⟩, so |0⟩ is basis vector 2.
		shift := linalg.FromRows(
			[]complex128{0, 0, 1},
			[]complex128{1, 0, 0},
			[]complex128{0, 1, 0},
		)
		q, err := NewCustomState(3, Label(0), WithBasis(shift))
		So(err, ShouldBeNil)

		Convey("Measure without options should use the declared basis", func() {
			out, err := q.Measure()
			So(err, ShouldBeNil)
			So(out.Index, ShouldResemble, []int{2})
			So(out.Probability, ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("An explicit basis should still win", func() {
			out, err := q.Measure(WithMeasurementBasis(linalg.Identity(3)))
			So(err, ShouldBeNil)
			So(out.Index, ShouldResemble, []int{0})
		})

		Convey("A joined container should keep its declared basis", func() {
			pol, _ := NewPolarization(Horizontal)
			ce, err := NewCompositeEnvelope(nil)
			So(err, ShouldBeNil)
			id, err := ce.Register(q, pol)
			So(err, ShouldBeNil)
			So(ce.Materialize(id), ShouldBeNil)

			out, err := ce.MeasurePartial([]*State{q})
			So(err, ShouldBeNil)
			So(out.Index, ShouldResemble, []int{2})
			So(out.Probability, ShouldAlmostEqual, 1, 1e-9)
		})
	})

	Convey("Given an invalid declared basis", t, func() {
		Convey("A non-unitary basis should be a value error", func() {
			_, err := NewCustomState(2, Label(0), WithBasis(linalg.FromRows([]complex128{1, 1}, []complex128{0, 1})))
			So(errors.Is(err, ErrValue), ShouldBeTrue)
		})

		Convey("A basis of the wrong size should be a value error", func() {
			_, err := NewCustomState(3, Label(0), WithBasis(linalg.Identity(2)))
			So(errors.Is(err, ErrValue), ShouldBeTrue)
		})

		Convey("Only custom states should declare a basis", func() {
			_, err := NewFock(0, WithBasis(linalg.Identity(2)))
			So(errors.Is(err, ErrValue), ShouldBeTrue)
		})
	})
}

func TestCustomState(t *testing.T) {
	Convey("Given a qutrit in |0⟩", t, func() {
		q, err := NewCustomState(3, Label(0))
		So(err, ShouldBeNil)

		Convey("A cyclic shift matrix should move it to |1⟩", func() {
			shift := linalg.FromRows(
				[]complex128{0, 0, 1},
				[]complex128{1, 0, 0},
				[]complex128{0, 1, 0},
			)
			So(q.Apply(NewMatrixOperation(shift, []Kind{KindCustom})), ShouldBeNil)
			index, ok := q.Index()
			So(ok, ShouldBeTrue)
			So(index, ShouldEqual, 1)
		})

		Convey("An amplitude damping channel should leave a density operator", func() {
			g := 0.5
			k0 := linalg.FromRows(
				[]complex128{1, 0, 0},
				[]complex128{0, complex(math.Sqrt(1-g), 0), 0},
				[]complex128{0, 0, 1},
			)
			k1 := linalg.New(3, 3)
			k1.Set(0, 1, complex(math.Sqrt(g), 0))

			So(q.Apply(NewMatrixOperation(linalg.FromRows(
				[]complex128{0, 1, 0},
				[]complex128{1, 0, 0},
				[]complex128{0, 0, 1},
			), []Kind{KindCustom})), ShouldBeNil)
			So(q.Apply(NewKrausOperation([]*linalg.Matrix{k0, k1}, []Kind{KindCustom})), ShouldBeNil)

			rep, err := q.Representation()
			So(err, ShouldBeNil)
			So(rep.Level(), ShouldEqual, LevelMatrix)
			p, _ := q.Probabilities()
			So(p[0], ShouldAlmostEqual, 0.5, 1e-9)
			So(p[1], ShouldAlmostEqual, 0.5, 1e-9)
		})

		Convey("An incomplete Kraus set should fail in strict mode", func() {
			cfg := NewConfig()
			cfg.StrictKraus = true
			strict, err := NewCustomState(3, Label(0), WithConfig(cfg))
			So(err, ShouldBeNil)

			half := linalg.Identity(3).Scale(0.5)
			err = strict.Apply(NewKrausOperation([]*linalg.Matrix{half}, []Kind{KindCustom}))
			So(errors.Is(err, ErrNormalization), ShouldBeTrue)
		})

		Convey("An incomplete Kraus set should be renormalized with a warning otherwise", func() {
			half := linalg.Identity(3).Scale(0.5)
			So(q.Apply(NewKrausOperation([]*linalg.Matrix{half}, []Kind{KindCustom})), ShouldBeNil)
			So(q.Config().Metrics().KrausWarnings, ShouldEqual, 1)
			p, _ := q.Probabilities()
			So(p[0], ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("A non-unitary matrix beyond the drift tolerance should fail", func() {
			err := q.Apply(NewMatrixOperation(linalg.Identity(3).Scale(2), []Kind{KindCustom}))
			So(errors.Is(err, ErrNormalization), ShouldBeTrue)
		})

		Convey("A POVM of projectors should resolve the label deterministically", func() {
			p0 := linalg.New(3, 3)
			p0.Set(0, 0, 1)
			rest := linalg.New(3, 3)
			rest.Set(1, 1, 1)
			rest.Set(2, 2, 1)

			k, p, err := q.MeasurePOVM(p0, rest)
			So(err, ShouldBeNil)
			So(k, ShouldEqual, 0)
			So(p, ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("Effects not summing to the identity should be a value error", func() {
			_, _, err := q.MeasurePOVM(linalg.Identity(3).Scale(0.5))
			So(errors.Is(err, ErrValue), ShouldBeTrue)
		})

		Convey("Expand and Contract should change only the encoding", func() {
			So(q.Expand(), ShouldBeNil)
			rep, _ := q.Representation()
			So(rep.Level(), ShouldEqual, LevelVector)
			So(q.Expand(), ShouldBeNil)
			rep, _ = q.Representation()
			So(rep.Level(), ShouldEqual, LevelMatrix)

			q.Contract()
			rep, _ = q.Representation()
			So(rep.Level(), ShouldEqual, LevelLabel)
		})
	})
}
