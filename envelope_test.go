package qweave

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qweave/linalg"
)

func singlePhoton(cfg *Config) *Envelope {
	mode, err := NewFock(1, WithConfig(cfg))
	So(err, ShouldBeNil)
	env, err := NewEnvelope(WithFock(mode), WithEnvelopeConfig(cfg))
	So(err, ShouldBeNil)
	return env
}

func TestHongOuMandel(t *testing.T) {
	Convey("Given two single-photon envelopes with auto-resize", t, func() {
		cfg := NewConfig()
		cfg.AutoResize = true
		e1 := singlePhoton(cfg)
		e2 := singlePhoton(cfg)

		ce, err := e1.Join(e2)
		So(err, ShouldBeNil)
		So(e1.Composite(), ShouldPointTo, ce)
		So(e2.Composite(), ShouldPointTo, ce)

		Convey("When they meet on a balanced beam splitter", func() {
			So(ce.ApplyOperation(BeamSplitter(math.Pi/4), e1.Fock(), e2.Fock()), ShouldBeNil)

			Convey("Then both cutoffs should have grown to hold two photons", func() {
				So(e1.Fock().Dimension(), ShouldEqual, 3)
				So(e2.Fock().Dimension(), ShouldEqual, 3)
			})

			Convey("Then the photons should never leave in different ports", func() {
				dist, err := ce.Distribution(e1.Fock(), e2.Fock())
				So(err, ShouldBeNil)
				So(len(dist), ShouldEqual, 9)
				So(dist[1*3+1], ShouldAlmostEqual, 0, 1e-9)
				So(dist[2*3+0], ShouldAlmostEqual, 0.5, 1e-9)
				So(dist[0*3+2], ShouldAlmostEqual, 0.5, 1e-9)
			})

			Convey("Then repeated shots should only see bunched outcomes", func() {
				wf, err := NewWaveFunction(ce, e1.Fock(), e2.Fock())
				So(err, ShouldBeNil)
				So(wf.Probability(1, 1), ShouldAlmostEqual, 0, 1e-9)

				counts := wf.Shots(1000)
				So(len(counts), ShouldEqual, 2)

				total := 0
				for _, c := range counts {
					So(c.Index[0]+c.Index[1], ShouldEqual, 2)
					So(c.Count, ShouldBeBetween, 400, 600)
					total += c.Count
				}
				So(total, ShouldEqual, 1000)
			})

			Convey("Then a joint measurement should find both photons together", func() {
				out, err := ce.MeasurePartial([]*State{e1.Fock(), e2.Fock()})
				So(err, ShouldBeNil)
				So(out.Index[0]+out.Index[1], ShouldEqual, 2)
				So(out.Probability, ShouldAlmostEqual, 0.5, 1e-9)
				So(e1.Fock().Joined(), ShouldBeFalse)
				So(e2.Fock().Joined(), ShouldBeFalse)
			})

			Convey("Then the polarizations should be untouched", func() {
				So(e1.Polarization().Joined(), ShouldBeTrue)
				rep, err := e1.Polarization().Reduced()
				So(err, ShouldBeNil)
				h, _ := Polarized(Horizontal)
				So(Fidelity(rep, h, 2), ShouldAlmostEqual, 1, 1e-9)
			})
		})
	})
}

func TestEnvelope(t *testing.T) {
	Convey("Given a default envelope", t, func() {
		env, err := NewEnvelope()
		So(err, ShouldBeNil)

		Convey("It should hold the vacuum with horizontal polarization", func() {
			n, ok := env.Fock().Index()
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, 0)
			p, ok := env.Polarization().Index()
			So(ok, ShouldBeTrue)
			So(p, ShouldEqual, 0)
			So(env.Fock().Envelope(), ShouldPointTo, env)
			So(env.Composite(), ShouldBeNil)
		})

		Convey("It should carry its metadata", func() {
			So(env.Wavelength(), ShouldEqual, 1550)
			So(env.TemporalProfile().Name, ShouldEqual, "gaussian")
		})

		Convey("Single-kind operations should route to their container", func() {
			So(env.Apply(PauliX()), ShouldBeNil)
			So(env.Apply(Creation()), ShouldBeNil)

			n, _ := env.Fock().Index()
			p, _ := env.Polarization().Index()
			So(n, ShouldEqual, 1)
			So(p, ShouldEqual, 1)
			So(env.Composite(), ShouldBeNil)
		})

		Convey("A two-mode operation should not be routable", func() {
			So(errors.Is(env.Apply(BeamSplitter(1)), ErrTypeMismatch), ShouldBeTrue)
		})

		Convey("Combine should register both containers in one space", func() {
			So(env.Combine(), ShouldBeNil)
			ce := env.Composite()
			So(ce, ShouldNotBeNil)

			ps, ok := ce.SpaceOf(env.Fock())
			So(ok, ShouldBeTrue)
			So(sameMembers(ps, env.Fock(), env.Polarization()), ShouldBeTrue)
			So(ps.Phase(), ShouldEqual, PhaseBuilding)
		})
	})

	Convey("Given a single photon envelope and a controlled flip", t, func() {
		env := singlePhoton(NewConfig())
		flip := NewMatrixOperation(linalg.FromRows(
			[]complex128{1, 0, 0, 0},
			[]complex128{0, 1, 0, 0},
			[]complex128{0, 0, 0, 1},
			[]complex128{0, 0, 1, 0},
		), []Kind{KindFock, KindPolarization}, WithName("controlled_flip"))

		Convey("A (Fock, Polarization) operation should go through a composite", func() {
			So(env.Apply(flip), ShouldBeNil)
			So(env.Composite(), ShouldNotBeNil)

			out, err := env.Measure()
			So(err, ShouldBeNil)
			So(out.Index, ShouldResemble, []int{1, 1})
			So(out.Probability, ShouldAlmostEqual, 1, 1e-9)
		})
	})

	Convey("Given a separable envelope", t, func() {
		env := singlePhoton(NewConfig())
		So(env.Apply(Hadamard()), ShouldBeNil)

		Convey("Measure should list the photon number first", func() {
			out, err := env.Measure()
			So(err, ShouldBeNil)
			So(len(out.Index), ShouldEqual, 2)
			So(out.Index[0], ShouldEqual, 1)
			So(out.Probability, ShouldAlmostEqual, 0.5, 1e-9)
		})

		Convey("A destructive measurement should consume both containers", func() {
			_, err := env.Measure(Destructive())
			So(err, ShouldBeNil)
			So(env.Fock().Measured(), ShouldBeTrue)
			So(env.Polarization().Measured(), ShouldBeTrue)
		})
	})

	Convey("Given containers for a new envelope", t, func() {
		pol, err := NewPolarization(Diagonal)
		So(err, ShouldBeNil)

		Convey("A polarization container in the Fock slot should be a type mismatch", func() {
			_, err := NewEnvelope(WithFock(pol))
			So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
		})

		Convey("A container already in an envelope should be refused", func() {
			_, err := NewEnvelope(WithPolarization(pol))
			So(err, ShouldBeNil)
			_, err = NewEnvelope(WithPolarization(pol))
			So(errors.Is(err, ErrValue), ShouldBeTrue)
		})

		Convey("Metadata options should be kept", func() {
			env, err := NewEnvelope(WithWavelength(780), WithTemporalProfile(Gaussian(1, 2, 3)))
			So(err, ShouldBeNil)
			So(env.Wavelength(), ShouldEqual, 780)
			So(env.TemporalProfile().Params["sigma"], ShouldEqual, 2)
		})
	})

	Convey("Given two joined envelopes and a third", t, func() {
		e1, _ := NewEnvelope()
		e2, _ := NewEnvelope()
		e3, _ := NewEnvelope()
		ce, err := e1.Join(e2)
		So(err, ShouldBeNil)

		Convey("Joining the third should reuse the existing composite", func() {
			joined, err := e3.Join(e1)
			So(err, ShouldBeNil)
			So(joined, ShouldPointTo, ce)
			So(len(ce.Envelopes()), ShouldEqual, 3)
			So(len(ce.States()), ShouldEqual, 6)
		})
	})
}

func TestWaveFunction(t *testing.T) {
	Convey("Given a wave function over a qubit and a qutrit", t, func() {
		wf := &WaveFunction{
			Dims:          []int{2, 3},
			Probabilities: []float64{0, 0, 0, 0, 1, 0},
			backend:       linalg.NewCPU(7),
		}

		Convey("Probability should index row-major", func() {
			So(wf.Probability(1, 1), ShouldEqual, 1)
			So(wf.Probability(0, 1), ShouldEqual, 0)
		})

		Convey("Out-of-range indices should have no probability", func() {
			So(wf.Probability(2, 0), ShouldEqual, 0)
			So(wf.Probability(1), ShouldEqual, 0)
		})

		Convey("Collapse should draw the only outcome", func() {
			So(wf.Collapse(), ShouldResemble, []int{1, 1})
			counts := wf.Shots(10)
			So(len(counts), ShouldEqual, 1)
			So(counts[0].String(), ShouldEqual, "(1,1)")
			So(counts[0].Count, ShouldEqual, 10)
		})

		Convey("An empty distribution should collapse to nothing", func() {
			wf.Probabilities = make([]float64, 6)
			So(wf.Collapse(), ShouldBeNil)
			So(len(wf.Shots(5)), ShouldEqual, 0)
		})
	})
}
