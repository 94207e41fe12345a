package qweave

import (
	"github.com/google/uuid"
)

/*
TemporalProfile describes the pulse shape of an envelope, e.g. a Gaussian
with its width and centre. It is carried as metadata only; nothing in the
state algebra reads it.
*/
type TemporalProfile struct {
	Name   string
	Params map[string]float64
}

// Gaussian is a Gaussian temporal profile.
func Gaussian(mu, sigma, omega float64) TemporalProfile {
	return TemporalProfile{
		Name:   "gaussian",
		Params: map[string]float64{"mu": mu, "sigma": sigma, "omega": omega},
	}
}

/*
Envelope is a single optical pulse: a Fock container for the photon number
and a Polarization container, plus metadata (wavelength and temporal
profile) exposed read-only so callers can check mode matching before letting
two envelopes interfere.
*/
type Envelope struct {
	id           uuid.UUID
	fock         *State
	polarization *State
	wavelength   float64
	profile      TemporalProfile
	composite    *CompositeEnvelope
	cfg          *Config
}

type EnvelopeOption func(*Envelope)

func WithFock(s *State) EnvelopeOption {
	return func(e *Envelope) {
		e.fock = s
	}
}

func WithPolarization(s *State) EnvelopeOption {
	return func(e *Envelope) {
		e.polarization = s
	}
}

// WithWavelength sets the wavelength in nanometres. The default is 1550.
func WithWavelength(nm float64) EnvelopeOption {
	return func(e *Envelope) {
		e.wavelength = nm
	}
}

func WithTemporalProfile(p TemporalProfile) EnvelopeOption {
	return func(e *Envelope) {
		e.profile = p
	}
}

func WithEnvelopeConfig(cfg *Config) EnvelopeOption {
	return func(e *Envelope) {
		e.cfg = cfg
	}
}

/*
NewEnvelope creates an envelope. Without WithFock it holds the vacuum, without
WithPolarization horizontal polarization.
*/
func NewEnvelope(opts ...EnvelopeOption) (*Envelope, error) {
	env := &Envelope{
		id:         uuid.New(),
		wavelength: 1550,
		profile:    Gaussian(0, 42.45, 0),
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.cfg == nil {
		env.cfg = NewConfig()
	}

	var err error
	if env.fock == nil {
		if env.fock, err = Vacuum(WithConfig(env.cfg)); err != nil {
			return nil, err
		}
	}
	if env.polarization == nil {
		if env.polarization, err = NewPolarization(Horizontal, WithConfig(env.cfg)); err != nil {
			return nil, err
		}
	}

	if env.fock.kind != KindFock {
		return nil, newError(ErrTypeMismatch, "new envelope", "fock container is %s", env.fock.kind)
	}
	if env.polarization.kind != KindPolarization {
		return nil, newError(ErrTypeMismatch, "new envelope", "polarization container is %s", env.polarization.kind)
	}
	if env.fock.envelope != nil || env.polarization.envelope != nil {
		return nil, newError(ErrValue, "new envelope", "container already belongs to an envelope")
	}

	env.fock.envelope = env
	env.polarization.envelope = env
	return env, nil
}

func (e *Envelope) ID() uuid.UUID                    { return e.id }
func (e *Envelope) Fock() *State                     { return e.fock }
func (e *Envelope) Polarization() *State             { return e.polarization }
func (e *Envelope) Wavelength() float64              { return e.wavelength }
func (e *Envelope) TemporalProfile() TemporalProfile { return e.profile }
func (e *Envelope) Composite() *CompositeEnvelope    { return e.composite }

func (e *Envelope) containers() []*State {
	return []*State{e.fock, e.polarization}
}

/*
Join places this envelope's and other's containers into one product space
inside a composite envelope, creating the composite if neither envelope has
one and merging them if both do. The containers are registered, not
tensored: the combined tensor is formed only when an operation needs it.
*/
func (e *Envelope) Join(other *Envelope) (*CompositeEnvelope, error) {
	ce := e.composite
	if ce == nil {
		ce = other.composite
	}

	var err error
	if ce == nil {
		if ce, err = NewCompositeEnvelope(e.cfg); err != nil {
			return nil, err
		}
	}

	states := append(e.containers(), other.containers()...)
	err = atomically([]*CompositeEnvelope{ce, e.composite, other.composite}, states, func() error {
		if err := ce.trackEnvelope(e); err != nil {
			return err
		}
		if err := ce.trackEnvelope(other); err != nil {
			return err
		}
		_, err := ce.join(states)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ce, nil
}

/*
Combine joins the envelope's own Fock and polarization containers into one
product space.
*/
func (e *Envelope) Combine() error {
	ce, err := e.ensureComposite()
	if err != nil {
		return err
	}
	_, err = ce.Join(e.containers()...)
	return err
}

func (e *Envelope) ensureComposite() (*CompositeEnvelope, error) {
	if e.composite != nil {
		return e.composite, nil
	}
	return NewCompositeEnvelope(e.cfg, e)
}

/*
Apply routes an operation by its target kinds: Fock operations to the Fock
container, polarization operations to the polarization container and
(Fock, Polarization) operations to both through the composite envelope.
*/
func (e *Envelope) Apply(op *Operation) error {
	targets := op.Targets()

	switch {
	case len(targets) == 1 && targets[0] == KindFock:
		return e.fock.Apply(op)
	case len(targets) == 1 && targets[0] == KindPolarization:
		return e.polarization.Apply(op)
	case len(targets) == 2 && targets[0] == KindFock && targets[1] == KindPolarization:
		ce, err := e.ensureComposite()
		if err != nil {
			return err
		}
		return ce.ApplyOperation(op, e.fock, e.polarization)
	case len(targets) == 2 && targets[0] == KindPolarization && targets[1] == KindFock:
		ce, err := e.ensureComposite()
		if err != nil {
			return err
		}
		return ce.ApplyOperation(op, e.polarization, e.fock)
	}
	return newError(ErrTypeMismatch, op.name, "envelope cannot route targets %v", targets)
}

/*
Measure measures photon number and polarization. The outcome lists the
photon number first.
*/
func (e *Envelope) Measure(opts ...MeasureOption) (Outcome, error) {
	if e.composite != nil {
		return e.composite.MeasurePartial(e.containers(), opts...)
	}

	var out Outcome
	err := atomically(nil, e.containers(), func() error {
		n, err := e.fock.Measure(opts...)
		if err != nil {
			return err
		}
		pol, err := e.polarization.Measure(opts...)
		if err != nil {
			return err
		}
		out = Outcome{
			Index:       append(n.Index, pol.Index...),
			Probability: n.Probability * pol.Probability,
		}
		return nil
	})
	return out, err
}
