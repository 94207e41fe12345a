package qweave

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/theapemachine/qweave/linalg"
)

// Kind identifies the Hilbert space a container lives in.
type Kind int

const (
	KindFock Kind = iota
	KindPolarization
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindFock:
		return "fock"
	case KindPolarization:
		return "polarization"
	case KindCustom:
		return "custom"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

/*
State is a container holding one subsystem: a Fock mode, a polarization
qubit or a custom finite-dimensional system. While separable it owns its
Representation outright. Once joined it references the CompositeEnvelope
and the ProductSpace that own its amplitudes, and every operation and
measurement is delegated there.

The dimension always lives on the container, also while joined; a product
space reads its layout from its members.
*/
type State struct {
	id        uuid.UUID
	kind      Kind
	dim       int
	rep       Representation
	composite *CompositeEnvelope
	space     SpaceID
	envelope  *Envelope
	measured  bool
	cfg       *Config
	basis     *linalg.Matrix
}

type StateOption func(*State)

// WithConfig sets the numerical policy. Containers default to NewConfig().
func WithConfig(cfg *Config) StateOption {
	return func(s *State) {
		s.cfg = cfg
	}
}

// WithDimensions overrides the initial dimension (the Fock cutoff).
func WithDimensions(dim int) StateOption {
	return func(s *State) {
		s.dim = dim
	}
}

/*
WithBasis declares the measurement basis of a custom state: the columns of
the unitary basis. It is the default for every later measurement that does
not name a basis itself.
*/
func WithBasis(basis *linalg.Matrix) StateOption {
	return func(s *State) {
		s.basis = basis
	}
}

func newState(kind Kind, dim int, rep Representation, opts ...StateOption) (*State, error) {
	s := &State{
		id:   uuid.New(),
		kind: kind,
		dim:  dim,
		rep:  rep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg == nil {
		s.cfg = NewConfig()
	}

	if s.dim < 1 || (kind == KindPolarization && s.dim != 2) {
		return nil, newError(ErrDimension, "new "+kind.String(), "dimension %d", s.dim)
	}
	if err := s.rep.validate(s.dim); err != nil {
		return nil, err
	}
	if s.basis != nil {
		if kind != KindCustom {
			return nil, newError(ErrValue, "new "+kind.String(), "only custom states declare a measurement basis")
		}
		if err := newEngine(s.cfg).checkBasis(s.basis, s.dim); err != nil {
			return nil, err
		}
		s.basis = s.basis.Clone()
	}
	if s.rep.level != LevelLabel {
		norm := s.rep.Norm()
		if !(norm > 0) {
			return nil, newError(ErrNormalization, "new "+kind.String(), "initial state has zero norm")
		}
		s.rep = newReducer(s.cfg).reduce(s.rep.scaled(norm))
	}
	return s, nil
}

func (s *State) ID() uuid.UUID { return s.id }
func (s *State) Kind() Kind    { return s.kind }

// Dimension is the current dimension of the subsystem.
func (s *State) Dimension() int { return s.dim }

// Joined reports whether the container is part of a product space.
func (s *State) Joined() bool { return s.space != 0 }

// Measured reports whether the container was destructively measured.
func (s *State) Measured() bool { return s.measured }

// Composite returns the composite envelope tracking the container, if any.
func (s *State) Composite() *CompositeEnvelope { return s.composite }

// Envelope returns the envelope the container belongs to, if any.
func (s *State) Envelope() *Envelope { return s.envelope }

func (s *State) Config() *Config { return s.cfg }

/*
Representation returns the container's own representation while separable.
For a joined container it fails with ErrEntangled; use Reduced instead.
*/
func (s *State) Representation() (Representation, error) {
	if s.measured {
		return Representation{}, newError(ErrMeasured, "representation", "%s", s.id)
	}
	if s.Joined() {
		return Representation{}, newError(ErrEntangled, "representation", "%s is part of product space %d", s.id, s.space)
	}
	return s.rep, nil
}

/*
Index returns the basis label when the container is separable and in a
definite basis state.
*/
func (s *State) Index() (int, bool) {
	if s.Joined() || s.measured {
		return 0, false
	}
	return s.rep.Index()
}

/*
Reduced returns the state of this subsystem alone. For a separable container
this is its own representation; for a joined one it is the partial trace
over the other members of its product space, reduced to the cheapest exact
encoding.
*/
func (s *State) Reduced() (Representation, error) {
	if s.measured {
		return Representation{}, newError(ErrMeasured, "reduced", "%s", s.id)
	}
	if !s.Joined() {
		return s.rep, nil
	}
	return s.composite.Reduced(s)
}

// Probabilities returns the distribution over this subsystem's basis.
func (s *State) Probabilities() ([]float64, error) {
	rep, err := s.Reduced()
	if err != nil {
		return nil, err
	}
	return rep.Probabilities(s.dim), nil
}

/*
Apply runs an operation on this container. The operation's single target
kind must match the container's kind. Separable containers evolve in place;
joined ones delegate to their composite envelope. On error the container is
unchanged.
*/
func (s *State) Apply(op *Operation) error {
	if s.measured {
		return newError(ErrMeasured, op.name, "%s", s.id)
	}
	if s.Joined() {
		return s.composite.ApplyOperation(op, s)
	}

	e := newEngine(s.cfg)
	out, err := e.apply(s.frame(), []int{0}, op)
	if err != nil {
		return err
	}
	s.commit(e.rd.reduce(out.rep), out.dims[0])
	return nil
}

/*
Measure performs a projective measurement in the computational basis, or in
the basis given by WithMeasurementBasis. Afterwards the container is
separable and holds the post-measurement state. With Destructive it is
marked consumed instead.
*/
func (s *State) Measure(opts ...MeasureOption) (Outcome, error) {
	if s.measured {
		return Outcome{}, newError(ErrMeasured, "measure", "%s", s.id)
	}
	if s.Joined() {
		return s.composite.MeasurePartial([]*State{s}, opts...)
	}

	m := newMeasureOptions(opts)
	basis, err := m.basisFor(s)
	if err != nil {
		return Outcome{}, err
	}

	e := newEngine(s.cfg)
	k, p, _, err := e.measureAxis(s.frame(), 0, basis)
	if err != nil {
		return Outcome{}, err
	}

	s.commit(e.rd.reduce(postMeasurement(k, basis)), s.dim)
	if m.destructive {
		s.measured = true
	}
	return Outcome{Index: []int{k}, Probability: p}, nil
}

/*
MeasurePOVM performs a generalized measurement with the given effects,
which must be Hermitian and sum to the identity. It returns the outcome
index and its probability.
*/
func (s *State) MeasurePOVM(effects ...*linalg.Matrix) (int, float64, error) {
	if s.measured {
		return 0, 0, newError(ErrMeasured, "povm", "%s", s.id)
	}
	if s.Joined() {
		return s.composite.MeasurePOVM(effects, s)
	}

	e := newEngine(s.cfg)
	k, p, out, err := e.povm(s.frame(), []int{0}, effects)
	if err != nil {
		return 0, 0, err
	}
	s.commit(e.rd.reduce(out.rep), s.dim)
	return k, p, nil
}

/*
TraceOut detaches the container from its product space. It succeeds when the
container's subsystem factorizes from the rest; otherwise it fails with
ErrEntangled and the container stays joined, possibly to a smaller product
space if other members factorized along the way.
*/
func (s *State) TraceOut() error {
	if !s.Joined() {
		return nil
	}
	return s.composite.TraceOut(s)
}

/*
Resize changes the dimension of a Fock container. Shrinking fails with
ErrDimension unless the truncated levels carry negligible probability.
*/
func (s *State) Resize(dim int) error {
	if s.kind != KindFock {
		return newError(ErrTypeMismatch, "resize", "only Fock containers have a cutoff, got %s", s.kind)
	}
	if s.Joined() {
		return s.composite.ResizeFock(s, dim)
	}

	e := newEngine(s.cfg)
	out, err := e.resizeChecked(s.frame(), 0, dim)
	if err != nil {
		return err
	}
	s.commit(e.rd.reduce(out.rep), dim)
	return nil
}

/*
Expand promotes a separable container's representation one level, from
Label to Vector or from Vector to Matrix. It does not change the state.
*/
func (s *State) Expand() error {
	if s.Joined() {
		return newError(ErrUnsupportedOperation, "expand", "%s is part of a product space", s.id)
	}
	if s.rep.level < LevelMatrix {
		s.rep = s.rep.promote(s.rep.level+1, s.dim)
	}
	return nil
}

// Contract demotes a separable container's representation as far as exact.
func (s *State) Contract() {
	if !s.Joined() {
		rd := newReducer(s.cfg)
		rd.off = false
		s.rep = rd.reduce(s.rep)
	}
}

func (s *State) String() string {
	if s.Joined() {
		return fmt.Sprintf("%s[%d] in space %d", s.kind, s.dim, s.space)
	}
	return fmt.Sprintf("%s[%d] %s", s.kind, s.dim, s.rep)
}

func (s *State) frame() frame {
	return frame{rep: s.rep, dims: []int{s.dim}, kinds: []Kind{s.kind}}
}

func (s *State) commit(rep Representation, dim int) {
	s.rep = rep
	s.dim = dim
}

func (s *State) join(ce *CompositeEnvelope, id SpaceID) {
	s.composite = ce
	s.space = id
	s.rep = Representation{}
}

func (s *State) separate(rep Representation, dim int) {
	s.space = 0
	s.rep = rep
	s.dim = dim
}

func postMeasurement(k int, basis *linalg.Matrix) Representation {
	if basis == nil {
		return Label(k)
	}
	col := linalg.New(basis.Rows(), 1)
	for i := 0; i < basis.Rows(); i++ {
		col.Set(i, 0, basis.At(i, k))
	}
	return Representation{level: LevelVector, data: col}
}
