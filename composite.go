package qweave

import (
	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qweave/linalg"
)

/*
CompositeEnvelope owns every ProductSpace formed between the containers it
tracks. It is the only writer of combined tensors: containers that are
joined hold just a reference to it and the ID of their space, and route every
operation and measurement through it.

Spaces live in an arena indexed by SpaceID. Slot zero is never used; slots
of retired spaces are cleared and never reused.

Every exported mutating method is atomic: it either succeeds completely or
leaves the composite, its spaces and its containers as they were. TraceOut
is the one exception, see its documentation.
*/
type CompositeEnvelope struct {
	id        uuid.UUID
	cfg       *Config
	spaces    []*ProductSpace
	states    []*State
	envelopes []*Envelope
}

/*
NewCompositeEnvelope creates a composite envelope tracking the given
envelopes. A nil config uses NewConfig().
*/
func NewCompositeEnvelope(cfg *Config, envelopes ...*Envelope) (*CompositeEnvelope, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	ce := &CompositeEnvelope{
		id:     uuid.New(),
		cfg:    cfg,
		spaces: []*ProductSpace{nil},
	}
	if err := ce.AddEnvelope(envelopes...); err != nil {
		return nil, err
	}
	return ce, nil
}

func (ce *CompositeEnvelope) ID() uuid.UUID     { return ce.id }
func (ce *CompositeEnvelope) Config() *Config   { return ce.cfg }
func (ce *CompositeEnvelope) Metrics() *Metrics { return ce.cfg.Metrics() }

// States returns the tracked containers.
func (ce *CompositeEnvelope) States() []*State {
	return append([]*State(nil), ce.states...)
}

// Envelopes returns the tracked envelopes.
func (ce *CompositeEnvelope) Envelopes() []*Envelope {
	return append([]*Envelope(nil), ce.envelopes...)
}

// Spaces returns the live product spaces in creation order.
func (ce *CompositeEnvelope) Spaces() []*ProductSpace {
	var out []*ProductSpace
	for _, ps := range ce.spaces {
		if ps != nil {
			out = append(out, ps)
		}
	}
	return out
}

// Space looks a live product space up by ID.
func (ce *CompositeEnvelope) Space(id SpaceID) (*ProductSpace, bool) {
	if id <= 0 || int(id) >= len(ce.spaces) || ce.spaces[id] == nil {
		return nil, false
	}
	return ce.spaces[id], true
}

// SpaceOf returns the product space a container belongs to, if any.
func (ce *CompositeEnvelope) SpaceOf(s *State) (*ProductSpace, bool) {
	ps := ce.spaceOf(s)
	return ps, ps != nil
}

// Add starts tracking containers. A container tracked by another composite
// pulls that whole composite in.
func (ce *CompositeEnvelope) Add(states ...*State) error {
	return atomically([]*CompositeEnvelope{ce}, states, func() error {
		for _, s := range states {
			if err := ce.track(s); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddEnvelope starts tracking envelopes and their containers.
func (ce *CompositeEnvelope) AddEnvelope(envelopes ...*Envelope) error {
	var states []*State
	for _, env := range envelopes {
		states = append(states, env.containers()...)
	}

	return atomically([]*CompositeEnvelope{ce}, states, func() error {
		for _, env := range envelopes {
			if err := ce.trackEnvelope(env); err != nil {
				return err
			}
		}
		return nil
	})
}

/*
Merge absorbs another composite envelope: its containers, envelopes and
product spaces move here and other is left empty. Spaces are not combined;
their tensors stay independent until an operation needs them together.
*/
func (ce *CompositeEnvelope) Merge(other *CompositeEnvelope) error {
	if other == nil || other == ce {
		return nil
	}
	return atomically([]*CompositeEnvelope{ce, other}, nil, func() error {
		ce.absorb(other)
		return nil
	})
}

/*
Register places separable containers into a new Building product space.
Their representations are kept as they are until the space is materialized.
*/
func (ce *CompositeEnvelope) Register(states ...*State) (SpaceID, error) {
	var id SpaceID
	err := atomically([]*CompositeEnvelope{ce}, states, func() error {
		if err := ce.trackAll(states); err != nil {
			return err
		}
		for _, s := range states {
			if s.Joined() {
				return newError(ErrValue, "register", "%s already belongs to space %d", s.id, s.space)
			}
		}
		id = ce.register(states).id
		return nil
	})
	return id, err
}

/*
Join moves containers into one product space. When none is joined yet they
form a new Building space; otherwise the spaces involved are merged and the
separable containers are added to the result.
*/
func (ce *CompositeEnvelope) Join(states ...*State) (SpaceID, error) {
	var id SpaceID
	err := atomically([]*CompositeEnvelope{ce}, states, func() error {
		ps, err := ce.join(states)
		if err != nil {
			return err
		}
		id = ps.id
		return nil
	})
	return id, err
}

// Materialize forms the combined tensor of a Building space.
func (ce *CompositeEnvelope) Materialize(id SpaceID) error {
	ps, ok := ce.Space(id)
	if !ok {
		return newError(ErrNotMember, "materialize", "no space %d", id)
	}
	return atomically([]*CompositeEnvelope{ce}, nil, func() error {
		return ce.materialize(ps)
	})
}

/*
MergeSpaces tensors two product spaces into one. The members of b follow
those of a in the index map. This is where tensors grow multiplicatively;
the result is checked against the memory ceiling first.
*/
func (ce *CompositeEnvelope) MergeSpaces(a, b SpaceID) (SpaceID, error) {
	psA, okA := ce.Space(a)
	psB, okB := ce.Space(b)
	if !okA || !okB {
		return 0, newError(ErrNotMember, "merge", "no space %d or %d", a, b)
	}
	if a == b {
		return a, nil
	}

	err := atomically([]*CompositeEnvelope{ce}, nil, func() error {
		return ce.mergeSpaces(psA, psB)
	})
	return a, err
}

/*
Combine makes sure the containers share one Materialized product space,
joining and materializing whatever is needed, and returns its ID. Members of
Building spaces that are not targeted stay where they are.
*/
func (ce *CompositeEnvelope) Combine(states ...*State) (SpaceID, error) {
	var id SpaceID
	err := atomically([]*CompositeEnvelope{ce}, states, func() error {
		ps, err := ce.combine(states)
		if err != nil {
			return err
		}
		id = ps.id
		return nil
	})
	return id, err
}

/*
ApplyOperation applies op to the target containers, in the order of the
operation's target kinds. A single separable target evolves locally, a
single member of a Building space evolves its pending representation, and
anything else runs on a combined tensor with identity padding on the other
members.
*/
func (ce *CompositeEnvelope) ApplyOperation(op *Operation, targets ...*State) error {
	return atomically([]*CompositeEnvelope{ce}, targets, func() error {
		if err := ce.trackAll(targets); err != nil {
			return err
		}
		if len(targets) == 1 {
			return ce.applySingle(op, targets[0])
		}

		ps, err := ce.combine(targets)
		if err != nil {
			return err
		}

		e := newEngine(ce.cfg)
		out, err := e.apply(ps.frame(), ce.axes(ps, targets), op)
		if err != nil {
			return err
		}
		ce.commit(ps, out)
		return nil
	})
}

/*
MeasurePartial measures the targets one after another. Each measured
container leaves its product space holding its post-measurement state; the
rest of the space is renormalized and split into independent parts where it
factorizes.
*/
func (ce *CompositeEnvelope) MeasurePartial(targets []*State, opts ...MeasureOption) (Outcome, error) {
	m := newMeasureOptions(opts)
	out := Outcome{Probability: 1}

	err := atomically([]*CompositeEnvelope{ce}, targets, func() error {
		if err := ce.trackAll(targets); err != nil {
			return err
		}
		for _, s := range targets {
			k, p, err := ce.measureOne(s, m)
			if err != nil {
				return err
			}
			out.Index = append(out.Index, k)
			out.Probability *= p
		}
		if m.destructive {
			for _, s := range targets {
				s.measured = true
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

/*
MeasurePOVM performs a generalized measurement with the given effects on
the targets and returns the outcome index and its probability.
*/
func (ce *CompositeEnvelope) MeasurePOVM(effects []*linalg.Matrix, targets ...*State) (int, float64, error) {
	var (
		k int
		p float64
	)

	err := atomically([]*CompositeEnvelope{ce}, targets, func() error {
		if err := ce.trackAll(targets); err != nil {
			return err
		}

		e := newEngine(ce.cfg)
		var err error

		if len(targets) == 1 {
			s := targets[0]
			if ps := ce.spaceOf(s); ps == nil || ps.phase == PhaseBuilding {
				f, commit := ce.localFrame(s)
				var out frame
				if k, p, out, err = e.povm(f, []int{0}, effects); err != nil {
					return err
				}
				commit(e.rd.reduce(out.rep), s.dim)
				return nil
			}
		}

		ps, err := ce.combine(targets)
		if err != nil {
			return err
		}

		var out frame
		if k, p, out, err = e.povm(ps.frame(), ce.axes(ps, targets), effects); err != nil {
			return err
		}
		ce.commit(ps, out)
		return ce.factor(ps)
	})
	if err != nil {
		return 0, 0, err
	}
	return k, p, nil
}

/*
Distribution returns the joint outcome probabilities of measuring the
targets in the computational basis, row-major in target order, without
sampling or disturbing anything.
*/
func (ce *CompositeEnvelope) Distribution(targets ...*State) ([]float64, error) {
	if len(targets) == 0 {
		return nil, newError(ErrValue, "distribution", "no targets")
	}

	type group struct {
		f         frame
		axes      []int
		positions []int
	}

	var groups []*group
	bySpace := make(map[*ProductSpace]*group)
	tdims := make([]int, len(targets))
	seen := make(map[*State]bool, len(targets))

	for i, s := range targets {
		if seen[s] {
			return nil, newError(ErrValue, "distribution", "%s listed twice", s.id)
		}
		seen[s] = true
		if s.measured {
			return nil, newError(ErrMeasured, "distribution", "%s", s.id)
		}
		if s.Joined() && s.composite != ce {
			return nil, newError(ErrNotMember, "distribution", "%s belongs to another composite envelope", s.id)
		}
		tdims[i] = s.dim

		ps := ce.spaceOf(s)
		if ps != nil && ps.phase == PhaseMaterialized {
			g, ok := bySpace[ps]
			if !ok {
				g = &group{f: ps.frame()}
				bySpace[ps] = g
				groups = append(groups, g)
			}
			g.axes = append(g.axes, ps.indexOf(s))
			g.positions = append(g.positions, i)
			continue
		}

		f, _ := ce.localFrame(s)
		groups = append(groups, &group{f: f, axes: []int{0}, positions: []int{i}})
	}

	marginals := make([][]float64, len(groups))
	for i, g := range groups {
		rep := g.f.rep.promote(LevelVector, g.f.size())
		marginals[i] = marginal(rep, g.f.dims, g.axes)
	}

	strides := linalg.Strides(tdims)
	joint := make([]float64, linalg.Product(tdims))
	for n := range joint {
		p := 1.0
		for gi, g := range groups {
			sub := 0
			for _, pos := range g.positions {
				sub = sub*tdims[pos] + (n/strides[pos])%tdims[pos]
			}
			p *= marginals[gi][sub]
		}
		joint[n] = p
	}
	return joint, nil
}

/*
Reduced returns the state of one container alone: its own representation
when separable or pending, otherwise the partial trace of its space over the
other members, demoted as far as exact.
*/
func (ce *CompositeEnvelope) Reduced(s *State) (Representation, error) {
	if err := ce.owns(s, "reduced"); err != nil {
		return Representation{}, err
	}
	ps := ce.spaceOf(s)
	if ps == nil || ps.phase == PhaseBuilding {
		f, _ := ce.localFrame(s)
		return f.rep, nil
	}

	e := newEngine(ce.cfg)
	rep := ps.rep
	rho := e.backend.PartialTrace(rep.data, ps.Dims(), []int{ps.indexOf(s)})
	return e.rd.reduce(Representation{level: LevelMatrix, data: rho}), nil
}

// Factor splits a Materialized space into its independent parts.
func (ce *CompositeEnvelope) Factor(id SpaceID) error {
	ps, ok := ce.Space(id)
	if !ok {
		return newError(ErrNotMember, "factor", "no space %d", id)
	}
	return atomically([]*CompositeEnvelope{ce}, nil, func() error {
		return ce.factor(ps)
	})
}

/*
TraceOut detaches a container from its product space. The space is factored
first; if the container ends up separable the call succeeds. Otherwise it
fails with ErrEntangled, but the factorization is kept: the container stays
in a possibly smaller space.
*/
func (ce *CompositeEnvelope) TraceOut(s *State) error {
	if err := ce.owns(s, "trace out"); err != nil {
		return err
	}
	ps := ce.spaceOf(s)
	if ps == nil {
		return nil
	}

	if ps.phase == PhaseBuilding {
		return atomically([]*CompositeEnvelope{ce}, nil, func() error {
			ce.extract(ps, s)
			return nil
		})
	}

	if err := ce.Factor(ps.id); err != nil {
		return err
	}
	if s.Joined() {
		return newError(ErrEntangled, "trace out", "%s is entangled with %d other containers", s.id, ce.spaces[s.space].Len()-1)
	}
	return nil
}

/*
Reorder rewrites the index map of a space so that its members appear in the
given order, permuting the combined tensor to match.
*/
func (ce *CompositeEnvelope) Reorder(id SpaceID, order ...*State) error {
	ps, ok := ce.Space(id)
	if !ok {
		return newError(ErrNotMember, "reorder", "no space %d", id)
	}
	if len(order) != len(ps.members) {
		return newError(ErrValue, "reorder", "order lists %d of %d members", len(order), len(ps.members))
	}

	perm := make([]int, len(order))
	seen := make(map[int]bool, len(order))
	for i, s := range order {
		idx := ps.indexOf(s)
		if idx < 0 || seen[idx] {
			return newError(ErrValue, "reorder", "order is not a permutation of the members")
		}
		seen[idx] = true
		perm[i] = idx
	}

	return atomically([]*CompositeEnvelope{ce}, nil, func() error {
		if ps.phase == PhaseMaterialized {
			ps.rep = permute(ps.rep, ps.Dims(), perm)
		} else {
			pending := make([]Representation, len(perm))
			for i, idx := range perm {
				pending[i] = ps.pending[idx]
			}
			ps.pending = pending
		}
		ps.members = append([]*State(nil), order...)
		return nil
	})
}

/*
ResizeFock changes the cutoff of a Fock container wherever its amplitudes
live. Shrinking fails with ErrDimension unless the dropped levels carry
negligible probability.
*/
func (ce *CompositeEnvelope) ResizeFock(s *State, dim int) error {
	if s.kind != KindFock {
		return newError(ErrTypeMismatch, "resize", "only Fock containers have a cutoff, got %s", s.kind)
	}

	return atomically([]*CompositeEnvelope{ce}, []*State{s}, func() error {
		e := newEngine(ce.cfg)
		ps := ce.spaceOf(s)

		if ps == nil || ps.phase == PhaseBuilding {
			f, commit := ce.localFrame(s)
			out, err := e.resizeChecked(f, 0, dim)
			if err != nil {
				return err
			}
			commit(e.rd.reduce(out.rep), dim)
			return nil
		}

		out, err := e.resizeChecked(ps.frame(), ps.indexOf(s), dim)
		if err != nil {
			return err
		}
		ce.commit(ps, out)
		return nil
	})
}

/*
Validate checks the structural invariants: no container appears twice, every
member points back at its space, combined tensors span exactly the product
of member dimensions, and every state is normalized within DriftTolerance.
*/
func (ce *CompositeEnvelope) Validate() error {
	seen := make(map[*State]SpaceID)

	for _, ps := range ce.Spaces() {
		for i, m := range ps.members {
			if other, ok := seen[m]; ok {
				return newError(ErrValue, "validate", "%s appears in spaces %d and %d", m.id, other, ps.id)
			}
			seen[m] = ps.id
			if m.space != ps.id || m.composite != ce {
				return newError(ErrValue, "validate", "member %d of space %d points elsewhere", i, ps.id)
			}
		}

		switch ps.phase {
		case PhaseBuilding:
			if len(ps.pending) != len(ps.members) {
				return newError(ErrDimension, "validate", "space %d has %d pending states for %d members", ps.id, len(ps.pending), len(ps.members))
			}
			for i, rep := range ps.pending {
				if err := rep.validate(ps.members[i].dim); err != nil {
					return err
				}
				if err := ce.checkNorm(rep); err != nil {
					return err
				}
			}
		case PhaseMaterialized:
			if err := ps.rep.validate(ps.Dimension()); err != nil {
				return err
			}
			if err := ce.checkNorm(ps.rep); err != nil {
				return err
			}
		default:
			return newError(ErrValue, "validate", "retired space %d is still live", ps.id)
		}
	}

	for _, s := range ce.states {
		if _, joined := seen[s]; joined != s.Joined() {
			return newError(ErrValue, "validate", "%s is not where it claims to be", s.id)
		}
		if !s.Joined() && !s.measured {
			if err := s.rep.validate(s.dim); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ce *CompositeEnvelope) checkNorm(rep Representation) error {
	if dev := rep.Norm() - 1; dev > ce.cfg.DriftTolerance || -dev > ce.cfg.DriftTolerance {
		return newError(ErrNormalization, "validate", "norm deviates by %g", dev)
	}
	return nil
}

/*
Limited reports whether the memory regulator is holding growth after a
refused tensor. Materializations and merges that fit within the tensors
already built still succeed.
*/
func (ce *CompositeEnvelope) Limited() bool {
	return ce.cfg.Regulator().Limit()
}

// Renormalize lets the regulator admit growth up to the ceiling again.
func (ce *CompositeEnvelope) Renormalize() {
	ce.cfg.Regulator().Renormalize()
}

// owns rejects containers tracked by another composite envelope.
func (ce *CompositeEnvelope) owns(s *State, op string) error {
	if s == nil {
		return newError(ErrValue, op, "nil container")
	}
	if s.composite != nil && s.composite != ce {
		return newError(ErrNotMember, op, "%s belongs to another composite envelope", s.id)
	}
	return nil
}

func (ce *CompositeEnvelope) spaceOf(s *State) *ProductSpace {
	if s.space == 0 || s.composite != ce {
		return nil
	}
	return ce.spaces[s.space]
}

func (ce *CompositeEnvelope) axes(ps *ProductSpace, targets []*State) []int {
	axes := make([]int, len(targets))
	for i, s := range targets {
		axes[i] = ps.indexOf(s)
	}
	return axes
}

/*
localFrame returns the single-subsystem frame of a container that is either
separable or pending in a Building space, plus a function committing a new
representation and dimension back to wherever it came from.
*/
func (ce *CompositeEnvelope) localFrame(s *State) (frame, func(Representation, int)) {
	ps := ce.spaceOf(s)
	if ps == nil {
		return s.frame(), s.commit
	}

	rep, i := ps.pendingOf(s)
	return frame{rep: rep, dims: []int{s.dim}, kinds: []Kind{s.kind}}, func(r Representation, dim int) {
		ps.pending = ps.withPending(i, r)
		s.dim = dim
	}
}

func (ce *CompositeEnvelope) commit(ps *ProductSpace, f frame) {
	for i, m := range ps.members {
		m.dim = f.dims[i]
	}
	ps.rep = newReducer(ce.cfg).reduceVectorOnly(f.rep)
	ps.origin = nil
}

func (ce *CompositeEnvelope) applySingle(op *Operation, s *State) error {
	ps := ce.spaceOf(s)
	e := newEngine(ce.cfg)

	if ps == nil || ps.phase == PhaseBuilding {
		f, commit := ce.localFrame(s)
		out, err := e.apply(f, []int{0}, op)
		if err != nil {
			return err
		}
		commit(e.rd.reduce(out.rep), out.dims[0])
		return nil
	}

	out, err := e.apply(ps.frame(), []int{ps.indexOf(s)}, op)
	if err != nil {
		return err
	}
	ce.commit(ps, out)
	return nil
}

func (ce *CompositeEnvelope) measureOne(s *State, m *measureOptions) (int, float64, error) {
	if s.measured {
		return 0, 0, newError(ErrMeasured, "measure", "%s", s.id)
	}

	basis, err := m.basisFor(s)
	if err != nil {
		return 0, 0, err
	}

	e := newEngine(ce.cfg)
	ps := ce.spaceOf(s)

	if ps == nil || ps.phase == PhaseBuilding {
		f, commit := ce.localFrame(s)
		k, p, _, err := e.measureAxis(f, 0, basis)
		if err != nil {
			return 0, 0, err
		}
		commit(e.rd.reduce(postMeasurement(k, basis)), s.dim)
		if ps != nil {
			ce.extract(ps, s)
		}
		return k, p, nil
	}

	idx := ps.indexOf(s)
	k, p, rest, err := e.measureAxis(ps.frame(), idx, basis)
	if err != nil {
		return 0, 0, err
	}

	members, _ := ps.without(idx)
	s.separate(e.rd.reduce(postMeasurement(k, basis)), s.dim)
	ps.members = members

	switch len(members) {
	case 0:
		return k, p, ce.retire(ps, "measure")
	case 1:
		members[0].separate(e.rd.reduce(rest.rep), members[0].dim)
		return k, p, ce.retire(ps, "measure")
	}

	ps.rep = e.rd.reduceVectorOnly(rest.rep)
	ps.origin = nil
	return k, p, ce.factor(ps)
}

func (ce *CompositeEnvelope) track(s *State) error {
	if s == nil {
		return newError(ErrValue, "track", "nil container")
	}
	if s.measured {
		return newError(ErrMeasured, "track", "%s", s.id)
	}
	if s.composite == ce {
		return nil
	}
	if s.composite != nil {
		ce.absorb(s.composite)
		return nil
	}

	s.composite = ce
	s.cfg = ce.cfg
	ce.states = append(ce.states, s)

	if s.envelope != nil && s.envelope.composite != ce {
		return ce.trackEnvelope(s.envelope)
	}
	return nil
}

func (ce *CompositeEnvelope) trackAll(states []*State) error {
	seen := make(map[*State]bool, len(states))
	for _, s := range states {
		if seen[s] {
			return newError(ErrValue, "track", "%s listed twice", s.id)
		}
		seen[s] = true
		if err := ce.track(s); err != nil {
			return err
		}
	}
	return nil
}

func (ce *CompositeEnvelope) trackEnvelope(env *Envelope) error {
	if env.composite == ce {
		return nil
	}
	if env.composite != nil {
		ce.absorb(env.composite)
		return nil
	}

	env.composite = ce
	ce.envelopes = append(ce.envelopes, env)
	for _, s := range env.containers() {
		if err := ce.track(s); err != nil {
			return err
		}
	}
	return nil
}

func (ce *CompositeEnvelope) absorb(other *CompositeEnvelope) {
	if other == ce {
		return
	}

	for _, ps := range other.spaces {
		if ps == nil {
			continue
		}
		ps.id = SpaceID(len(ce.spaces))
		ce.spaces = append(ce.spaces, ps)
		for _, m := range ps.members {
			m.space = ps.id
		}
	}
	for _, s := range other.states {
		s.composite = ce
		s.cfg = ce.cfg
		ce.states = append(ce.states, s)
	}
	for _, env := range other.envelopes {
		env.composite = ce
		ce.envelopes = append(ce.envelopes, env)
	}

	other.spaces = []*ProductSpace{nil}
	other.states = nil
	other.envelopes = nil
}

func (ce *CompositeEnvelope) register(states []*State) *ProductSpace {
	members := append([]*State(nil), states...)
	pending := make([]Representation, len(states))
	for i, s := range states {
		pending[i] = s.rep
	}

	ps := newProductSpace(SpaceID(len(ce.spaces)), members, pending)
	ce.spaces = append(ce.spaces, ps)
	for _, s := range states {
		s.join(ce, ps.id)
	}
	return ps
}

func (ce *CompositeEnvelope) join(states []*State) (*ProductSpace, error) {
	if err := ce.trackAll(states); err != nil {
		return nil, err
	}

	var (
		spaces []*ProductSpace
		loose  []*State
	)
	for _, s := range states {
		if ps := ce.spaceOf(s); ps != nil {
			if !containsSpace(spaces, ps) {
				spaces = append(spaces, ps)
			}
			continue
		}
		loose = append(loose, s)
	}

	if len(spaces) == 0 {
		return ce.register(loose), nil
	}

	target := spaces[0]
	for _, ps := range spaces[1:] {
		if err := ce.mergeSpaces(target, ps); err != nil {
			return nil, err
		}
	}
	for _, s := range loose {
		if err := ce.enlist(target, s); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// enlist adds a separable container to a space, as a pending member or by
// tensoring it onto the combined tensor.
func (ce *CompositeEnvelope) enlist(ps *ProductSpace, s *State) error {
	if ps.phase == PhaseBuilding {
		ps.members = append(append([]*State(nil), ps.members...), s)
		ps.pending = append(append([]Representation(nil), ps.pending...), s.rep)
		s.join(ce, ps.id)
		return nil
	}

	single := ce.register([]*State{s})
	return ce.mergeSpaces(ps, single)
}

func (ce *CompositeEnvelope) materialize(ps *ProductSpace) error {
	switch ps.phase {
	case PhaseMaterialized:
		return nil
	case PhaseFactored:
		return newError(ErrValue, "materialize", "space %d is retired", ps.id)
	}

	level := LevelVector
	for _, rep := range ps.pending {
		level = max(level, rep.level)
	}

	dims := ps.Dims()
	if err := ce.cfg.admit("materialize", bytesFor(level, linalg.Product(dims))); err != nil {
		return err
	}

	b := ce.cfg.Backend()
	rep := ps.pending[0].promote(level, dims[0])
	for i := 1; i < len(ps.pending); i++ {
		rep = kronRep(b, rep, ps.pending[i].promote(level, dims[i]))
	}

	ps.origin = make(map[*State]Representation, len(ps.members))
	for i, m := range ps.members {
		ps.origin[m] = ps.pending[i]
	}
	ps.rep = rep
	ps.pending = nil
	ce.cfg.Metrics().recordEvent("materialize")
	return ps.transition(PhaseMaterialized, "materialize")
}

func (ce *CompositeEnvelope) mergeSpaces(a, b *ProductSpace) error {
	if a.phase == PhaseBuilding && b.phase == PhaseBuilding {
		a.members = append(append([]*State(nil), a.members...), b.members...)
		a.pending = append(append([]Representation(nil), a.pending...), b.pending...)
		for _, m := range b.members {
			m.space = a.id
		}
		b.members = nil
		b.pending = nil
		return ce.retire(b, "merge")
	}

	if err := ce.materialize(a); err != nil {
		return err
	}
	if err := ce.materialize(b); err != nil {
		return err
	}

	level := max(a.rep.level, b.rep.level)
	dimA, dimB := a.Dimension(), b.Dimension()
	if err := ce.cfg.admit("merge", bytesFor(level, dimA*dimB)); err != nil {
		return err
	}
	errnie.Info("merging spaces %d and %d: dimension %d x %d = %d", a.id, b.id, dimA, dimB, dimA*dimB)

	b2 := ce.cfg.Backend()
	a.rep = kronRep(b2, a.rep.promote(level, dimA), b.rep.promote(level, dimB))
	a.members = append(append([]*State(nil), a.members...), b.members...)
	a.origin = mergeOrigins(a.origin, b.origin)
	for _, m := range b.members {
		m.space = a.id
	}
	b.members = nil

	ce.cfg.Metrics().recordEvent("merge")
	return ce.retire(b, "merge")
}

func (ce *CompositeEnvelope) combine(states []*State) (*ProductSpace, error) {
	if err := ce.trackAll(states); err != nil {
		return nil, err
	}

	var (
		spaces   []*ProductSpace
		loose    []*State
		loosePos = -1
	)
	for _, s := range states {
		ps := ce.spaceOf(s)
		if ps != nil && ps.phase == PhaseBuilding {
			ce.extract(ps, s)
			ps = nil
		}
		if ps == nil {
			if loosePos < 0 {
				loosePos = len(spaces)
			}
			loose = append(loose, s)
			continue
		}
		if !containsSpace(spaces, ps) {
			spaces = append(spaces, ps)
		}
	}

	if len(loose) > 0 {
		ps := ce.register(loose)
		if err := ce.materialize(ps); err != nil {
			return nil, err
		}
		spaces = append(spaces[:loosePos], append([]*ProductSpace{ps}, spaces[loosePos:]...)...)
	}

	target := spaces[0]
	for _, ps := range spaces[1:] {
		if err := ce.mergeSpaces(target, ps); err != nil {
			return nil, err
		}
	}
	return target, ce.materialize(target)
}

/*
extract removes a member from a Building space, handing it back its pending
representation. A space left with one member dissolves.
*/
func (ce *CompositeEnvelope) extract(ps *ProductSpace, s *State) {
	rep, i := ps.pendingOf(s)
	if i < 0 {
		return
	}

	members, pending := ps.without(i)
	s.separate(rep, s.dim)
	ps.members, ps.pending = members, pending

	switch len(members) {
	case 0:
		_ = ce.retire(ps, "extract")
	case 1:
		members[0].separate(pending[0], members[0].dim)
		_ = ce.retire(ps, "extract")
	}
}

func (ce *CompositeEnvelope) retire(ps *ProductSpace, cause string) error {
	if err := ps.retire(cause); err != nil {
		return err
	}
	ce.spaces[ps.id] = nil
	return nil
}

func containsSpace(spaces []*ProductSpace, ps *ProductSpace) bool {
	for _, s := range spaces {
		if s == ps {
			return true
		}
	}
	return false
}
