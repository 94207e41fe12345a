package qweave

import (
	"fmt"

	"github.com/theapemachine/qweave/linalg"
)

// SpaceID identifies a ProductSpace within its CompositeEnvelope. Zero is
// never a valid ID.
type SpaceID int

// Phase is the lifecycle state of a ProductSpace.
type Phase int

const (
	// PhaseBuilding spaces have registered members but no combined tensor;
	// each member still holds its own representation.
	PhaseBuilding Phase = iota
	// PhaseMaterialized spaces hold one combined tensor over all members.
	PhaseMaterialized
	// PhaseFactored spaces have been split, dissolved or merged away and no
	// longer hold anything.
	PhaseFactored
)

func (p Phase) String() string {
	switch p {
	case PhaseBuilding:
		return "building"
	case PhaseMaterialized:
		return "materialized"
	case PhaseFactored:
		return "factored"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

/*
Transition is an immutable record of a lifecycle change of a ProductSpace.
Each transition carries a monotonically increasing sequence number and the
operation that caused it, so the history of a space can be replayed.
*/
type Transition struct {
	Sequence uint64
	From     Phase
	To       Phase
	Cause    string
}

/*
ProductSpace groups containers whose joint state is held together. The
member order is the index map: the combined tensor is indexed row-major over
the members' dimensions in that order, and every operator expansion follows
it.

While Building, pending holds one representation per member and the joint
state is their tensor product. While Materialized, rep holds the combined
Vector or Matrix, and origin keeps each member's pre-join representation
until the joint state is first evolved or measured. A ProductSpace is owned by exactly one CompositeEnvelope,
which is the only writer; members keep a back-reference by ID only.

Slices held by a ProductSpace are never modified in place, so a shallow copy
of the struct is a consistent snapshot.
*/
type ProductSpace struct {
	id      SpaceID
	phase   Phase
	members []*State
	pending []Representation
	rep     Representation
	origin  map[*State]Representation
	ledger  []Transition
}

func newProductSpace(id SpaceID, members []*State, pending []Representation) *ProductSpace {
	return &ProductSpace{
		id:      id,
		phase:   PhaseBuilding,
		members: members,
		pending: pending,
	}
}

func (ps *ProductSpace) ID() SpaceID    { return ps.id }
func (ps *ProductSpace) Phase() Phase   { return ps.phase }
func (ps *ProductSpace) Len() int       { return len(ps.members) }
func (ps *ProductSpace) String() string { return fmt.Sprintf("space %d (%s) %v", ps.id, ps.phase, ps.Dims()) }

// Members returns the containers in index-map order.
func (ps *ProductSpace) Members() []*State {
	return append([]*State(nil), ps.members...)
}

// Dims returns the member dimensions in index-map order.
func (ps *ProductSpace) Dims() []int {
	dims := make([]int, len(ps.members))
	for i, m := range ps.members {
		dims[i] = m.dim
	}
	return dims
}

func (ps *ProductSpace) kinds() []Kind {
	kinds := make([]Kind, len(ps.members))
	for i, m := range ps.members {
		kinds[i] = m.kind
	}
	return kinds
}

// Dimension is the product of the member dimensions.
func (ps *ProductSpace) Dimension() int {
	return linalg.Product(ps.Dims())
}

/*
Representation returns the combined tensor of a Materialized space. Building
and Factored spaces have none.
*/
func (ps *ProductSpace) Representation() (Representation, bool) {
	if ps.phase != PhaseMaterialized {
		return Representation{}, false
	}
	return ps.rep, true
}

/*
History returns all transitions that have occurred since a given sequence
number, oldest first.
*/
func (ps *ProductSpace) History(sinceSequence uint64) []Transition {
	if sinceSequence >= uint64(len(ps.ledger)) {
		return []Transition{}
	}
	return append([]Transition(nil), ps.ledger[sinceSequence:]...)
}

func (ps *ProductSpace) indexOf(s *State) int {
	for i, m := range ps.members {
		if m == s {
			return i
		}
	}
	return -1
}

func (ps *ProductSpace) frame() frame {
	return frame{rep: ps.rep, dims: ps.Dims(), kinds: ps.kinds()}
}

/*
transition moves the space to a new phase and records it in the ledger.
Allowed moves are Building→Materialized, Building→Factored and
Materialized→Factored.
*/
func (ps *ProductSpace) transition(to Phase, cause string) error {
	switch {
	case ps.phase == PhaseBuilding && (to == PhaseMaterialized || to == PhaseFactored):
	case ps.phase == PhaseMaterialized && to == PhaseFactored:
	default:
		return newError(ErrValue, cause, "space %d cannot move from %s to %s", ps.id, ps.phase, to)
	}

	ps.ledger = append(append([]Transition(nil), ps.ledger...), Transition{
		Sequence: uint64(len(ps.ledger)),
		From:     ps.phase,
		To:       to,
		Cause:    cause,
	})
	ps.phase = to
	return nil
}

// retire empties a space that was split, dissolved or merged away.
func (ps *ProductSpace) retire(cause string) error {
	if err := ps.transition(PhaseFactored, cause); err != nil {
		return err
	}
	ps.members = nil
	ps.pending = nil
	ps.rep = Representation{}
	ps.origin = nil
	return nil
}

/*
restored returns the pre-join representation of m when the joint state was
never evolved since materialization and m still has the dimension it joined
with.
*/
func (ps *ProductSpace) restored(m *State) (Representation, bool) {
	rep, ok := ps.origin[m]
	if !ok || rep.validate(m.dim) != nil {
		return Representation{}, false
	}
	return rep, true
}

func mergeOrigins(a, b map[*State]Representation) map[*State]Representation {
	if a == nil && b == nil {
		return nil
	}
	out := make(map[*State]Representation, len(a)+len(b))
	for m, rep := range a {
		out[m] = rep
	}
	for m, rep := range b {
		out[m] = rep
	}
	return out
}

// originOf collects the untouched pre-join representations of members.
func (ps *ProductSpace) originOf(members []*State) map[*State]Representation {
	out := make(map[*State]Representation, len(members))
	for _, m := range members {
		if rep, ok := ps.origin[m]; ok {
			out[m] = rep
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// pendingOf returns the pending representation of a member of a Building
// space.
func (ps *ProductSpace) pendingOf(s *State) (Representation, int) {
	i := ps.indexOf(s)
	if i < 0 || ps.phase != PhaseBuilding {
		return Representation{}, -1
	}
	return ps.pending[i], i
}

// withPending returns a copy of pending with entry i replaced.
func (ps *ProductSpace) withPending(i int, rep Representation) []Representation {
	out := append([]Representation(nil), ps.pending...)
	out[i] = rep
	return out
}

// without returns the members and pending slices with entry i removed.
func (ps *ProductSpace) without(i int) ([]*State, []Representation) {
	members := make([]*State, 0, len(ps.members)-1)
	members = append(members, ps.members[:i]...)
	members = append(members, ps.members[i+1:]...)

	var pending []Representation
	if ps.pending != nil {
		pending = make([]Representation, 0, len(ps.pending)-1)
		pending = append(pending, ps.pending[:i]...)
		pending = append(pending, ps.pending[i+1:]...)
	}
	return members, pending
}
