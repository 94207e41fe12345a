package qweave

import (
	"strings"

	"github.com/theapemachine/qweave/linalg"
)

// Style is how an Operation is defined.
type Style int

const (
	StyleExpression Style = iota
	StyleMatrix
	StyleKraus
)

/*
Growth tells the engine how an operation can move probability mass across a
Fock cutoff, and therefore how far to grow the cutoff before applying it.
*/
type Growth int

const (
	// GrowthNone operators never populate new number states.
	GrowthNone Growth = iota
	// GrowthRaise operators lift the highest populated level by a fixed step.
	GrowthRaise
	// GrowthConserve operators redistribute a fixed total photon number
	// across their Fock targets.
	GrowthConserve
	// GrowthUnbounded operators spread mass over every level; the cutoff is
	// doubled until the top level carries negligible mass.
	GrowthUnbounded
)

/*
Operation is a quantum operation targeting an ordered list of container
kinds. It is defined by an expression over named primitives, an explicit
matrix, or a Kraus set. Expressions are resolved against the operation's own
Context at apply-time.
*/
type Operation struct {
	name        string
	targets     []Kind
	style       Style
	expr        Expr
	ctx         Context
	matrix      *linalg.Matrix
	kraus       []*linalg.Matrix
	growth      Growth
	step        int
	renormalize bool
}

type OperationOption func(*Operation)

// WithGrowth declares that the operation raises photon number by up to n.
func WithGrowth(n int) OperationOption {
	return func(op *Operation) {
		op.growth = GrowthRaise
		op.step = n
	}
}

// WithGrowthPolicy sets the cutoff growth policy directly.
func WithGrowthPolicy(g Growth) OperationOption {
	return func(op *Operation) {
		op.growth = g
		if g == GrowthRaise && op.step == 0 {
			op.step = 1
		}
	}
}

/*
WithRenormalize marks a non-unitary operation whose result is renormalized
rather than checked for drift, e.g. a ladder operator.
*/
func WithRenormalize() OperationOption {
	return func(op *Operation) {
		op.renormalize = true
	}
}

// WithContext replaces the primitive context of an expression operation.
func WithContext(ctx Context) OperationOption {
	return func(op *Operation) {
		op.ctx = ctx.Clone()
	}
}

// WithName labels the operation in logs and errors.
func WithName(name string) OperationOption {
	return func(op *Operation) {
		op.name = name
	}
}

/*
NewExpressionOperation defines an operation by an expression. Without
WithContext the context is chosen from the target kinds: Fock targets get
FockContext, polarization targets PolarizationContext, mixes get
DefaultContext.
*/
func NewExpressionOperation(expr Expr, targets []Kind, opts ...OperationOption) *Operation {
	op := &Operation{
		name:    expr.String(),
		targets: append([]Kind(nil), targets...),
		style:   StyleExpression,
		expr:    expr,
		ctx:     contextFor(targets),
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// NewMatrixOperation defines an operation by its matrix over the targets.
func NewMatrixOperation(m *linalg.Matrix, targets []Kind, opts ...OperationOption) *Operation {
	op := &Operation{
		name:    "matrix",
		targets: append([]Kind(nil), targets...),
		style:   StyleMatrix,
		matrix:  m.Clone(),
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

/*
NewKrausOperation defines a channel by its Kraus operators. Applying it
promotes the target to a density operator.
*/
func NewKrausOperation(kraus []*linalg.Matrix, targets []Kind, opts ...OperationOption) *Operation {
	op := &Operation{
		name:    "kraus",
		targets: append([]Kind(nil), targets...),
		style:   StyleKraus,
	}
	for _, k := range kraus {
		op.kraus = append(op.kraus, k.Clone())
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

func (op *Operation) Name() string    { return op.name }
func (op *Operation) Style() Style    { return op.style }
func (op *Operation) Targets() []Kind { return append([]Kind(nil), op.targets...) }
func (op *Operation) Growth() Growth  { return op.growth }

/*
Define returns a copy of the operation whose context carries the extra
primitive. The receiver and any operation sharing its context are left
untouched.
*/
func (op *Operation) Define(name string, p Primitive) *Operation {
	out := *op
	out.targets = append([]Kind(nil), op.targets...)
	out.ctx = op.ctx.Clone()
	out.ctx[name] = p
	return &out
}

/*
Matrix evaluates the operation at the given target dimensions. It fails with
ErrDimension when the result does not span exactly the product of dims.
*/
func (op *Operation) Matrix(dims []int, b linalg.Backend) (*linalg.Matrix, error) {
	var (
		m   *linalg.Matrix
		err error
	)

	switch op.style {
	case StyleExpression:
		m, err = op.expr.eval(op.ctx, dims, b)
	case StyleMatrix:
		m = op.matrix
	case StyleKraus:
		return nil, newError(ErrUnsupportedOperation, op.name, "a Kraus set has no single matrix")
	}
	if err != nil {
		return nil, err
	}

	if size := linalg.Product(dims); !m.IsSquare() || m.Rows() != size {
		return nil, newError(ErrDimension, op.name, "operator is %dx%d but targets span %v", m.Rows(), m.Cols(), dims)
	}
	return m, nil
}

// Kraus returns the Kraus operators after checking their dimensions.
func (op *Operation) Kraus(dims []int) ([]*linalg.Matrix, error) {
	if op.style != StyleKraus {
		return nil, newError(ErrUnsupportedOperation, op.name, "not a Kraus operation")
	}
	if len(op.kraus) == 0 {
		return nil, newError(ErrValue, op.name, "empty Kraus set")
	}

	size := linalg.Product(dims)
	for _, k := range op.kraus {
		if k.Rows() != size || k.Cols() != size {
			return nil, newError(ErrDimension, op.name, "Kraus operator is %dx%d but targets span %v", k.Rows(), k.Cols(), dims)
		}
	}
	return op.kraus, nil
}

// checkTargets verifies the operation against the kinds it is applied to.
func (op *Operation) checkTargets(kinds []Kind) error {
	if len(kinds) != len(op.targets) {
		return newError(ErrTypeMismatch, op.name, "operation targets %d subsystems, got %d", len(op.targets), len(kinds))
	}
	for i, k := range kinds {
		if op.targets[i] != k {
			return newError(ErrTypeMismatch, op.name, "target %d is %s, operation expects %s", i, k, op.targets[i])
		}
	}
	return nil
}

func (op *Operation) String() string {
	kinds := make([]string, len(op.targets))
	for i, k := range op.targets {
		kinds[i] = k.String()
	}
	return op.name + "(" + strings.Join(kinds, ",") + ")"
}

func contextFor(targets []Kind) Context {
	fock, pol := false, false
	for _, k := range targets {
		switch k {
		case KindFock:
			fock = true
		case KindPolarization:
			pol = true
		}
	}

	switch {
	case fock && !pol:
		return FockContext()
	case pol && !fock:
		return PolarizationContext()
	}
	return DefaultContext()
}
