package qweave

import (
	"math"
	"time"

	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qweave/linalg"
)

/*
frame is a representation together with the subsystem layout it is indexed
by. A separable container is a frame with a single subsystem; a product space
is a frame with one subsystem per member, in index-map order.
*/
type frame struct {
	rep   Representation
	dims  []int
	kinds []Kind
}

func (f frame) size() int {
	return linalg.Product(f.dims)
}

/*
engine evaluates operations and measurements on frames. It never touches a
container or a product space; callers commit the frames it returns only once
every step has succeeded, which is what makes each public call atomic.
*/
type engine struct {
	cfg     *Config
	backend linalg.Backend
	rd      reducer
	metrics *Metrics
}

func newEngine(cfg *Config) engine {
	return engine{
		cfg:     cfg,
		backend: cfg.Backend(),
		rd:      newReducer(cfg),
		metrics: cfg.Metrics(),
	}
}

/*
apply runs op on the target subsystems of f. Fock targets are grown before
the operator is evaluated when it can populate levels past the cutoff, and
shrunk again afterwards when auto-resize is enabled.
*/
func (e engine) apply(f frame, targets []int, op *Operation) (frame, error) {
	start := time.Now()

	if err := checkAxes(targets, len(f.dims), op.name); err != nil {
		return f, err
	}
	kinds := make([]Kind, len(targets))
	for i, t := range targets {
		kinds[i] = f.kinds[t]
	}
	if err := op.checkTargets(kinds); err != nil {
		return f, err
	}

	level := LevelVector
	if op.style == StyleKraus {
		level = LevelMatrix
	}
	out := frame{
		rep:   f.rep.promote(level, f.size()),
		dims:  append([]int(nil), f.dims...),
		kinds: f.kinds,
	}

	var err error
	if op.growth == GrowthUnbounded {
		out, err = e.applyUnbounded(out, targets, op)
	} else {
		if out, err = e.grow(out, targets, op); err != nil {
			return f, err
		}
		out, err = e.applyAt(out, targets, op)
	}
	if err != nil {
		return f, err
	}

	if out, err = e.shrink(out, targets, op); err != nil {
		return f, err
	}

	e.metrics.recordOperation(start)
	return out, nil
}

func (e engine) grow(f frame, targets []int, op *Operation) (frame, error) {
	fock := fockAxes(f, targets)
	if len(fock) == 0 {
		return f, nil
	}

	need := make(map[int]int, len(fock))
	switch op.growth {
	case GrowthNone:
		return f, nil
	case GrowthRaise:
		for _, axis := range fock {
			need[axis] = e.highest(f, axis) + op.step + 1
		}
	case GrowthConserve:
		total := 0
		for _, axis := range fock {
			total += max(e.highest(f, axis), 0)
		}
		for _, axis := range fock {
			need[axis] = total + 1
		}
	}

	var err error
	for _, axis := range fock {
		if need[axis] <= f.dims[axis] {
			continue
		}
		if !e.cfg.AutoResize {
			return f, newError(ErrDimension, op.name, "operator populates level %d beyond cutoff %d", need[axis]-1, f.dims[axis])
		}
		if need[axis] > e.cfg.MaxCutoff {
			return f, newError(ErrDimension, op.name, "required cutoff %d exceeds maximum %d", need[axis], e.cfg.MaxCutoff)
		}
		if f, err = e.resize(f, axis, need[axis], op.name); err != nil {
			return f, err
		}
	}
	return f, nil
}

/*
applyUnbounded handles operators such as displacement whose action reaches
every number state. With auto-resize the Fock cutoffs are doubled until the
top level holds at most TruncationEpsilon of probability. Without it, or once
MaxCutoff is reached, probability left on the top level is an ErrDimension;
at MaxCutoff a remainder within DriftTolerance is accepted with a truncation
warning instead.
*/
func (e engine) applyUnbounded(f frame, targets []int, op *Operation) (frame, error) {
	fock := fockAxes(f, targets)

	if len(fock) == 0 {
		return e.applyAt(f, targets, op)
	}

	if !e.cfg.AutoResize {
		out, err := e.applyAt(f, targets, op)
		if err != nil {
			return f, err
		}
		if mass := e.topMass(out, fock); mass > e.cfg.TruncationEpsilon {
			return f, newError(ErrDimension, op.name, "probability %g reaches cutoff %v, enable auto-resize to grow it", mass, f.dims)
		}
		return out, nil
	}

	trial := f
	for {
		out, err := e.applyAt(trial, targets, op)
		if err != nil {
			return f, err
		}
		if e.topMass(out, fock) <= e.cfg.TruncationEpsilon {
			return out, nil
		}

		grown := false
		for _, axis := range fock {
			next := min(trial.dims[axis]*2, e.cfg.MaxCutoff)
			if next <= trial.dims[axis] {
				continue
			}
			if trial, err = e.resize(trial, axis, next, op.name); err != nil {
				return f, err
			}
			grown = true
		}
		if !grown {
			mass := e.topMass(out, fock)
			if mass > e.cfg.DriftTolerance {
				return f, newError(ErrDimension, op.name, "probability %g reaches maximum cutoff %d", mass, e.cfg.MaxCutoff)
			}
			e.warn("truncation", "%s: probability %g left at maximum cutoff %d", op.name, mass, e.cfg.MaxCutoff)
			return out, nil
		}
	}
}

func (e engine) applyAt(f frame, targets []int, op *Operation) (frame, error) {
	tdims := make([]int, len(targets))
	for i, t := range targets {
		tdims[i] = f.dims[t]
	}

	if err := e.cfg.admit(op.name, bytesFor(LevelMatrix, f.size())); err != nil {
		return f, err
	}

	renormalize := op.renormalize
	var rep Representation

	switch op.style {
	case StyleKraus:
		kraus, err := op.Kraus(tdims)
		if err != nil {
			return f, err
		}
		if e.cfg.CheckKraus {
			if err := e.checkCompleteness(kraus, op.name); err != nil {
				if e.cfg.StrictKraus {
					return f, err
				}
				e.warn("kraus_completeness", "%v", err)
				renormalize = true
			}
		}
		full := make([]*linalg.Matrix, len(kraus))
		for i, k := range kraus {
			full[i] = embed(e.backend, k, f.dims, targets)
		}
		rep = channel(e.backend, f.rep.promote(LevelMatrix, f.size()).data, full)
	default:
		m, err := op.Matrix(tdims, e.backend)
		if err != nil {
			return f, err
		}
		rep = evolve(e.backend, f.rep, embed(e.backend, m, f.dims, targets))
	}

	rep, err := e.normalize(rep, op.name, renormalize)
	if err != nil {
		return f, err
	}
	return frame{rep: rep, dims: f.dims, kinds: f.kinds}, nil
}

// shrink trims Fock cutoffs after number-changing operations.
func (e engine) shrink(f frame, targets []int, op *Operation) (frame, error) {
	changes := op.growth != GrowthNone || op.renormalize || op.style == StyleKraus
	if !e.cfg.AutoResize || !changes {
		return f, nil
	}

	var err error
	trimmed := false
	for _, axis := range fockAxes(f, targets) {
		p := marginal(f.rep, f.dims, []int{axis})
		d := minimalCutoff(p, e.cfg.TruncationEpsilon, 2)
		if d >= f.dims[axis] {
			continue
		}
		if f, err = e.resize(f, axis, d, op.name); err != nil {
			return f, err
		}
		trimmed = true
	}

	if trimmed {
		f.rep = f.rep.scaled(f.rep.Norm())
	}
	return f, nil
}

// resize pads or truncates one axis after checking the resulting size.
func (e engine) resize(f frame, axis, dim int, op string) (frame, error) {
	dims := append([]int(nil), f.dims...)
	dims[axis] = dim

	if err := e.cfg.admit(op, bytesFor(f.rep.level, linalg.Product(dims))); err != nil {
		return f, err
	}

	e.metrics.recordEvent("resize")
	return frame{rep: resizeAxis(f.rep, f.dims, axis, dim), dims: dims, kinds: f.kinds}, nil
}

/*
normalize applies the drift policy. Deviations within Tolerance are
renormalized silently, deviations within DriftTolerance are renormalized with
a warning, larger ones fail with ErrNormalization unless the operation asked
to be renormalized. A vanished state always fails.
*/
func (e engine) normalize(rep Representation, op string, renormalize bool) (Representation, error) {
	norm := rep.Norm()
	if !(norm > e.cfg.TruncationEpsilon) {
		return rep, newError(ErrNormalization, op, "state has vanishing norm %g", norm)
	}

	dev := math.Abs(norm - 1)
	switch {
	case renormalize, dev <= e.cfg.Tolerance:
	case dev <= e.cfg.DriftTolerance:
		e.warn("drift", "%s: norm drifted by %g, renormalizing", op, dev)
	default:
		return rep, newError(ErrNormalization, op, "norm drifted by %g", dev)
	}
	return rep.scaled(norm), nil
}

func (e engine) checkCompleteness(kraus []*linalg.Matrix, op string) error {
	n := kraus[0].Cols()
	sum := linalg.New(n, n)
	for _, k := range kraus {
		sum = sum.Add(e.backend.Mul(k.H(), k))
	}
	if dev := sum.Sub(linalg.Identity(n)).MaxAbs(); dev > e.cfg.DriftTolerance {
		return newError(ErrNormalization, op, "Kraus set is incomplete, deviation %g", dev)
	}
	return nil
}

// highest is the top populated level of a Fock axis, or -1 for none.
func (e engine) highest(f frame, axis int) int {
	return maxPopulated(marginal(f.rep, f.dims, []int{axis}), e.cfg.TruncationEpsilon)
}

func (e engine) topMass(f frame, axes []int) float64 {
	var mass float64
	for _, axis := range axes {
		p := marginal(f.rep, f.dims, []int{axis})
		mass = math.Max(mass, p[len(p)-1])
	}
	return mass
}

func (e engine) warn(kind string, format string, args ...any) {
	e.metrics.recordWarning(kind)
	errnie.Info(format, args...)
}

/*
measureAxis samples the outcome of a projective measurement of one
subsystem and returns the normalized state of the remaining subsystems. A
basis, when given, is a unitary whose columns are the measurement basis
vectors; the subsystem is rotated into it before sampling.
*/
func (e engine) measureAxis(f frame, axis int, basis *linalg.Matrix) (int, float64, frame, error) {
	rep := f.rep.promote(LevelVector, f.size())

	if basis != nil {
		if err := e.checkBasis(basis, f.dims[axis]); err != nil {
			return 0, 0, f, err
		}
		rep = evolve(e.backend, rep, embed(e.backend, basis.H(), f.dims, []int{axis}))
	}

	probs := marginal(rep, f.dims, []int{axis})
	k := e.backend.Sample(probs)
	if k < 0 {
		return 0, 0, f, newError(ErrNormalization, "measure", "no outcome has positive probability")
	}

	var total float64
	for _, p := range probs {
		total += p
	}

	rest := project(rep, f.dims, axis, k)
	rest = rest.scaled(rest.Norm())

	dims := make([]int, 0, len(f.dims)-1)
	kinds := make([]Kind, 0, len(f.dims)-1)
	for i := range f.dims {
		if i != axis {
			dims = append(dims, f.dims[i])
			kinds = append(kinds, f.kinds[i])
		}
	}

	e.metrics.recordEvent("measurement")
	return k, probs[k] / total, frame{rep: rest, dims: dims, kinds: kinds}, nil
}

func (e engine) checkBasis(basis *linalg.Matrix, dim int) error {
	if !basis.IsSquare() || basis.Rows() != dim {
		return newError(ErrValue, "measure", "basis is %dx%d, subsystem has dimension %d", basis.Rows(), basis.Cols(), dim)
	}
	if !e.backend.Mul(basis.H(), basis).EqualApprox(linalg.Identity(dim), e.cfg.DriftTolerance) {
		return newError(ErrValue, "measure", "basis vectors are not orthonormal")
	}
	return nil
}

/*
povm samples a generalized measurement with effects on the target
subsystems. The post-measurement state is √E ρ √E / p.
*/
func (e engine) povm(f frame, targets []int, effects []*linalg.Matrix) (int, float64, frame, error) {
	if err := checkAxes(targets, len(f.dims), "povm"); err != nil {
		return 0, 0, f, err
	}
	tdims := make([]int, len(targets))
	for i, t := range targets {
		tdims[i] = f.dims[t]
	}
	if err := e.checkEffects(effects, linalg.Product(tdims)); err != nil {
		return 0, 0, f, err
	}
	if err := e.cfg.admit("povm", bytesFor(LevelMatrix, f.size())); err != nil {
		return 0, 0, f, err
	}

	rho := f.rep.promote(LevelMatrix, f.size()).data
	full := make([]*linalg.Matrix, len(effects))
	probs := make([]float64, len(effects))
	for i, eff := range effects {
		full[i] = embed(e.backend, eff, f.dims, targets)
		probs[i] = math.Max(real(e.backend.Trace(e.backend.Mul(full[i], rho))), 0)
	}

	k := e.backend.Sample(probs)
	if k < 0 {
		return 0, 0, f, newError(ErrNormalization, "povm", "no outcome has positive probability")
	}

	root := e.backend.SqrtPSD(full[k])
	post := Representation{level: LevelMatrix, data: e.backend.Mul(e.backend.Mul(root, rho), root)}
	post = post.scaled(post.Norm())

	e.metrics.recordEvent("measurement")
	return k, probs[k], frame{rep: post, dims: f.dims, kinds: f.kinds}, nil
}

func (e engine) checkEffects(effects []*linalg.Matrix, size int) error {
	if len(effects) == 0 {
		return newError(ErrValue, "povm", "no effects")
	}

	sum := linalg.New(size, size)
	for i, eff := range effects {
		if eff.Rows() != size || eff.Cols() != size {
			return newError(ErrDimension, "povm", "effect %d is %dx%d, targets span %d", i, eff.Rows(), eff.Cols(), size)
		}
		if !eff.IsHermitian(e.cfg.DriftTolerance) {
			return newError(ErrValue, "povm", "effect %d is not Hermitian", i)
		}
		sum = sum.Add(eff)
	}
	if !sum.EqualApprox(linalg.Identity(size), e.cfg.DriftTolerance) {
		return newError(ErrValue, "povm", "effects do not sum to the identity")
	}
	return nil
}

func fockAxes(f frame, targets []int) []int {
	var out []int
	for _, t := range targets {
		if f.kinds[t] == KindFock {
			out = append(out, t)
		}
	}
	return out
}

func checkAxes(axes []int, n int, op string) error {
	if len(axes) == 0 {
		return newError(ErrValue, op, "no targets")
	}
	seen := make(map[int]bool, len(axes))
	for _, a := range axes {
		if a < 0 || a >= n {
			return newError(ErrNotMember, op, "subsystem %d out of range", a)
		}
		if seen[a] {
			return newError(ErrValue, op, "subsystem %d targeted twice", a)
		}
		seen[a] = true
	}
	return nil
}

/*
resizeChecked changes the dimension of a Fock axis on request. Growing always
succeeds within MaxCutoff; shrinking fails with ErrDimension when the levels
being dropped hold more than TruncationEpsilon of probability.
*/
func (e engine) resizeChecked(f frame, axis, dim int) (frame, error) {
	if dim < 1 || dim > e.cfg.MaxCutoff {
		return f, newError(ErrDimension, "resize", "dimension %d outside [1, %d]", dim, e.cfg.MaxCutoff)
	}
	if dim == f.dims[axis] {
		return f, nil
	}

	f = frame{rep: f.rep.promote(LevelVector, f.size()), dims: f.dims, kinds: f.kinds}
	if dim < f.dims[axis] {
		p := marginal(f.rep, f.dims, []int{axis})
		var dropped float64
		for _, v := range p[dim:] {
			dropped += v
		}
		if dropped > e.cfg.TruncationEpsilon {
			return f, newError(ErrDimension, "resize", "shrinking to %d would drop probability %g", dim, dropped)
		}
	}

	out, err := e.resize(f, axis, dim, "resize")
	if err != nil {
		return f, err
	}
	out.rep = out.rep.scaled(out.rep.Norm())
	return out, nil
}
