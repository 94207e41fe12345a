package qweave

import (
	"fmt"
	"strings"

	"github.com/theapemachine/qweave/linalg"
)

/*
Expr is a closed-form operator built from named primitives. It is evaluated
lazily: nothing is computed until the expression is asked for its matrix at
a concrete list of subsystem dimensions, so the same expression follows the
cutoff of whatever it is applied to.
*/
type Expr interface {
	eval(ctx Context, dims []int, b linalg.Backend) (*linalg.Matrix, error)
	String() string
}

type primExpr struct {
	name      string
	subsystem int
}

type scaleExpr struct {
	c    complex128
	expr Expr
}

type sumExpr struct {
	terms []Expr
}

type composeExpr struct {
	factors []Expr
}

type expExpr struct {
	expr Expr
}

// Prim references a primitive acting on the only subsystem of the target.
func Prim(name string) Expr {
	return primExpr{name: name}
}

/*
PrimOn references a primitive acting on one subsystem of a multi-subsystem
target; the other subsystems are padded with the identity.
*/
func PrimOn(name string, subsystem int) Expr {
	return primExpr{name: name, subsystem: subsystem}
}

func Scale(c complex128, e Expr) Expr {
	return scaleExpr{c: c, expr: e}
}

func Sum(terms ...Expr) Expr {
	return sumExpr{terms: terms}
}

// Compose multiplies its factors left to right, so Compose(A, B) is AB.
func Compose(factors ...Expr) Expr {
	return composeExpr{factors: factors}
}

// Exp is the matrix exponential.
func Exp(e Expr) Expr {
	return expExpr{expr: e}
}

func (p primExpr) eval(ctx Context, dims []int, b linalg.Backend) (*linalg.Matrix, error) {
	build, ok := ctx[p.name]
	if !ok {
		return nil, newError(ErrUnsupportedOperation, "expression", "primitive %q is not defined in the operation context", p.name)
	}
	if p.subsystem < 0 || p.subsystem >= len(dims) {
		return nil, newError(ErrDimension, "expression", "primitive %q targets subsystem %d of %d", p.name, p.subsystem, len(dims))
	}

	m, err := build(dims[p.subsystem])
	if err != nil {
		return nil, err
	}
	if m.Rows() != dims[p.subsystem] || !m.IsSquare() {
		return nil, newError(ErrDimension, "expression", "primitive %q returned %v for dimension %d", p.name, m, dims[p.subsystem])
	}
	return embed(b, m, dims, []int{p.subsystem}), nil
}

func (p primExpr) String() string {
	if p.subsystem == 0 {
		return p.name
	}
	return fmt.Sprintf("%s[%d]", p.name, p.subsystem)
}

func (s scaleExpr) eval(ctx Context, dims []int, b linalg.Backend) (*linalg.Matrix, error) {
	m, err := s.expr.eval(ctx, dims, b)
	if err != nil {
		return nil, err
	}
	return m.Scale(s.c), nil
}

func (s scaleExpr) String() string {
	return fmt.Sprintf("%v·%s", s.c, s.expr)
}

func (s sumExpr) eval(ctx Context, dims []int, b linalg.Backend) (*linalg.Matrix, error) {
	if len(s.terms) == 0 {
		return nil, newError(ErrValue, "expression", "empty sum")
	}

	var out *linalg.Matrix
	for _, t := range s.terms {
		m, err := t.eval(ctx, dims, b)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = m
			continue
		}
		out = out.Add(m)
	}
	return out, nil
}

func (s sumExpr) String() string {
	parts := make([]string, len(s.terms))
	for i, t := range s.terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

func (c composeExpr) eval(ctx Context, dims []int, b linalg.Backend) (*linalg.Matrix, error) {
	if len(c.factors) == 0 {
		return nil, newError(ErrValue, "expression", "empty composition")
	}

	var out *linalg.Matrix
	for _, f := range c.factors {
		m, err := f.eval(ctx, dims, b)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = m
			continue
		}
		out = b.Mul(out, m)
	}
	return out, nil
}

func (c composeExpr) String() string {
	parts := make([]string, len(c.factors))
	for i, f := range c.factors {
		parts[i] = f.String()
	}
	return strings.Join(parts, "·")
}

func (e expExpr) eval(ctx Context, dims []int, b linalg.Backend) (*linalg.Matrix, error) {
	m, err := e.expr.eval(ctx, dims, b)
	if err != nil {
		return nil, err
	}
	return b.Expm(m), nil
}

func (e expExpr) String() string {
	return "exp(" + e.expr.String() + ")"
}
