package qweave

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when an operation targets a different kind
	// of container than the one it is applied to.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrDimension is returned when an operator does not fit the current
	// cutoff, or a product-space dimension is inconsistent.
	ErrDimension = errors.New("dimension error")
	// ErrNormalization signals that a state's norm or trace drifted beyond
	// the configured tolerance.
	ErrNormalization = errors.New("normalization error")
	// ErrUnsupportedOperation is returned for expressions referencing a
	// primitive missing from their context, and for unknown gate names.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrResourceLimit is returned when a tensor would exceed the memory
	// ceiling.
	ErrResourceLimit = errors.New("resource limit exceeded")
	// ErrValue covers invalid arguments such as a malformed basis or POVM.
	ErrValue = errors.New("invalid value")
	// ErrEntangled is returned when a container cannot be detached because it
	// is still correlated with the rest of its product space.
	ErrEntangled = errors.New("container is entangled")
	// ErrMeasured is returned when a destructively measured container is used.
	ErrMeasured = errors.New("container was destructively measured")
	// ErrNotMember is returned when a container is not tracked by the
	// composite envelope it is used with.
	ErrNotMember = errors.New("container is not a member")
)

/*
Error decorates one of the sentinel errors with the operation that failed
and a human readable detail. errors.Is matches the sentinel.
*/
type Error struct {
	Kind   error
	Op     string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}
