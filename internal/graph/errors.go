package graph

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNilNode            = errors.New("node is nil")
	ErrReleasedNode       = errors.New("node has been released")
	ErrNotTensorView      = errors.New("argument is not a tensor view")
	ErrInvalidShape       = errors.New("invalid shape")
	ErrInvalidElementType = errors.New("invalid element type")
	ErrAxisOutOfBounds    = errors.New("axis out of bounds")
	ErrShapeMismatch      = errors.New("incompatible shapes")
	ErrUnlistedParameter  = errors.New("parameter not listed in function")
)

// ValidationError reports a node that could not be constructed.
type ValidationError struct {
	Op      string // Node type being constructed (e.g., "OneHot")
	Details string // Message describing the violated condition
	Err     error  // Sentinel cause
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Details)
}

// Unwrap returns the sentinel cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validationErrorf(op string, cause error, format string, args ...any) error {
	return &ValidationError{Op: op, Details: fmt.Sprintf(format, args...), Err: cause}
}
