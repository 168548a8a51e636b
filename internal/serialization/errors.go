package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrHeaderTooLarge    = errors.New("header exceeds maximum size")
	ErrUnsupportedDType  = errors.New("unsupported dtype")
	ErrOutOfBounds       = errors.New("tensor extends beyond data section")
	ErrOffsetMismatch    = errors.New("tensor data offsets do not match dtype and shape")
	ErrInvalidTensorName = errors.New("invalid tensor name")
)

// ValidationError provides detailed information about a malformed file.
type ValidationError struct {
	Tensor  string // Tensor name involved, if any
	Details string // Additional details
	Err     error  // Sentinel cause
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
