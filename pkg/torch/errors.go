package torch

import (
	"errors"
	"fmt"
)

// Reasons reported through UnsupportedError.
const (
	ReasonNoTorch        = "infrared torch control not supported"
	ReasonNotInitialized = "capture not initialized"
)

// ErrUnsupported matches any *UnsupportedError via errors.Is.
var ErrUnsupported = errors.New("torch: unsupported")

// UnsupportedError means the torch cannot be driven right now. The session, if
// any, is unaffected.
type UnsupportedError struct {
	Reason string
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	return "torch: " + e.Reason
}

// Is makes errors.Is(err, ErrUnsupported) true.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// OperationError wraps a device failure while applying a setting.
type OperationError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("torch: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying device error.
func (e *OperationError) Unwrap() error {
	return e.Err
}
