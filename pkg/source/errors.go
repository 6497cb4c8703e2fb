package source

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSourceFound is returned when no group has an infrared preview or
	// record source.
	ErrNoSourceFound = errors.New("source: no infrared source found")

	// ErrNoFrame means nothing new arrived since the last poll. It is the
	// normal idle result, not a failure.
	ErrNoFrame = errors.New("source: no new frame")

	// ErrClosed is returned by a session after Close.
	ErrClosed = errors.New("source: session closed")
)

// OpenError is returned when a selected source cannot be opened.
type OpenError struct {
	SourceID string
	Err      error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("source: open %s: %v", e.SourceID, e.Err)
}

// Unwrap returns the platform error.
func (e *OpenError) Unwrap() error {
	return e.Err
}

// DecodeError means a delivered frame could not be turned into an intensity
// frame. The frame is skipped; the session stays usable.
type DecodeError struct {
	Format string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("source: decode %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("source: decode: %v", e.Err)
}

// Unwrap returns the conversion error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errBusy = errors.New("device busy")
