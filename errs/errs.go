// Package errs defines the error taxonomy shared by the parsers, the grouping
// engine and the sidecar writer.
//
// Sentinel errors are matched with errors.Is. The structured error types
// (FormatError, AlignmentError, Warning) unwrap to both their category
// sentinel and the underlying cause, so callers can test either.
package errs

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	// ErrFormat marks malformed or unrecognised input.
	ErrFormat = errors.New("format error")
	// ErrAlignment marks internally inconsistent signal metadata.
	ErrAlignment = errors.New("alignment error")
	// ErrEmptyContainer is returned when no signal was recovered at all.
	ErrEmptyContainer = errors.New("empty container: no signals recovered")
	// ErrPartialRecovery marks a non-fatal recovery problem, such as a start
	// time that defaulted to relative zero.
	ErrPartialRecovery = errors.New("partial recovery")
)

// Signal and container errors.
var (
	ErrInvalidSignal   = errors.New("invalid signal")
	ErrDuplicateSignal = errors.New("duplicate signal name")
	ErrMissingTrigger  = errors.New("no trigger signal available for alignment")
)

// Parser selection errors.
var (
	ErrNoParser      = errors.New("no parser can handle the input")
	ErrMultipleDICOM = errors.New("only one DICOM file is supported per run")
)

// Output errors.
var (
	ErrInvalidCompression = errors.New("invalid compression type")
	ErrEmptyPrefix        = errors.New("empty output prefix")
)

// FormatError reports a file that could not be decoded.
type FormatError struct {
	Path   string // offending file
	Format string // detected or requested format
	Check  string // failing check, e.g. "magic", "truncated"
	Err    error
}

// NewFormatError builds a FormatError whose cause is formatted from msg and args.
func NewFormatError(path, format, check, msg string, args ...any) *FormatError {
	return &FormatError{
		Path:   path,
		Format: format,
		Check:  check,
		Err:    fmt.Errorf(msg, args...),
	}
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s file %q failed %s check: %v", ErrFormat, e.Format, e.Path, e.Check, e.Err)
}

func (e *FormatError) Unwrap() []error {
	return []error{ErrFormat, e.Err}
}

// AlignmentError reports signals whose metadata cannot be reconciled into an
// output group.
type AlignmentError struct {
	Group  string // group description, e.g. "50Hz@0.000s"
	Detail string
	Err    error
}

func (e *AlignmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: group %s: %s: %v", ErrAlignment, e.Group, e.Detail, e.Err)
	}

	return fmt.Sprintf("%s: group %s: %s", ErrAlignment, e.Group, e.Detail)
}

func (e *AlignmentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAlignment}
	}

	return []error{ErrAlignment, e.Err}
}

// Warning is a PartialRecoveryWarning: a recoverable problem attached to a
// parsed container. It is surfaced only when verbose output is requested.
type Warning struct {
	Path   string
	Signal string
	Msg    string
}

func (w Warning) Error() string {
	if w.Signal != "" {
		return fmt.Sprintf("%s: %q (%s): %s", ErrPartialRecovery, w.Path, w.Signal, w.Msg)
	}

	return fmt.Sprintf("%s: %q: %s", ErrPartialRecovery, w.Path, w.Msg)
}

func (w Warning) Unwrap() error {
	return ErrPartialRecovery
}
