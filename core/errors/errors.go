// Package errors provides the typed errors shared by the check engine,
// the catalog and the stores. Each type unwraps to one of the sentinels so
// callers can branch with Is instead of type switches.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing check, project, book or run.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks a request the caller can fix.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists marks a publish or create that collides.
	ErrAlreadyExists = errors.New("already exists")
	// ErrCheckFailed marks the failure of one check on one unit of text.
	ErrCheckFailed = errors.New("check failed")
)

// NotFoundError names the resource that was looked up.
type NotFoundError struct {
	Resource string // "check", "book", "project", "run"
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return orSentinel(e.Err, ErrNotFound) }

// ValidationError is a user-actionable failure on one field. Field uses
// the wire name of the field where there is one.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return orSentinel(e.Err, ErrInvalidInput) }

// AlreadyExistsError reports a publish or create that collides with an
// existing entry.
type AlreadyExistsError struct {
	Resource string
	ID       string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.ID)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// IOError is a failed filesystem, database or object store operation.
type IOError struct {
	Operation string // "read", "write", "list", ...
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError is malformed input: check XML, USFM, settings, bundles. It
// always matches ErrInvalidInput as well as its cause.
type ParseError struct {
	Format  string
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidInput}
	}
	return []error{ErrInvalidInput, e.Err}
}

// CheckError is the failure of one check against one unit of text.
type CheckError struct {
	CheckID string
	Check   string
	Unit    string
	Phase   string
	Err     error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %q failed in %s phase on %s: %v", e.Check, e.Phase, e.Unit, e.Err)
}

func (e *CheckError) Unwrap() []error { return []error{ErrCheckFailed, e.Err} }

func orSentinel(err, sentinel error) error {
	if err != nil {
		return err
	}
	return sentinel
}

func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func NewAlreadyExists(resource, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Resource: resource, ID: id}
}

func NewIO(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

func NewParse(format, path, message string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: message}
}

// Wrap prefixes err with message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Exit codes returned by ExitCode.
const (
	ExitFailure  = 1
	ExitInvalid  = 2
	ExitNotFound = 3
	ExitConflict = 4
)

// ExitCode maps err to a process exit status: 0 for nil, then invalid
// input, not found and conflicts in that order, and ExitFailure otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidInput):
		return ExitInvalid
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrAlreadyExists):
		return ExitConflict
	default:
		return ExitFailure
	}
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }
