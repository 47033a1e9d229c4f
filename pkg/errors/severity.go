// Package errors provides severity-aware error types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a structured allocation error with a stable code.
type Error struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Field       string   `json:"field,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s (field: %s)", e.Severity, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is regardless of message or field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrCodeInvalidSeverityLevel = "INVALID_SEVERITY_LEVEL"
	ErrCodeUnknownResource      = "UNKNOWN_RESOURCE"
	ErrCodeInvalidCatalog       = "INVALID_CATALOG"
	ErrCodeInvalidConstraint    = "INVALID_CONSTRAINT"
	ErrCodeSolverTimeout        = "SOLVER_TIMEOUT"
	ErrCodeSolverInternal       = "SOLVER_INTERNAL_ERROR"
	ErrCodeInvariantViolation   = "INTERNAL_INVARIANT_VIOLATION"
)

// Sentinels for errors.Is.
var (
	ErrInvalidSeverityLevel = &Error{Code: ErrCodeInvalidSeverityLevel}
	ErrUnknownResource      = &Error{Code: ErrCodeUnknownResource}
	ErrInvalidCatalog       = &Error{Code: ErrCodeInvalidCatalog}
	ErrInvalidConstraint    = &Error{Code: ErrCodeInvalidConstraint}
	ErrSolverTimeout        = &Error{Code: ErrCodeSolverTimeout}
	ErrSolverInternal       = &Error{Code: ErrCodeSolverInternal}
	ErrInvariantViolation   = &Error{Code: ErrCodeInvariantViolation}
)

// NewInvalidSeverityLevelError creates an error for a severity level outside Low/Medium/High.
func NewInvalidSeverityLevelError(level string) *Error {
	return &Error{
		Code:        ErrCodeInvalidSeverityLevel,
		Message:     fmt.Sprintf("Invalid severity level: %q. Choose Low / Medium / High", level),
		Severity:    SeverityError,
		Field:       "severity_level",
		Recoverable: false,
	}
}

// NewUnknownResourceError creates an error for a resource missing from the catalog.
func NewUnknownResourceError(resource string) *Error {
	return &Error{
		Code:        ErrCodeUnknownResource,
		Message:     fmt.Sprintf("No catalog entry for resource type: %s", resource),
		Severity:    SeverityError,
		Field:       resource,
		Recoverable: false,
	}
}

// NewInvalidCatalogError creates an error for a catalog that fails validation.
func NewInvalidCatalogError(format string, args ...any) *Error {
	return &Error{
		Code:     ErrCodeInvalidCatalog,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityFatal,
	}
}

// NewInvalidConstraintError creates an error for a caller-supplied constraint that cannot be built.
func NewInvalidConstraintError(field, format string, args ...any) *Error {
	return &Error{
		Code:     ErrCodeInvalidConstraint,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
		Field:    field,
	}
}

// NewSolverTimeoutError reports a search that hit its node cap.
func NewSolverTimeoutError(nodes int) *Error {
	return &Error{
		Code:        ErrCodeSolverTimeout,
		Message:     fmt.Sprintf("Branch-and-bound exceeded node limit (%d nodes explored)", nodes),
		Severity:    SeverityFatal,
		Recoverable: false,
	}
}

// NewSolverDeadlineError reports a search stopped by the caller's deadline.
func NewSolverDeadlineError(cause error) *Error {
	return &Error{
		Code:        ErrCodeSolverTimeout,
		Message:     fmt.Sprintf("Solver stopped before finishing: %v", cause),
		Severity:    SeverityFatal,
		Recoverable: true,
	}
}

// NewSolverInternalError reports a malformed model or a numeric failure inside the solver.
func NewSolverInternalError(format string, args ...any) *Error {
	return &Error{
		Code:     ErrCodeSolverInternal,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityFatal,
	}
}

// NewInvariantViolationError reports a broken result invariant. It is a programming defect.
func NewInvariantViolationError(format string, args ...any) *Error {
	return &Error{
		Code:     ErrCodeInvariantViolation,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityFatal,
	}
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return stderrors.Is(err, ErrInvalidSeverityLevel) ||
		stderrors.Is(err, ErrUnknownResource) ||
		stderrors.Is(err, ErrInvalidConstraint)
}

// CodeOf extracts the error code, or "" when err is not an *Error.
func CodeOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}
