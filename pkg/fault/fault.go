// Package fault defines the error taxonomy shared across Attaché subsystems.
//
// Every error that crosses a subsystem boundary wraps exactly one of the
// sentinel kinds below, so callers can branch with errors.Is without knowing
// which component produced the failure.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel error kinds.
var (
	// ErrBadInput indicates a request that failed validation before any work.
	ErrBadInput = errors.New("bad input")

	// ErrUnknownTool indicates a tool registry miss.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolFailed indicates a tool handler raised or returned non-success.
	ErrToolFailed = errors.New("tool failed")

	// ErrBackendUnavailable indicates a transport, HTTP, timeout, or parse
	// failure from a model backend adapter.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSafetyRejected indicates the safety gate refused a parameter or
	// command. Never retried.
	ErrSafetyRejected = errors.New("safety rejected")

	// ErrBudgetExceeded indicates the request-level deadline or error-count
	// ceiling was reached.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrFatal indicates corrupt persisted state or missing required
	// configuration.
	ErrFatal = errors.New("fatal")
)

// Kind is the string name of an error kind, used in logs and metrics labels.
type Kind string

const (
	KindNone               Kind = ""
	KindBadInput           Kind = "bad_input"
	KindUnknownTool        Kind = "unknown_tool"
	KindToolFailed         Kind = "tool_failed"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindSafetyRejected     Kind = "safety_rejected"
	KindBudgetExceeded     Kind = "budget_exceeded"
	KindFatal              Kind = "fatal"
	KindUnknown            Kind = "unknown"
)

// KindOf classifies an error by its wrapped sentinel.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrBadInput):
		return KindBadInput
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, ErrToolFailed):
		return KindToolFailed
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	case errors.Is(err, ErrSafetyRejected):
		return KindSafetyRejected
	case errors.Is(err, ErrBudgetExceeded):
		return KindBudgetExceeded
	case errors.Is(err, ErrFatal):
		return KindFatal
	default:
		return KindUnknown
	}
}

// BadInput wraps a formatted message as a bad_input error.
func BadInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadInput, fmt.Sprintf(format, args...))
}

// UnknownTool wraps a formatted message as an unknown_tool error.
func UnknownTool(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnknownTool, fmt.Sprintf(format, args...))
}

// ToolFailed wraps a formatted message as a tool_failed error.
func ToolFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrToolFailed, fmt.Sprintf(format, args...))
}

// BackendUnavailable wraps a formatted message as a backend_unavailable error.
func BackendUnavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBackendUnavailable, fmt.Sprintf(format, args...))
}

// SafetyRejected wraps a formatted message as a safety_rejected error.
func SafetyRejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSafetyRejected, fmt.Sprintf(format, args...))
}

// BudgetExceeded wraps a formatted message as a budget_exceeded error.
func BudgetExceeded(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBudgetExceeded, fmt.Sprintf(format, args...))
}

// Fatal wraps a formatted message as a fatal error.
func Fatal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}
