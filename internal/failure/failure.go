// Package failure defines the error taxonomy shared by all harness components.
// Callers branch on the error kind instead of parsing message text, so each
// stage can decide between fatal and recoverable without knowing which
// external command produced the failure.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a harness failure.
type Kind int

const (
	// ConfigMissing indicates a required configuration value was absent or invalid.
	ConfigMissing Kind = iota
	// CommandFailed indicates an external command (engine, git, test runner) exited non-zero.
	CommandFailed
	// ReadinessTimeout indicates the health poll exhausted its attempt budget.
	ReadinessTimeout
	// EmptyResult indicates a run that should have produced artifacts produced none.
	EmptyResult
	// DeliveryFailed indicates a webhook delivery did not complete.
	DeliveryFailed
)

// String returns the stable name of the kind.
func (k Kind) String() string {
	switch k {
	case ConfigMissing:
		return "config-missing"
	case CommandFailed:
		return "command-failed"
	case ReadinessTimeout:
		return "readiness-timeout"
	case EmptyResult:
		return "empty-result"
	case DeliveryFailed:
		return "delivery-failed"
	default:
		return "unknown"
	}
}

// Error is a classified harness error. Op names the operation that failed
// (e.g. "container.build", "notify.send").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. Returns nil when err is nil.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
