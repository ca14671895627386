package dispute

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("dispute: not found")
	ErrForbidden  = errors.New("dispute: forbidden")
	ErrValidation = errors.New("dispute: invalid input")
	ErrStaleState = errors.New("dispute: stale state")
	// ErrOpenDispute signals the appointment already has an unresolved dispute.
	ErrOpenDispute = errors.New("dispute: appointment already has an open dispute")
)

// ValidationError rejects malformed input before any write.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("dispute: invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StaleStateError reports a transition whose guard no longer matched the row.
type StaleStateError struct {
	ID       string
	Expected Status
	Actual   Status
	// Expired is set when the status still matched but the response window
	// had closed.
	Expired bool
}

func (e *StaleStateError) Error() string {
	if e.Expired {
		return fmt.Sprintf("dispute: %s: response window closed", e.ID)
	}
	return fmt.Sprintf("dispute: %s: expected status %s, found %s", e.ID, e.Expected, e.Actual)
}

func (e *StaleStateError) Is(target error) bool { return target == ErrStaleState }

// AuthorizationError never says whether the dispute exists.
type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return "dispute: not permitted to " + e.Action
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
