package domain

import (
	"errors"
	"fmt"
)

// Edit errors. Every one of them leaves the graph untouched.
var (
	// ErrInvalidOperation is returned when an edit would break a structural rule
	// that can be checked at the moment of the call.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound is returned when an edit references a missing node.
	ErrNotFound = errors.New("node not found")

	// ErrProtected is returned when deleting the start node.
	ErrProtected = errors.New("node is protected")
)

// Persistence errors.
var (
	// ErrValidationFailed is wrapped by *ValidationFailedError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrFlowNotFound is returned when a flow id cannot be found in the store.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrVersionNotFound is returned when a version id cannot be found for a flow.
	ErrVersionNotFound = errors.New("flow version not found")

	// ErrVersionConflict is returned when a version number is already taken.
	ErrVersionConflict = errors.New("flow version already exists")

	// ErrNoActiveVersion is returned when a flow has never been activated.
	ErrNoActiveVersion = errors.New("flow has no active version")

	// ErrForbidden is returned when the authorizer denies an action.
	ErrForbidden = errors.New("action not allowed")
)

// ValidationFailedError carries every violation found at save time,
// so the editor can highlight all offending nodes at once.
type ValidationFailedError struct {
	Violations []Violation
}

func (e *ValidationFailedError) Error() string {
	errs := 0
	for _, v := range e.Violations {
		if v.Severity == SeverityError {
			errs++
		}
	}
	if errs == 1 {
		for _, v := range e.Violations {
			if v.Severity == SeverityError {
				return fmt.Sprintf("%s: %s", ErrValidationFailed, v.Message)
			}
		}
	}
	return fmt.Sprintf("%s: %d errors", ErrValidationFailed, errs)
}

func (e *ValidationFailedError) Unwrap() error { return ErrValidationFailed }
