package actions

import (
	"errors"
	"fmt"

	"github.com/fieldline/slaflow/pkg/models"
)

// ErrMissingParameter indicates an action was dispatched without one of its
// required parameters.
var ErrMissingParameter = errors.New("missing required action parameter")

// ErrCollaboratorNotConfigured indicates the collaborator an action needs was
// not wired into the executor.
var ErrCollaboratorNotConfigured = errors.New("collaborator not configured")

// Error is a failed action. Transient marks infrastructure failures (network,
// timeout, temporary unavailability, rate limiting) that the retry policy may
// reschedule; everything else is terminal.
type Error struct {
	ActionID   string
	ActionType models.ActionType
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}

	return fmt.Sprintf("action %s (%s) failed (%s): %v", e.ActionID, e.ActionType, kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps a terminal action failure.
func NewError(action *models.Action, err error) *Error {
	return &Error{ActionID: action.ID, ActionType: action.Type, Err: err}
}

// NewTransientError wraps a retryable infrastructure failure.
func NewTransientError(action *models.Action, err error) *Error {
	return &Error{ActionID: action.ID, ActionType: action.Type, Transient: true, Err: err}
}

// Transient marks an error from a collaborator as retryable infrastructure
// trouble before it is wrapped by the executor.
func Transient(err error) error {
	return &transientError{err: err}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// IsTransient reports whether the error chain carries a transient marker.
func IsTransient(err error) bool {
	var actionErr *Error
	if errors.As(err, &actionErr) {
		return actionErr.Transient
	}

	var transient *transientError

	return errors.As(err, &transient)
}
