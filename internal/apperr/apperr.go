// Package apperr declares the error vocabulary shared by the auth, tenancy,
// authorization and data-access layers. Errors carry a short detail attached
// with fmt.Errorf("%w: ...") and are classified at the transport boundary.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredential wraps ErrUnauthenticated so callers cannot tell the two apart.
	ErrInvalidCredential  = fmt.Errorf("%w: invalid credential", ErrUnauthenticated)
	ErrAccessDenied       = errors.New("access denied")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInfrastructure     = errors.New("infrastructure failure")
)

// ApprovalRequiredError is returned when an action exceeds the caller's
// threshold and a pending approval request was recorded instead.
type ApprovalRequiredError struct {
	RequestID string
	Action    string
	Threshold int
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("approval required for %s (request %s)", e.Action, e.RequestID)
}

// Denied returns an ErrAccessDenied carrying detail.
func Denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, fmt.Sprintf(format, args...))
}

// Invalid returns an ErrInvalidRequest carrying detail.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing kind of entity.
func NotFound(kind string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, kind)
}

// Precondition returns an ErrPreconditionFailed carrying detail.
func Precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPreconditionFailed, fmt.Sprintf(format, args...))
}

// Infra wraps a persistence or transport error. Vocabulary errors pass through
// untouched so store implementations can return them directly.
func Infra(err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return &infraError{err: err}
}

type infraError struct{ err error }

func (e *infraError) Error() string { return ErrInfrastructure.Error() + ": " + e.err.Error() }

func (e *infraError) Unwrap() []error { return []error{ErrInfrastructure, e.err} }

// IsKnown reports whether err already belongs to the vocabulary.
func IsKnown(err error) bool {
	var approval *ApprovalRequiredError
	switch {
	case errors.As(err, &approval),
		errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrPreconditionFailed),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInfrastructure):
		return true
	}
	return false
}

// Retryable reports whether err is an infrastructure failure caused by an
// expired deadline or cancellation rather than a policy decision.
func Retryable(err error) bool {
	return errors.Is(err, ErrInfrastructure) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}
