// Package service implements the scheduling use cases: slot discovery,
// enrolment, reservation booking and cancellation, examination events
// and reservation relocation.  Every state change for a user runs under
// that user's lease so that concurrent requests observe and mutate a
// consistent enrolment state.
package service

import (
	"errors"
	"fmt"

	"github.com/cscfi/exam-reservation/internal/repository"
)

// Error values returned by the services.  Callers test for them with
// errors.Is; the wrapped message carries the detail.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrRemoteFailure      = errors.New("remote failure")
	ErrInvariantViolation = errors.New("internal invariant violation")
	ErrInvalidInput       = errors.New("invalid request")
)

// Stable error codes exposed to API clients.
const (
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeForbidden          = "forbidden"
	CodeRemoteFailure      = "remote_failure"
	CodeInvariantViolation = "internal_invariant_violation"
	CodeInvalidInput       = "invalid_request"
	CodeInternal           = "internal"
)

// Code maps an error returned by this package to its stable code.
// Unknown errors map to CodeInternal.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrRemoteFailure):
		return CodeRemoteFailure
	case errors.Is(err, ErrInvariantViolation):
		return CodeInvariantViolation
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

func notFound(what string) error { return fmt.Errorf("%w: %s", ErrNotFound, what) }
func conflict(why string) error { return fmt.Errorf("%w: %s", ErrConflict, why) }
func forbidden(why string) error { return fmt.Errorf("%w: %s", ErrForbidden, why) }
func invalidInput(why string) error { return fmt.Errorf("%w: %s", ErrInvalidInput, why) }
func remoteFailure(err error) error { return fmt.Errorf("%w: %v", ErrRemoteFailure, err) }
func invariant(why string) error { return fmt.Errorf("%w: %s", ErrInvariantViolation, why) }

// storeErr translates repository sentinels into service errors.  what
// names the missing entity for not-found errors.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repository.ErrForbidden):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	default:
		return err
	}
}
