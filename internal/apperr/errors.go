// Package apperr defines the error taxonomy shared by all services.
// Services wrap these sentinels with context via fmt.Errorf("...: %w", ...);
// handlers translate them to HTTP status codes and never retry.
package apperr

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation, e.g. a second invoice for a job.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState marks a transition not allowed from the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrAuthorization marks a failed role or ownership check.
	ErrAuthorization = errors.New("not authorized")
	// ErrAccountDeactivated marks any access by an inactive profile.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrUnauthenticated marks a request with no authenticated profile.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPartialFailure marks a multi-step write that was partially applied
	// and could not be cleaned up.
	ErrPartialFailure = errors.New("partial failure")
)
