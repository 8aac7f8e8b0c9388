package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks a write that lost a race with a concurrent writer.
	ErrConflict = errors.New("conflict")
	// ErrGenerationFailed marks a failed or timed out text generation call.
	// The turn that triggered it has not been persisted.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrUnauthorized marks a request whose signature or credentials failed
	// verification.
	ErrUnauthorized = errors.New("unauthorized")
)
