package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package for a rejected request
// wraps exactly one of them; anything else is a storage failure.
var (
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
)

var (
	// ErrUnauthenticated is returned when a mutation arrives without an actor.
	ErrUnauthenticated = fmt.Errorf("%w: authentication required", ErrAuthorization)
	// ErrAlreadyVoted is returned when a vote exists and the caller did not remove it first.
	ErrAlreadyVoted = fmt.Errorf("%w: already voted on this post", ErrConflict)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
