// Package service holds the application operations behind the HTTP API
// and CLI: event and user management, sign-in, and the occurrence snapshot
// that calendar views read from.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation wraps every input rejection; the wrapped message is
	// safe to show to the caller.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden is returned when the caller does not own the record.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when an operation needs a signed-in
	// user and the context carries none.
	ErrUnauthenticated = errors.New("not signed in")
)

// Sign-in and registration failures.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("wrong password")
	ErrEmailInUse    = errors.New("email already in use")
	ErrWeakPassword  = errors.New("password is too weak")
	ErrInvalidEmail  = errors.New("invalid email")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
