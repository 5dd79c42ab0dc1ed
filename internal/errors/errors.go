package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth client
var (
	// Storage errors
	ErrStorage         = errors.New("secure storage failure")
	ErrEmptyCredential = errors.New("credential is empty")

	// Transport errors
	ErrTransport = errors.New("transport failure")

	// Protocol errors
	ErrMissingAccessToken = errors.New("response missing access_token")
	ErrEmptyProfile       = errors.New("profile response empty")

	// Session errors
	ErrStaleOperation    = errors.New("operation superseded by a newer session change")
	ErrCredentialExpired = errors.New("credential expired")
	ErrClosed            = errors.New("subscription closed")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
