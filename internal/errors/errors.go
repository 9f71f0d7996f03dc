package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the login packages
var (
	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrMissingField   = errors.New("required field missing")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Homeserver errors
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrUnsupported      = errors.New("unsupported operation")
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

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}
