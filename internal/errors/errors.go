package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the identity gateways and stores
var (
	// Session errors
	ErrNotSignedIn     = errors.New("not signed in")
	ErrNoIDToken       = errors.New("no id token in token response")
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingIdentity = errors.New("token does not identify a user")

	// Provider protocol errors
	ErrInvalidResponse  = errors.New("invalid provider response")
	ErrUnexpectedStatus = errors.New("unexpected provider status")

	// Store errors
	ErrNotFound   = errors.New("not found")
	ErrIDRequired = errors.New("id is required")
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
