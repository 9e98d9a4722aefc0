package session

import "errors"

var (
	// ErrNotAuthenticated is returned by operations that need a token.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrAlreadyAuthenticated is returned by Login while an identity is held.
	// Switching accounts requires an explicit Logout.
	ErrAlreadyAuthenticated = errors.New("session: already authenticated")
	// ErrValidation wraps client-side input validation failures.
	ErrValidation = errors.New("session: validation failed")
)

// ValidationError names the offending field. It unwraps to ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }
