package ai

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes categorizer failure modes so callers can surface
// the right message without string matching.
type ErrorKind string

const (
	// ErrNoAPIKey indicates no provider credential is configured. Non-retryable.
	ErrNoAPIKey ErrorKind = "NO_API_KEY"
	// ErrInsufficientCredits indicates the provider rejected the call for
	// lack of balance, as opposed to a generic failure.
	ErrInsufficientCredits ErrorKind = "INSUFFICIENT_CREDITS"
	// ErrRateLimited indicates a 429; retried internally and only surfaced
	// after retry exhaustion.
	ErrRateLimited ErrorKind = "RATE_LIMITED"
	// ErrAPI covers all other provider errors with the message preserved.
	ErrAPI ErrorKind = "API_ERROR"
)

// Error is a classified categorizer failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err, or ErrAPI for unclassified errors.
func KindOf(err error) ErrorKind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return ErrAPI
}
