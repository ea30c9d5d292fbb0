package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call so callers can pick a recovery path without
// string-matching messages.
type Kind int

const (
	// KindNetwork covers transport failures. Retryable by the user, never
	// retried automatically.
	KindNetwork Kind = iota + 1
	// KindAuth covers 401 responses. The session must be torn down.
	KindAuth
	// KindValidation covers other 4xx responses carrying a server-supplied
	// reason, surfaced verbatim.
	KindValidation
)

// Error is the failure result of any Client call.
type Error struct {
	Kind       Kind
	StatusCode int
	Reason     string
	err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("network error: %s", e.Reason)
	case KindAuth:
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	default:
		return e.Reason
	}
}

func (e *Error) Unwrap() error {
	return e.err
}

func kindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool { return kindOf(err) == KindNetwork }

// IsAuth reports whether err is a 401 rejection.
func IsAuth(err error) bool { return kindOf(err) == KindAuth }

// IsValidation reports whether err is a server-side validation rejection.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }
