package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned before any network call when no
	// usable bearer token is available.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrMalformed wraps responses whose JSON shape could not be decoded.
	// Callers treat it like a transient network failure.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is a non-2xx response from the remote authority.
type StatusError struct {
	Code    int
	Reason  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote authority returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("remote authority returned %d", e.Code)
}

// IsRejection reports whether the error is an authoritative rejection
// (4xx): optimistic state must be rolled back and no automatic retry
// attempted. Everything else is treated as transient.
func IsRejection(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500
	}
	return false
}

// IsNotFound reports whether the error is a 404 from the authority.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == 404
}
