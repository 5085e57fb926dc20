package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested item or note no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the item API could not be reached.
	ErrUnavailable = errors.New("item api unavailable")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("item api request timed out")
)

// StatusError is returned for non-2xx responses other than 404.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("item api returned status %d", e.Code)
	}
	return fmt.Sprintf("item api returned status %d: %s", e.Code, e.Body)
}
