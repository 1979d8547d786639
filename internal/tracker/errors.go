package tracker

import (
	"errors"
	"fmt"
)

// Sentinel errors for the two failure classes callers branch on.
var (
	// ErrNotFound reports that a project or issue does not exist (or the
	// token cannot see it, which GitLab reports identically).
	ErrNotFound = errors.New("tracker: not found")

	// ErrUnauthorized reports a rejected or insufficient token.
	ErrUnauthorized = errors.New("tracker: unauthorized")
)

// APIError is a non-2xx response from the tracker API. It unwraps to
// ErrNotFound or ErrUnauthorized for the matching status codes so callers
// can use errors.Is without inspecting status numbers.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tracker api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("tracker api: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 401, 403:
		return ErrUnauthorized
	case 404:
		return ErrNotFound
	}
	return nil
}
