package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized signals a 401 from any endpoint; the session
	// teardown hook has already fired by the time callers see it.
	ErrUnauthorized = errors.New("client: unauthorized")

	// ErrNotFound signals a 404 for a detail request
	ErrNotFound = errors.New("client: not found")
)

// APIError is a server-rejected request (4xx/5xx) carrying the server's
// message body when one was provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// ServerMessage extracts the server-provided message from err, if any
func ServerMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}
