package remote

import (
	"fmt"
	"net/http"
)

// APIError describes a non-success response from the repository API. The
// status code splits the error taxonomy: 409/422 are retryable write
// conflicts, everything else is fatal for the current attempt.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("repository API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("repository API error: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the error signals a conflicting or unprocessable
// write that may succeed after re-fetching the revision marker.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusUnprocessableEntity
}

// UserMessage translates the status into a human-readable reason suitable for
// a notification.
func (e *APIError) UserMessage() string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "authentication failed: check your access token"
	case http.StatusNotFound:
		return "repository not found: check the configured owner and name"
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return "the file changed while publishing: conflicting update"
	case http.StatusTooManyRequests:
		return "rate limited by the repository API: try again later"
	default:
		return fmt.Sprintf("unexpected repository API response (status %d)", e.StatusCode)
	}
}
