package twitter

import (
	"fmt"
	"net/http"
)

// ValidationError reports malformed search input. It is raised before any
// request is sent.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// TransportError reports a failed page fetch: the request could not be sent,
// the API answered with an error status, or the body could not be decoded.
type TransportError struct {
	Page       int
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching page %d: status %d: %v", e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching page %d: %v", e.Page, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// MissingCredentialError reports that neither OAuth 1.0a credentials nor a
// bearer token were configured
type MissingCredentialError struct {
	Missing []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing twitter credentials: %v (either OAuth 1.0a credentials or a bearer token must be provided)", e.Missing)
}

// APIError represents an error payload returned by the Twitter API
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twitter api error: code=%d message=%s", e.Code, e.Message)
	}
	return fmt.Sprintf("twitter api error: status=%d %s", e.StatusCode, e.Message)
}
