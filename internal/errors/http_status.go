package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"
)

// HTTPStatusError represents a non-2xx response from a catalog or image host.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string // redirect target, if the server sent one
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s (location=%s)", e.StatusCode, e.URL, loc)
}

// NewHTTPStatusError creates a new HTTPStatusError
func NewHTTPStatusError(url string, statusCode int, location string) *HTTPStatusError {
	return &HTTPStatusError{URL: url, StatusCode: statusCode, Location: location}
}

// IsHTTPStatusError checks if err is an HTTPStatusError
func IsHTTPStatusError(err error) bool {
	var statusErr *HTTPStatusError
	return stdErrors.As(err, &statusErr)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an
// HTTPStatusError.
func StatusCode(err error) int {
	var statusErr *HTTPStatusError
	if stdErrors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// BlockedError means a site answered with a bot-challenge page instead of
// search results. Scrapers never try to get past it.
type BlockedError struct {
	URL    string
	Reason string // e.g. "cloudflare-challenge"
}

func (e *BlockedError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + strings.TrimSpace(e.Reason)
}

// IsBlockedError checks if err is a BlockedError
func IsBlockedError(err error) bool {
	var blockedErr *BlockedError
	return stdErrors.As(err, &blockedErr)
}
