package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
	Op         string // Operation that failed (e.g., "JobStatus")
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err indicates a 404 response.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err indicates a 409 response, e.g. retrying an active job.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}
