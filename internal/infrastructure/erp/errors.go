package erp

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstreamUnavailable wraps transport failures (DNS, refused connections, timeouts).
	ErrUpstreamUnavailable = errors.New("erp: upstream unavailable")
	// ErrMalformedBatch is returned when no part of a batch response can be read.
	ErrMalformedBatch = errors.New("erp: malformed batch response")
	// ErrMalformedResponse is returned when a body is neither JSON nor Atom XML.
	ErrMalformedResponse = errors.New("erp: malformed response body")
	// ErrResponseTooLarge is returned when a body exceeds the configured limit.
	ErrResponseTooLarge = errors.New("erp: response exceeds size limit")
)

// StatusError is a non-2xx answer from the ERP.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("erp: %s %s returned %d", e.Method, e.Path, e.StatusCode)
}

// IsRetryable reports whether a failed call may succeed when repeated:
// transport failures, 5xx and 429. Other 4xx answers are definitive.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
