package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCircuitOpen is returned without any network call while the client's
// circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), body)
}

// Permanent reports whether the status is one that must never be retried
// (bad request, auth, not found).
func (e *HTTPError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// IsPermanent reports whether err (or anything it wraps) is a permanent
// remote error or an open circuit.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Permanent()
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
