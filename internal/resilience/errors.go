package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// UpstreamError describes a failed call to an external API (Airtable, Google).
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the call may succeed.
func (e *UpstreamError) Transient() bool {
	if e.StatusCode != 0 {
		return IsTransientHTTPStatus(e.StatusCode)
	}
	return IsTransient(e.Err)
}

// NewStatusError builds an UpstreamError from a non-2xx HTTP response.
func NewStatusError(service string, statusCode int, body string) *UpstreamError {
	if len(body) > 512 {
		body = body[:512]
	}
	return &UpstreamError{Service: service, StatusCode: statusCode, Body: body}
}

// NewTransientError marks err as retryable regardless of its shape. Used for
// API-level throttling signals such as Google's OVER_QUERY_LIMIT status that
// arrive with HTTP 200.
func NewTransientError(service string, err error) *UpstreamError {
	return &UpstreamError{Service: service, StatusCode: http.StatusTooManyRequests, Err: err}
}

// IsTransient returns true if err (or any error in its chain) is safe to retry:
// a transient UpstreamError, a network timeout, or a dropped connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ue *UpstreamError
	if errors.As(err, &ue) && (ue.StatusCode != 0 || ue.Err == nil) {
		return IsTransientHTTPStatus(ue.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"tls handshake timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true for throttling and gateway statuses.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// StatusCode extracts the upstream HTTP status from err, or 0.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
