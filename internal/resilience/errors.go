package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// TransientError marks a fetch failure caused by the upstream being
// temporarily unavailable (throttling, 5xx, network timeouts).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient. statusCode is 0 for
// network-level failures.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// BlockedError reports that the upstream served an anti-bot page instead
// of content.
type BlockedError struct {
	URL    string
	Reason string
}

func (e *BlockedError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("resilience: blocked (%s)", e.Reason)
	}
	return fmt.Sprintf("resilience: blocked (%s) at %s", e.Reason, e.URL)
}

// IsBlocked reports whether err or anything it wraps is a BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
}

// IsTransient reports whether err indicates a temporary upstream problem:
// an explicit TransientError, a network timeout, a refused or reset
// connection, or one of the well-known transport error messages.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
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
	for _, p := range transientMessages {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status means the upstream
// is overloaded or throttling.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// TripsBreaker is the default breaker predicate for page fetches: only
// transient and blocked failures count. A 404 or a parse error says nothing
// about upstream health.
func TripsBreaker(err error) bool {
	return IsTransient(err) || IsBlocked(err)
}
