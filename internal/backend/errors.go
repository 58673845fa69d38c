package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/merchant-intake/internal/resilience"
)

// HTTPStatusError is a non-2xx response from the backend.
type HTTPStatusError struct {
	Action     string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("backend %s: http status %d", e.Action, e.StatusCode)
}

// ActionError is a well-formed envelope with status "error".
type ActionError struct {
	Action  string
	Message string
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s: action failed", e.Action)
	}
	return fmt.Sprintf("backend %s: %s", e.Action, e.Message)
}

// Quota reports whether the backend refused the action because its script
// quota or rate limit ran out.
func (e *ActionError) Quota() bool {
	msg := strings.ToLower(e.Message)
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var quotaMarkers = []string{"quota", "too many times", "rate limit", "exceeded maximum execution"}

// quotaBackoff is waited before retrying a quota refusal that carries no hint.
const quotaBackoff = 2 * time.Second

// ErrNotConfigured is returned by a nil or URL-less client.
var ErrNotConfigured = errors.New("backend not configured")

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func retryableStatus(code int) bool {
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

// rejectedBeforeProcessing is the subset of statuses that guarantee the
// action had no effect, so even non-idempotent actions may repeat.
func rejectedBeforeProcessing(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// Classify is the error classifier for idempotent actions. Throttling (429 or
// a quota envelope) is retried after the server's hint and never trips the
// breaker, since the backend is healthy and only asking callers to slow down.
func Classify(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	var actionErr *ActionError
	var netErr net.Error
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case errors.As(err, &actionErr):
		if actionErr.Quota() {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: false, RetryAfter: quotaBackoff}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: false, RetryAfter: statusErr.RetryAfter}
		}
		retry := retryableStatus(statusErr.StatusCode)
		return resilience.ErrorClassification{Retryable: retry, RecordFailure: retry, RetryAfter: statusErr.RetryAfter}
	case errors.As(err, &netErr):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

// ClassifyNonIdempotent only retries responses that prove the backend did
// nothing. A quota envelope is not such proof: the script may have run part
// of the action before the limit hit.
func ClassifyNonIdempotent(err error) resilience.ErrorClassification {
	class := Classify(err)
	var statusErr *HTTPStatusError
	class.Retryable = errors.As(err, &statusErr) && rejectedBeforeProcessing(statusErr.StatusCode)
	return class
}
