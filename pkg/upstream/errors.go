package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// requestTimeout is the fixed budget for every upstream call.
const requestTimeout = 30 * time.Second

var (
	// ErrNotConfigured means the client has no credentials/base URL and
	// was never expected to work in this deployment.
	ErrNotConfigured = errors.New("upstream not configured")

	// ErrUnavailable means the upstream was unreachable or returned a
	// non-2xx status.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrTimeout means the request exceeded the fixed request budget.
	ErrTimeout = errors.New("upstream request timed out")

	// ErrMalformedResponse means the upstream responded with non-JSON or
	// an unexpected shape.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// classifyTransportError maps a transport-level failure onto the error
// taxonomy so callers can branch on errors.Is.
func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
