// Package retry drives bounded re-sends of a single outbound request.
//
// Each attempt moves Pending -> Sent -> {Success, Retryable, Fatal}. HTTP 429,
// 5xx and connection-level failures are Retryable; 2xx is Success; anything
// else is Fatal.
package retry

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/tphakala/pushcore/internal/errors"
)

// Outcome is the state of one send attempt.
type Outcome int

const (
	Pending Outcome = iota
	Sent
	Success
	Retryable
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Sent:
		return "sent"
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	// ErrTransient matches failures that were retried until attempts ran out.
	ErrTransient = errors.Newf("transient server error").
			Component("retry").
			Category(errors.CategoryTransient).
			Build()

	// ErrFatalClient matches failures that are not worth retrying.
	ErrFatalClient = errors.Newf("fatal client error").
			Component("retry").
			Category(errors.CategoryFatalClient).
			Build()
)

// Transient marks err as retryable. Transports without HTTP status codes use
// it to report connection problems.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(err).
		Component("retry").
		Category(errors.CategoryTransient).
		Build()
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(err).
		Component("retry").
		Category(errors.CategoryFatalClient).
		Build()
}

// Classify maps the result of one attempt to an outcome. A non-zero status
// decides on its own; err then only carries detail. With no status, err is
// inspected; a nil error means success.
func Classify(status int, err error) Outcome {
	if status != 0 {
		switch {
		case status >= 200 && status < 300:
			return Success
		case status == http.StatusTooManyRequests, status >= 500:
			return Retryable
		default:
			return Fatal
		}
	}

	if err == nil {
		return Success
	}
	if IsRetryableError(err) {
		return Retryable
	}
	return Fatal
}

// IsRetryableError reports whether err is a connection-level failure or was
// marked with Transient.
func IsRetryableError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.IsCategory(err, errors.CategoryTransient):
		return true
	case errors.IsCategory(err, errors.CategoryFatalClient):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	for _, errno := range connErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
