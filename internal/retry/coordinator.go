package retry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/logging"
)

// DefaultMaxAttempts is used when Coordinator.MaxAttempts is not positive.
const DefaultMaxAttempts = 1

// Attempt performs one send. It returns the HTTP status, or 0 for
// transports without one, and any error.
type Attempt func(ctx context.Context, attempt int) (status int, err error)

// Result summarizes a Run.
type Result struct {
	Outcome  Outcome
	Attempts int
	Status   int
	Err      error
}

// OK reports whether the run ended in Success.
func (r Result) OK() bool {
	return r.Outcome == Success
}

// Coordinator re-sends Retryable attempts with backoff. The zero value makes
// a single attempt.
type Coordinator struct {
	// MaxAttempts bounds the total number of attempts, the first included.
	MaxAttempts int
	// Backoff returns the pause after a failed attempt; nil means no pause.
	Backoff BackoffFunc
	Clock   clockwork.Clock
	Logger  *slog.Logger
	// OnRetry is called before each pause.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Run calls fn until it succeeds, fails fatally, or MaxAttempts is reached.
// A cancelled ctx stops further attempts.
func (c *Coordinator) Run(ctx context.Context, fn Attempt) Result {
	maxAttempts := c.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	clock := c.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := logging.OrDiscard(c.Logger)

	var res Result
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Outcome = Fatal
			res.Err = err
			return res
		}

		status, err := fn(ctx, attempt)
		res = Result{Outcome: Classify(status, err), Attempts: attempt, Status: status, Err: err}

		switch res.Outcome {
		case Success:
			res.Err = nil
			return res
		case Fatal:
			res.Err = fatalError(status, err)
			return res
		}

		if attempt >= maxAttempts {
			res.Err = exhaustedError(attempt, status, err)
			log.Warn("giving up after transient failures",
				"attempts", attempt,
				"status", status,
				"error", err)
			return res
		}

		var wait time.Duration
		if c.Backoff != nil {
			wait = c.Backoff(attempt)
		}
		if c.OnRetry != nil {
			c.OnRetry(attempt, wait, err)
		}
		log.Debug("retrying after transient failure",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"status", status,
			"wait", wait,
			"error", err)

		if wait > 0 {
			select {
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			case <-clock.After(wait):
			}
		}
	}
}

func fatalError(status int, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if err == nil {
		return errors.Newf("server rejected request with status %d", status).
			Component("retry").
			Category(errors.CategoryFatalClient).
			Context("status", status).
			Build()
	}
	// Without a status the error came from the caller's side; keep its category.
	// Transport failures carry CategoryNetwork and are still reported as fatal.
	var ee *errors.EnhancedError
	if status == 0 && errors.As(err, &ee) && ee.Category != errors.CategoryGeneric && ee.Category != errors.CategoryNetwork {
		return err
	}
	return errors.Newf("request failed: %w", err).
		Component("retry").
		Category(errors.CategoryFatalClient).
		Context("status", status).
		Build()
}

func exhaustedError(attempts, status int, err error) error {
	if err == nil {
		err = errors.NewStd(http.StatusText(status))
	}
	return errors.Newf("giving up after %d attempts: %w", attempts, err).
		Component("retry").
		Category(errors.CategoryTransient).
		Context("attempts", attempts).
		Context("status", status).
		Build()
}
