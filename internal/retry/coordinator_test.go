package retry

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/testutil"
)

// scripted returns an Attempt that replays statuses in order.
func scripted(statuses ...int) (Attempt, *int) {
	calls := 0
	return func(context.Context, int) (int, error) {
		s := statuses[calls]
		calls++
		return s, nil
	}, &calls
}

func TestRunSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	fn, calls := scripted(429, 429, 200)
	c := &Coordinator{MaxAttempts: 3, Backoff: Fixed(0)}

	res := c.Run(t.Context(), fn)

	assert.Equal(t, Success, res.Outcome)
	assert.True(t, res.OK())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, *calls)
	assert.NoError(t, res.Err)
}

func TestRunStopsAtMaxAttempts(t *testing.T) {
	t.Parallel()

	fn, calls := scripted(429, 429, 429, 200)
	c := &Coordinator{MaxAttempts: 3, Backoff: Fixed(0)}

	res := c.Run(t.Context(), fn)

	assert.False(t, res.OK())
	assert.Equal(t, Retryable, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, *calls, "no fourth attempt")
	assert.ErrorIs(t, res.Err, ErrTransient)
	assert.Equal(t, 429, res.Status)
}

func TestRunFatalStopsImmediately(t *testing.T) {
	t.Parallel()

	fn, calls := scripted(400, 200)
	c := &Coordinator{MaxAttempts: 5, Backoff: Fixed(0)}

	res := c.Run(t.Context(), fn)

	assert.Equal(t, Fatal, res.Outcome)
	assert.Equal(t, 1, *calls)
	assert.ErrorIs(t, res.Err, ErrFatalClient)
}

func TestRunWaitsBackoffOnClock(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	var waits []time.Duration
	c := &Coordinator{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Second, 10*time.Second),
		Clock:       clock,
		OnRetry: func(_ int, wait time.Duration, _ error) {
			waits = append(waits, wait)
		},
	}
	fn, _ := scripted(503, 502, 204)

	done := make(chan Result, 1)
	go func() { done <- c.Run(t.Context(), fn) }()

	ctx := t.Context()
	start := clock.Now()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)

	res := testutil.Receive(t, done, testutil.DefaultTestTimeout)
	assert.True(t, res.OK())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
	assert.Equal(t, 3*time.Second, clock.Since(start))
}

func TestRunCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := &Coordinator{MaxAttempts: 5, Backoff: Fixed(time.Minute), Clock: clock}
	ctx, cancel := context.WithCancel(t.Context())

	attempts := 0
	done := make(chan Result, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, int) (int, error) {
			attempts++
			return 500, nil
		})
	}()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	cancel()

	res := testutil.Receive(t, done, testutil.DefaultTestTimeout)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRunTransportErrors(t *testing.T) {
	t.Parallel()

	c := &Coordinator{MaxAttempts: 2}
	calls := 0
	res := c.Run(t.Context(), func(context.Context, int) (int, error) {
		calls++
		if calls == 1 {
			return 0, connErrnos[0]
		}
		return 0, nil
	})
	assert.True(t, res.OK())
	assert.Equal(t, 2, calls)

	res = c.Run(t.Context(), func(context.Context, int) (int, error) {
		return 0, errors.NewStd("bad payload")
	})
	assert.Equal(t, Fatal, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
}

func TestRunKeepsCategorizedFatalErrors(t *testing.T) {
	t.Parallel()

	attachErr := errors.Newf("missing").Category(errors.CategoryAttachmentMissing).Build()
	res := (&Coordinator{MaxAttempts: 3}).Run(t.Context(), func(context.Context, int) (int, error) {
		return 0, attachErr
	})
	assert.Same(t, attachErr, res.Err)
}

func TestRunWrapsFatalNetworkErrors(t *testing.T) {
	t.Parallel()

	netErr := errors.New(errors.NewStd("x509: unknown authority")).
		Component("adapter").
		Category(errors.CategoryNetwork).
		Build()
	res := (&Coordinator{MaxAttempts: 3}).Run(t.Context(), func(context.Context, int) (int, error) {
		return 0, netErr
	})
	assert.Equal(t, Fatal, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, ErrFatalClient)
	assert.ErrorIs(t, res.Err, netErr)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		err    error
		want   Outcome
	}{
		{"ok", 200, nil, Success},
		{"no content", 204, nil, Success},
		{"no status no error", 0, nil, Success},
		{"too many requests", 429, nil, Retryable},
		{"server error", 500, nil, Retryable},
		{"bad gateway with detail", 502, errors.NewStd("upstream"), Retryable},
		{"bad request", 400, nil, Fatal},
		{"not found", 404, nil, Fatal},
		{"redirect", 302, nil, Fatal},
		{"connection reset", 0, connErrnos[0], Retryable},
		{"broken pipe", 0, connErrnos[3], Retryable},
		{"connection refused", 0, &net.OpError{Op: "dial", Err: connErrnos[1]}, Retryable},
		{"unexpected eof", 0, io.ErrUnexpectedEOF, Retryable},
		{"deadline", 0, context.DeadlineExceeded, Retryable},
		{"cancelled", 0, context.Canceled, Fatal},
		{"marked transient", 0, Transient(errors.NewStd("broker busy")), Retryable},
		{"marked permanent", 0, Permanent(connErrnos[0]), Fatal},
		{"plain error", 0, errors.NewStd("boom"), Fatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.status, tt.err))
		})
	}
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	b := Exponential(100*time.Millisecond, time.Second)
	assert.Equal(t, 100*time.Millisecond, b(1))
	assert.Equal(t, 200*time.Millisecond, b(2))
	assert.Equal(t, 400*time.Millisecond, b(3))
	assert.Equal(t, time.Second, b(5))
	assert.Equal(t, time.Second, b(9))

	assert.Equal(t, 3*time.Second, Fixed(3*time.Second)(7))
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "retryable", Retryable.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
