package throttle

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimitTracker remembers the quota a server reported on its last
// response and delays the next send once the quota is exhausted.
type RateLimitTracker struct {
	clock clockwork.Clock

	mu        sync.Mutex
	remaining int
	reset     time.Time
}

// NewRateLimitTracker creates a tracker that starts with quota available.
func NewRateLimitTracker(clock clockwork.Clock) *RateLimitTracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimitTracker{clock: clock, remaining: 1}
}

// Observe records the remaining quota and the epoch second it resets at.
func (t *RateLimitTracker) Observe(remaining int, resetEpoch int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = remaining
	t.reset = time.Unix(resetEpoch, 0)
}

// ObserveHeaders updates state from response headers. Each value is taken
// only when present and parsable, otherwise the previous one is kept. It
// reports whether anything changed.
func (t *RateLimitTracker) ObserveHeaders(h http.Header, remainingKey, resetKey string) bool {
	if h == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	updated := false
	if remainingKey != "" {
		if v := strings.TrimSpace(h.Get(remainingKey)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				t.remaining = n
				updated = true
			}
		}
	}
	if resetKey != "" {
		if v := strings.TrimSpace(h.Get(resetKey)); v != "" {
			// Some services report fractional epoch seconds.
			if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
				sec := int64(f)
				nsec := int64((f - float64(sec)) * float64(time.Second))
				t.reset = time.Unix(sec, nsec)
				updated = true
			}
		}
	}
	return updated
}

// State returns the current remaining quota and reset instant.
func (t *RateLimitTracker) State() (remaining int, reset time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.reset
}

// Delay returns how long to hold off before the next send: the time until
// reset when the quota is exhausted, zero otherwise.
func (t *RateLimitTracker) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.remaining > 0 {
		return 0
	}
	return max(0, t.reset.Sub(t.clock.Now()))
}

// Wait sleeps for Delay on the tracker's clock and returns the time waited.
func (t *RateLimitTracker) Wait(ctx context.Context) (time.Duration, error) {
	d := t.Delay()
	if d <= 0 {
		return 0, nil
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.clock.After(d):
		return d, nil
	}
}
