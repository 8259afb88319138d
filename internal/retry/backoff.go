package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffFunc returns the pause after the given failed attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Fixed waits the same duration after every failure.
func Fixed(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Exponential doubles the pause after each failure, starting at initial and
// capped at maxInterval. No jitter is applied so schedules are reproducible.
func Exponential(initial, maxInterval time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		b := &backoff.ExponentialBackOff{
			InitialInterval:     initial,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         maxInterval,
			MaxElapsedTime:      0,
			Stop:                backoff.Stop,
			Clock:               backoff.SystemClock,
		}
		b.Reset()
		d := b.NextBackOff()
		for i := 1; i < attempt; i++ {
			d = b.NextBackOff()
		}
		return d
	}
}
