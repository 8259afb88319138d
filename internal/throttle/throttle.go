// Package throttle spaces outbound requests of a single adapter instance and
// tracks server-reported rate-limit state.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Controller enforces a minimum interval between successive sends of one
// adapter instance. A zero interval disables throttling.
//
// Thread-safe: concurrent callers each reserve their own slot, so no two
// sends pass the gate closer together than the interval.
type Controller struct {
	interval time.Duration
	clock    clockwork.Clock

	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSend time.Time
	reserved time.Time // latest slot handed out
}

// NewController creates a controller. A nil clock uses the real clock.
func NewController(interval time.Duration, clock clockwork.Clock) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Controller{interval: interval, clock: clock}
	if interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return c
}

// Interval returns the configured minimum spacing.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// LastSend returns the instant the gate was last passed.
func (c *Controller) LastSend() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSend
}

// Wait blocks until the interval since the previous send has elapsed, then
// records the new send instant. It returns the time spent waiting.
func (c *Controller) Wait(ctx context.Context) (time.Duration, error) {
	if c.limiter == nil {
		c.mu.Lock()
		c.lastSend = c.clock.Now()
		c.mu.Unlock()
		return 0, nil
	}

	c.mu.Lock()
	now := c.clock.Now()
	r := c.limiter.ReserveN(now, 1)
	slot := now.Add(r.DelayFrom(now))
	// The limiter's float rate can land a slot a few ns early.
	if !c.reserved.IsZero() {
		if earliest := c.reserved.Add(c.interval); slot.Before(earliest) {
			slot = earliest
		}
	}
	prev := c.reserved
	c.reserved = slot
	delay := slot.Sub(now)
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			r.CancelAt(c.clock.Now())
			if c.reserved.Equal(slot) {
				c.reserved = prev
			}
			c.mu.Unlock()
			return 0, ctx.Err()
		case <-c.clock.After(delay):
		}
	}

	c.mu.Lock()
	if slot.After(c.lastSend) {
		c.lastSend = slot
	}
	c.mu.Unlock()

	return delay, nil
}
