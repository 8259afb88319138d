package adapter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/pushcore/internal/attachment"
	"github.com/tphakala/pushcore/internal/observability/metrics"
	"github.com/tphakala/pushcore/internal/retry"
)

// Defaults applied by NewBase.
const (
	DefaultMaxAttempts    = 3
	DefaultBackoffInitial = time.Second
	DefaultBackoffMax     = 30 * time.Second
)

// Options are the host-side settings every adapter instance receives from
// the dispatcher.
type Options struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Metrics *metrics.DispatchMetrics

	// MaxAttempts bounds attempts per request, retries included.
	MaxAttempts int
	// Backoff overrides the exponential default.
	Backoff retry.BackoffFunc

	// Throttle, when set, replaces the adapter's declared interval. Zero
	// disables throttling.
	Throttle *time.Duration

	// Transport replaces the HTTP transport. Tests plug mocks in here.
	Transport http.RoundTripper

	// Attachment options applied to attachments adapters create themselves.
	AttachmentOptions []attachment.Option
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Backoff == nil {
		o.Backoff = retry.Exponential(DefaultBackoffInitial, DefaultBackoffMax)
	}
	return o
}

// ThrottleOf returns a pointer to d for Options.Throttle.
func ThrottleOf(d time.Duration) *time.Duration {
	return &d
}
