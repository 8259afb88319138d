// Package adapter defines the contract between the dispatch engine and
// backend adapters, and the send pipeline adapters share: format conversion,
// overflow handling, attachment preparation, batching, throttling, rate
// limiting and retries.
package adapter

import (
	"context"
	"time"
)

// UnlimitedTitle disables title truncation.
const UnlimitedTitle = -1

// Capabilities are the limits and features an adapter declares.
type Capabilities struct {
	// MaxBodyLength caps the body in runes; zero or less is unlimited.
	MaxBodyLength int
	// MaxTitleLength caps the title in runes. Zero means the service has no
	// title and it is folded into the body; UnlimitedTitle disables the cap.
	MaxTitleLength int

	SupportsAttachments bool
	// SupportsBatch is set when one request may address several targets.
	SupportsBatch bool
	// MaxBatchSize bounds targets per request; zero or less is unbounded.
	MaxBatchSize int

	// ThrottleInterval is the default minimum spacing between requests.
	ThrottleInterval time.Duration

	// RequiresHost makes URLs without a host a parse error.
	RequiresHost bool

	// NativeFormat is the body format the service renders.
	NativeFormat Format

	// Response headers carrying rate-limit state, if the service sends them.
	RateLimitRemainingHeader string
	RateLimitResetHeader     string
}

// BatchSize implements batch.Limits.
func (c Capabilities) BatchSize() int { return c.MaxBatchSize }

// Batches implements batch.Limits.
func (c Capabilities) Batches() bool { return c.SupportsBatch }

// Notifier is a configured adapter instance bound to one destination.
type Notifier interface {
	// Scheme returns the scheme the instance was built from.
	Scheme() string
	// Notify delivers msg. Expected failures are returned as categorized
	// errors; nil means every request succeeded.
	Notify(ctx context.Context, msg *Message) error
	// URL renders the instance configuration back into a notification URL.
	// With redact set, secrets are masked.
	URL(redact bool) string
	// Tags returns the tags from the tag= option.
	Tags() []string
	Capabilities() Capabilities
}
