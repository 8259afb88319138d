// Package dispatch fans a message out to every configured notification URL.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/observability/metrics"
	"github.com/tphakala/pushcore/internal/registry"
	"github.com/tphakala/pushcore/internal/resolver"
)

// Defaults applied by New.
const (
	DefaultConcurrency = 4
	DefaultInstanceTTL = 30 * time.Minute
)

// TagAll matches every instance.
const TagAll = "all"

// Config configures a Dispatcher.
type Config struct {
	// Concurrency bounds how many instances send at once.
	Concurrency int
	// InstanceTTL is how long an unused adapter instance stays cached.
	// Throttle and rate-limit state live as long as the instance.
	InstanceTTL time.Duration
	// Adapter is handed to every adapter factory. Its Logger, Clock and
	// Metrics are used by the dispatcher too.
	Adapter adapter.Options
}

// Dispatcher resolves URLs to adapter instances and delivers messages to
// them concurrently. Instances are cached by URL so that per-instance
// throttle and rate-limit state persists between calls.
type Dispatcher struct {
	resolver *resolver.Resolver
	opts     adapter.Options
	limit    int
	ttl      time.Duration
	log      *slog.Logger
	metrics  *metrics.DispatchMetrics
	clock    clockwork.Clock

	mu        sync.Mutex
	instances *cache.Cache
}

// New returns a dispatcher resolving schemes through reg.
func New(reg *registry.Registry, cfg Config) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.InstanceTTL <= 0 {
		cfg.InstanceTTL = DefaultInstanceTTL
	}
	clock := cfg.Adapter.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := logging.OrDiscard(cfg.Adapter.Logger)

	// No janitor goroutine; expired entries are purged on each Notify.
	instances := cache.New(cfg.InstanceTTL, 0)
	instances.OnEvicted(func(_ string, v any) {
		closeInstance(logger, v)
	})

	return &Dispatcher{
		resolver:  resolver.New(reg),
		opts:      cfg.Adapter,
		limit:     cfg.Concurrency,
		ttl:       cfg.InstanceTTL,
		log:       logger,
		metrics:   cfg.Adapter.Metrics,
		clock:     clock,
		instances: instances,
	}
}

func closeInstance(log *slog.Logger, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close adapter instance", "error", err)
	}
}

// instanceKey identifies an instance by its canonical URL, options included.
func instanceKey(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Instance returns the cached adapter instance for raw, building it on first
// use.
func (d *Dispatcher) Instance(raw string) (adapter.Notifier, error) {
	u, desc, err := d.resolver.Parse(raw)
	if err != nil {
		return nil, err
	}
	key := instanceKey(u.String())

	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := d.instances.Get(key); ok {
		n := v.(adapter.Notifier)
		// Sliding expiry: refresh on use.
		d.instances.SetDefault(key, n)
		return n, nil
	}

	n, err := desc.Factory(u, d.opts)
	if err != nil {
		return nil, err
	}
	d.instances.SetDefault(key, n)
	d.metrics.SetCachedInstances(d.instances.ItemCount())
	d.log.Debug("adapter instance created", "scheme", u.Scheme, "url", u.Redacted())
	return n, nil
}

// Result is the outcome of delivering to one URL.
type Result struct {
	// URL is the redacted URL.
	URL    string
	Scheme string
	OK     bool
	Err    error
	// Duration covers every attempt, waits included.
	Duration time.Duration
}

// Summary collects the results of one Notify call.
type Summary struct {
	ID      string
	Results []Result
	// Skipped counts instances excluded by the tag filter.
	Skipped int
}

// OK reports whether at least one instance was notified and none failed.
func (s *Summary) OK() bool {
	return len(s.Results) > 0 && s.Failed() == 0
}

// Failed returns the number of failed results.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if !r.OK {
			n++
		}
	}
	return n
}

// Err joins the errors of all failed results, or returns nil. It has high
// priority when no instance was notified.
func (s *Summary) Err() error {
	var errs []error
	for _, r := range s.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	joined := errors.Join(errs...)
	priority := errors.PriorityMedium
	if len(errs) == len(s.Results) {
		priority = errors.PriorityHigh
	}
	return errors.New(joined).
		Component("dispatch").
		Category(errors.CategoryOf(joined)).
		Priority(priority).
		Context("dispatch_id", s.ID).
		Context("failed", len(errs)).
		Build()
}

// MatchTags reports whether an instance with the given tags passes filter.
// An empty filter or one containing TagAll matches everything; otherwise
// the instance must share at least one tag.
func MatchTags(instanceTags, filter []string) bool {
	if len(filter) == 0 || slices.Contains(filter, TagAll) {
		return true
	}
	for _, t := range filter {
		if slices.ContainsFunc(instanceTags, func(it string) bool { return strings.EqualFold(it, t) }) {
			return true
		}
	}
	return false
}

type job struct {
	idx int
	n   adapter.Notifier
}

// Notify delivers msg to every URL whose instance matches tags. Failures are
// reported per URL in the summary and never stop the other deliveries.
func (d *Dispatcher) Notify(ctx context.Context, urls []string, msg *adapter.Message, tags ...string) *Summary {
	sum := &Summary{ID: uuid.NewString()}
	log := d.log.With("dispatch_id", sum.ID)

	d.metrics.IncrementDispatchTotal()
	d.instances.DeleteExpired()

	var jobs []job
	for _, raw := range urls {
		n, err := d.Instance(raw)
		if err != nil {
			log.Error("cannot use notification URL", "url", redactRaw(raw), "error", err)
			d.metrics.RecordDeliveryError(schemeOf(raw), string(errors.CategoryOf(err)))
			sum.Results = append(sum.Results, Result{URL: redactRaw(raw), Scheme: schemeOf(raw), Err: err})
			continue
		}
		if !MatchTags(n.Tags(), tags) {
			sum.Skipped++
			d.metrics.RecordDelivery(n.Scheme(), metrics.StatusSkipped, 0)
			continue
		}
		sum.Results = append(sum.Results, Result{URL: n.URL(true), Scheme: n.Scheme()})
		jobs = append(jobs, job{idx: len(sum.Results) - 1, n: n})
	}
	d.metrics.SetCachedInstances(d.instances.ItemCount())

	if len(jobs) == 0 {
		if len(sum.Results) == 0 {
			log.Info("no notification URL matched", "tags", tags)
		}
		return sum
	}

	if msg == nil {
		msg = &adapter.Message{}
	}

	// Attachments are resolved once, before any instance sends.
	if err := msg.Attachments.ResolveAll(ctx); err != nil {
		log.Error("attachment unusable, nothing sent", "error", err)
		for _, j := range jobs {
			sum.Results[j.idx].Err = err
			d.metrics.RecordDeliveryError(j.n.Scheme(), string(errors.CategoryOf(err)))
		}
		return sum
	}

	var g errgroup.Group
	g.SetLimit(d.limit)
	for _, j := range jobs {
		g.Go(func() error {
			sum.Results[j.idx] = d.deliver(ctx, log, j.n, msg)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("dispatch finished",
		"instances", len(jobs),
		"failed", sum.Failed(),
		"skipped", sum.Skipped)
	return sum
}

func (d *Dispatcher) deliver(ctx context.Context, log *slog.Logger, n adapter.Notifier, msg *adapter.Message) Result {
	d.metrics.AddDispatchActive(1)
	defer d.metrics.AddDispatchActive(-1)

	res := Result{URL: n.URL(true), Scheme: n.Scheme()}
	start := d.clock.Now()
	err := n.Notify(ctx, msg)
	res.Duration = d.clock.Since(start)

	if err != nil {
		res.Err = err
		log.Error("notification failed", "scheme", res.Scheme, "url", res.URL, "duration", res.Duration, "error", err)
		d.metrics.RecordDelivery(res.Scheme, metrics.StatusFailure, res.Duration)
		d.metrics.RecordDeliveryError(res.Scheme, string(errors.CategoryOf(err)))
		return res
	}

	res.OK = true
	log.Info("notification sent", "scheme", res.Scheme, "url", res.URL, "duration", res.Duration)
	d.metrics.RecordDelivery(res.Scheme, metrics.StatusSuccess, res.Duration)
	return res
}

// Close closes and drops every cached instance.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, item := range d.instances.Items() {
		closeInstance(d.log, item.Object)
	}
	d.instances.Flush()
	d.metrics.SetCachedInstances(0)
	return nil
}
