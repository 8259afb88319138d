package adapter

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/pushcore/internal/attachment"
	"github.com/tphakala/pushcore/internal/batch"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/httpclient"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/observability/metrics"
	"github.com/tphakala/pushcore/internal/retry"
	"github.com/tphakala/pushcore/internal/throttle"
)

// Common URL options understood by every adapter.
const (
	OptFormat   = "format"
	OptOverflow = "overflow"
	OptTag      = "tag"
	OptVerify   = "verify"
	OptReadTO   = "rto"
	OptConnTO   = "cto"
)

// CommonOptions lists the option keys Base consumes.
var CommonOptions = []string{OptFormat, OptOverflow, OptTag, OptVerify, OptReadTO, OptConnTO}

// Base carries the state shared by all adapters: configuration common to
// every URL and the per-instance throttle, rate-limit and retry machinery.
// Adapters embed it and implement Sender.
//
// Sends through one Base are strictly sequential.
type Base struct {
	scheme   string
	url      *notifyurl.ParsedURL
	caps     Capabilities
	format   Format
	overflow OverflowMode
	tags     []string
	verify   bool
	readTO   time.Duration
	connTO   time.Duration

	Log       *slog.Logger
	Clock     clockwork.Clock
	Metrics   *metrics.DispatchMetrics
	Throttle  *throttle.Controller
	RateLimit *throttle.RateLimitTracker
	Retry     *retry.Coordinator
	HTTP      *httpclient.Client

	attachmentOpts []attachment.Option

	sendMu sync.Mutex
}

// NewBase reads the common options from u and sets up the send machinery.
func NewBase(u *notifyurl.ParsedURL, caps Capabilities, opts Options) (*Base, error) {
	opts = opts.withDefaults()

	b := &Base{
		scheme:         u.Scheme,
		url:            u.Clone(),
		caps:           caps,
		verify:         u.Bool(OptVerify, true),
		tags:           u.List(OptTag),
		Clock:          opts.Clock,
		Metrics:        opts.Metrics,
		attachmentOpts: opts.AttachmentOptions,
	}
	b.Log = logging.OrDiscard(opts.Logger).With("scheme", u.Scheme, "url_id", u.ID()[:12])

	native := caps.NativeFormat
	if native == "" {
		native = FormatText
	}
	b.format = native
	if v, ok := u.Get(OptFormat); ok {
		f, err := ParseFormat(v)
		if err != nil {
			return nil, err
		}
		b.format = f
	}

	var err error
	if b.overflow, err = ParseOverflow(u.Query[OptOverflow]); err != nil {
		return nil, err
	}
	if b.readTO, err = secondsOption(u, OptReadTO); err != nil {
		return nil, err
	}
	if b.connTO, err = secondsOption(u, OptConnTO); err != nil {
		return nil, err
	}

	interval := caps.ThrottleInterval
	if opts.Throttle != nil {
		interval = *opts.Throttle
	}
	b.Throttle = throttle.NewController(interval, b.Clock)
	b.RateLimit = throttle.NewRateLimitTracker(b.Clock)
	b.Retry = &retry.Coordinator{
		MaxAttempts: opts.MaxAttempts,
		Backoff:     opts.Backoff,
		Clock:       b.Clock,
		Logger:      b.Log,
		OnRetry: func(int, time.Duration, error) {
			b.Metrics.RecordRetryAttempt(b.scheme)
		},
	}
	b.HTTP = httpclient.New(&httpclient.Config{
		DefaultTimeout:     b.readTO,
		ConnectTimeout:     b.connTO,
		InsecureSkipVerify: !b.verify,
		Transport:          opts.Transport,
	})
	b.HTTP.SetBeforeRequestHook(b.logRequest)
	b.HTTP.SetAfterResponseHook(b.logResponse)

	return b, nil
}

func secondsOption(u *notifyurl.ParsedURL, key string) (time.Duration, error) {
	v, ok := u.Get(key)
	if !ok || v == "" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0, errors.Newf("option %s must be a non-negative number of seconds, got %q", key, v).
			Component("adapter").
			Category(errors.CategoryValidation).
			Build()
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Scheme implements Notifier.
func (b *Base) Scheme() string { return b.scheme }

// Tags implements Notifier.
func (b *Base) Tags() []string { return b.tags }

// Capabilities implements Notifier.
func (b *Base) Capabilities() Capabilities { return b.caps }

// Format returns the body format the instance sends.
func (b *Base) Format() Format { return b.format }

// Overflow returns the overflow mode.
func (b *Base) Overflow() OverflowMode { return b.overflow }

// Verify reports whether TLS certificates are verified.
func (b *Base) Verify() bool { return b.verify }

// ParsedURL returns a copy of the URL the instance was built from.
func (b *Base) ParsedURL() *notifyurl.ParsedURL { return b.url.Clone() }

// AttachmentOptions returns the options adapters apply to attachments they create.
func (b *Base) AttachmentOptions() []attachment.Option { return b.attachmentOpts }

// URL implements Notifier by rendering the source URL with the common
// options normalized.
func (b *Base) URL(redact bool) string {
	return b.RenderURL(b.url.Clone(), redact)
}

// RenderURL writes the normalized common options into u and renders it.
// Adapters call it after putting their own options into u.
func (b *Base) RenderURL(u *notifyurl.ParsedURL, redact bool) string {
	u.Query[OptFormat] = string(b.format)
	u.Query[OptOverflow] = string(b.overflow)
	u.Query[OptVerify] = yesNo(b.verify)
	if len(b.tags) > 0 {
		u.Query[OptTag] = strings.Join(b.tags, ",")
	}
	if redact {
		return u.Redacted()
	}
	return u.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// Request is one outbound unit of work handed to a Sender: one chunk of
// the message for one batch of targets.
type Request struct {
	Title  string
	Body   string
	Type   NotifyType
	Format Format
	// Targets is empty for services that address a single fixed destination.
	Targets     []notifyurl.Target
	Attachments []*attachment.Attachment
	// Chunk is the 1-based index of this body chunk out of Chunks.
	Chunk  int
	Chunks int
}

// Sender performs the service-specific part of a send.
type Sender interface {
	Send(ctx context.Context, req *Request) error
}

// Deliver runs msg through the shared pipeline and calls s once per chunk
// and target batch. Attachments are resolved before any request is made, so
// an unusable attachment fails the delivery without network traffic. Failed
// requests do not stop the remaining ones; their errors are joined.
func (b *Base) Deliver(ctx context.Context, msg *Message, targets []notifyurl.Target, s Sender) error {
	if msg == nil {
		return errors.Newf("nil message").Component("adapter").Category(errors.CategoryValidation).Build()
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	attachments, err := b.prepareAttachments(ctx, msg)
	if err != nil {
		return err
	}
	if strings.TrimSpace(msg.Body) == "" && len(attachments) == 0 {
		return errors.Newf("%s: message has no body or attachment", b.scheme).
			Component("adapter").
			Category(errors.CategoryValidation).
			Build()
	}

	body := ConvertFormat(msg.Body, msg.format(), b.format)
	title := ConvertFormat(msg.Title, msg.format(), FormatText)
	chunks := ApplyOverflow(title, body, b.caps, b.overflow, b.format)

	batches := batch.PlanFor(targets, b.caps)
	if len(batches) == 0 {
		batches = [][]notifyurl.Target{nil}
	}

	var errs []error
	for i, chunk := range chunks {
		for _, group := range batches {
			req := &Request{
				Title:   chunk.Title,
				Body:    chunk.Body,
				Type:    msg.notifyType(),
				Format:  b.format,
				Targets: group,
				Chunk:   i + 1,
				Chunks:  len(chunks),
			}
			if i == 0 {
				req.Attachments = attachments
			}

			if err := s.Send(ctx, req); err != nil {
				b.Log.Warn("request failed",
					"chunk", req.Chunk,
					"chunks", req.Chunks,
					"targets", len(group),
					"error", err)
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (b *Base) prepareAttachments(ctx context.Context, msg *Message) ([]*attachment.Attachment, error) {
	attachments := msg.Attachments.All()
	if len(attachments) == 0 {
		return nil, nil
	}

	if !b.caps.SupportsAttachments {
		if strings.TrimSpace(msg.Body) == "" {
			return nil, errors.Newf("%s does not support attachments and the message has no body", b.scheme).
				Component("adapter").
				Category(errors.CategoryAttachmentAccess).
				Build()
		}
		b.Log.Warn("attachments not supported, sending without them", "count", len(attachments))
		return nil, nil
	}

	if b.overflow == OverflowTruncate && len(attachments) > 1 {
		attachments = attachments[:1]
	}

	for _, a := range attachments {
		if _, err := a.Resolve(ctx); err != nil {
			b.Log.Error("attachment unusable, nothing sent", "attachment", a.String(), "error", err)
			return nil, err
		}
	}
	return attachments, nil
}

// Call runs one outbound request through the rate-limit gate, the throttle
// and the retry coordinator. Every attempt, retries included, passes the
// gates.
func (b *Base) Call(ctx context.Context, fn retry.Attempt) error {
	res := b.Retry.Run(ctx, func(ctx context.Context, attempt int) (int, error) {
		if err := b.gate(ctx); err != nil {
			return 0, err
		}
		return fn(ctx, attempt)
	})
	if res.OK() {
		return nil
	}
	return res.Err
}

func (b *Base) gate(ctx context.Context) error {
	waited, err := b.RateLimit.Wait(ctx)
	if err != nil {
		return err
	}
	if waited > 0 {
		b.Log.Info("rate limit reached, waited before sending", "wait", waited)
		b.Metrics.RecordWait(b.scheme, "rate_limit", waited)
	}

	waited, err = b.Throttle.Wait(ctx)
	if err != nil {
		return err
	}
	b.Metrics.RecordWait(b.scheme, "throttle", waited)
	return nil
}
