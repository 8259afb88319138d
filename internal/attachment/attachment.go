// Package attachment resolves attachment references (local files, HTTP, FTP
// and SFTP locations, or in-memory content) into bytes, lazily, with a cache
// policy and a size limit.
//
// Resolution of one Attachment is serialized by its own lock, so a shared
// Attachment may be resolved from several goroutines. A Collection is not
// safe for concurrent Add.
package attachment

import (
	"context"
	"encoding/base64"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jonboulle/clockwork"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/httpclient"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/observability/metrics"
)

const (
	// DefaultMaxSize applies when no limit is configured.
	DefaultMaxSize int64 = 1 << 30

	// DefaultTimeout bounds connects for FTP and SFTP sources.
	DefaultTimeout = 30 * time.Second

	defaultName = "attachment"
	genericMime = "application/octet-stream"
)

// Attachment fetch result labels.
const (
	resultOK       = "ok"
	resultCached   = "cached"
	resultTooLarge = "too_large"
	resultError    = "error"
)

// Options consumed from attachment URLs; everything else is passed to the source.
var urlOptions = []string{"cache", "name", "mime"}

type config struct {
	policy    CachePolicy
	maxSize   int64
	clock     clockwork.Clock
	name      string
	mimeType  string
	client    *httpclient.Client
	timeout   time.Duration
	metrics   *metrics.DispatchMetrics
	logger    *slog.Logger
	policySet bool
}

// Option configures an Attachment.
type Option func(*config)

// WithCachePolicy sets the cache policy. A cache= URL option takes precedence.
func WithCachePolicy(p CachePolicy) Option {
	return func(c *config) { c.policy, c.policySet = p, true }
}

// WithMaxSize limits resolved content to n bytes; n <= 0 means DefaultMaxSize.
func WithMaxSize(n int64) Option {
	return func(c *config) { c.maxSize = n }
}

// WithClock replaces the clock used for cache expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithMimeType overrides content type detection.
func WithMimeType(mime string) Option {
	return func(c *config) { c.mimeType = mime }
}

// WithHTTPClient sets the client used by HTTP sources.
func WithHTTPClient(client *httpclient.Client) Option {
	return func(c *config) { c.client = client }
}

// WithTimeout bounds connection setup for FTP and SFTP sources.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *metrics.DispatchMetrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) config {
	c := config{policy: CacheForever()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxSize
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

// Attachment is one lazily resolved piece of content. Resolution is
// serialized, so instances sending concurrently share the cached bytes.
type Attachment struct {
	src Source
	cfg config

	mu         sync.Mutex
	data       []byte
	meta       Meta
	resolvedAt time.Time
	resolved   bool
}

// New builds an attachment from a reference: a filesystem path, or a
// file://, http(s)://, ftp:// or sftp:// URL. The URL options cache=, name=
// and mime= are honored.
func New(ref string, opts ...Option) (*Attachment, error) {
	u, err := notifyurl.Parse(ref)
	if err != nil {
		return nil, err
	}

	cfg := newConfig(opts)
	if v, ok := u.Get("cache"); ok {
		p, err := ParseCachePolicy(v)
		if err != nil {
			return nil, err
		}
		cfg.policy = p
	}
	if v, ok := u.Get("name"); ok && v != "" {
		cfg.name = v
	}
	if v, ok := u.Get("mime"); ok && v != "" {
		cfg.mimeType = v
	}

	var src Source
	switch u.Scheme {
	case notifyurl.FileScheme:
		src = &fileSource{path: u.Path}
	case "http", "https":
		if cfg.client == nil {
			cfg.client = httpclient.New(nil)
		}
		src = &httpSource{url: stripOptions(u.Raw, urlOptions), client: cfg.client, redacted: u.Redacted()}
	case "ftp":
		src = newFTPSource(u, cfg.timeout)
	case "sftp":
		src, err = newSFTPSource(u, cfg.timeout)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf("unsupported attachment scheme %q", u.Scheme).
			Component(component).
			Category(errors.CategoryUnsupportedScheme).
			Context("scheme", u.Scheme).
			Build()
	}

	return &Attachment{src: src, cfg: cfg}, nil
}

// FromSource wraps an existing Source.
func FromSource(src Source, opts ...Option) *Attachment {
	return &Attachment{src: src, cfg: newConfig(opts)}
}

// FromBytes wraps in-memory content.
func FromBytes(name string, data []byte, opts ...Option) *Attachment {
	return FromSource(&memorySource{name: name, data: data}, opts...)
}

// stripOptions removes the given query keys from raw, keeping the rest as written.
func stripOptions(raw string, keys []string) string {
	base, query, ok := strings.Cut(raw, "?")
	if !ok {
		return raw
	}
	var kept []string
	for pair := range strings.SplitSeq(query, "&") {
		k, _, _ := strings.Cut(pair, "=")
		drop := false
		for _, key := range keys {
			if strings.EqualFold(k, key) {
				drop = true
				break
			}
		}
		if !drop && pair != "" {
			kept = append(kept, pair)
		}
	}
	if len(kept) == 0 {
		return base
	}
	return base + "?" + strings.Join(kept, "&")
}

// Location returns whether the content is local or remote.
func (a *Attachment) Location() Location { return a.src.Location() }

// AccessClass returns the source's access class.
func (a *Attachment) AccessClass() AccessClass { return a.src.Access() }

// CachePolicy returns the effective cache policy.
func (a *Attachment) CachePolicy() CachePolicy { return a.cfg.policy }

// MaxSize returns the size limit in bytes.
func (a *Attachment) MaxSize() int64 { return a.cfg.maxSize }

// String returns a location safe to log.
func (a *Attachment) String() string { return a.src.Describe() }

// Exists reports whether the attachment can be used. Local sources are
// probed without reading; remote sources are resolved under the cache policy.
func (a *Attachment) Exists(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.src.Access() == AccessInaccessible {
		return false
	}
	if a.valid() {
		return true
	}
	if a.src.Location() == LocationLocal {
		_, _, err := a.src.Probe(ctx)
		return err == nil
	}
	_, err := a.resolve(ctx)
	return err == nil
}

func (a *Attachment) valid() bool {
	return a.resolved && a.cfg.policy.fresh(a.resolvedAt, a.cfg.clock.Now())
}

// Invalidate drops cached content so the next access resolves again.
func (a *Attachment) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invalidate()
}

func (a *Attachment) invalidate() {
	a.data = nil
	a.meta = Meta{}
	a.resolved = false
}

// Resolve returns the attachment content, reading or downloading it when the
// cache policy requires. Content larger than MaxSize fails with ErrTooLarge
// and is never exposed.
func (a *Attachment) Resolve(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolve(ctx)
}

func (a *Attachment) resolve(ctx context.Context) ([]byte, error) {
	if a.valid() {
		a.cfg.metrics.RecordAttachmentFetch(a.src.Kind(), resultCached)
		return a.data, nil
	}
	a.invalidate()

	desc := a.src.Describe()
	if a.src.Access() == AccessInaccessible {
		return nil, inaccessibleError(desc, AccessInaccessible, AccessInaccessible)
	}

	size, known, err := a.src.Probe(ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	if known && size > a.cfg.maxSize {
		return nil, a.fail(tooLargeError(desc, size, a.cfg.maxSize))
	}

	data, meta, err := a.src.Fetch(ctx, a.cfg.maxSize)
	if err != nil {
		return nil, a.fail(err)
	}

	a.data = data
	a.meta = meta
	a.resolved = true
	a.resolvedAt = a.cfg.clock.Now()

	a.cfg.metrics.RecordAttachmentFetch(a.src.Kind(), resultOK)
	logging.Trace(a.cfg.logger, "attachment resolved",
		"source", a.src.Kind(),
		"location", desc,
		"bytes", len(data))
	return data, nil
}

func (a *Attachment) fail(err error) error {
	result := resultError
	if errors.Is(err, ErrTooLarge) {
		result = resultTooLarge
	}
	a.cfg.metrics.RecordAttachmentFetch(a.src.Kind(), result)
	a.cfg.logger.Warn("attachment resolution failed",
		"source", a.src.Kind(),
		"location", a.src.Describe(),
		"error", err)
	return err
}

// Size returns the resolved size, or 0 before resolution.
func (a *Attachment) Size() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(len(a.data))
}

// Name returns the filename: the override, what the source reported, or the
// last element of its location.
func (a *Attachment) Name() string {
	return a.NameOr(defaultName)
}

// NameOr is Name with fallback returned when no filename is known.
func (a *Attachment) NameOr(fallback string) string {
	if a.cfg.name != "" {
		return a.cfg.name
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.meta.Name != "" {
		return a.meta.Name
	}
	if n, ok := a.src.(interface{ fallbackName() string }); ok {
		if name := n.fallbackName(); name != "" && name != "." && name != "/" {
			return name
		}
	}
	return fallback
}

// MimeType returns the override, the type the source reported, or the type
// detected from the content. Call after Resolve.
func (a *Attachment) MimeType() string {
	if a.cfg.mimeType != "" {
		return a.cfg.mimeType
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.meta.MimeType != "" && a.meta.MimeType != genericMime {
		return a.meta.MimeType
	}
	if a.data != nil {
		return mimetype.Detect(a.data).String()
	}
	if a.meta.MimeType != "" {
		return a.meta.MimeType
	}
	return genericMime
}

// Base64 resolves the content and returns it base64-encoded.
func (a *Attachment) Base64(ctx context.Context) (string, error) {
	data, err := a.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func baseName(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}
