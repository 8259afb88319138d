package adapter

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/httpclient"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/privacy"
	"github.com/tphakala/pushcore/internal/retry"
)

// HTTPRequest describes an outbound HTTP call. Body is replayed on retries.
type HTTPRequest struct {
	Method      string
	URL         string
	Header      http.Header
	Body        []byte
	ContentType string
}

// DoHTTP sends req through Call. Rate-limit headers named in the
// capabilities are recorded from every response, and a Retry-After on 429
// holds the next attempt back. Non-2xx responses fail with a scrubbed
// excerpt of the response body.
func (b *Base) DoHTTP(ctx context.Context, req *HTTPRequest) error {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	return b.Call(ctx, func(ctx context.Context, attempt int) (int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
		if err != nil {
			return 0, retry.Permanent(err)
		}
		if req.Header != nil {
			httpReq.Header = req.Header.Clone()
		}
		if req.ContentType != "" {
			httpReq.Header.Set("Content-Type", req.ContentType)
		}

		start := b.Clock.Now()
		resp, err := b.HTTP.Do(ctx, httpReq)
		if err != nil {
			return 0, errors.New(privacy.WrapError(err)).
				Component("adapter").
				Category(errors.CategoryNetwork).
				NetworkContext(req.URL, b.HTTP.Timeout()).
				Timing(b.operation(method), b.Clock.Since(start)).
				Context("attempt", attempt).
				Build()
		}
		defer httpclient.Drain(resp)

		b.RateLimit.ObserveHeaders(resp.Header, b.caps.RateLimitRemainingHeader, b.caps.RateLimitResetHeader)
		if resp.StatusCode == http.StatusTooManyRequests {
			b.observeRetryAfter(resp.Header.Get("Retry-After"))
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.StatusCode, nil
		}

		excerpt := strings.TrimSpace(httpclient.ReadErrorBody(resp))
		return resp.StatusCode, errors.Newf("%s returned HTTP %d: %s", b.scheme, resp.StatusCode, privacy.ScrubMessage(excerpt)).
			Component("adapter").
			Category(errors.CategoryHTTP).
			NetworkContext(req.URL, b.HTTP.Timeout()).
			Timing(b.operation(method), b.Clock.Since(start)).
			Context("status", resp.StatusCode).
			Context("attempt", attempt).
			Build()
	})
}

// operation names an HTTP call for error titles, e.g. json_post.
func (b *Base) operation(method string) string {
	return b.scheme + "_" + strings.ToLower(method)
}

// logRequest and logResponse are installed as the HTTP client hooks.
func (b *Base) logRequest(req *http.Request) {
	logging.Trace(b.Log, "http request",
		"method", req.Method,
		"host", req.URL.Host)
}

func (b *Base) logResponse(req *http.Request, resp *http.Response, err error) {
	if err != nil {
		b.Log.Debug("http request failed",
			"method", req.Method,
			"host", req.URL.Host,
			"error", privacy.ScrubMessage(err.Error()))
		return
	}
	b.Log.Debug("http response",
		"method", req.Method,
		"host", req.URL.Host,
		"status", resp.StatusCode)
}

// observeRetryAfter feeds a delay-seconds Retry-After into the rate-limit
// tracker. HTTP-date values are ignored.
func (b *Base) observeRetryAfter(v string) {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return
	}
	b.RateLimit.Observe(0, b.Clock.Now().Add(time.Duration(secs)*time.Second).Unix())
}
