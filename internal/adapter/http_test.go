package adapter

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/retry"
	"github.com/tphakala/pushcore/internal/testutil"
)

const hookURL = "https://hook.example/notify"

// statusSequence answers with the given statuses in order, repeating the last.
func statusSequence(statuses ...int) (httpmock.Responder, *atomic.Int32) {
	var calls atomic.Int32
	return func(*http.Request) (*http.Response, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		return httpmock.NewStringResponse(statuses[n], "status "+strconv.Itoa(statuses[n])), nil
	}, &calls
}

func TestDoHTTPRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	mock := httpmock.NewMockTransport()
	responder, calls := statusSequence(http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusOK)
	mock.RegisterResponder(http.MethodPost, hookURL, responder)

	b := newTestBase(t, "test://hook.example", Capabilities{}, Options{Transport: mock})
	err := b.DoHTTP(t.Context(), &HTTPRequest{URL: hookURL, Body: []byte(`{"a":1}`), ContentType: "application/json"})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoHTTPGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	mock := httpmock.NewMockTransport()
	responder, calls := statusSequence(http.StatusBadGateway)
	mock.RegisterResponder(http.MethodPost, hookURL, responder)

	b := newTestBase(t, "test://hook.example", Capabilities{}, Options{Transport: mock, MaxAttempts: 2})
	err := b.DoHTTP(t.Context(), &HTTPRequest{URL: hookURL})

	require.ErrorIs(t, err, retry.ErrTransient)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoHTTPClientErrorIsFatal(t *testing.T) {
	t.Parallel()

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPut, hookURL,
		httpmock.NewStringResponder(http.StatusBadRequest, "invalid token abc"))

	b := newTestBase(t, "test://hook.example", Capabilities{}, Options{Transport: mock})
	err := b.DoHTTP(t.Context(), &HTTPRequest{Method: http.MethodPut, URL: hookURL})

	require.ErrorIs(t, err, retry.ErrFatalClient)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestDoHTTPSendsHeadersAndBody(t *testing.T) {
	t.Parallel()

	mock := httpmock.NewMockTransport()
	var gotType, gotKey string
	mock.RegisterResponder(http.MethodPost, hookURL, func(r *http.Request) (*http.Response, error) {
		gotType = r.Header.Get("Content-Type")
		gotKey = r.Header.Get("X-Key")
		return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
	})

	b := newTestBase(t, "test://hook.example", Capabilities{}, Options{Transport: mock})
	err := b.DoHTTP(t.Context(), &HTTPRequest{
		URL:         hookURL,
		Header:      http.Header{"X-Key": []string{"k1"}},
		Body:        []byte("payload"),
		ContentType: "text/plain",
	})

	require.NoError(t, err)
	assert.Equal(t, "text/plain", gotType)
	assert.Equal(t, "k1", gotKey)
}

func TestDoHTTPHonorsRateLimitHeaders(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Unix(1746100800, 0))
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPost, hookURL, func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, "ok")
		resp.Header.Set("X-RateLimit-Remaining", "0")
		resp.Header.Set("X-RateLimit-Reset", "1746100810")
		return resp, nil
	})

	caps := Capabilities{
		RateLimitRemainingHeader: "X-RateLimit-Remaining",
		RateLimitResetHeader:     "X-RateLimit-Reset",
	}
	b := newTestBase(t, "test://hook.example", caps, Options{Transport: mock, Clock: clock})

	require.NoError(t, b.DoHTTP(t.Context(), &HTTPRequest{URL: hookURL}))
	assert.Equal(t, 10*time.Second, b.RateLimit.Delay())

	done := make(chan error, 1)
	go func() { done <- b.DoHTTP(t.Context(), &HTTPRequest{URL: hookURL}) }()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	assert.Equal(t, 1, mock.GetTotalCallCount(), "second request held until reset")
	clock.Advance(10 * time.Second)

	require.NoError(t, testutil.Receive(t, done, testutil.DefaultTestTimeout))
	assert.Equal(t, 2, mock.GetTotalCallCount())
}

func TestDoHTTPHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Unix(1746100800, 0))
	mock := httpmock.NewMockTransport()
	var calls atomic.Int32
	mock.RegisterResponder(http.MethodPost, hookURL, func(*http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			resp := httpmock.NewStringResponse(http.StatusTooManyRequests, "slow down")
			resp.Header.Set("Retry-After", "5")
			return resp, nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})

	b := newTestBase(t, "test://hook.example", Capabilities{}, Options{Transport: mock, Clock: clock})

	done := make(chan error, 1)
	go func() { done <- b.DoHTTP(t.Context(), &HTTPRequest{URL: hookURL}) }()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	assert.Equal(t, int32(1), calls.Load())
	clock.Advance(5 * time.Second)

	require.NoError(t, testutil.Receive(t, done, testutil.DefaultTestTimeout))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallThrottlesRetries(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Unix(1746100800, 0))
	b := newTestBase(t, "test://host", Capabilities{}, Options{Clock: clock, Throttle: ThrottleOf(time.Second)})

	var sent []time.Time
	done := make(chan error, 1)
	go func() {
		done <- b.Call(t.Context(), func(_ context.Context, attempt int) (int, error) {
			sent = append(sent, clock.Now())
			if attempt == 1 {
				return http.StatusServiceUnavailable, nil
			}
			return http.StatusOK, nil
		})
	}()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(time.Second)

	require.NoError(t, testutil.Receive(t, done, testutil.DefaultTestTimeout))
	require.Len(t, sent, 2)
	assert.GreaterOrEqual(t, sent[1].Sub(sent[0]), time.Second)
}

func TestDoHTTPTransportErrorCarriesContext(t *testing.T) {
	t.Parallel()

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPost, hookURL,
		httpmock.NewErrorResponder(errors.NewStd("handshake failed")))

	b := newTestBase(t, "test://hook.example", Capabilities{}, Options{Transport: mock, MaxAttempts: 1})
	err := b.DoHTTP(t.Context(), &HTTPRequest{URL: hookURL})
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrFatalClient)

	var sendErr *errors.EnhancedError
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ee, ok := e.(*errors.EnhancedError); ok && ee.GetComponent() == "adapter" {
			sendErr = ee
			break
		}
	}
	require.NotNil(t, sendErr)
	assert.Equal(t, string(errors.CategoryNetwork), sendErr.GetCategory())

	ctx := sendErr.GetContext()
	assert.Equal(t, "test_post", ctx["operation"])
	assert.Contains(t, ctx, "url_category")
	assert.Contains(t, ctx, "duration_ms")
	assert.Equal(t, 1, ctx["attempt"])
}

func TestDoHTTPLogsRequestsThroughClientHooks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(logging.NewHandler(&buf, logging.LevelTrace, false))

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(http.StatusAccepted, "ok"))

	b := newTestBase(t, "test://hook.example", Capabilities{}, Options{Transport: mock, Logger: logger})
	require.NoError(t, b.DoHTTP(t.Context(), &HTTPRequest{URL: hookURL}))

	out := buf.String()
	assert.Contains(t, out, "http request")
	assert.Contains(t, out, "http response")
	assert.Contains(t, out, "host=hook.example")
	assert.Contains(t, out, "status=202")
}
