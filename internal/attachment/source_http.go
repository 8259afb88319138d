package attachment

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tphakala/pushcore/internal/httpclient"
)

// httpSource downloads content with GET. A HEAD request probes the size first;
// servers that refuse HEAD are read with the limit applied while streaming.
type httpSource struct {
	url      string
	redacted string
	client   *httpclient.Client
}

func (s *httpSource) Kind() string        { return "http" }
func (s *httpSource) Location() Location  { return LocationRemote }
func (s *httpSource) Access() AccessClass { return AccessHosted }
func (s *httpSource) Describe() string    { return s.redacted }

func (s *httpSource) fallbackName() string {
	u, err := url.Parse(s.url)
	if err != nil {
		return ""
	}
	return baseName(u.Path)
}

func (s *httpSource) Probe(ctx context.Context) (int64, bool, error) {
	resp, err := s.client.Head(ctx, s.url)
	if err != nil {
		// The GET that follows reports connection problems.
		return 0, false, nil
	}
	defer httpclient.Drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return 0, false, notFoundError(s.redacted, fmt.Errorf("HTTP %d", resp.StatusCode))
	case resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.ContentLength >= 0:
		return resp.ContentLength, true, nil
	default:
		return 0, false, nil
	}
}

func (s *httpSource) Fetch(ctx context.Context, limit int64) ([]byte, Meta, error) {
	start := time.Now()
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, Meta{}, s.notFound(err, start)
	}
	defer httpclient.Drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Meta{}, s.notFound(fmt.Errorf("HTTP %d", resp.StatusCode), start)
	}
	if resp.ContentLength > limit {
		return nil, Meta{}, tooLargeError(s.redacted, resp.ContentLength, limit)
	}

	data, over, err := readLimited(resp.Body, limit)
	if err != nil {
		return nil, Meta{}, s.notFound(err, start)
	}
	if over {
		return nil, Meta{}, tooLargeError(s.redacted, -1, limit)
	}

	return data, Meta{
		Name:     dispositionFilename(resp.Header.Get("Content-Disposition")),
		MimeType: mediaType(resp.Header.Get("Content-Type")),
	}, nil
}

func (s *httpSource) notFound(cause error, start time.Time) error {
	return notFound(s.redacted, cause).
		NetworkContext(s.url, s.client.Timeout()).
		Timing("attachment_fetch", time.Since(start)).
		Build()
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	return baseName(strings.ReplaceAll(name, "\\", "/"))
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}
