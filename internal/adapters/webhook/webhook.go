// Package webhook implements the generic json:// and form:// adapters. Both
// post the message to an HTTP endpoint built from the URL; they differ only
// in how the payload is encoded.
package webhook

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
)

// PayloadVersion is sent as the "version" field of every payload.
const PayloadVersion = "1.0"

const optMethod = "method"

var allowedMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch}

// Capabilities are shared by both encodings.
var Capabilities = adapter.Capabilities{
	MaxBodyLength:            32768,
	MaxTitleLength:           250,
	SupportsAttachments:      true,
	RequiresHost:             true,
	NativeFormat:             adapter.FormatText,
	RateLimitRemainingHeader: "X-RateLimit-Remaining",
	RateLimitResetHeader:     "X-RateLimit-Reset",
}

type encoder interface {
	// attachFields returns payload fields carrying the attachments, added
	// before renames apply.
	attachFields(ctx context.Context, req *adapter.Request) (map[string]any, error)
	encode(ctx context.Context, fields map[string]any, req *adapter.Request) (body []byte, contentType string, err error)
}

// Notifier posts to one webhook endpoint.
type Notifier struct {
	*adapter.Base

	enc      encoder
	method   string
	endpoint string
	header   http.Header
	fields   map[string]string
	renames  map[string]string
}

func newNotifier(u *notifyurl.ParsedURL, secure bool, enc encoder, opts adapter.Options) (*Notifier, error) {
	base, err := adapter.NewBase(u, Capabilities, opts)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(u.Query[optMethod]))
	if method == "" {
		method = http.MethodPost
	}
	if !slices.Contains(allowedMethods, method) {
		return nil, errors.Newf("unsupported HTTP method %q", u.Query[optMethod]).
			Component("adapters/webhook").
			Category(errors.CategoryValidation).
			Build()
	}

	header := make(http.Header, len(u.Headers)+1)
	for k, v := range u.Headers {
		header.Set(k, v)
	}
	if u.User != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(u.User + ":" + u.Password))
		header.Set("Authorization", "Basic "+cred)
	}

	return &Notifier{
		Base:     base,
		enc:      enc,
		method:   method,
		endpoint: endpoint(u, secure),
		header:   header,
		fields:   u.Data,
		renames:  u.Template,
	}, nil
}

// endpoint builds the target URL: host and path from the notification URL,
// plus any plain query options the adapter does not consume itself.
func endpoint(u *notifyurl.ParsedURL, secure bool) string {
	var b strings.Builder
	if secure {
		b.WriteString("https://")
	} else {
		b.WriteString("http://")
	}

	host := u.ASCIIHost()
	if u.HasPort() {
		host = net.JoinHostPort(host, strconv.Itoa(u.Port))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	b.WriteString(host)

	for _, seg := range u.Segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	if len(u.Segments) == 0 {
		b.WriteByte('/')
	}

	extra := url.Values{}
	for k, v := range u.Query {
		if k == optMethod || slices.Contains(adapter.CommonOptions, k) {
			continue
		}
		extra.Set(k, v)
	}
	if len(extra) > 0 {
		b.WriteByte('?')
		b.WriteString(extra.Encode())
	}
	return b.String()
}

// fallbackName names the i-th (from 1) attachment when it has no filename.
func fallbackName(i int) string {
	return fmt.Sprintf("file%03d.dat", i)
}

// Endpoint returns the HTTP URL requests are sent to.
func (n *Notifier) Endpoint() string { return n.endpoint }

// Method returns the HTTP method.
func (n *Notifier) Method() string { return n.method }

// Notify implements adapter.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg *adapter.Message) error {
	return n.Deliver(ctx, msg, nil, n)
}

// URL implements adapter.Notifier.
func (n *Notifier) URL(redact bool) string {
	u := n.ParsedURL()
	u.Query[optMethod] = n.method
	return n.RenderURL(u, redact)
}

// Send implements adapter.Sender.
func (n *Notifier) Send(ctx context.Context, req *adapter.Request) error {
	fields, err := n.payload(ctx, req)
	if err != nil {
		return err
	}
	body, contentType, err := n.enc.encode(ctx, fields, req)
	if err != nil {
		return err
	}
	return n.DoHTTP(ctx, &adapter.HTTPRequest{
		Method:      n.method,
		URL:         n.endpoint,
		Header:      n.header,
		Body:        body,
		ContentType: contentType,
	})
}

// payload returns the common fields after +key additions and :key edits.
func (n *Notifier) payload(ctx context.Context, req *adapter.Request) (map[string]any, error) {
	p := map[string]any{
		"version": PayloadVersion,
		"title":   req.Title,
		"message": req.Body,
		"type":    string(req.Type),
	}
	extra, err := n.enc.attachFields(ctx, req)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		p[k] = v
	}
	for k, v := range n.fields {
		p[k] = v
	}
	applyRenames(p, n.renames)
	return p, nil
}

// applyRenames applies :key edits. A key already in the payload moves to the
// new name, or is dropped when the new name is empty. Any other key is added
// with the value as its content.
func applyRenames(p map[string]any, renames map[string]string) {
	keys := make([]string, 0, len(renames))
	for k := range renames {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	moved := make(map[string]any, len(keys))
	for _, k := range keys {
		v, ok := p[k]
		if !ok {
			moved[k] = renames[k]
			continue
		}
		delete(p, k)
		if to := renames[k]; to != "" {
			moved[to] = v
		}
	}
	for k, v := range moved {
		p[k] = v
	}
}
