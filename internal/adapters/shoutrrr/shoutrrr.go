// Package shoutrrr bridges vendor schemes (discord://, slack://, telegram://
// and others) to github.com/nicholas-fedor/shoutrrr.
package shoutrrr

import (
	"context"
	"io"
	"log"

	lib "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/privacy"
	"github.com/tphakala/pushcore/internal/registry"
	"github.com/tphakala/pushcore/internal/retry"
)

// Schemes served through the bridge.
var Schemes = []string{
	"bark", "discord", "googlechat", "gotify", "ifttt", "join", "lark",
	"matrix", "mattermost", "ntfy", "opsgenie", "pushbullet", "pushover",
	"rocketchat", "slack", "smtp", "teams", "telegram", "zulip",
}

// Capabilities of the bridge. Vendor limits are enforced by shoutrrr itself.
var Capabilities = adapter.Capabilities{
	MaxTitleLength: adapter.UnlimitedTitle,
	NativeFormat:   adapter.FormatText,
}

// Sender is the part of a shoutrrr router the bridge uses.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// SenderFactory builds a sender for a shoutrrr URL.
type SenderFactory func(rawURL string) (Sender, error)

func defaultFactory(rawURL string) (Sender, error) {
	s, err := lib.CreateSender(rawURL)
	if err != nil {
		return nil, err
	}
	s.SetLogger(log.New(io.Discard, "", 0))
	return s, nil
}

// Option configures a Notifier.
type Option func(*config)

type config struct {
	factory SenderFactory
}

// WithSenderFactory replaces shoutrrr.CreateSender.
func WithSenderFactory(f SenderFactory) Option {
	return func(c *config) { c.factory = f }
}

// Notifier forwards messages to one shoutrrr service.
type Notifier struct {
	*adapter.Base
	sender Sender
}

// New builds a notifier for u. The URL is handed to shoutrrr without the
// options pushcore consumes itself.
func New(u *notifyurl.ParsedURL, opts adapter.Options, options ...Option) (*Notifier, error) {
	cfg := config{factory: defaultFactory}
	for _, o := range options {
		o(&cfg)
	}

	base, err := adapter.NewBase(u, Capabilities, opts)
	if err != nil {
		return nil, err
	}

	sender, err := cfg.factory(ServiceURL(u))
	if err != nil {
		return nil, errors.New(privacy.WrapError(err)).
			Component("adapters/shoutrrr").
			Category(errors.CategoryValidation).
			Context("url", u.Redacted()).
			Build()
	}
	return &Notifier{Base: base, sender: sender}, nil
}

// ServiceURL renders u without the common pushcore options.
func ServiceURL(u *notifyurl.ParsedURL) string {
	c := u.Clone()
	for _, k := range adapter.CommonOptions {
		delete(c.Query, k)
	}
	return c.String()
}

// Descriptor describes the bridge.
func Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:         "Shoutrrr",
		Schemes:      Schemes,
		Capabilities: Capabilities,
		Factory: func(u *notifyurl.ParsedURL, opts adapter.Options) (adapter.Notifier, error) {
			return New(u, opts)
		},
	}
}

// Notify implements adapter.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg *adapter.Message) error {
	return n.Deliver(ctx, msg, nil, n)
}

// Send implements adapter.Sender. shoutrrr applies its own timeouts, so the
// context only gates retries.
func (n *Notifier) Send(ctx context.Context, req *adapter.Request) error {
	params := stypes.Params{}
	if req.Title != "" {
		params.SetTitle(req.Title)
	}

	return n.Call(ctx, func(context.Context, int) (int, error) {
		for _, err := range n.sender.Send(req.Body, &params) {
			if err != nil {
				return 0, retry.Transient(privacy.WrapError(err))
			}
		}
		return 0, nil
	})
}
