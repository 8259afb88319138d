// Package mqtt publishes notifications to MQTT topics.
package mqtt

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/registry"
	"github.com/tphakala/pushcore/internal/retry"
)

const (
	defaultPort       = 1883
	defaultSecurePort = 8883

	defaultTimeout = 10 * time.Second

	optQoS      = "qos"
	optRetain   = "retain"
	optClientID = "client_id"
)

// Capabilities of the MQTT adapter. Each topic is its own request.
var Capabilities = adapter.Capabilities{
	MaxBodyLength:  268435455,
	MaxTitleLength: 0,
	RequiresHost:   true,
	NativeFormat:   adapter.FormatText,
}

// Client is the part of the paho client the adapter uses.
type Client interface {
	IsConnected() bool
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
}

// ClientFactory creates an unconnected client.
type ClientFactory func(opts *paho.ClientOptions) Client

func defaultFactory(opts *paho.ClientOptions) Client {
	return paho.NewClient(opts)
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClientFactory replaces the paho client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(n *Notifier) { n.factory = f }
}

// Notifier publishes to the topics named in the URL.
type Notifier struct {
	*adapter.Base

	broker   string
	clientID string
	qos      byte
	retain   bool
	timeout  time.Duration
	topics   []notifyurl.Target

	factory ClientFactory

	mu     sync.Mutex
	client Client
}

// New builds an mqtt:// or mqtts:// notifier. Nothing connects until the
// first send.
func New(u *notifyurl.ParsedURL, opts adapter.Options, options ...Option) (*Notifier, error) {
	base, err := adapter.NewBase(u, Capabilities, opts)
	if err != nil {
		return nil, err
	}

	qos := u.Int(optQoS, 0)
	if qos < 0 || qos > 2 {
		return nil, validationError("qos must be 0, 1 or 2, got %q", u.Query[optQoS])
	}

	topics := u.TargetsOf(notifyurl.KindTopic)
	if len(topics) == 0 {
		return nil, validationError("no topic in %s", u.Redacted())
	}

	n := &Notifier{
		Base:     base,
		broker:   brokerURL(u),
		clientID: u.Query[optClientID],
		qos:      byte(qos),
		retain:   u.Bool(optRetain, false),
		timeout:  defaultTimeout,
		topics:   topics,
		factory:  defaultFactory,
	}
	if n.clientID == "" {
		n.clientID = "pushcore-" + uuid.NewString()[:8]
	}
	for _, o := range options {
		o(n)
	}
	return n, nil
}

func validationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("adapters/mqtt").
		Category(errors.CategoryValidation).
		Build()
}

func brokerURL(u *notifyurl.ParsedURL) string {
	scheme, port := "tcp", defaultPort
	if u.Scheme == "mqtts" {
		scheme, port = "ssl", defaultSecurePort
	}
	if u.HasPort() {
		port = u.Port
	}
	return scheme + "://" + net.JoinHostPort(u.ASCIIHost(), strconv.Itoa(port))
}

// Descriptor describes the MQTT adapter.
func Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:          "MQTT",
		Schemes:       []string{"mqtt"},
		SecureSchemes: []string{"mqtts"},
		Capabilities:  Capabilities,
		Factory: func(u *notifyurl.ParsedURL, opts adapter.Options) (adapter.Notifier, error) {
			return New(u, opts)
		},
	}
}

// Broker returns the broker address the client dials.
func (n *Notifier) Broker() string { return n.broker }

// Notify implements adapter.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg *adapter.Message) error {
	return n.Deliver(ctx, msg, n.topics, n)
}

// URL implements adapter.Notifier.
func (n *Notifier) URL(redact bool) string {
	u := n.ParsedURL()
	u.Query[optQoS] = strconv.Itoa(int(n.qos))
	if n.retain {
		u.Query[optRetain] = "yes"
	} else {
		u.Query[optRetain] = "no"
	}
	return n.RenderURL(u, redact)
}

// Send implements adapter.Sender. It publishes the body to each topic in
// the request.
func (n *Notifier) Send(ctx context.Context, req *adapter.Request) error {
	var errs []error
	for _, topic := range req.Targets {
		err := n.Call(ctx, func(ctx context.Context, _ int) (int, error) {
			return 0, n.publish(ctx, topic.Value, req.Body)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) publish(ctx context.Context, topic, payload string) error {
	client, err := n.connect(ctx)
	if err != nil {
		return err
	}

	if err := n.wait(ctx, client.Publish(topic, n.qos, n.retain, payload)); err != nil {
		return retry.Transient(errors.Newf("publish to %s: %w", topic, err).
			Component("adapters/mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build())
	}
	n.Log.Debug("published", "topic", topic, "bytes", len(payload), "qos", n.qos)
	return nil
}

// connect returns a connected client, dialing on first use and after the
// connection dropped.
func (n *Notifier) connect(ctx context.Context) (Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.client != nil && n.client.IsConnected() {
		return n.client, nil
	}

	u := n.ParsedURL()
	opts := paho.NewClientOptions()
	opts.AddBroker(n.broker)
	opts.SetClientID(n.clientID)
	opts.SetUsername(u.User)
	opts.SetPassword(u.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(n.timeout)
	if u.Scheme == "mqtts" {
		opts.SetTLSConfig(&tls.Config{
			ServerName:         u.ASCIIHost(),
			InsecureSkipVerify: !n.Verify(), //nolint:gosec // opt-in via verify=no
		})
	}

	client := n.factory(opts)
	if err := n.wait(ctx, client.Connect()); err != nil {
		return nil, retry.Transient(errors.Newf("connect to %s: %w", n.broker, err).
			Component("adapters/mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", n.broker).
			Build())
	}
	n.Log.Info("connected to broker", "broker", n.broker, "client_id", n.clientID)
	n.client = client
	return client, nil
}

func (n *Notifier) wait(ctx context.Context, token paho.Token) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.client != nil && n.client.IsConnected() {
		n.client.Disconnect(250)
	}
	n.client = nil
	return nil
}
