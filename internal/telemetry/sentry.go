// Package telemetry provides opt-in, privacy-filtered error reporting to Sentry.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/pushcore/internal/conf"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/privacy"
)

// FlushTimeout bounds how long Flush waits for queued events.
const FlushTimeout = 2 * time.Second

// InitSentry initializes the Sentry SDK and routes enhanced errors to it. It
// does nothing unless telemetry is enabled. An empty DSN falls back to the
// SENTRY_DSN environment variable.
func InitSentry(settings *conf.Settings, release string, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)
	if !settings.Sentry.Enabled {
		logger.Debug("sentry telemetry is disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          "pushcore@" + release,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return errors.Newf("sentry initialization failed: %w", err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	logger.Info("sentry telemetry enabled")
	return nil
}

// Flush waits for queued events to be sent.
func Flush() {
	sentry.Flush(FlushTimeout)
}

// applyPrivacyFilters removes identifying data from an event and scrubs
// URLs and credentials from messages.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil
	event.Modules = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	// Remove extra fields except allowed ones
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	return event
}
