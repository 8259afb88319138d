// runtime.go: conversion of settings into the options the engine consumes
package conf

import (
	"log/slog"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/attachment"
	"github.com/tphakala/pushcore/internal/dispatch"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/observability/metrics"
	"github.com/tphakala/pushcore/internal/retry"
)

// LogLevel returns the parsed log level.
func (s *Settings) LogLevel() slog.Level {
	return logging.ParseLevel(s.Log.Level)
}

// AccessClass returns the attachment access policy. Validate has already
// rejected unknown values.
func (s *Settings) AccessClass() attachment.AccessClass {
	access, err := attachment.ParseAccessClass(s.Attachments.Access)
	if err != nil {
		return attachment.AccessInaccessible
	}
	return access
}

// AttachmentOptions returns the options applied to every attachment.
func (s *Settings) AttachmentOptions(logger *slog.Logger, m *metrics.DispatchMetrics) []attachment.Option {
	opts := []attachment.Option{
		attachment.WithMaxSize(s.Attachments.MaxSize),
		attachment.WithTimeout(s.Attachments.Timeout),
		attachment.WithMetrics(m),
		attachment.WithLogger(logger),
	}
	if policy, err := attachment.ParseCachePolicy(s.Attachments.Cache); err == nil {
		opts = append(opts, attachment.WithCachePolicy(policy))
	}
	return opts
}

// DispatchConfig returns the dispatcher configuration, including the options
// handed to every adapter instance.
func (s *Settings) DispatchConfig(logger *slog.Logger, m *metrics.DispatchMetrics) dispatch.Config {
	return dispatch.Config{
		Concurrency: s.Dispatch.Concurrency,
		InstanceTTL: s.Dispatch.InstanceTTL,
		Adapter: adapter.Options{
			Logger:            logger,
			Metrics:           m,
			MaxAttempts:       s.Dispatch.MaxAttempts,
			Backoff:           retry.Exponential(s.Dispatch.BackoffInitial, s.Dispatch.BackoffMax),
			AttachmentOptions: s.AttachmentOptions(logger, m),
		},
	}
}
