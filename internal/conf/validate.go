// validate.go: validation of loaded settings
package conf

import (
	"fmt"
	"net"
	"strings"

	"github.com/tphakala/pushcore/internal/attachment"
	"github.com/tphakala/pushcore/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// Validate checks every section and reports all problems at once. The
// returned error wraps a ValidationError.
func (s *Settings) Validate() error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateLogSettings(&s.Log)...)
	ve.Errors = append(ve.Errors, validateDispatchSettings(&s.Dispatch)...)
	ve.Errors = append(ve.Errors, validateAttachmentSettings(&s.Attachments)...)
	ve.Errors = append(ve.Errors, validateMetricsSettings(&s.Metrics)...)

	for i, raw := range s.URLs {
		if strings.TrimSpace(raw) == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("urls[%d] is empty", i))
		}
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("error_count", len(ve.Errors)).
			Build()
	}
	return nil
}

func validateLogSettings(s *LogSettings) []string {
	var errs []string
	if validateEnvLogLevel(s.Level) != nil {
		errs = append(errs, fmt.Sprintf("log.level %q must be one of trace, debug, info, warn, error", s.Level))
	}
	if validateEnvLogFormat(s.Format) != nil {
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", s.Format))
	}
	return errs
}

func validateDispatchSettings(s *DispatchSettings) []string {
	var errs []string
	if s.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("dispatch.concurrency must be at least 1, got %d", s.Concurrency))
	}
	if s.InstanceTTL < 0 {
		errs = append(errs, "dispatch.instancettl must not be negative")
	}
	if s.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("dispatch.maxattempts must be at least 1, got %d", s.MaxAttempts))
	}
	if s.BackoffInitial <= 0 {
		errs = append(errs, "dispatch.backoffinitial must be positive")
	}
	if s.BackoffMax < s.BackoffInitial {
		errs = append(errs, fmt.Sprintf("dispatch.backoffmax (%s) must not be below dispatch.backoffinitial (%s)",
			s.BackoffMax, s.BackoffInitial))
	}
	return errs
}

func validateAttachmentSettings(s *AttachmentSettings) []string {
	var errs []string
	if s.MaxSize < 0 {
		errs = append(errs, "attachments.maxsize must not be negative")
	}
	if s.Timeout <= 0 {
		errs = append(errs, "attachments.timeout must be positive")
	}
	if _, err := attachment.ParseAccessClass(s.Access); err != nil {
		errs = append(errs, fmt.Sprintf("attachments.access: %v", err))
	}
	if _, err := attachment.ParseCachePolicy(s.Cache); err != nil {
		errs = append(errs, fmt.Sprintf("attachments.cache: %v", err))
	}
	return errs
}

func validateMetricsSettings(s *MetricsSettings) []string {
	if s.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return []string{fmt.Sprintf("metrics.listen %q must be host:port", s.Listen)}
	}
	return nil
}
