// env.go: environment variable bindings and their validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/pushcore/internal/attachment"
)

// EnvPrefix prefixes every environment variable pushcore reads.
const EnvPrefix = "PUSHCORE"

// envBinding ties a config key to an environment variable.
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"log.level", "PUSHCORE_LOG_LEVEL", validateEnvLogLevel},
		{"log.format", "PUSHCORE_LOG_FORMAT", validateEnvLogFormat},
		{"log.file", "PUSHCORE_LOG_FILE", nil},

		{"dispatch.concurrency", "PUSHCORE_DISPATCH_CONCURRENCY", validateEnvPositiveInt},
		{"dispatch.instancettl", "PUSHCORE_DISPATCH_INSTANCETTL", validateEnvDuration},
		{"dispatch.maxattempts", "PUSHCORE_DISPATCH_MAXATTEMPTS", validateEnvPositiveInt},
		{"dispatch.backoffinitial", "PUSHCORE_DISPATCH_BACKOFFINITIAL", validateEnvDuration},
		{"dispatch.backoffmax", "PUSHCORE_DISPATCH_BACKOFFMAX", validateEnvDuration},

		{"attachments.maxsize", "PUSHCORE_ATTACHMENTS_MAXSIZE", validateEnvSize},
		{"attachments.timeout", "PUSHCORE_ATTACHMENTS_TIMEOUT", validateEnvDuration},
		{"attachments.access", "PUSHCORE_ATTACHMENTS_ACCESS", validateEnvAccess},
		{"attachments.cache", "PUSHCORE_ATTACHMENTS_CACHE", validateEnvCache},

		{"metrics.listen", "PUSHCORE_METRICS_LISTEN", nil},

		{"sentry.enabled", "PUSHCORE_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "PUSHCORE_SENTRY_DSN", nil},

		{"urlsfile", "PUSHCORE_URLSFILE", nil},
	}
}

// configureEnvironment binds the table to v and validates values that are
// set. Invalid values are collected and reported together.
func configureEnvironment(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var problems []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateEnvSize(value string) error {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", d)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("must be one of: trace, debug, info, warn, error")
}

func validateEnvLogFormat(value string) error {
	switch strings.ToLower(value) {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("must be text or json")
}

func validateEnvAccess(value string) error {
	_, err := attachment.ParseAccessClass(value)
	return err
}

func validateEnvCache(value string) error {
	_, err := attachment.ParseCachePolicy(value)
	return err
}
