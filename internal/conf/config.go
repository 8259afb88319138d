// config.go: settings for the pushcore CLI and the functions that load them.
package conf

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/secrets"
)

// LogSettings controls the process logger.
type LogSettings struct {
	Level  string // trace, debug, info, warn or error
	Format string // text or json
	File   string // optional rotated log file, in addition to stderr
}

// DispatchSettings tunes the dispatcher and the adapters it builds.
type DispatchSettings struct {
	Concurrency    int           // parallel deliveries per Notify call
	InstanceTTL    time.Duration // how long idle adapter instances stay cached
	MaxAttempts    int           // attempts per request, retries included
	BackoffInitial time.Duration // first retry delay
	BackoffMax     time.Duration // retry delay cap
}

// AttachmentSettings applies to every attachment the CLI adds.
type AttachmentSettings struct {
	MaxSize int64         // bytes, 0 selects the attachment default
	Timeout time.Duration // remote fetch timeout
	Access  string        // local, hosted or inaccessible
	Cache   string        // cache= value: yes, no or seconds
}

// MetricsSettings exposes the prometheus registry over HTTP.
type MetricsSettings struct {
	Listen string // host:port, empty disables the listener
}

// SentrySettings enables error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings is the root configuration.
type Settings struct {
	Log         LogSettings
	Dispatch    DispatchSettings
	Attachments AttachmentSettings
	Metrics     MetricsSettings
	Sentry      SentrySettings

	URLs     []string // notification URLs used when none are given on the command line
	URLsFile string   // YAML URL list, see LoadURLFile
}

// ConfigName is the base name of the config file, without extension.
const ConfigName = "pushcore"

// Load reads settings from path, or from the default search paths when path
// is empty. A missing file is only an error when path is given. Environment
// variables override file values.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if err := configureEnvironment(v); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, dir := range defaultConfigPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Context("config_file", path).
				Build()
		}
	}

	settings := &Settings{}
	err := v.Unmarshal(settings)
	if err != nil {
		return nil, errors.Newf("error unmarshaling config: %w", err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("config_file", v.ConfigFileUsed()).
			Build()
	}

	if settings.Sentry.DSN, err = secrets.Expand(settings.Sentry.DSN); err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// defaultConfigPaths lists directories searched for pushcore.yaml, most
// specific first.
func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pushcore"))
	}
	return append(paths, "/etc/pushcore")
}
