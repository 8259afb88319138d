// defaults.go: default values for every configuration key
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers defaults on v. Every key that may come from the
// environment needs a default, otherwise Unmarshal does not see it.
func setDefaults(v *viper.Viper) {
	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	// Dispatch
	v.SetDefault("dispatch.concurrency", 4)
	v.SetDefault("dispatch.instancettl", 30*time.Minute)
	v.SetDefault("dispatch.maxattempts", 3)
	v.SetDefault("dispatch.backoffinitial", time.Second)
	v.SetDefault("dispatch.backoffmax", 30*time.Second)

	// Attachments
	v.SetDefault("attachments.maxsize", 0)
	v.SetDefault("attachments.timeout", 30*time.Second)
	v.SetDefault("attachments.access", "local")
	v.SetDefault("attachments.cache", "yes")

	v.SetDefault("metrics.listen", "")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")

	v.SetDefault("urls", []string{})
	v.SetDefault("urlsfile", "")
}
