// Package adapters lists the built-in adapters.
package adapters

import (
	"sync"

	"github.com/tphakala/pushcore/internal/adapters/mqtt"
	"github.com/tphakala/pushcore/internal/adapters/shoutrrr"
	"github.com/tphakala/pushcore/internal/adapters/webhook"
	"github.com/tphakala/pushcore/internal/registry"
)

// Descriptors returns fresh descriptors for every built-in adapter.
func Descriptors() []*registry.Descriptor {
	return []*registry.Descriptor{
		webhook.JSONDescriptor(),
		webhook.FormDescriptor(),
		mqtt.Descriptor(),
		shoutrrr.Descriptor(),
	}
}

// RegisterAll registers the built-in adapters in reg. Schemes already
// present in reg keep their existing registration.
func RegisterAll(reg *registry.Registry) {
	for _, d := range Descriptors() {
		reg.RegisterDescriptor(d)
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *registry.Registry
)

// Default returns the process-wide registry holding the built-in adapters.
func Default() *registry.Registry {
	defaultOnce.Do(func() {
		defaultReg = registry.New()
		RegisterAll(defaultReg)
	})
	return defaultReg
}
