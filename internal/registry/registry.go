// Package registry maps URL schemes to adapter descriptors.
package registry

import (
	"slices"
	"strings"
	"sync"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
)

// Factory builds a configured adapter instance from a parsed URL.
type Factory func(u *notifyurl.ParsedURL, opts adapter.Options) (adapter.Notifier, error)

// Descriptor describes one adapter: the schemes it serves, what it can do
// and how to build it.
type Descriptor struct {
	Name string
	// Schemes are served over plain transports, SecureSchemes over TLS.
	Schemes       []string
	SecureSchemes []string

	Capabilities adapter.Capabilities

	// ExtensionSigil, when set, routes query keys starting with it into
	// ParsedURL.Extension.
	ExtensionSigil byte

	Factory Factory
}

// AllSchemes returns the plain then secure schemes.
func (d *Descriptor) AllSchemes() []string {
	return slices.Concat(d.Schemes, d.SecureSchemes)
}

// IsSecure reports whether scheme is one of the descriptor's TLS schemes.
func (d *Descriptor) IsSecure(scheme string) bool {
	return slices.Contains(d.SecureSchemes, strings.ToLower(scheme))
}

var (
	// ErrSchemeNotFound is returned by Resolve for schemes nobody registered.
	ErrSchemeNotFound = errors.Newf("scheme not registered").
				Component("registry").
				Category(errors.CategoryNotFound).
				Build()

	// ErrSchemeDisabled is returned by Resolve for registered but disabled schemes.
	ErrSchemeDisabled = errors.Newf("scheme disabled").
				Component("registry").
				Category(errors.CategorySchemeDisabled).
				Build()
)

// Registry is a scheme to descriptor table. It is populated at startup and
// read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Descriptor
	disabled map[string]bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[string]*Descriptor),
		disabled: make(map[string]bool),
	}
}

// Register binds scheme to d. The first registration of a scheme wins; later
// ones are ignored and Register returns false.
func (r *Registry) Register(scheme string, d *Descriptor) bool {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" || d == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.entries[scheme]; taken {
		return false
	}
	r.entries[scheme] = d
	return true
}

// RegisterDescriptor registers every scheme of d and returns how many were
// new.
func (r *Registry) RegisterDescriptor(d *Descriptor) int {
	if d == nil {
		return 0
	}
	n := 0
	for _, s := range d.AllSchemes() {
		if r.Register(s, d) {
			n++
		}
	}
	return n
}

// Resolve returns the descriptor registered for scheme.
func (r *Registry) Resolve(scheme string) (*Descriptor, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))

	r.mu.RLock()
	d, ok := r.entries[scheme]
	off := r.disabled[scheme]
	r.mu.RUnlock()

	switch {
	case !ok:
		return nil, errors.Newf("%w: %s", ErrSchemeNotFound, scheme).
			Component("registry").
			Category(errors.CategoryNotFound).
			Context("scheme", scheme).
			Build()
	case off:
		return nil, errors.Newf("%w: %s", ErrSchemeDisabled, scheme).
			Component("registry").
			Category(errors.CategorySchemeDisabled).
			Context("scheme", scheme).
			Build()
	}
	return d, nil
}

// Disable makes scheme resolve to ErrSchemeDisabled. It reports whether the
// scheme is registered.
func (r *Registry) Disable(scheme string) bool {
	return r.setDisabled(scheme, true)
}

// Enable reverses Disable.
func (r *Registry) Enable(scheme string) bool {
	return r.setDisabled(scheme, false)
}

func (r *Registry) setDisabled(scheme string, off bool) bool {
	scheme = strings.ToLower(strings.TrimSpace(scheme))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[scheme]; !ok {
		return false
	}
	if off {
		r.disabled[scheme] = true
	} else {
		delete(r.disabled, scheme)
	}
	return true
}

// Enabled reports whether scheme is registered and not disabled.
func (r *Registry) Enabled(scheme string) bool {
	_, err := r.Resolve(scheme)
	return err == nil
}

// Schemes returns every registered scheme, sorted.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for s := range r.entries {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Descriptors returns each distinct registered descriptor once, ordered by
// name.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	seen := make(map[*Descriptor]bool, len(r.entries))
	out := make([]*Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Descriptor) int { return strings.Compare(a.Name, b.Name) })
	return out
}
