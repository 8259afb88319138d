// Package resolver turns notification URLs into parsed configuration bound
// to a registered adapter descriptor.
package resolver

import (
	"strings"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/privacy"
	"github.com/tphakala/pushcore/internal/registry"
)

// ErrUnsupportedScheme is matched by errors for URLs whose scheme has no
// usable adapter.
var ErrUnsupportedScheme = errors.Newf("unsupported notification scheme").
	Component("resolver").
	Category(errors.CategoryUnsupportedScheme).
	Build()

// Resolver parses URLs against a registry.
type Resolver struct {
	reg *registry.Registry
}

// New returns a resolver backed by reg.
func New(reg *registry.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Registry returns the backing registry.
func (r *Resolver) Registry() *registry.Registry {
	return r.reg
}

// Parse looks up the scheme of raw and parses it with the descriptor's
// extension sigil. Unknown schemes fail with ErrUnsupportedScheme, disabled
// ones with registry.ErrSchemeDisabled.
func (r *Resolver) Parse(raw string) (*notifyurl.ParsedURL, *registry.Descriptor, error) {
	scheme := notifyurl.Scheme(raw)
	d, err := r.reg.Resolve(scheme)
	switch {
	case errors.Is(err, registry.ErrSchemeDisabled):
		return nil, nil, err
	case err != nil:
		return nil, nil, unsupported(raw, scheme)
	}

	var opts []notifyurl.Option
	if d.ExtensionSigil != 0 {
		opts = append(opts, notifyurl.WithExtensionSigil(d.ExtensionSigil))
	}
	u, err := notifyurl.Parse(raw, opts...)
	if err != nil {
		return nil, nil, err
	}

	if d.Capabilities.RequiresHost && strings.TrimSpace(u.Host) == "" {
		return nil, nil, errors.Newf("%w: %s URL needs a host", notifyurl.ErrParse, scheme).
			Component("resolver").
			Category(errors.CategoryURLParse).
			Context("url", privacy.AnonymizeURL(raw)).
			Build()
	}
	return u, d, nil
}

func unsupported(raw, scheme string) error {
	return errors.Newf("%w: %q", ErrUnsupportedScheme, scheme).
		Component("resolver").
		Category(errors.CategoryUnsupportedScheme).
		Context("url", privacy.AnonymizeURL(raw)).
		Build()
}
