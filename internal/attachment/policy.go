package attachment

import (
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
)

// Location tells whether content lives on this host or must be downloaded.
type Location int

const (
	LocationLocal Location = iota
	LocationRemote
)

func (l Location) String() string {
	if l == LocationRemote {
		return "remote"
	}
	return "local"
}

// AccessClass tags which deployments may use a source.
type AccessClass int

const (
	// AccessInaccessible sources may not be used at all.
	AccessInaccessible AccessClass = iota
	// AccessHosted sources are fetched over the network.
	AccessHosted
	// AccessLocal sources read this host's filesystem or memory.
	AccessLocal
)

func (a AccessClass) String() string {
	switch a {
	case AccessHosted:
		return "hosted"
	case AccessLocal:
		return "local"
	default:
		return "inaccessible"
	}
}

// ParseAccessClass accepts "local", "hosted" and "inaccessible".
func ParseAccessClass(s string) (AccessClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return AccessLocal, nil
	case "hosted":
		return AccessHosted, nil
	case "inaccessible", "none":
		return AccessInaccessible, nil
	default:
		return AccessInaccessible, errors.Newf("unknown attachment access class %q", s).
			Component("attachment").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Allows reports whether a collection restricted to a may hold a source of
// class src. Local deployments take local and hosted sources, hosted ones
// take only hosted sources, and inaccessible ones take nothing.
func (a AccessClass) Allows(src AccessClass) bool {
	switch a {
	case AccessLocal:
		return src == AccessLocal || src == AccessHosted
	case AccessHosted:
		return src == AccessHosted
	default:
		return false
	}
}

type cacheKind int

const (
	cacheForever cacheKind = iota
	cacheNever
	cacheTTL
)

// CachePolicy controls how long resolved content is reused. The zero value
// caches forever.
type CachePolicy struct {
	kind cacheKind
	ttl  time.Duration
}

// CacheForever reuses the first successful resolution for the attachment's lifetime.
func CacheForever() CachePolicy { return CachePolicy{kind: cacheForever} }

// CacheNever re-resolves on every access.
func CacheNever() CachePolicy { return CachePolicy{kind: cacheNever} }

// CacheTTL reuses content for ttl after it was resolved. A ttl of zero or
// less is CacheNever.
func CacheTTL(ttl time.Duration) CachePolicy {
	if ttl <= 0 {
		return CacheNever()
	}
	return CachePolicy{kind: cacheTTL, ttl: ttl}
}

// IsForever reports whether content is kept for the attachment's lifetime.
func (p CachePolicy) IsForever() bool { return p.kind == cacheForever }

// IsNever reports whether content is never reused.
func (p CachePolicy) IsNever() bool { return p.kind == cacheNever }

// TTL returns the reuse window for TTL policies.
func (p CachePolicy) TTL() (time.Duration, bool) {
	return p.ttl, p.kind == cacheTTL
}

func (p CachePolicy) String() string {
	switch p.kind {
	case cacheNever:
		return "no"
	case cacheTTL:
		return strconv.FormatInt(int64(p.ttl/time.Second), 10)
	default:
		return "yes"
	}
}

// fresh reports whether content resolved at resolvedAt may be reused at now.
func (p CachePolicy) fresh(resolvedAt, now time.Time) bool {
	switch p.kind {
	case cacheForever:
		return true
	case cacheTTL:
		return now.Sub(resolvedAt) <= p.ttl
	default:
		return false
	}
}

// ParseCachePolicy reads the cache= option: a boolean or a number of seconds.
func ParseCachePolicy(s string) (CachePolicy, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return CachePolicy{}, errors.Newf("cache seconds must not be negative: %d", secs).
				Component("attachment").
				Category(errors.CategoryValidation).
				Build()
		}
		return CacheTTL(time.Duration(secs) * time.Second), nil
	}

	// An unknown word maps to neither true nor false.
	if notifyurl.ParseBool(s, true) && !notifyurl.ParseBool(s, false) {
		return CachePolicy{}, errors.Newf("invalid cache value %q", s).
			Component("attachment").
			Category(errors.CategoryValidation).
			Build()
	}
	if notifyurl.ParseBool(s, false) {
		return CacheForever(), nil
	}
	return CacheNever(), nil
}
