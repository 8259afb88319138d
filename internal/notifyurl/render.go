package notifyurl

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/tphakala/pushcore/internal/privacy"
)

// String renders the URL in canonical form: query keys sorted within each
// class, plain options first. Parsing the result yields the same targets and
// options.
func (u *ParsedURL) String() string {
	return u.render(false)
}

// Redacted renders the URL with the password masked, for logs.
func (u *ParsedURL) Redacted() string {
	return u.render(true)
}

func (u *ParsedURL) render(redact bool) string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")

	if u.Scheme != FileScheme {
		if u.User != "" || u.Password != "" {
			b.WriteString(escape(u.User))
			if u.Password != "" {
				b.WriteByte(':')
				if redact {
					b.WriteString(privacy.PasswordMask)
				} else {
					b.WriteString(escape(u.Password))
				}
			}
			b.WriteByte('@')
		}
		b.WriteString(u.HostPort())
	}

	b.WriteString(u.renderPath())

	if q := u.renderQuery(redact); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

func (u *ParsedURL) renderPath() string {
	if len(u.Segments) == 0 {
		if u.Scheme == FileScheme {
			return u.Path
		}
		return ""
	}

	escaped := make([]string, len(u.Segments))
	for i, s := range u.Segments {
		escaped[i] = url.PathEscape(s)
	}
	p := strings.Join(escaped, "/")

	// Relative file paths stay relative.
	if u.Scheme != FileScheme || strings.HasPrefix(u.Path, "/") {
		p = "/" + p
	}
	if strings.HasSuffix(u.Path, "/") {
		p += "/"
	}
	return p
}

func (u *ParsedURL) renderQuery(redact bool) string {
	var parts []string
	appendClass := func(m map[string]string, sigil string, mask func(string) string) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			v := m[k]
			if mask != nil {
				v = mask(v)
			}
			parts = append(parts, sigil+escape(k)+"="+escape(v))
		}
	}

	// Header values often carry tokens.
	var headerMask func(string) string
	if redact {
		headerMask = privacy.MaskSecret
	}

	appendClass(u.Query, "", nil)
	appendClass(u.Data, string(SigilData), nil)
	appendClass(u.Template, string(SigilTemplate), nil)
	appendClass(u.Headers, string(SigilHeader), headerMask)
	if u.ExtensionSigil != 0 {
		appendClass(u.Extension, string(u.ExtensionSigil), nil)
	}
	return strings.Join(parts, "&")
}

// escape percent-encodes s for any URL component. Spaces become %20 since
// Parse does not treat '+' as a space.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// EncodePath percent-encodes a filesystem path segment by segment.
func EncodePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// ID returns a stable identifier built from the parts that select the
// destination: scheme, credentials, host, port and path segments. Options do
// not influence it.
func (u *ParsedURL) ID() string {
	h := sha256.New()
	parts := append([]string{u.Scheme, u.User, u.Password, u.Host, strconv.Itoa(u.Port)}, u.Segments...)
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
