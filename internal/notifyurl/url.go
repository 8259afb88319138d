// Package notifyurl parses notification URLs of the form
//
//	scheme://[user[:password]@]host[:port][/seg1/seg2/...][?query]
//
// into a ParsedURL. Query keys are split into classes by their first
// character: '+' payload data, ':' template substitutions, '-' transport
// headers, an optional schema-specific extension sigil, and plain options.
//
// Parsing here is purely lexical; scheme lookup against the adapter registry
// happens in the resolver package.
package notifyurl

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/idna"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/privacy"
)

// FileScheme is synthesized for inputs that carry no scheme.
const FileScheme = "file"

// Query key sigils.
const (
	SigilData     = '+'
	SigilTemplate = ':'
	SigilHeader   = '-'
)

// ErrParse is matched by every error returned from Parse.
var ErrParse = errors.Newf("malformed notification URL").
	Component("notifyurl").
	Category(errors.CategoryURLParse).
	Build()

var schemeRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.\-]*)://`)

// ParsedURL is the structured form of a notification URL.
type ParsedURL struct {
	Scheme   string
	User     string
	Password string
	Host     string
	// Port is 0 when the URL carries none.
	Port int
	// Path is the percent-decoded path including its leading slash.
	Path string
	// Segments holds the non-empty, percent-decoded path segments in order.
	Segments []string

	// Query holds plain options; keys are lower-cased and the last value wins.
	Query map[string]string
	// Data holds '+' prefixed keys (free-form payload fields).
	Data map[string]string
	// Template holds ':' prefixed keys (template substitutions).
	Template map[string]string
	// Headers holds '-' prefixed keys (transport headers).
	Headers map[string]string
	// Extension holds keys prefixed with the schema-specific sigil, if any.
	Extension      map[string]string
	ExtensionSigil byte

	// Raw is the input as given to Parse (after synthesis of file://).
	Raw string
}

type parseOptions struct {
	extensionSigil byte
}

// Option tweaks parsing.
type Option func(*parseOptions)

// WithExtensionSigil routes query keys starting with sigil to the Extension map.
// The reserved sigils '+', ':' and '-' are ignored.
func WithExtensionSigil(sigil byte) Option {
	return func(o *parseOptions) {
		switch sigil {
		case SigilData, SigilTemplate, SigilHeader:
			return
		}
		o.extensionSigil = sigil
	}
}

// Scheme returns the lower-cased scheme of raw, or FileScheme when raw has none.
func Scheme(raw string) string {
	if m := schemeRe.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		return strings.ToLower(m[1])
	}
	return FileScheme
}

// HasScheme reports whether raw starts with scheme://.
func HasScheme(raw string) bool {
	return schemeRe.MatchString(strings.TrimSpace(raw))
}

// Parse decomposes raw into a ParsedURL. Inputs without a scheme are treated
// as filesystem paths and parsed as file:// URLs.
func Parse(raw string, opts ...Option) (*ParsedURL, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, parseError("empty URL", raw)
	}

	m := schemeRe.FindStringSubmatch(raw)
	if m == nil {
		raw = FileScheme + "://" + EncodePath(raw)
		m = schemeRe.FindStringSubmatch(raw)
	}

	u := &ParsedURL{
		Scheme:         strings.ToLower(m[1]),
		Query:          map[string]string{},
		Data:           map[string]string{},
		Template:       map[string]string{},
		Headers:        map[string]string{},
		Extension:      map[string]string{},
		ExtensionSigil: o.extensionSigil,
		Raw:            raw,
	}

	rest := raw[len(m[0]):]
	var rawQuery string
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest, rawQuery = rest[:i], rest[i+1:]
	}

	rawPath := rest
	if u.Scheme != FileScheme {
		authority := rest
		rawPath = ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			authority, rawPath = rest[:i], rest[i:]
		}
		if err := u.parseAuthority(authority); err != nil {
			return nil, err
		}
	}

	if err := u.parsePath(rawPath); err != nil {
		return nil, err
	}
	if err := u.parseQuery(rawQuery); err != nil {
		return nil, err
	}

	return u, nil
}

func (u *ParsedURL) parseAuthority(authority string) error {
	hostport := authority
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		userinfo := authority[:i]
		hostport = authority[i+1:]

		rawUser, rawPass, hasPass := strings.Cut(userinfo, ":")
		user, err := unescape(rawUser)
		if err != nil {
			return parseError("invalid escape in user", u.Raw)
		}
		u.User = user
		if hasPass {
			pass, err := unescape(rawPass)
			if err != nil {
				return parseError("invalid escape in password", u.Raw)
			}
			u.Password = pass
		}
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return parseError(err.Error(), u.Raw)
	}
	decoded, err := unescape(host)
	if err != nil {
		return parseError("invalid escape in host", u.Raw)
	}
	u.Host = decoded
	u.Port = port
	return nil
}

// splitHostPort separates an optional port, accepting bracketed IPv6 hosts.
func splitHostPort(hostport string) (string, int, error) {
	host, portStr := hostport, ""
	hasPort := false

	if strings.HasPrefix(hostport, "[") {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return "", 0, errors.NewStd("unterminated IPv6 host")
		}
		host = hostport[1:end]
		tail := hostport[end+1:]
		if tail != "" {
			if tail[0] != ':' {
				return "", 0, errors.NewStd("unexpected characters after IPv6 host")
			}
			portStr, hasPort = tail[1:], true
		}
	} else if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		host, portStr, hasPort = hostport[:i], hostport[i+1:], true
	}

	if !hasPort {
		return host, 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, errors.NewStd("invalid port")
	}
	return host, port, nil
}

func (u *ParsedURL) parsePath(rawPath string) error {
	if rawPath == "" {
		return nil
	}
	decoded, err := unescape(rawPath)
	if err != nil {
		return parseError("invalid escape in path", u.Raw)
	}
	u.Path = decoded

	for seg := range strings.SplitSeq(rawPath, "/") {
		if seg == "" {
			continue
		}
		s, err := unescape(seg)
		if err != nil {
			return parseError("invalid escape in path", u.Raw)
		}
		u.Segments = append(u.Segments, s)
	}
	return nil
}

func (u *ParsedURL) parseQuery(rawQuery string) error {
	if rawQuery == "" {
		return nil
	}
	for _, pair := range strings.FieldsFunc(rawQuery, func(r rune) bool { return r == '&' || r == ';' }) {
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		if rawKey == "" {
			continue
		}

		// '+' past the first character means space in keys; the first one is a sigil.
		rawKey = rawKey[:1] + strings.ReplaceAll(rawKey[1:], "+", " ")

		key, err := unescape(rawKey)
		if err != nil {
			return parseError("invalid escape in query key", u.Raw)
		}
		value, err := unescape(rawValue)
		if err != nil {
			return parseError("invalid escape in query value", u.Raw)
		}
		value = strings.TrimSpace(value)

		switch sigil := key[0]; {
		case sigil == SigilData:
			setPrefixed(u.Data, key, value)
		case sigil == SigilTemplate:
			setPrefixed(u.Template, key, value)
		case sigil == SigilHeader:
			setPrefixed(u.Headers, key, value)
		case u.ExtensionSigil != 0 && sigil == u.ExtensionSigil:
			setPrefixed(u.Extension, key, value)
		default:
			if k := strings.ToLower(strings.TrimSpace(key)); k != "" {
				u.Query[k] = value
			}
		}
	}
	return nil
}

// setPrefixed stores value under key without its sigil; empty values are kept.
func setPrefixed(m map[string]string, key, value string) {
	if name := key[1:]; name != "" {
		m[name] = value
	}
}

func unescape(s string) (string, error) {
	return url.PathUnescape(s)
}

func parseError(reason, raw string) error {
	return errors.Newf("malformed notification URL: %s", reason).
		Component("notifyurl").
		Category(errors.CategoryURLParse).
		Context("url", privacy.AnonymizeURL(raw)).
		Build()
}

// HasPort reports whether the URL carried an explicit port.
func (u *ParsedURL) HasPort() bool {
	return u.Port != 0
}

// HostPort joins host and port, bracketing IPv6 hosts.
func (u *ParsedURL) HostPort() string {
	if u.Port == 0 {
		if strings.Contains(u.Host, ":") {
			return "[" + u.Host + "]"
		}
		return u.Host
	}
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// ASCIIHost returns the host converted to its IDNA ASCII form for dialing.
// Hosts that cannot be converted are returned unchanged.
func (u *ParsedURL) ASCIIHost() string {
	if net.ParseIP(u.Host) != nil {
		return u.Host
	}
	ascii, err := idna.ToASCII(u.Host)
	if err != nil {
		return u.Host
	}
	return ascii
}

// Get returns a plain query option.
func (u *ParsedURL) Get(key string) (string, bool) {
	v, ok := u.Query[strings.ToLower(key)]
	return v, ok
}

// Bool returns a plain option parsed as a boolean, or def when absent or unparsable.
func (u *ParsedURL) Bool(key string, def bool) bool {
	v, ok := u.Get(key)
	if !ok {
		return def
	}
	return ParseBool(v, def)
}

// Int returns a plain option parsed as an integer, or def when absent or unparsable.
func (u *ParsedURL) Int(key string, def int) int {
	v, ok := u.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float returns a plain option parsed as a float, or def when absent or unparsable.
func (u *ParsedURL) Float(key string, def float64) float64 {
	v, ok := u.Get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// List returns a plain option split with ParseList.
func (u *ParsedURL) List(key string) []string {
	v, _ := u.Get(key)
	return ParseList(v)
}

// Targets returns the path segments followed by any to= entries.
func (u *ParsedURL) Targets() []string {
	out := make([]string, 0, len(u.Segments))
	out = append(out, u.Segments...)
	if to, ok := u.Get("to"); ok {
		out = append(out, ParseList(to)...)
	}
	return dedupe(out)
}

// Clone returns a deep copy.
func (u *ParsedURL) Clone() *ParsedURL {
	c := *u
	c.Segments = append([]string(nil), u.Segments...)
	c.Query = cloneMap(u.Query)
	c.Data = cloneMap(u.Data)
	c.Template = cloneMap(u.Template)
	c.Headers = cloneMap(u.Headers)
	c.Extension = cloneMap(u.Extension)
	return &c
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var boolTrue = map[string]bool{
	"yes": true, "y": true, "true": true, "t": true, "1": true,
	"on": true, "enable": true, "enabled": true, "allow": true, "+": true,
}

var boolFalse = map[string]bool{
	"no": true, "n": true, "false": true, "f": true, "0": true,
	"off": true, "disable": true, "disabled": true, "deny": true, "never": true, "-": true,
}

// ParseBool interprets the common yes/no spellings used in URL options.
func ParseBool(s string, def bool) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case boolTrue[s]:
		return true
	case boolFalse[s]:
		return false
	default:
		return def
	}
}

var listSplitRe = regexp.MustCompile(`[ \t\r\n,\\/]+`)

// ParseList splits values on whitespace, commas and slashes, dropping
// empties and duplicates while keeping first-seen order.
func ParseList(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, item := range listSplitRe.Split(v, -1) {
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
