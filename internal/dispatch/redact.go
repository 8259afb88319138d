package dispatch

import (
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/privacy"
)

// redactRaw masks credentials in a URL that may not parse.
func redactRaw(raw string) string {
	if u, err := notifyurl.Parse(raw); err == nil {
		return u.Redacted()
	}
	return privacy.AnonymizeURL(raw)
}

func schemeOf(raw string) string {
	return notifyurl.Scheme(raw)
}
