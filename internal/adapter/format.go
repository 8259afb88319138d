package adapter

import (
	"html"
	"strings"

	"github.com/k3a/html2text"

	"github.com/tphakala/pushcore/internal/errors"
)

// Format is a body markup format.
type Format string

const (
	FormatText     Format = "text"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts text, html and markdown (md). Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", errors.Newf("unknown body format %q", s).
			Component("adapter").
			Category(errors.CategoryValidation).
			Build()
	}
}

var newlines = strings.NewReplacer("\r\n", "<br/>", "\n", "<br/>", "\r", "<br/>")

// ConvertFormat renders body, written in from, for a service expecting to.
func ConvertFormat(body string, from, to Format) string {
	if from == to || body == "" {
		return body
	}
	switch {
	case from == FormatHTML:
		// html2text output is plain text that markdown renders sensibly too.
		return html2text.HTML2Text(body)
	case to == FormatHTML:
		return newlines.Replace(html.EscapeString(body))
	default:
		// Markdown and text are close enough to pass through.
		return body
	}
}
