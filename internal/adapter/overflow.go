package adapter

import (
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/pushcore/internal/errors"
)

// OverflowMode selects what happens to a body longer than the service accepts.
type OverflowMode string

const (
	// OverflowUpstream sends the message unchanged and lets the service decide.
	OverflowUpstream OverflowMode = "upstream"
	// OverflowTruncate cuts the body at the limit.
	OverflowTruncate OverflowMode = "truncate"
	// OverflowSplit sends the body as several messages.
	OverflowSplit OverflowMode = "split"
)

// ParseOverflow accepts upstream, truncate and split. Empty means upstream.
func ParseOverflow(s string) (OverflowMode, error) {
	switch m := OverflowMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return OverflowUpstream, nil
	case OverflowUpstream, OverflowTruncate, OverflowSplit:
		return m, nil
	default:
		return "", errors.Newf("unknown overflow mode %q", s).
			Component("adapter").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Chunk is one message produced by overflow handling.
type Chunk struct {
	Title string
	Body  string
}

// ApplyOverflow fits title and body into caps. Services without a title
// get it folded into the body. Long titles are cut. The body is then left
// alone, cut, or split according to mode; split chunks carry the title on
// the first chunk only. Text is NFC-normalized first so that limits count
// composed characters and cuts never separate a combining mark from its base.
func ApplyOverflow(title, body string, caps Capabilities, mode OverflowMode, format Format) []Chunk {
	title = norm.NFC.String(strings.TrimSpace(title))
	body = norm.NFC.String(strings.TrimRight(body, " \t\r\n"))

	if caps.MaxTitleLength == 0 && title != "" {
		body = foldTitle(title, body, format)
		title = ""
	}
	if caps.MaxTitleLength > 0 {
		title = strings.TrimRight(truncateRunes(title, caps.MaxTitleLength), " \t")
	}

	limit := caps.MaxBodyLength
	if mode == OverflowUpstream || limit <= 0 || utf8.RuneCountInString(body) <= limit {
		return []Chunk{{Title: title, Body: body}}
	}

	if mode == OverflowTruncate {
		return []Chunk{{Title: title, Body: strings.TrimSpace(truncateRunes(body, limit))}}
	}

	var chunks []Chunk
	for part := range splitRunes(body, limit) {
		c := Chunk{Body: part}
		if len(chunks) == 0 {
			c.Title = title
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func foldTitle(title, body string, format Format) string {
	switch format {
	case FormatHTML:
		return "<b>" + title + "</b><br />\r\n" + body
	case FormatMarkdown:
		if t := strings.TrimLeft(title, "\r\n \t\v\f#-"); t != "" {
			return "# " + t + "\r\n" + body
		}
		return body
	default:
		return title + "\r\n" + body
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// splitRunes yields consecutive pieces of s of at most n runes each.
func splitRunes(s string, n int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for s != "" {
			piece := truncateRunes(s, n)
			if !yield(piece) {
				return
			}
			s = s[len(piece):]
		}
	}
}
