// urls.go: notification URL list files
package conf

import (
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/secrets"
)

// URLEntry is one item of a URL list file. In YAML it is either a bare URL
// string or a mapping with url and tag keys, where tag is a string or a list.
type URLEntry struct {
	URL  string
	Tags []string
}

type urlEntryDoc struct {
	URL string    `yaml:"url"`
	Tag yaml.Node `yaml:"tag"`
}

// UnmarshalYAML accepts the scalar and mapping forms.
func (e *URLEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		e.URL = strings.TrimSpace(node.Value)
		e.Tags = nil
		return nil
	case yaml.MappingNode:
		var doc urlEntryDoc
		if err := node.Decode(&doc); err != nil {
			return err
		}
		tags, err := decodeTags(&doc.Tag)
		if err != nil {
			return err
		}
		e.URL = strings.TrimSpace(doc.URL)
		e.Tags = tags
		return nil
	default:
		return errors.Newf("line %d: URL entry must be a string or a mapping", node.Line).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func decodeTags(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		return notifyurl.ParseList(node.Value), nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return nil, err
		}
		return notifyurl.ParseList(items...), nil
	default:
		return nil, errors.Newf("line %d: tag must be a string or a list", node.Line).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Raw returns the URL with the entry's tags merged into its tag= option.
// Tags already on the URL are kept.
func (e URLEntry) Raw() string {
	if len(e.Tags) == 0 {
		return e.URL
	}

	var existing []string
	if u, err := notifyurl.Parse(e.URL); err == nil {
		existing = u.List("tag")
	}
	merged := existing
	for _, t := range e.Tags {
		if !slices.Contains(merged, t) {
			merged = append(merged, t)
		}
	}

	sep := "?"
	if strings.Contains(e.URL, "?") {
		sep = "&"
	}
	return e.URL + sep + "tag=" + url.QueryEscape(strings.Join(merged, ","))
}

// ParseURLList decodes a URL list document: either a sequence of entries or
// a mapping with a urls key holding one. Entries with an empty URL are
// rejected.
func ParseURLList(data []byte) ([]URLEntry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	var entries []URLEntry
	var err error
	switch doc.Kind {
	case yaml.SequenceNode:
		err = doc.Decode(&entries)
	case yaml.MappingNode:
		var wrapper struct {
			URLs []URLEntry `yaml:"urls"`
		}
		err = doc.Decode(&wrapper)
		entries = wrapper.URLs
	default:
		err = errors.NewStd("URL list must be a sequence or contain a urls key")
	}
	if err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	for i, e := range entries {
		if e.URL == "" {
			return nil, errors.Newf("URL list entry %d has no url", i+1).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	return entries, nil
}

// LoadURLFile reads a URL list file and returns the URLs with secret
// references expanded and their tags merged in.
func LoadURLFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("urls_file", path).
			Build()
	}

	entries, err := ParseURLList(data)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(entries))
	for i, e := range entries {
		if e.URL, err = secrets.Expand(e.URL); err != nil {
			return nil, errors.New(err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Context("urls_file", path).
				Context("entry", i+1).
				Build()
		}
		urls[i] = e.Raw()
	}
	return urls, nil
}

// AllURLs returns the configured URLs followed by those from URLsFile, with
// secret references expanded.
func (s *Settings) AllURLs() ([]string, error) {
	urls := make([]string, len(s.URLs))
	for i, raw := range s.URLs {
		expanded, err := secrets.Expand(raw)
		if err != nil {
			return nil, err
		}
		urls[i] = expanded
	}
	if s.URLsFile == "" {
		return urls, nil
	}
	fromFile, err := LoadURLFile(s.URLsFile)
	if err != nil {
		return nil, err
	}
	return append(urls, fromFile...), nil
}
