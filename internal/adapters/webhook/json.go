package webhook

import (
	"context"
	"encoding/json"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/registry"
)

type jsonAttachment struct {
	Filename string `json:"filename"`
	Base64   string `json:"base64"`
	MimeType string `json:"mimetype"`
}

type jsonEncoder struct{}

// attachFields always sets attachments, as an empty list when there are none.
func (jsonEncoder) attachFields(ctx context.Context, req *adapter.Request) (map[string]any, error) {
	list := make([]jsonAttachment, 0, len(req.Attachments))
	for i, a := range req.Attachments {
		data, err := a.Base64(ctx)
		if err != nil {
			return nil, err
		}
		list = append(list, jsonAttachment{
			Filename: a.NameOr(fallbackName(i + 1)),
			Base64:   data,
			MimeType: a.MimeType(),
		})
	}
	return map[string]any{"attachments": list}, nil
}

func (jsonEncoder) encode(_ context.Context, fields map[string]any, _ *adapter.Request) ([]byte, string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, "", errors.New(err).
			Component("adapters/webhook").
			Category(errors.CategoryValidation).
			Build()
	}
	return body, "application/json", nil
}

// NewJSON builds a json:// or jsons:// notifier.
func NewJSON(u *notifyurl.ParsedURL, opts adapter.Options) (*Notifier, error) {
	return newNotifier(u, u.Scheme == "jsons", jsonEncoder{}, opts)
}

// JSONDescriptor describes the JSON adapter.
func JSONDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:          "JSON",
		Schemes:       []string{"json"},
		SecureSchemes: []string{"jsons"},
		Capabilities:  Capabilities,
		Factory: func(u *notifyurl.ParsedURL, opts adapter.Options) (adapter.Notifier, error) {
			return NewJSON(u, opts)
		},
	}
}
