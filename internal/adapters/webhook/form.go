package webhook

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"slices"
	"strings"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/registry"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type formEncoder struct{}

func (formEncoder) attachFields(context.Context, *adapter.Request) (map[string]any, error) {
	return nil, nil
}

func (formEncoder) encode(ctx context.Context, fields map[string]any, req *adapter.Request) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fmt.Sprint(fields[k])); err != nil {
			return nil, "", formError(err)
		}
	}

	for i, a := range req.Attachments {
		data, err := a.Resolve(ctx)
		if err != nil {
			return nil, "", err
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file%02d"; filename="%s"`,
			i+1, quoteEscaper.Replace(a.NameOr(fallbackName(i+1)))))
		h.Set("Content-Type", a.MimeType())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", formError(err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", formError(err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", formError(err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func formError(err error) error {
	return errors.New(err).
		Component("adapters/webhook").
		Category(errors.CategoryValidation).
		Build()
}

// NewForm builds a form:// or forms:// notifier.
func NewForm(u *notifyurl.ParsedURL, opts adapter.Options) (*Notifier, error) {
	return newNotifier(u, u.Scheme == "forms", formEncoder{}, opts)
}

// FormDescriptor describes the multipart form adapter.
func FormDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:          "Form",
		Schemes:       []string{"form"},
		SecureSchemes: []string{"forms"},
		Capabilities:  Capabilities,
		Factory: func(u *notifyurl.ParsedURL, opts adapter.Options) (adapter.Notifier, error) {
			return NewForm(u, opts)
		},
	}
}
