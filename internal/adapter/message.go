package adapter

import (
	"strings"

	"github.com/tphakala/pushcore/internal/attachment"
	"github.com/tphakala/pushcore/internal/errors"
)

// NotifyType classifies a message.
type NotifyType string

const (
	TypeInfo    NotifyType = "info"
	TypeSuccess NotifyType = "success"
	TypeWarning NotifyType = "warning"
	TypeFailure NotifyType = "failure"
)

// ParseNotifyType accepts the four type names, case-insensitively. Empty
// means info.
func ParseNotifyType(s string) (NotifyType, error) {
	switch t := NotifyType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeInfo, nil
	case TypeInfo, TypeSuccess, TypeWarning, TypeFailure:
		return t, nil
	default:
		return "", errors.Newf("unknown notification type %q", s).
			Component("adapter").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Message is what a caller asks to deliver.
type Message struct {
	Title string
	Body  string
	Type  NotifyType
	// Format is the format Body is written in; empty means text.
	Format      Format
	Attachments *attachment.Collection
}

func (m *Message) notifyType() NotifyType {
	if m.Type == "" {
		return TypeInfo
	}
	return m.Type
}

func (m *Message) format() Format {
	if m.Format == "" {
		return FormatText
	}
	return m.Format
}
