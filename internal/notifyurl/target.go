package notifyurl

import (
	"regexp"
	"strings"
)

// TargetKind tags what a target addresses.
type TargetKind int

const (
	KindGeneric TargetKind = iota
	KindPhone
	KindEmail
	KindChannel
	KindTopic
	KindDevice
)

func (k TargetKind) String() string {
	switch k {
	case KindPhone:
		return "phone"
	case KindEmail:
		return "email"
	case KindChannel:
		return "channel"
	case KindTopic:
		return "topic"
	case KindDevice:
		return "device"
	default:
		return "generic"
	}
}

// Target is a single recipient.
type Target struct {
	Kind  TargetKind
	Value string
}

func (t Target) String() string {
	return t.Value
}

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9 ().-]{10,20}$`)
)

// ClassifyTarget guesses the kind of a raw target string. Topics and device
// ids cannot be told apart from generic names; adapters tag those
// explicitly with TargetsOf.
func ClassifyTarget(raw string) Target {
	v := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(v, "#"):
		return Target{Kind: KindChannel, Value: v}
	case emailRe.MatchString(v):
		return Target{Kind: KindEmail, Value: v}
	case phoneRe.MatchString(v) && digitCount(v) >= 10 && digitCount(v) <= 15:
		return Target{Kind: KindPhone, Value: v}
	default:
		return Target{Kind: KindGeneric, Value: v}
	}
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// TargetsOf returns Targets() tagged with a fixed kind.
func (u *ParsedURL) TargetsOf(kind TargetKind) []Target {
	raw := u.Targets()
	out := make([]Target, len(raw))
	for i, r := range raw {
		out[i] = Target{Kind: kind, Value: r}
	}
	return out
}

// Values strips the kinds from targets.
func Values(targets []Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Value
	}
	return out
}
