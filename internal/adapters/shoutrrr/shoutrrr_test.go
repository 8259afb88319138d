package shoutrrr

import (
	"errors"
	"testing"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/notifyurl"
	"github.com/tphakala/pushcore/internal/retry"
)

type fakeSender struct {
	url    string
	errs   [][]error
	bodies []string
	titles []string
}

func (s *fakeSender) Send(message string, params *stypes.Params) []error {
	s.bodies = append(s.bodies, message)
	title, _ := params.Title()
	s.titles = append(s.titles, title)
	if len(s.errs) == 0 {
		return nil
	}
	out := s.errs[0]
	s.errs = s.errs[1:]
	return out
}

func newNotifier(t *testing.T, raw string, fs *fakeSender) *Notifier {
	t.Helper()
	u, err := notifyurl.Parse(raw)
	require.NoError(t, err)
	n, err := New(u, adapter.Options{Throttle: adapter.ThrottleOf(0), Backoff: retry.Fixed(0)},
		WithSenderFactory(func(rawURL string) (Sender, error) {
			fs.url = rawURL
			return fs, nil
		}))
	require.NoError(t, err)
	return n
}

func TestForwardsServiceURLWithoutCommonOptions(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	n := newNotifier(t, "discord://token@channel?tag=ops&format=html&splitlines=no", fs)

	assert.Equal(t, "discord://token@channel?splitlines=no", fs.url)
	assert.Equal(t, []string{"ops"}, n.Tags())
	assert.Equal(t, adapter.FormatHTML, n.Format())
}

func TestSendPassesTitleAndBody(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	n := newNotifier(t, "ntfy://ntfy.sh/birds", fs)

	require.NoError(t, n.Notify(t.Context(), &adapter.Message{Title: "Owl", Body: "spotted"}))
	assert.Equal(t, []string{"spotted"}, fs.bodies)
	assert.Equal(t, []string{"Owl"}, fs.titles)
}

func TestSendErrorsAreTransient(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{errs: [][]error{
		{errors.New("503 from https://hooks.example/abc")},
		{nil},
	}}
	n := newNotifier(t, "slack://hook", fs)

	require.NoError(t, n.Notify(t.Context(), &adapter.Message{Body: "x"}))
	assert.Len(t, fs.bodies, 2)

	fs.errs = [][]error{{errors.New("down")}, {errors.New("down")}, {errors.New("down")}}
	err := n.Notify(t.Context(), &adapter.Message{Body: "x"})
	require.ErrorIs(t, err, retry.ErrTransient)
}

func TestFactoryErrorIsReported(t *testing.T) {
	t.Parallel()

	u, err := notifyurl.Parse("teams://bad")
	require.NoError(t, err)
	_, err = New(u, adapter.Options{}, WithSenderFactory(func(string) (Sender, error) {
		return nil, errors.New("invalid webhook")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid webhook")
}

func TestDescriptor(t *testing.T) {
	t.Parallel()

	d := Descriptor()
	assert.Contains(t, d.Schemes, "discord")
	assert.Contains(t, d.Schemes, "telegram")
	assert.False(t, d.Capabilities.RequiresHost)
}
