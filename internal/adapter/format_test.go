package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hello world", ConvertFormat("Hello <b>world</b>", FormatHTML, FormatText))
	assert.Equal(t, "1 &lt; 2<br/>ok", ConvertFormat("1 < 2\nok", FormatText, FormatHTML))
	assert.Equal(t, "*md*", ConvertFormat("*md*", FormatMarkdown, FormatText))
	assert.Equal(t, "<i>x</i>", ConvertFormat("<i>x</i>", FormatHTML, FormatHTML))
	assert.Empty(t, ConvertFormat("", FormatHTML, FormatText))
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{
		"":         FormatText,
		"TEXT":     FormatText,
		"html":     FormatHTML,
		"md":       FormatMarkdown,
		"Markdown": FormatMarkdown,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("rtf")
	assert.Error(t, err)
}

func TestParseNotifyType(t *testing.T) {
	t.Parallel()

	typ, err := ParseNotifyType("")
	require.NoError(t, err)
	assert.Equal(t, TypeInfo, typ)

	typ, err = ParseNotifyType("Warning")
	require.NoError(t, err)
	assert.Equal(t, TypeWarning, typ)

	_, err = ParseNotifyType("panic")
	assert.Error(t, err)
}
