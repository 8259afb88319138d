package attachment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/pushcore/internal/errors"
)

func TestAccessClassAllows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy AccessClass
		src    AccessClass
		want   bool
	}{
		{AccessLocal, AccessLocal, true},
		{AccessLocal, AccessHosted, true},
		{AccessLocal, AccessInaccessible, false},
		{AccessHosted, AccessHosted, true},
		{AccessHosted, AccessLocal, false},
		{AccessInaccessible, AccessHosted, false},
		{AccessInaccessible, AccessLocal, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.policy.Allows(tt.src), "%s allows %s", tt.policy, tt.src)
	}
}

func TestCollectionRejectsIncompatibleSource(t *testing.T) {
	t.Parallel()

	hosted := NewCollection(AccessHosted)

	err := hosted.Add(FromBytes("local.txt", []byte("x")))
	require.ErrorIs(t, err, ErrInaccessible)
	assert.True(t, errors.IsCategory(err, errors.CategoryAttachmentAccess))
	assert.Zero(t, hosted.Len())

	a, err := hosted.AddURL("https://example.com/file.png")
	require.NoError(t, err)
	assert.Same(t, a, hosted.At(0))

	_, err = hosted.AddURL("/etc/hostname")
	require.ErrorIs(t, err, ErrInaccessible)
	assert.Equal(t, 1, hosted.Len())

	none := NewCollection(AccessInaccessible)
	require.ErrorIs(t, none.Add(FromBytes("x", nil)), ErrInaccessible)
}

func TestCollectionRejectsNil(t *testing.T) {
	t.Parallel()

	c := NewCollection(AccessLocal)
	err := c.Add(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, c.Len())
}

func TestCollectionOrderAndSize(t *testing.T) {
	t.Parallel()

	c := NewCollection(AccessLocal)
	for _, name := range []string{"a", "bb", "ccc"} {
		require.NoError(t, c.Add(FromBytes(name, []byte(name))))
	}

	assert.Equal(t, 3, c.Len())
	assert.Zero(t, c.TotalSize(), "nothing resolved yet")

	require.NoError(t, c.ResolveAll(t.Context()))
	assert.Equal(t, int64(6), c.TotalSize())
	assert.Equal(t, "bb", c.At(1).Name())

	assert.True(t, c.Remove(1))
	assert.False(t, c.Remove(5))
	assert.Equal(t, []string{"a", "ccc"}, []string{c.At(0).Name(), c.At(1).Name()})
	assert.Equal(t, int64(4), c.TotalSize())

	first := c.First()
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, "a", first.At(0).Name())
	assert.Equal(t, 2, c.Len())
}

func TestCollectionResolveAllStopsOnFailure(t *testing.T) {
	t.Parallel()

	c := NewCollection(AccessLocal, WithMaxSize(2))
	require.NoError(t, c.Add(FromBytes("ok", []byte("ok"), WithMaxSize(2))))
	_, err := c.AddURL(t.TempDir() + "/missing.txt")
	require.NoError(t, err)

	err = c.ResolveAll(t.Context())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNilCollection(t *testing.T) {
	t.Parallel()

	var c *Collection
	assert.Zero(t, c.Len())
	assert.Nil(t, c.All())
	assert.Zero(t, c.TotalSize())
	assert.NoError(t, c.ResolveAll(t.Context()))
}

func TestParseCachePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		forever bool
		never   bool
		ttl     time.Duration
		wantErr bool
	}{
		{in: "yes", forever: true},
		{in: "True", forever: true},
		{in: "no", never: true},
		{in: "false", never: true},
		{in: "0", never: true},
		{in: "30", ttl: 30 * time.Second},
		{in: " 600 ", ttl: 10 * time.Minute},
		{in: "-1", wantErr: true},
		{in: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			p, err := ParseCachePolicy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.forever, p.IsForever())
			assert.Equal(t, tt.never, p.IsNever())
			ttl, isTTL := p.TTL()
			assert.Equal(t, tt.ttl != 0, isTTL)
			assert.Equal(t, tt.ttl, ttl)
		})
	}
}

func TestCachePolicyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "yes", CachePolicy{}.String())
	assert.Equal(t, "no", CacheNever().String())
	assert.Equal(t, "45", CacheTTL(45*time.Second).String())
	assert.True(t, CacheTTL(0).IsNever())
}

func TestParseAccessClass(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]AccessClass{
		"local": AccessLocal, "HOSTED": AccessHosted, "inaccessible": AccessInaccessible, "": AccessLocal,
	} {
		got, err := ParseAccessClass(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAccessClass("cloud")
	assert.Error(t, err)
}
