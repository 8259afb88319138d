package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/pushcore/internal/attachment"
	"github.com/tphakala/pushcore/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "text", s.Log.Format)
	assert.Equal(t, 4, s.Dispatch.Concurrency)
	assert.Equal(t, 30*time.Minute, s.Dispatch.InstanceTTL)
	assert.Equal(t, 3, s.Dispatch.MaxAttempts)
	assert.Equal(t, time.Second, s.Dispatch.BackoffInitial)
	assert.Equal(t, 30*time.Second, s.Dispatch.BackoffMax)
	assert.Equal(t, 30*time.Second, s.Attachments.Timeout)
	assert.Equal(t, "local", s.Attachments.Access)
	assert.Empty(t, s.URLs)
	assert.False(t, s.Sentry.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "pushcore.yaml", `
log:
  level: debug
  format: json
dispatch:
  concurrency: 8
  instancettl: 5m
  maxattempts: 5
  backoffinitial: 250ms
  backoffmax: 4s
attachments:
  maxsize: 1048576
  access: hosted
  cache: "60"
metrics:
  listen: 127.0.0.1:9101
urls:
  - json://hooks.example.org/bird
  - mqtt://broker/alerts?tag=garden
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)
	assert.Equal(t, 8, s.Dispatch.Concurrency)
	assert.Equal(t, 5*time.Minute, s.Dispatch.InstanceTTL)
	assert.Equal(t, 5, s.Dispatch.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, s.Dispatch.BackoffInitial)
	assert.Equal(t, 4*time.Second, s.Dispatch.BackoffMax)
	assert.Equal(t, int64(1048576), s.Attachments.MaxSize)
	assert.Equal(t, attachment.AccessHosted, s.AccessClass())
	assert.Equal(t, "127.0.0.1:9101", s.Metrics.Listen)
	assert.Equal(t, []string{"json://hooks.example.org/bird", "mqtt://broker/alerts?tag=garden"}, s.URLs)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeFile(t, "pushcore.yaml", "dispatch:\n  concurrency: 2\n")
	t.Setenv("PUSHCORE_DISPATCH_CONCURRENCY", "6")
	t.Setenv("PUSHCORE_DISPATCH_BACKOFFMAX", "90s")
	t.Setenv("PUSHCORE_LOG_LEVEL", "warn")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Dispatch.Concurrency)
	assert.Equal(t, 90*time.Second, s.Dispatch.BackoffMax)
	assert.Equal(t, "warn", s.Log.Level)
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PUSHCORE_DISPATCH_CONCURRENCY", "zero")
	t.Setenv("PUSHCORE_ATTACHMENTS_ACCESS", "public")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "PUSHCORE_DISPATCH_CONCURRENCY")
	assert.Contains(t, err.Error(), "PUSHCORE_ATTACHMENTS_ACCESS")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, "pushcore.yaml", "dispatch:\n  concurrency: 0\nlog:\n  format: xml\n")

	_, err := Load(path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}
