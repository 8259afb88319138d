package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/pushcore/internal/conf"
)

func TestRootLoadsConfigBeforeSubcommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pushcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\ndispatch:\n  concurrency: 7\n"), 0o600))

	app := &App{Settings: &conf.Settings{}, Version: "test"}
	t.Cleanup(func() { _ = app.Close() })

	root := RootCommand(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "--log-level", "error", "schemes"})
	require.NoError(t, root.ExecuteContext(t.Context()))

	assert.Equal(t, 7, app.Settings.Dispatch.Concurrency)
	assert.Equal(t, "error", app.Settings.Log.Level)
	assert.Contains(t, out.String(), "ADAPTER")
}

func TestRootRejectsBadLogLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	app := &App{Settings: &conf.Settings{}, Version: "test"}
	root := RootCommand(app)
	root.SetArgs([]string{"--log-level", "chatty", "schemes"})
	assert.Error(t, root.ExecuteContext(t.Context()))
}

func TestExecuteMissingConfig(t *testing.T) {
	code := Execute(t.Context(), "test", []string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "schemes"})
	assert.Equal(t, 1, code)
}
