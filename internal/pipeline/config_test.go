package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulastream/nebulastream-sub003/internal/passes"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), cfg.Options())
	assert.Equal(t, path, cfg.Path)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[pipeline]
passes = ["structure", "constprop"]
counted_loops = false
constprop_iterations = 3
verify = false
jobs = 4

[trace]
level = "detail"
mode = "ring"

[cache]
enabled = true
dir = "/tmp/nautc-cache"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	opts := cfg.Options()
	assert.Equal(t, []string{"structure", "constprop"}, opts.Passes)
	assert.Equal(t, passes.Options{CountedLoops: false, ConstPropIterations: 3}, opts.Pass)
	assert.False(t, opts.Verify)
	assert.Equal(t, 4, opts.Jobs)
	assert.Equal(t, "detail", cfg.Trace.Level)
	assert.Equal(t, "ring", cfg.Trace.Mode)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/nautc-cache", cfg.Cache.Dir)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[pipeline]\ninline = true\n", "unknown keys: pipeline.inline"},
		{"unknown pass", "[pipeline]\npasses = [\"structure\", \"licm\"]\n", `unknown pass "licm"`},
		{"negative iterations", "[pipeline]\nconstprop_iterations = -1\n", "constprop_iterations must not be negative"},
		{"negative jobs", "[pipeline]\njobs = -2\n", "jobs must not be negative"},
		{"bad syntax", "[pipeline\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, t.TempDir(), tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "")
	nested := filepath.Join(root, "queries", "q1")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, ok, err := FindConfig(nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestFindConfigMissing(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := FindConfig(dir)
	require.NoError(t, err)
	// A nautc.toml above the temp dir would be found; only assert when absent.
	if ok {
		t.Skip("a nautc.toml exists above the temp directory")
	}
	assert.False(t, ok)
}
