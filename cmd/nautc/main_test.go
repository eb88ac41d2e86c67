package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

var graphsDir = filepath.Join("..", "..", "internal", "pipeline", "testdata", "graphs")

func fixture(name string) string { return filepath.Join(graphsDir, name+".yaml") }

// execute runs nautc with an empty config and color off.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "nautc.toml")
	require.NoError(t, os.WriteFile(cfg, nil, 0o600))

	a := newApp()
	root := a.rootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfg, "--color", "off"}, args...))
	err = root.Execute()
	a.teardown()
	return out.String(), errOut.String(), err
}

func TestOptimizeToStdout(t *testing.T) {
	stdout, stderr, err := execute(t, "optimize", "--ui", "off", fixture("lt"))
	require.NoError(t, err, stderr)

	want, err := os.ReadFile(filepath.Join("..", "..", "internal", "pipeline", "testdata", "golden", "lt.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), stdout)
	assert.Contains(t, stderr, "ok: 1 graphs, 0 failed, 0 cached")
}

func TestOptimizeReportsPassFailure(t *testing.T) {
	_, stderr, err := execute(t, "optimize", "--ui", "off", "--diag-format", "short", fixture("split"), fixture("lt"))
	require.Error(t, err)
	assert.Contains(t, stderr, "error SCF2002 split:bb0")
	assert.Contains(t, stderr, "failed: 2 graphs, 1 failed, 0 cached")
}

func TestOptimizeMissingFile(t *testing.T) {
	_, stderr, err := execute(t, "optimize", "--ui", "off", "--diag-format", "short", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, stderr, "IO4001")
}

func TestOptimizeWritesDirectory(t *testing.T) {
	dir := t.TempDir()
	_, stderr, err := execute(t, "optimize", "--ui", "off", "--emit", "yaml", "-o", dir, fixture("lt"), fixture("count"))
	require.NoError(t, err, stderr)

	for _, name := range []string{"lt", "count"} {
		f, err := os.Open(filepath.Join(dir, name+".yaml"))
		require.NoError(t, err)
		g, err := nir.LoadYAML(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, name, g.Func.Name)
		assert.True(t, g.Applied.Has(nir.PhaseStructured|nir.PhaseConstProp|nir.PhaseCSE))
	}
}

func TestOptimizeMsgpackSingleFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "count.mp")
	_, stderr, err := execute(t, "optimize", "--ui", "off", "--emit", "msgpack", "-o", out, fixture("count"))
	require.NoError(t, err, stderr)

	stdout, _, err := execute(t, "dump", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "counted(v0 [0, 10) step 1 up)")
}

func TestOptimizeFlagsOverrideDefaults(t *testing.T) {
	stdout, stderr, err := execute(t, "optimize", "--ui", "off", "--passes", "structure", "--no-counted-loops", fixture("count"))
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "applied=structured\n")
	assert.Contains(t, stdout, "loop v7 body")
	assert.NotContains(t, stdout, "counted(")
}

func TestOptimizeRejectsUnknownPass(t *testing.T) {
	_, _, err := execute(t, "optimize", "--ui", "off", "--passes", "structure,licm", fixture("lt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown pass "licm"`)
}

func TestOptimizeUsesCache(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	_, stderr, err := execute(t, "optimize", "--ui", "off", "--cache", fixture("count"))
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "0 cached")

	_, stderr, err = execute(t, "optimize", "--ui", "off", "--cache", fixture("count"))
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "1 cached")
}

func TestOptimizeTimings(t *testing.T) {
	_, stderr, err := execute(t, "--timings", "optimize", "--ui", "off", "--diag-format", "json", fixture("lt"))
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "timings:")
	assert.Contains(t, stderr, `"code": "OBS6001"`)
}

func TestOptimizeTraceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	_, stderr, err := execute(t, "--trace", path, "--trace-level", "phase", "optimize", "--ui", "off", fixture("lt"))
	require.NoError(t, err, stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, name := range []string{"optimize", "structure", "constprop", "cse"} {
		assert.Contains(t, string(data), name)
	}
}

func TestDumpYAMLRoundTrip(t *testing.T) {
	stdout, _, err := execute(t, "dump", "--emit", "yaml", fixture("count"))
	require.NoError(t, err)
	g, err := nir.LoadYAML(strings.NewReader(stdout))
	require.NoError(t, err)
	assert.Equal(t, "count", g.Func.Name)
	assert.Len(t, g.Blocks, 4)
}

func TestVerify(t *testing.T) {
	stdout, _, err := execute(t, "verify", fixture("count"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok: count is structured")

	_, stderr, err := execute(t, "verify", "--diag-format", "short", fixture("split"))
	require.Error(t, err)
	assert.Contains(t, stderr, "SCF2002")
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, "nautc", payload["tool"])
	assert.NotEmpty(t, payload["version"])
}

func TestBadColorFlag(t *testing.T) {
	a := newApp()
	root := a.rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--color", "sometimes", "version"})
	err := root.Execute()
	a.teardown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --color value")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "out.nir", outputPath("out.nir", false, "q1", emitDump))
	assert.Equal(t, filepath.Join("dir", "a_b.yaml"), outputPath("dir", true, "a/b", emitYAML))
	assert.Equal(t, filepath.Join("dir", "q1.mp"), outputPath("dir", true, "q1", emitMsgpack))
}
