package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
)

func sampleBag() *diag.Bag {
	bag := diag.NewBag(10)
	bag.Add(diag.NewError(diag.SCFUnmatchedMerge, diag.Location{Graph: "split", Block: 0, Value: -1}, "if has no matching merge block").
		WithNote(diag.Location{Graph: "split", Block: 1, Value: -1}, "this branch returns"))
	bag.Add(diag.New(diag.SevWarning, diag.SCFCountedFallback, diag.Location{Graph: "q1", Block: 2, Value: 7}, "step moves away from the bound"))
	bag.Add(diag.New(diag.SevInfo, diag.ObsTimings, diag.Location{Graph: "q1", Block: -1, Value: -1}, "timings (pipeline): total 0.10 ms").
		WithNote(diag.NoLocation, `{"kind":"pipeline"}`))
	return bag
}

func TestPrettyPlain(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(), PrettyOpts{ShowNotes: true})
	want := "split:bb0: error SCF2002: if has no matching merge block\n" +
		"  note: split:bb1: this branch returns\n" +
		"q1:bb2/v7: warning SCF2006: step moves away from the bound\n" +
		"q1: info OBS6001: timings (pipeline): total 0.10 ms\n" +
		"  note: {\"kind\":\"pipeline\"}\n"
	assert.Equal(t, want, buf.String())
}

func TestPrettyMax(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(), PrettyOpts{Max: 1})
	assert.Equal(t, "split:bb0: error SCF2002: if has no matching merge block\n... 2 more diagnostics\n", buf.String())
}

func TestPrettyColor(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(), PrettyOpts{Color: true, Max: 1})
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleBag(), JSONOpts{}))

	var out DiagnosticsOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Equal(t, 3, out.Count)

	first := out.Diagnostics[0]
	assert.Equal(t, "ERROR", first.Severity)
	assert.Equal(t, "SCF2002", first.Code)
	assert.Equal(t, "split", first.Location.Graph)
	require.NotNil(t, first.Location.Block)
	assert.Equal(t, int32(0), *first.Location.Block)
	assert.Nil(t, first.Location.Value)
	assert.Empty(t, first.Notes, "notes are opt-in")

	timings := out.Diagnostics[2]
	require.Len(t, timings.Notes, 1, "timing payloads are always kept")
	assert.Equal(t, `{"kind":"pipeline"}`, timings.Notes[0].Message)
}

func TestJSONMaxAndNotes(t *testing.T) {
	out := BuildDiagnosticsOutput(sampleBag(), JSONOpts{Max: 1, IncludeNotes: true})
	require.Equal(t, 1, out.Count)
	require.Len(t, out.Diagnostics[0].Notes, 1)
	assert.Equal(t, "this branch returns", out.Diagnostics[0].Notes[0].Message)
}
