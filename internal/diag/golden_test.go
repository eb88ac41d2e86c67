package diag

import (
	"testing"
)

func TestFormatGoldenDiagnostics(t *testing.T) {
	diags := []Diagnostic{
		{
			Severity: SevError,
			Code:     SCFUnmatchedMerge,
			Message:  "first line\nsecond",
			Primary:  Location{Graph: "q1", Block: 3, Value: -1},
			Notes: []Note{
				{At: Location{Graph: "q1", Block: 4, Value: 7}, Msg: "note line"},
			},
		},
		{
			Severity: SevWarning,
			Code:     IRUndefinedValue,
			Message:  "another",
			Primary:  Location{Graph: "q1", Block: 1, Value: 2},
		},
		{
			Severity: SevInfo,
			Code:     ObsTimings,
			Message:  "timings",
			Primary:  NoLocation,
		},
	}

	expected := "info OBS6001 - timings\n" +
		"warning IR1005 q1:bb1/v2 another\n" +
		"error SCF2002 q1:bb3 first line second\n" +
		"note SCF2002 q1:bb4/v7 note line"

	if got := FormatGoldenDiagnostics(diags, true); got != expected {
		t.Fatalf("unexpected golden diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(8)
	at := Location{Graph: "g", Block: 2, Value: -1}
	b.Add(NewError(SCFMissingMerge, at, "missing"))
	b.Add(NewError(SCFMissingMerge, at, "missing"))
	b.Add(New(SevWarning, IRUnreachableBlock, Location{Graph: "g", Block: 0, Value: -1}, "dead"))
	b.Dedup()
	b.Sort()

	if b.Len() != 2 {
		t.Fatalf("expected 2 diagnostics after dedup, got %d", b.Len())
	}
	if b.Items()[0].Code != IRUnreachableBlock {
		t.Fatalf("expected bb0 first, got %s", b.Items()[0].Code.ID())
	}
	if !b.HasErrors() {
		t.Fatalf("expected errors")
	}
}

func TestBagLimit(t *testing.T) {
	b := NewBag(1)
	if !b.Add(NewError(IRMalformed, NoLocation, "a")) {
		t.Fatalf("first add rejected")
	}
	if b.Add(NewError(IRMalformed, NoLocation, "b")) {
		t.Fatalf("second add accepted past limit")
	}
}

func TestSeverityLabels(t *testing.T) {
	for sev, want := range map[Severity]string{SevInfo: "info", SevWarning: "warning", SevError: "error"} {
		if got := sev.Label(); got != want {
			t.Errorf("%s.Label() = %q, want %q", sev, got, want)
		}
	}
}
