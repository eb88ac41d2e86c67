package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRingTracerKeepsLastEvents(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeBlock, name, "", 0)
	}
	got := r.Snapshot()
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "c" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got[0].Seq >= got[1].Seq {
		t.Fatalf("sequence not increasing: %d %d", got[0].Seq, got[1].Seq)
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	r := NewRingTracer(8, LevelPhase)
	span := Begin(r, ScopePass, "structure", 0)
	Point(r, ScopeBlock, "counted-loop", "bb1: skipped", span.ID())
	Begin(r, ScopeGraph, "graph:q1", span.ID()).End("")
	span.End("")

	got := r.Snapshot()
	if len(got) != 2 {
		t.Fatalf("expected begin/end only, got %d events", len(got))
	}
	if got[0].Kind != KindSpanBegin || got[1].Kind != KindSpanEnd {
		t.Fatalf("unexpected kinds: %s %s", got[0].Kind, got[1].Kind)
	}
}

func TestFilteredSpanIsInert(t *testing.T) {
	r := NewRingTracer(8, LevelPhase)
	span := Begin(r, ScopeBlock, "bb3", 0)
	if span.ID() != 0 {
		t.Fatalf("filtered span got id %d", span.ID())
	}
	span.WithExtra("k", "v").End("")
	if n := len(r.Snapshot()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "ERROR", " phase", "Detail", "debug"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if LevelOff.ShouldEmit(ScopeDriver) || LevelError.ShouldEmit(ScopeDriver) {
		t.Fatal("off and error levels admit no scopes")
	}
	if !LevelDebug.ShouldEmit(ScopeBlock) || LevelDetail.ShouldEmit(ScopeBlock) {
		t.Fatal("block scope is debug only")
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelDetail, FormatText)
	Begin(st, ScopeGraph, "graph:q1", 0).WithExtra("blocks", "4").WithExtra("a", "1").End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "graph      > graph:q1") {
		t.Fatalf("unexpected begin line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "< graph:q1 (ok) {a=1, blocks=4}") {
		t.Fatalf("unexpected end line %q", lines[1])
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelPhase, FormatNDJSON)
	Point(st, ScopePass, "cse", "removed=2", 7)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["kind"] != "point" || got["scope"] != "pass" || got["detail"] != "removed=2" || got["parent"] != float64(7) {
		t.Fatalf("unexpected event %v", got)
	}
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write([]byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestStreamTracerKeepsFirstWriteError(t *testing.T) {
	w := &failingWriter{}
	st := NewStreamTracer(w, LevelPhase, FormatText)
	Point(st, ScopePass, "a", "", 0)
	Point(st, ScopePass, "b", "", 0)
	if w.calls != 1 {
		t.Fatalf("expected writes to stop after the first error, got %d", w.calls)
	}
	if err := st.Flush(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected write error from Flush, got %v", err)
	}
}

func TestNewModes(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	multi, ok := tr.(*MultiTracer)
	if !ok {
		t.Fatalf("expected MultiTracer, got %T", tr)
	}
	Point(tr, ScopePass, "structure", "", 0)
	ring, ok := multi.Ring()
	if !ok || len(ring.Snapshot()) != 1 || buf.Len() == 0 {
		t.Fatal("event did not reach both sinks")
	}

	off, err := New(Config{Level: LevelOff, Mode: ModeStream})
	if err != nil || off != Nop {
		t.Fatalf("expected Nop for LevelOff, got %v %v", off, err)
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestHeartbeat(t *testing.T) {
	r := NewRingTracer(64, LevelPhase)
	h := StartHeartbeat(r, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(r.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	got := r.Snapshot()
	if len(got) == 0 || got[0].Kind != KindHeartbeat || got[0].Detail != "#1" {
		t.Fatalf("unexpected heartbeat events: %+v", got)
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatal("disabled tracer must not start a heartbeat")
	}
	var nilBeat *Heartbeat
	nilBeat.Stop()
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("expected Nop tracer")
	}
	r := NewRingTracer(1, LevelDebug)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Fatalf("tracer not propagated")
	}
	ctx = WithSpanContext(ctx, SpanContext{SpanID: 9})
	if CurrentSpan(ctx).SpanID != 9 {
		t.Fatal("span context not propagated")
	}
}
