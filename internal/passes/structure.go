package passes

import (
	"context"
	"strconv"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
	"github.com/nebulastream/nebulastream-sub003/internal/trace"
)

// Structure recovers loops and if regions from a graph built only from
// branch, if and return terminators.
type Structure struct {
	// CountedLoops enables counted-loop classification of loop headers.
	CountedLoops bool
}

func (*Structure) Name() string { return "structure" }

func (s *Structure) Apply(ctx context.Context, g *nir.Graph) error {
	if g.Applied.Has(nir.PhaseStructured) {
		return errorAt(diag.SCFAlreadyApplied, nir.NoBlockID, "structure already ran on %s", g.Func.Name)
	}
	for i := range g.Blocks {
		if g.Blocks[i].Term.Kind == nir.TermLoop {
			return errorAt(diag.SCFAlreadyApplied, g.Blocks[i].ID, "graph already holds loop terminators")
		}
	}
	if err := nir.Validate(g); err != nil {
		return malformed(err)
	}

	tr := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx).SpanID

	prepare(g)
	if err := canceled(ctx); err != nil {
		return err
	}

	if err := detectLoops(g); err != nil {
		return err
	}
	headers := 0
	for i := range g.Blocks {
		h := &g.Blocks[i]
		if !h.IsLoopHeader() {
			continue
		}
		headers++
		if !s.CountedLoops {
			continue
		}
		counted, miss := classifyCounted(g, h)
		if miss != "" {
			trace.Point(tr, trace.ScopeBlock, "counted-loop", h.ID.String()+": "+string(miss), parent)
			continue
		}
		h.Term.Loop.HasCounted = true
		h.Term.Loop.Counted = counted
		trace.Point(tr, trace.ScopeBlock, "counted-loop", h.ID.String()+": "+formatCounted(counted), parent)
	}
	if err := canceled(ctx); err != nil {
		return err
	}

	if err := buildMerges(g); err != nil {
		return err
	}
	g.Applied |= nir.PhaseStructured
	trace.Point(tr, trace.ScopePass, "structure", strconv.Itoa(headers)+" loop headers", parent)
	return nil
}

func formatCounted(c nir.CountedLoop) string {
	dir := "up"
	if !c.Increasing {
		dir = "down"
	}
	return c.Induction.String() + " [" + strconv.FormatInt(c.Lower, 10) + ", " +
		strconv.FormatInt(c.Upper, 10) + ") step " + strconv.FormatInt(c.Step, 10) + " " + dir
}
