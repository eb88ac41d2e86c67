package passes

import (
	"errors"

	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// Verify checks the contract a structured graph offers to code generation:
// every reachable if has a merge, every loop is complete and dominates its
// loop end, and no unreachable block is left.
func Verify(g *nir.Graph) error {
	if !g.Applied.Has(nir.PhaseStructured) {
		return errorAt(diag.OPTPhaseOrder, nir.NoBlockID, "graph is not structured")
	}
	if err := nir.Validate(g); err != nil {
		return malformed(err)
	}

	var errs []error
	reach := g.Reachable()
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if !reach[i] {
			errs = append(errs, errorAt(diag.IRUnreachableBlock, bb.ID, "block is unreachable"))
			continue
		}
		switch bb.Term.Kind {
		case nir.TermIf:
			if bb.Term.If.Merge == nir.NoBlockID {
				errs = append(errs, errorAt(diag.SCFMissingMerge, bb.ID, "if has no merge block"))
			}
		case nir.TermLoop:
			if err := verifyLoop(g, bb); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	dom := dominators(g)
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if bb.Term.Kind != nir.TermLoop {
			continue
		}
		if !dominates(dom, bb.ID, bb.Term.Loop.LoopEnd) {
			errs = append(errs, errorAt(diag.SCFLoopEndNotDominated, bb.ID,
				"loop header does not dominate loop end %s", bb.Term.Loop.LoopEnd))
		}
	}
	return errors.Join(errs...)
}

func verifyLoop(g *nir.Graph, bb *nir.Block) error {
	loop := &bb.Term.Loop
	if !bb.IsLoopHeader() {
		return errorAt(diag.SCFLoopMalformed, bb.ID, "loop terminator on a block without back edges")
	}
	end := g.Block(loop.LoopEnd)
	if end == nil {
		return errorAt(diag.SCFLoopMalformed, bb.ID, "loop has no loop end")
	}
	backEdge := false
	for _, s := range g.Successors(end.ID) {
		backEdge = backEdge || s == bb.ID
	}
	if !backEdge {
		return errorAt(diag.SCFLoopMalformed, bb.ID, "loop end %s does not branch to the header", end.ID)
	}
	if loop.HasCounted {
		c := loop.Counted
		if c.Step <= 0 || c.Lower >= c.Upper {
			return errorAt(diag.SCFLoopMalformed, bb.ID, "counted range [%d, %d) step %d", c.Lower, c.Upper, c.Step)
		}
	}
	return nil
}

// dominators builds the dominator tree of the reachable control-flow graph.
// Self edges are dropped: they never change dominance.
func dominators(g *nir.Graph) flow.DominatorTree {
	cfg := simple.NewDirectedGraph()
	reach := g.Reachable()
	for i := range g.Blocks {
		if reach[i] {
			cfg.AddNode(simple.Node(g.Blocks[i].ID))
		}
	}
	for i := range g.Blocks {
		if !reach[i] {
			continue
		}
		from := g.Blocks[i].ID
		for _, to := range g.Successors(from) {
			if to == from {
				continue
			}
			cfg.SetEdge(cfg.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}
	return flow.Dominators(simple.Node(g.Func.Entry), cfg)
}

func dominates(dom flow.DominatorTree, a, b nir.BlockID) bool {
	for n := int64(b); ; {
		if n == int64(a) {
			return true
		}
		idom := dom.DominatorOf(n)
		if idom == nil {
			return false
		}
		n = idom.ID()
	}
}
