package passes

import (
	"github.com/oleiade/lane"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// detectLoops walks true branches depth first and turns every candidate if
// reached again from its own true subtree into a loop header. The first back
// edge found replaces the if with a Loop whose LoopEnd is the edge source.
func detectLoops(g *nir.Graph) error {
	n := len(g.Blocks)
	visited := make([]bool, n)
	candidate := make([]bool, n)
	ifs := lane.NewStack()

	cur := g.Func.Entry
	prior := cur
	returnSeen := false
	for {
		/* follow one branch until a return or a block seen before */
		for !visited[cur] && g.Blocks[cur].Term.Kind != nir.TermReturn {
			bb := &g.Blocks[cur]
			switch bb.Term.Kind {
			case nir.TermBranch:
				visited[cur] = true
				prior = cur
				cur = bb.Term.Branch.Next.Target
			case nir.TermIf:
				candidate[cur] = true
				ifs.Push(cur)
				visited[cur] = true
				prior = cur
				cur = bb.Term.If.True.Target
			default:
				return errorAt(diag.SCFAlreadyApplied, cur, "unexpected %s terminator before structuring", bb.Term.Kind)
			}
		}

		if candidate[cur] {
			markLoopHeader(&g.Blocks[cur], prior)
		}

		empty := ifs.Empty()
		returnSeen = returnSeen || g.Blocks[cur].Term.Kind == nir.TermReturn
		if empty {
			if returnSeen {
				return nil
			}
			return errorAt(diag.IRNoReturn, cur, "no return is reachable from the entry")
		}

		/* the true subtree of the top if is exhausted: loops only close on it */
		top := ifs.Pop().(nir.BlockID)
		candidate[top] = false
		prior = top
		switch term := &g.Blocks[top].Term; term.Kind {
		case nir.TermLoop:
			cur = term.Loop.Exit.Target
		default:
			cur = term.If.False.Target
		}
	}
}

// markLoopHeader records one back edge from loopEnd into bb.
func markLoopHeader(bb *nir.Block, loopEnd nir.BlockID) {
	if bb.BackEdges == 0 {
		cond := bb.Term.If
		bb.Term = nir.Terminator{
			Kind: nir.TermLoop,
			Loop: nir.LoopTerm{
				Cond:    cond.Cond,
				Body:    cond.True,
				Exit:    cond.False,
				LoopEnd: loopEnd,
			},
		}
	}
	bb.BackEdges++
}
