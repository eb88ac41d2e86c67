package passes

import (
	"fortio.org/safecast"
	"github.com/oleiade/lane"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// ifCandidate is an if whose region is still open. trueBranch is cleared
// once the walk switches to the false edge.
type ifCandidate struct {
	block      nir.BlockID
	trueBranch bool
}

// mergeWalker assigns merge blocks by counting the edges that still have to
// arrive at each block.
type mergeWalker struct {
	g           *nir.Graph
	cands       *lane.Stack
	merges      *lane.Stack
	visits      map[nir.BlockID]uint32
	bodyEntered []bool
	scoped      []bool
	budget      int
}

func newMergeWalker(g *nir.Graph) *mergeWalker {
	edges := 0
	for i := range g.Blocks {
		edges += len(g.Blocks[i].Term.Edges())
	}
	return &mergeWalker{
		g:           g,
		cands:       lane.NewStack(),
		merges:      lane.NewStack(),
		visits:      make(map[nir.BlockID]uint32),
		bodyEntered: make([]bool, len(g.Blocks)),
		scoped:      make([]bool, len(g.Blocks)),
		budget:      4*(edges+len(g.Blocks)) + 8,
	}
}

// buildMerges runs the walk and checks that every reachable if got a merge.
func buildMerges(g *nir.Graph) error {
	w := newMergeWalker(g)
	if err := w.walk(); err != nil {
		return err
	}
	reach := g.Reachable()
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if reach[i] && bb.Term.Kind == nir.TermIf && bb.Term.If.Merge == nir.NoBlockID {
			return errorAt(diag.SCFMissingMerge, bb.ID, "if has no merge block")
		}
	}
	return nil
}

func (w *mergeWalker) step(at nir.BlockID) error {
	w.budget--
	if w.budget < 0 {
		return errorAt(diag.SCFUnmatchedMerge, at, "merge walk does not terminate")
	}
	return nil
}

func (w *mergeWalker) walk() error {
	g := w.g
	cur := g.Func.Entry
	newVisit := true
	found := true

	for found {
		/* descend until an open merge block or the return */
		for {
			if err := w.step(cur); err != nil {
				return err
			}
			var err error
			cur, found, err = w.check(cur, newVisit)
			if err != nil {
				return err
			}
			bb := &g.Blocks[cur]
			if found || bb.Term.Kind == nir.TermReturn {
				break
			}
			w.setScope(bb)
			switch bb.Term.Kind {
			case nir.TermBranch:
				cur = bb.Term.Branch.Next.Target
			case nir.TermIf:
				w.cands.Push(&ifCandidate{block: cur, trueBranch: true})
				cur = bb.Term.If.True.Target
			case nir.TermLoop:
				w.bodyEntered[cur] = true
				delete(w.visits, cur)
				cur = bb.Term.Loop.Body.Target
			}
			newVisit = true
		}

		if !found {
			w.setScope(&g.Blocks[cur])
			break
		}

		if w.cands.Empty() {
			return errorAt(diag.SCFUnmatchedMerge, cur, "merge point without an open if")
		}
		top := w.cands.Head().(*ifCandidate)
		if top.trueBranch {
			/* true branch done: remember the merge and explore the false branch */
			top.trueBranch = false
			w.merges.Push(cur)
			cur = g.Blocks[top.block].Term.If.False.Target
			newVisit = true
			continue
		}

		if w.merges.Empty() || w.merges.Head().(nir.BlockID) != cur {
			return &Error{
				Code:  diag.SCFMergeMismatch,
				Block: top.block,
				Value: nir.NoValueID,
				Msg:   "false branch reached " + cur.String() + " instead of its merge block",
			}
		}
		/* close every false-mode if that shares this merge */
		for {
			merge := w.merges.Pop().(nir.BlockID)
			closed := w.cands.Pop().(*ifCandidate)
			g.Blocks[closed.block].Term.If.Merge = merge
			if w.cands.Empty() || w.merges.Empty() {
				break
			}
			next := w.cands.Head().(*ifCandidate)
			if next.trueBranch || w.merges.Head().(nir.BlockID) != cur {
				break
			}
		}
		newVisit = false
	}

	if !w.cands.Empty() {
		open := w.cands.Head().(*ifCandidate)
		return errorAt(diag.SCFUnmatchedMerge, open.block, "if branches never reconverge")
	}
	return nil
}

// check counts the open edges of cur. A loop header whose body is exhausted
// hands over to its exit block. The returned block is where the walk stands.
func (w *mergeWalker) check(cur nir.BlockID, newVisit bool) (nir.BlockID, bool, error) {
	for {
		bb := &w.g.Blocks[cur]
		prior := 0
		count, seen := w.visits[cur]
		if seen {
			prior = int(count) - 1
		}

		var open int
		if !w.bodyEntered[cur] {
			open = len(bb.Preds) - prior
			if bb.IsLoopHeader() {
				open -= int(bb.BackEdges)
			}
		} else {
			open = int(bb.BackEdges) - prior
			if open < 2 {
				if err := w.step(cur); err != nil {
					return cur, false, err
				}
				cur = bb.Term.Loop.Exit.Target
				newVisit = true
				continue
			}
		}

		found := open > 1
		if found && newVisit {
			w.visits[cur] = count + 1
		}
		return cur, found, nil
	}
}

// setScope stamps the open-if depth the first time the walk leaves a block.
func (w *mergeWalker) setScope(bb *nir.Block) {
	if w.scoped[bb.ID] {
		return
	}
	w.scoped[bb.ID] = true
	depth, err := safecast.Conv[uint32](w.cands.Size())
	if err != nil {
		depth = ^uint32(0)
	}
	bb.Scope = depth
}
