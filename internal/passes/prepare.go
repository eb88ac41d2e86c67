package passes

import "github.com/nebulastream/nebulastream-sub003/internal/nir"

// prepare normalizes a freshly traced graph before structuring:
// 1. Redirect edges around br-only blocks (following chains)
// 2. Turn ifs with identical edges into branches
// 3. Remove unreachable blocks and renumber the rest
// 4. Recompute predecessors
func prepare(g *nir.Graph) {
	if g == nil || len(g.Blocks) == 0 {
		return
	}

	redirects := buildRedirectMap(g)
	applyRedirects(g, redirects)
	collapseTrivialIfs(g)

	reachable := g.Reachable()
	compactBlocks(g, reachable)

	g.ComputePredecessors()
}

// isBrOnlyBlock reports blocks that hold nothing but a branch forwarding
// their formals unchanged. The entry is never br-only: its formals are the
// function parameters.
func isBrOnlyBlock(g *nir.Graph, id nir.BlockID) bool {
	bb := g.Block(id)
	if bb == nil || id == g.Func.Entry || len(bb.Ops) != 0 || bb.Term.Kind != nir.TermBranch {
		return false
	}
	next := bb.Term.Branch.Next
	if next.Target == id || len(next.Args) != len(bb.Args) {
		return false
	}
	for i := range bb.Args {
		if next.Args[i] != bb.Args[i].ID {
			return false
		}
	}
	return true
}

// buildRedirectMap maps every br-only block to the first block past its
// chain. Cycles of br-only blocks stop at the first repeat.
func buildRedirectMap(g *nir.Graph) map[nir.BlockID]nir.BlockID {
	redirects := make(map[nir.BlockID]nir.BlockID)

	for i := range g.Blocks {
		id := g.Blocks[i].ID
		if !isBrOnlyBlock(g, id) {
			continue
		}
		target := g.Blocks[i].Term.Branch.Next.Target
		visited := map[nir.BlockID]bool{id: true}
		for !visited[target] {
			visited[target] = true
			if next, ok := redirects[target]; ok {
				target = next
				continue
			}
			if isBrOnlyBlock(g, target) {
				target = g.Block(target).Term.Branch.Next.Target
				continue
			}
			break
		}
		if target != id {
			redirects[id] = target
		}
	}
	return redirects
}

// applyRedirects retargets edges. Args carry over unchanged because a
// br-only block forwards its formals in order.
func applyRedirects(g *nir.Graph, redirects map[nir.BlockID]nir.BlockID) {
	if len(redirects) == 0 {
		return
	}
	for i := range g.Blocks {
		for _, e := range g.Blocks[i].Term.Edges() {
			if to, ok := redirects[e.Target]; ok {
				e.Target = to
			}
		}
	}
}

func collapseTrivialIfs(g *nir.Graph) {
	for i := range g.Blocks {
		term := &g.Blocks[i].Term
		if term.Kind == nir.TermIf && term.If.True.Equal(term.If.False) {
			*term = nir.Terminator{Kind: nir.TermBranch, Branch: nir.BranchTerm{Next: term.If.True.Clone()}}
		}
	}
}

// compactBlocks drops unreachable blocks and renumbers the survivors in
// their original order.
func compactBlocks(g *nir.Graph, reachable []bool) {
	oldToNew := make(map[nir.BlockID]nir.BlockID, len(g.Blocks))
	kept := make([]nir.Block, 0, len(g.Blocks))
	for i, keep := range reachable {
		if keep {
			oldToNew[g.Blocks[i].ID] = nir.BlockID(len(kept)) //nolint:gosec // G115: bounded by existing block count
			kept = append(kept, g.Blocks[i])
		}
	}

	remap := func(id nir.BlockID) nir.BlockID {
		if to, ok := oldToNew[id]; ok {
			return to
		}
		return nir.NoBlockID
	}

	for i := range kept {
		kept[i].ID = nir.BlockID(i) //nolint:gosec // G115: bounded by kept length
		term := &kept[i].Term
		for _, e := range term.Edges() {
			e.Target = remap(e.Target)
		}
		switch term.Kind {
		case nir.TermIf:
			if term.If.Merge != nir.NoBlockID {
				term.If.Merge = remap(term.If.Merge)
			}
		case nir.TermLoop:
			term.Loop.LoopEnd = remap(term.Loop.LoopEnd)
		}
	}

	g.Blocks = kept
	g.Func.Entry = remap(g.Func.Entry)
}
