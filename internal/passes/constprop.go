package passes

import (
	"context"
	"strconv"

	"github.com/oleiade/lane"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
	"github.com/nebulastream/nebulastream-sub003/internal/trace"
)

// ConstProp propagates constants through block arguments, folds operations
// over constants and removes duplicate and dead constants.
type ConstProp struct {
	// Iterations is the number of analyze/rewrite rounds. Zero means two.
	Iterations int
}

func (*ConstProp) Name() string { return "constprop" }

func (c *ConstProp) Apply(ctx context.Context, g *nir.Graph) error {
	if err := requirePhases(g, c.Name(), nir.PhaseStructured); err != nil {
		return err
	}
	rounds := c.Iterations
	if rounds <= 0 {
		rounds = 2
	}
	tr := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx).SpanID

	var stats propStats
	for range rounds {
		if err := canceled(ctx); err != nil {
			return err
		}
		lattice := analyzeFormals(g)
		stats.materialized += materialize(g, lattice)
		stats.folded += foldBlocks(g)
		stats.deduped += dedupConsts(g)
		stats.removed += removeUnusedConsts(g)
	}
	g.Applied |= nir.PhaseConstProp
	trace.Point(tr, trace.ScopePass, "constprop", stats.String(), parent)
	return nil
}

type propStats struct {
	materialized, folded, deduped, removed int
}

func (s propStats) String() string {
	return "materialized=" + strconv.Itoa(s.materialized) +
		" folded=" + strconv.Itoa(s.folded) +
		" deduped=" + strconv.Itoa(s.deduped) +
		" removed=" + strconv.Itoa(s.removed)
}

type latticeKind uint8

const (
	latUnknown latticeKind = iota
	latConst
	latComplex
)

// latticeValue is the abstract value of a block formal. A Const carries the
// root constant it was traced to.
type latticeValue struct {
	kind latticeKind
	key  nir.ConstKey
	root nir.Op
}

func (a latticeValue) meet(b latticeValue) latticeValue {
	switch {
	case a.kind == latUnknown:
		return b
	case b.kind == latUnknown:
		return a
	case a.kind == latConst && b.kind == latConst && a.key == b.key:
		return a
	}
	return latticeValue{kind: latComplex}
}

// analyzeFormals computes a lattice value for every formal reachable from
// the entry. Entry formals are parameters and stay Complex; a value computed
// in a loop and fed back to its header makes the header formal Complex.
func analyzeFormals(g *nir.Graph) map[nir.ValueID]latticeValue {
	lattice := make(map[nir.ValueID]latticeValue)
	entry := g.Entry()
	for i := range entry.Args {
		lattice[entry.Args[i].ID] = latticeValue{kind: latComplex}
	}

	valueOf := func(bb *nir.Block, v nir.ValueID) latticeValue {
		if i := bb.OpIndex(v); i >= 0 {
			op := &bb.Ops[i]
			if op.IsConst() {
				return latticeValue{kind: latConst, key: op.ConstKey(), root: op.Clone()}
			}
			return latticeValue{kind: latComplex}
		}
		if bb.ArgIndex(v) >= 0 {
			return lattice[v]
		}
		return latticeValue{kind: latComplex}
	}

	/* BFS to a fixpoint: a block is requeued whenever one of its formals changes */
	queue := lane.NewQueue()
	queued := make([]bool, len(g.Blocks))
	seen := make([]bool, len(g.Blocks))
	queue.Enqueue(g.Func.Entry)
	queued[g.Func.Entry] = true
	seen[g.Func.Entry] = true
	for !queue.Empty() {
		id := queue.Dequeue().(nir.BlockID)
		queued[id] = false
		bb := &g.Blocks[id]
		for _, e := range bb.Term.Edges() {
			dst := &g.Blocks[e.Target]
			changed := !seen[dst.ID]
			seen[dst.ID] = true
			if dst.ID != g.Func.Entry {
				for k, v := range e.Args {
					formal := dst.Args[k].ID
					old := lattice[formal]
					next := old.meet(valueOf(bb, v))
					if next.kind != old.kind || next.key != old.key {
						lattice[formal] = next
						changed = true
					}
				}
			}
			if changed && !queued[dst.ID] {
				queued[dst.ID] = true
				queue.Enqueue(dst.ID)
			}
		}
	}
	return lattice
}

// materialize replaces Const formals by constant ops carrying the formal's
// id and drops the matching actuals from every incoming edge.
func materialize(g *nir.Graph, lattice map[nir.ValueID]latticeValue) int {
	count := 0
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if bb.ID == g.Func.Entry {
			continue
		}
		var drop []int
		var consts []nir.Op
		for k := range bb.Args {
			lv, ok := lattice[bb.Args[k].ID]
			if !ok || lv.kind != latConst || lv.root.Stamp != bb.Args[k].Stamp {
				continue
			}
			c := lv.root.Clone()
			c.ID = bb.Args[k].ID
			consts = append(consts, c)
			drop = append(drop, k)
		}
		if len(drop) == 0 {
			continue
		}
		bb.Args = removeArgs(bb.Args, drop)
		bb.Ops = append(consts, bb.Ops...)
		for j := range g.Blocks {
			for _, e := range g.Blocks[j].Term.Edges() {
				if e.Target == bb.ID {
					e.Args = removeIndices(e.Args, drop)
				}
			}
		}
		count += len(drop)
	}
	return count
}

func removeArgs(args []nir.Op, drop []int) []nir.Op {
	out := args[:0]
	d := 0
	for k := range args {
		if d < len(drop) && drop[d] == k {
			d++
			continue
		}
		out = append(out, args[k])
	}
	return out
}

func removeIndices(ids []nir.ValueID, drop []int) []nir.ValueID {
	out := make([]nir.ValueID, 0, len(ids))
	d := 0
	for k := range ids {
		if d < len(drop) && drop[d] == k {
			d++
			continue
		}
		out = append(out, ids[k])
	}
	return out
}

// foldBlocks replaces ops whose operands are block-local constants by a
// constant with the same id.
func foldBlocks(g *nir.Graph) int {
	count := 0
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		consts := make(map[nir.ValueID]*nir.Op)
		lookup := func(v nir.ValueID) (*nir.Op, bool) {
			op, ok := consts[v]
			return op, ok
		}
		for j := range bb.Ops {
			op := &bb.Ops[j]
			if !op.IsConst() && op.IsPure() && op.Kind != nir.OpAddress && op.Kind != nir.OpCall {
				if folded, ok := fold(op, lookup); ok {
					*op = folded
					count++
				}
			}
			if op.IsConst() {
				consts[op.ID] = op
			}
		}
	}
	return count
}

// dedupConsts keeps the first constant of each value per block.
func dedupConsts(g *nir.Graph) int {
	count := 0
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		first := make(map[nir.ConstKey]nir.ValueID)
		kept := bb.Ops[:0]
		for j := 0; j < len(bb.Ops); j++ {
			op := bb.Ops[j]
			if op.IsConst() {
				key := op.ConstKey()
				if id, dup := first[key]; dup {
					bb.ReplaceUses(j+1, op.ID, id)
					count++
					continue
				}
				first[key] = op.ID
			}
			kept = append(kept, op)
		}
		bb.Ops = kept
	}
	return count
}

// removeUnusedConsts drops constants nothing reads.
func removeUnusedConsts(g *nir.Graph) int {
	uses := g.UseCounts()
	removed := 0
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		kept := bb.Ops[:0]
		for _, op := range bb.Ops {
			if op.IsConst() && uses[op.ID] == 0 {
				removed++
				continue
			}
			kept = append(kept, op)
		}
		bb.Ops = kept
	}
	return removed
}
