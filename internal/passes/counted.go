package passes

import (
	"fmt"
	"math"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// countedMiss explains why a loop stayed generic.
type countedMiss string

// loopShape is the comparison guarding a loop header.
type loopShape struct {
	cmp       *nir.Op
	inclusive bool
}

// classifyCounted matches the header's loop against the counted pattern:
// induction formal k compared against a constant bound and stepped by a
// constant add/sub right before the back edge. The add/sub must be the last
// op of the loop end; a latch that computes anything after the step stays a
// generic loop.
func classifyCounted(g *nir.Graph, h *nir.Block) (nir.CountedLoop, countedMiss) {
	var none nir.CountedLoop
	if h.Term.Kind != nir.TermLoop {
		return none, "header has no loop terminator"
	}
	if h.BackEdges != 1 || len(h.Preds) != 2 {
		return none, countedMiss(fmt.Sprintf("%d back edges, %d predecessors", h.BackEdges, len(h.Preds)))
	}

	shape, miss := loopCondition(h)
	if miss != "" {
		return none, miss
	}
	cmp := shape.cmp.Compare
	if cmp.Pred == nir.EQ || cmp.Pred == nir.NE {
		return none, "equality is not an ordering predicate"
	}
	if cmp.Domain == nir.Float {
		return none, "float comparison"
	}

	/* the count op closes the back edge */
	end := g.Block(h.Term.Loop.LoopEnd)
	if end == nil || end.Term.Kind != nir.TermBranch || end.Term.Branch.Next.Target != h.ID {
		return none, "loop end does not branch to the header"
	}
	if len(end.Ops) == 0 {
		return none, "loop end has no count operation"
	}
	countOp := &end.Ops[len(end.Ops)-1]
	if countOp.Kind != nir.OpAdd && countOp.Kind != nir.OpSub {
		return none, countedMiss("count operation is " + countOp.Kind.String())
	}
	back := end.Term.Branch.Next.Args
	k := indexOf(back, countOp.ID)
	if k < 0 {
		return none, "count operation is not passed back to the header"
	}
	induction := h.Args[k]
	if !induction.Stamp.IsInt() {
		return none, countedMiss("induction stamped " + induction.Stamp.String())
	}

	/* orient the predicate so the induction variable is on the left */
	pred := cmp.Pred
	var boundID nir.ValueID
	switch induction.ID {
	case cmp.Left:
		boundID = cmp.Right
	case cmp.Right:
		boundID = cmp.Left
		pred = pred.Swap()
	default:
		return none, "induction variable is not compared"
	}

	step, miss := stepOf(g, h, end, countOp, induction.ID)
	if miss != "" {
		return none, miss
	}

	before := loopBefore(h, end.ID)
	if before == nil {
		return none, "no loop-before predecessor"
	}
	init, ok := edgeConst(g, g.Block(*before), h.ID, k)
	if !ok {
		return none, "initial value is not constant"
	}
	bound, miss := boundOf(g, h, end, *before, boundID)
	if miss != "" {
		return none, miss
	}

	if miss := checkDomain(induction.Stamp, cmp.Domain, init, bound); miss != "" {
		return none, miss
	}

	return normalizeCounted(induction, cmp.Domain, pred, shape.inclusive, countOp.Kind, step, init, bound)
}

// loopCondition accepts a single compare or the inclusive form
// Or(Compare(lt|gt), Compare(eq)) over identical operands.
func loopCondition(h *nir.Block) (loopShape, countedMiss) {
	cond, ok := h.Def(h.Term.Loop.Cond)
	if !ok || cond.Kind == nir.OpBlockArg {
		return loopShape{}, "condition is not computed in the header"
	}
	switch cond.Kind {
	case nir.OpCompare:
		p := cond.Compare.Pred
		return loopShape{cmp: cond, inclusive: p == nir.LE || p == nir.GE}, ""
	case nir.OpOr:
		l, lok := h.Def(cond.Binary.Left)
		r, rok := h.Def(cond.Binary.Right)
		if !lok || !rok || l.Kind != nir.OpCompare || r.Kind != nir.OpCompare {
			return loopShape{}, "or condition is not over two compares"
		}
		if l.Compare.Pred == nir.EQ {
			l, r = r, l
		}
		if r.Compare.Pred != nir.EQ || (l.Compare.Pred != nir.LT && l.Compare.Pred != nir.GT) {
			return loopShape{}, "or condition is not a strict compare or equality"
		}
		same := l.Compare.Left == r.Compare.Left && l.Compare.Right == r.Compare.Right
		swapped := l.Compare.Left == r.Compare.Right && l.Compare.Right == r.Compare.Left
		if !same && !swapped {
			return loopShape{}, "or condition compares different operands"
		}
		return loopShape{cmp: l, inclusive: true}, ""
	}
	return loopShape{}, countedMiss("condition is " + cond.Kind.String())
}

// stepOf finds the constant step of the count op. The other operand must be
// the induction variable carried from the header.
func stepOf(g *nir.Graph, h, end *nir.Block, countOp *nir.Op, induction nir.ValueID) (int64, countedMiss) {
	l, r := countOp.Binary.Left, countOp.Binary.Right
	if s, ok := resolveConst(g, end, r); ok && carriedFrom(g, h, end, l, induction) {
		return s, ""
	}
	if countOp.Kind == nir.OpAdd {
		if s, ok := resolveConst(g, end, l); ok && carriedFrom(g, h, end, r, induction) {
			return s, ""
		}
	}
	return 0, "count operation does not step the induction variable by a constant"
}

// boundOf resolves the compared bound: a constant in the header or a header
// formal that the loop-before edge feeds a constant and the back edge keeps.
func boundOf(g *nir.Graph, h, end *nir.Block, before nir.BlockID, id nir.ValueID) (int64, countedMiss) {
	if op, ok := h.Def(id); ok && op.Kind == nir.OpConstInt {
		return op.Const.Int, ""
	}
	m := h.ArgIndex(id)
	if m < 0 {
		return 0, "bound is computed in the loop"
	}
	v, ok := edgeConst(g, g.Block(before), h.ID, m)
	if !ok {
		return 0, "bound is not constant"
	}
	if !carriedFrom(g, h, end, end.Term.Branch.Next.Args[m], id) {
		return 0, "bound changes across iterations"
	}
	return v, ""
}

func loopBefore(h *nir.Block, end nir.BlockID) *nir.BlockID {
	for i := range h.Preds {
		if h.Preds[i] != end {
			return &h.Preds[i]
		}
	}
	return nil
}

// edgeConst resolves argument k of the unique edge from bb to target.
func edgeConst(g *nir.Graph, bb *nir.Block, target nir.BlockID, k int) (int64, bool) {
	inv := uniqueEdge(bb, target)
	if inv == nil || k >= len(inv.Args) {
		return 0, false
	}
	return resolveConst(g, bb, inv.Args[k])
}

func uniqueEdge(bb *nir.Block, target nir.BlockID) *nir.Invocation {
	if bb == nil {
		return nil
	}
	var found *nir.Invocation
	for _, e := range bb.Term.Edges() {
		if e.Target != target {
			continue
		}
		if found != nil {
			return nil
		}
		found = e
	}
	return found
}

// resolveConst finds the integer constant behind v, following formals back
// through single-predecessor blocks.
func resolveConst(g *nir.Graph, bb *nir.Block, v nir.ValueID) (int64, bool) {
	seen := make(map[nir.BlockID]bool)
	for bb != nil && !seen[bb.ID] {
		seen[bb.ID] = true
		if i := bb.OpIndex(v); i >= 0 {
			op := &bb.Ops[i]
			return op.Const.Int, op.Kind == nir.OpConstInt
		}
		k := bb.ArgIndex(v)
		if k < 0 || len(bb.Preds) != 1 {
			return 0, false
		}
		pred := g.Block(bb.Preds[0])
		inv := uniqueEdge(pred, bb.ID)
		if inv == nil {
			return 0, false
		}
		bb, v = pred, inv.Args[k]
	}
	return 0, false
}

// carriedFrom reports whether v, read in bb, is the header formal want
// forwarded unchanged. Every path back to the header must forward it, so an
// inner loop may pass it through its own header.
func carriedFrom(g *nir.Graph, h, bb *nir.Block, v, want nir.ValueID) bool {
	type site struct {
		block nir.BlockID
		value nir.ValueID
	}
	state := make(map[site]bool)

	var walk func(bb *nir.Block, v nir.ValueID) bool
	walk = func(bb *nir.Block, v nir.ValueID) bool {
		if bb.ID == h.ID {
			return v == want
		}
		key := site{bb.ID, v}
		if _, open := state[key]; open {
			return true
		}
		state[key] = true
		k := bb.ArgIndex(v)
		if k < 0 || len(bb.Preds) == 0 {
			return false
		}
		for _, p := range bb.Preds {
			pred := g.Block(p)
			for _, e := range pred.Term.Edges() {
				if e.Target == bb.ID && !walk(pred, e.Args[k]) {
					return false
				}
			}
		}
		return true
	}
	return walk(bb, v)
}

// checkDomain rejects constants that the compare reads differently from the
// induction stamp. A signed compare over an unsigned stamp sees values above
// the signed maximum as negative; an unsigned compare sees negative values as
// huge.
func checkDomain(s nir.Stamp, d nir.Domain, init, bound int64) countedMiss {
	switch {
	case d == nir.Unsigned && (init < 0 || bound < 0):
		return "unsigned bounds out of range"
	case d == nir.Signed && !s.Signed():
		ss := signedOf(s)
		if nir.Normalize(ss, init) != init || nir.Normalize(ss, bound) != bound {
			return countedMiss("bounds change sign under a signed compare of " + s.String())
		}
	}
	return ""
}

// normalizeCounted turns the matched pattern into a half-open range with a
// positive step. Increasing loops start at Lower, decreasing ones at Upper-1.
func normalizeCounted(induction nir.Op, d nir.Domain, pred nir.Predicate, inclusive bool, kind nir.OpKind, step, init, bound int64) (nir.CountedLoop, countedMiss) {
	var none nir.CountedLoop
	delta := step
	if kind == nir.OpSub {
		if step == math.MinInt64 {
			return none, "step overflows"
		}
		delta = -step
	}
	increasing := pred == nir.LT || pred == nir.LE
	switch {
	case delta == 0:
		return none, "zero step"
	case increasing && delta < 0, !increasing && delta > 0:
		return none, "step moves away from the bound"
	}

	out := nir.CountedLoop{Induction: induction.ID, Increasing: increasing}
	if increasing {
		out.Lower = init
		out.Upper = bound
		if inclusive {
			if bound == math.MaxInt64 {
				return none, "upper bound overflows"
			}
			out.Upper++
		}
	} else {
		if init == math.MaxInt64 || (!inclusive && bound == math.MaxInt64) {
			return none, "bound overflows"
		}
		out.Upper = init + 1
		out.Lower = bound
		if !inclusive {
			out.Lower++
		}
	}
	if out.Lower >= out.Upper {
		return none, "empty iteration range"
	}
	out.Step = delta
	if delta < 0 {
		out.Step = -delta
	}

	if miss := checkNoWrap(induction.Stamp, d, out); miss != "" {
		return none, miss
	}
	return out, ""
}

// checkNoWrap rejects ranges whose final step leaves the values both the
// stamp and the compare domain agree on; such a loop would wrap instead of
// terminating.
func checkNoWrap(s nir.Stamp, d nir.Domain, c nir.CountedLoop) countedMiss {
	lo, hi := countedRange(s, d)
	if c.Lower < lo || c.Upper-1 > hi {
		return "bounds exceed the induction stamp"
	}
	span := uint64(c.Upper-1) - uint64(c.Lower)
	travel := int64(span / uint64(c.Step) * uint64(c.Step)) //nolint:gosec // G115: travel never exceeds span
	if c.Increasing {
		last := c.Lower + travel
		if last > hi-c.Step {
			return "induction wraps past the stamp maximum"
		}
		return ""
	}
	last := c.Upper - 1 - travel
	if last < lo+c.Step {
		return "induction wraps past the stamp minimum"
	}
	return ""
}

// countedRange narrows the stamp's range to the values the compare reads
// with the same sign.
func countedRange(s nir.Stamp, d nir.Domain) (int64, int64) {
	lo, hi := stampRange(s)
	switch {
	case d == nir.Signed && !s.Signed():
		_, shi := stampRange(signedOf(s))
		hi = min(hi, shi)
	case d == nir.Unsigned && s.Signed():
		lo = max(lo, 0)
	}
	return lo, hi
}

// stampRange is the int64 interval a stamp can represent. u64 is capped at
// MaxInt64 since unsigned bounds are required to be non-negative.
func stampRange(s nir.Stamp) (int64, int64) {
	bits := s.Bits()
	if s.Signed() {
		if bits == 64 {
			return math.MinInt64, math.MaxInt64
		}
		return -(int64(1) << (bits - 1)), int64(1)<<(bits-1) - 1
	}
	if bits >= 64 {
		return 0, math.MaxInt64
	}
	return 0, int64(1)<<bits - 1
}

func indexOf(ids []nir.ValueID, v nir.ValueID) int {
	for i, id := range ids {
		if id == v {
			return i
		}
	}
	return -1
}
