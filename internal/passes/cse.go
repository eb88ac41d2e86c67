package passes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/oleiade/lane"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
	"github.com/nebulastream/nebulastream-sub003/internal/trace"
)

// CSE removes operations that recompute a value already available earlier
// in the same block.
type CSE struct{}

func (*CSE) Name() string { return "cse" }

type cseHit struct {
	block nir.BlockID
	id    nir.ValueID
}

func (c *CSE) Apply(ctx context.Context, g *nir.Graph) error {
	if err := requirePhases(g, c.Name(), nir.PhaseStructured|nir.PhaseConstProp); err != nil {
		return err
	}
	tr := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx).SpanID

	seen := make(map[string]cseHit)
	visited := make([]bool, len(g.Blocks))
	removed := 0

	q := lane.NewQueue()
	for q.Enqueue(g.Func.Entry); !q.Empty(); {
		id := q.Dequeue().(nir.BlockID)
		if visited[id] {
			continue
		}
		visited[id] = true
		if err := canceled(ctx); err != nil {
			return err
		}
		removed += c.block(&g.Blocks[id], seen)
		for _, s := range g.Successors(id) {
			if !visited[s] {
				q.Enqueue(s)
			}
		}
	}

	g.Applied |= nir.PhaseCSE
	trace.Point(tr, trace.ScopePass, "cse", "removed="+strconv.Itoa(removed), parent)
	return nil
}

// block deduplicates one block. Loads are keyed by a memory epoch that every
// store and impure call advances.
func (c *CSE) block(bb *nir.Block, seen map[string]cseHit) int {
	epoch := 0
	lastWrite := ""
	removed := 0
	kept := bb.Ops[:0]
	for j := 0; j < len(bb.Ops); j++ {
		op := bb.Ops[j]

		if op.Kind == nir.OpStore {
			sig := signature(&op, epoch)
			if sig == lastWrite {
				removed++
				continue
			}
			lastWrite = sig
			epoch++
			kept = append(kept, op)
			continue
		}
		if op.WritesMemory() {
			lastWrite = ""
			epoch++
			kept = append(kept, op)
			continue
		}

		sig := signature(&op, epoch)
		if sig == "" {
			kept = append(kept, op)
			continue
		}
		if hit, ok := seen[sig]; ok && hit.block == bb.ID {
			bb.ReplaceUses(j+1, op.ID, hit.id)
			removed++
			continue
		}
		seen[sig] = cseHit{block: bb.ID, id: op.ID}
		kept = append(kept, op)
	}
	bb.Ops = kept
	return removed
}

// signature is the structural identity of op, or "" when it must never be
// deduplicated.
func signature(op *nir.Op, epoch int) string {
	switch op.Kind {
	case nir.OpAdd, nir.OpSub, nir.OpMul, nir.OpDiv, nir.OpAnd, nir.OpOr:
		x, y := op.Binary.Left, op.Binary.Right

		/* commutative operations, sort the operands */
		if op.Kind.IsCommutative() && x > y {
			x, y = y, x
		}
		return fmt.Sprintf("(%s:%s %s %s)", op.Kind, op.Stamp, x, y)
	case nir.OpCompare:
		x, y := op.Compare.Left, op.Compare.Right
		p := op.Compare.Pred
		if (p == nir.EQ || p == nir.NE) && x > y {
			x, y = y, x
		}
		return fmt.Sprintf("(cmp %s.%s %s %s)", p, op.Compare.Domain, x, y)
	case nir.OpNegate:
		return fmt.Sprintf("(not %s)", op.Unary.Input)
	case nir.OpAddress:
		a := op.Address
		return fmt.Sprintf("(addr %s %s %d %d)", a.Base, a.Index, a.Stride, a.Offset)
	case nir.OpLoad:
		return fmt.Sprintf("(load:%s %s @%d)", op.Stamp, op.Load.Address, epoch)
	case nir.OpStore:
		return fmt.Sprintf("(store %s %s)", op.Store.Address, op.Store.Value)
	case nir.OpCall:
		if !op.Call.Pure {
			return ""
		}
		args := make([]string, len(op.Call.Args))
		for i, a := range op.Call.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("(call:%s @%s %s)", op.Stamp, op.Call.Name, strings.Join(args, " "))
	}
	return ""
}
