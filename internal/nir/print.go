package nir

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dump writes a stable, human-readable rendering of the graph.
func Dump(w io.Writer, g *Graph) error {
	if w == nil || g == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "fn %s -> %s entry=%s applied=%s\n", g.Func.Name, g.Func.Result, g.Func.Entry, g.Applied)
	for i := range g.Blocks {
		dumpBlock(bw, &g.Blocks[i])
	}
	return bw.Flush()
}

// String renders the graph with Dump.
func String(g *Graph) string {
	var sb strings.Builder
	_ = Dump(&sb, g)
	return sb.String()
}

func dumpBlock(w io.Writer, bb *Block) {
	args := make([]string, len(bb.Args))
	for i := range bb.Args {
		args[i] = fmt.Sprintf("%s:%s", bb.Args[i].ID, bb.Args[i].Stamp)
	}
	preds := make([]string, len(bb.Preds))
	for i, p := range bb.Preds {
		preds[i] = p.String()
	}
	fmt.Fprintf(w, "%s(%s): preds=[%s] scope=%d", bb.ID, strings.Join(args, ", "), strings.Join(preds, ","), bb.Scope)
	if bb.BackEdges > 0 {
		fmt.Fprintf(w, " backedges=%d", bb.BackEdges)
	}
	fmt.Fprintln(w)
	for i := range bb.Ops {
		fmt.Fprintf(w, "  %s\n", FormatOp(&bb.Ops[i]))
	}
	fmt.Fprintf(w, "  %s\n", FormatTerm(&bb.Term))
}

// FormatOp renders one op as `vN = kind operands : stamp`.
func FormatOp(op *Op) string {
	if op == nil {
		return "<op?>"
	}
	return fmt.Sprintf("%s = %s : %s", op.ID, formatRHS(op), op.Stamp)
}

func formatRHS(op *Op) string {
	switch op.Kind {
	case OpConstInt, OpConstFloat, OpConstBool:
		return "const " + FormatConst(op)
	case OpAdd, OpSub, OpMul, OpDiv, OpAnd, OpOr:
		return fmt.Sprintf("%s %s, %s", op.Kind, op.Binary.Left, op.Binary.Right)
	case OpCompare:
		return fmt.Sprintf("cmp %s.%s %s, %s", op.Compare.Pred, op.Compare.Domain, op.Compare.Left, op.Compare.Right)
	case OpNegate:
		return fmt.Sprintf("not %s", op.Unary.Input)
	case OpAddress:
		a := op.Address
		return fmt.Sprintf("addr %s[%s*%d%+d]", a.Base, a.Index, a.Stride, a.Offset)
	case OpLoad:
		return fmt.Sprintf("load %s", op.Load.Address)
	case OpStore:
		return fmt.Sprintf("store %s, %s", op.Store.Address, op.Store.Value)
	case OpCall:
		pure := ""
		if op.Call.Pure {
			pure = "pure "
		}
		return fmt.Sprintf("call %s@%s(%s)", pure, op.Call.Name, formatValues(op.Call.Args))
	case OpBlockArg:
		return "arg"
	}
	return "invalid"
}

// FormatConst renders the literal of a constant op.
func FormatConst(op *Op) string {
	switch op.Kind {
	case OpConstInt:
		if op.Stamp.IsInt() && !op.Stamp.Signed() {
			return strconv.FormatUint(uint64(op.Const.Int), 10)
		}
		return strconv.FormatInt(op.Const.Int, 10)
	case OpConstFloat:
		bits := 64
		if op.Stamp == F32 {
			bits = 32
		}
		return strconv.FormatFloat(op.Const.Float, 'g', -1, bits)
	case OpConstBool:
		return strconv.FormatBool(op.Const.Bool)
	}
	return "?"
}

func formatValues(vs []ValueID) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func formatInvocation(inv Invocation) string {
	return fmt.Sprintf("%s(%s)", inv.Target, formatValues(inv.Args))
}

// FormatTerm renders a terminator.
func FormatTerm(t *Terminator) string {
	if t == nil {
		return "<term?>"
	}
	switch t.Kind {
	case TermBranch:
		return "br " + formatInvocation(t.Branch.Next)
	case TermIf:
		s := fmt.Sprintf("if %s then %s else %s", t.If.Cond, formatInvocation(t.If.True), formatInvocation(t.If.False))
		if t.If.Merge != NoBlockID {
			s += " merge=" + t.If.Merge.String()
		}
		return s
	case TermLoop:
		l := &t.Loop
		s := fmt.Sprintf("loop %s body %s exit %s end=%s", l.Cond, formatInvocation(l.Body), formatInvocation(l.Exit), l.LoopEnd)
		if l.HasCounted {
			dir := "up"
			if !l.Counted.Increasing {
				dir = "down"
			}
			s += fmt.Sprintf(" counted(%s [%d, %d) step %d %s)",
				l.Counted.Induction, l.Counted.Lower, l.Counted.Upper, l.Counted.Step, dir)
		}
		return s
	case TermReturn:
		if t.Return.HasValue {
			return "ret " + t.Return.Value.String()
		}
		return "ret"
	}
	return "<unterminated>"
}
