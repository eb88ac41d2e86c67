package nir

import (
	"errors"
	"fmt"
)

// Validate checks graph invariants and joins every violation found.
func Validate(g *Graph) error {
	if g == nil {
		return errors.New("nil graph")
	}
	if g.Entry() == nil {
		return fmt.Errorf("entry %s does not exist", g.Func.Entry)
	}

	var errs []error

	// 1. Check ids are defined once
	if err := validateUniqueIDs(g); err != nil {
		errs = append(errs, err)
	}

	// 2. Check blocks are terminated and edges are well formed
	if err := validateTerminators(g); err != nil {
		errs = append(errs, err)
	}

	// 3. Check operands are defined locally
	if err := validateOperands(g); err != nil {
		errs = append(errs, err)
	}

	// 4. Check operand stamps
	if err := validateStamps(g); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateUniqueIDs(g *Graph) error {
	var errs []error
	seen := make(map[ValueID]BlockID)
	check := func(bb *Block, op *Op) {
		if op.ID < 0 {
			errs = append(errs, fmt.Errorf("%s: negative value id %d", bb.ID, op.ID))
			return
		}
		if prev, dup := seen[op.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: %s already defined in %s", bb.ID, op.ID, prev))
			return
		}
		seen[op.ID] = bb.ID
	}
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if bb.ID != BlockID(i) { //nolint:gosec // G115: bounded by block count
			errs = append(errs, fmt.Errorf("bb%d: block carries id %s", i, bb.ID))
		}
		for j := range bb.Args {
			if bb.Args[j].Kind != OpBlockArg {
				errs = append(errs, fmt.Errorf("%s: formal %s is a %s", bb.ID, bb.Args[j].ID, bb.Args[j].Kind))
			}
			check(bb, &bb.Args[j])
		}
		for j := range bb.Ops {
			if bb.Ops[j].Kind == OpBlockArg || bb.Ops[j].Kind == OpInvalid {
				errs = append(errs, fmt.Errorf("%s: %s has kind %s", bb.ID, bb.Ops[j].ID, bb.Ops[j].Kind))
			}
			check(bb, &bb.Ops[j])
		}
	}
	return errors.Join(errs...)
}

func validateTerminators(g *Graph) error {
	var errs []error
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if !bb.Terminated() {
			errs = append(errs, fmt.Errorf("%s: unterminated block", bb.ID))
			continue
		}
		for _, e := range bb.Term.Edges() {
			dst := g.Block(e.Target)
			if dst == nil {
				errs = append(errs, fmt.Errorf("%s: %s target %s does not exist", bb.ID, bb.Term.Kind, e.Target))
				continue
			}
			if len(e.Args) != len(dst.Args) {
				errs = append(errs, fmt.Errorf("%s: %s passes %d args, %s takes %d",
					bb.ID, bb.Term.Kind, len(e.Args), dst.ID, len(dst.Args)))
			}
		}
		switch bb.Term.Kind {
		case TermIf:
			if m := bb.Term.If.Merge; m != NoBlockID && g.Block(m) == nil {
				errs = append(errs, fmt.Errorf("%s: merge block %s does not exist", bb.ID, m))
			}
		case TermLoop:
			if g.Block(bb.Term.Loop.LoopEnd) == nil {
				errs = append(errs, fmt.Errorf("%s: loop end %s does not exist", bb.ID, bb.Term.Loop.LoopEnd))
			}
			if bb.Term.Loop.HasCounted && bb.ArgIndex(bb.Term.Loop.Counted.Induction) < 0 {
				errs = append(errs, fmt.Errorf("%s: induction %s is not a formal", bb.ID, bb.Term.Loop.Counted.Induction))
			}
		case TermReturn:
			if bb.Term.Return.HasValue == (g.Func.Result == Void) {
				errs = append(errs, fmt.Errorf("%s: return does not match result stamp %s", bb.ID, g.Func.Result))
			}
		}
	}
	return errors.Join(errs...)
}

// validateOperands requires every read to be a formal of the same block or
// an op defined earlier in it. Block arguments are the only way values cross blocks.
func validateOperands(g *Graph) error {
	var errs []error
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		defined := make(map[ValueID]bool, len(bb.Args)+len(bb.Ops))
		for j := range bb.Args {
			defined[bb.Args[j].ID] = true
		}
		for j := range bb.Ops {
			op := &bb.Ops[j]
			for _, v := range op.Operands() {
				if !defined[v] {
					errs = append(errs, fmt.Errorf("%s: %s reads %s before definition", bb.ID, op.ID, v))
				}
			}
			defined[op.ID] = true
		}
		for _, v := range bb.Term.Uses() {
			if !defined[v] {
				errs = append(errs, fmt.Errorf("%s: %s reads undefined %s", bb.ID, bb.Term.Kind, v))
			}
		}
	}
	return errors.Join(errs...)
}

func validateStamps(g *Graph) error {
	var errs []error
	stamps := make(map[ValueID]Stamp)
	for i := range g.Blocks {
		for j := range g.Blocks[i].Args {
			stamps[g.Blocks[i].Args[j].ID] = g.Blocks[i].Args[j].Stamp
		}
		for j := range g.Blocks[i].Ops {
			stamps[g.Blocks[i].Ops[j].ID] = g.Blocks[i].Ops[j].Stamp
		}
	}
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		for j := range bb.Ops {
			if err := checkOpStamps(&bb.Ops[j], stamps); err != nil {
				errs = append(errs, fmt.Errorf("%s: %s: %w", bb.ID, bb.Ops[j].ID, err))
			}
		}
		for _, e := range bb.Term.Edges() {
			dst := g.Block(e.Target)
			if dst == nil || len(dst.Args) != len(e.Args) {
				continue
			}
			for k, v := range e.Args {
				if s, ok := stamps[v]; ok && s != dst.Args[k].Stamp {
					errs = append(errs, fmt.Errorf("%s: arg %d to %s is %s, want %s", bb.ID, k, dst.ID, s, dst.Args[k].Stamp))
				}
			}
		}
		var cond ValueID = NoValueID
		switch bb.Term.Kind {
		case TermIf:
			cond = bb.Term.If.Cond
		case TermLoop:
			cond = bb.Term.Loop.Cond
		}
		if s, ok := stamps[cond]; ok && s != Bool {
			errs = append(errs, fmt.Errorf("%s: condition %s is %s", bb.ID, cond, s))
		}
	}
	return errors.Join(errs...)
}

func checkOpStamps(op *Op, stamps map[ValueID]Stamp) error {
	switch op.Kind {
	case OpAdd, OpSub, OpMul, OpDiv:
		l, r := stamps[op.Binary.Left], stamps[op.Binary.Right]
		if l != op.Stamp || r != op.Stamp {
			return fmt.Errorf("%s on %s, %s yields %s", op.Kind, l, r, op.Stamp)
		}
	case OpAnd, OpOr:
		if stamps[op.Binary.Left] != Bool || stamps[op.Binary.Right] != Bool || op.Stamp != Bool {
			return fmt.Errorf("%s requires bool operands", op.Kind)
		}
	case OpNegate:
		if stamps[op.Unary.Input] != Bool || op.Stamp != Bool {
			return fmt.Errorf("not requires a bool operand")
		}
	case OpCompare:
		l, r := stamps[op.Compare.Left], stamps[op.Compare.Right]
		if l != r || op.Stamp != Bool {
			return fmt.Errorf("cmp on %s, %s", l, r)
		}
		if (op.Compare.Domain == Float) != l.IsFloat() {
			return fmt.Errorf("cmp domain %s on %s", op.Compare.Domain, l)
		}
	case OpConstInt:
		if !op.Stamp.IsInt() && op.Stamp != Ptr {
			return fmt.Errorf("int constant stamped %s", op.Stamp)
		}
	case OpConstFloat:
		if !op.Stamp.IsFloat() {
			return fmt.Errorf("float constant stamped %s", op.Stamp)
		}
	case OpConstBool:
		if op.Stamp != Bool {
			return fmt.Errorf("bool constant stamped %s", op.Stamp)
		}
	case OpLoad:
		if stamps[op.Load.Address] != Ptr {
			return fmt.Errorf("load from %s", stamps[op.Load.Address])
		}
	case OpStore:
		if stamps[op.Store.Address] != Ptr {
			return fmt.Errorf("store to %s", stamps[op.Store.Address])
		}
	}
	return nil
}
