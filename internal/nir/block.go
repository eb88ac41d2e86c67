package nir

// Block is a basic block. Args are formal parameters (OpBlockArg), Ops run in
// order and Term is always last. Preds holds one entry per incoming edge.
type Block struct {
	ID        BlockID
	Args      []Op
	Ops       []Op
	Term      Terminator
	Preds     []BlockID
	Scope     uint32
	BackEdges uint32
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// IsLoopHeader reports whether the structuring pass found a back edge into b.
func (b *Block) IsLoopHeader() bool {
	return b.BackEdges > 0
}

// ArgIndex returns the position of a formal, or -1.
func (b *Block) ArgIndex(id ValueID) int {
	for i := range b.Args {
		if b.Args[i].ID == id {
			return i
		}
	}
	return -1
}

// OpIndex returns the position of the op defining id, or -1.
func (b *Block) OpIndex(id ValueID) int {
	for i := range b.Ops {
		if b.Ops[i].ID == id {
			return i
		}
	}
	return -1
}

// Def returns the op or formal defining id inside b.
func (b *Block) Def(id ValueID) (*Op, bool) {
	if i := b.OpIndex(id); i >= 0 {
		return &b.Ops[i], true
	}
	if i := b.ArgIndex(id); i >= 0 {
		return &b.Args[i], true
	}
	return nil, false
}

// ArgIDs lists the formal parameter ids in order.
func (b *Block) ArgIDs() []ValueID {
	out := make([]ValueID, len(b.Args))
	for i := range b.Args {
		out[i] = b.Args[i].ID
	}
	return out
}

// ReplaceUses rewrites reads of from to to in the ops starting at index start
// and in the terminator.
func (b *Block) ReplaceUses(start int, from, to ValueID) int {
	n := 0
	for i := start; i < len(b.Ops); i++ {
		n += b.Ops[i].ReplaceOperand(from, to)
	}
	return n + b.Term.ReplaceUse(from, to)
}

func (b *Block) Clone() Block {
	out := *b
	out.Args = make([]Op, len(b.Args))
	for i := range b.Args {
		out.Args[i] = b.Args[i].Clone()
	}
	out.Ops = make([]Op, len(b.Ops))
	for i := range b.Ops {
		out.Ops[i] = b.Ops[i].Clone()
	}
	out.Term = b.Term.Clone()
	out.Preds = append([]BlockID(nil), b.Preds...)
	return out
}
