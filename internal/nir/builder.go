package nir

import (
	"fmt"

	"fortio.org/safecast"
)

// Builder assembles a Graph block by block. Errors are sticky and surface from Build.
type Builder struct {
	g      *Graph
	cur    BlockID
	next   int
	stamps map[ValueID]Stamp
	err    error
}

// NewBuilder starts a graph. The first block created becomes the entry.
func NewBuilder(name string, result Stamp) *Builder {
	return &Builder{
		g:      &Graph{Func: Func{Name: name, Entry: 0, Result: result}},
		cur:    NoBlockID,
		stamps: make(map[ValueID]Stamp),
	}
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

func (b *Builder) fresh() ValueID {
	id, err := safecast.Conv[int32](b.next)
	if err != nil {
		b.fail("value id overflow: %w", err)
		return NoValueID
	}
	b.next++
	return ValueID(id)
}

// Block appends a block with formals of the given stamps and returns its id.
// The cursor is left unchanged.
func (b *Builder) Block(args ...Stamp) BlockID {
	n, err := safecast.Conv[int32](len(b.g.Blocks))
	if err != nil {
		b.fail("block id overflow: %w", err)
		return NoBlockID
	}
	id := BlockID(n)
	bb := Block{ID: id}
	for _, s := range args {
		v := b.fresh()
		bb.Args = append(bb.Args, Op{ID: v, Kind: OpBlockArg, Stamp: s})
		b.stamps[v] = s
	}
	b.g.Blocks = append(b.g.Blocks, bb)
	return id
}

// At moves the cursor to an existing block.
func (b *Builder) At(id BlockID) *Builder {
	if b.g.Block(id) == nil {
		b.fail("no block %s", id)
	}
	b.cur = id
	return b
}

// Arg returns the i-th formal of a block.
func (b *Builder) Arg(id BlockID, i int) ValueID {
	bb := b.g.Block(id)
	if bb == nil || i < 0 || i >= len(bb.Args) {
		b.fail("%s has no arg %d", id, i)
		return NoValueID
	}
	return bb.Args[i].ID
}

func (b *Builder) block() *Block {
	bb := b.g.Block(b.cur)
	if bb == nil {
		b.fail("no current block")
	}
	return bb
}

func (b *Builder) emit(op Op) ValueID {
	bb := b.block()
	if bb == nil {
		return NoValueID
	}
	if bb.Terminated() {
		b.fail("%s: op after terminator", bb.ID)
		return NoValueID
	}
	op.ID = b.fresh()
	b.stamps[op.ID] = op.Stamp
	bb.Ops = append(bb.Ops, op)
	return op.ID
}

func (b *Builder) stampOf(v ValueID) Stamp {
	s, ok := b.stamps[v]
	if !ok {
		b.fail("unknown value %s", v)
	}
	return s
}

func (b *Builder) ConstInt(s Stamp, v int64) ValueID {
	if !s.IsInt() && s != Ptr {
		b.fail("const int with stamp %s", s)
	}
	return b.emit(IntConst(NoValueID, s, v))
}

func (b *Builder) ConstFloat(s Stamp, f float64) ValueID {
	if !s.IsFloat() {
		b.fail("const float with stamp %s", s)
	}
	return b.emit(FloatConst(NoValueID, s, f))
}

func (b *Builder) ConstBool(v bool) ValueID {
	return b.emit(BoolConst(NoValueID, v))
}

func (b *Builder) binary(kind OpKind, l, r ValueID) ValueID {
	return b.emit(Op{Kind: kind, Stamp: b.stampOf(l), Binary: BinaryOp{Left: l, Right: r}})
}

func (b *Builder) Add(l, r ValueID) ValueID { return b.binary(OpAdd, l, r) }
func (b *Builder) Sub(l, r ValueID) ValueID { return b.binary(OpSub, l, r) }
func (b *Builder) Mul(l, r ValueID) ValueID { return b.binary(OpMul, l, r) }
func (b *Builder) Div(l, r ValueID) ValueID { return b.binary(OpDiv, l, r) }
func (b *Builder) And(l, r ValueID) ValueID { return b.binary(OpAnd, l, r) }
func (b *Builder) Or(l, r ValueID) ValueID  { return b.binary(OpOr, l, r) }

// Cmp compares in the domain implied by the left operand's stamp.
func (b *Builder) Cmp(p Predicate, l, r ValueID) ValueID {
	return b.CmpIn(p, DomainOf(b.stampOf(l)), l, r)
}

func (b *Builder) CmpIn(p Predicate, d Domain, l, r ValueID) ValueID {
	return b.emit(Op{Kind: OpCompare, Stamp: Bool, Compare: CompareOp{Left: l, Right: r, Pred: p, Domain: d}})
}

func (b *Builder) Not(v ValueID) ValueID {
	return b.emit(Op{Kind: OpNegate, Stamp: Bool, Unary: UnaryOp{Input: v}})
}

func (b *Builder) Address(base, index ValueID, stride, offset int64) ValueID {
	return b.emit(Op{Kind: OpAddress, Stamp: Ptr, Address: AddressOp{Base: base, Index: index, Stride: stride, Offset: offset}})
}

func (b *Builder) Load(s Stamp, addr ValueID) ValueID {
	return b.emit(Op{Kind: OpLoad, Stamp: s, Load: LoadOp{Address: addr}})
}

func (b *Builder) Store(addr, v ValueID) ValueID {
	return b.emit(Op{Kind: OpStore, Stamp: Void, Store: StoreOp{Address: addr, Value: v}})
}

func (b *Builder) Call(name string, s Stamp, pure bool, args ...ValueID) ValueID {
	return b.emit(Op{Kind: OpCall, Stamp: s, Call: CallOp{Name: name, Args: args, Pure: pure}})
}

func (b *Builder) terminate(t Terminator) {
	bb := b.block()
	if bb == nil {
		return
	}
	if bb.Terminated() {
		b.fail("%s: already terminated", bb.ID)
		return
	}
	bb.Term = t
}

func (b *Builder) Br(target BlockID, args ...ValueID) {
	b.terminate(Terminator{Kind: TermBranch, Branch: BranchTerm{Next: To(target, args...)}})
}

func (b *Builder) If(cond ValueID, t, f Invocation) {
	b.terminate(Terminator{Kind: TermIf, If: IfTerm{Cond: cond, True: t, False: f, Merge: NoBlockID}})
}

func (b *Builder) Ret() {
	b.terminate(Terminator{Kind: TermReturn})
}

func (b *Builder) RetValue(v ValueID) {
	b.terminate(Terminator{Kind: TermReturn, Return: ReturnTerm{HasValue: true, Value: v}})
}

// Build computes predecessors and validates the graph.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.g.ComputePredecessors()
	if err := Validate(b.g); err != nil {
		return nil, err
	}
	return b.g, nil
}
