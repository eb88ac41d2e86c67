package nir

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// GraphFile is the YAML form of a graph.
type GraphFile struct {
	Name    string      `yaml:"name"`
	Result  string      `yaml:"result,omitempty"`
	Entry   int32       `yaml:"entry,omitempty"`
	Applied []string    `yaml:"applied,omitempty,flow"`
	Blocks  []BlockFile `yaml:"blocks"`
}

type BlockFile struct {
	ID        int32     `yaml:"id"`
	Args      []ArgFile `yaml:"args,omitempty"`
	Ops       []OpFile  `yaml:"ops,omitempty"`
	Term      TermFile  `yaml:"term"`
	Scope     uint32    `yaml:"scope,omitempty"`
	BackEdges uint32    `yaml:"backedges,omitempty"`
}

type ArgFile struct {
	ID    int32  `yaml:"id"`
	Stamp string `yaml:"stamp"`
}

// OpFile is one op. Value holds the literal of `const`; In lists operands.
type OpFile struct {
	ID     int32   `yaml:"id"`
	Op     string  `yaml:"op"`
	Stamp  string  `yaml:"stamp,omitempty"`
	Value  any     `yaml:"value,omitempty"`
	Pred   string  `yaml:"pred,omitempty"`
	In     []int32 `yaml:"in,omitempty,flow"`
	Stride int64   `yaml:"stride,omitempty"`
	Offset int64   `yaml:"offset,omitempty"`
	Name   string  `yaml:"name,omitempty"`
	Pure   bool    `yaml:"pure,omitempty"`
}

type InvocationFile struct {
	To   int32   `yaml:"to"`
	Args []int32 `yaml:"args,omitempty,flow"`
}

type CountedFile struct {
	Induction  int32 `yaml:"induction"`
	Lower      int64 `yaml:"lower"`
	Upper      int64 `yaml:"upper"`
	Step       int64 `yaml:"step"`
	Increasing bool  `yaml:"increasing"`
}

// TermFile is a terminator. Loops reuse then/else for body/exit.
type TermFile struct {
	Kind    string          `yaml:"kind"`
	Cond    *int32          `yaml:"cond,omitempty"`
	Next    *InvocationFile `yaml:"next,omitempty"`
	Then    *InvocationFile `yaml:"then,omitempty"`
	Else    *InvocationFile `yaml:"else,omitempty"`
	Merge   *int32          `yaml:"merge,omitempty"`
	LoopEnd *int32          `yaml:"loop_end,omitempty"`
	Counted *CountedFile    `yaml:"counted,omitempty"`
	Value   *int32          `yaml:"value,omitempty"`
}

// LoadYAML decodes and validates a graph fixture.
func LoadYAML(r io.Reader) (*Graph, error) {
	var f GraphFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	g, err := f.Graph()
	if err != nil {
		return nil, err
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Graph converts the file form into a graph and computes predecessors.
func (f *GraphFile) Graph() (*Graph, error) {
	result := Void
	if f.Result != "" {
		s, ok := ParseStamp(f.Result)
		if !ok {
			return nil, fmt.Errorf("unknown result stamp %q", f.Result)
		}
		result = s
	}
	g := &Graph{Func: Func{Name: norm.NFC.String(f.Name), Entry: BlockID(f.Entry), Result: result}}
	for _, name := range f.Applied {
		ph, ok := ParsePhase(name)
		if !ok {
			return nil, fmt.Errorf("unknown phase %q", name)
		}
		g.Applied |= ph
	}

	stamps := make(map[ValueID]Stamp)
	var errs []error
	for i := range f.Blocks {
		bf := &f.Blocks[i]
		if bf.ID != int32(i) { //nolint:gosec // G115: bounded by block count
			errs = append(errs, fmt.Errorf("block %d listed at position %d", bf.ID, i))
			continue
		}
		bb := Block{ID: BlockID(bf.ID), Scope: bf.Scope, BackEdges: bf.BackEdges}
		for _, a := range bf.Args {
			s, ok := ParseStamp(a.Stamp)
			if !ok {
				errs = append(errs, fmt.Errorf("%s: arg v%d: unknown stamp %q", bb.ID, a.ID, a.Stamp))
				continue
			}
			bb.Args = append(bb.Args, Op{ID: ValueID(a.ID), Kind: OpBlockArg, Stamp: s})
			stamps[ValueID(a.ID)] = s
		}
		for j := range bf.Ops {
			op, err := bf.Ops[j].op(stamps)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: v%d: %w", bb.ID, bf.Ops[j].ID, err))
				continue
			}
			stamps[op.ID] = op.Stamp
			bb.Ops = append(bb.Ops, op)
		}
		term, err := bf.Term.term()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", bb.ID, err))
		}
		bb.Term = term
		g.Blocks = append(g.Blocks, bb)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	g.ComputePredecessors()
	return g, nil
}

func values(ids []int32) []ValueID {
	out := make([]ValueID, len(ids))
	for i, id := range ids {
		out[i] = ValueID(id)
	}
	return out
}

func (of *OpFile) operands(n int) ([]ValueID, error) {
	if len(of.In) != n {
		return nil, fmt.Errorf("%s takes %d operands, got %d", of.Op, n, len(of.In))
	}
	return values(of.In), nil
}

func (of *OpFile) op(stamps map[ValueID]Stamp) (Op, error) {
	op := Op{ID: ValueID(of.ID)}
	if of.Stamp != "" {
		s, ok := ParseStamp(of.Stamp)
		if !ok {
			return op, fmt.Errorf("unknown stamp %q", of.Stamp)
		}
		op.Stamp = s
	}
	switch of.Op {
	case "const":
		return constOp(op, of.Stamp != "", of.Value)
	case "add", "sub", "mul", "div", "and", "or":
		in, err := of.operands(2)
		if err != nil {
			return op, err
		}
		op.Kind = map[string]OpKind{"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv, "and": OpAnd, "or": OpOr}[of.Op]
		op.Binary = BinaryOp{Left: in[0], Right: in[1]}
		if of.Stamp == "" {
			op.Stamp = stamps[in[0]]
		}
	case "cmp":
		in, err := of.operands(2)
		if err != nil {
			return op, err
		}
		pred, dom, err := parsePredicate(of.Pred, stamps[in[0]])
		if err != nil {
			return op, err
		}
		op.Kind, op.Stamp = OpCompare, Bool
		op.Compare = CompareOp{Left: in[0], Right: in[1], Pred: pred, Domain: dom}
	case "not":
		in, err := of.operands(1)
		if err != nil {
			return op, err
		}
		op.Kind, op.Stamp, op.Unary = OpNegate, Bool, UnaryOp{Input: in[0]}
	case "addr":
		in, err := of.operands(2)
		if err != nil {
			return op, err
		}
		op.Kind, op.Stamp = OpAddress, Ptr
		op.Address = AddressOp{Base: in[0], Index: in[1], Stride: of.Stride, Offset: of.Offset}
	case "load":
		in, err := of.operands(1)
		if err != nil {
			return op, err
		}
		if of.Stamp == "" {
			return op, errors.New("load requires a stamp")
		}
		op.Kind, op.Load = OpLoad, LoadOp{Address: in[0]}
	case "store":
		in, err := of.operands(2)
		if err != nil {
			return op, err
		}
		op.Kind, op.Stamp, op.Store = OpStore, Void, StoreOp{Address: in[0], Value: in[1]}
	case "call":
		if of.Name == "" {
			return op, errors.New("call requires a name")
		}
		op.Kind = OpCall
		op.Call = CallOp{Name: norm.NFC.String(of.Name), Args: values(of.In), Pure: of.Pure}
	default:
		return op, fmt.Errorf("unknown op %q", of.Op)
	}
	return op, nil
}

// parsePredicate reads `lt` or `lt.u`; a missing domain follows the operand stamp.
func parsePredicate(s string, operand Stamp) (Predicate, Domain, error) {
	name, dom, hasDom := strings.Cut(s, ".")
	pred := Predicate(255)
	for i, n := range predicateNames {
		if n == name {
			pred = Predicate(i) //nolint:gosec // G115: bounded by predicateNames length
		}
	}
	if pred == 255 {
		return 0, 0, fmt.Errorf("unknown predicate %q", s)
	}
	if !hasDom {
		return pred, DomainOf(operand), nil
	}
	for i, n := range domainNames {
		if n == dom {
			return pred, Domain(i), nil //nolint:gosec // G115: bounded by domainNames length
		}
	}
	return 0, 0, fmt.Errorf("unknown compare domain %q", dom)
}

func constOp(op Op, stamped bool, v any) (Op, error) {
	switch lit := v.(type) {
	case bool:
		return BoolConst(op.ID, lit), nil
	case int:
		return intLiteral(op, stamped, int64(lit))
	case int64:
		return intLiteral(op, stamped, lit)
	case uint64:
		if !stamped {
			op.Stamp = U64
		}
		if op.Stamp != U64 {
			return op, fmt.Errorf("literal %d overflows %s", lit, op.Stamp)
		}
		return IntConst(op.ID, U64, int64(lit)), nil //nolint:gosec // G115: bit pattern kept
	case float64:
		if !stamped {
			op.Stamp = F64
		}
		if !op.Stamp.IsFloat() {
			return op, fmt.Errorf("float literal for %s", op.Stamp)
		}
		return FloatConst(op.ID, op.Stamp, lit), nil
	case nil:
		return op, errors.New("const without value")
	}
	return op, fmt.Errorf("unsupported literal %v", v)
}

func intLiteral(op Op, stamped bool, v int64) (Op, error) {
	if !stamped {
		op.Stamp = I64
	}
	if op.Stamp.IsFloat() {
		return FloatConst(op.ID, op.Stamp, float64(v)), nil
	}
	if !op.Stamp.IsInt() && op.Stamp != Ptr {
		return op, fmt.Errorf("int literal for %s", op.Stamp)
	}
	if op.Stamp.IsInt() && !op.Stamp.Signed() && v < 0 {
		return op, fmt.Errorf("negative literal %d for %s", v, op.Stamp)
	}
	if Normalize(op.Stamp, v) != v {
		return op, fmt.Errorf("literal %d overflows %s", v, op.Stamp)
	}
	return IntConst(op.ID, op.Stamp, v), nil
}

func invocation(f *InvocationFile) (Invocation, error) {
	if f == nil {
		return Invocation{Target: NoBlockID}, errors.New("missing edge")
	}
	return Invocation{Target: BlockID(f.To), Args: values(f.Args)}, nil
}

func (tf *TermFile) term() (Terminator, error) {
	optBlock := func(p *int32) BlockID {
		if p == nil {
			return NoBlockID
		}
		return BlockID(*p)
	}
	switch tf.Kind {
	case "br":
		next, err := invocation(tf.Next)
		return Terminator{Kind: TermBranch, Branch: BranchTerm{Next: next}}, err
	case "if", "loop":
		if tf.Cond == nil {
			return Terminator{}, fmt.Errorf("%s without cond", tf.Kind)
		}
		t, err := invocation(tf.Then)
		if err != nil {
			return Terminator{}, err
		}
		e, err := invocation(tf.Else)
		if err != nil {
			return Terminator{}, err
		}
		if tf.Kind == "if" {
			return Terminator{Kind: TermIf, If: IfTerm{Cond: ValueID(*tf.Cond), True: t, False: e, Merge: optBlock(tf.Merge)}}, nil
		}
		loop := LoopTerm{Cond: ValueID(*tf.Cond), Body: t, Exit: e, LoopEnd: optBlock(tf.LoopEnd)}
		if c := tf.Counted; c != nil {
			loop.HasCounted = true
			loop.Counted = CountedLoop{Induction: ValueID(c.Induction), Lower: c.Lower, Upper: c.Upper, Step: c.Step, Increasing: c.Increasing}
		}
		return Terminator{Kind: TermLoop, Loop: loop}, nil
	case "ret":
		if tf.Value == nil {
			return Terminator{Kind: TermReturn}, nil
		}
		return Terminator{Kind: TermReturn, Return: ReturnTerm{HasValue: true, Value: ValueID(*tf.Value)}}, nil
	}
	return Terminator{}, fmt.Errorf("unknown terminator %q", tf.Kind)
}

// File converts a graph into its YAML form.
func File(g *Graph) *GraphFile {
	f := &GraphFile{Name: g.Func.Name, Result: g.Func.Result.String(), Entry: int32(g.Func.Entry)}
	for _, ph := range phaseNames {
		if g.Applied.Has(ph.bit) {
			f.Applied = append(f.Applied, ph.name)
		}
	}
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		bf := BlockFile{ID: int32(bb.ID), Scope: bb.Scope, BackEdges: bb.BackEdges}
		for _, a := range bb.Args {
			bf.Args = append(bf.Args, ArgFile{ID: int32(a.ID), Stamp: a.Stamp.String()})
		}
		for j := range bb.Ops {
			bf.Ops = append(bf.Ops, opFile(&bb.Ops[j]))
		}
		bf.Term = termFile(&bb.Term)
		f.Blocks = append(f.Blocks, bf)
	}
	return f
}

func ids(vs []ValueID) []int32 {
	out := make([]int32, len(vs))
	for i, v := range vs {
		out[i] = int32(v)
	}
	return out
}

func opFile(op *Op) OpFile {
	of := OpFile{ID: int32(op.ID), Op: op.Kind.String(), Stamp: op.Stamp.String(), In: ids(op.Operands())}
	switch op.Kind {
	case OpConstInt:
		if op.Stamp == U64 && op.Const.Int < 0 {
			of.Value = uint64(op.Const.Int)
		} else {
			of.Value = op.Const.Int
		}
	case OpConstFloat:
		of.Value = op.Const.Float
	case OpConstBool:
		of.Value = op.Const.Bool
	case OpCompare:
		of.Pred = op.Compare.Pred.String() + "." + op.Compare.Domain.String()
	case OpAddress:
		of.Stride, of.Offset = op.Address.Stride, op.Address.Offset
	case OpCall:
		of.Name, of.Pure = op.Call.Name, op.Call.Pure
	}
	return of
}

func invocationFile(inv Invocation) *InvocationFile {
	return &InvocationFile{To: int32(inv.Target), Args: ids(inv.Args)}
}

func termFile(t *Terminator) TermFile {
	tf := TermFile{Kind: t.Kind.String()}
	block := func(id BlockID) *int32 {
		if id == NoBlockID {
			return nil
		}
		v := int32(id)
		return &v
	}
	value := func(id ValueID) *int32 {
		v := int32(id)
		return &v
	}
	switch t.Kind {
	case TermBranch:
		tf.Next = invocationFile(t.Branch.Next)
	case TermIf:
		tf.Cond = value(t.If.Cond)
		tf.Then, tf.Else = invocationFile(t.If.True), invocationFile(t.If.False)
		tf.Merge = block(t.If.Merge)
	case TermLoop:
		l := &t.Loop
		tf.Cond = value(l.Cond)
		tf.Then, tf.Else = invocationFile(l.Body), invocationFile(l.Exit)
		tf.LoopEnd = block(l.LoopEnd)
		if l.HasCounted {
			tf.Counted = &CountedFile{
				Induction:  int32(l.Counted.Induction),
				Lower:      l.Counted.Lower,
				Upper:      l.Counted.Upper,
				Step:       l.Counted.Step,
				Increasing: l.Counted.Increasing,
			}
		}
	case TermReturn:
		if t.Return.HasValue {
			tf.Value = value(t.Return.Value)
		}
	}
	return tf
}

// WriteYAML encodes a graph as a fixture.
func WriteYAML(w io.Writer, g *Graph) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(File(g)); err != nil {
		return err
	}
	return enc.Close()
}
