package nir

import "math"

// OpKind enumerates operation kinds.
type OpKind uint8

const (
	OpInvalid OpKind = iota
	OpConstInt
	OpConstFloat
	OpConstBool
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpCompare
	OpAnd
	OpOr
	OpNegate
	OpAddress
	OpLoad
	OpStore
	OpCall
	// OpBlockArg marks a formal block parameter; these live in Block.Args.
	OpBlockArg
)

var opKindNames = [...]string{
	OpInvalid:    "invalid",
	OpConstInt:   "const",
	OpConstFloat: "const",
	OpConstBool:  "const",
	OpAdd:        "add",
	OpSub:        "sub",
	OpMul:        "mul",
	OpDiv:        "div",
	OpCompare:    "cmp",
	OpAnd:        "and",
	OpOr:         "or",
	OpNegate:     "not",
	OpAddress:    "addr",
	OpLoad:       "load",
	OpStore:      "store",
	OpCall:       "call",
	OpBlockArg:   "arg",
}

func (k OpKind) String() string {
	if int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return "invalid"
}

// IsBinary reports kinds that carry a BinaryOp payload.
func (k OpKind) IsBinary() bool {
	switch k {
	case OpAdd, OpSub, OpMul, OpDiv, OpAnd, OpOr:
		return true
	}
	return false
}

// IsCommutative reports binary kinds whose operands may be swapped.
func (k OpKind) IsCommutative() bool {
	switch k {
	case OpAdd, OpMul, OpAnd, OpOr:
		return true
	}
	return false
}

// Predicate is the relation tested by a Compare.
type Predicate uint8

const (
	EQ Predicate = iota
	NE
	LT
	LE
	GT
	GE
)

var predicateNames = [...]string{EQ: "eq", NE: "ne", LT: "lt", LE: "le", GT: "gt", GE: "ge"}

func (p Predicate) String() string {
	if int(p) < len(predicateNames) {
		return predicateNames[p]
	}
	return "pred?"
}

// Swap returns the predicate that holds after exchanging the operands.
func (p Predicate) Swap() Predicate {
	switch p {
	case LT:
		return GT
	case LE:
		return GE
	case GT:
		return LT
	case GE:
		return LE
	}
	return p
}

// Domain selects how compare operands are interpreted.
type Domain uint8

const (
	Signed Domain = iota
	Unsigned
	Float
)

var domainNames = [...]string{Signed: "s", Unsigned: "u", Float: "f"}

func (d Domain) String() string {
	if int(d) < len(domainNames) {
		return domainNames[d]
	}
	return "?"
}

// DomainOf picks the natural compare domain for a stamp.
func DomainOf(s Stamp) Domain {
	switch {
	case s.IsFloat():
		return Float
	case s.IsInt() && !s.Signed(), s == Ptr:
		return Unsigned
	}
	return Signed
}

type ConstValue struct {
	Int   int64
	Float float64
	Bool  bool
}

// ConstKey identifies a constant by kind, stamp and bit pattern.
type ConstKey struct {
	Kind  OpKind
	Stamp Stamp
	Bits  uint64
}

type BinaryOp struct {
	Left  ValueID
	Right ValueID
}

type CompareOp struct {
	Left   ValueID
	Right  ValueID
	Pred   Predicate
	Domain Domain
}

type UnaryOp struct {
	Input ValueID
}

// AddressOp computes Base + Index*Stride + Offset.
type AddressOp struct {
	Base   ValueID
	Index  ValueID
	Stride int64
	Offset int64
}

type LoadOp struct {
	Address ValueID
}

type StoreOp struct {
	Address ValueID
	Value   ValueID
}

type CallOp struct {
	Name string
	Args []ValueID
	Pure bool
}

// Op is a single SSA operation. Exactly one payload is meaningful, selected by Kind.
type Op struct {
	ID    ValueID
	Kind  OpKind
	Stamp Stamp

	Const   ConstValue
	Binary  BinaryOp
	Compare CompareOp
	Unary   UnaryOp
	Address AddressOp
	Load    LoadOp
	Store   StoreOp
	Call    CallOp
}

func (op *Op) IsConst() bool {
	switch op.Kind {
	case OpConstInt, OpConstFloat, OpConstBool:
		return true
	}
	return false
}

// IsPure reports whether the op has no side effects and reads no memory.
func (op *Op) IsPure() bool {
	switch op.Kind {
	case OpAdd, OpSub, OpMul, OpDiv, OpCompare, OpAnd, OpOr, OpNegate, OpAddress:
		return true
	case OpCall:
		return op.Call.Pure
	}
	return op.IsConst()
}

// WritesMemory reports ops that invalidate earlier loads.
func (op *Op) WritesMemory() bool {
	return op.Kind == OpStore || (op.Kind == OpCall && !op.Call.Pure)
}

func (op *Op) ConstKey() ConstKey {
	key := ConstKey{Kind: op.Kind, Stamp: op.Stamp}
	switch op.Kind {
	case OpConstInt:
		key.Bits = uint64(op.Const.Int)
	case OpConstFloat:
		key.Bits = math.Float64bits(op.Const.Float)
	case OpConstBool:
		if op.Const.Bool {
			key.Bits = 1
		}
	}
	return key
}

// Operands returns the values read by the op in positional order.
func (op *Op) Operands() []ValueID {
	if op.Kind.IsBinary() {
		return []ValueID{op.Binary.Left, op.Binary.Right}
	}
	switch op.Kind {
	case OpCompare:
		return []ValueID{op.Compare.Left, op.Compare.Right}
	case OpNegate:
		return []ValueID{op.Unary.Input}
	case OpAddress:
		return []ValueID{op.Address.Base, op.Address.Index}
	case OpLoad:
		return []ValueID{op.Load.Address}
	case OpStore:
		return []ValueID{op.Store.Address, op.Store.Value}
	case OpCall:
		return append([]ValueID(nil), op.Call.Args...)
	}
	return nil
}

// ReplaceOperand rewrites every read of from to to and reports the count.
func (op *Op) ReplaceOperand(from, to ValueID) int {
	n := 0
	swap := func(v *ValueID) {
		if *v == from {
			*v = to
			n++
		}
	}
	if op.Kind.IsBinary() {
		swap(&op.Binary.Left)
		swap(&op.Binary.Right)
		return n
	}
	switch op.Kind {
	case OpCompare:
		swap(&op.Compare.Left)
		swap(&op.Compare.Right)
	case OpNegate:
		swap(&op.Unary.Input)
	case OpAddress:
		swap(&op.Address.Base)
		swap(&op.Address.Index)
	case OpLoad:
		swap(&op.Load.Address)
	case OpStore:
		swap(&op.Store.Address)
		swap(&op.Store.Value)
	case OpCall:
		for i := range op.Call.Args {
			swap(&op.Call.Args[i])
		}
	}
	return n
}

// Clone returns a deep copy of the op.
func (op *Op) Clone() Op {
	out := *op
	if op.Call.Args != nil {
		out.Call.Args = append([]ValueID(nil), op.Call.Args...)
	}
	return out
}

// IntConst builds a ConstInt op with v normalized to the stamp's width.
func IntConst(id ValueID, s Stamp, v int64) Op {
	return Op{ID: id, Kind: OpConstInt, Stamp: s, Const: ConstValue{Int: Normalize(s, v)}}
}

func FloatConst(id ValueID, s Stamp, f float64) Op {
	if s == F32 {
		f = float64(float32(f))
	}
	return Op{ID: id, Kind: OpConstFloat, Stamp: s, Const: ConstValue{Float: f}}
}

func BoolConst(id ValueID, b bool) Op {
	return Op{ID: id, Kind: OpConstBool, Stamp: Bool, Const: ConstValue{Bool: b}}
}
