package passes

import (
	"math"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// fold evaluates op over constant operands. ok is false when the op cannot
// be folded (memory, calls, division by zero).
func fold(op *nir.Op, operand func(nir.ValueID) (*nir.Op, bool)) (nir.Op, bool) {
	args := op.Operands()
	consts := make([]*nir.Op, len(args))
	for i, v := range args {
		c, ok := operand(v)
		if !ok || !c.IsConst() {
			return nir.Op{}, false
		}
		consts[i] = c
	}

	switch op.Kind {
	case nir.OpAdd, nir.OpSub, nir.OpMul, nir.OpDiv:
		return foldArith(op, consts[0], consts[1])
	case nir.OpCompare:
		r, ok := foldCompare(op.Compare, consts[0], consts[1])
		return nir.BoolConst(op.ID, r), ok
	case nir.OpAnd:
		return nir.BoolConst(op.ID, consts[0].Const.Bool && consts[1].Const.Bool), bothBool(consts)
	case nir.OpOr:
		return nir.BoolConst(op.ID, consts[0].Const.Bool || consts[1].Const.Bool), bothBool(consts)
	case nir.OpNegate:
		return nir.BoolConst(op.ID, !consts[0].Const.Bool), consts[0].Kind == nir.OpConstBool
	}
	return nir.Op{}, false
}

func bothBool(c []*nir.Op) bool {
	return c[0].Kind == nir.OpConstBool && c[1].Kind == nir.OpConstBool
}

func foldArith(op *nir.Op, l, r *nir.Op) (nir.Op, bool) {
	if op.Stamp.IsFloat() {
		if l.Kind != nir.OpConstFloat || r.Kind != nir.OpConstFloat {
			return nir.Op{}, false
		}
		a, b := l.Const.Float, r.Const.Float
		var v float64
		switch op.Kind {
		case nir.OpAdd:
			v = a + b
		case nir.OpSub:
			v = a - b
		case nir.OpMul:
			v = a * b
		case nir.OpDiv:
			v = a / b
		}
		if op.Stamp == nir.F32 {
			v = float64(float32(v))
		}
		return nir.FloatConst(op.ID, op.Stamp, v), true
	}

	if l.Kind != nir.OpConstInt || r.Kind != nir.OpConstInt {
		return nir.Op{}, false
	}
	a, b := l.Const.Int, r.Const.Int
	var v int64
	switch op.Kind {
	case nir.OpAdd:
		v = a + b
	case nir.OpSub:
		v = a - b
	case nir.OpMul:
		v = a * b
	case nir.OpDiv:
		if b == 0 {
			return nir.Op{}, false
		}
		if op.Stamp.Signed() {
			// MinInt64 / -1 wraps to MinInt64 in Go; narrower widths wrap in Normalize.
			v = a / b
		} else {
			v = int64(widen(op.Stamp, a) / widen(op.Stamp, b)) //nolint:gosec // G115: bit pattern reinterpretation
		}
	}
	return nir.IntConst(op.ID, op.Stamp, v), true
}

// widen reinterprets a normalized constant as an unsigned value of the
// stamp's width.
func widen(s nir.Stamp, v int64) uint64 {
	bits := s.Bits()
	if bits <= 0 || bits >= 64 {
		return uint64(v) //nolint:gosec // G115: bit pattern reinterpretation
	}
	return uint64(v) & (uint64(1)<<bits - 1) //nolint:gosec // G115: bit pattern reinterpretation
}

// foldCompare applies the comparator variant. Float compares are ordered:
// any NaN operand makes every predicate false.
func foldCompare(c nir.CompareOp, l, r *nir.Op) (bool, bool) {
	if l.Kind != r.Kind || l.Stamp != r.Stamp {
		return false, false
	}
	switch l.Kind {
	case nir.OpConstFloat:
		a, b := l.Const.Float, r.Const.Float
		if math.IsNaN(a) || math.IsNaN(b) {
			return false, true
		}
		return ordered(c.Pred, cmpFloat(a, b)), true
	case nir.OpConstBool:
		return ordered(c.Pred, cmpInt(boolInt(l.Const.Bool), boolInt(r.Const.Bool))), true
	case nir.OpConstInt:
		if c.Domain == nir.Unsigned {
			return ordered(c.Pred, cmpUint(widen(l.Stamp, l.Const.Int), widen(r.Stamp, r.Const.Int))), true
		}
		a := nir.Normalize(signedOf(l.Stamp), l.Const.Int)
		b := nir.Normalize(signedOf(r.Stamp), r.Const.Int)
		return ordered(c.Pred, cmpInt(a, b)), true
	}
	return false, false
}

// signedOf maps a stamp to the signed stamp of the same width, so a signed
// compare over unsigned operands reinterprets the bit pattern.
func signedOf(s nir.Stamp) nir.Stamp {
	switch s {
	case nir.U8:
		return nir.I8
	case nir.U16:
		return nir.I16
	case nir.U32:
		return nir.I32
	case nir.U64, nir.Ptr:
		return nir.I64
	}
	return s
}

func ordered(p nir.Predicate, c int) bool {
	switch p {
	case nir.EQ:
		return c == 0
	case nir.NE:
		return c != 0
	case nir.LT:
		return c < 0
	case nir.LE:
		return c <= 0
	case nir.GT:
		return c > 0
	case nir.GE:
		return c >= 0
	}
	return false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
