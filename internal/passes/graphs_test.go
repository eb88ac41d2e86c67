package passes

import (
	"context"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// countLoop is the counted-loop scenario: for i := 0; i < 10; i++ { acc += i }.
//
//	bb0: br bb1(0, 0)
//	bb1(i, acc): if i < 10 then bb2(i, acc) else bb3(acc)
//	bb2(i, acc): br bb1(i+1, acc+i)
//	bb3(acc): ret acc
func countLoop(t *testing.T) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("count", nir.I64)
	entry := b.Block()
	head := b.Block(nir.I64, nir.I64)
	body := b.Block(nir.I64, nir.I64)
	exit := b.Block(nir.I64)

	b.At(entry)
	zero := b.ConstInt(nir.I64, 0)
	b.Br(head, zero, zero)

	b.At(head)
	n := b.ConstInt(nir.I64, 10)
	i, acc := b.Arg(head, 0), b.Arg(head, 1)
	b.If(b.Cmp(nir.LT, i, n), nir.To(body, i, acc), nir.To(exit, acc))

	b.At(body)
	sum := b.Add(b.Arg(body, 1), b.Arg(body, 0))
	one := b.ConstInt(nir.I64, 1)
	next := b.Add(b.Arg(body, 0), one)
	b.Br(head, next, sum)

	b.At(exit)
	b.RetValue(b.Arg(exit, 0))
	return mustBuild(t, b)
}

// loopCase describes a single counted-loop candidate for table tests.
type loopCase struct {
	stamp     nir.Stamp
	init      int64
	bound     int64
	step      int64
	kind      nir.OpKind
	pred      nir.Predicate
	inclusive bool // use Or(cmp, eq) instead of pred
	swap      bool // compare bound against the induction variable
	boundArg  bool // pass the bound as a header formal
	signedCmp bool // compare signed whatever the stamp
}

// buildLoopCase builds
//
//	bb0(p): br bb1(init, bound?, p)
//	bb1(i, [n,] p): if cmp(i, n) then bb2(i, [n,] p) else bb3(p)
//	bb2(i, [n,] p): br bb1(i op step, [n,] p)
//	bb3(p): ret p
func buildLoopCase(t *testing.T, s loopCase) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("loop", s.stamp)
	var headArgs []nir.Stamp
	headArgs = append(headArgs, s.stamp)
	if s.boundArg {
		headArgs = append(headArgs, s.stamp)
	}
	headArgs = append(headArgs, s.stamp)

	entry := b.Block(s.stamp)
	head := b.Block(headArgs...)
	body := b.Block(headArgs...)
	exit := b.Block(s.stamp)

	b.At(entry)
	init := b.ConstInt(s.stamp, s.init)
	args := []nir.ValueID{init}
	if s.boundArg {
		args = append(args, b.ConstInt(s.stamp, s.bound))
	}
	args = append(args, b.Arg(entry, 0))
	b.Br(head, args...)

	b.At(head)
	i := b.Arg(head, 0)
	var n nir.ValueID
	if s.boundArg {
		n = b.Arg(head, 1)
	} else {
		n = b.ConstInt(s.stamp, s.bound)
	}
	l, r := i, n
	if s.swap {
		l, r = n, i
	}
	domain := nir.DomainOf(s.stamp)
	if s.signedCmp {
		domain = nir.Signed
	}
	var cond nir.ValueID
	if s.inclusive {
		strict := b.CmpIn(s.pred, domain, l, r)
		eq := b.CmpIn(nir.EQ, domain, l, r)
		cond = b.Or(strict, eq)
	} else {
		cond = b.CmpIn(s.pred, domain, l, r)
	}
	headIDs := make([]nir.ValueID, len(headArgs))
	for k := range headArgs {
		headIDs[k] = b.Arg(head, k)
	}
	b.If(cond, nir.To(body, headIDs...), nir.To(exit, b.Arg(head, len(headArgs)-1)))

	b.At(body)
	step := b.ConstInt(s.stamp, s.step)
	var next nir.ValueID
	if s.kind == nir.OpSub {
		next = b.Sub(b.Arg(body, 0), step)
	} else {
		next = b.Add(b.Arg(body, 0), step)
	}
	back := []nir.ValueID{next}
	for k := 1; k < len(headArgs); k++ {
		back = append(back, b.Arg(body, k))
	}
	b.Br(head, back...)

	b.At(exit)
	b.RetValue(b.Arg(exit, 0))
	return mustBuild(t, b)
}

// diamond is if p < 5 then 1 else 2, merged in bb3.
func diamond(t *testing.T) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("diamond", nir.I64)
	entry := b.Block(nir.I64)
	yes := b.Block()
	no := b.Block()
	merge := b.Block(nir.I64)

	b.At(entry)
	five := b.ConstInt(nir.I64, 5)
	b.If(b.Cmp(nir.LT, b.Arg(entry, 0), five), nir.To(yes), nir.To(no))

	b.At(yes)
	b.Br(merge, b.ConstInt(nir.I64, 1))
	b.At(no)
	b.Br(merge, b.ConstInt(nir.I64, 2))

	b.At(merge)
	b.RetValue(b.Arg(merge, 0))
	return mustBuild(t, b)
}

// nestedShared closes two nested ifs in the same block:
//
//	bb0(p): if p < 0 then bb1 else bb4
//	bb1: if p < -10 then bb2 else bb3
//	bb2, bb3, bb4: br bb5(k)
//	bb5(x): ret x
func nestedShared(t *testing.T) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("nested", nir.I64)
	entry := b.Block(nir.I64)
	inner := b.Block(nir.I64)
	a := b.Block()
	c := b.Block()
	d := b.Block()
	merge := b.Block(nir.I64)

	b.At(entry)
	p := b.Arg(entry, 0)
	b.If(b.Cmp(nir.LT, p, b.ConstInt(nir.I64, 0)), nir.To(inner, p), nir.To(d))

	b.At(inner)
	q := b.Arg(inner, 0)
	b.If(b.Cmp(nir.LT, q, b.ConstInt(nir.I64, -10)), nir.To(a), nir.To(c))

	for k, blk := range []nir.BlockID{a, c, d} {
		b.At(blk)
		b.Br(merge, b.ConstInt(nir.I64, int64(k+1)))
	}

	b.At(merge)
	b.RetValue(b.Arg(merge, 0))
	return mustBuild(t, b)
}

// nestedSeparate has an inner if that merges before the outer one.
//
//	bb0(p): if p > 0 then bb1(p) else bb5
//	bb1(q): if q > 100 then bb2 else bb3
//	bb2, bb3: br bb4(k)
//	bb4(x): br bb6(x)
//	bb5: br bb6(0)
//	bb6(y): ret y
func nestedSeparate(t *testing.T) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("separate", nir.I64)
	entry := b.Block(nir.I64)
	inner := b.Block(nir.I64)
	big := b.Block()
	small := b.Block()
	innerMerge := b.Block(nir.I64)
	neg := b.Block()
	merge := b.Block(nir.I64)

	b.At(entry)
	p := b.Arg(entry, 0)
	b.If(b.Cmp(nir.GT, p, b.ConstInt(nir.I64, 0)), nir.To(inner, p), nir.To(neg))

	b.At(inner)
	b.If(b.Cmp(nir.GT, b.Arg(inner, 0), b.ConstInt(nir.I64, 100)), nir.To(big), nir.To(small))
	b.At(big)
	b.Br(innerMerge, b.ConstInt(nir.I64, 100))
	b.At(small)
	b.Br(innerMerge, b.ConstInt(nir.I64, 1))

	b.At(innerMerge)
	x := b.Arg(innerMerge, 0)
	b.Br(merge, b.Add(x, x))

	b.At(neg)
	b.Br(merge, b.ConstInt(nir.I64, 0))

	b.At(merge)
	b.RetValue(b.Arg(merge, 0))
	return mustBuild(t, b)
}

// loopWithIf has an if in the loop body whose branches both return to the
// header, giving the header two back edges.
//
//	bb0(p): br bb1(0, p)
//	bb1(i, p): if i < p then bb2(i, p) else bb5(i)
//	bb2(i, p): if i is odd then bb3(i, p) else bb4(i, p)
//	bb3(i, p): br bb1(i+1, p)
//	bb4(i, p): br bb1(i+3, p)
//	bb5(i): ret i
func loopWithIf(t *testing.T) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("loopif", nir.I64)
	entry := b.Block(nir.I64)
	head := b.Block(nir.I64, nir.I64)
	test := b.Block(nir.I64, nir.I64)
	odd := b.Block(nir.I64, nir.I64)
	even := b.Block(nir.I64, nir.I64)
	exit := b.Block(nir.I64)

	b.At(entry)
	b.Br(head, b.ConstInt(nir.I64, 0), b.Arg(entry, 0))

	b.At(head)
	i, p := b.Arg(head, 0), b.Arg(head, 1)
	b.If(b.Cmp(nir.LT, i, p), nir.To(test, i, p), nir.To(exit, i))

	b.At(test)
	ti, tp := b.Arg(test, 0), b.Arg(test, 1)
	half := b.Div(ti, b.ConstInt(nir.I64, 2))
	twice := b.Mul(half, b.ConstInt(nir.I64, 2))
	b.If(b.Cmp(nir.NE, twice, ti), nir.To(odd, ti, tp), nir.To(even, ti, tp))

	b.At(odd)
	b.Br(head, b.Add(b.Arg(odd, 0), b.ConstInt(nir.I64, 1)), b.Arg(odd, 1))
	b.At(even)
	b.Br(head, b.Add(b.Arg(even, 0), b.ConstInt(nir.I64, 3)), b.Arg(even, 1))

	b.At(exit)
	b.RetValue(b.Arg(exit, 0))
	return mustBuild(t, b)
}

// nestedLoops sums i*j over a 4x3 grid.
//
//	bb0: br bb1(0, 0)
//	bb1(i, acc): if i < 4 then bb2(i, acc) else bb6(acc)
//	bb2(i, acc): br bb3(i, 0, acc)
//	bb3(i, j, acc): if j < 3 then bb4(i, j, acc) else bb5(i, acc)
//	bb4(i, j, acc): br bb3(i, j+1, acc+i*j)
//	bb5(i, acc): br bb1(i+1, acc)
//	bb6(acc): ret acc
func nestedLoops(t *testing.T) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("grid", nir.I64)
	entry := b.Block()
	outer := b.Block(nir.I64, nir.I64)
	pre := b.Block(nir.I64, nir.I64)
	inner := b.Block(nir.I64, nir.I64, nir.I64)
	body := b.Block(nir.I64, nir.I64, nir.I64)
	latch := b.Block(nir.I64, nir.I64)
	exit := b.Block(nir.I64)

	b.At(entry)
	zero := b.ConstInt(nir.I64, 0)
	b.Br(outer, zero, zero)

	b.At(outer)
	i, acc := b.Arg(outer, 0), b.Arg(outer, 1)
	b.If(b.Cmp(nir.LT, i, b.ConstInt(nir.I64, 4)), nir.To(pre, i, acc), nir.To(exit, acc))

	b.At(pre)
	b.Br(inner, b.Arg(pre, 0), b.ConstInt(nir.I64, 0), b.Arg(pre, 1))

	b.At(inner)
	ii, j, iacc := b.Arg(inner, 0), b.Arg(inner, 1), b.Arg(inner, 2)
	b.If(b.Cmp(nir.LT, j, b.ConstInt(nir.I64, 3)), nir.To(body, ii, j, iacc), nir.To(latch, ii, iacc))

	b.At(body)
	bi, bj, bacc := b.Arg(body, 0), b.Arg(body, 1), b.Arg(body, 2)
	prod := b.Add(bacc, b.Mul(bi, bj))
	nj := b.Add(bj, b.ConstInt(nir.I64, 1))
	b.Br(inner, bi, nj, prod)

	b.At(latch)
	ni := b.Add(b.Arg(latch, 0), b.ConstInt(nir.I64, 1))
	b.Br(outer, ni, b.Arg(latch, 1))

	b.At(exit)
	b.RetValue(b.Arg(exit, 0))
	return mustBuild(t, b)
}

// memoryGraph touches memory through one address:
//
//	bb0(n): a = addr 4096[n*8]
//	        store a, n; x = load a; y = load a; store a, x+y; store a, x+y
//	        z = load a; call log(z); w = load a
//	        h = hash(w) + hash(w)
//	        if h > 0 then bb1(h) else bb2
//	bb1(h): br bb3(h)
//	bb2: br bb3(0)
//	bb3(r): ret r
func memoryGraph(t *testing.T) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("memory", nir.I64)
	entry := b.Block(nir.I64)
	pos := b.Block(nir.I64)
	neg := b.Block()
	merge := b.Block(nir.I64)

	b.At(entry)
	n := b.Arg(entry, 0)
	a := b.Address(b.ConstInt(nir.Ptr, 4096), n, 8, 0)
	b.Store(a, n)
	x := b.Load(nir.I64, a)
	y := b.Load(nir.I64, a)
	s := b.Add(x, y)
	b.Store(a, s)
	b.Store(a, s)
	z := b.Load(nir.I64, a)
	b.Call("log", nir.Void, false, z)
	w := b.Load(nir.I64, a)
	h := b.Add(b.Call("hash", nir.I64, true, w), b.Call("hash", nir.I64, true, w))
	b.If(b.Cmp(nir.GT, h, b.ConstInt(nir.I64, 0)), nir.To(pos, h), nir.To(neg))

	b.At(pos)
	b.Br(merge, b.Arg(pos, 0))
	b.At(neg)
	b.Br(merge, b.ConstInt(nir.I64, 0))

	b.At(merge)
	b.RetValue(b.Arg(merge, 0))
	return mustBuild(t, b)
}

func mustBuild(t *testing.T, b *nir.Builder) *nir.Graph {
	t.Helper()
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// optimize runs the default pass order over a copy of g.
func optimize(t *testing.T, g *nir.Graph) *nir.Graph {
	t.Helper()
	out := g.Clone()
	ps, err := Build(Names(), DefaultOptions())
	require.NoError(t, err)
	for _, p := range ps {
		require.NoError(t, p.Apply(context.Background(), out), "%s on\n%s", p.Name(), nir.String(out))
	}
	require.NoError(t, Verify(out), spew.Sdump(out.Blocks))
	return out
}

func structured(t *testing.T, g *nir.Graph) *nir.Graph {
	t.Helper()
	out := g.Clone()
	require.NoError(t, (&Structure{CountedLoops: true}).Apply(context.Background(), out))
	return out
}
