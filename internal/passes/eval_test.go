package passes

import (
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// machine is a reference interpreter for both raw and structured graphs.
// Loop terminators behave like the ifs they replaced.
type machine struct {
	g     *nir.Graph
	env   map[nir.ValueID]nir.Op
	mem   map[int64]nir.Op
	calls []string
	steps int
}

type outcome struct {
	result nir.Op
	mem    map[int64]nir.Op
	calls  []string
}

func run(g *nir.Graph, params ...nir.Op) (outcome, error) {
	m := &machine{
		g:     g,
		env:   make(map[nir.ValueID]nir.Op),
		mem:   make(map[int64]nir.Op),
		steps: 100000,
	}
	entry := g.Entry()
	if len(params) != len(entry.Args) {
		return outcome{}, fmt.Errorf("%d params for %d formals", len(params), len(entry.Args))
	}
	for k := range params {
		m.env[entry.Args[k].ID] = params[k]
	}

	bb := entry
	for {
		m.steps--
		if m.steps < 0 {
			return outcome{}, fmt.Errorf("step limit in %s", bb.ID)
		}
		for j := range bb.Ops {
			if err := m.exec(&bb.Ops[j]); err != nil {
				return outcome{}, fmt.Errorf("%s: %w", bb.ID, err)
			}
		}
		var next nir.Invocation
		switch t := &bb.Term; t.Kind {
		case nir.TermBranch:
			next = t.Branch.Next
		case nir.TermIf:
			next = t.If.False
			if m.env[t.If.Cond].Const.Bool {
				next = t.If.True
			}
		case nir.TermLoop:
			next = t.Loop.Exit
			if m.env[t.Loop.Cond].Const.Bool {
				next = t.Loop.Body
			}
		case nir.TermReturn:
			out := outcome{mem: m.mem, calls: m.calls}
			if t.Return.HasValue {
				out.result = m.env[t.Return.Value]
				out.result.ID = 0
			}
			return out, nil
		default:
			return outcome{}, fmt.Errorf("%s is unterminated", bb.ID)
		}

		dst := g.Block(next.Target)
		vals := make([]nir.Op, len(next.Args))
		for k, v := range next.Args {
			vals[k] = m.env[v]
		}
		for k := range vals {
			m.env[dst.Args[k].ID] = vals[k]
		}
		bb = dst
	}
}

func (m *machine) exec(op *nir.Op) error {
	lookup := func(v nir.ValueID) (*nir.Op, bool) {
		c, ok := m.env[v]
		return &c, ok
	}
	switch op.Kind {
	case nir.OpConstInt, nir.OpConstFloat, nir.OpConstBool:
		m.env[op.ID] = *op
	case nir.OpAddress:
		a := op.Address
		addr := m.env[a.Base].Const.Int + m.env[a.Index].Const.Int*a.Stride + a.Offset
		m.env[op.ID] = nir.IntConst(op.ID, nir.Ptr, addr)
	case nir.OpLoad:
		v, ok := m.mem[m.env[op.Load.Address].Const.Int]
		if !ok {
			v = nir.IntConst(op.ID, op.Stamp, 0)
		}
		v.ID = op.ID
		m.env[op.ID] = v
	case nir.OpStore:
		v := m.env[op.Store.Value]
		v.ID = 0
		m.mem[m.env[op.Store.Address].Const.Int] = v
	case nir.OpCall:
		sum := int64(len(op.Call.Name))
		for _, a := range op.Call.Args {
			sum += m.env[a].Const.Int
		}
		if !op.Call.Pure {
			m.calls = append(m.calls, op.Call.Name)
		}
		if op.Stamp != nir.Void {
			m.env[op.ID] = nir.IntConst(op.ID, op.Stamp, sum)
		}
	default:
		v, ok := fold(op, lookup)
		if !ok {
			return fmt.Errorf("cannot evaluate %s", nir.FormatOp(op))
		}
		m.env[op.ID] = v
	}
	return nil
}

func intParam(s nir.Stamp, v int64) nir.Op { return nir.IntConst(0, s, v) }

// requireSameBehavior runs g before and after the full pipeline with random
// parameters drawn by gen.
func requireSameBehavior(t *testing.T, g *nir.Graph, gen func(f *gofakeit.Faker) []nir.Op) {
	t.Helper()
	opt := optimize(t, g)
	f := gofakeit.New(7)
	for range 50 {
		params := gen(f)
		want, werr := run(g, params...)
		got, gerr := run(opt, params...)
		if werr != nil {
			require.Error(t, gerr, "params %v", params)
			continue
		}
		require.NoError(t, gerr, "params %v\n%s", params, nir.String(opt))
		require.Equal(t, want, got, "params %v\n%s", params, nir.String(opt))
	}
}

func TestPipelinePreservesBehavior(t *testing.T) {
	noParams := func(*gofakeit.Faker) []nir.Op { return nil }
	oneParam := func(lo, hi int) func(f *gofakeit.Faker) []nir.Op {
		return func(f *gofakeit.Faker) []nir.Op {
			return []nir.Op{intParam(nir.I64, int64(f.IntRange(lo, hi)))}
		}
	}
	tests := []struct {
		name  string
		build func(*testing.T) *nir.Graph
		gen   func(*gofakeit.Faker) []nir.Op
	}{
		{"count", countLoop, noParams},
		{"diamond", diamond, oneParam(-20, 20)},
		{"nested shared", nestedShared, oneParam(-40, 40)},
		{"nested separate", nestedSeparate, oneParam(-10, 200)},
		{"loop with if", loopWithIf, oneParam(-5, 60)},
		{"nested loops", nestedLoops, noParams},
		{"memory", memoryGraph, oneParam(0, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireSameBehavior(t, tt.build(t), tt.gen)
		})
	}
}

func TestInterpreterComputesCountLoop(t *testing.T) {
	out, err := run(countLoop(t))
	require.NoError(t, err)
	require.Equal(t, int64(45), out.result.Const.Int)

	out, err = run(nestedLoops(t))
	require.NoError(t, err)
	require.Equal(t, int64(18), out.result.Const.Int)
}
