package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
	"github.com/nebulastream/nebulastream-sub003/internal/observ"
	"github.com/nebulastream/nebulastream-sub003/internal/passes"
	"github.com/nebulastream/nebulastream-sub003/internal/trace"
)

// Options configures one pipeline run.
type Options struct {
	// Passes lists pass names in execution order.
	Passes []string
	// Pass tunes the individual passes.
	Pass passes.Options
	// Verify runs passes.Verify after the last pass.
	Verify bool
	// Jobs bounds CompileAll concurrency. Zero means one per graph.
	Jobs int
}

// DefaultOptions runs structure, constprop and cse, then verifies.
func DefaultOptions() Options {
	return Options{
		Passes: passes.Names(),
		Pass:   passes.DefaultOptions(),
		Verify: true,
	}
}

// Fingerprint identifies the options that influence the optimized output.
func (o *Options) Fingerprint() string {
	return fmt.Sprintf("%v counted=%t iters=%d verify=%t",
		o.Passes, o.Pass.CountedLoops, o.Pass.ConstPropIterations, o.Verify)
}

// Result is the outcome of optimizing one graph.
type Result struct {
	Name   string
	Graph  *nir.Graph
	Timer  *observ.Timer
	Err    error
	Cached bool
}

// Run optimizes a copy of g. The input is never modified. On error the
// returned graph is nil.
func Run(ctx context.Context, g *nir.Graph, opts *Options) (*nir.Graph, *observ.Timer, error) {
	return run(ctx, g, opts, nil)
}

func run(ctx context.Context, g *nir.Graph, opts *Options, sink ProgressSink) (*nir.Graph, *observ.Timer, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timer := observ.NewTimer()
	if g == nil {
		return nil, timer, errors.New("missing graph")
	}
	if opts == nil {
		def := DefaultOptions()
		opts = &def
	}
	ps, err := passes.Build(opts.Passes, opts.Pass)
	if err != nil {
		return nil, timer, err
	}

	tr := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx).SpanID
	work := g.Clone()

	for _, p := range ps {
		span := trace.Begin(tr, trace.ScopePass, p.Name(), parent)
		pctx := trace.WithSpanContext(ctx, trace.SpanContext{SpanID: span.ID()})
		start := time.Now()
		err := timer.Measure(p.Name(), func() error {
			return p.Apply(pctx, work)
		})
		if err != nil {
			span.WithExtra("graph", g.Func.Name).End("failed")
			emit(sink, Event{Name: g.Func.Name, Stage: StageOptimize, Status: StatusError, Pass: p.Name(), Err: err, Elapsed: time.Since(start)})
			return nil, timer, fmt.Errorf("%s: %s: %w", g.Func.Name, p.Name(), err)
		}
		span.End("")
		emit(sink, Event{Name: g.Func.Name, Stage: StageOptimize, Status: StatusWorking, Pass: p.Name(), Elapsed: time.Since(start)})
	}

	if opts.Verify && work.Applied.Has(nir.PhaseStructured) {
		if err := timer.Measure("verify", func() error { return passes.Verify(work) }); err != nil {
			emit(sink, Event{Name: g.Func.Name, Stage: StageVerify, Status: StatusError, Err: err})
			return nil, timer, fmt.Errorf("%s: verify: %w", g.Func.Name, err)
		}
	}
	return work, timer, nil
}
