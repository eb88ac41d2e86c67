package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
	"github.com/nebulastream/nebulastream-sub003/internal/observ"
	"github.com/nebulastream/nebulastream-sub003/internal/passes"
	"github.com/nebulastream/nebulastream-sub003/internal/trace"
)

// Input is one graph of a batch. Name defaults to the function name.
type Input struct {
	Name  string
	Graph *nir.Graph
}

// GraphCache stores optimized graphs by input graph and option fingerprint.
type GraphCache interface {
	Get(in *nir.Graph, fingerprint string) (*nir.Graph, bool, error)
	Put(in *nir.Graph, fingerprint string, out *nir.Graph) error
}

// CompileAll optimizes every input concurrently. Results keep the input
// order. A failing graph is reported in its own Result and never cancels the
// others; the returned error is only set when ctx ends first.
func CompileAll(ctx context.Context, inputs []Input, opts *Options, cache GraphCache, sink ProgressSink) ([]Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		def := DefaultOptions()
		opts = &def
	}
	results := make([]Result, len(inputs))
	for i := range inputs {
		results[i].Name = inputName(inputs[i])
		emit(sink, Event{Name: results[i].Name, Stage: StageOptimize, Status: StatusQueued})
	}
	if len(inputs) == 0 {
		return results, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 || jobs > len(inputs) {
		jobs = len(inputs)
	}

	tr := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx).SpanID

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, in := range inputs {
		g.Go(func(i int, in Input) func() error {
			return func() error {
				res := &results[i]
				if err := gctx.Err(); err != nil {
					res.Err = &passes.Error{Code: diag.OPTCanceled, Block: nir.NoBlockID, Value: nir.NoValueID, Msg: "compilation canceled", Err: err}
					res.Timer = observ.NewTimer()
					return nil
				}
				span := trace.Begin(tr, trace.ScopeGraph, "graph:"+res.Name, parent)
				sctx := trace.WithSpanContext(gctx, trace.SpanContext{SpanID: span.ID()})
				compileOne(sctx, in, opts, cache, sink, res)
				detail := "ok"
				switch {
				case res.Err != nil:
					detail = "failed"
				case res.Cached:
					detail = "cached"
				}
				span.End(detail)
				return nil
			}
		}(i, in))
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func compileOne(ctx context.Context, in Input, opts *Options, cache GraphCache, sink ProgressSink, res *Result) {
	start := time.Now()
	emit(sink, Event{Name: res.Name, Stage: StageOptimize, Status: StatusWorking})
	fingerprint := opts.Fingerprint()

	if cache != nil && in.Graph != nil {
		out, ok, err := cache.Get(in.Graph, fingerprint)
		if err != nil {
			emit(sink, Event{Name: res.Name, Stage: StageCache, Status: StatusError, Err: err})
		}
		if ok {
			res.Graph, res.Cached, res.Timer = out, true, observ.NewTimer()
			emit(sink, Event{Name: res.Name, Stage: StageCache, Status: StatusDone, Elapsed: time.Since(start)})
			return
		}
	}

	out, timer, err := run(ctx, in.Graph, opts, sink)
	res.Graph, res.Timer, res.Err = out, timer, err
	if err != nil {
		emit(sink, Event{Name: res.Name, Stage: StageOptimize, Status: StatusError, Err: err, Elapsed: time.Since(start)})
		return
	}
	if cache != nil {
		if err := cache.Put(in.Graph, fingerprint, out); err != nil {
			emit(sink, Event{Name: res.Name, Stage: StageCache, Status: StatusError, Err: err})
		}
	}
	emit(sink, Event{Name: res.Name, Stage: StageOptimize, Status: StatusDone, Elapsed: time.Since(start)})
}

func inputName(in Input) string {
	if in.Name != "" {
		return in.Name
	}
	if in.Graph != nil && in.Graph.Func.Name != "" {
		return in.Graph.Func.Name
	}
	return "<anonymous>"
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for i := range results {
		if results[i].Err != nil {
			n++
		}
	}
	return n
}

// MergeTimers sums the per-pass timings of a batch.
func MergeTimers(results []Result) *observ.Timer {
	total := observ.NewTimer()
	for i := range results {
		total.Merge(results[i].Timer)
	}
	return total
}

// Summary renders a one-line batch outcome.
func Summary(results []Result) string {
	cached := 0
	for i := range results {
		if results[i].Cached {
			cached++
		}
	}
	return fmt.Sprintf("%d graphs, %d failed, %d cached", len(results), Failed(results), cached)
}
