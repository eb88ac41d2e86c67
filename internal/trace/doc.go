// Package trace records what the optimizer did and in which order.
//
// Events are spans (begin/end pairs) and points. The CLI opens a driver
// span per command, the pipeline opens one span per pass, batch compiles
// open one span per graph, and passes emit points for per-block decisions
// such as why a loop header stayed generic.
//
// A Tracer is carried in the context:
//
//	ctx = trace.WithTracer(ctx, tr)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "cse", parent)
//	defer span.End("")
//
// Level decides which scopes reach the sink. LevelPhase keeps driver and
// pass events, LevelDetail adds graphs and LevelDebug adds blocks.
package trace
