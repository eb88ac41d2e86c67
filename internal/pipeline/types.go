package pipeline

import "time"

// Stage describes a high-level step of compiling one graph.
type Stage string

const (
	// StageLoad is decoding the input graph.
	StageLoad Stage = "load"
	// StageCache is the optimized-graph cache lookup.
	StageCache Stage = "cache"
	// StageOptimize is the pass pipeline.
	StageOptimize Stage = "optimize"
	// StageVerify is the structure verifier.
	StageVerify Stage = "verify"
	// StageEmit is writing the result.
	StageEmit Stage = "emit"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the graph is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the graph is being compiled.
	StatusWorking Status = "working"
	// StatusDone indicates the graph compiled.
	StatusDone Status = "done"
	// StatusError indicates the graph failed.
	StatusError Status = "error"
)

// Event reports progress for a graph (or for the whole batch when Name is empty).
type Event struct {
	Name    string
	Stage   Stage
	Status  Status
	Pass    string
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use: CompileAll reports from several goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) {
	if f != nil {
		f(evt)
	}
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}
