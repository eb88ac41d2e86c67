package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nebulastream/nebulastream-sub003/internal/pipeline"
	"github.com/nebulastream/nebulastream-sub003/internal/ui"
)

type optimizeOutcome struct {
	results []pipeline.Result
	err     error
}

// runOptimizeWithUI compiles in the background while the progress view reads
// events; the view exits when the event channel closes.
func runOptimizeWithUI(ctx context.Context, inputs []pipeline.Input, opts *pipeline.Options, graphCache pipeline.GraphCache, sink *cacheWarnings) ([]pipeline.Result, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan optimizeOutcome, 1)
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Graph.Func.Name
	}

	go func() {
		sink.next = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.CompileAll(ctx, inputs, opts, graphCache, sink)
		outcomeCh <- optimizeOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("optimizing", names, len(opts.Passes), events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
