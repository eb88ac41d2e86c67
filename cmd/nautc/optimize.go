package main

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nebulastream/nebulastream-sub003/internal/cache"
	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
	"github.com/nebulastream/nebulastream-sub003/internal/passes"
	"github.com/nebulastream/nebulastream-sub003/internal/pipeline"
)

func newOptimizeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize [flags] <graph.yaml|graph.mp>...",
		Short: "Run the pass pipeline over one or more graphs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOptimize(cmd, args)
		},
	}
	f := cmd.Flags()
	f.StringSlice("passes", nil, "comma-separated passes to run (default structure,constprop,cse)")
	f.Bool("no-counted-loops", false, "skip counted-loop detection")
	f.Int("iterations", 0, "constant propagation rounds (0 = default)")
	f.Bool("no-verify", false, "skip the structure verifier")
	f.String("emit", "dump", "output format (dump|yaml|msgpack)")
	f.StringP("output", "o", "", "output file, or directory with several inputs (default stdout)")
	f.Int("jobs", 0, "max parallel graphs (0 = one per graph)")
	f.Bool("cache", false, "reuse optimized graphs from the disk cache")
	f.String("ui", "auto", "progress UI (auto|on|off)")
	f.String("diag-format", "pretty", "diagnostic format (pretty|json|short)")
	return cmd
}

// pipelineOptions starts from nautc.toml (or the defaults) and applies the
// flags that were set explicitly.
func pipelineOptions(cmd *cobra.Command, cfg *pipeline.Config) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	if cfg != nil {
		opts = cfg.Options()
	}
	f := cmd.Flags()
	if f.Changed("passes") {
		names, err := f.GetStringSlice("passes")
		if err != nil {
			return opts, err
		}
		for _, name := range names {
			if _, ok := passes.Lookup(name); !ok {
				return opts, fmt.Errorf("unknown pass %q (known: %v)", name, passes.Names())
			}
		}
		opts.Passes = names
	}
	if f.Changed("no-counted-loops") {
		off, err := f.GetBool("no-counted-loops")
		if err != nil {
			return opts, err
		}
		opts.Pass.CountedLoops = !off
	}
	if f.Changed("iterations") {
		n, err := f.GetInt("iterations")
		if err != nil {
			return opts, err
		}
		if n < 0 {
			return opts, fmt.Errorf("--iterations must not be negative")
		}
		opts.Pass.ConstPropIterations = n
	}
	if f.Changed("no-verify") {
		off, err := f.GetBool("no-verify")
		if err != nil {
			return opts, err
		}
		opts.Verify = !off
	}
	if f.Changed("jobs") {
		n, err := f.GetInt("jobs")
		if err != nil {
			return opts, err
		}
		opts.Jobs = n
	}
	return opts, nil
}

func openCache(cmd *cobra.Command, cfg *pipeline.Config) (pipeline.GraphCache, error) {
	enabled, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return nil, err
	}
	dir := ""
	if cfg != nil {
		enabled = enabled || cfg.Cache.Enabled
		dir = cfg.Cache.Dir
	}
	if !enabled {
		return nil, nil
	}
	var disk *cache.Disk
	if dir != "" {
		disk, err = cache.OpenDir(dir)
	} else {
		disk, err = cache.Open("nautc")
	}
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &cache.Tiered{Mem: cache.NewMemory(16), Disk: disk}, nil
}

// cacheWarnings turns cache failures into warnings; a broken cache never
// fails a compile.
type cacheWarnings struct {
	mu   sync.Mutex
	rep  diag.Reporter
	next pipeline.ProgressSink
}

func (s *cacheWarnings) OnEvent(evt pipeline.Event) {
	if evt.Stage == pipeline.StageCache && evt.Status == pipeline.StatusError && evt.Err != nil {
		s.mu.Lock()
		at := diag.NoLocation
		at.Graph = evt.Name
		diag.ReportWarning(s.rep, diag.IOCacheError, at, evt.Err.Error()).Emit()
		s.mu.Unlock()
	}
	if s.next != nil {
		s.next.OnEvent(evt)
	}
}

func (a *app) runOptimize(cmd *cobra.Command, args []string) error {
	root := cmd.Root().PersistentFlags()
	quiet, err := root.GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := root.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	emitStr, err := cmd.Flags().GetString("emit")
	if err != nil {
		return err
	}
	format, err := readEmitFormat(emitStr)
	if err != nil {
		return err
	}
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	uiStr, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiStr)
	if err != nil {
		return err
	}
	opts, err := pipelineOptions(cmd, a.cfg)
	if err != nil {
		return err
	}
	graphCache, err := openCache(cmd, a.cfg)
	if err != nil {
		return err
	}

	bag := diag.NewBag(maxDiagnostics(cmd))
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: bag})

	inputs := make([]pipeline.Input, 0, len(args))
	for _, path := range args {
		g, err := readGraph(path, cmd.InOrStdin())
		if err != nil {
			code := diag.IODecodeError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
				code = diag.IOLoadFileError
			}
			diag.ReportError(rep, code, diag.Location{Graph: path, Block: -1, Value: -1}, err.Error()).Emit()
			continue
		}
		inputs = append(inputs, pipeline.Input{Graph: g})
	}
	if err := uniqueNames(inputs); err != nil {
		return err
	}

	sink := &cacheWarnings{rep: rep}
	var results []pipeline.Result
	if shouldUseTUI(mode) && !quiet && len(inputs) > 0 {
		results, err = runOptimizeWithUI(cmd.Context(), inputs, &opts, graphCache, sink)
	} else {
		results, err = pipeline.CompileAll(cmd.Context(), inputs, &opts, graphCache, sink)
	}
	if err != nil {
		return err
	}

	multi := len(results) > 1
	if multi && out == "" && format == emitMsgpack {
		return fmt.Errorf("--emit msgpack with several graphs needs -o <dir>")
	}
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			for _, d := range passes.Diagnostics(res.Name, res.Err) {
				rep.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes)
			}
			continue
		}
		if showTimings {
			pipeline.AppendTimings(bag, res.Name, res.Timer)
		}
		if err := emitResult(cmd, res.Graph, out, multi, format); err != nil {
			at := diag.NoLocation
			at.Graph = res.Name
			diag.ReportError(rep, diag.IOWriteError, at, err.Error()).Emit()
		}
	}

	if showTimings && !quiet {
		fmt.Fprint(cmd.ErrOrStderr(), pipeline.MergeTimers(results).Summary())
	}
	if err := printDiagnostics(cmd, bag); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), statusLine(pipeline.Summary(results), bag.HasErrors()))
	}
	if bag.HasErrors() {
		return fmt.Errorf("optimize failed for %d of %d graphs", len(args)-len(results)+pipeline.Failed(results), len(args))
	}
	return nil
}

func emitResult(cmd *cobra.Command, g *nir.Graph, out string, multi bool, format emitFormat) error {
	if out == "" {
		return writeGraph(cmd.OutOrStdout(), g, format)
	}
	return writeGraphFile(outputPath(out, multi, g.Func.Name, format), g, format)
}

// uniqueNames rejects batches where two graphs would share an output file.
func uniqueNames(inputs []pipeline.Input) error {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		name := in.Graph.Func.Name
		if seen[name] {
			return fmt.Errorf("duplicate graph name %q", name)
		}
		seen[name] = true
	}
	return nil
}
