package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nebulastream/nebulastream-sub003/internal/pipeline"
	"github.com/nebulastream/nebulastream-sub003/internal/prof"
	"github.com/nebulastream/nebulastream-sub003/internal/version"
)

// app is the state shared by the commands of one invocation.
type app struct {
	cfg     *pipeline.Config // nil without a nautc.toml
	cleanup func()
	prof    *prof.Session
}

func newApp() *app { return &app{} }

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nautc",
		Short:         "Structure and optimize Nautilus IR graphs",
		Long:          `nautc recovers loop and if/else structure in IR graphs, then propagates constants and removes redundant operations`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	pf.String("config", "", "path to nautc.toml (default: search upwards from the working directory)")
	pf.String("trace", "", "trace output file (\"-\" for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.Int("trace-ring-size", 4096, "events kept in ring mode")
	pf.Duration("trace-heartbeat", 0, "heartbeat interval, 0 disables")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")

	rootCmd.AddCommand(newOptimizeCmd(a))
	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(newVerifyCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// main runs the root command and exits with status 1 on error. The tracer is
// flushed even when a command fails.
func main() {
	a := newApp()
	rootCmd := a.rootCmd()
	err := rootCmd.Execute()
	a.teardown()
	if err != nil {
		rootCmd.PrintErrln("error:", err)
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
