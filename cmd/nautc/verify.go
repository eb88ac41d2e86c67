package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
	"github.com/nebulastream/nebulastream-sub003/internal/passes"
	"github.com/nebulastream/nebulastream-sub003/internal/pipeline"
)

func newVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [flags] <graph.yaml|graph.mp|->",
		Short: "Check the structure of a graph, structuring it first when needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerify(cmd, args[0])
		},
	}
	cmd.Flags().Bool("no-counted-loops", false, "skip counted-loop detection while structuring")
	cmd.Flags().String("diag-format", "pretty", "diagnostic format (pretty|json|short)")
	return cmd
}

func (a *app) runVerify(cmd *cobra.Command, path string) error {
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	g, err := readGraph(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	bag := diag.NewBag(maxDiagnostics(cmd))
	if g.Applied.Has(nir.PhaseStructured) {
		err = passes.Verify(g)
	} else {
		opts, optErr := pipelineOptions(cmd, a.cfg)
		if optErr != nil {
			return optErr
		}
		opts.Passes = []string{"structure"}
		opts.Verify = true
		_, _, err = pipeline.Run(cmd.Context(), g, &opts)
	}
	for _, d := range passes.Diagnostics(g.Func.Name, err) {
		bag.Add(d)
	}
	if perr := printDiagnostics(cmd, bag); perr != nil {
		return perr
	}
	if err != nil {
		return fmt.Errorf("%s: verification failed", g.Func.Name)
	}
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), statusLine(g.Func.Name+" is structured", false))
	}
	return nil
}
