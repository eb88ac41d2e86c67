package main

import (
	"github.com/spf13/cobra"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [flags] <graph.yaml|graph.mp|->",
		Short: "Print a graph without optimizing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			emitStr, err := cmd.Flags().GetString("emit")
			if err != nil {
				return err
			}
			format, err := readEmitFormat(emitStr)
			if err != nil {
				return err
			}
			g, err := readGraph(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return writeGraph(cmd.OutOrStdout(), g, format)
		},
	}
	cmd.Flags().String("emit", "dump", "output format (dump|yaml|msgpack)")
	return cmd
}
