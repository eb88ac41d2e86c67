package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/diagfmt"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

func maxDiagnostics(cmd *cobra.Command) int {
	n, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil || n <= 0 {
		return 100
	}
	return n
}

// printDiagnostics sorts the bag and writes it to stderr in --diag-format.
func printDiagnostics(cmd *cobra.Command, bag *diag.Bag) error {
	if bag.Len() == 0 {
		return nil
	}
	format, err := cmd.Flags().GetString("diag-format")
	if err != nil {
		return fmt.Errorf("failed to get diag-format flag: %w", err)
	}
	bag.Dedup()
	bag.Sort()
	w := cmd.ErrOrStderr()
	switch format {
	case "pretty":
		diagfmt.Pretty(w, bag, diagfmt.PrettyOpts{Color: !color.NoColor, ShowNotes: true})
	case "json":
		return diagfmt.JSON(w, bag, diagfmt.JSONOpts{IncludeNotes: true})
	case "short":
		if out := diag.FormatGoldenDiagnostics(bag.Items(), false); out != "" {
			fmt.Fprintln(w, out)
		}
	default:
		return fmt.Errorf("unknown diag-format %q (expected pretty|json|short)", format)
	}
	return nil
}

func statusLine(msg string, failed bool) string {
	if failed {
		return failColor.Sprint("failed: ") + msg
	}
	return okColor.Sprint("ok: ") + msg
}
