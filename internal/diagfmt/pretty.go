// Package diagfmt renders diagnostic bags for the command line.
package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	locColor     = color.New(color.Bold)
	noteColor    = color.New(color.FgHiBlack)
)

// Pretty writes one line per diagnostic:
//
//	<graph>:bbN/vM: <severity> <CODE>: <message>
//
// followed by indented notes. bag.Sort should run first.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	if w == nil || bag == nil {
		return
	}
	items := bag.Items()
	limit := len(items)
	if opts.Max > 0 && opts.Max < limit {
		limit = opts.Max
	}
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		c.EnableColor()
		return c.Sprint(s)
	}
	for i := range limit {
		d := &items[i]
		sev := d.Severity.Label()
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			paint(locColor, d.Primary.String()),
			paint(severityColor(d.Severity), sev),
			d.Code.ID(),
			d.Message)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			at := ""
			if n.At != diag.NoLocation {
				at = n.At.String() + ": "
			}
			fmt.Fprintf(w, "  %s\n", paint(noteColor, "note: "+at+n.Msg))
		}
	}
	if hidden := len(items) - limit; hidden > 0 {
		fmt.Fprintf(w, "... %d more diagnostics\n", hidden)
	}
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	}
	return infoColor
}
