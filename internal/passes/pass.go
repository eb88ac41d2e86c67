package passes

import (
	"context"
	"fmt"
	"sort"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// Pass is one whole-graph transformation. Apply mutates g in place and
// leaves it unusable when it returns an error.
type Pass interface {
	Name() string
	Apply(ctx context.Context, g *nir.Graph) error
}

// Options tunes the passes built from the registry.
type Options struct {
	CountedLoops        bool
	ConstPropIterations int
}

// DefaultOptions enables counted-loop detection and two propagation rounds.
func DefaultOptions() Options {
	return Options{CountedLoops: true, ConstPropIterations: 2}
}

// Descriptor names a pass, the phases it requires and how to build it.
type Descriptor struct {
	Name     string
	Title    string
	Requires nir.PhaseSet
	Provides nir.PhaseSet
	New      func(Options) Pass
}

var registry = [...]Descriptor{
	{
		Name:     "structure",
		Title:    "Structured Control Flow",
		Provides: nir.PhaseStructured,
		New:      func(o Options) Pass { return &Structure{CountedLoops: o.CountedLoops} },
	},
	{
		Name:     "constprop",
		Title:    "Constant Value Propagation",
		Requires: nir.PhaseStructured,
		Provides: nir.PhaseConstProp,
		New:      func(o Options) Pass { return &ConstProp{Iterations: o.ConstPropIterations} },
	},
	{
		Name:     "cse",
		Title:    "Redundant Operation Removal",
		Requires: nir.PhaseStructured | nir.PhaseConstProp,
		Provides: nir.PhaseCSE,
		New:      func(Options) Pass { return &CSE{} },
	},
}

// Lookup finds a registered pass by name.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range registry {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Names lists the registered passes in pipeline order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for _, d := range registry {
		out = append(out, d.Name)
	}
	return out
}

// Build instantiates the named passes in order. It rejects unknown names and
// orders that cannot satisfy a pass's requirements.
func Build(names []string, opts Options) ([]Pass, error) {
	var have nir.PhaseSet
	out := make([]Pass, 0, len(names))
	for _, name := range names {
		d, ok := Lookup(name)
		if !ok {
			known := Names()
			sort.Strings(known)
			return nil, fmt.Errorf("unknown pass %q (known: %v)", name, known)
		}
		if !have.Has(d.Requires) {
			return nil, fmt.Errorf("pass %q requires %s, pipeline provides %s", name, d.Requires, have)
		}
		have |= d.Provides
		out = append(out, d.New(opts))
	}
	return out, nil
}

func requirePhases(g *nir.Graph, pass string, want nir.PhaseSet) error {
	if g.Applied.Has(want) {
		return nil
	}
	return &Error{
		Code:  phaseOrderCode,
		Block: nir.NoBlockID,
		Value: nir.NoValueID,
		Msg:   fmt.Sprintf("%s requires %s, graph has %s", pass, want, g.Applied),
	}
}

func canceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &Error{Code: canceledCode, Block: nir.NoBlockID, Value: nir.NoValueID, Msg: "compilation canceled", Err: err}
	}
	return nil
}
