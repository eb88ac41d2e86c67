package nir

import "strings"

// PhaseSet records which passes have run over a graph.
type PhaseSet uint8

const (
	PhaseStructured PhaseSet = 1 << iota
	PhaseConstProp
	PhaseCSE
)

var phaseNames = []struct {
	bit  PhaseSet
	name string
}{
	{PhaseStructured, "structured"},
	{PhaseConstProp, "constprop"},
	{PhaseCSE, "cse"},
}

func (p PhaseSet) Has(q PhaseSet) bool {
	return p&q == q
}

func (p PhaseSet) String() string {
	if p == 0 {
		return "none"
	}
	var parts []string
	for _, ph := range phaseNames {
		if p&ph.bit != 0 {
			parts = append(parts, ph.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParsePhase maps a phase name to its bit.
func ParsePhase(name string) (PhaseSet, bool) {
	for _, ph := range phaseNames {
		if ph.name == name {
			return ph.bit, true
		}
	}
	return 0, false
}

// Func describes the compiled function. The entry block's formals are its parameters.
type Func struct {
	Name   string
	Entry  BlockID
	Result Stamp
}

// Graph owns all blocks of one function. Blocks are addressed by index.
type Graph struct {
	Func    Func
	Blocks  []Block
	Applied PhaseSet
}

// Block returns the block with the given id, or nil when out of range.
func (g *Graph) Block(id BlockID) *Block {
	if g == nil || id < 0 || int(id) >= len(g.Blocks) {
		return nil
	}
	return &g.Blocks[id]
}

func (g *Graph) Entry() *Block {
	return g.Block(g.Func.Entry)
}

// Successors lists edge targets in true/body-first order, repeating targets
// reached by more than one edge.
func (g *Graph) Successors(id BlockID) []BlockID {
	bb := g.Block(id)
	if bb == nil {
		return nil
	}
	edges := bb.Term.Edges()
	out := make([]BlockID, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Target)
	}
	return out
}

// ComputePredecessors rebuilds Preds for every block from the terminators of
// reachable blocks.
func (g *Graph) ComputePredecessors() {
	for i := range g.Blocks {
		g.Blocks[i].Preds = g.Blocks[i].Preds[:0]
	}
	reach := g.Reachable()
	for i := range g.Blocks {
		if !reach[i] {
			continue
		}
		for _, e := range g.Blocks[i].Term.Edges() {
			if dst := g.Block(e.Target); dst != nil {
				dst.Preds = append(dst.Preds, g.Blocks[i].ID)
			}
		}
	}
}

// Reachable marks blocks reachable from the entry.
func (g *Graph) Reachable() []bool {
	reach := make([]bool, len(g.Blocks))
	if g.Entry() == nil {
		return reach
	}
	stack := []BlockID{g.Func.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reach[id] {
			continue
		}
		reach[id] = true
		for _, s := range g.Successors(id) {
			if g.Block(s) != nil && !reach[s] {
				stack = append(stack, s)
			}
		}
	}
	return reach
}

// DefSite locates the definition of a value.
type DefSite struct {
	Block BlockID
	Arg   bool
	Index int
}

// DefIndex maps every defined value to its site.
func (g *Graph) DefIndex() map[ValueID]DefSite {
	out := make(map[ValueID]DefSite)
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		for j := range bb.Args {
			out[bb.Args[j].ID] = DefSite{Block: bb.ID, Arg: true, Index: j}
		}
		for j := range bb.Ops {
			out[bb.Ops[j].ID] = DefSite{Block: bb.ID, Index: j}
		}
	}
	return out
}

// Op resolves a value to its defining op or formal.
func (g *Graph) Op(id ValueID) *Op {
	for i := range g.Blocks {
		if op, ok := g.Blocks[i].Def(id); ok {
			return op
		}
	}
	return nil
}

// UseCounts counts reads of each value by ops and terminators.
func (g *Graph) UseCounts() map[ValueID]int {
	out := make(map[ValueID]int)
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		for j := range bb.Ops {
			for _, v := range bb.Ops[j].Operands() {
				out[v]++
			}
		}
		for _, v := range bb.Term.Uses() {
			out[v]++
		}
	}
	return out
}

// MaxValueID returns the largest id defined in the graph, or NoValueID.
func (g *Graph) MaxValueID() ValueID {
	maxID := NoValueID
	for i := range g.Blocks {
		for j := range g.Blocks[i].Args {
			maxID = max(maxID, g.Blocks[i].Args[j].ID)
		}
		for j := range g.Blocks[i].Ops {
			maxID = max(maxID, g.Blocks[i].Ops[j].ID)
		}
	}
	return maxID
}

// Clone returns a deep copy sharing no slices with g.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{Func: g.Func, Applied: g.Applied, Blocks: make([]Block, len(g.Blocks))}
	for i := range g.Blocks {
		out.Blocks[i] = g.Blocks[i].Clone()
	}
	return out
}
