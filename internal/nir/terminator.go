package nir

type TermKind uint8

const (
	TermNone TermKind = iota
	TermBranch
	TermIf
	TermLoop
	TermReturn
)

func (k TermKind) String() string {
	switch k {
	case TermBranch:
		return "br"
	case TermIf:
		return "if"
	case TermLoop:
		return "loop"
	case TermReturn:
		return "ret"
	}
	return "none"
}

// Invocation is a control edge. Args bind positionally to the target's formals.
type Invocation struct {
	Target BlockID
	Args   []ValueID
}

// To is shorthand for building an Invocation.
func To(target BlockID, args ...ValueID) Invocation {
	return Invocation{Target: target, Args: args}
}

func (inv Invocation) Clone() Invocation {
	return Invocation{Target: inv.Target, Args: append([]ValueID(nil), inv.Args...)}
}

// Equal reports whether both edges reach the same block with the same actuals.
func (inv Invocation) Equal(other Invocation) bool {
	if inv.Target != other.Target || len(inv.Args) != len(other.Args) {
		return false
	}
	for i := range inv.Args {
		if inv.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}

type Terminator struct {
	Kind TermKind

	Branch BranchTerm
	If     IfTerm
	Loop   LoopTerm
	Return ReturnTerm
}

type BranchTerm struct {
	Next Invocation
}

// IfTerm is a two-way conditional. Merge is set by the structuring pass.
type IfTerm struct {
	Cond  ValueID
	True  Invocation
	False Invocation
	Merge BlockID
}

// LoopTerm replaces the If of a loop header. LoopEnd is the back-edge source.
type LoopTerm struct {
	Cond       ValueID
	Body       Invocation
	Exit       Invocation
	LoopEnd    BlockID
	HasCounted bool
	Counted    CountedLoop
}

// CountedLoop describes an induction variable ranging over [Lower, Upper)
// with a positive Step magnitude. Increasing=false means the variable starts
// at Upper-1 and moves down.
type CountedLoop struct {
	Induction  ValueID
	Lower      int64
	Upper      int64
	Step       int64
	Increasing bool
}

type ReturnTerm struct {
	HasValue bool
	Value    ValueID
}

// Edges returns pointers to the outgoing invocations, true/body edge first.
func (t *Terminator) Edges() []*Invocation {
	switch t.Kind {
	case TermBranch:
		return []*Invocation{&t.Branch.Next}
	case TermIf:
		return []*Invocation{&t.If.True, &t.If.False}
	case TermLoop:
		return []*Invocation{&t.Loop.Body, &t.Loop.Exit}
	}
	return nil
}

// Uses returns every value the terminator reads.
func (t *Terminator) Uses() []ValueID {
	var out []ValueID
	switch t.Kind {
	case TermIf:
		out = append(out, t.If.Cond)
	case TermLoop:
		out = append(out, t.Loop.Cond)
	case TermReturn:
		if t.Return.HasValue {
			out = append(out, t.Return.Value)
		}
	}
	for _, e := range t.Edges() {
		out = append(out, e.Args...)
	}
	return out
}

// ReplaceUse rewrites reads of from to to and reports the count.
func (t *Terminator) ReplaceUse(from, to ValueID) int {
	n := 0
	swap := func(v *ValueID) {
		if *v == from {
			*v = to
			n++
		}
	}
	switch t.Kind {
	case TermIf:
		swap(&t.If.Cond)
	case TermLoop:
		swap(&t.Loop.Cond)
		if t.Loop.HasCounted {
			swap(&t.Loop.Counted.Induction)
		}
	case TermReturn:
		if t.Return.HasValue {
			swap(&t.Return.Value)
		}
	}
	for _, e := range t.Edges() {
		for i := range e.Args {
			swap(&e.Args[i])
		}
	}
	return n
}

func (t *Terminator) Clone() Terminator {
	out := *t
	out.Branch.Next = t.Branch.Next.Clone()
	out.If.True = t.If.True.Clone()
	out.If.False = t.If.False.Clone()
	out.Loop.Body = t.Loop.Body.Clone()
	out.Loop.Exit = t.Loop.Exit.Clone()
	return out
}
