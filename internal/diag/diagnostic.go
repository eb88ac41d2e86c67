package diag

import "fmt"

// Location points into an IR graph. Block and Value are -1 when absent.
type Location struct {
	Graph string
	Block int32
	Value int32
}

// NoLocation is used for diagnostics that are not tied to a graph position.
var NoLocation = Location{Block: -1, Value: -1}

func (l Location) String() string {
	s := l.Graph
	if l.Block >= 0 {
		if s != "" {
			s += ":"
		}
		s += fmt.Sprintf("bb%d", l.Block)
	}
	if l.Value >= 0 {
		if l.Block >= 0 {
			s += "/"
		} else if s != "" {
			s += ":"
		}
		s += fmt.Sprintf("v%d", l.Value)
	}
	if s == "" {
		return "-"
	}
	return s
}

type Note struct {
	At  Location
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Location
	Notes    []Note
}

func New(sev Severity, code Code, primary Location, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary Location, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) WithNote(at Location, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{At: at, Msg: msg})
	return d
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s %s: %s", d.Code.ID(), d.Primary, d.Message)
}
