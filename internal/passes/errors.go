package passes

import (
	"errors"
	"fmt"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

var (
	ErrAlreadyStructured = errors.New("graph is already structured")
	ErrUnmatchedMerge    = errors.New("unmatched merge block")
	ErrMalformed         = errors.New("malformed graph")
	ErrPhaseOrder        = errors.New("pass requires an earlier pass")
)

const (
	phaseOrderCode = diag.OPTPhaseOrder
	canceledCode   = diag.OPTCanceled
)

// Error is a fatal pass failure located at a block and optionally a value.
type Error struct {
	Code  diag.Code
	Block nir.BlockID
	Value nir.ValueID
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	loc := ""
	if e.Block != nir.NoBlockID {
		loc = " " + e.Block.String()
		if e.Value != nir.NoValueID {
			loc += "/" + e.Value.String()
		}
	}
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s%s: %s", e.Code.ID(), loc, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAlreadyStructured:
		return e.Code == diag.SCFAlreadyApplied
	case ErrUnmatchedMerge:
		return e.Code == diag.SCFUnmatchedMerge || e.Code == diag.SCFMergeMismatch || e.Code == diag.SCFMissingMerge
	case ErrMalformed:
		return (e.Code > diag.IRInfo && e.Code < diag.SCFInfo) ||
			e.Code == diag.SCFLoopEndNotDominated || e.Code == diag.SCFLoopMalformed
	case ErrPhaseOrder:
		return e.Code == diag.OPTPhaseOrder
	}
	return false
}

// Diagnostic converts the error for a bag, locating it inside the named graph.
func (e *Error) Diagnostic(graph string) diag.Diagnostic {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return diag.NewError(e.Code, diag.Location{Graph: graph, Block: int32(e.Block), Value: int32(e.Value)}, msg)
}

func errorAt(code diag.Code, block nir.BlockID, format string, args ...any) *Error {
	return &Error{Code: code, Block: block, Value: nir.NoValueID, Msg: fmt.Sprintf(format, args...)}
}

// malformed wraps a validation failure.
func malformed(err error) *Error {
	return &Error{Code: diag.IRMalformed, Block: nir.NoBlockID, Value: nir.NoValueID, Msg: "invalid graph", Err: err}
}

// Diagnostics flattens err into diagnostics. Wrapping is looked through,
// joined errors yield one entry each and foreign errors become IRMalformed.
func Diagnostics(graph string, err error) []diag.Diagnostic {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []diag.Diagnostic
		for _, e := range joined.Unwrap() {
			out = append(out, Diagnostics(graph, e)...)
		}
		return out
	}
	if pe, ok := err.(*Error); ok {
		return []diag.Diagnostic{pe.Diagnostic(graph)}
	}
	if inner := errors.Unwrap(err); inner != nil {
		return Diagnostics(graph, inner)
	}
	return []diag.Diagnostic{diag.NewError(diag.IRMalformed, diag.Location{Graph: graph, Block: -1, Value: -1}, err.Error())}
}
