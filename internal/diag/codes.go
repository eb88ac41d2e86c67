package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Malformed graphs
	IRInfo              Code = 1000
	IRMalformed         Code = 1001
	IRUnterminatedBlock Code = 1002
	IRBadTarget         Code = 1003
	IRArityMismatch     Code = 1004
	IRUndefinedValue    Code = 1005
	IRDuplicateValue    Code = 1006
	IRStampMismatch     Code = 1007
	IRUnreachableBlock  Code = 1008
	IRUnsupportedOp     Code = 1009
	IRNoReturn          Code = 1010

	// Structuring
	SCFInfo                Code = 2000
	SCFAlreadyApplied      Code = 2001
	SCFUnmatchedMerge      Code = 2002
	SCFMergeMismatch       Code = 2003
	SCFMissingMerge        Code = 2004
	SCFLoopEndNotDominated Code = 2005
	SCFCountedFallback     Code = 2006
	SCFLoopMalformed       Code = 2007

	// Optimization
	OPTInfo        Code = 3000
	OPTPhaseOrder  Code = 3001
	OPTUnknownPass Code = 3002
	OPTCanceled    Code = 3003

	// Loading and caching
	IOLoadFileError Code = 4001
	IODecodeError   Code = 4002
	IOCacheError    Code = 4003
	IOWriteError    Code = 4004

	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:            "Unknown error",
		IRInfo:                 "Graph information",
		IRMalformed:            "malformed graph",
		IRUnterminatedBlock:    "block has no terminator",
		IRBadTarget:            "edge targets a missing block",
		IRArityMismatch:        "invocation arity does not match block arguments",
		IRUndefinedValue:       "value used before definition",
		IRDuplicateValue:       "value defined more than once",
		IRStampMismatch:        "operand stamp mismatch",
		IRUnreachableBlock:     "block is unreachable from entry",
		IRUnsupportedOp:        "unsupported operation",
		IRNoReturn:             "graph has no reachable return",
		SCFInfo:                "Structuring information",
		SCFAlreadyApplied:      "graph is already structured",
		SCFUnmatchedMerge:      "if has no matching merge block",
		SCFMergeMismatch:       "merge block does not match the open if",
		SCFMissingMerge:        "reachable if lacks a merge block",
		SCFLoopEndNotDominated: "loop header does not dominate its loop end",
		SCFCountedFallback:     "loop kept generic",
		SCFLoopMalformed:       "loop terminator is incomplete",
		OPTInfo:                "Optimization information",
		OPTPhaseOrder:          "pass requires an earlier pass",
		OPTUnknownPass:         "unknown pass",
		OPTCanceled:            "compilation canceled",
		IOLoadFileError:        "I/O load file error",
		IODecodeError:          "graph decode error",
		IOCacheError:           "graph cache error",
		IOWriteError:           "I/O write error",
		ObsInfo:                "Observability information",
		ObsTimings:             "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("IR%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SCF%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("OPT%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
