package passes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

func codes(err error) []diag.Code {
	var out []diag.Code
	for _, d := range Diagnostics("t", err) {
		out = append(out, d.Code)
	}
	return out
}

func TestVerifyAcceptsStructuredGraphs(t *testing.T) {
	for _, build := range []func(*testing.T) *nir.Graph{countLoop, diamond, nestedShared, nestedSeparate, loopWithIf, nestedLoops, memoryGraph} {
		require.NoError(t, Verify(structured(t, build(t))))
	}
}

func TestVerifyRequiresStructure(t *testing.T) {
	err := Verify(diamond(t))
	assert.ErrorIs(t, err, ErrPhaseOrder)
}

func TestVerifyMissingMerge(t *testing.T) {
	g := structured(t, diamond(t))
	g.Blocks[0].Term.If.Merge = nir.NoBlockID
	err := Verify(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnmatchedMerge)
	assert.Equal(t, []diag.Code{diag.SCFMissingMerge}, codes(err))
}

func TestVerifyLoopEnd(t *testing.T) {
	g := structured(t, nestedLoops(t))
	// the inner header never branches back to the outer one
	g.Blocks[1].Term.Loop.LoopEnd = 3
	err := Verify(g)
	require.Error(t, err)
	assert.Equal(t, []diag.Code{diag.SCFLoopMalformed}, codes(err))

	g = structured(t, countLoop(t))
	// bb0 branches to the header but the header does not dominate it
	g.Blocks[1].Term.Loop.LoopEnd = 0
	err = Verify(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, []diag.Code{diag.SCFLoopEndNotDominated}, codes(err))
}

func TestVerifyDominance(t *testing.T) {
	g := structured(t, countLoop(t))
	dom := dominators(g)
	assert.True(t, dominates(dom, 0, 3))
	assert.True(t, dominates(dom, 1, 2))
	assert.True(t, dominates(dom, 1, 1))
	assert.False(t, dominates(dom, 2, 3))
}

func TestVerifyBadCountedRange(t *testing.T) {
	g := structured(t, countLoop(t))
	g.Blocks[1].Term.Loop.Counted.Step = 0
	err := Verify(g)
	require.Error(t, err)
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, diag.SCFLoopMalformed, pe.Code)
	assert.Equal(t, nir.BlockID(1), pe.Block)
}

func TestVerifyReportsEveryProblem(t *testing.T) {
	g := structured(t, nestedShared(t))
	g.Blocks[0].Term.If.Merge = nir.NoBlockID
	g.Blocks[1].Term.If.Merge = nir.NoBlockID
	err := Verify(g)
	assert.Len(t, codes(err), 2)
}
