package alloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/dataflowgraph/alloc"
)

func TestArena_AllocWithinChunk(t *testing.T) {
	a := alloc.NewArena(64)
	first := a.Alloc(10)
	second := a.Alloc(10)
	require.Len(t, first, 10)
	require.Len(t, second, 10)
	require.Equal(t, 1, a.Len(), "both allocations fit in the same chunk")
}

func TestArena_AllocSpillsToNewChunk(t *testing.T) {
	a := alloc.NewArena(16)
	a.Alloc(10)
	a.Alloc(10) // does not fit in the remaining 6 bytes
	require.Equal(t, 2, a.Len())
}

func TestArena_OversizedRequestGetsDedicatedChunk(t *testing.T) {
	a := alloc.NewArena(16)
	block := a.Alloc(256)
	require.Len(t, block, 256)
	require.Equal(t, 1, a.Len())
}

func TestArena_ResetReusesFirstChunk(t *testing.T) {
	a := alloc.NewArena(16)
	a.Alloc(10)
	a.Alloc(10)
	require.Equal(t, 2, a.Len())

	a.Reset()
	require.Equal(t, 1, a.Len())

	block := a.Alloc(4)
	require.Len(t, block, 4)
}

func TestArena_AllocZeroOrNegativeReturnsNil(t *testing.T) {
	a := alloc.NewArena(16)
	require.Nil(t, a.Alloc(0))
	require.Nil(t, a.Alloc(-1))
}
