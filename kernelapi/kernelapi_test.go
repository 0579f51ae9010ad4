package kernelapi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/dataflowgraph/kernelapi"
)

func TestRenderExecutionModel_String(t *testing.T) {
	require.Equal(t, "Synchronous", kernelapi.Synchronous.String())
	require.Equal(t, "SingleThreaded", kernelapi.SingleThreaded.String())
	require.Equal(t, "Islands", kernelapi.Islands.String())
	require.Equal(t, "MaximallyParallel", kernelapi.MaximallyParallel.String())
	require.Contains(t, kernelapi.RenderExecutionModel(99).String(), "99")
}

func TestSafetyManager_BumpAdvancesCurrent(t *testing.T) {
	var s kernelapi.SafetyManager
	require.Equal(t, uint64(0), s.Current())

	v := s.Bump()
	require.Equal(t, uint64(1), v)
	require.Equal(t, uint64(1), s.Current())
}

func TestBufferView_ValidUntilNextBump(t *testing.T) {
	var s kernelapi.SafetyManager
	s.Bump()

	view := kernelapi.NewBufferView(&s, []byte{1, 2, 3})
	b, err := view.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, b)

	s.Bump()
	_, err = view.Bytes()
	require.Error(t, err, "a view stamped with a stale frame version must fail")
}

func TestBufferView_ZeroValueErrors(t *testing.T) {
	var view kernelapi.BufferView
	_, err := view.Bytes()
	require.Error(t, err)
}

func TestRenderContext_ViewStampsCurrentFrame(t *testing.T) {
	var s kernelapi.SafetyManager
	s.Bump()
	ctx := &kernelapi.RenderContext{Safety: &s}

	view := ctx.View([]byte{9})
	b, err := view.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{9}, b)
}
