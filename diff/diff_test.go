package diff_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/handle"
)

func TestDiff_ReplayPreservesInsertionOrderAcrossKinds(t *testing.T) {
	d := diff.New()

	d.RecordNodeCreated(diff.NodeCreated{Handle: handle.NodeHandle{Index: 1}})
	d.RecordConnectionCreated(diff.ConnectionCreated{Src: handle.NodeHandle{Index: 1}, Dst: handle.NodeHandle{Index: 2}})
	d.RecordNodeCreated(diff.NodeCreated{Handle: handle.NodeHandle{Index: 3}})
	d.RecordNodeDeleted(diff.NodeDeleted{Handle: handle.NodeHandle{Index: 1}})

	require.Equal(t, 4, d.Len())

	var order []string
	d.Replay(diff.Visitor{
		NodeCreated:       func(r diff.NodeCreated) { order = append(order, "created") },
		ConnectionCreated: func(r diff.ConnectionCreated) { order = append(order, "connected") },
		NodeDeleted:       func(r diff.NodeDeleted) { order = append(order, "deleted") },
	})

	require.Equal(t, []string{"created", "connected", "created", "deleted"}, order)
}

func TestDiff_ReplaySkipsNilHandlers(t *testing.T) {
	d := diff.New()
	d.RecordBufferResized(diff.BufferResized{NewSize: 8})
	d.RecordMessageToData(diff.MessageToData{Payload: 5})

	calls := 0
	require.NotPanics(t, func() {
		d.Replay(diff.Visitor{
			MessageToData: func(r diff.MessageToData) { calls++ },
		})
	})
	require.Equal(t, 1, calls)
}

func TestDiff_ResetClearsOrderAndLen(t *testing.T) {
	d := diff.New()
	d.RecordNodeCreated(diff.NodeCreated{})
	d.RecordNodeCreated(diff.NodeCreated{})
	require.Equal(t, 2, d.Len())

	d.Reset()
	require.Equal(t, 0, d.Len())

	calls := 0
	d.Replay(diff.Visitor{NodeCreated: func(diff.NodeCreated) { calls++ }})
	require.Equal(t, 0, calls)
}

func TestDiff_MessageToDataRetainsNilPayload(t *testing.T) {
	d := diff.New()
	d.RecordMessageToData(diff.MessageToData{Payload: nil, OwnerIsPort: true})

	var got diff.MessageToData
	d.Replay(diff.Visitor{MessageToData: func(r diff.MessageToData) { got = r }})

	require.Nil(t, got.Payload)
	require.True(t, got.OwnerIsPort)
}
