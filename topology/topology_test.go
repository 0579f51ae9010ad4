package topology_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
)

func scalar(p uint16) port.OutputPortArrayID { return port.OutputPortArrayID{Port: port.NewID(p), Index: port.NoIndex} }
func scalarIn(p uint16) port.InputPortArrayID {
	return port.InputPortArrayID{Port: port.NewID(p), Index: port.NoIndex}
}

func TestDatabase_ConnectDisconnectRoundTrip(t *testing.T) {
	db := topology.NewDatabase()
	db.VertexCreated(1)
	db.VertexCreated(2)

	ref, err := db.Connect(topology.KindNormal, port.Data, 1, scalar(0), 2, scalarIn(0))
	require.NoError(t, err)
	require.True(t, db.ConnectionExists(topology.KindNormal, 1, scalar(0), 2, scalarIn(0)))
	require.Equal(t, 1, db.CountEstablishedConnections())

	require.NoError(t, db.DisconnectAndRelease(ref))
	require.False(t, db.ConnectionExists(topology.KindNormal, 1, scalar(0), 2, scalarIn(0)))
	require.Equal(t, 0, db.CountEstablishedConnections())
}

func TestDatabase_DuplicateConnectionFails(t *testing.T) {
	db := topology.NewDatabase()
	db.VertexCreated(1)
	db.VertexCreated(2)

	_, err := db.Connect(topology.KindNormal, port.Data, 1, scalar(0), 2, scalarIn(0))
	require.NoError(t, err)

	_, err = db.Connect(topology.KindNormal, port.Data, 1, scalar(0), 2, scalarIn(0))
	require.Error(t, err)
	require.True(t, errors.Is(err, errtax.ErrConnectionExists))
}

func TestDatabase_DisconnectMissingFails(t *testing.T) {
	db := topology.NewDatabase()
	db.VertexCreated(1)
	db.VertexCreated(2)

	err := db.Disconnect(topology.KindNormal, 1, scalar(0), 2, scalarIn(0))
	require.Error(t, err)
	require.True(t, errors.Is(err, errtax.ErrConnectionMissing))
}

func TestDatabase_InputOutputListsPreserveOrder(t *testing.T) {
	db := topology.NewDatabase()
	db.VertexCreated(1)
	db.VertexCreated(2)
	db.VertexCreated(3)

	_, err := db.Connect(topology.KindNormal, port.Message, 1, scalar(0), 2, scalarIn(0))
	require.NoError(t, err)
	_, err = db.Connect(topology.KindNormal, port.Message, 1, scalar(0), 3, scalarIn(0))
	require.NoError(t, err)

	outs := db.OutputConnections(1)
	require.Len(t, outs, 2)
	require.Equal(t, topology.VertexID(2), outs[0].DestVertex, "fan-out must preserve connection order")
	require.Equal(t, topology.VertexID(3), outs[1].DestVertex)
}

func TestDatabase_DisconnectAllReturnsCount(t *testing.T) {
	db := topology.NewDatabase()
	db.VertexCreated(1)
	db.VertexCreated(2)
	db.VertexCreated(3)

	_, _ = db.Connect(topology.KindNormal, port.Message, 1, scalar(0), 2, scalarIn(0))
	_, _ = db.Connect(topology.KindNormal, port.Message, 3, scalar(0), 1, scalarIn(1))

	n := db.DisconnectAll(1)
	require.Equal(t, 2, n)
	require.Equal(t, 0, db.CountEstablishedConnections())
}

func TestDatabase_ConnectUnionsGroups(t *testing.T) {
	db := topology.NewDatabase()
	db.VertexCreated(1)
	db.VertexCreated(2)
	require.Equal(t, topology.OrphanGroup, db.GroupOf(1))
	require.Equal(t, topology.OrphanGroup, db.GroupOf(2))

	_, err := db.Connect(topology.KindNormal, port.Data, 1, scalar(0), 2, scalarIn(0))
	require.NoError(t, err)

	require.NotEqual(t, topology.OrphanGroup, db.GroupOf(1))
	require.Equal(t, db.GroupOf(1), db.GroupOf(2), "connecting two vertices must union their groups")
}

func TestDatabase_DisconnectMarksGroupChanged(t *testing.T) {
	db := topology.NewDatabase()
	db.VertexCreated(1)
	db.VertexCreated(2)
	ref, err := db.Connect(topology.KindNormal, port.Data, 1, scalar(0), 2, scalarIn(0))
	require.NoError(t, err)
	db.DrainChanged()

	require.NoError(t, db.DisconnectAndRelease(ref))
	changed := db.DrainChanged()
	require.Contains(t, changed, db.GroupOf(1))
}

func TestDatabase_OrphanGroupNeverRetired(t *testing.T) {
	db := topology.NewDatabase()
	db.VertexCreated(1)
	db.VertexDeleted(1)
	db.VertexCreated(2)
	require.Equal(t, topology.OrphanGroup, db.GroupOf(2), "OrphanGroup persists across vertex churn")
}
