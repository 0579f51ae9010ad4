// Package diff is the order-preserving log of simulation mutations that
// must be applied to the render world before the next kernel dispatch
// (spec.md §4.3). Records are appended to per-kind arrays, and a single
// ordered index vector remembers the global interleaving — so replaying
// a node's destroy before its same-frame recreate (handles are
// versioned; only order makes that safe) is just "play the index
// vector in order".
package diff

import (
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/port"
)

// Tag identifies which per-kind array a diff.index entry points into.
type Tag uint8

const (
	TagNodeCreated Tag = iota
	TagNodeDeleted
	TagConnectionCreated
	TagConnectionDeleted
	TagPortArrayResized
	TagBufferResized
	TagMessageToData
	TagGraphValueCreated
)

// NodeCreated records a new node. TypeID lets the render graph allocate
// the kernel instance using the right Definition's layout.
type NodeCreated struct {
	Handle handle.NodeHandle
	Type   ndef.TypeID
}

// NodeDeleted records a node's destruction. TraitsIndex is the render
// side's kernel-node slot index, so teardown doesn't need a second
// lookup through the (possibly already-stale) handle arena.
type NodeDeleted struct {
	Handle      handle.NodeHandle
	TraitsIndex uint32
}

// ConnectionCreated/ConnectionDeleted mirror a topology.Database mutation
// into the render world. Kind is topology.EdgeKind, kept as a plain
// uint8 here so this package does not need to import topology (simgraph
// records these alongside its own topology mutations).
type ConnectionCreated struct {
	Src, Dst         handle.NodeHandle
	SrcPort, DstPort port.ID
	SrcIndex, DstIndex int32
	Kind             uint8
	Category         port.Category
}

type ConnectionDeleted struct {
	Src, Dst         handle.NodeHandle
	SrcPort, DstPort port.ID
	SrcIndex, DstIndex int32
	Kind             uint8
}

// PortArrayResized records a port-array resize on Dest's Port.
type PortArrayResized struct {
	Dest    handle.NodeHandle
	Port    port.ID
	NewSize uint16
}

// BufferResized records a buffer resize, identified either by its
// position in the output's buffer-offset list or, via Offset's
// IsKernelPrivate flag, as living in the kernel's private state
// (spec.md §4.5).
type BufferResized struct {
	Owner       handle.NodeHandle
	Offset      port.BufferOffset
	ElementType string
	NewSize     int
}

// MessageToData delivers a message on a message→data edge, or retains
// the previous value when Payload is nil (spec.md §4.6).
type MessageToData struct {
	Dest    handle.NodeHandle
	Port    port.ID
	Index   int32
	Payload interface{} // nil = retain previous value
	OwnerIsPort bool     // true for set_data's "owner=port" record
}

// GraphValueCreated records a new external reader into a data-output
// port, resolved once its dependency fence is injected (spec.md §4.4
// step 7).
type GraphValueCreated struct {
	Handle handle.NodeHandle
	Port   port.ID
	Index  int32
}

// entry is one slot in the global ordering vector.
type entry struct {
	tag Tag
	idx int
}

// Diff accumulates one frame's mutations in insertion order.
type Diff struct {
	order []entry

	nodeCreated        []NodeCreated
	nodeDeleted        []NodeDeleted
	connectionCreated  []ConnectionCreated
	connectionDeleted  []ConnectionDeleted
	portArrayResized   []PortArrayResized
	bufferResized      []BufferResized
	messageToData      []MessageToData
	graphValueCreated  []GraphValueCreated
}

// New returns an empty Diff, ready to accumulate one frame's mutations.
func New() *Diff {
	return &Diff{}
}

// Reset clears d for reuse on the next frame, keeping its backing
// arrays' capacity (the teacher's amortized-allocation convention).
func (d *Diff) Reset() {
	d.order = d.order[:0]
	d.nodeCreated = d.nodeCreated[:0]
	d.nodeDeleted = d.nodeDeleted[:0]
	d.connectionCreated = d.connectionCreated[:0]
	d.connectionDeleted = d.connectionDeleted[:0]
	d.portArrayResized = d.portArrayResized[:0]
	d.bufferResized = d.bufferResized[:0]
	d.messageToData = d.messageToData[:0]
	d.graphValueCreated = d.graphValueCreated[:0]
}

// Len reports the number of mutations recorded this frame.
func (d *Diff) Len() int { return len(d.order) }

func (d *Diff) RecordNodeCreated(r NodeCreated) {
	d.nodeCreated = append(d.nodeCreated, r)
	d.order = append(d.order, entry{TagNodeCreated, len(d.nodeCreated) - 1})
}

func (d *Diff) RecordNodeDeleted(r NodeDeleted) {
	d.nodeDeleted = append(d.nodeDeleted, r)
	d.order = append(d.order, entry{TagNodeDeleted, len(d.nodeDeleted) - 1})
}

func (d *Diff) RecordConnectionCreated(r ConnectionCreated) {
	d.connectionCreated = append(d.connectionCreated, r)
	d.order = append(d.order, entry{TagConnectionCreated, len(d.connectionCreated) - 1})
}

func (d *Diff) RecordConnectionDeleted(r ConnectionDeleted) {
	d.connectionDeleted = append(d.connectionDeleted, r)
	d.order = append(d.order, entry{TagConnectionDeleted, len(d.connectionDeleted) - 1})
}

func (d *Diff) RecordPortArrayResized(r PortArrayResized) {
	d.portArrayResized = append(d.portArrayResized, r)
	d.order = append(d.order, entry{TagPortArrayResized, len(d.portArrayResized) - 1})
}

func (d *Diff) RecordBufferResized(r BufferResized) {
	d.bufferResized = append(d.bufferResized, r)
	d.order = append(d.order, entry{TagBufferResized, len(d.bufferResized) - 1})
}

func (d *Diff) RecordMessageToData(r MessageToData) {
	d.messageToData = append(d.messageToData, r)
	d.order = append(d.order, entry{TagMessageToData, len(d.messageToData) - 1})
}

func (d *Diff) RecordGraphValueCreated(r GraphValueCreated) {
	d.graphValueCreated = append(d.graphValueCreated, r)
	d.order = append(d.order, entry{TagGraphValueCreated, len(d.graphValueCreated) - 1})
}

// Visitor receives each record in insertion order via Replay. Handlers
// for kinds the caller doesn't care about may be left nil.
type Visitor struct {
	NodeCreated       func(NodeCreated)
	NodeDeleted       func(NodeDeleted)
	ConnectionCreated func(ConnectionCreated)
	ConnectionDeleted func(ConnectionDeleted)
	PortArrayResized  func(PortArrayResized)
	BufferResized     func(BufferResized)
	MessageToData     func(MessageToData)
	GraphValueCreated func(GraphValueCreated)
}

// Replay walks every record in the order they were inserted, dispatching
// to v's matching handler. This is the single linear pass spec.md §4.3
// calls for: "replay is linear and keeps insertion order globally".
func (d *Diff) Replay(v Visitor) {
	for _, e := range d.order {
		switch e.tag {
		case TagNodeCreated:
			if v.NodeCreated != nil {
				v.NodeCreated(d.nodeCreated[e.idx])
			}
		case TagNodeDeleted:
			if v.NodeDeleted != nil {
				v.NodeDeleted(d.nodeDeleted[e.idx])
			}
		case TagConnectionCreated:
			if v.ConnectionCreated != nil {
				v.ConnectionCreated(d.connectionCreated[e.idx])
			}
		case TagConnectionDeleted:
			if v.ConnectionDeleted != nil {
				v.ConnectionDeleted(d.connectionDeleted[e.idx])
			}
		case TagPortArrayResized:
			if v.PortArrayResized != nil {
				v.PortArrayResized(d.portArrayResized[e.idx])
			}
		case TagBufferResized:
			if v.BufferResized != nil {
				v.BufferResized(d.bufferResized[e.idx])
			}
		case TagMessageToData:
			if v.MessageToData != nil {
				v.MessageToData(d.messageToData[e.idx])
			}
		case TagGraphValueCreated:
			if v.GraphValueCreated != nil {
				v.GraphValueCreated(d.graphValueCreated[e.idx])
			}
		}
	}
}
