package simgraph

import (
	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// SendMessage is the external ("outside the graph") entry point for the
// same delivery emit_message performs from inside a hook (spec.md §6
// "send_message<T>(handle, port, value); emit_message is exposed only
// through MessageContext/UpdateContext" — send_message is how the user
// layer drives that same fan-out without a live hook to call it from,
// §8 scenario 1 "send_message(A, port, 42)" where port is A's own
// MessageOutput). h/p must name a live scalar Message output port.
func SendMessage[T any](s *Set, h handle.NodeHandle, p port.ID, value T) error {
	_, ps, err := s.lookupPort(h, p, false)
	if err != nil {
		return err
	}
	if port.Category(ps.Category) != port.Message {
		return errtax.Wrapf(errtax.ErrCategoryMismatch, "simgraph.SendMessage: port %d is not a Message port", p)
	}
	if ps.Array {
		return errtax.Wrapf(errtax.ErrPortArrayIndexRequired, "simgraph.SendMessage: port %d is a port-array, use the indexed form", p)
	}

	return s.emitMessage(h, p, port.NoIndex, value)
}

// SetData installs value on an unconnected, buffer-free data input,
// queuing a MessageToData diff record with owner=port (spec.md §6
// "set_data(handle, port, value)").
func SetData[T any](s *Set, h handle.NodeHandle, p port.ID, value T) error {
	_, ps, err := s.lookupPort(h, p, true)
	if err != nil {
		return err
	}
	if port.Category(ps.Category) != port.Data {
		return errtax.Wrapf(errtax.ErrNotADataPort, "simgraph.SetData: port %d", p)
	}
	if len(ps.BufferByteOffsets) > 0 {
		return errtax.Wrapf(errtax.ErrPortHasBuffers, "simgraph.SetData: port %d carries embedded buffers", p)
	}
	if s.hasDataInput(h, port.InputPortArrayID{Port: p, Index: port.NoIndex}) {
		return errtax.Wrapf(errtax.ErrAlreadyConnected, "simgraph.SetData: port %d is connected", p)
	}

	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}
	s.diffObj.RecordMessageToData(diff.MessageToData{
		Dest: h, Port: p, Index: port.NoIndex, Payload: encoded, OwnerIsPort: true,
	})

	return nil
}

// defFor resolves the Definition registered for a live vertex, or nil if
// v no longer names a node (a caller resolving v from a fresh
// topology.Connection should never see this miss; handled defensively).
func (s *Set) defFor(v topology.VertexID) *ndef.Definition {
	h, ok := s.nodeArena.HandleAt(uint32(v))
	if !ok {
		return nil
	}
	rec, ok := s.nodeArena.Get(h)
	if !ok {
		return nil
	}

	return rec.def
}

// emitMessage is spec.md §4.6's emit_message: walk h's output list for
// connections on (p, idx), dispatching synchronously to every Message
// destination (in connection order, per spec.md §5's ordering guarantee)
// and queuing a MessageToData diff record for every Message→Data
// destination. Called from UpdateContext/MessageContext EmitMessage
// and from SendMessage.
func (s *Set) emitMessage(h handle.NodeHandle, p port.ID, idx int32, value interface{}) error {
	v := vertexOf(h)
	matched := false
	for _, c := range s.topo.OutputConnections(v) {
		if c.SourcePort.Port != p || c.SourcePort.Index != idx {
			continue
		}
		matched = true

		dstDef := s.defFor(c.DestVertex)
		if dstDef == nil {
			continue
		}
		dstIdx := int(c.DestPort.Port.Index())
		if dstIdx >= len(dstDef.Ports) {
			continue
		}
		dstPS := dstDef.Ports[dstIdx]
		dstHandle, ok := s.nodeArena.HandleAt(uint32(c.DestVertex))
		if !ok {
			continue
		}

		switch port.Category(dstPS.Category) {
		case port.Message:
			if dstDef.Message != nil {
				dstDef.Message(&messageContext{set: s, self: dstHandle}, uint16(c.DestPort.Port), value)
			}
		case port.Data:
			encoded, err := encodeValue(value)
			if err != nil {
				return err
			}
			s.diffObj.RecordMessageToData(diff.MessageToData{
				Dest: dstHandle, Port: c.DestPort.Port, Index: c.DestPort.Index, Payload: encoded,
			})
		}
	}

	if !matched {
		rec, ok := s.nodeArena.Get(h)
		if ok {
			if _, found := rec.forwardOut.Lookup(p, false); found {
				return errtax.Wrapf(errtax.ErrEmitThroughForwardedPort, "simgraph.emitMessage: port %d", p)
			}
		}
	}

	return nil
}
