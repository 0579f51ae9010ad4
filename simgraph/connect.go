package simgraph

import (
	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// Connect validates and records an edge between src's output port and
// dst's input port (spec.md §6 "connect(src, src_port, dst, dst_port,
// kind = Normal|Feedback)"). A Feedback connection additionally creates
// a synthetic reverse topology.KindBack edge (source and destination
// swapped) so the traversal cache's traversal mask stays acyclic while
// its alternate mask still reaches the feedback source (spec.md §4.2,
// GLOSSARY "Traversal mask / alternate mask").
func (s *Set) Connect(src handle.NodeHandle, srcRef port.OutputPortArrayID, dst handle.NodeHandle, dstRef port.InputPortArrayID, kind topology.EdgeKind) error {
	_, srcPS, err := s.lookupPort(src, srcRef.Port, false)
	if err != nil {
		return err
	}
	_, dstPS, err := s.lookupPort(dst, dstRef.Port, true)
	if err != nil {
		return err
	}

	if err := checkArrayRef(srcPS.Array, srcRef.Index, "source"); err != nil {
		return err
	}
	if err := checkArrayRef(dstPS.Array, dstRef.Index, "dest"); err != nil {
		return err
	}

	if srcPS.Array {
		srcRec, _ := s.nodeArena.Get(src)
		if !srcRec.arrayOut.ValidIndex(srcRef.Port, srcRef.Index) {
			return errtax.Wrapf(errtax.ErrIndexOutOfRange, "simgraph.Connect: source array index %d", srcRef.Index)
		}
	}
	if dstPS.Array {
		dstRec, _ := s.nodeArena.Get(dst)
		if !dstRec.arrayIn.ValidIndex(dstRef.Port, dstRef.Index) {
			return errtax.Wrapf(errtax.ErrIndexOutOfRange, "simgraph.Connect: dest array index %d", dstRef.Index)
		}
	}

	if kind == topology.KindFeedback && port.Category(dstPS.Category) != port.Data {
		return errtax.Wrapf(errtax.ErrFeedbackOnNonData, "simgraph.Connect")
	}

	if port.Category(dstPS.Category) == port.Data && s.hasDataInput(dst, dstRef) {
		return errtax.Wrapf(errtax.ErrAlreadyConnected, "simgraph.Connect: dest port %d already connected", dstRef.Port)
	}

	if srcPS.ElementType != dstPS.ElementType {
		return errtax.Wrapf(errtax.ErrTypeMismatch, "simgraph.Connect: %s != %s", srcPS.ElementType, dstPS.ElementType)
	}

	category := port.Category(srcPS.Category)
	srcV, dstV := vertexOf(src), vertexOf(dst)

	if _, err := s.topo.Connect(kind, category, srcV, srcRef, dstV, dstRef); err != nil {
		return err
	}
	s.diffObj.RecordConnectionCreated(diff.ConnectionCreated{
		Src: src, Dst: dst,
		SrcPort: srcRef.Port, DstPort: dstRef.Port,
		SrcIndex: srcRef.Index, DstIndex: dstRef.Index,
		Kind: uint8(kind), Category: category,
	})

	if kind == topology.KindFeedback {
		backSrcRef := port.OutputPortArrayID{Port: dstRef.Port, Index: dstRef.Index}
		backDstRef := port.InputPortArrayID{Port: srcRef.Port, Index: srcRef.Index}
		if _, err := s.topo.Connect(topology.KindBack, category, dstV, backSrcRef, srcV, backDstRef); err != nil {
			return err
		}
		s.diffObj.RecordConnectionCreated(diff.ConnectionCreated{
			Src: dst, Dst: src,
			SrcPort: backSrcRef.Port, DstPort: backDstRef.Port,
			SrcIndex: backSrcRef.Index, DstIndex: backDstRef.Index,
			Kind: uint8(topology.KindBack), Category: category,
		})
	}

	return nil
}

// checkArrayRef enforces that a port reference carries an array index
// exactly when the port is declared as a port-array (spec.md §7's
// PortArrayIndexRequired / PortArrayIndexNotAllowed Shape errors).
func checkArrayRef(isArray bool, idx int32, side string) error {
	if isArray && idx == port.NoIndex {
		return errtax.Wrapf(errtax.ErrPortArrayIndexRequired, "simgraph.Connect: %s port is a port-array", side)
	}
	if !isArray && idx != port.NoIndex {
		return errtax.Wrapf(errtax.ErrPortArrayIndexNotAllowed, "simgraph.Connect: %s port is scalar", side)
	}

	return nil
}

// Disconnect removes a previously established edge, including its
// synthetic Back counterpart when kind is Feedback (spec.md §6
// "disconnect(...)").
func (s *Set) Disconnect(src handle.NodeHandle, srcRef port.OutputPortArrayID, dst handle.NodeHandle, dstRef port.InputPortArrayID, kind topology.EdgeKind) error {
	if !s.nodeArena.Validate(src) || !s.nodeArena.Validate(dst) {
		return errtax.Wrapf(errtax.ErrInvalidHandle, "simgraph.Disconnect")
	}
	srcV, dstV := vertexOf(src), vertexOf(dst)

	if err := s.topo.Disconnect(kind, srcV, srcRef, dstV, dstRef); err != nil {
		return err
	}
	s.diffObj.RecordConnectionDeleted(diff.ConnectionDeleted{
		Src: src, Dst: dst,
		SrcPort: srcRef.Port, DstPort: dstRef.Port,
		SrcIndex: srcRef.Index, DstIndex: dstRef.Index,
		Kind: uint8(kind),
	})

	if kind == topology.KindFeedback {
		backSrcRef := port.OutputPortArrayID{Port: dstRef.Port, Index: dstRef.Index}
		backDstRef := port.InputPortArrayID{Port: srcRef.Port, Index: srcRef.Index}
		if err := s.topo.Disconnect(topology.KindBack, dstV, backSrcRef, srcV, backDstRef); err != nil {
			return err
		}
		s.diffObj.RecordConnectionDeleted(diff.ConnectionDeleted{
			Src: dst, Dst: src,
			SrcPort: backSrcRef.Port, DstPort: backDstRef.Port,
			SrcIndex: backSrcRef.Index, DstIndex: backDstRef.Index,
			Kind: uint8(topology.KindBack),
		})
	}

	return nil
}

// DisconnectAndRetainValue disconnects a Normal data edge, first reading
// the render side's current bytes at dst's input so they can be
// re-installed as an owned value once the disconnect's diff record is
// replayed (spec.md §6 "disconnect_and_retain_value", §8 scenario 5).
func (s *Set) DisconnectAndRetainValue(src handle.NodeHandle, srcRef port.OutputPortArrayID, dst handle.NodeHandle, dstRef port.InputPortArrayID) error {
	_, dstPS, err := s.lookupPort(dst, dstRef.Port, true)
	if err != nil {
		return err
	}
	if port.Category(dstPS.Category) != port.Data {
		return errtax.Wrapf(errtax.ErrNotADataPort, "simgraph.DisconnectAndRetainValue: port %d", dstRef.Port)
	}

	current, ok := s.render.ReadInputValue(vertexOf(dst), dstRef.Port, dstRef.Index)

	if err := s.Disconnect(src, srcRef, dst, dstRef, topology.KindNormal); err != nil {
		return err
	}

	if ok && len(current) > 0 {
		retained := make([]byte, len(current))
		copy(retained, current)
		s.diffObj.RecordMessageToData(diff.MessageToData{
			Dest: dst, Port: dstRef.Port, Index: dstRef.Index,
			Payload: retained, OwnerIsPort: true,
		})
	}

	return nil
}

// SetPortArraySize resizes a port-array, refusing to shrink below the
// highest currently-connected index (spec.md §6 "set_port_array_size",
// §8 "Port-array downsize guard").
func (s *Set) SetPortArraySize(h handle.NodeHandle, p port.ID, n uint16) error {
	if n > port.MaxArraySize {
		return errtax.Wrapf(errtax.ErrIndexOutOfRange, "simgraph.SetPortArraySize: %d exceeds max %d", n, port.MaxArraySize)
	}
	if !s.nodeArena.Validate(h) {
		return errtax.Wrapf(errtax.ErrInvalidHandle, "simgraph.SetPortArraySize")
	}
	rec, _ := s.nodeArena.Get(h)
	idx := int(p.Index())
	if idx >= len(rec.def.Ports) {
		return errtax.Wrapf(errtax.ErrInvalidPort, "simgraph.SetPortArraySize: port %d", p)
	}
	ps := rec.def.Ports[idx]
	if !ps.Array {
		return errtax.Wrapf(errtax.ErrNotAPortArray, "simgraph.SetPortArraySize: port %d", p)
	}

	v := vertexOf(h)
	var conns []topology.Connection
	if ps.Input {
		conns = s.topo.InputConnections(v)
	} else {
		conns = s.topo.OutputConnections(v)
	}
	maxConnected := int32(-1)
	for _, c := range conns {
		var onThisSide int32 = -1
		if ps.Input && c.DestPort.Port == p {
			onThisSide = c.DestPort.Index
		} else if !ps.Input && c.SourcePort.Port == p {
			onThisSide = c.SourcePort.Index
		}
		if onThisSide > maxConnected {
			maxConnected = onThisSide
		}
	}
	if int32(n) <= maxConnected {
		return errtax.Wrapf(errtax.ErrIndexOutOfRange, "simgraph.SetPortArraySize: size %d would drop connected index %d", n, maxConnected)
	}

	if ps.Input {
		rec.arrayIn.SetSize(p, n)
	} else {
		rec.arrayOut.SetSize(p, n)
	}
	s.diffObj.RecordPortArrayResized(diff.PortArrayResized{Dest: h, Port: p, NewSize: n})

	return nil
}

// PortArraySize returns p's current port-array size on h, or ok=false if
// h is invalid, p doesn't exist, or p is not a port-array (spec.md §6
// "set_port_array_size" has no matching getter in the source API, but
// tests and diagnostics need to observe the size a guard refused to
// change).
func (s *Set) PortArraySize(h handle.NodeHandle, p port.ID) (size uint16, ok bool) {
	rec, valid := s.nodeArena.Get(h)
	if !valid {
		return 0, false
	}
	idx := int(p.Index())
	if idx >= len(rec.def.Ports) {
		return 0, false
	}
	ps := rec.def.Ports[idx]
	if !ps.Array {
		return 0, false
	}
	if ps.Input {
		return rec.arrayIn.Size(p), true
	}

	return rec.arrayOut.Size(p), true
}
