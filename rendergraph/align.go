package rendergraph

import (
	"github.com/katalvlaran/dataflowgraph/alloc"
	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// vertexOf maps a simulation-side node handle to the render graph's own
// VertexID space. The two sides share index assignment (the handle's
// arena index) but never share a Database instance, per spec.md §4.4:
// "a topology database and topology map separate from the simulation's".
func vertexOf(h handle.NodeHandle) topology.VertexID { return topology.VertexID(h.Index) }

// alignWorld replays d in order (spec.md §4.4 step 2): creates allocate
// a kernel instance from the type's pool when the definition declares
// one, destroys disconnect every edge and release owned/kernel-private
// memory. Buffer resizes and input-port updates are only queued here
// (into deferred command vectors), applied later, one after the other,
// by resizeBuffers and applyInputUpdates after the topology refresh
// (step 4).
func (g *Graph) alignWorld(d *diff.Diff) {
	d.Replay(diff.Visitor{
		NodeCreated: func(r diff.NodeCreated) {
			v := vertexOf(r.Handle)
			g.db.VertexCreated(v)

			def := g.registry.Lookup(r.Type)
			kn := &KernelNode{Handle: r.Handle, Type: r.Type}
			if def != nil && def.Kernel != nil && def.KernelDataSize > 0 {
				pool := g.poolFor(r.Type, def.KernelDataSize, def.KernelDataAlign)
				block, ref := pool.Alloc()
				kn.KernelData = block
				kn.poolRef = ref
				kn.fromPool = pool
			}
			g.nodes[v] = kn
		},
		NodeDeleted: func(r diff.NodeDeleted) {
			v := vertexOf(r.Handle)
			g.db.DisconnectAll(v)
			g.releaseVertexStorage(v)
			if kn := g.nodes[v]; kn != nil && kn.fromPool != nil {
				kn.fromPool.Free(kn.poolRef)
			}
			delete(g.nodes, v)
			g.db.VertexDeleted(v)
		},
		ConnectionCreated: func(r diff.ConnectionCreated) {
			src, dst := vertexOf(r.Src), vertexOf(r.Dst)
			srcRef := port.OutputPortArrayID{Port: r.SrcPort, Index: r.SrcIndex}
			dstRef := port.InputPortArrayID{Port: r.DstPort, Index: r.DstIndex}
			if _, err := g.db.Connect(topology.EdgeKind(r.Kind), r.Category, src, srcRef, dst, dstRef); err != nil {
				g.Errors = append(g.Errors, err)
			}
		},
		ConnectionDeleted: func(r diff.ConnectionDeleted) {
			src, dst := vertexOf(r.Src), vertexOf(r.Dst)
			srcRef := port.OutputPortArrayID{Port: r.SrcPort, Index: r.SrcIndex}
			dstRef := port.InputPortArrayID{Port: r.DstPort, Index: r.DstIndex}
			if err := g.db.Disconnect(topology.EdgeKind(r.Kind), src, srcRef, dst, dstRef); err != nil {
				g.Errors = append(g.Errors, err)
			}
		},
		PortArrayResized: func(r diff.PortArrayResized) {
			g.pendingArraySizes = append(g.pendingArraySizes, r)
		},
		BufferResized: func(r diff.BufferResized) {
			g.pendingResizes = append(g.pendingResizes, r)
		},
		MessageToData: func(r diff.MessageToData) {
			g.pendingMessages = append(g.pendingMessages, r)
		},
		GraphValueCreated: func(r diff.GraphValueCreated) {
			g.pendingGraphValues = append(g.pendingGraphValues, r)
		},
	})
}

// poolFor returns (lazily creating) the pool backing instances of type t.
func (g *Graph) poolFor(t ndef.TypeID, size, align uintptr) *alloc.Pool {
	if p, ok := g.pools[t]; ok {
		return p
	}
	p := alloc.NewPool(int(size), int(align), 64, "kernel-data")
	g.pools[t] = p

	return p
}

// releaseVertexStorage frees every owned data slot belonging to v's ports
// (both as the owning output and as an input that owns retained memory),
// per spec.md §4.4 step 2's "free all port-owned buffers and
// kernel-private buffers" on destroy.
func (g *Graph) releaseVertexStorage(v topology.VertexID) {
	for k := range g.outputs {
		if k.vertex == v {
			delete(g.outputs, k)
		}
	}
	for k := range g.inputs {
		if k.vertex == v {
			delete(g.inputs, k)
		}
	}
	for k := range g.arrays {
		if k.vertex == v {
			delete(g.arrays, k)
		}
	}
}

// resizeBuffers applies every queued BufferResized record (spec.md §4.4
// step 4 "Resize data-port buffers"): reuse the allocation when shrinking
// by less than half (quadratic-growth stability), otherwise reallocate
// and zero-fill on upsize.
func (g *Graph) resizeBuffers(d *diff.Diff) error {
	for _, r := range g.pendingResizes {
		v := vertexOf(r.Owner)
		key := bufferKey{vertex: v, offset: r.Offset}
		slot := g.buffers[key]
		if slot == nil {
			slot = &dataSlot{}
			g.buffers[key] = slot
		}
		old := slot.bytes
		if r.NewSize <= len(old) && r.NewSize > len(old)/2 {
			slot.bytes = old[:r.NewSize]
		} else {
			fresh := make([]byte, r.NewSize)
			copy(fresh, old) // preserve surviving prefix across reallocation
			slot.bytes = fresh
		}

		if !r.Offset.IsKernelPrivate {
			g.mirrorBufferToOutput(v, r.Offset, slot)
		}
	}
	g.pendingResizes = g.pendingResizes[:0]

	return nil
}

// mirrorBufferToOutput keeps a data-output port's own storage (what
// nodePorts.Output and ReadGraphValue serve) in sync with its first
// embedded buffer: a port whose BufferByteOffsets[0] matches offset
// treats that buffer as its entire output value, so resizing it resizes
// the port (spec.md §4.5 "a data output with a single embedded buffer is
// the common case: the buffer is the port's value").
func (g *Graph) mirrorBufferToOutput(v topology.VertexID, offset port.BufferOffset, slot *dataSlot) {
	kn := g.nodes[v]
	if kn == nil {
		return
	}
	def := g.registry.Lookup(kn.Type)
	if def == nil {
		return
	}
	for i, ps := range def.Ports {
		if ps.Input || len(ps.BufferByteOffsets) == 0 || ps.BufferByteOffsets[0] != offset.ByteOffset {
			continue
		}
		g.outputs[portKey{vertex: v, port: port.NewID(uint16(i)), index: port.NoIndex}] = slot
	}
}

// applyInputUpdates applies queued port-array resizes and
// SetData/RetainData records (spec.md §4.4 step 4 "Input port updates").
// Array resize points every newly added slot at the blank page; SetData
// frees any previously owned memory before installing the copy the diff
// arena holds.
func (g *Graph) applyInputUpdates(d *diff.Diff) error {
	for _, r := range g.pendingArraySizes {
		v := vertexOf(r.Dest)
		ak := arrayKey{vertex: v, port: r.Port}
		old := g.arrays[ak]
		g.arrays[ak] = int32(r.NewSize)
		for i := old; i < int32(r.NewSize); i++ {
			g.inputs[portKey{vertex: v, port: r.Port, index: i}] = &dataSlot{bytes: g.blankPage}
		}
	}
	g.pendingArraySizes = g.pendingArraySizes[:0]

	for _, r := range g.pendingMessages {
		v := vertexOf(r.Dest)
		k := portKey{vertex: v, port: r.Port, index: r.Index}
		if r.Payload == nil {
			// Retain: leave the existing owned value untouched.
			continue
		}
		buf, ok := r.Payload.([]byte)
		if !ok {
			g.Errors = append(g.Errors, errtax.Wrapf(errtax.ErrTypeMismatch, "rendergraph.applyInputUpdates: message-to-data payload for port %d", r.Port))

			continue
		}
		cp := g.diffArena.Alloc(len(buf))
		copy(cp, buf)
		g.inputs[k] = &dataSlot{bytes: cp, ownership: port.OwnedByPort}
	}
	g.pendingMessages = g.pendingMessages[:0]

	return nil
}
